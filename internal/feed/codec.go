package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingrelay/internal/domain"
)

const typeOrderPlaced = "order_placed"

// errEchoFrame marks an order_placed frame re-broadcast by the feed. It is
// expected traffic, not a malformed event.
var errEchoFrame = errors.New("echoed order_placed frame")

// inboundFrame is any object received from the feed.
type inboundFrame struct {
	Type   string           `json:"type"`
	Symbol string           `json:"symbol"`
	Price  *decimal.Decimal `json:"price"`
}

// orderPlacedFrame is sent upstream for every confirmed trade.
type orderPlacedFrame struct {
	Type      string      `json:"type"`
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Price     json.Number `json:"price"`
	Quantity  int64       `json:"quantity"`
	Action    string      `json:"action"`
	Timestamp string      `json:"timestamp"`
}

// decodeEvent parses one JSON object into a market event. Failures wrap
// domain.ErrMalformedEvent, except echoed order_placed frames which return
// errEchoFrame.
func decodeEvent(data []byte) (domain.MarketEvent, error) {
	var f inboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return domain.MarketEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	switch domain.EventKind(f.Type) {
	case domain.EventMarketOpen:
		return domain.MarketOpen(), nil
	case domain.EventMarketClose:
		return domain.MarketClose(), nil
	case domain.EventPriceUpdate:
		if f.Symbol == "" {
			return domain.MarketEvent{}, fmt.Errorf("%w: price_update without symbol", domain.ErrMalformedEvent)
		}
		if f.Price == nil {
			return domain.MarketEvent{}, fmt.Errorf("%w: price_update without price", domain.ErrMalformedEvent)
		}
		if f.Price.IsNegative() {
			return domain.MarketEvent{}, fmt.Errorf("%w: negative price %s", domain.ErrMalformedEvent, f.Price)
		}
		return domain.PriceUpdate(f.Symbol, *f.Price), nil
	}

	if f.Type == typeOrderPlaced {
		return domain.MarketEvent{}, errEchoFrame
	}
	return domain.MarketEvent{}, fmt.Errorf("%w: unknown type %q", domain.ErrMalformedEvent, f.Type)
}

// splitFrames yields each non-empty newline-separated object in a message.
func splitFrames(msg []byte) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(msg, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			out = append(out, line)
		}
	}
	return out
}

// encodeOrderPlaced builds the upstream announcement for a confirmation.
func encodeOrderPlaced(c *domain.Confirmation) ([]byte, error) {
	return json.Marshal(orderPlacedFrame{
		Type:      typeOrderPlaced,
		OrderID:   c.OrderID,
		Symbol:    c.Symbol,
		Price:     domain.JSONNumber(c.Price),
		Quantity:  c.Quantity,
		Action:    string(c.Action),
		Timestamp: c.ExecutedAt.UTC().Format(time.RFC3339Nano),
	})
}
