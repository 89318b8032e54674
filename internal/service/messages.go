package service

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/engine"
)

// Session protocol message types.
const (
	typeStateUpdate       = "state_update"
	typePriceUpdate       = "price_update"
	typeOrder             = "order"
	typeOrderConfirmation = "order_confirmation"
	typeError             = "error"
)

// reasonBadRequest tags error frames caused by malformed client input
// rather than a business rejection.
const reasonBadRequest = "BadRequest"

// stateUpdateMessage is the full snapshot sent on connect.
type stateUpdateMessage struct {
	Type       string                 `json:"type"`
	Portfolio  map[string]int64       `json:"portfolio"`
	Cash       json.Number            `json:"cash"`
	Prices     map[string]json.Number `json:"prices"`
	MarketOpen bool                   `json:"market_open"`
}

// marketStatusMessage is the partial state_update broadcast on open/close.
type marketStatusMessage struct {
	Type       string `json:"type"`
	MarketOpen bool   `json:"market_open"`
}

type priceUpdateMessage struct {
	Type   string      `json:"type"`
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

// orderConfirmationMessage carries the post-trade ledger so clients do not
// need a separate state resend.
type orderConfirmationMessage struct {
	Type      string           `json:"type"`
	OrderID   string           `json:"order_id"`
	Action    string           `json:"action"`
	Symbol    string           `json:"symbol"`
	Quantity  int64            `json:"quantity"`
	Price     json.Number      `json:"price"`
	Cash      json.Number      `json:"cash"`
	Portfolio map[string]int64 `json:"portfolio"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

// clientMessage is any frame received from a session. Quantity is kept as a
// raw number so non-integers reach the executor as invalid quantities.
type clientMessage struct {
	Type     string      `json:"type"`
	Action   string      `json:"action"`
	Symbol   string      `json:"symbol"`
	Quantity json.Number `json:"quantity"`
}

// decodeClientMessage parses one inbound frame, keeping numbers raw.
func decodeClientMessage(frame []byte) (clientMessage, error) {
	var msg clientMessage
	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return clientMessage{}, &domain.ValidationError{Message: "message must be valid JSON"}
	}
	return msg, nil
}

// orderRequest converts an order frame. Only the action is checked here;
// symbol and quantity are the executor's to reject.
func (m clientMessage) orderRequest() (domain.OrderRequest, error) {
	action, err := domain.ParseOrderAction(m.Action)
	if err != nil {
		return domain.OrderRequest{}, &domain.ValidationError{Message: "action must be 'buy' or 'sell'"}
	}
	return domain.OrderRequest{
		Action:   action,
		Symbol:   m.Symbol,
		Quantity: parseQuantity(m.Quantity),
	}, nil
}

func newStateUpdate(st *engine.SessionState) stateUpdateMessage {
	prices := make(map[string]json.Number, len(st.Market.Quotes))
	for _, q := range st.Market.Quotes {
		prices[q.Symbol] = domain.JSONNumber(q.Price)
	}
	return stateUpdateMessage{
		Type:       typeStateUpdate,
		Portfolio:  portfolio(st.Session.Holdings),
		Cash:       domain.JSONNumber(st.Session.Cash),
		Prices:     prices,
		MarketOpen: st.Market.Open,
	}
}

func newConfirmation(c *domain.Confirmation) orderConfirmationMessage {
	return orderConfirmationMessage{
		Type:      typeOrderConfirmation,
		OrderID:   c.OrderID,
		Action:    string(c.Action),
		Symbol:    c.Symbol,
		Quantity:  c.Quantity,
		Price:     domain.JSONNumber(c.Price),
		Cash:      domain.JSONNumber(c.Cash),
		Portfolio: portfolio(c.Holdings),
	}
}

func newError(message, reason string) errorMessage {
	return errorMessage{Type: typeError, Message: message, Reason: reason}
}

// newMarketMessage maps a feed event to the frame broadcast to sessions.
func newMarketMessage(ev domain.MarketEvent) any {
	switch ev.Kind {
	case domain.EventMarketOpen:
		return marketStatusMessage{Type: typeStateUpdate, MarketOpen: true}
	case domain.EventMarketClose:
		return marketStatusMessage{Type: typeStateUpdate, MarketOpen: false}
	}
	return priceUpdateMessage{Type: typePriceUpdate, Symbol: ev.Symbol, Price: domain.JSONNumber(ev.Price)}
}

// portfolio returns a non-nil copy so empty holdings encode as {}.
func portfolio(holdings map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(holdings))
	for sym, qty := range holdings {
		out[sym] = qty
	}
	return out
}

// parseQuantity converts a raw JSON number into a share count. Anything that
// is not an integer representable as int64 becomes 0.
func parseQuantity(n json.Number) int64 {
	if n == "" {
		return 0
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil || !d.IsInteger() {
		return 0
	}
	if d.GreaterThan(decimal.NewFromInt(1<<62)) || d.LessThan(decimal.NewFromInt(-(1 << 62))) {
		return 0
	}
	return d.IntPart()
}
