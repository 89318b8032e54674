package domain

import "github.com/shopspring/decimal"

// EventKind discriminates market events.
type EventKind string

const (
	EventMarketOpen  EventKind = "market_open"
	EventMarketClose EventKind = "market_close"
	EventPriceUpdate EventKind = "price_update"
)

// MarketEvent is one parsed upstream feed event. Symbol and Price are set
// only for EventPriceUpdate.
type MarketEvent struct {
	Kind   EventKind
	Symbol string
	Price  decimal.Decimal
}

// MarketOpen returns the event that opens the market.
func MarketOpen() MarketEvent { return MarketEvent{Kind: EventMarketOpen} }

// MarketClose returns the event that closes the market.
func MarketClose() MarketEvent { return MarketEvent{Kind: EventMarketClose} }

// PriceUpdate returns a price event for symbol.
func PriceUpdate(symbol string, price decimal.Decimal) MarketEvent {
	return MarketEvent{Kind: EventPriceUpdate, Symbol: symbol, Price: price}
}

// Quote is the last price of one instrument.
type Quote struct {
	Symbol string
	Price  decimal.Decimal
}

// MarketSnapshot is a point-in-time copy of market state. Quotes are in
// ascending symbol order.
type MarketSnapshot struct {
	Open   bool
	Quotes []Quote
}

// Prices returns the snapshot as a symbol → price map.
func (s MarketSnapshot) Prices() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(s.Quotes))
	for _, q := range s.Quotes {
		m[q.Symbol] = q.Price
	}
	return m
}
