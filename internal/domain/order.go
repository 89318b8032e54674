package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderAction indicates whether an order buys or sells.
type OrderAction string

const (
	OrderActionBuy  OrderAction = "buy"
	OrderActionSell OrderAction = "sell"
)

// ParseOrderAction validates a wire action string.
func ParseOrderAction(s string) (OrderAction, error) {
	switch OrderAction(s) {
	case OrderActionBuy, OrderActionSell:
		return OrderAction(s), nil
	}
	return "", ErrUnknownAction
}

// OrderRequest is a buy or sell instruction submitted by one session.
// Quantity is zero or negative when the client sent something that is not a
// positive integer; the executor rejects it with InvalidQuantity.
type OrderRequest struct {
	Action   OrderAction
	Symbol   string
	Quantity int64
}

// Confirmation records an executed order and the ledger it left behind.
type Confirmation struct {
	OrderID    string
	SessionID  string
	Action     OrderAction
	Symbol     string
	Quantity   int64
	Price      decimal.Decimal
	Cash       decimal.Decimal  // post-trade
	Holdings   map[string]int64 // post-trade copy
	ExecutedAt time.Time
}

// Notional returns price × quantity for the fill.
func (c *Confirmation) Notional() decimal.Decimal {
	return Notional(c.Price, c.Quantity)
}

// CashDelta is the signed change to cash: negative for buys, positive for sells.
func (c *Confirmation) CashDelta() decimal.Decimal {
	if c.Action == OrderActionBuy {
		return c.Notional().Neg()
	}
	return c.Notional()
}
