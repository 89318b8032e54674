package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is one connected trading client's ledger.
type Session struct {
	SessionID string
	Cash      decimal.Decimal
	Holdings  map[string]int64 // symbol → quantity, never negative
	CreatedAt time.Time
}

// NewSession creates a session with the given starting cash and no holdings.
func NewSession(id string, cash decimal.Decimal, createdAt time.Time) *Session {
	return &Session{
		SessionID: id,
		Cash:      cash,
		Holdings:  make(map[string]int64),
		CreatedAt: createdAt,
	}
}

// Quantity returns the held quantity for symbol, or 0 if none is held.
func (s *Session) Quantity(symbol string) int64 {
	return s.Holdings[symbol]
}

// Clone returns a deep copy safe to hand out beyond the state lock.
func (s *Session) Clone() *Session {
	holdings := make(map[string]int64, len(s.Holdings))
	for symbol, qty := range s.Holdings {
		holdings[symbol] = qty
	}
	return &Session{
		SessionID: s.SessionID,
		Cash:      s.Cash,
		Holdings:  holdings,
		CreatedAt: s.CreatedAt,
	}
}

// Valuation returns cash plus every holding marked at prices. Holdings
// without a price contribute nothing.
func (s *Session) Valuation(prices map[string]decimal.Decimal) decimal.Decimal {
	total := s.Cash
	for symbol, qty := range s.Holdings {
		if p, ok := prices[symbol]; ok {
			total = total.Add(Notional(p, qty))
		}
	}
	return total
}
