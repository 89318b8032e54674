package store

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingrelay/internal/domain"
)

// quoteLess orders the price table by symbol ascending.
func quoteLess(a, b domain.Quote) bool {
	return a.Symbol < b.Symbol
}

// MarketStore holds the open flag and the last price of every instrument
// seen on the feed. Symbols are never removed. It is not safe for
// concurrent use; the engine serializes every call under its state lock.
type MarketStore struct {
	open   bool
	prices *btree.BTreeG[domain.Quote]
}

// NewMarketStore creates a closed market with an empty price table.
func NewMarketStore() *MarketStore {
	const degree = 16
	return &MarketStore{
		prices: btree.NewG[domain.Quote](degree, quoteLess),
	}
}

// Apply mutates the store for one event. Every price update is stored, even
// when the value is unchanged.
func (s *MarketStore) Apply(ev domain.MarketEvent) {
	switch ev.Kind {
	case domain.EventMarketOpen:
		s.open = true
	case domain.EventMarketClose:
		s.open = false
	case domain.EventPriceUpdate:
		s.prices.ReplaceOrInsert(domain.Quote{Symbol: ev.Symbol, Price: ev.Price})
	}
}

// IsOpen reports whether the market is open.
func (s *MarketStore) IsOpen() bool {
	return s.open
}

// Price returns the last price for symbol.
func (s *MarketStore) Price(symbol string) (decimal.Decimal, bool) {
	q, ok := s.prices.Get(domain.Quote{Symbol: symbol})
	if !ok {
		return decimal.Zero, false
	}
	return q.Price, true
}

// Len returns the number of known symbols.
func (s *MarketStore) Len() int {
	return s.prices.Len()
}

// Snapshot copies the open flag and every quote in symbol order.
func (s *MarketStore) Snapshot() domain.MarketSnapshot {
	quotes := make([]domain.Quote, 0, s.prices.Len())
	s.prices.Ascend(func(q domain.Quote) bool {
		quotes = append(quotes, q)
		return true
	})
	return domain.MarketSnapshot{Open: s.open, Quotes: quotes}
}
