package service

import (
	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/engine"
)

// MarketService applies feed events to the market state and then fans them
// out to every session.
type MarketService struct {
	engine *engine.Engine
	fanout *Broadcaster
}

// NewMarketService creates a MarketService.
func NewMarketService(eng *engine.Engine, fanout *Broadcaster) *MarketService {
	return &MarketService{engine: eng, fanout: fanout}
}

// Publish stores ev and broadcasts it. The store is updated before any
// session sees the frame, and nothing is suppressed.
func (s *MarketService) Publish(ev domain.MarketEvent) {
	s.engine.ApplyEvent(ev)
	s.fanout.Broadcast(newMarketMessage(ev))
}

// Snapshot returns the current market state.
func (s *MarketService) Snapshot() domain.MarketSnapshot {
	return s.engine.Snapshot()
}

// Session returns a copy of one session's ledger.
func (s *MarketService) Session(id string) (*domain.Session, error) {
	return s.engine.Lookup(id)
}
