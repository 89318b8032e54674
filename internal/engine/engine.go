package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/store"
)

// SessionState is a consistent view of one session's ledger together with
// the market it trades against, taken under a single lock acquisition.
type SessionState struct {
	Session *domain.Session
	Market  domain.MarketSnapshot
}

// Engine owns the market state and the session registry. A single mutex
// guards both: price-event application, order execution, and session
// register/unregister each hold it for the whole operation and release it
// before any I/O happens.
type Engine struct {
	mu           sync.Mutex
	market       *store.MarketStore
	sessions     *store.SessionStore
	startingCash decimal.Decimal

	newID func() string
	now   func() time.Time
}

// NewEngine creates an Engine over the given stores. New sessions start
// with startingCash and no holdings.
func NewEngine(market *store.MarketStore, sessions *store.SessionStore, startingCash decimal.Decimal) *Engine {
	return &Engine{
		market:       market,
		sessions:     sessions,
		startingCash: startingCash,
		newID:        func() string { return uuid.New().String() },
		now:          time.Now,
	}
}

// ApplyEvent applies one feed event to the market state.
func (e *Engine) ApplyEvent(ev domain.MarketEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.market.Apply(ev)
}

// CurrentPrice returns the last price for symbol.
func (e *Engine) CurrentPrice(symbol string) (decimal.Decimal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.market.Price(symbol)
}

// Snapshot copies the market state.
func (e *Engine) Snapshot() domain.MarketSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.market.Snapshot()
}

// maxRegisterAttempts bounds id collisions before Register gives up.
const maxRegisterAttempts = 8

// Register creates a session with the starting cash balance and returns a
// copy of it. The session is visible to Submit as soon as Register returns.
// It panics if the id generator collides maxRegisterAttempts times in a row.
func (e *Engine) Register() *domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	for range maxRegisterAttempts {
		sess := domain.NewSession(e.newID(), e.startingCash, e.now())
		if err := e.sessions.Create(sess); err == nil {
			return sess.Clone()
		}
	}
	panic("engine: session id generator keeps colliding")
}

// Unregister removes a session. It returns domain.ErrUnknownSession if the
// session was already removed.
func (e *Engine) Unregister(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sessions.Delete(id)
}

// Lookup returns a copy of the session's ledger.
func (e *Engine) Lookup(id string) (*domain.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// SessionState returns the session's ledger and the market snapshot as of
// the same instant.
func (e *Engine) SessionState(id string) (*SessionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return &SessionState{
		Session: sess.Clone(),
		Market:  e.market.Snapshot(),
	}, nil
}

// SessionCount returns the number of registered sessions.
func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.sessions.Len()
}
