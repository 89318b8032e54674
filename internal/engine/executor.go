package engine

import (
	"math"

	"github.com/efreitasn/tradingrelay/internal/domain"
)

// Submit validates and executes an order for one session against the
// current market price.
//
// Validation short-circuits in this order: market open, symbol known,
// quantity positive, then funds (buy) or shares (sell). A rejection is
// returned as *domain.RejectionError and leaves the ledger untouched.
//
// The state lock is held from the first check to the last mutation, so no
// other order or price update can be observed mid-validation.
func (e *Engine) Submit(sessionID string, req domain.OrderRequest) (*domain.Confirmation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if req.Action != domain.OrderActionBuy && req.Action != domain.OrderActionSell {
		return nil, domain.ErrUnknownAction
	}

	// Step 1: Market open.
	if !e.market.IsOpen() {
		return nil, domain.Reject(domain.ReasonMarketClosed, req.Symbol)
	}

	// Step 2: Symbol known.
	price, ok := e.market.Price(req.Symbol)
	if !ok {
		return nil, domain.Reject(domain.ReasonUnknownSymbol, req.Symbol)
	}

	// Step 3: Quantity positive.
	if req.Quantity <= 0 {
		return nil, domain.Reject(domain.ReasonInvalidQuantity, req.Symbol)
	}

	notional := domain.Notional(price, req.Quantity)

	// Steps 4 and 5: funds or shares, then mutate.
	switch req.Action {
	case domain.OrderActionBuy:
		if sess.Cash.LessThan(notional) {
			return nil, domain.Reject(domain.ReasonInsufficientFunds, req.Symbol)
		}
		// A zero price passes any funds check; holdings must still fit.
		if sess.Quantity(req.Symbol) > math.MaxInt64-req.Quantity {
			return nil, domain.Reject(domain.ReasonInvalidQuantity, req.Symbol)
		}
		sess.Cash = sess.Cash.Sub(notional)
		sess.Holdings[req.Symbol] += req.Quantity
	case domain.OrderActionSell:
		if sess.Quantity(req.Symbol) < req.Quantity {
			return nil, domain.Reject(domain.ReasonInsufficientShares, req.Symbol)
		}
		sess.Cash = sess.Cash.Add(notional)
		sess.Holdings[req.Symbol] -= req.Quantity
		if sess.Holdings[req.Symbol] == 0 {
			delete(sess.Holdings, req.Symbol)
		}
	}

	ledger := sess.Clone()
	return &domain.Confirmation{
		OrderID:    e.newID(),
		SessionID:  sessionID,
		Action:     req.Action,
		Symbol:     req.Symbol,
		Quantity:   req.Quantity,
		Price:      price,
		Cash:       ledger.Cash,
		Holdings:   ledger.Holdings,
		ExecutedAt: e.now(),
	}, nil
}
