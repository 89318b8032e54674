package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/service"
)

// MarketHandler serves the read-only market and session views.
type MarketHandler struct {
	market *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(market *service.MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

type quoteResponse struct {
	Symbol string      `json:"symbol"`
	Price  json.Number `json:"price"`
}

type marketResponse struct {
	MarketOpen bool            `json:"market_open"`
	Prices     []quoteResponse `json:"prices"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	Cash      json.Number      `json:"cash"`
	Portfolio map[string]int64 `json:"portfolio"`
	CreatedAt string           `json:"created_at"`
}

// GetMarket handles GET /market.
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	snap := h.market.Snapshot()

	prices := make([]quoteResponse, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		prices = append(prices, quoteResponse{Symbol: q.Symbol, Price: domain.JSONNumber(q.Price)})
	}

	WriteJSON(w, http.StatusOK, marketResponse{MarketOpen: snap.Open, Prices: prices})
}

// GetSession handles GET /sessions/{session_id}.
func (h *MarketHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	sess, err := h.market.Session(sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSession) {
			WriteError(w, http.StatusNotFound, "unknown_session", "Session not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	portfolio := make(map[string]int64, len(sess.Holdings))
	for sym, qty := range sess.Holdings {
		portfolio[sym] = qty
	}

	WriteJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.SessionID,
		Cash:      domain.JSONNumber(sess.Cash),
		Portfolio: portfolio,
		CreatedAt: sess.CreatedAt.UTC().Format(time.RFC3339),
	})
}
