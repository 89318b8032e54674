package handler

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradingrelay/internal/feed"
	"github.com/efreitasn/tradingrelay/internal/service"
)

// FeedMonitor reports the upstream feed connection state.
type FeedMonitor interface {
	State() feed.ConnState
}

// NewRouter creates a chi router with the session endpoint and the
// read-only views registered, plus request logging.
func NewRouter(
	sessionSvc *service.SessionService,
	marketSvc *service.MarketService,
	feedMon FeedMonitor,
	writeTimeout time.Duration,
	sessionTimeout time.Duration,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogging(logger))

	sessionH := NewSessionHandler(sessionSvc, writeTimeout, sessionTimeout, logger)
	marketH := NewMarketHandler(marketSvc)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Feed: feedMon.State().String()})
	})

	// Session endpoint.
	r.Get("/ws", sessionH.Serve)

	// Read-only views.
	r.Get("/market", marketH.GetMarket)
	r.Get("/sessions/{session_id}", marketH.GetSession)

	return r
}

type healthResponse struct {
	Status string `json:"status"`
	Feed   string `json:"feed"`
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code. It
// passes Hijack through so the session endpoint can upgrade.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
