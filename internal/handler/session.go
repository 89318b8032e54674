package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/service"
)

// maxFrameSize bounds a single inbound client frame.
const maxFrameSize = 64 * 1024

// SessionHandler upgrades /ws requests and runs one trading session per
// connection.
type SessionHandler struct {
	sessions     *service.SessionService
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	readTimeout  time.Duration
	logger       *slog.Logger
}

// NewSessionHandler creates a SessionHandler. A client that sends nothing,
// not even a pong, for readTimeout is dropped; pings go out every half of it.
func NewSessionHandler(sessions *service.SessionService, writeTimeout, readTimeout time.Duration, logger *slog.Logger) *SessionHandler {
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	return &SessionHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// No authentication; any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		readTimeout:  readTimeout,
		logger:       logger,
	}
}

// Serve handles GET /ws. The session lives until the client disconnects or
// its transport fails; either way it is unregistered on exit.
func (h *SessionHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Debug("session upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(maxFrameSize)

	sess, err := h.sessions.Open(&wsTransport{conn: conn, writeTimeout: h.writeTimeout})
	if err != nil {
		h.logger.Warn("session open failed", slog.String("error", err.Error()))
		_ = conn.Close()
		return
	}
	defer h.sessions.Close(sess.SessionID)

	_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	})
	done := make(chan struct{})
	defer close(done)
	go h.keepalive(conn, done)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("session disconnected",
					slog.String("session_id", sess.SessionID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		if err := h.sessions.Handle(sess.SessionID, frame); err != nil {
			if !errors.Is(err, domain.ErrUnknownSession) {
				h.logger.Error("session frame failed",
					slog.String("session_id", sess.SessionID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// keepalive pings the client until done is closed or a ping fails. A failed
// ping is left to the read deadline to act on.
func (h *SessionHandler) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(h.readTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.readTimeout / 2)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// wsTransport adapts a websocket connection to service.Transport. The
// broadcaster's pump is its only writer.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (t *wsTransport) WriteMessage(data []byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame when possible and then drops the connection.
// Safe to call concurrently with WriteMessage.
func (t *wsTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}
