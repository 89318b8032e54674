package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/tradingrelay/internal/domain"
)

// MinReconnectDelay is the floor between two dial attempts.
const MinReconnectDelay = 100 * time.Millisecond

// ConnState is the gateway's position in its connection state machine:
// Disconnected → Connecting → Connected → Disconnected.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// EventSink receives every decoded feed event.
type EventSink interface {
	Publish(ev domain.MarketEvent)
}

// Config holds the gateway's connection settings.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	OutboundQueue  int
}

// Gateway holds one logical connection to the upstream feed. Inbound events
// go to the sink; confirmed trades are relayed upstream as order_placed.
type Gateway struct {
	cfg    Config
	sink   EventSink
	logger *slog.Logger
	dialer *websocket.Dialer

	state    atomic.Int32
	outbound chan []byte
	attempts atomic.Int64

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewGateway creates a gateway. A ReconnectDelay below MinReconnectDelay is
// raised to it.
func NewGateway(cfg Config, sink EventSink, logger *slog.Logger) *Gateway {
	if cfg.ReconnectDelay < MinReconnectDelay {
		cfg.ReconnectDelay = MinReconnectDelay
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.OutboundQueue < 1 {
		cfg.OutboundQueue = 64
	}
	return &Gateway{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		outbound: make(chan []byte, cfg.OutboundQueue),
	}
}

// State returns the current connection state.
func (g *Gateway) State() ConnState {
	return ConnState(g.state.Load())
}

// Attempts returns the number of dial attempts made so far.
func (g *Gateway) Attempts() int64 {
	return g.attempts.Load()
}

func (g *Gateway) setState(s ConnState) {
	g.state.Store(int32(s))
}

// Run dials, serves, and redials until ctx is cancelled. Consecutive dial
// attempts start at least ReconnectDelay apart.
func (g *Gateway) Run(ctx context.Context) {
	defer g.setState(StateDisconnected)

	var lastAttempt time.Time
	failures := 0
	for {
		if !lastAttempt.IsZero() {
			if wait := g.cfg.ReconnectDelay - time.Since(lastAttempt); wait > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
				}
			}
		}
		if ctx.Err() != nil {
			return
		}

		lastAttempt = time.Now()
		g.attempts.Add(1)
		g.setState(StateConnecting)

		conn, _, err := g.dialer.DialContext(ctx, g.cfg.URL, nil)
		if err != nil {
			g.setState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			failures++
			g.logger.Warn("feed connection failed",
				slog.String("url", g.cfg.URL),
				slog.Int("retry", failures),
				slog.String("error", err.Error()),
			)
			continue
		}

		failures = 0
		g.logger.Info("feed connected", slog.String("url", g.cfg.URL))
		err = g.serve(ctx, conn)
		g.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		g.logger.Warn("feed disconnected", slog.String("url", g.cfg.URL), slog.String("error", err.Error()))
	}
}

// serve runs one connection until it breaks or ctx is cancelled.
func (g *Gateway) serve(ctx context.Context, conn *websocket.Conn) error {
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
	g.setState(StateConnected)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"), deadline)
			_ = conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer wg.Done()
		g.writeLoop(conn, done)
	}()

	err := g.readLoop(conn)

	g.mu.Lock()
	g.conn = nil
	g.mu.Unlock()
	close(done)
	_ = conn.Close()
	wg.Wait()
	return err
}

func (g *Gateway) readLoop(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(g.cfg.ReadTimeout))

		for _, frame := range splitFrames(msg) {
			ev, err := decodeEvent(frame)
			if err != nil {
				if errors.Is(err, errEchoFrame) {
					g.logger.Debug("ignoring echoed order_placed frame")
					continue
				}
				g.logger.Warn("dropping malformed feed event",
					slog.String("error", err.Error()),
					slog.String("payload", truncate(frame, 256)),
				)
				continue
			}
			g.sink.Publish(ev)
		}
	}
}

// writeLoop is the connection's only writer: queued announcements and
// keepalive pings. A failed write closes the connection so Run redials.
func (g *Gateway) writeLoop(conn *websocket.Conn, done <-chan struct{}) {
	interval := g.cfg.ReadTimeout / 2
	if interval <= 0 {
		interval = g.cfg.ReadTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-g.outbound:
			_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				g.logger.Warn("order relay failed", slog.String("error", err.Error()))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(g.cfg.WriteTimeout)); err != nil {
				g.logger.Warn("feed ping failed", slog.String("error", err.Error()))
				_ = conn.Close()
				return
			}
		}
	}
}

// AnnounceOrder queues an order_placed frame for the upstream feed. It never
// blocks; when the feed is down or the queue is full the frame is dropped
// and logged.
func (g *Gateway) AnnounceOrder(conf *domain.Confirmation) {
	data, err := encodeOrderPlaced(conf)
	if err != nil {
		g.logger.Warn("order relay failed", slog.String("order_id", conf.OrderID), slog.String("error", err.Error()))
		return
	}
	if g.State() != StateConnected {
		g.logger.Warn("order relay failed",
			slog.String("order_id", conf.OrderID),
			slog.String("error", domain.ErrNotConnected.Error()),
		)
		return
	}
	select {
	case g.outbound <- data:
	default:
		g.logger.Warn("order relay failed",
			slog.String("order_id", conf.OrderID),
			slog.String("error", "outbound queue full"),
		)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
