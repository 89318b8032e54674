package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/efreitasn/tradingrelay/internal/domain"
)

// Transport is the write side of one session connection.
type Transport interface {
	WriteMessage(data []byte) error
	Close() error
}

// SessionRemover removes a session from the registry. The engine
// implements it.
type SessionRemover interface {
	Unregister(id string) error
}

// peer is one attached session: a bounded outbound queue drained by a
// dedicated writer goroutine, so a slow transport never stalls the others.
type peer struct {
	id        string
	transport Transport
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (p *peer) stop() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.transport.Close()
	})
}

// Broadcaster delivers frames to session transports. A failed or full
// transport is detached, closed, and removed from the registry; the failure
// never reaches the caller's other deliveries.
type Broadcaster struct {
	mu        sync.RWMutex
	peers     map[string]*peer
	remover   SessionRemover
	queueSize int
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewBroadcaster creates a Broadcaster. queueSize bounds each session's
// pending frames; remover may be nil.
func NewBroadcaster(remover SessionRemover, queueSize int, logger *slog.Logger) *Broadcaster {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Broadcaster{
		peers:     make(map[string]*peer),
		remover:   remover,
		queueSize: queueSize,
		logger:    logger,
	}
}

// Attach registers a transport for sessionID and starts its writer.
// An existing transport for the same ID is replaced and closed.
func (b *Broadcaster) Attach(sessionID string, t Transport) {
	p := &peer{
		id:        sessionID,
		transport: t,
		queue:     make(chan []byte, b.queueSize),
		done:      make(chan struct{}),
	}

	b.mu.Lock()
	old := b.peers[sessionID]
	b.peers[sessionID] = p
	b.mu.Unlock()

	if old != nil {
		old.stop()
	}

	b.wg.Add(1)
	go b.pump(p)
}

// Detach stops and closes the transport for sessionID. It does not touch
// the registry. Returns false if nothing was attached.
func (b *Broadcaster) Detach(sessionID string) bool {
	b.mu.Lock()
	p, ok := b.peers[sessionID]
	if ok {
		delete(b.peers, sessionID)
	}
	b.mu.Unlock()

	if ok {
		p.stop()
	}
	return ok
}

// Count returns the number of attached transports.
func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.peers)
}

// Broadcast encodes msg once and queues it for every attached session.
func (b *Broadcaster) Broadcast(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("broadcast encode failed", slog.String("error", err.Error()))
		return
	}

	var failed []*peer
	b.mu.RLock()
	for _, p := range b.peers {
		if !p.enqueue(data) {
			failed = append(failed, p)
		}
	}
	b.mu.RUnlock()

	for _, p := range failed {
		b.fail(p, domain.ErrSessionQueueFull)
	}
}

// SendTo queues msg for one session. A non-nil error means the frame was
// not queued; any transport failure has already been handled.
func (b *Broadcaster) SendTo(sessionID string, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	b.mu.RLock()
	p, ok := b.peers[sessionID]
	b.mu.RUnlock()
	if !ok {
		return domain.ErrUnknownSession
	}

	if !p.enqueue(data) {
		b.fail(p, domain.ErrSessionQueueFull)
		return domain.ErrSessionQueueFull
	}
	return nil
}

// CloseAll detaches every transport and waits for the writers to exit.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	peers := b.peers
	b.peers = make(map[string]*peer)
	b.mu.Unlock()

	for _, p := range peers {
		p.stop()
	}
	b.wg.Wait()
}

// enqueue is non-blocking; false means the queue is full or the peer stopped.
func (p *peer) enqueue(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.queue <- data:
		return true
	default:
		return false
	}
}

func (b *Broadcaster) pump(p *peer) {
	defer b.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case data := <-p.queue:
			if err := p.transport.WriteMessage(data); err != nil {
				b.fail(p, err)
				return
			}
		}
	}
}

// fail detaches a broken peer and drops its session from the registry.
func (b *Broadcaster) fail(p *peer, cause error) {
	b.mu.Lock()
	current, ok := b.peers[p.id]
	if ok && current == p {
		delete(b.peers, p.id)
	}
	b.mu.Unlock()

	p.stop()

	if !ok || current != p {
		return
	}
	b.logger.Warn("session transport failed",
		slog.String("session_id", p.id),
		slog.String("error", cause.Error()),
	)
	if b.remover == nil {
		return
	}
	if err := b.remover.Unregister(p.id); err != nil && !errors.Is(err, domain.ErrUnknownSession) {
		b.logger.Error("session removal failed", slog.String("session_id", p.id), slog.String("error", err.Error()))
	}
}
