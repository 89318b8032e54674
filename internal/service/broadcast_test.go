package service

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/engine"
	"github.com/efreitasn/tradingrelay/internal/store"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeTransport records written frames. With fail set every write errors;
// with block set writes hang until Close.
type fakeTransport struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu    sync.Mutex
	fail  bool
	block bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeTransport) WriteMessage(data []byte) error {
	f.mu.Lock()
	fail, block := f.fail, f.block
	f.mu.Unlock()

	if block {
		<-f.closed
		return errBrokenPipe
	}
	if fail {
		return errBrokenPipe
	}
	select {
	case <-f.closed:
		return errBrokenPipe
	default:
	}
	f.frames <- data
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// nextFrame waits for the next written frame and decodes it.
func nextFrame(t *testing.T, f *fakeTransport) map[string]any {
	t.Helper()
	select {
	case data := <-f.frames:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode frame %s: %v", data, err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return nil
}

// noFrame asserts nothing is written within a short window.
func noFrame(t *testing.T, f *fakeTransport) {
	t.Helper()
	select {
	case data := <-f.frames:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine() *engine.Engine {
	return engine.NewEngine(store.NewMarketStore(), store.NewSessionStore(), decimal.NewFromInt(10000))
}

func TestBroadcast_DeliversToAll(t *testing.T) {
	eng := newTestEngine()
	b := NewBroadcaster(eng, 16, newTestLogger())
	defer b.CloseAll()

	transports := make([]*fakeTransport, 3)
	for i := range transports {
		transports[i] = newFakeTransport()
		b.Attach(eng.Register().SessionID, transports[i])
	}

	b.Broadcast(map[string]string{"type": "price_update", "symbol": "AAPL"})

	for i, ft := range transports {
		m := nextFrame(t, ft)
		if m["symbol"] != "AAPL" {
			t.Errorf("transport %d got %v", i, m)
		}
	}
}

func TestBroadcast_FailingTransportRemovedOthersUnaffected(t *testing.T) {
	eng := newTestEngine()
	b := NewBroadcaster(eng, 16, newTestLogger())
	defer b.CloseAll()

	good := newFakeTransport()
	bad := newFakeTransport()
	bad.setFail(true)

	goodSess := eng.Register()
	badSess := eng.Register()
	b.Attach(goodSess.SessionID, good)
	b.Attach(badSess.SessionID, bad)

	b.Broadcast(map[string]string{"type": "price_update", "symbol": "AAPL"})
	nextFrame(t, good)

	eventually(t, func() bool {
		_, err := eng.Lookup(badSess.SessionID)
		return errors.Is(err, domain.ErrUnknownSession)
	}, "failing session removed from registry")

	if !bad.isClosed() {
		t.Error("failing transport should be closed")
	}
	if b.Count() != 1 {
		t.Errorf("Count() = %d, want 1", b.Count())
	}
	if _, err := eng.Lookup(goodSess.SessionID); err != nil {
		t.Errorf("healthy session lost: %v", err)
	}

	b.Broadcast(map[string]string{"type": "price_update", "symbol": "MSFT"})
	if m := nextFrame(t, good); m["symbol"] != "MSFT" {
		t.Errorf("got %v, want MSFT frame", m)
	}
}

func TestBroadcast_SlowTransportDoesNotDelayOthers(t *testing.T) {
	eng := newTestEngine()
	b := NewBroadcaster(eng, 2, newTestLogger())
	defer b.CloseAll()

	fast := newFakeTransport()
	slow := newFakeTransport()
	slow.block = true

	fastSess := eng.Register()
	slowSess := eng.Register()
	b.Attach(fastSess.SessionID, fast)
	b.Attach(slowSess.SessionID, slow)

	// Each frame reaches the fast session while the slow one is stuck.
	start := time.Now()
	for i := 0; i < 10; i++ {
		b.Broadcast(map[string]int{"seq": i})
		m := nextFrame(t, fast)
		if int(m["seq"].(float64)) != i {
			t.Fatalf("frame %d out of order: %v", i, m)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("fast session delayed by slow transport: %v", elapsed)
	}

	eventually(t, func() bool {
		_, err := eng.Lookup(slowSess.SessionID)
		return errors.Is(err, domain.ErrUnknownSession)
	}, "slow session removed once its queue overflowed")
	if !slow.isClosed() {
		t.Error("slow transport should be closed")
	}
}

func TestSendTo_OnlyTarget(t *testing.T) {
	eng := newTestEngine()
	b := NewBroadcaster(eng, 16, newTestLogger())
	defer b.CloseAll()

	a, other := newFakeTransport(), newFakeTransport()
	aSess := eng.Register()
	b.Attach(aSess.SessionID, a)
	b.Attach(eng.Register().SessionID, other)

	if err := b.SendTo(aSess.SessionID, map[string]string{"type": "order_confirmation"}); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	if m := nextFrame(t, a); m["type"] != "order_confirmation" {
		t.Errorf("got %v", m)
	}
	noFrame(t, other)
}

func TestSendTo_UnknownSession(t *testing.T) {
	b := NewBroadcaster(nil, 16, newTestLogger())
	if err := b.SendTo("missing", map[string]string{}); !errors.Is(err, domain.ErrUnknownSession) {
		t.Errorf("got %v, want ErrUnknownSession", err)
	}
}

func TestAttach_ReplacesExisting(t *testing.T) {
	b := NewBroadcaster(nil, 16, newTestLogger())
	defer b.CloseAll()

	first, second := newFakeTransport(), newFakeTransport()
	b.Attach("s-1", first)
	b.Attach("s-1", second)

	if !first.isClosed() {
		t.Error("replaced transport should be closed")
	}
	if b.Count() != 1 {
		t.Errorf("Count() = %d, want 1", b.Count())
	}
	_ = b.SendTo("s-1", map[string]string{"type": "x"})
	nextFrame(t, second)
}

func TestDetach_ClosesWithoutUnregistering(t *testing.T) {
	eng := newTestEngine()
	b := NewBroadcaster(eng, 16, newTestLogger())
	sess := eng.Register()
	ft := newFakeTransport()
	b.Attach(sess.SessionID, ft)

	if !b.Detach(sess.SessionID) {
		t.Fatal("Detach returned false for attached session")
	}
	if b.Detach(sess.SessionID) {
		t.Error("second Detach returned true")
	}
	if !ft.isClosed() {
		t.Error("detached transport should be closed")
	}
	if _, err := eng.Lookup(sess.SessionID); err != nil {
		t.Errorf("Detach must leave the registry alone: %v", err)
	}
}

func TestCloseAll(t *testing.T) {
	b := NewBroadcaster(nil, 16, newTestLogger())
	ts := []*fakeTransport{newFakeTransport(), newFakeTransport()}
	b.Attach("a", ts[0])
	b.Attach("b", ts[1])

	b.CloseAll()

	for i, ft := range ts {
		if !ft.isClosed() {
			t.Errorf("transport %d not closed", i)
		}
	}
	if b.Count() != 0 {
		t.Errorf("Count() = %d, want 0", b.Count())
	}
}
