package service

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/efreitasn/tradingrelay/internal/domain"
	"github.com/efreitasn/tradingrelay/internal/engine"
)

// OrderAnnouncer relays a confirmed trade upstream. Implementations must
// not block and must not report failure to the caller.
type OrderAnnouncer interface {
	AnnounceOrder(conf *domain.Confirmation)
}

// SessionService runs the session protocol: it opens and closes sessions
// and dispatches each inbound client frame.
type SessionService struct {
	engine    *engine.Engine
	fanout    *Broadcaster
	announcer OrderAnnouncer
	logger    *slog.Logger
}

// NewSessionService creates a SessionService. announcer may be nil.
func NewSessionService(eng *engine.Engine, fanout *Broadcaster, announcer OrderAnnouncer, logger *slog.Logger) *SessionService {
	return &SessionService{
		engine:    eng,
		fanout:    fanout,
		announcer: announcer,
		logger:    logger,
	}
}

// Open registers a new session for t, attaches t to the fan-out, and queues
// the full state snapshot as the session's first frame.
func (s *SessionService) Open(t Transport) (*domain.Session, error) {
	sess := s.engine.Register()
	s.fanout.Attach(sess.SessionID, t)

	st, err := s.engine.SessionState(sess.SessionID)
	if err != nil {
		s.fanout.Detach(sess.SessionID)
		return nil, fmt.Errorf("load session state: %w", err)
	}
	if err := s.fanout.SendTo(sess.SessionID, newStateUpdate(st)); err != nil {
		_ = s.engine.Unregister(sess.SessionID)
		return nil, fmt.Errorf("send initial state: %w", err)
	}

	s.logger.Info("session opened",
		slog.String("session_id", sess.SessionID),
		slog.Int("sessions", s.engine.SessionCount()),
	)
	return sess, nil
}

// Close detaches and unregisters a session. Closing an already removed
// session is a no-op.
func (s *SessionService) Close(sessionID string) {
	s.fanout.Detach(sessionID)
	if err := s.engine.Unregister(sessionID); err != nil {
		if !errors.Is(err, domain.ErrUnknownSession) {
			s.logger.Error("session unregister failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
		}
		return
	}
	s.logger.Info("session closed",
		slog.String("session_id", sessionID),
		slog.Int("sessions", s.engine.SessionCount()),
	)
}

// Handle dispatches one inbound frame. Malformed frames are answered with an
// error frame and do not end the session. It returns domain.ErrUnknownSession
// once the session has been removed, which tells the caller to stop reading.
func (s *SessionService) Handle(sessionID string, frame []byte) error {
	msg, err := decodeClientMessage(frame)
	if err == nil {
		switch msg.Type {
		case typeOrder:
			err = s.submitOrder(sessionID, msg)
		default:
			err = &domain.ValidationError{Message: fmt.Sprintf("unknown message type: %q", msg.Type)}
		}
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		s.logger.Debug("bad client frame", slog.String("session_id", sessionID), slog.String("error", verr.Message))
		return s.reply(sessionID, newError(verr.Message, reasonBadRequest))
	}
	return err
}

// reply queues a private frame; only a vanished session is reported.
func (s *SessionService) reply(sessionID string, msg any) error {
	if err := s.fanout.SendTo(sessionID, msg); err != nil {
		if errors.Is(err, domain.ErrUnknownSession) || errors.Is(err, domain.ErrSessionQueueFull) {
			return domain.ErrUnknownSession
		}
		s.logger.Error("reply failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
	return nil
}
