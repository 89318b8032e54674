package service

import (
	"errors"
	"log/slog"

	"github.com/efreitasn/tradingrelay/internal/domain"
)

// submitOrder executes one client order and replies to the originator.
// The confirmation is queued only after the engine has applied the fill;
// the upstream announcement follows and never affects the reply. A frame
// that is not an order at all comes back as *domain.ValidationError.
func (s *SessionService) submitOrder(sessionID string, msg clientMessage) error {
	req, err := msg.orderRequest()
	if err != nil {
		return err
	}

	conf, err := s.engine.Submit(sessionID, req)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSession) {
			return err
		}
		if reason, ok := domain.ReasonOf(err); ok {
			s.logger.Debug("order rejected",
				slog.String("session_id", sessionID),
				slog.String("reason", string(reason)),
				slog.String("action", string(req.Action)),
				slog.String("symbol", req.Symbol),
				slog.Int64("quantity", req.Quantity),
			)
			return s.reply(sessionID, newError(err.Error(), string(reason)))
		}
		return s.reply(sessionID, newError(err.Error(), reasonBadRequest))
	}

	s.logger.Info("order confirmed",
		slog.String("session_id", sessionID),
		slog.String("order_id", conf.OrderID),
		slog.String("action", string(conf.Action)),
		slog.String("symbol", conf.Symbol),
		slog.Int64("quantity", conf.Quantity),
		slog.String("price", conf.Price.String()),
	)

	replyErr := s.reply(sessionID, newConfirmation(conf))
	if s.announcer != nil {
		s.announcer.AnnounceOrder(conf)
	}
	return replyErr
}
