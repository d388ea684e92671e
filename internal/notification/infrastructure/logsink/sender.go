package logsink

import (
	"context"
	"log/slog"

	"github.com/caprisoft/storefront/internal/notification/domain"
)

// Sender writes messages to the log instead of sending them. Used when no
// mail provider is configured.
type Sender struct {
	log *slog.Logger
}

func NewSender(log *slog.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(_ context.Context, msg domain.Message) error {
	s.log.Info("email", "message_id", msg.ID, "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}
