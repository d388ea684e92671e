package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/caprisoft/storefront/internal/identity/domain"
	notification "github.com/caprisoft/storefront/internal/notification/domain"
	order "github.com/caprisoft/storefront/internal/order/domain"
)

type Sender interface {
	Send(ctx context.Context, msg notification.Message) error
}

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (domain.User, error)
}

type Service struct {
	log    *slog.Logger
	sender Sender
	users  UserRepository
}

func NewService(log *slog.Logger, sender Sender, users UserRepository) *Service {
	return &Service{log: log, sender: sender, users: users}
}

// Deliver is best effort: a failed send is logged and dropped.
func (s *Service) Deliver(ctx context.Context, msg notification.Message) {
	if err := s.sender.Send(ctx, msg); err != nil {
		s.log.Error("notification delivery failed", "message_id", msg.ID, "to", msg.To, "err", err)
		return
	}
	s.log.Info("notification delivered", "message_id", msg.ID, "to", msg.To)
}

// HandleOrderEvent turns an order event into a message for the order owner.
// Unknown event types are ignored. Errors cover decoding and recipient lookup
// only; delivery failures never surface.
func (s *Service) HandleOrderEvent(ctx context.Context, eventType string, payload []byte) error {
	var (
		userID int64
		build  func(to string) notification.Message
	)
	switch eventType {
	case order.EventOrderCreated:
		var ev order.OrderCreated
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		userID = ev.UserID
		build = func(to string) notification.Message { return notification.OrderPlaced(to, ev) }
	case order.EventOrderCancelled:
		var ev order.OrderCancelled
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		userID = ev.UserID
		build = func(to string) notification.Message { return notification.OrderCancelled(to, ev) }
	case order.EventOrderStatusChanged:
		var ev order.OrderStatusChanged
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", eventType, err)
		}
		userID = ev.UserID
		build = func(to string) notification.Message { return notification.OrderStatusChanged(to, ev) }
	default:
		s.log.Debug("event ignored", "type", eventType)
		return nil
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find recipient %d: %w", userID, err)
	}
	s.Deliver(ctx, build(u.Email))
	return nil
}

// ResetMailer sends password reset links through a Service.
type ResetMailer struct {
	svc     *Service
	baseURL string
}

// NewResetMailer builds links of the form <baseURL>/reset-password?token=<token>.
func NewResetMailer(svc *Service, baseURL string) *ResetMailer {
	return &ResetMailer{svc: svc, baseURL: strings.TrimRight(baseURL, "/")}
}

func (m *ResetMailer) SendPasswordReset(ctx context.Context, to, token string) {
	link := m.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	m.svc.Deliver(ctx, notification.PasswordReset(to, link))
}
