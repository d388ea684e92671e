package domain

import (
	"fmt"
	"html"

	"github.com/google/uuid"

	identity "github.com/caprisoft/storefront/internal/identity/domain"
	order "github.com/caprisoft/storefront/internal/order/domain"
)

// Message is one outgoing email.
type Message struct {
	ID      string
	To      string
	Subject string
	Text    string
	HTML    string
}

func newMessage(to, subject, text string) Message {
	return Message{
		ID:      uuid.NewString(),
		To:      to,
		Subject: subject,
		Text:    text,
		HTML:    "<p>" + html.EscapeString(text) + "</p>",
	}
}

func OrderPlaced(to string, ev order.OrderCreated) Message {
	return newMessage(to,
		fmt.Sprintf("Order %s received", ev.OrderNumber),
		fmt.Sprintf("We received your order %s with %d item(s). Total: %s.", ev.OrderNumber, len(ev.Items), ev.Total))
}

func OrderCancelled(to string, ev order.OrderCancelled) Message {
	return newMessage(to,
		fmt.Sprintf("Order %s cancelled", ev.OrderNumber),
		fmt.Sprintf("Your order %s was cancelled. Reason: %s.", ev.OrderNumber, ev.Reason))
}

func OrderStatusChanged(to string, ev order.OrderStatusChanged) Message {
	return newMessage(to,
		fmt.Sprintf("Order %s is now %s", ev.OrderNumber, ev.To.DisplayName()),
		fmt.Sprintf("Your order %s moved from %s to %s.", ev.OrderNumber, ev.From.DisplayName(), ev.To.DisplayName()))
}

func PasswordReset(to, link string) Message {
	return newMessage(to,
		"Reset your password",
		fmt.Sprintf("Use this link within %d minutes to choose a new password: %s", int(identity.ResetTokenTTL.Minutes()), link))
}
