package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailNotifier delivers events by email through SendGrid, one message per
// recipient.
type EmailNotifier struct {
	client *sendgrid.Client
	from   string
	to     []string
}

// NewEmailNotifier creates a SendGrid backed email notifier.
func NewEmailNotifier(apiKey, from string, to []string) *EmailNotifier {
	return &EmailNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Notify(ctx context.Context, event Event) error {
	from := mail.NewEmail("ethexport", n.from)
	for _, recipient := range n.to {
		message := mail.NewSingleEmail(from, event.Subject(), mail.NewEmail("", recipient), event.Body(), "")
		resp, err := n.client.SendWithContext(ctx, message)
		if err != nil {
			return fmt.Errorf("sendgrid send to %s: %w", recipient, err)
		}
		if resp.StatusCode >= 400 {
			return fmt.Errorf("sendgrid send to %s: status %d", recipient, resp.StatusCode)
		}
	}
	return nil
}
