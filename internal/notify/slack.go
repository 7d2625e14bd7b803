package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts events to one or more Slack channels.
type SlackNotifier struct {
	client   *slack.Client
	channels []string
}

// NewSlackNotifier creates a Slack notifier using a bot token.
func NewSlackNotifier(token string, channels []string) *SlackNotifier {
	return &SlackNotifier{
		client:   slack.New(token),
		channels: channels,
	}
}

func (n *SlackNotifier) Name() string { return "slack" }

func (n *SlackNotifier) Notify(ctx context.Context, event Event) error {
	text := fmt.Sprintf(":rotating_light: %s\n```%v```", event.Subject(), event.Err)
	for _, channel := range n.channels {
		_, _, err := n.client.PostMessageContext(ctx, channel,
			slack.MsgOptionText(text, false))
		if err != nil {
			return fmt.Errorf("slack post to %s: %w", channel, err)
		}
	}
	return nil
}
