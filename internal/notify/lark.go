package notify

import (
	"context"
	"fmt"

	"github.com/go-lark/lark"
)

// LarkNotifier delivers events through a Lark notification bot webhook.
type LarkNotifier struct {
	bot *lark.Bot
}

// NewLarkNotifier creates a Lark notifier for the given webhook URL.
func NewLarkNotifier(webhookURL string) *LarkNotifier {
	return &LarkNotifier{bot: lark.NewNotificationBot(webhookURL)}
}

func (n *LarkNotifier) Name() string { return "lark" }

func (n *LarkNotifier) Notify(ctx context.Context, event Event) error {
	msg := lark.NewMsgBuffer(lark.MsgText).Text(event.Body()).Build()
	if _, err := n.bot.PostNotificationV2(msg); err != nil {
		return fmt.Errorf("lark post: %w", err)
	}
	return nil
}
