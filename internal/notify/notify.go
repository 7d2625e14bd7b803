package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/partition"
)

// Event describes one step failure worth telling a human about: a failed
// attempt that will be retried, or a final failure after retries ran out.
type Event struct {
	Pipeline    string
	Step        string
	Date        time.Time
	Attempt     int
	MaxAttempts int
	Final       bool
	Err         error
}

// Subject renders a short one-line summary.
func (e Event) Subject() string {
	state := "retrying"
	if e.Final {
		state = "failed"
	}
	return fmt.Sprintf("[%s] step %s %s for %s (attempt %d/%d)",
		e.Pipeline, e.Step, state, partition.FormatDate(e.Date), e.Attempt, e.MaxAttempts)
}

// Body renders the full notification text.
func (e Event) Body() string {
	return fmt.Sprintf("%s\n\nerror: %v\n", e.Subject(), e.Err)
}

// Notifier delivers failure events to one channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event Event) error
}

// Nop is the default notifier when no channel is configured.
type Nop struct{}

func (Nop) Name() string                              { return "nop" }
func (Nop) Notify(ctx context.Context, _ Event) error { return nil }

// Multi fans an event out to several channels. Delivery errors are logged
// and swallowed: a broken notification channel must never fail the pipeline.
type Multi struct {
	channels []Notifier
}

// NewMulti combines the given channels into one notifier.
func NewMulti(channels ...Notifier) *Multi {
	return &Multi{channels: channels}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Notify(ctx context.Context, event Event) error {
	for _, ch := range m.channels {
		if err := ch.Notify(ctx, event); err != nil {
			logrus.Errorf("notifier %s failed to deliver %q: %v", ch.Name(), event.Subject(), err)
		}
	}
	return nil
}
