package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/notify"
	"github.com/chainlode/ethexport/internal/partition"
	"github.com/chainlode/ethexport/internal/pipeline"
	"github.com/chainlode/ethexport/internal/staging"
)

// PipelineName tags notification events from this scheduler.
const PipelineName = "ethereumetl_export"

// StepRunner executes one step for one logical date.
type StepRunner interface {
	ExecuteStep(ctx context.Context, step *pipeline.Step, date time.Time) error
}

// Policy is the uniform execution policy applied to every node: worker
// parallelism across independent nodes, a per-attempt timeout, and bounded
// retries with a fixed delay.
type Policy struct {
	Workers    int
	Timeout    time.Duration
	Retries    uint64
	RetryDelay time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.Workers <= 0 {
		p.Workers = 2
	}
	if p.Timeout <= 0 {
		p.Timeout = 15 * time.Hour
	}
	if p.RetryDelay <= 0 {
		p.RetryDelay = 5 * time.Minute
	}
	return p
}

// Scheduler drives a task graph: once for a single date, or daily as a
// daemon. It treats the graph as read-only and holds no business logic of
// its own.
type Scheduler struct {
	runner   StepRunner
	policy   Policy
	notifier notify.Notifier
}

// New creates a scheduler. A nil notifier disables notifications.
func New(runner StepRunner, policy Policy, notifier notify.Notifier) *Scheduler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Scheduler{runner: runner, policy: policy.withDefaults(), notifier: notifier}
}

// skipError marks a node that never ran because a producer failed. It is a
// symptom, not a root cause.
type skipError struct {
	upstream string
}

func (e *skipError) Error() string {
	return fmt.Sprintf("skipped due to upstream failure of %q", e.upstream)
}

type run struct {
	sched *Scheduler
	date  time.Time

	mu       sync.Mutex
	depCount map[*pipeline.Node]int
	failures map[*pipeline.Node]error

	ready chan *pipeline.Node
	wg    sync.WaitGroup
}

// RunOnce executes every node of the graph for one logical date. Nodes with
// no edge between them may run concurrently; a consumer starts only after
// all its producers succeeded. A node failure (after retries) skips its
// transitive dependents and is reported in the returned error; unrelated
// branches keep running.
func (s *Scheduler) RunOnce(ctx context.Context, g *pipeline.Graph, date time.Time) error {
	nodes := g.Nodes()
	logrus.Infof("running %s for %s: %d steps", PipelineName, partition.FormatDate(date), len(nodes))
	if len(nodes) == 0 {
		// All steps toggled off: a valid, trivially successful run.
		return nil
	}

	r := &run{
		sched:    s,
		date:     date,
		depCount: make(map[*pipeline.Node]int, len(nodes)),
		failures: make(map[*pipeline.Node]error, len(nodes)),
		ready:    make(chan *pipeline.Node, len(nodes)),
	}
	for _, n := range nodes {
		r.depCount[n] = len(n.Deps())
	}
	for _, n := range nodes {
		if r.depCount[n] == 0 {
			r.ready <- n
		}
	}

	r.wg.Add(len(nodes))
	for i := 0; i < s.policy.Workers; i++ {
		go r.worker(ctx)
	}
	r.wg.Wait()
	close(r.ready)

	return r.result()
}

func (r *run) worker(ctx context.Context) {
	for node := range r.ready {
		if ctx.Err() != nil {
			r.fail(node, ctx.Err())
			r.skipDependents(node)
			r.wg.Done()
			continue
		}

		if err := r.sched.runNode(ctx, node, r.date); err != nil {
			r.fail(node, err)
			r.skipDependents(node)
		} else {
			r.complete(node)
		}
		r.wg.Done()
	}
}

func (r *run) fail(node *pipeline.Node, err error) {
	r.mu.Lock()
	r.failures[node] = err
	r.mu.Unlock()
}

// complete marks node done and queues any dependent whose producers have all
// finished.
func (r *run) complete(node *pipeline.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, dep := range node.Dependents() {
		r.depCount[dep]--
		if r.depCount[dep] == 0 {
			r.ready <- dep
		}
	}
}

// skipDependents marks every transitive dependent of a failed node as
// skipped. They must not start with missing upstream data.
func (r *run) skipDependents(node *pipeline.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipLocked(node)
}

func (r *run) skipLocked(node *pipeline.Node) {
	for _, dep := range node.Dependents() {
		if _, already := r.failures[dep]; already {
			continue
		}
		logrus.Warnf("skipping step %s: upstream %s failed", dep.Name(), node.Name())
		r.failures[dep] = &skipError{upstream: node.Name()}
		r.wg.Done()
		r.skipLocked(dep)
	}
}

func (r *run) result() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []string
	var rootCause error
	for node, err := range r.failures {
		var skip *skipError
		if errors.As(err, &skip) {
			continue
		}
		failed = append(failed, node.Name())
		if rootCause == nil {
			rootCause = err
		}
	}
	if rootCause != nil {
		return fmt.Errorf("run for %s failed at %s: %w",
			partition.FormatDate(r.date), strings.Join(failed, ", "), rootCause)
	}
	return nil
}

// runNode executes one node with the per-attempt timeout and the bounded
// constant-delay retry policy, notifying on every failed attempt and again
// when retries are exhausted.
func (s *Scheduler) runNode(ctx context.Context, node *pipeline.Node, date time.Time) error {
	maxAttempts := int(s.policy.Retries) + 1
	attempt := 0

	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, s.policy.Timeout)
		err := s.runner.ExecuteStep(attemptCtx, node.Step, date)
		cancel()
		if err == nil {
			return nil
		}

		logrus.Errorf("step %s attempt %d/%d failed: %v", node.Name(), attempt, maxAttempts, err)
		final := attempt == maxAttempts
		if !final {
			s.notify(ctx, node, date, attempt, maxAttempts, false, err)
		}

		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		// Missing upstream data cannot heal by retrying: the producer
		// either never ran for this date or is disabled. Fail fast.
		var terr *staging.TransferError
		if errors.As(err, &terr) && terr.NotFound() {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.policy.RetryDelay), s.policy.Retries)
	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	if err != nil {
		s.notify(ctx, node, date, attempt, maxAttempts, true, err)
	}
	return err
}

func (s *Scheduler) notify(ctx context.Context, node *pipeline.Node, date time.Time, attempt, maxAttempts int, final bool, err error) {
	event := notify.Event{
		Pipeline:    PipelineName,
		Step:        node.Name(),
		Date:        date,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
		Final:       final,
		Err:         err,
	}
	if nerr := s.notifier.Notify(ctx, event); nerr != nil {
		logrus.Errorf("failed to send notification for %s: %v", node.Name(), nerr)
	}
}

// RunDaily triggers a run once per day at the given UTC wall-clock time
// ("15:04" format). A trigger firing on day D runs the logical date D-1,
// the day whose blocks are complete. Blocks until ctx is cancelled.
func (s *Scheduler) RunDaily(ctx context.Context, g *pipeline.Graph, at string) error {
	wall, err := time.Parse("15:04", at)
	if err != nil {
		return fmt.Errorf("invalid schedule time %q: %w", at, err)
	}

	for {
		next := NextTrigger(time.Now().UTC(), wall.Hour(), wall.Minute())
		logrus.Infof("next run at %s", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		date := next.AddDate(0, 0, -1).Truncate(24 * time.Hour)
		if err := s.RunOnce(ctx, g, date); err != nil {
			// Already notified per node; keep the daemon alive for the
			// next trigger.
			logrus.Errorf("daily run failed: %v", err)
		}
	}
}

// NextTrigger returns the first instant strictly after now that falls on the
// given UTC wall-clock time.
func NextTrigger(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
