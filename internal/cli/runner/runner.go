package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/config"
	"github.com/chainlode/ethexport/internal/extract"
	"github.com/chainlode/ethexport/internal/notify"
	"github.com/chainlode/ethexport/internal/partition"
	"github.com/chainlode/ethexport/internal/pipeline"
	"github.com/chainlode/ethexport/internal/scheduler"
	"github.com/chainlode/ethexport/internal/staging"
	"github.com/chainlode/ethexport/internal/storage"
)

// storageRetries bounds transient store fault retries inside a single step
// attempt; the scheduler's task-level retry policy sits above this.
const (
	storageRetries    = 3
	storageRetryDelay = 5 * time.Second
)

// Runner wires configuration into a runnable pipeline: storage client,
// transfer layer, extractor, task graph and scheduler.
type Runner struct {
	cfg *config.Config
}

// New creates a runner over a loaded configuration.
func New(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// BuildGraph constructs the task graph for the configured toggles.
func (r *Runner) BuildGraph() (*pipeline.Graph, error) {
	steps := pipeline.CanonicalSteps(pipeline.ExportOptions{
		ProviderURI:         r.cfg.ProviderURI,
		ProviderURIArchival: r.cfg.ProviderURIArchival,
		BatchSize:           r.cfg.BatchSize,
		MaxWorkers:          r.cfg.MaxWorkers,
		GenesisTraces:       r.cfg.GenesisTraces,
		DaoforkTraces:       r.cfg.DaoforkTraces,
	})
	return pipeline.Build(steps, r.cfg.Toggles)
}

// DescribeGraph renders the graph one node per line, producers first, for
// dry runs.
func (r *Runner) DescribeGraph() (string, error) {
	g, err := r.BuildGraph()
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d steps, %d edges\n", len(g.Nodes()), g.EdgeCount())
	for _, node := range g.Nodes() {
		if deps := node.Deps(); len(deps) > 0 {
			names := make([]string, len(deps))
			for i, d := range deps {
				names[i] = d.Name()
			}
			fmt.Fprintf(&b, "  %s  (after %s)\n", node.Name(), strings.Join(names, ", "))
		} else {
			fmt.Fprintf(&b, "  %s\n", node.Name())
		}
	}
	return b.String(), nil
}

func (r *Runner) notifier() notify.Notifier {
	var channels []notify.Notifier
	if r.cfg.SendGridAPIKey != "" && len(r.cfg.NotificationEmails) > 0 {
		channels = append(channels, notify.NewEmailNotifier(r.cfg.SendGridAPIKey, r.cfg.EmailFrom, r.cfg.NotificationEmails))
	}
	if r.cfg.SlackToken != "" && len(r.cfg.SlackChannels) > 0 {
		channels = append(channels, notify.NewSlackNotifier(r.cfg.SlackToken, r.cfg.SlackChannels))
	}
	if r.cfg.LarkWebhookURL != "" {
		channels = append(channels, notify.NewLarkNotifier(r.cfg.LarkWebhookURL))
	}
	if len(r.cfg.WebhookURLs) > 0 {
		channels = append(channels, notify.NewWebhookNotifier(r.cfg.WebhookURLs))
	}
	if len(channels) == 0 {
		return notify.Nop{}
	}
	return notify.NewMulti(channels...)
}

func (r *Runner) scheduler(ctx context.Context) (*scheduler.Scheduler, func(), error) {
	store, err := storage.New(ctx, storage.Config{
		Type:            r.cfg.StorageType,
		Region:          r.cfg.StorageRegion,
		LocalPath:       r.cfg.StorageLocalPath,
		CredentialsFile: r.cfg.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating storage client")
	}
	cleanup := func() {
		if cerr := store.Close(); cerr != nil {
			logrus.Warnf("closing storage client: %v", cerr)
		}
	}

	retried := storage.WithRetry(store, storage.RetryPolicy{
		MaxRetries: storageRetries,
		Delay:      storageRetryDelay,
	})
	transfer := staging.NewTransfer(retried, r.cfg.OutputBucket)
	executor := pipeline.NewExecutor(transfer, extract.NewCLIExtractor(r.cfg.EthereumETLBin))

	policy := scheduler.Policy{
		Workers:    r.cfg.SchedulerWorkers,
		Timeout:    r.cfg.TaskTimeout,
		Retries:    uint64(r.cfg.TaskRetries),
		RetryDelay: r.cfg.TaskRetryDelay,
	}
	return scheduler.New(executor, policy, r.notifier()), cleanup, nil
}

// RunDate executes one full pipeline run for the given logical date.
func (r *Runner) RunDate(ctx context.Context, date time.Time) error {
	g, err := r.BuildGraph()
	if err != nil {
		return err
	}

	s, cleanup, err := r.scheduler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return s.RunOnce(ctx, g, date)
}

// Backfill re-runs every date from start to end inclusive, oldest first.
// Each date overwrites its own partitions, so repeating a backfill is safe.
func (r *Runner) Backfill(ctx context.Context, start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("backfill end %s before start %s",
			partition.FormatDate(end), partition.FormatDate(start))
	}

	g, err := r.BuildGraph()
	if err != nil {
		return err
	}

	s, cleanup, err := r.scheduler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		logrus.Infof("backfilling %s", partition.FormatDate(date))
		if err := s.RunOnce(ctx, g, date); err != nil {
			return errors.Wrapf(err, "backfill stopped at %s", partition.FormatDate(date))
		}
	}
	return nil
}

// Schedule runs the daily trigger daemon until ctx is cancelled.
func (r *Runner) Schedule(ctx context.Context) error {
	g, err := r.BuildGraph()
	if err != nil {
		return err
	}

	s, cleanup, err := r.scheduler(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	return s.RunDaily(ctx, g, r.cfg.ScheduleAt)
}
