package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/extract"
	"github.com/chainlode/ethexport/internal/staging"
)

// Executor runs one step end to end: workspace, fetches, sub-operations,
// publishes. It holds the injected collaborators and no per-run state, so a
// single Executor serves concurrent step invocations.
type Executor struct {
	transfer *staging.Transfer
	extract  extract.Extractor
}

// NewExecutor creates an executor over the given transfer layer and
// extraction collaborator.
func NewExecutor(transfer *staging.Transfer, extractor extract.Extractor) *Executor {
	return &Executor{transfer: transfer, extract: extractor}
}

// ExecuteStep runs step for the given logical date.
//
// The workspace is released on every exit path, including cancellation, and
// nothing is published until every sub-operation has succeeded, so a failed
// invocation leaves the partition exactly as it found it. Re-running is
// idempotent because publish overwrites.
func (e *Executor) ExecuteStep(ctx context.Context, step *Step, date time.Time) error {
	started := time.Now()
	logrus.Infof("step %s starting for %s", step.Name, date.Format("2006-01-02"))

	ws, err := staging.NewWorkspace(step.Name)
	if err != nil {
		return errors.Wrapf(err, "step %s", step.Name)
	}
	defer ws.Release()

	for _, in := range step.Inputs {
		if err := e.transfer.Fetch(ctx, in.Kind, date, ws.Path(in.File)); err != nil {
			return errors.Wrapf(err, "step %s", step.Name)
		}
	}

	env := &Env{Workspace: ws, Extract: e.extract, Date: date}
	if err := step.Run(ctx, env); err != nil {
		return errors.Wrapf(err, "step %s", step.Name)
	}

	for _, out := range step.Outputs {
		if err := e.transfer.Publish(ctx, ws.Path(out.File), out.Kind, date); err != nil {
			return errors.Wrapf(err, "step %s", step.Name)
		}
	}

	logrus.Infof("step %s finished in %s", step.Name, time.Since(started).Round(time.Millisecond))
	return nil
}
