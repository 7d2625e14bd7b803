package pipeline

import (
	"context"
	"time"

	"github.com/chainlode/ethexport/internal/extract"
	"github.com/chainlode/ethexport/internal/partition"
	"github.com/chainlode/ethexport/internal/staging"
)

// Artifact names one file a step exchanges through the partitioned store:
// the artifact kind it is filed under and its base name inside the
// workspace and the partition.
type Artifact struct {
	Kind partition.Kind
	File string
}

// Env is what a step's run function gets to work with: its private
// workspace, the extraction collaborator and the logical date of the run.
type Env struct {
	Workspace *staging.Workspace
	Extract   extract.Extractor
	Date      time.Time
}

// Step is one pipeline stage. Inputs are fetched into the workspace before
// Run is called; Outputs are published from the workspace after Run
// succeeds. Run itself is the step's sub-operation chain, a sequence of
// transforms over workspace files with no other side effects.
type Step struct {
	Name    string
	Inputs  []Artifact
	Outputs []Artifact
	Run     func(ctx context.Context, env *Env) error
}
