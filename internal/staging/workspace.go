package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Workspace is an ephemeral local directory owned by exactly one step
// invocation. All intermediate files a step produces live under it, and the
// whole tree is removed on Release regardless of how the step exited.
type Workspace struct {
	dir  string
	once sync.Once
}

// NewWorkspace creates a fresh, empty working directory for one invocation
// of the named step.
func NewWorkspace(step string) (*Workspace, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("ethexport-%s-", step))
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	logrus.Debugf("workspace %s created for step %s", dir, step)
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path joins a file name into the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Release removes the workspace and everything in it. Safe to defer on every
// exit path; repeated calls are no-ops. A removal failure is logged, never
// propagated, so cleanup cannot mask the step's own error.
func (w *Workspace) Release() {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			logrus.Warnf("failed to remove workspace %s: %v", w.dir, err)
		}
	})
}
