// Package scheduler drives one scheduler pass: Monitor, Reconcile,
// Discover, Manifest, Submit, Persist (§5). It threads every
// collaborator explicitly through a Context rather than relying on
// globals, the way orc's Runner threads Config/State/Env/Dispatcher.
package scheduler

import (
	"context"
	"fmt"

	"github.com/galkepler/snbbsched/internal/audit"
	"github.com/galkepler/snbbsched/internal/batch"
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/discover"
	"github.com/galkepler/snbbsched/internal/manifest"
	"github.com/galkepler/snbbsched/internal/monitor"
	"github.com/galkepler/snbbsched/internal/rules"
	"github.com/galkepler/snbbsched/internal/statestore"
	"github.com/galkepler/snbbsched/internal/submit"
)

// Context carries everything one pass needs.
type Context struct {
	Config  *config.Config
	Store   *statestore.Store
	Audit   *audit.Log
	Batch   batch.Manager
	Warnf   func(format string, args ...any)
	Options rules.Options
	DryRun  bool

	// SkipMonitor skips the Monitor+Reconcile step at the start of the
	// pass, submitting directly against the State Store as it stands.
	SkipMonitor bool
}

// PassResult summarizes the outcome of one pass.
type PassResult struct {
	Rows    []discover.Row
	Tasks   []manifest.Task
	Results []submit.Result
}

// Run executes one full scheduler pass: Monitor+Reconcile against the
// existing State Store, Discover the current filesystem, build a
// Manifest, then Submit whatever remains.
func Run(ctx context.Context, c *Context) (*PassResult, error) {
	pass := c.Audit.NewPass()

	if !c.SkipMonitor {
		if err := monitor.Run(ctx, c.Config, c.Store, c.Batch, pass, c.Warnf); err != nil {
			return nil, fmt.Errorf("scheduler: monitor/reconcile: %w", err)
		}
	}

	rows, err := discover.Table(c.Config)
	if err != nil {
		return nil, fmt.Errorf("scheduler: discover: %w", err)
	}

	tasks := manifest.Build(c.Config, rows, c.Store, c.Options)

	results, err := submit.Run(ctx, c.Config, tasks, c.Store, c.Batch, pass, submit.Options{DryRun: c.DryRun})
	if err != nil {
		return nil, fmt.Errorf("scheduler: submit: %w", err)
	}

	return &PassResult{Rows: rows, Tasks: tasks, Results: results}, nil
}
