// Package monitor converges the State Store toward ground truth
// between passes: Monitor polls the batch manager for in-flight jobs,
// Reconcile falls back to the Completion Oracle for anything the
// batch manager no longer reports (§4.6).
package monitor

import (
	"context"
	"fmt"

	"github.com/galkepler/snbbsched/internal/audit"
	"github.com/galkepler/snbbsched/internal/batch"
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/oracle"
	"github.com/galkepler/snbbsched/internal/statestore"
)

// Warnf is called for tolerated failures (batch manager unavailable).
// Tests may substitute a collecting function; the CLI wires this to
// ux.Warning, which prints to standard output.
type Warnf func(format string, args ...any)

// Monitor polls mgr for every in-flight row's job state and updates
// the store accordingly. It never returns an error for an unreachable
// batch manager: it warns and leaves state unchanged, per §4.6's
// failure-tolerance contract.
func Monitor(ctx context.Context, store *statestore.Store, mgr batch.Manager, pass *audit.Pass, warnf Warnf) {
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	for _, row := range store.InFlight() {
		if batch.IsStepID(row.JobID) {
			continue
		}
		state, err := mgr.Query(ctx, row.JobID)
		if err != nil {
			warnf("monitor: querying job %s for %s/%s/%s: %v", row.JobID, row.Subject, row.Session, row.Procedure, err)
			continue
		}
		newStatus := batch.MapState(state)
		if newStatus == "" || newStatus == row.Status {
			continue
		}
		oldStatus := row.Status
		if store.UpdateStatus(row.Subject, row.Session, row.Procedure, newStatus) {
			pass.StatusChange(row.Subject, row.Session, row.Procedure, oldStatus, newStatus)
		}
	}
}

// Reconcile re-checks the Completion Oracle for every remaining
// in-flight row, promoting any whose output is complete on disk.
func Reconcile(cfg *config.Config, store *statestore.Store, pass *audit.Pass) {
	for _, row := range store.InFlight() {
		proc, ok := cfg.ByName(row.Procedure)
		if !ok {
			continue
		}
		session := row.Session
		outputPath := cfg.OutputPath(proc, row.Subject, session)
		ctx := oracle.Context{
			BidsRoot:        cfg.BidsRoot,
			DerivativesRoot: cfg.DerivativesRoot,
			Subject:         row.Subject,
			Session:         session,
		}
		if !oracle.Complete(cfg, proc, outputPath, ctx) {
			continue
		}
		oldStatus := row.Status
		if store.UpdateStatus(row.Subject, row.Session, row.Procedure, statestore.StatusComplete) {
			pass.StatusChange(row.Subject, row.Session, row.Procedure, oldStatus, statestore.StatusComplete)
		}
	}
}

// Run executes Monitor followed by Reconcile, as mandated by §4.6's
// ordering rule.
func Run(ctx context.Context, cfg *config.Config, store *statestore.Store, mgr batch.Manager, pass *audit.Pass, warnf Warnf) error {
	Monitor(ctx, store, mgr, pass, warnf)
	Reconcile(cfg, store, pass)
	if err := store.Save(); err != nil {
		return fmt.Errorf("monitor: persisting state store: %w", err)
	}
	return nil
}
