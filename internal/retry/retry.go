// Package retry implements the retry verb: remove failed State Rows
// so the next manifest build re-queues them (§4.7).
package retry

import (
	"github.com/galkepler/snbbsched/internal/audit"
	"github.com/galkepler/snbbsched/internal/statestore"
)

// Run removes failed rows matching the given filters, auditing each
// removal, and persists the store. An empty filter matches every
// failed row. Pending, running, and complete rows are never touched.
func Run(store *statestore.Store, pass *audit.Pass, procedure, subject string) ([]statestore.Row, error) {
	removed := store.RemoveFailed(procedure, subject)
	for _, r := range removed {
		pass.RetryCleared(r.Subject, r.Session, r.Procedure, r.Status, r.JobID)
	}
	if err := store.Save(); err != nil {
		return removed, err
	}
	return removed, nil
}
