// Package manifest builds the task table for one scheduler pass:
// every (subject, session, procedure) submission candidate, with
// subject-scope deduplication and the in-flight filter against the
// State Store applied (§4.4).
package manifest

import (
	"sort"

	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/discover"
	"github.com/galkepler/snbbsched/internal/rules"
	"github.com/galkepler/snbbsched/internal/statestore"
)

// Task is one submission candidate.
type Task struct {
	Subject   string
	Session   string
	Procedure string
	DicomPath string
	Priority  int
}

// Build combines Discover rows and Rules into a manifest, applying
// subject-scope deduplication and the in-flight filter.
func Build(cfg *config.Config, rows []discover.Row, store *statestore.Store, opts rules.Options) []Task {
	var tasks []Task
	subjectSeen := make(map[string]bool) // "<procedure>|<subject>" for subject-scoped dedup

	for priority, proc := range cfg.Procedures {
		for _, row := range rows {
			if !rules.Candidate(cfg, proc, row, opts) {
				continue
			}

			session := row.Session
			dicomPath := row.DicomPath
			if proc.Scope == config.ScopeSubject {
				key := proc.Name + "|" + row.Subject
				if subjectSeen[key] {
					continue
				}
				subjectSeen[key] = true
				session = ""
				dicomPath = ""
			}

			tasks = append(tasks, Task{
				Subject:   row.Subject,
				Session:   session,
				Procedure: proc.Name,
				DicomPath: dicomPath,
				Priority:  priority,
			})
		}
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Priority != tasks[j].Priority {
			return tasks[i].Priority < tasks[j].Priority
		}
		if tasks[i].Subject != tasks[j].Subject {
			return tasks[i].Subject < tasks[j].Subject
		}
		return tasks[i].Session < tasks[j].Session
	})

	return filterInFlight(tasks, store)
}

// filterInFlight removes any task already in flight in the State Store.
func filterInFlight(tasks []Task, store *statestore.Store) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if store.IsInFlight(t.Subject, t.Session, t.Procedure) {
			continue
		}
		out = append(out, t)
	}
	return out
}
