package ux

import (
	"fmt"
	"sort"

	"github.com/galkepler/snbbsched/internal/statestore"
)

// RenderStatus prints a grouped summary of every State Row: counts per
// status, then the in-flight rows in full.
func RenderStatus(rows []statestore.Row) {
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Status]++
	}

	fmt.Printf("%sState Store:%s %d rows\n", Bold, Reset, len(rows))
	for _, status := range []string{statestore.StatusPending, statestore.StatusRunning, statestore.StatusComplete, statestore.StatusFailed} {
		fmt.Printf("  %-10s %d\n", status, counts[status])
	}

	var inFlight []statestore.Row
	for _, r := range rows {
		if r.Status == statestore.StatusPending || r.Status == statestore.StatusRunning {
			inFlight = append(inFlight, r)
		}
	}
	sort.Slice(inFlight, func(i, j int) bool {
		if inFlight[i].Subject != inFlight[j].Subject {
			return inFlight[i].Subject < inFlight[j].Subject
		}
		return inFlight[i].Session < inFlight[j].Session
	})

	if len(inFlight) == 0 {
		return
	}
	fmt.Printf("\n%sIn flight:%s\n", Bold, Reset)
	for _, r := range inFlight {
		session := r.Session
		if session == "" {
			session = "-"
		}
		fmt.Printf("  %-12s %-20s %-14s %-8s job %s\n", r.Subject, session, r.Procedure, r.Status, r.JobID)
	}
}
