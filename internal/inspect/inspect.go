// Package inspect implements the read-only inspect verb (§4.9):
// explain, for one subject/session, why each configured procedure is
// or isn't a submission candidate.
package inspect

import (
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/discover"
	"github.com/galkepler/snbbsched/internal/oracle"
	"github.com/galkepler/snbbsched/internal/statestore"
)

const (
	ReasonMissingDicom    = "missing dicom"
	ReasonDependencyBlock = "waiting on dependency"
	ReasonAlreadyComplete = "already complete"
	ReasonInFlight        = "in flight"
	ReasonWouldSubmit     = "would submit"
)

// Explanation is the verdict for one procedure against one work key.
type Explanation struct {
	Procedure string
	Reason    string
	Detail    string // dependency name, job id, etc., when relevant
}

// Row finds the Discover row matching subject/session. With an empty
// session it returns the first discovered row for the subject; it
// never builds a row that Discover did not produce.
func Row(cfg *config.Config, subject, session string) (discover.Row, bool, error) {
	rows, err := discover.Table(cfg)
	if err != nil {
		return discover.Row{}, false, err
	}
	for _, r := range rows {
		if r.Subject == subject && (session == "" || r.Session == session) {
			return r, true, nil
		}
	}
	return discover.Row{}, false, nil
}

// Explain evaluates every configured procedure against row and
// returns one Explanation per procedure, in declared order.
func Explain(cfg *config.Config, row discover.Row, store *statestore.Store) []Explanation {
	explanations := make([]Explanation, 0, len(cfg.Procedures))

	for _, proc := range cfg.Procedures {
		explanations = append(explanations, explainOne(cfg, proc, row, store))
	}
	return explanations
}

func explainOne(cfg *config.Config, proc config.Procedure, row discover.Row, store *statestore.Store) Explanation {
	if !row.DicomExists {
		return Explanation{Procedure: proc.Name, Reason: ReasonMissingDicom}
	}

	ctx := oracle.Context{
		BidsRoot:        cfg.BidsRoot,
		DerivativesRoot: cfg.DerivativesRoot,
		Subject:         row.Subject,
		Session:         row.Session,
	}

	for _, depName := range proc.DependsOn {
		dep, ok := cfg.ByName(depName)
		if !ok {
			continue
		}
		depCols := row.Procedures[depName]
		if !oracle.Complete(cfg, dep, depCols.Path, ctx) {
			return Explanation{Procedure: proc.Name, Reason: ReasonDependencyBlock, Detail: depName}
		}
	}

	session := row.Session
	if proc.Scope == config.ScopeSubject {
		session = ""
	}
	if store.IsInFlight(row.Subject, session, proc.Name) {
		jobID := ""
		for _, r := range store.InFlight() {
			if r.Subject == row.Subject && r.Session == session && r.Procedure == proc.Name {
				jobID = r.JobID
				break
			}
		}
		return Explanation{Procedure: proc.Name, Reason: ReasonInFlight, Detail: jobID}
	}

	procCols := row.Procedures[proc.Name]
	if oracle.Complete(cfg, proc, procCols.Path, ctx) {
		return Explanation{Procedure: proc.Name, Reason: ReasonAlreadyComplete}
	}

	return Explanation{Procedure: proc.Name, Reason: ReasonWouldSubmit}
}
