// Package rules synthesizes, for each configured procedure, the
// predicate that decides whether a Discover row is a submission
// candidate for that procedure (§4.3).
package rules

import (
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/discover"
	"github.com/galkepler/snbbsched/internal/oracle"
)

// Options carries the force/filter toggles that bypass step 3 of the
// rule for a restricted set of procedures.
type Options struct {
	Force      bool
	Procedures map[string]bool // empty means "no filter": all procedures eligible for force
}

func (o Options) forceApplies(procedureName string) bool {
	if !o.Force {
		return false
	}
	if len(o.Procedures) == 0 {
		return true
	}
	return o.Procedures[procedureName]
}

// Candidate reports whether row is a submission candidate for proc,
// evaluating all three steps of §4.3's rule in order.
func Candidate(cfg *config.Config, proc config.Procedure, row discover.Row, opts Options) bool {
	if !row.DicomExists {
		return false
	}

	for _, depName := range proc.DependsOn {
		dep, ok := cfg.ByName(depName)
		if !ok {
			return false
		}
		depCols, ok := row.Procedures[depName]
		if !ok {
			return false
		}
		ctx := oracleContext(cfg, row)
		if !oracle.Complete(cfg, dep, depCols.Path, ctx) {
			return false
		}
	}

	procCols := row.Procedures[proc.Name]
	ctx := oracleContext(cfg, row)
	alreadyComplete := oracle.Complete(cfg, proc, procCols.Path, ctx)
	if !alreadyComplete {
		return true
	}
	return opts.forceApplies(proc.Name)
}

func oracleContext(cfg *config.Config, row discover.Row) oracle.Context {
	return oracle.Context{
		BidsRoot:        cfg.BidsRoot,
		DerivativesRoot: cfg.DerivativesRoot,
		Subject:         row.Subject,
		Session:         row.Session,
	}
}
