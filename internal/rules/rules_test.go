package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/discover"
)

func row(dicomExists bool, procs map[string]discover.ProcedureColumns) discover.Row {
	return discover.Row{
		Subject:     "sub-0001",
		Session:     "ses-000000000001",
		DicomExists: dicomExists,
		Procedures:  procs,
	}
}

func TestCandidate_NoDicomNeverFires(t *testing.T) {
	cfg := &config.Config{Procedures: []config.Procedure{{Name: "bids", Scope: config.ScopeSession}}}
	r := row(false, map[string]discover.ProcedureColumns{"bids": {Path: "", Exists: false}})
	if Candidate(cfg, cfg.Procedures[0], r, Options{}) {
		t.Fatal("expected false when dicom_exists is false")
	}
}

func TestCandidate_AlreadyCompleteDoesNotFire(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "marker")); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Procedures: []config.Procedure{{Name: "bids", Scope: config.ScopeSession}}}
	r := row(true, map[string]discover.ProcedureColumns{"bids": {Path: dir, Exists: true}})
	if Candidate(cfg, cfg.Procedures[0], r, Options{}) {
		t.Fatal("expected false once already complete")
	}
}

func TestCandidate_IncompleteFires(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	cfg := &config.Config{Procedures: []config.Procedure{{Name: "bids", Scope: config.ScopeSession}}}
	r := row(true, map[string]discover.ProcedureColumns{"bids": {Path: dir, Exists: false}})
	if !Candidate(cfg, cfg.Procedures[0], r, Options{}) {
		t.Fatal("expected true when dicom exists and output incomplete")
	}
}

func TestCandidate_DependencyIncompleteBlocks(t *testing.T) {
	bidsDir := t.TempDir() // empty directory, null marker, incomplete
	reconDir := filepath.Join(t.TempDir(), "missing")
	cfg := &config.Config{
		Procedures: []config.Procedure{
			{Name: "bids", Scope: config.ScopeSession},
			{Name: "recon", Scope: config.ScopeSubject, DependsOn: []string{"bids"}},
		},
	}
	r := row(true, map[string]discover.ProcedureColumns{
		"bids":  {Path: bidsDir, Exists: false},
		"recon": {Path: reconDir, Exists: false},
	})
	if Candidate(cfg, cfg.Procedures[1], r, Options{}) {
		t.Fatal("expected false when a dependency is incomplete on disk")
	}
}

func TestCandidate_DependencyCompleteUnblocks(t *testing.T) {
	bidsDir := t.TempDir()
	if err := writeFile(filepath.Join(bidsDir, "marker")); err != nil {
		t.Fatal(err)
	}
	reconDir := filepath.Join(t.TempDir(), "missing")
	cfg := &config.Config{
		Procedures: []config.Procedure{
			{Name: "bids", Scope: config.ScopeSession},
			{Name: "recon", Scope: config.ScopeSubject, DependsOn: []string{"bids"}},
		},
	}
	r := row(true, map[string]discover.ProcedureColumns{
		"bids":  {Path: bidsDir, Exists: true},
		"recon": {Path: reconDir, Exists: false},
	})
	if !Candidate(cfg, cfg.Procedures[1], r, Options{}) {
		t.Fatal("expected true once dependency is complete on disk")
	}
}

func TestCandidate_ForceBypassesStep3Only(t *testing.T) {
	completeDir := t.TempDir()
	if err := writeFile(filepath.Join(completeDir, "marker")); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Procedures: []config.Procedure{{Name: "bids", Scope: config.ScopeSession}}}
	r := row(true, map[string]discover.ProcedureColumns{"bids": {Path: completeDir, Exists: true}})

	if !Candidate(cfg, cfg.Procedures[0], r, Options{Force: true}) {
		t.Fatal("expected force to bypass the already-complete check")
	}
	if Candidate(cfg, cfg.Procedures[0], r, Options{}) {
		t.Fatal("expected no-force to respect the already-complete check")
	}
}

func TestCandidate_ForceDoesNotBypassDependency(t *testing.T) {
	bidsDir := t.TempDir() // incomplete
	reconDir := t.TempDir()
	if err := writeFile(filepath.Join(reconDir, "marker")); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Procedures: []config.Procedure{
			{Name: "bids", Scope: config.ScopeSession},
			{Name: "recon", Scope: config.ScopeSubject, DependsOn: []string{"bids"}},
		},
	}
	r := row(true, map[string]discover.ProcedureColumns{
		"bids":  {Path: bidsDir, Exists: false},
		"recon": {Path: reconDir, Exists: true},
	})
	if Candidate(cfg, cfg.Procedures[1], r, Options{Force: true}) {
		t.Fatal("expected force to still require dependency completion")
	}
}

func TestCandidate_ForceFilterRestrictsToNamedProcedures(t *testing.T) {
	completeDir := t.TempDir()
	if err := writeFile(filepath.Join(completeDir, "marker")); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Procedures: []config.Procedure{{Name: "bids", Scope: config.ScopeSession}}}
	r := row(true, map[string]discover.ProcedureColumns{"bids": {Path: completeDir, Exists: true}})

	opts := Options{Force: true, Procedures: map[string]bool{"recon": true}}
	if Candidate(cfg, cfg.Procedures[0], r, opts) {
		t.Fatal("expected force filter to exclude bids")
	}
}

func writeFile(path string) error {
	return os.WriteFile(path, []byte(""), 0644)
}
