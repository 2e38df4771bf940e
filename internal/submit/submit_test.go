package submit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/galkepler/snbbsched/internal/audit"
	"github.com/galkepler/snbbsched/internal/batch"
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/manifest"
	"github.com/galkepler/snbbsched/internal/statestore"
)

func testCfg() *config.Config {
	return &config.Config{
		BatchPartition: "cpu",
		BatchAccount:   "lab",
		BatchMem:       "8G",
		BatchCPUs:      "4",
		Procedures: []config.Procedure{
			{Name: "bids", Scope: config.ScopeSession, Script: "bids.sh"},
			{Name: "recon", Scope: config.ScopeSubject, Script: "recon.sh"},
		},
	}
}

func newPass(t *testing.T) *audit.Pass {
	t.Helper()
	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	return log.NewPass()
}

func TestRun_SuccessfulSubmissionAppendsPendingRow(t *testing.T) {
	cfg := testCfg()
	tasks := []manifest.Task{{Subject: "sub-0001", Session: "ses-01", Procedure: "bids", DicomPath: "/dicom/sub-0001/ses-01"}}
	store := &statestore.Store{}
	mgr := batch.NewFakeManager()

	results, err := Run(context.Background(), cfg, tasks, store, mgr, newPass(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	if results[0].JobID == "" {
		t.Fatal("expected non-empty job id")
	}
	inFlight := store.InFlight()
	if len(inFlight) != 1 || inFlight[0].Status != statestore.StatusPending {
		t.Fatalf("expected one pending row, got %+v", inFlight)
	}
}

func TestRun_DryRunProducesNoStateRow(t *testing.T) {
	cfg := testCfg()
	tasks := []manifest.Task{{Subject: "sub-0001", Session: "ses-01", Procedure: "bids", DicomPath: "/dicom/sub-0001/ses-01"}}
	store := &statestore.Store{}
	mgr := batch.NewFakeManager()

	results, err := Run(context.Background(), cfg, tasks, store, mgr, newPass(t), Options{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].JobID != "" {
		t.Fatalf("results = %+v", results)
	}
	if len(store.Rows()) != 0 {
		t.Fatalf("expected no state rows after dry run, got %d", len(store.Rows()))
	}
	if len(mgr.SubmitCalls) != 0 {
		t.Fatal("expected dry run not to call Submit")
	}
}

func TestRun_SubmitErrorDoesNotAbortPass(t *testing.T) {
	cfg := testCfg()
	tasks := []manifest.Task{
		{Subject: "sub-0001", Session: "ses-01", Procedure: "bids", DicomPath: "/d/1"},
		{Subject: "sub-0002", Session: "ses-01", Procedure: "bids", DicomPath: "/d/2"},
	}
	store := &statestore.Store{}
	mgr := batch.NewFakeManager()
	mgr.SubmitErr = context.DeadlineExceeded

	results, err := Run(context.Background(), cfg, tasks, store, mgr, newPass(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	for _, r := range results {
		if r.Err == nil {
			t.Fatal("expected both submissions to fail")
		}
	}
}

func TestBuildArgs_SubjectScopedUsesOnlySubjectPositional(t *testing.T) {
	cfg := testCfg()
	proc, _ := cfg.ByName("recon")
	task := manifest.Task{Subject: "sub-0001", Procedure: "recon"}
	args := buildArgs(cfg, proc, task)

	found := false
	for i, a := range args {
		if a == "recon.sh" && i+1 < len(args) && args[i+1] == "sub-0001" {
			found = true
			if i+2 < len(args) && args[i+2] != "" {
				t.Fatalf("expected no extra positional after subject for subject-scoped procs, got %v", args)
			}
		}
	}
	if !found {
		t.Fatalf("expected script followed by subject-only positional, got %v", args)
	}
}

func TestExtractJobID(t *testing.T) {
	id, err := extractJobID("Submitted batch job 98765\n")
	if err != nil {
		t.Fatal(err)
	}
	if id != "98765" {
		t.Fatalf("id = %q, want 98765", id)
	}

	if _, err := extractJobID("no numbers here"); err == nil {
		t.Fatal("expected error for unparseable acknowledgement")
	}
}
