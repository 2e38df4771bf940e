package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/galkepler/snbbsched/internal/audit"
	"github.com/galkepler/snbbsched/internal/batch"
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/rules"
	"github.com/galkepler/snbbsched/internal/statestore"
)

func TestRun_SubmitsNewWorkAndDryRunSkipsStore(t *testing.T) {
	dicom := t.TempDir()
	bids := t.TempDir()
	deriv := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dicom, "sub-0001", "ses-01"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		DicomRoot:       dicom,
		BidsRoot:        bids,
		DerivativesRoot: deriv,
		BatchPartition:  "cpu",
		Procedures: []config.Procedure{
			{Name: "bids", Scope: config.ScopeSession, Script: "bids.sh"},
		},
	}

	store := &statestore.Store{}
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	mgr := batch.NewFakeManager()

	c := &Context{
		Config: cfg, Store: store, Audit: auditLog, Batch: mgr,
		Options: rules.Options{}, DryRun: true,
	}

	result, err := Run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Tasks) != 1 {
		t.Fatalf("len(Tasks) = %d, want 1", len(result.Tasks))
	}
	if len(store.Rows()) != 0 {
		t.Fatalf("expected no state rows after dry run pass, got %d", len(store.Rows()))
	}
}

func TestRun_RealSubmissionRecordsStateRow(t *testing.T) {
	dicom := t.TempDir()
	bids := t.TempDir()
	deriv := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dicom, "sub-0001", "ses-01"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		DicomRoot:       dicom,
		BidsRoot:        bids,
		DerivativesRoot: deriv,
		Procedures: []config.Procedure{
			{Name: "bids", Scope: config.ScopeSession, Script: "bids.sh"},
		},
	}

	store := &statestore.Store{}
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	mgr := batch.NewFakeManager()

	c := &Context{Config: cfg, Store: store, Audit: auditLog, Batch: mgr}

	result, err := Run(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Results) != 1 || result.Results[0].Err != nil {
		t.Fatalf("results = %+v", result.Results)
	}
	if len(store.InFlight()) != 1 {
		t.Fatalf("expected one in-flight row, got %d", len(store.InFlight()))
	}
}

func TestRun_SkipMonitorAvoidsQueryingBatchManager(t *testing.T) {
	dicom := t.TempDir()
	bids := t.TempDir()
	deriv := t.TempDir()

	if err := os.MkdirAll(filepath.Join(dicom, "sub-0001", "ses-01"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		DicomRoot:       dicom,
		BidsRoot:        bids,
		DerivativesRoot: deriv,
		Procedures: []config.Procedure{
			{Name: "bids", Scope: config.ScopeSession, Script: "bids.sh"},
		},
	}

	store := &statestore.Store{}
	store.Append(statestore.Row{Subject: "sub-0001", Session: "ses-01", Procedure: "bids", Status: statestore.StatusRunning, JobID: "42"})
	auditLog, err := audit.Open(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	mgr := batch.NewFakeManager()
	mgr.States["42"] = "COMPLETED"

	c := &Context{Config: cfg, Store: store, Audit: auditLog, Batch: mgr, SkipMonitor: true}

	if _, err := Run(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	for _, r := range store.Rows() {
		if r.Subject == "sub-0001" && r.Procedure == "bids" && r.Status != statestore.StatusRunning {
			t.Fatalf("expected SkipMonitor to leave status unchanged, got %s", r.Status)
		}
	}
}
