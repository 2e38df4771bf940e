// Package batch abstracts submission to and polling of a Slurm-
// compatible batch manager behind a subprocess interface: accept a
// command, return a single-line acknowledgement (§6).
package batch

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/galkepler/snbbsched/internal/procexec"
)

// Manager submits jobs and queries their current state.
type Manager interface {
	// Submit runs args through the submission binary and returns the
	// trimmed single-line acknowledgement on success.
	Submit(ctx context.Context, args []string) (string, error)
	// Query returns the batch manager's current state string for jobID.
	Query(ctx context.Context, jobID string) (string, error)
	// Name returns the submission binary name, e.g. "sbatch" — the
	// first ordered part of §4.5's command string.
	Name() string
}

// Internal status values a Query result maps to.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// MapState maps a batch manager state string to an internal status,
// per §4.6's fixed table. The empty string return means "leave the
// row unchanged" — an unrecognized state is not itself an error.
func MapState(state string) string {
	switch {
	case state == "PENDING":
		return StatusPending
	case state == "RUNNING":
		return StatusRunning
	case state == "COMPLETED":
		return StatusComplete
	case state == "FAILED", state == "TIMEOUT", state == "OUT_OF_MEMORY", state == "NODE_FAIL":
		return StatusFailed
	case strings.HasPrefix(state, "CANCELLED"):
		return StatusFailed
	default:
		return ""
	}
}

// IsStepID reports whether a job identifier names a job step (contains
// a '.' separator) rather than a whole job; step ids are skipped by
// Monitor.
func IsStepID(jobID string) bool {
	return strings.Contains(jobID, ".")
}

// SlurmManager drives sbatch/sacct as subprocesses.
type SlurmManager struct {
	SubmitBin string // default "sbatch"
	QueryBin  string // default "sacct"
}

// NewSlurmManager returns a SlurmManager using the standard sbatch/sacct binaries.
func NewSlurmManager() *SlurmManager {
	return &SlurmManager{SubmitBin: "sbatch", QueryBin: "sacct"}
}

func (m *SlurmManager) submitBin() string {
	if m.SubmitBin == "" {
		return "sbatch"
	}
	return m.SubmitBin
}

// Name returns the configured submission binary.
func (m *SlurmManager) Name() string {
	return m.submitBin()
}

func (m *SlurmManager) queryBin() string {
	if m.QueryBin == "" {
		return "sacct"
	}
	return m.QueryBin
}

// Submit runs sbatch with args and returns the trimmed stdout.
func (m *SlurmManager) Submit(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, m.submitBin(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	code, err := procexec.ExitCode(cmd.Run())
	if err != nil {
		return "", fmt.Errorf("batch: running %s: %w", m.submitBin(), err)
	}
	if code != 0 {
		return "", fmt.Errorf("batch: %s exited %d: %s", m.submitBin(), code, strings.TrimSpace(out.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// Query runs sacct for jobID and returns the raw state string of its
// first reported line.
func (m *SlurmManager) Query(ctx context.Context, jobID string) (string, error) {
	cmd := exec.CommandContext(ctx, m.queryBin(), "-j", jobID, "--format=State", "--noheader", "--parsable2")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	code, err := procexec.ExitCode(cmd.Run())
	if err != nil {
		return "", fmt.Errorf("batch: running %s: %w", m.queryBin(), err)
	}
	if code != 0 {
		return "", fmt.Errorf("batch: %s exited %d: %s", m.queryBin(), code, strings.TrimSpace(out.String()))
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", fmt.Errorf("batch: no state reported for job %s", jobID)
	}
	return strings.TrimSpace(lines[0]), nil
}
