package batch

import (
	"context"
	"fmt"
)

// FakeManager is an in-memory Manager for tests: Submit returns a
// sequential job id, Query returns whatever state was pre-seeded.
type FakeManager struct {
	NextJobID   int
	SubmitErr   error
	States      map[string]string // jobID -> state string
	QueryErr    error
	SubmitCalls [][]string
}

func NewFakeManager() *FakeManager {
	return &FakeManager{NextJobID: 1000, States: make(map[string]string)}
}

func (m *FakeManager) Submit(ctx context.Context, args []string) (string, error) {
	m.SubmitCalls = append(m.SubmitCalls, args)
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	m.NextJobID++
	return fmt.Sprintf("Submitted batch job %d", m.NextJobID), nil
}

func (m *FakeManager) Query(ctx context.Context, jobID string) (string, error) {
	if m.QueryErr != nil {
		return "", m.QueryErr
	}
	state, ok := m.States[jobID]
	if !ok {
		return "", fmt.Errorf("batch: no such job %s", jobID)
	}
	return state, nil
}

// Name returns the fake submission binary name used in dry-run output.
func (m *FakeManager) Name() string {
	return "sbatch"
}
