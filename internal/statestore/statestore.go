// Package statestore persists the State Store: the table of every task
// ever submitted, encoded as a columnar binary table (§6) so it can be
// read and rewritten atomically on every successful submission.
package statestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Row is a single State Row: one record for a submitted (or dry-run)
// task. Subject, Session and Procedure together are the primary key;
// uniqueness is enforced only among in-flight rows (Pending/Running).
type Row struct {
	Subject     string    `cbor:"subject"`
	Session     string    `cbor:"session"`
	Procedure   string    `cbor:"procedure"`
	Status      string    `cbor:"status"`
	SubmittedAt time.Time `cbor:"submitted_at"`
	JobID       string    `cbor:"job_id"`
}

func (r Row) inFlight() bool {
	return r.Status == StatusPending || r.Status == StatusRunning
}

// Store is the in-memory, file-backed table of State Rows.
type Store struct {
	path string
	rows []Row
}

// Open loads the table at path. A missing file is treated as an empty
// table rather than an error, matching orc's own Load-returns-fresh-
// state-if-absent convention.
func Open(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Store{path: path}, nil
		}
		return nil, fmt.Errorf("statestore: reading %s: %w", path, err)
	}
	if len(data) == 0 {
		return &Store{path: path}, nil
	}
	var rows []Row
	if err := cbor.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("statestore: decoding %s: %w", path, err)
	}
	return &Store{path: path, rows: rows}, nil
}

// Save persists the table atomically: encode, write to a temp file
// beside the target, then rename over it. Generalized from orc's
// internal/state/atomic.go writeFileAtomic, lifted from a single JSON
// object to a CBOR-encoded slice of rows. A Store with no path (the
// zero value) is in-memory only, and Save on it does nothing.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	data, err := cbor.Marshal(s.rows)
	if err != nil {
		return fmt.Errorf("statestore: encoding: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("statestore: creating %s: %w", dir, err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("statestore: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("statestore: renaming %s to %s: %w", tmp, s.path, err)
	}
	return nil
}

// Rows returns a copy of every row currently in the table.
func (s *Store) Rows() []Row {
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// InFlight returns every row whose status is pending or running.
func (s *Store) InFlight() []Row {
	var out []Row
	for _, r := range s.rows {
		if r.inFlight() {
			out = append(out, r)
		}
	}
	return out
}

// IsInFlight reports whether an in-flight row exists for the given key.
func (s *Store) IsInFlight(subject, session, procedure string) bool {
	for _, r := range s.rows {
		if r.inFlight() && r.Subject == subject && r.Session == session && r.Procedure == procedure {
			return true
		}
	}
	return false
}

// Append adds a new row to the table. It does not check uniqueness;
// callers are expected to have already consulted IsInFlight.
func (s *Store) Append(r Row) {
	s.rows = append(s.rows, r)
}

// UpdateStatus sets the status of the in-flight row matching the given
// key, returning false if no such row exists.
func (s *Store) UpdateStatus(subject, session, procedure, status string) bool {
	for i := range s.rows {
		r := &s.rows[i]
		if r.inFlight() && r.Subject == subject && r.Session == session && r.Procedure == procedure {
			r.Status = status
			return true
		}
	}
	return false
}

// RemoveFailed deletes every failed row matching the given filters.
// An empty filter matches everything. Returns the removed rows.
func (s *Store) RemoveFailed(procedure, subject string) []Row {
	var kept, removed []Row
	for _, r := range s.rows {
		if r.Status == StatusFailed &&
			(procedure == "" || r.Procedure == procedure) &&
			(subject == "" || r.Subject == subject) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return removed
}
