// Package audit writes the append-only Audit Log: a structured,
// JSON-formatted stream of significant events (submitted, status
// change, error, dry run, retry cleared), each stamped with a pass id.
package audit

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	EventSubmitted    = "submitted"
	EventStatusChange = "status_change"
	EventError        = "error"
	EventDryRun       = "dry_run"
	EventRetryCleared = "retry_cleared"
)

// Log wraps a logrus.Logger configured to append JSON-formatted events
// to the audit log file, field names remapped to the Audit Event
// vocabulary (§3) rather than logrus's own defaults.
type Log struct {
	logger *logrus.Logger
	file   *os.File
}

// Open opens (creating if needed) the audit log file at path for
// appending and returns a Log ready to record events.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("audit: opening %s: %w", path, err)
	}
	logger := logrus.New()
	logger.SetOutput(f)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "event",
		},
	})
	return &Log{logger: logger, file: f}, nil
}

// Close flushes and closes the underlying audit log file.
func (l *Log) Close() error {
	return l.file.Close()
}

// Pass identifies one scheduler pass; every event emitted through it
// carries the same pass_id.
type Pass struct {
	id  string
	log *Log
}

// NewPass starts a new pass, generating a fresh pass id.
func (l *Log) NewPass() *Pass {
	return &Pass{id: uuid.NewString(), log: l}
}

// ID returns the pass's identifier.
func (p *Pass) ID() string {
	return p.id
}

func (p *Pass) fields(subject, session, procedure string) logrus.Fields {
	return logrus.Fields{
		"pass_id":   p.id,
		"subject":   subject,
		"session":   session,
		"procedure": procedure,
	}
}

// Submitted records a successful submission.
func (p *Pass) Submitted(subject, session, procedure, jobID string) {
	f := p.fields(subject, session, procedure)
	f["job_id"] = jobID
	p.log.logger.WithFields(f).Info(EventSubmitted)
}

// StatusChange records a state transition detected by Monitor/Reconcile.
func (p *Pass) StatusChange(subject, session, procedure, oldStatus, newStatus string) {
	f := p.fields(subject, session, procedure)
	f["old_status"] = oldStatus
	f["new_status"] = newStatus
	p.log.logger.WithFields(f).Info(EventStatusChange)
}

// Error records a submission or query failure.
func (p *Pass) Error(subject, session, procedure, detail string) {
	f := p.fields(subject, session, procedure)
	f["detail"] = detail
	p.log.logger.WithFields(f).Warn(EventError)
}

// DryRun records a dry-run submission with the full command string.
func (p *Pass) DryRun(subject, session, procedure, command string) {
	f := p.fields(subject, session, procedure)
	f["command"] = command
	p.log.logger.WithFields(f).Info(EventDryRun)
}

// RetryCleared records removal of a failed row by the retry verb,
// carrying the prior job id and status for the audit trail.
func (p *Pass) RetryCleared(subject, session, procedure, oldStatus, jobID string) {
	f := p.fields(subject, session, procedure)
	f["old_status"] = oldStatus
	f["job_id"] = jobID
	p.log.logger.WithFields(f).Info(EventRetryCleared)
}
