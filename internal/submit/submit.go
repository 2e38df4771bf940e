// Package submit translates manifest rows into batch submissions,
// composing the sbatch-style command per §4.5 and recording successful
// submissions as new pending State Rows.
package submit

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/galkepler/snbbsched/internal/audit"
	"github.com/galkepler/snbbsched/internal/batch"
	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/manifest"
	"github.com/galkepler/snbbsched/internal/statestore"
)

// Options configures one Submit run.
type Options struct {
	DryRun bool
}

// Result summarizes the outcome of submitting one manifest task.
type Result struct {
	Task  manifest.Task
	JobID string
	Err   error
}

// Run submits every task in tasks, in order, persisting the State
// Store after each successful submission per the resolved persistence
// policy (§4.5). Partial failure of one task never aborts the run.
func Run(ctx context.Context, cfg *config.Config, tasks []manifest.Task, store *statestore.Store, mgr batch.Manager, pass *audit.Pass, opts Options) ([]Result, error) {
	results := make([]Result, 0, len(tasks))

	for _, task := range tasks {
		proc, ok := cfg.ByName(task.Procedure)
		if !ok {
			err := fmt.Errorf("submit: unknown procedure %q", task.Procedure)
			results = append(results, Result{Task: task, Err: err})
			continue
		}

		args := buildArgs(cfg, proc, task)
		command := mgr.Name() + " " + strings.Join(args, " ")

		if opts.DryRun {
			fmt.Println(command)
			pass.DryRun(task.Subject, task.Session, task.Procedure, command)
			results = append(results, Result{Task: task})
			continue
		}

		ack, err := mgr.Submit(ctx, args)
		if err != nil {
			pass.Error(task.Subject, task.Session, task.Procedure, err.Error())
			results = append(results, Result{Task: task, Err: err})
			continue
		}
		jobID, err := extractJobID(ack)
		if err != nil {
			pass.Error(task.Subject, task.Session, task.Procedure, err.Error())
			results = append(results, Result{Task: task, Err: err})
			continue
		}

		store.Append(statestore.Row{
			Subject:     task.Subject,
			Session:     task.Session,
			Procedure:   task.Procedure,
			Status:      statestore.StatusPending,
			SubmittedAt: time.Now().UTC(),
			JobID:       jobID,
		})
		pass.Submitted(task.Subject, task.Session, task.Procedure, jobID)
		results = append(results, Result{Task: task, JobID: jobID})

		if err := store.Save(); err != nil {
			return results, fmt.Errorf("submit: persisting state store: %w", err)
		}
	}

	if err := store.Save(); err != nil {
		return results, fmt.Errorf("submit: final persist: %w", err)
	}
	return results, nil
}

// buildArgs composes the ordered submission command parts from §4.5.
func buildArgs(cfg *config.Config, proc config.Procedure, task manifest.Task) []string {
	var args []string

	if cfg.BatchPartition != "" {
		args = append(args, "--partition="+cfg.BatchPartition)
	}
	if cfg.BatchAccount != "" {
		args = append(args, "--account="+cfg.BatchAccount)
	}

	jobName := jobName(proc, task)
	args = append(args, "--job-name="+jobName)

	if cfg.BatchMem != "" {
		args = append(args, "--mem="+cfg.BatchMem)
	}
	if cfg.BatchCPUs != "" {
		args = append(args, "--cpus-per-task="+cfg.BatchCPUs)
	}
	if cfg.BatchLogDir != "" {
		logDir := filepath.Join(cfg.BatchLogDir, proc.Name)
		args = append(args, "--output="+filepath.Join(logDir, jobName+"_%j.out"))
		args = append(args, "--error="+filepath.Join(logDir, jobName+"_%j.err"))
	}

	args = append(args, proc.Script)
	args = append(args, positionalArgs(proc, task)...)
	return args
}

func jobName(proc config.Procedure, task manifest.Task) string {
	if proc.Scope == config.ScopeSubject {
		return proc.Name + "_" + task.Subject
	}
	return proc.Name + "_" + task.Subject + "_" + task.Session
}

func positionalArgs(proc config.Procedure, task manifest.Task) []string {
	if proc.Scope == config.ScopeSubject {
		return []string{task.Subject}
	}
	return []string{task.Subject, task.Session, task.DicomPath}
}

var trailingDigitsRe = regexp.MustCompile(`([0-9]+)\s*$`)

// extractJobID pulls the numeric identifier off the end of a batch
// manager acknowledgement line, e.g. "Submitted batch job 12345".
func extractJobID(ack string) (string, error) {
	m := trailingDigitsRe.FindStringSubmatch(strings.TrimSpace(ack))
	if m == nil {
		return "", fmt.Errorf("submit: could not parse job id from acknowledgement %q", ack)
	}
	return m[1], nil
}
