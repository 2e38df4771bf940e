// Package ux renders terminal output for the operator CLI: colored
// status/manifest tables and inline progress lines for a pass.
package ux

import (
	"fmt"
	"time"

	"github.com/galkepler/snbbsched/internal/manifest"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// PassHeader prints a timestamped header announcing the start of a pass.
func PassHeader(passID string, dryRun bool) {
	mode := "run"
	if dryRun {
		mode = "dry-run"
	}
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Printf("%s[%s]%s  %sPass %s (%s)%s\n",
		Dim, timestamp(), Reset, Bold, passID, mode, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// ManifestTable prints one line per manifest task.
func ManifestTable(tasks []manifest.Task) {
	if len(tasks) == 0 {
		fmt.Printf("  %s(nothing to submit)%s\n", Dim, Reset)
		return
	}
	fmt.Printf("  %s%-4s %-12s %-20s %-14s %s%s\n", Bold, "PRI", "SUBJECT", "SESSION", "PROCEDURE", "DICOM PATH", Reset)
	for _, t := range tasks {
		session := t.Session
		if session == "" {
			session = "-"
		}
		fmt.Printf("  %-4d %-12s %-20s %-14s %s\n", t.Priority, t.Subject, session, t.Procedure, t.DicomPath)
	}
}

// SubmitLine prints the outcome of one submission.
func SubmitLine(subject, session, procedure, jobID string, err error) {
	label := subject
	if session != "" {
		label += "/" + session
	}
	if err != nil {
		fmt.Printf("%s[%s]%s  %s✗ %s %s: %s%s\n", Dim, timestamp(), Reset, Red, label, procedure, err, Reset)
		return
	}
	fmt.Printf("%s[%s]%s  %s✓ %s %s → job %s%s\n", Dim, timestamp(), Reset, Green, label, procedure, jobID, Reset)
}

// PassComplete prints a final summary line for a pass.
func PassComplete(submitted, failed int) {
	fmt.Printf("\n%s[%s]%s  %s%s══ pass complete: %d submitted, %d failed ══%s\n\n",
		Dim, timestamp(), Reset, Bold, Green, submitted, failed, Reset)
}

// Warning prints a non-fatal warning.
func Warning(format string, args ...any) {
	fmt.Printf("%s[%s]%s  %s⚠ %s%s\n", Dim, timestamp(), Reset, Yellow, fmt.Sprintf(format, args...), Reset)
}
