// Package discover enumerates candidate work keys — (subject, session)
// pairs — from either a filesystem walk of the DICOM root or a
// pre-built sessions index, then enriches each row with per-procedure
// output paths and existence flags for the Completion Oracle.
package discover

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/galkepler/snbbsched/internal/config"
	"github.com/galkepler/snbbsched/internal/oracle"
)

// ProcedureColumns holds the per-procedure derived values for one row:
// the resolved output path and whether the Completion Oracle currently
// reports it complete. Kept as a map keyed by procedure name (§9's
// "implicit column existence/absence" note) rather than dynamically
// adding struct fields per procedure.
type ProcedureColumns struct {
	Path   string
	Exists bool
}

// Row is one candidate work key, enriched with dicom existence and a
// ProcedureColumns entry for every configured procedure.
type Row struct {
	Subject     string
	Session     string
	DicomPath   string
	DicomExists bool
	Procedures  map[string]ProcedureColumns
}

var (
	subjectDirRe = regexp.MustCompile(`^sub-[0-9]+$`)
	sessionDirRe = regexp.MustCompile(`^ses-[0-9]+$`)
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)
)

// Table runs Discover and returns its rows.
func Table(cfg *config.Config) ([]Row, error) {
	var raw []rawKey
	var err error
	if cfg.SessionsFile != "" {
		raw, err = readSessionsIndex(cfg.SessionsFile)
	} else {
		raw, err = walkDicomRoot(cfg.DicomRoot)
	}
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(raw))
	for _, k := range raw {
		rows = append(rows, enrich(cfg, k))
	}
	return rows, nil
}

type rawKey struct {
	Subject   string
	Session   string
	DicomPath string
}

// walkDicomRoot implements the filesystem-walk mode: one level for
// sub-*, one more for ses-* under each subject.
func walkDicomRoot(dicomRoot string) ([]rawKey, error) {
	var keys []rawKey
	if dicomRoot == "" {
		return keys, nil
	}
	subjectEntries, err := os.ReadDir(dicomRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, err
	}

	subjects := make([]string, 0, len(subjectEntries))
	for _, e := range subjectEntries {
		if e.IsDir() && subjectDirRe.MatchString(e.Name()) {
			subjects = append(subjects, e.Name())
		}
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		subjectDir := filepath.Join(dicomRoot, subject)
		sessionEntries, err := os.ReadDir(subjectDir)
		if err != nil {
			continue
		}
		sessions := make([]string, 0, len(sessionEntries))
		for _, e := range sessionEntries {
			if e.IsDir() && sessionDirRe.MatchString(e.Name()) {
				sessions = append(sessions, e.Name())
			}
		}
		sort.Strings(sessions)
		for _, session := range sessions {
			keys = append(keys, rawKey{
				Subject:   subject,
				Session:   session,
				DicomPath: filepath.Join(subjectDir, session),
			})
		}
	}
	return keys, nil
}

// sanitizeSubjectCode strips non-digit characters, zero-pads to 4
// digits, and prefixes with sub-.
func sanitizeSubjectCode(raw string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	return "sub-" + padLeft(digits, 4)
}

// sanitizeScanID stringifies, strips non-digit characters, zero-pads
// to 12 digits, and prefixes with ses-.
func sanitizeScanID(raw string) string {
	digits := nonDigitRe.ReplaceAllString(raw, "")
	return "ses-" + padLeft(digits, 12)
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// enrich computes, for a raw key, the dicom_exists flag and every
// configured procedure's output path and existence flag.
func enrich(cfg *config.Config, k rawKey) Row {
	row := Row{
		Subject:     k.Subject,
		Session:     k.Session,
		DicomPath:   k.DicomPath,
		DicomExists: pathExists(k.DicomPath),
		Procedures:  make(map[string]ProcedureColumns, len(cfg.Procedures)),
	}

	for _, p := range cfg.Procedures {
		var path string
		if p.Scope == config.ScopeSubject {
			path = cfg.OutputPath(p, k.Subject, "")
		} else {
			path = cfg.OutputPath(p, k.Subject, k.Session)
		}
		ctx := oracle.Context{
			BidsRoot:        cfg.BidsRoot,
			DerivativesRoot: cfg.DerivativesRoot,
			Subject:         k.Subject,
			Session:         k.Session,
		}
		row.Procedures[p.Name] = ProcedureColumns{
			Path:   path,
			Exists: oracle.Complete(cfg, p, path, ctx),
		}
	}
	return row
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

