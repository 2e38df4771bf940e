// Package oracle implements the Completion Oracle: the conservative,
// never-raising check for whether a procedure's output is complete on
// disk, including the three named specialized overrides from §4.1.
package oracle

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/galkepler/snbbsched/internal/config"
)

// Context carries the filesystem roots and work-key coordinates needed
// by the specialized overrides, which must independently locate a
// subject's BIDS directory or another procedure's output directory.
type Context struct {
	BidsRoot        string
	DerivativesRoot string
	Subject         string
	Session         string
}

// checker is a completion check for one named procedure. The generic
// marker check is always run first; checker layers additional
// conditions on top (§4.1's "additional conditions" wording).
type checker func(cfg *config.Config, proc config.Procedure, outputPath string, ctx Context) bool

// registry dispatches specialized procedure names to their checker.
// This is the static form of §9's "dynamic procedure registration"
// re-architecture note: a name keyed dispatch table rather than a
// runtime-mutable global registry.
var registry = map[string]checker{
	"freesurfer": checkFreesurfer,
	"qsiprep":    checkQsiprep,
	"qsirecon":   checkQsirecon,
}

// Complete reports whether proc's output at outputPath is complete,
// applying any specialized override registered for proc.Name on top of
// the generic marker check. Never returns an error: any filesystem
// problem (missing directory, permission, malformed marker file)
// resolves conservatively to false.
func Complete(cfg *config.Config, proc config.Procedure, outputPath string, ctx Context) bool {
	if !isDir(outputPath) {
		return false
	}
	if !genericComplete(proc.CompletionMarker, outputPath) {
		return false
	}
	if check, ok := registry[proc.Name]; ok {
		return check(cfg, proc, outputPath, ctx)
	}
	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// genericComplete implements the generic (non-specialized) marker
// contract from §4.1.
func genericComplete(marker []string, outputPath string) bool {
	if len(marker) == 0 {
		return dirHasEntries(outputPath)
	}
	for _, pattern := range marker {
		if !patternMatches(outputPath, pattern) {
			return false
		}
	}
	return true
}

func dirHasEntries(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	return len(entries) > 0
}

const globMeta = "*?["

func isGlobPattern(pattern string) bool {
	return strings.ContainsAny(pattern, globMeta)
}

// patternMatches implements one marker pattern: a literal existence
// test if it carries no glob metacharacters, otherwise a recursive
// glob match rooted at outputPath.
func patternMatches(outputPath, pattern string) bool {
	if !isGlobPattern(pattern) {
		_, err := os.Stat(filepath.Join(outputPath, pattern))
		return err == nil
	}
	return globMatchesAny(outputPath, pattern)
}

// globMatchesAny walks outputPath recursively and reports whether any
// slash-relative path beneath it matches the compiled glob pattern.
// filepath.Glob only matches one path segment per "*"; patterns like
// "anat/*_T1w.nii.gz" need a compiled matcher tested against every
// discoverable relative path, which is what gobwas/glob (with '/' as
// an explicit separator, so a bare "*" never crosses directories) buys
// over the stdlib.
func globMatchesAny(outputPath, pattern string) bool {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return false
	}
	found := false
	_ = filepath.WalkDir(outputPath, func(path string, d os.DirEntry, err error) error {
		if err != nil || found {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outputPath, path)
		if err != nil {
			return nil
		}
		if g.Match(filepath.ToSlash(rel)) {
			found = true
		}
		return nil
	})
	return found
}

// checkFreesurfer implements the "freesurfer"-like subject
// reconstruction override: the recon-all.done marker's #CMDARGS line
// must list exactly as many "-i" input flags as there are T1-weighted
// NIfTI files currently discoverable under the subject's BIDS
// directory. A mismatch means a session was added after the job ran
// and the subject must be re-queued despite the marker's presence.
func checkFreesurfer(cfg *config.Config, proc config.Procedure, outputPath string, ctx Context) bool {
	markerPath := filepath.Join(outputPath, "scripts", "recon-all.done")
	inputCount, ok := countCmdArgsInputs(markerPath)
	if !ok {
		return false
	}
	subjectBidsDir := filepath.Join(ctx.BidsRoot, ctx.Subject)
	t1Count := countT1Files(subjectBidsDir)
	return inputCount == t1Count
}

// countCmdArgsInputs parses the #CMDARGS line of a recon-all.done
// marker file and counts occurrences of the -i input flag.
func countCmdArgsInputs(markerPath string) (int, bool) {
	f, err := os.Open(markerPath)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(strings.TrimSpace(line), "#CMDARGS") {
			continue
		}
		fields := strings.Fields(line)
		count := 0
		for _, field := range fields {
			if field == "-i" {
				count++
			}
		}
		return count, true
	}
	return 0, false
}

// countT1Files recursively counts T1-weighted NIfTI files under a
// subject's BIDS directory.
func countT1Files(subjectBidsDir string) int {
	count := 0
	_ = filepath.WalkDir(subjectBidsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.Contains(name, "T1w") && (strings.HasSuffix(name, ".nii.gz") || strings.HasSuffix(name, ".nii")) {
			count++
		}
		return nil
	})
	return count
}

// checkQsiprep implements the "qsiprep"-like preprocessing override:
// at least one ses-* child must exist in the subject's output
// directory, and that count must equal the number of BIDS session
// directories for the subject that contain a DWI modality.
func checkQsiprep(cfg *config.Config, proc config.Procedure, outputPath string, ctx Context) bool {
	outCount := countSesChildren(outputPath)
	if outCount == 0 {
		return false
	}
	bidsCount := countDwiSessions(filepath.Join(ctx.BidsRoot, ctx.Subject))
	return outCount == bidsCount
}

// checkQsirecon implements the "qsirecon"-like reconstruction
// override: the count of ses-* children in the subject's
// reconstruction output must equal the count in the subject's
// preprocessing (qsiprep) output.
func checkQsirecon(cfg *config.Config, proc config.Procedure, outputPath string, ctx Context) bool {
	preprocProc, ok := cfg.ByName("qsiprep")
	if !ok {
		return false
	}
	preprocPath := cfg.OutputPath(preprocProc, ctx.Subject, "")
	return countSesChildren(outputPath) == countSesChildren(preprocPath)
}

func countSesChildren(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "ses-") {
			count++
		}
	}
	return count
}

// countDwiSessions counts BIDS session directories under a subject
// that contain a dwi/ modality directory with at least one entry.
func countDwiSessions(subjectBidsDir string) int {
	entries, err := os.ReadDir(subjectBidsDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "ses-") {
			continue
		}
		dwiDir := filepath.Join(subjectBidsDir, e.Name(), "dwi")
		if dirHasEntries(dwiDir) {
			count++
		}
	}
	return count
}
