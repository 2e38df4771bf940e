// Package config loads and validates the scheduler's YAML configuration
// document: path roots, store locations, batch submission defaults, and
// the ordered list of procedures that make up the pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	ScopeSession = "session"
	ScopeSubject = "subject"
)

// CompletionMarker holds the zero, one, or many glob/literal patterns
// that determine whether a procedure's output is complete (§4.1). The
// YAML source may be null, a single scalar, or a sequence; Marker
// always normalizes to a slice (nil for "null").
type CompletionMarker []string

// UnmarshalYAML accepts null, a scalar string, or a sequence of strings.
func (m *CompletionMarker) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" {
			*m = nil
			return nil
		}
		*m = CompletionMarker{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return fmt.Errorf("config: completion_marker: %w", err)
		}
		if len(items) == 0 {
			return fmt.Errorf("config: completion_marker: sequence must not be empty")
		}
		*m = CompletionMarker(items)
		return nil
	default:
		return fmt.Errorf("config: completion_marker: must be null, a string, or a sequence of strings")
	}
}

// Procedure is a declared processing step. Immutable for the lifetime
// of a scheduler pass.
type Procedure struct {
	Name             string           `yaml:"name"`
	OutputDir        string           `yaml:"output_dir"`
	Script           string           `yaml:"script"`
	Scope            string           `yaml:"scope"`
	DependsOn        []string         `yaml:"depends_on"`
	CompletionMarker CompletionMarker `yaml:"completion_marker"`
}

// Config is the top-level scheduler configuration document.
type Config struct {
	DicomRoot       string      `yaml:"dicom_root"`
	BidsRoot        string      `yaml:"bids_root"`
	DerivativesRoot string      `yaml:"derivatives_root"`
	StateFile       string      `yaml:"state_file"`
	LogFile         string      `yaml:"log_file"`
	SessionsFile    string      `yaml:"sessions_file"`
	BatchPartition  string      `yaml:"batch_partition"`
	BatchAccount    string      `yaml:"batch_account"`
	BatchMem        string      `yaml:"batch_mem"`
	BatchCPUs       string      `yaml:"batch_cpus"`
	BatchLogDir     string      `yaml:"batch_log_dir"`
	Procedures      []Procedure `yaml:"procedures"`
}

// Load reads a YAML config file and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for errors and fills in defaults.
func Validate(cfg *Config) error {
	if cfg.DicomRoot == "" {
		return fmt.Errorf("config: 'dicom_root' is required")
	}
	if cfg.BidsRoot == "" {
		return fmt.Errorf("config: 'bids_root' is required")
	}
	if cfg.StateFile == "" {
		return fmt.Errorf("config: 'state_file' is required")
	}
	if len(cfg.Procedures) == 0 {
		return fmt.Errorf("config: at least one procedure is required")
	}
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(filepath.Dir(cfg.StateFile), "scheduler_audit.jsonl")
	}

	seen := make(map[string]bool, len(cfg.Procedures))
	for i := range cfg.Procedures {
		p := &cfg.Procedures[i]
		if p.Name == "" {
			return fmt.Errorf("config: procedure %d: 'name' is required", i+1)
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate procedure name %q", p.Name)
		}
		seen[p.Name] = true

		switch p.Scope {
		case ScopeSession, ScopeSubject:
		case "":
			return fmt.Errorf("config: procedure %q: 'scope' is required", p.Name)
		default:
			return fmt.Errorf("config: procedure %q: unknown scope %q (must be session or subject)", p.Name, p.Scope)
		}

		if p.Script == "" {
			return fmt.Errorf("config: procedure %q: 'script' is required", p.Name)
		}

		// Every depends_on entry must name a procedure already seen
		// (i.e. declared earlier in the list). This is stronger than
		// simple existence: it makes a dependency cycle structurally
		// impossible, since every edge points strictly backward in
		// declaration order — there is no separate cycle-detection
		// pass to write or to get wrong.
		for _, dep := range p.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("config: procedure %q: depends_on %q must name an earlier-declared procedure", p.Name, dep)
			}
		}
	}

	return nil
}

// ByName returns the procedure with the given name, or false if absent.
func (c *Config) ByName(name string) (Procedure, bool) {
	for _, p := range c.Procedures {
		if p.Name == name {
			return p, true
		}
	}
	return Procedure{}, false
}

// ProcRoot returns the root directory under which a procedure's output
// lives: the BIDS root if output_dir is empty, else derivatives_root/output_dir.
func (c *Config) ProcRoot(p Procedure) string {
	if p.OutputDir == "" {
		return c.BidsRoot
	}
	return filepath.Join(c.DerivativesRoot, p.OutputDir)
}

// OutputPath returns the output path for a procedure given a subject and
// (possibly empty) session, per the scope rule.
func (c *Config) OutputPath(p Procedure, subject, session string) string {
	root := c.ProcRoot(p)
	if p.Scope == ScopeSubject || session == "" {
		return filepath.Join(root, subject)
	}
	return filepath.Join(root, subject, session)
}
