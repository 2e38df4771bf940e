package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/galkepler/snbbsched/internal/config"
)

func TestInit_WritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".scheduler", "config.yaml")
	if err := Init(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Procedures) != 2 {
		t.Fatalf("len(Procedures) = %d, want 2", len(cfg.Procedures))
	}
	if cfg.Procedures[1].DependsOn[0] != "bids" {
		t.Fatalf("expected recon to depend on bids, got %v", cfg.Procedures[1].DependsOn)
	}
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Init(path); err != nil {
		t.Fatal(err)
	}
	if err := Init(path); err == nil {
		t.Fatal("expected second Init to fail")
	}
}
