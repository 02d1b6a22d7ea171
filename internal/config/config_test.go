package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openset-labs/protolabel/internal/pseudolabel"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.Context())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StatusAddr == "" || cfg.RunConfigPath == "" {
		t.Fatalf("defaults missing: %+v", cfg)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STATUS_ADDR", "0.0.0.0:9999")
	t.Setenv("RUN_CONFIG", "configs/custom.yaml")

	cfg, err := LoadConfig(t.Context())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StatusAddr != "0.0.0.0:9999" {
		t.Fatalf("StatusAddr = %q", cfg.StatusAddr)
	}
	if cfg.RunConfigPath != "configs/custom.yaml" {
		t.Fatalf("RunConfigPath = %q", cfg.RunConfigPath)
	}
}

func writeRunConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write run config: %v", err)
	}
	return path
}

func TestLoadRunConfig(t *testing.T) {
	path := writeRunConfig(t, `
dataset:
  name: office-home-art
  snapshot_path: snapshots/art.json.zst
model:
  distance: euclidean
  epsilon: 1.0e-5
train:
  epochs: 30
  min_support: 2
  rounds: 2
`)

	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}
	if cfg.Dataset.SnapshotPath != "snapshots/art.json.zst" {
		t.Fatalf("snapshot path = %q", cfg.Dataset.SnapshotPath)
	}
	if cfg.Model.Distance != "euclidean" || cfg.Train.Rounds != 2 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	// Unset fields keep defaults; refresh interval derives from epochs.
	if cfg.Train.BatchSize != 64 || cfg.Train.LR != 0.01 {
		t.Fatalf("defaults lost: %+v", cfg.Train)
	}
	if cfg.Train.RefreshEvery != 2 {
		t.Fatalf("RefreshEvery = %d, want 2 (30/15)", cfg.Train.RefreshEvery)
	}
}

func TestLoadRunConfigRequiresSnapshotPath(t *testing.T) {
	path := writeRunConfig(t, "train:\n  epochs: 5\n")
	if _, err := LoadRunConfig(path); err == nil {
		t.Fatalf("expected error for missing snapshot path")
	}
}

func TestRunConfigMapping(t *testing.T) {
	path := writeRunConfig(t, `
dataset:
  snapshot_path: snap.json
model:
  distance: euclidean
train:
  epochs: 15
  min_support: 3
`)
	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("LoadRunConfig: %v", err)
	}

	pc := cfg.PseudoConfig(12)
	if pc.NumClasses != 12 || pc.Metric != pseudolabel.MetricEuclidean || pc.MinSupport != 3 {
		t.Fatalf("unexpected pseudo config: %+v", pc)
	}
	if err := pc.Validate(); err != nil {
		t.Fatalf("mapped pseudo config invalid: %v", err)
	}

	tc := cfg.TrainerConfig(12)
	if err := tc.Validate(); err != nil {
		t.Fatalf("mapped trainer config invalid: %v", err)
	}
}
