package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openset-labs/protolabel/internal/pseudolabel"
	"github.com/openset-labs/protolabel/internal/trainer"
)

// RunConfig is the experiment file for one adaptation run.
type RunConfig struct {
	Dataset DatasetConfig `yaml:"dataset"`
	Model   ModelConfig   `yaml:"model"`
	Train   TrainConfig   `yaml:"train"`
}

type DatasetConfig struct {
	Name         string `yaml:"name"`
	SnapshotPath string `yaml:"snapshot_path"`
	SnapshotURL  string `yaml:"snapshot_url"` // optional remote source for the snapshot
}

type ModelConfig struct {
	Distance string  `yaml:"distance"` // euclidean or cosine
	Epsilon  float64 `yaml:"epsilon"`
	Seed     uint64  `yaml:"seed"`
}

type TrainConfig struct {
	Epochs         int     `yaml:"epochs"`
	BatchSize      int     `yaml:"batch_size"`
	LR             float64 `yaml:"lr"`
	RefreshEvery   int     `yaml:"refresh_every"` // 0 derives epochs/15, floored to 1
	MinSupport     int     `yaml:"min_support"`
	Rounds         int     `yaml:"rounds"`
	ClsWeight      float64 `yaml:"cls_weight"`
	EntWeight      float64 `yaml:"ent_weight"`
	Diversity      bool    `yaml:"diversity"`
	CheckpointPath string  `yaml:"checkpoint_path"`
}

// DefaultRunConfig mirrors the usual adaptation hyperparameters.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Model: ModelConfig{
			Distance: string(pseudolabel.MetricCosine),
			Epsilon:  1e-5,
			Seed:     2020,
		},
		Train: TrainConfig{
			Epochs:    15,
			BatchSize: 64,
			LR:        0.01,
			Rounds:    1,
			ClsWeight: 0.3,
			EntWeight: 1.0,
			Diversity: true,
		},
	}
}

// LoadRunConfig reads a YAML run configuration, filling unset fields with
// defaults.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read run config: %w", err)
	}

	cfg := DefaultRunConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse run config: %w", err)
	}

	if cfg.Dataset.SnapshotPath == "" {
		return nil, fmt.Errorf("config: dataset.snapshot_path is required")
	}
	if cfg.Train.RefreshEvery <= 0 {
		cfg.Train.RefreshEvery = max(1, cfg.Train.Epochs/15)
	}
	return &cfg, nil
}

// PseudoConfig maps the run configuration onto the refinement engine,
// given the snapshot's class count.
func (rc *RunConfig) PseudoConfig(numClasses int) pseudolabel.Config {
	cfg := pseudolabel.DefaultConfig(numClasses)
	cfg.Metric = pseudolabel.Metric(rc.Model.Distance)
	cfg.Epsilon = rc.Model.Epsilon
	cfg.MinSupport = rc.Train.MinSupport
	cfg.Rounds = rc.Train.Rounds
	return cfg
}

// TrainerConfig maps the run configuration onto the adaptation loop.
func (rc *RunConfig) TrainerConfig(numClasses int) trainer.Config {
	return trainer.Config{
		Epochs:         rc.Train.Epochs,
		BatchSize:      rc.Train.BatchSize,
		LearningRate:   rc.Train.LR,
		RefreshEvery:   rc.Train.RefreshEvery,
		ClsWeight:      rc.Train.ClsWeight,
		EntWeight:      rc.Train.EntWeight,
		Diversity:      rc.Train.Diversity,
		Seed:           rc.Model.Seed,
		CheckpointPath: rc.Train.CheckpointPath,
		Pseudo:         rc.PseudoConfig(numClasses),
	}
}
