// Package dataset handles target-domain capture snapshots: the ordered
// per-sample records (features, logits, ground-truth label) materialized
// from one frozen forward pass over the target dataset.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/openset-labs/protolabel/internal/pseudolabel"
)

// Sample is one captured record. Logits are the raw classifier outputs;
// Label is ground truth, carried for accuracy reporting only.
type Sample struct {
	Index    int       `json:"index"`
	Features []float64 `json:"features"`
	Logits   []float64 `json:"logits"`
	Label    int       `json:"label"`
}

// Snapshot is a full-dataset capture, ordered by sample index.
type Snapshot struct {
	Name       string   `json:"name"`
	NumClasses int      `json:"num_classes"`
	FeatureDim int      `json:"feature_dim"`
	Samples    []Sample `json:"samples"`
}

func (s *Snapshot) Validate() error {
	if s.NumClasses < 2 {
		return fmt.Errorf("dataset: snapshot declares %d classes, need at least 2", s.NumClasses)
	}
	if len(s.Samples) == 0 {
		return fmt.Errorf("dataset: snapshot has no samples")
	}

	lastIndex := -1
	for i, sample := range s.Samples {
		if sample.Index <= lastIndex {
			return fmt.Errorf("dataset: samples not ordered by index at position %d", i)
		}
		lastIndex = sample.Index

		if len(sample.Features) != s.FeatureDim {
			return fmt.Errorf("dataset: sample %d has feature dim %d, want %d", sample.Index, len(sample.Features), s.FeatureDim)
		}
		if len(sample.Logits) != s.NumClasses {
			return fmt.Errorf("dataset: sample %d has %d logits, want %d", sample.Index, len(sample.Logits), s.NumClasses)
		}
	}
	return nil
}

// Records converts the snapshot into engine input.
func (s *Snapshot) Records() []pseudolabel.Record {
	records := make([]pseudolabel.Record, len(s.Samples))
	for i, sample := range s.Samples {
		records[i] = pseudolabel.Record{
			Index:    sample.Index,
			Features: sample.Features,
			Output:   sample.Logits,
			Truth:    sample.Label,
		}
	}
	return records
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// Load reads a snapshot from disk. Files with a .zst suffix are
// zstd-decompressed before decoding.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read snapshot: %w", err)
	}

	if isCompressed(path) {
		r, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("dataset: zstd reader: %w", err)
		}
		defer r.Close()

		data, err = r.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("dataset: decompress snapshot: %w", err)
		}
	}

	var snap Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("dataset: decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save writes a snapshot atomically; a .zst suffix selects zstd compression.
func Save(path string, snap *Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	data, err := sonic.Marshal(snap)
	if err != nil {
		return fmt.Errorf("dataset: encode snapshot: %w", err)
	}

	if isCompressed(path) {
		w, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("dataset: zstd writer: %w", err)
		}
		data = w.EncodeAll(data, nil)
		if err := w.Close(); err != nil {
			return fmt.Errorf("dataset: close zstd writer: %w", err)
		}
	}

	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("dataset: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("dataset: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("dataset: close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
