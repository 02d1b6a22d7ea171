// Package checkpoint persists adaptation state between runs.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
)

func isCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// Save writes state as JSON, zstd-compressed when the path carries a .zst
// suffix. The write is atomic: a temp file in the same directory is renamed
// over the target.
func Save(path string, state any) error {
	data, err := sonic.Marshal(state)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}

	if isCompressed(path) {
		w, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("checkpoint: zstd writer: %w", err)
		}
		data = w.EncodeAll(data, nil)
		if err := w.Close(); err != nil {
			return fmt.Errorf("checkpoint: close zstd writer: %w", err)
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("checkpoint: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("checkpoint: close: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a checkpoint written by Save into out.
func Load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("checkpoint: read: %w", err)
	}

	if isCompressed(path) {
		r, err := zstd.NewReader(nil)
		if err != nil {
			return fmt.Errorf("checkpoint: zstd reader: %w", err)
		}
		defer r.Close()

		data, err = r.DecodeAll(data, nil)
		if err != nil {
			return fmt.Errorf("checkpoint: decompress: %w", err)
		}
	}

	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("checkpoint: decode: %w", err)
	}
	return nil
}
