package checkpoint

import (
	"path/filepath"
	"testing"
)

type testState struct {
	Epoch  int       `json:"epoch"`
	Scores []float64 `json:"scores"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, name := range []string{"state.json", "state.json.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			in := testState{Epoch: 12, Scores: []float64{0.1, 0.9}}

			if err := Save(path, in); err != nil {
				t.Fatalf("Save: %v", err)
			}

			var out testState
			if err := Load(path, &out); err != nil {
				t.Fatalf("Load: %v", err)
			}
			if out.Epoch != 12 || len(out.Scores) != 2 || out.Scores[1] != 0.9 {
				t.Fatalf("round trip mismatch: %+v", out)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	var out testState
	if err := Load(filepath.Join(t.TempDir(), "nope.json"), &out); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
