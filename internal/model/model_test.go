package model

import (
	"math"
	"testing"
)

func TestNewLinearDeterministic(t *testing.T) {
	a := NewLinear(3, 4, 42)
	b := NewLinear(3, 4, 42)

	x := []float64{1, -0.5, 2, 0.25}
	la, lb := a.Logits(x), b.Logits(x)
	for k := range la {
		if la[k] != lb[k] {
			t.Fatalf("same seed produced different logits: %v vs %v", la, lb)
		}
	}

	c := NewLinear(3, 4, 43)
	lc := c.Logits(x)
	same := true
	for k := range la {
		if la[k] != lc[k] {
			same = false
		}
	}
	if same {
		t.Fatalf("different seeds produced identical logits")
	}
}

func TestLinearLogits(t *testing.T) {
	l, err := LinearFromState(LinearState{
		Weights: [][]float64{{1, 0}, {0, 2}},
		Bias:    []float64{0.5, -1},
	})
	if err != nil {
		t.Fatalf("LinearFromState: %v", err)
	}

	got := l.Logits([]float64{3, 4})
	if got[0] != 3.5 || got[1] != 7 {
		t.Fatalf("logits = %v, want [3.5 7]", got)
	}
}

func TestApplyGradient(t *testing.T) {
	l, _ := LinearFromState(LinearState{
		Weights: [][]float64{{1, 1}, {1, 1}},
		Bias:    []float64{0, 0},
	})

	l.ApplyGradient([]float64{2, 0}, []float64{1, -1}, 0.1)

	got := l.Logits([]float64{1, 0})
	// w00: 1 - 0.1*1*2 = 0.8, b0: -0.1 -> logit0 = 0.7
	// w10: 1 + 0.1*1*2 = 1.2, b1: +0.1 -> logit1 = 1.3
	if math.Abs(got[0]-0.7) > 1e-12 || math.Abs(got[1]-1.3) > 1e-12 {
		t.Fatalf("logits after step = %v, want [0.7 1.3]", got)
	}
}

func TestStateRoundTrip(t *testing.T) {
	l := NewLinear(2, 3, 7)
	restored, err := LinearFromState(l.State())
	if err != nil {
		t.Fatalf("LinearFromState: %v", err)
	}

	x := []float64{0.1, 0.2, 0.3}
	a, b := l.Logits(x), restored.Logits(x)
	for k := range a {
		if a[k] != b[k] {
			t.Fatalf("restored head differs: %v vs %v", a, b)
		}
	}
}

func TestLinearFromStateRejectsMalformed(t *testing.T) {
	if _, err := LinearFromState(LinearState{}); err == nil {
		t.Fatalf("expected error for empty state")
	}
	if _, err := LinearFromState(LinearState{
		Weights: [][]float64{{1, 2}, {3}},
		Bias:    []float64{0, 0},
	}); err == nil {
		t.Fatalf("expected error for ragged weights")
	}
}
