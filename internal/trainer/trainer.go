// Package trainer runs target-domain adaptation: it alternates pseudo-label
// refinement passes with SGD epochs on the trainable head, tracks open-set
// validation accuracy and keeps the best checkpoint.
package trainer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/openset-labs/protolabel/internal/checkpoint"
	"github.com/openset-labs/protolabel/internal/dataset"
	"github.com/openset-labs/protolabel/internal/model"
	"github.com/openset-labs/protolabel/internal/pseudolabel"
)

// Config holds the adaptation loop knobs.
type Config struct {
	Epochs         int
	BatchSize      int
	LearningRate   float64
	RefreshEvery   int     // epochs between pseudo-label refreshes
	ClsWeight      float64 // classification loss weight
	EntWeight      float64 // entropy loss weight
	Diversity      bool    // subtract the marginal-entropy term
	Seed           uint64
	CheckpointPath string // empty disables checkpointing

	Pseudo pseudolabel.Config
}

func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("trainer: epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("trainer: batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("trainer: learning rate must be positive, got %g", c.LearningRate)
	}
	if c.RefreshEvery <= 0 {
		return fmt.Errorf("trainer: refresh interval must be positive, got %d", c.RefreshEvery)
	}
	return c.Pseudo.Validate()
}

// Status is a point-in-time view of the run, safe to serve while training.
type Status struct {
	Epoch        int             `json:"epoch"`
	Epochs       int             `json:"epochs"`
	Loss         float64         `json:"loss"`
	Threshold    float64         `json:"threshold"`
	DegradedPass bool            `json:"degraded_pass"`
	Accuracy     OpenSetAccuracy `json:"accuracy"`
	BestOS2      float64         `json:"best_os2"`
	Running      bool            `json:"running"`
}

// Checkpoint is the persisted best state of a run.
type Checkpoint struct {
	Epoch     int               `json:"epoch"`
	Threshold float64           `json:"threshold"`
	Accuracy  OpenSetAccuracy   `json:"accuracy"`
	Head      model.LinearState `json:"head"`
}

// Trainer owns one adaptation run over a captured snapshot. The feature
// extractor stays frozen; only the head trains.
type Trainer struct {
	cfg    Config
	snap   *dataset.Snapshot
	head   *model.Linear
	engine *pseudolabel.Engine

	labels    []pseudolabel.Label // current pseudo-labels, snapshot order
	threshold float64
	rng       *rand.Rand

	Ctx    context.Context
	Cancel context.CancelFunc

	mu           sync.Mutex
	status       Status
	refreshAsked atomic.Bool
}

func New(cfg Config, snap *dataset.Snapshot, head *model.Linear) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if head.Dim() != snap.FeatureDim || head.NumClasses() != snap.NumClasses {
		return nil, fmt.Errorf("trainer: head is %dx%d, snapshot wants %dx%d",
			head.NumClasses(), head.Dim(), snap.NumClasses, snap.FeatureDim)
	}

	engine, err := pseudolabel.NewEngine(cfg.Pseudo)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Trainer{
		cfg:    cfg,
		snap:   snap,
		head:   head,
		engine: engine,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xda3e39cb94b95bdb)),
		Ctx:    ctx,
		Cancel: cancel,
		status: Status{Epochs: cfg.Epochs},
	}, nil
}

// Run executes the adaptation loop until the epoch budget is spent or Stop
// is called. It blocks.
func (t *Trainer) Run() error {
	n := len(t.snap.Samples)
	batches := (n + t.cfg.BatchSize - 1) / t.cfg.BatchSize
	totalSteps := t.cfg.Epochs * batches
	step := 0

	t.setRunning(true)
	defer t.setRunning(false)

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		select {
		case <-t.Ctx.Done():
			log.Info().Int("epoch", epoch).Msg("adaptation stopped early")
			return nil
		default:
		}

		if epoch%t.cfg.RefreshEvery == 0 || t.refreshAsked.Swap(false) {
			if err := t.refresh(epoch); err != nil {
				return err
			}
		}

		loss := t.trainEpoch(&step, totalSteps)

		t.mu.Lock()
		t.status.Epoch = epoch + 1
		t.status.Loss = loss
		t.mu.Unlock()

		log.Info().Int("epoch", epoch+1).Int("epochs", t.cfg.Epochs).Float64("loss", loss).Msg("epoch done")
	}

	return nil
}

// Stop requests an early shutdown; Run returns after the current epoch.
func (t *Trainer) Stop() {
	t.Cancel()
}

// RequestRefresh schedules an out-of-band pseudo-label refresh before the
// next epoch.
func (t *Trainer) RequestRefresh() {
	t.refreshAsked.Store(true)
}

// Status returns a copy of the current run state.
func (t *Trainer) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Head exposes the trained head, e.g. for a final save.
func (t *Trainer) Head() *model.Linear {
	return t.head
}

func (t *Trainer) setRunning(running bool) {
	t.mu.Lock()
	t.status.Running = running
	t.mu.Unlock()
}

// refresh runs one frozen pass of the engine with the head's current
// outputs, swaps in the new pseudo-labels and re-validates.
func (t *Trainer) refresh(epoch int) error {
	logits := make([][]float64, len(t.snap.Samples))
	records := make([]pseudolabel.Record, len(t.snap.Samples))
	truths := make([]int, len(t.snap.Samples))
	for i, sample := range t.snap.Samples {
		logits[i] = t.head.Logits(sample.Features)
		truths[i] = sample.Label
		records[i] = pseudolabel.Record{
			Index:    sample.Index,
			Features: sample.Features,
			Output:   logits[i],
			Truth:    sample.Label,
		}
	}

	res, err := t.engine.Refine(records)
	if err != nil {
		return fmt.Errorf("trainer: refresh at epoch %d: %w", epoch, err)
	}

	t.labels = res.Labels
	t.threshold = res.Threshold

	acc := evaluateOpenSet(logits, truths, t.snap.NumClasses, res.Threshold, t.cfg.Pseudo.Epsilon)
	log.Info().
		Int("epoch", epoch).
		Float64("threshold", res.Threshold).
		Float64("os1", acc.OS1).
		Float64("os2", acc.OS2).
		Float64("unknown", acc.Unknown).
		Msg("pseudo-labels refreshed")

	t.mu.Lock()
	t.status.Threshold = res.Threshold
	t.status.DegradedPass = res.Degraded
	t.status.Accuracy = acc
	best := acc.OS2 >= t.status.BestOS2
	if best {
		t.status.BestOS2 = acc.OS2
	}
	t.mu.Unlock()

	if best && t.cfg.CheckpointPath != "" {
		ckpt := Checkpoint{
			Epoch:     epoch,
			Threshold: res.Threshold,
			Accuracy:  acc,
			Head:      t.head.State(),
		}
		if err := checkpoint.Save(t.cfg.CheckpointPath, ckpt); err != nil {
			log.Error().Err(err).Msg("failed to save checkpoint")
		}
	}

	return nil
}

func (t *Trainer) trainEpoch(step *int, totalSteps int) float64 {
	n := len(t.snap.Samples)
	perm := t.rng.Perm(n)
	meter := averageMeter{}

	for start := 0; start < n; start += t.cfg.BatchSize {
		end := min(start+t.cfg.BatchSize, n)
		idx := perm[start:end]

		logits := make([][]float64, len(idx))
		labels := make([]int, len(idx))
		for i, pos := range idx {
			logits[i] = t.head.Logits(t.snap.Samples[pos].Features)
			labels[i] = t.labels[pos].Flat(t.snap.NumClasses)
		}

		loss, grads := batchLoss(logits, labels, t.snap.NumClasses, t.cfg.ClsWeight, t.cfg.EntWeight, t.cfg.Diversity)
		lr := decayLR(t.cfg.LearningRate, *step, totalSteps)
		*step++

		if grads == nil {
			// Every sample in the batch is sentinel-labeled; nothing to fit.
			continue
		}

		for i, pos := range idx {
			t.head.ApplyGradient(t.snap.Samples[pos].Features, grads[i], lr)
		}
		meter.update(loss, len(idx))
	}

	return meter.average()
}
