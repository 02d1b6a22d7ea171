// One-shot pseudo-label refinement over a captured snapshot: reads the
// snapshot, runs a single refinement pass and optionally writes the flat
// label vector to a file.
package main

import (
	"flag"
	"os"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/openset-labs/protolabel/internal/dataset"
	"github.com/openset-labs/protolabel/internal/pseudolabel"
	"github.com/openset-labs/protolabel/internal/utils/logger"
)

type output struct {
	Threshold float64 `json:"threshold"`
	Degraded  bool    `json:"degraded"`
	Labels    []int   `json:"labels"`
}

func main() {
	snapshotPath := flag.String("snapshot", "", "path to the target snapshot (.json or .json.zst)")
	metric := flag.String("metric", string(pseudolabel.MetricCosine), "distance metric: euclidean or cosine")
	epsilon := flag.Float64("epsilon", 1e-5, "numerical-stability constant")
	minSupport := flag.Int("min-support", 0, "minimum hard-assignment count for a class to stay eligible")
	rounds := flag.Int("rounds", 1, "extra hard-label refinement rounds")
	outPath := flag.String("out", "", "optional path for the refined label vector (JSON)")
	flag.Parse()

	logger.Init()

	if *snapshotPath == "" {
		log.Fatal().Msg("-snapshot is required")
	}

	snap, err := dataset.Load(*snapshotPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load snapshot")
	}

	cfg := pseudolabel.DefaultConfig(snap.NumClasses)
	cfg.Metric = pseudolabel.Metric(*metric)
	cfg.Epsilon = *epsilon
	cfg.MinSupport = *minSupport
	cfg.Rounds = *rounds

	engine, err := pseudolabel.NewEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid engine configuration")
	}

	res, err := engine.Refine(snap.Records())
	if err != nil {
		log.Fatal().Err(err).Msg("refinement pass failed")
	}

	var unknown int
	for _, l := range res.Labels {
		if l.IsUnknown() {
			unknown++
		}
	}
	log.Info().
		Int("samples", len(res.Labels)).
		Int("unknown", unknown).
		Float64("threshold", res.Threshold).
		Bool("degraded", res.Degraded).
		Msg("refinement pass complete")

	if *outPath == "" {
		return
	}

	flat := make([]int, len(res.Labels))
	for i, l := range res.Labels {
		flat[i] = l.Flat(snap.NumClasses)
	}
	data, err := sonic.Marshal(output{Threshold: res.Threshold, Degraded: res.Degraded, Labels: flat})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode labels")
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("failed to write labels")
	}
	log.Info().Str("path", *outPath).Msg("labels written")
}
