package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openset-labs/protolabel/internal/config"
	"github.com/openset-labs/protolabel/internal/dataset"
	"github.com/openset-labs/protolabel/internal/model"
	"github.com/openset-labs/protolabel/internal/statusapi"
	"github.com/openset-labs/protolabel/internal/trainer"
	"github.com/openset-labs/protolabel/internal/utils/logger"
)

func main() {
	logger.Init()
	log.Info().Msg("Starting target adaptation...")

	ctx := context.Background()
	cfg, err := config.LoadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}

	runCfg, err := config.LoadRunConfig(cfg.RunConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load run configuration")
	}

	snap, err := loadSnapshot(ctx, runCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load target snapshot")
	}
	log.Info().Str("dataset", snap.Name).Int("samples", len(snap.Samples)).Int("classes", snap.NumClasses).Msg("snapshot loaded")

	head := model.NewLinear(snap.NumClasses, snap.FeatureDim, runCfg.Model.Seed)

	tr, err := trainer.New(runCfg.TrainerConfig(snap.NumClasses), snap, head)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init trainer")
	}

	srv := statusapi.NewServer(cfg.StatusAddr, tr)
	go func() {
		if err := srv.Start(tr.Ctx); err != nil {
			log.Error().Err(err).Msg("status server shutdown failed")
		}
	}()

	// graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("shutdown signal received, stopping adaptation")
		tr.Stop()
	}()

	if err := tr.Run(); err != nil {
		log.Fatal().Err(err).Msg("adaptation run failed")
	}

	tr.Cancel()

	st := tr.Status()
	log.Info().
		Int("epochs", st.Epoch).
		Float64("best_os2", st.BestOS2).
		Float64("threshold", st.Threshold).
		Msg("adaptation finished")
}

func loadSnapshot(ctx context.Context, runCfg *config.RunConfig) (*dataset.Snapshot, error) {
	path := runCfg.Dataset.SnapshotPath
	if _, err := os.Stat(path); os.IsNotExist(err) && runCfg.Dataset.SnapshotURL != "" {
		return dataset.NewFetcher(2 * time.Minute).Fetch(ctx, runCfg.Dataset.SnapshotURL, path)
	}
	return dataset.Load(path)
}
