// Package config defines environment configuration structs and the YAML run
// configuration for adaptation experiments.
package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type AppConfig struct {
	ServerEnvConfig
	RunEnvConfig
}

func LoadConfig(ctx context.Context) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ServerEnvConfig configures the status API server.
type ServerEnvConfig struct {
	StatusAddr string `env:"STATUS_ADDR, default=127.0.0.1:8090"`
}

// RunEnvConfig locates the run configuration and environment.
type RunEnvConfig struct {
	Environment   string `env:"ENVIRONMENT, default=dev"`
	RunConfigPath string `env:"RUN_CONFIG, default=configs/run.yaml"`
}
