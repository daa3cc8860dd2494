package main

import (
	"context"
	"os"
	"time"

	"github.com/romariotrain/scene-index/internal/config"
	"github.com/romariotrain/scene-index/internal/logging"
	"github.com/romariotrain/scene-index/internal/storage/postgres"
)

func main() {
	logger := logging.New("migrate", "info")

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("config load failed")
		os.Exit(1)
	}
	if err := cfg.RequireDB(); err != nil {
		logger.Error().Err(err).Msg("config invalid")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("db connect failed")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	logger.Info().Msg("schema applied")
}
