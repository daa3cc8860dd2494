package main

import (
	"context"
	"os"

	"github.com/romariotrain/scene-index/internal/app"
	"github.com/romariotrain/scene-index/internal/config"
	"github.com/romariotrain/scene-index/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("mis", "info")
		bootLogger.Error().Err(err).Msg("config load failed")
		os.Exit(1)
	}

	logger := logging.New("mis", cfg.LogLevel)
	os.Exit(app.Run("mis", logger, func(ctx context.Context) error {
		return run(ctx, cfg, logger)
	}))
}
