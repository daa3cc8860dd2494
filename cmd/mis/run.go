package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/scene-index/internal/config"
	"github.com/romariotrain/scene-index/internal/inference"
)

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.RequireModelCache(); err != nil {
		return err
	}

	// Все модели грузятся здесь, один раз. Нет модели в кэше — сервис не
	// стартует.
	manager, err := inference.NewManager(ctx, inference.ManagerConfig{
		CacheDir:    cfg.ModelCacheDir,
		MaxInflight: int64(cfg.MISMaxInflight),
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	h := inference.NewHandler(manager, logger)
	srv := &http.Server{
		Addr:              cfg.MISAddr,
		Handler:           inference.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.MISAddr).Msg("inference server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
