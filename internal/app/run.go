package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

type Runner func(ctx context.Context) error

// Run исполняет сервис до SIGINT/SIGTERM или до ошибки. Возвращает exit code.
func Run(serviceName string, logger zerolog.Logger, run Runner) int {
	logger.Info().Str("service", serviceName).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	select {
	case <-ctx.Done():
		logger.Info().Str("service", serviceName).Msg("shutting down")
		// небольшой grace period, чтобы run успел закрыть коннекты
		select {
		case <-errCh:
		case <-time.After(10 * time.Second):
		}
		return 0
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Str("service", serviceName).Msg("failed")
			return 1
		}
		logger.Info().Str("service", serviceName).Msg("stopped")
		return 0
	}
}
