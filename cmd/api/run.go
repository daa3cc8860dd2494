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
	"github.com/romariotrain/scene-index/internal/objstore"
	"github.com/romariotrain/scene-index/internal/queue"
	"github.com/romariotrain/scene-index/internal/storage/postgres"
	"github.com/romariotrain/scene-index/internal/video/httpapi"
	"github.com/romariotrain/scene-index/internal/video/outbox"
	"github.com/romariotrain/scene-index/internal/video/service"
)

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := cfg.RequireDB(); err != nil {
		return err
	}
	if err := cfg.RequireKafka(); err != nil {
		return err
	}
	if err := cfg.RequireMinio(); err != nil {
		return err
	}

	db, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	gateway, err := objstore.New(objstore.Config{
		Endpoint:         cfg.MinioEndpoint,
		ExternalEndpoint: cfg.MinioExternalEndpoint,
		AccessKey:        cfg.MinioAccessKey,
		SecretKey:        cfg.MinioSecretKey,
		Secure:           cfg.MinioSecure,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	if err := gateway.EnsureBuckets(ctx); err != nil {
		return fmt.Errorf("ensure buckets: %w", err)
	}

	producer, err := queue.NewProducer(queue.ProducerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer producer.Close()

	// Dependencies
	outboxRepo := postgres.NewOutboxRepo(db)
	videoRepo := postgres.NewVideoRepo(db, outboxRepo)
	jobRepo := postgres.NewJobRepo(db)
	userRepo := postgres.NewUserRepo(db)

	svc := service.New(videoRepo, jobRepo, gateway)
	h := httpapi.New(svc, logger)
	router := httpapi.NewRouter(h, userRepo)

	publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
		OutboxRepo: outboxRepo,
		Producer:   producer,
		Interval:   cfg.OutboxInterval,
		BatchSize:  cfg.OutboxBatchSize,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := publisher.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
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
