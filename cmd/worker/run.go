package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/romariotrain/scene-index/internal/config"
	"github.com/romariotrain/scene-index/internal/mis"
	"github.com/romariotrain/scene-index/internal/objstore"
	"github.com/romariotrain/scene-index/internal/pipeline"
	"github.com/romariotrain/scene-index/internal/queue"
	"github.com/romariotrain/scene-index/internal/storage/postgres"
	"github.com/romariotrain/scene-index/internal/video/models"
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
	if err := cfg.RequireMIS(); err != nil {
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

	client, err := mis.NewClient(mis.ClientConfig{
		BaseURL: cfg.MISURL,
		Timeout: 5 * time.Minute,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	// MIS обязан быть жив и согласован по размерностям до первого таска
	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("mis health: %w", err)
	}
	if health.TextDim != models.TextVecDim || health.VisionDim != models.ImageVecDim {
		return fmt.Errorf("mis dimensions text=%d vision=%d, schema expects text=%d vision=%d",
			health.TextDim, health.VisionDim, models.TextVecDim, models.ImageVecDim)
	}
	logger.Info().
		Strs("models", health.LoadedModels).
		Str("device", health.Device).
		Msg("mis is up")

	outboxRepo := postgres.NewOutboxRepo(db)
	videoRepo := postgres.NewVideoRepo(db, outboxRepo)
	jobRepo := postgres.NewJobRepo(db)
	locker := postgres.NewAdvisoryLocker(db)

	pipe, err := pipeline.New(pipeline.Config{
		Videos: videoRepo,
		Jobs:   jobRepo,
		Locker: locker,
		Store:  gateway,
		Models: client,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	// Пул воркеров: каждый держит своего consumer'а в общей группе,
	// Kafka раздаёт партиции между ними.
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerCount; i++ {
		workerLogger := logger.With().Int("worker", i).Logger()
		g.Go(func() error {
			consumer, err := queue.NewConsumer(queue.ConsumerConfig{
				Brokers:     cfg.KafkaBrokers,
				Topic:       cfg.KafkaTopic,
				GroupID:     cfg.KafkaGroupID,
				TaskTimeout: cfg.TaskTimeout,
				Logger:      workerLogger,
			})
			if err != nil {
				return err
			}
			defer consumer.Close()

			err = consumer.Run(gctx, pipe.HandleTask)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}
