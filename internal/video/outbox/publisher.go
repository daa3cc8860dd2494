package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/romariotrain/scene-index/internal/queue"
	"github.com/romariotrain/scene-index/internal/storage/postgres"
	"github.com/rs/zerolog"
)

// Publisher реализует Outbox паттерн для надёжной постановки задач в очередь.
// Гарантирует at-least-once delivery семантику.
type Publisher struct {
	outboxRepo *postgres.OutboxRepo
	producer   *queue.Producer
	interval   time.Duration
	batchSize  int
	logger     zerolog.Logger
}

// PublisherConfig содержит конфигурацию для создания Publisher
type PublisherConfig struct {
	OutboxRepo *postgres.OutboxRepo
	Producer   *queue.Producer
	Interval   time.Duration
	BatchSize  int
	Logger     zerolog.Logger
}

// NewPublisher создаёт новый экземпляр Publisher с заданной конфигурацией
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.OutboxRepo == nil {
		return nil, fmt.Errorf("outbox repository is required")
	}
	if cfg.Producer == nil {
		return nil, fmt.Errorf("queue producer is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got: %v", cfg.Interval)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got: %d", cfg.BatchSize)
	}

	return &Publisher{
		outboxRepo: cfg.OutboxRepo,
		producer:   cfg.Producer,
		interval:   cfg.Interval,
		batchSize:  cfg.BatchSize,
		logger:     cfg.Logger.With().Str("component", "outbox_publisher").Logger(),
	}, nil
}

// Start запускает polling механизм для обработки событий из outbox таблицы.
// Блокирует до тех пор, пока не будет отменён контекст.
//
// Гарантии:
// - At-least-once delivery: события могут быть доставлены повторно,
//   дубликаты гасит entry guard воркера
// - Graceful shutdown при отмене контекста
// - Продолжает работу даже при ошибках публикации отдельных событий
func (p *Publisher) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("outbox publisher started")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().
				Err(ctx.Err()).
				Msg("outbox publisher stopped")
			return ctx.Err()

		case <-ticker.C:
			if err := p.publishBatch(ctx); err != nil {
				p.logger.Error().
					Err(err).
					Msg("failed to publish batch")
				// Продолжаем работать, не падаем
			}
		}
	}
}

// publishBatch обрабатывает один batch событий из outbox таблицы
func (p *Publisher) publishBatch(ctx context.Context) error {
	records, err := p.outboxRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("get pending records: %w", err)
	}

	if len(records) == 0 {
		return nil
	}

	var (
		published int
		failed    int
	)

	for _, record := range records {
		eventLogger := p.logger.With().
			Str("event_id", record.EventID).
			Str("event_type", record.EventType).
			Str("video_id", record.AggregateID).
			Int64("outbox_id", record.ID).
			Logger()

		// Ключ — video_id: редоставки одного видео идут в одну партицию
		if err := p.producer.Publish(ctx, record.AggregateID, record.Payload); err != nil {
			eventLogger.Error().
				Err(err).
				Msg("failed to publish task")
			failed++
			continue // пропускаем, попробуем в следующий раз
		}
		published++

		if err := p.outboxRepo.MarkProcessed(ctx, record.ID); err != nil {
			eventLogger.Warn().
				Err(err).
				Msg("failed to mark event as processed")
			// Событие опубликовано, но не помечено — оно опубликуется
			// повторно. Это нормально для at-least-once: consumer обязан
			// быть идемпотентным.
		}
	}

	p.logger.Info().
		Int("total", len(records)).
		Int("published", published).
		Int("failed", failed).
		Msg("batch processing completed")

	return nil
}
