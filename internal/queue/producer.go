package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
	WriteTimeout time.Duration
	BatchSize    int
	Async        bool
	Logger       zerolog.Logger
}

type Producer struct {
	writer *kafkago.Writer
	config ProducerConfig
	logger zerolog.Logger
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers list is empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is empty")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries cannot be negative")
	}
	if cfg.RetryBackoff < 0 {
		return nil, fmt.Errorf("retry_backoff cannot be negative")
	}
	if cfg.WriteTimeout < 0 {
		return nil, fmt.Errorf("write_timeout cannot be negative")
	}

	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}

	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafkago.Hash{},
			WriteTimeout: cfg.WriteTimeout,
			BatchSize:    cfg.BatchSize,
			Async:        cfg.Async,
		},
		config: cfg,
		logger: cfg.Logger.With().Str("component", "kafka_producer").Logger(),
	}, nil
}

// Publish пишет сообщение с ретраями и backoff. Ключ — video_id: все
// редоставки одного видео попадают в одну партицию.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	msg := kafkago.Message{
		Key:   []byte(key),
		Value: value,
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.config.RetryBackoff * time.Duration(attempt)):
			}
		}

		if lastErr = p.writer.WriteMessages(ctx, msg); lastErr == nil {
			return nil
		}
		p.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Str("key", key).
			Msg("kafka publish attempt failed")
	}
	return fmt.Errorf("kafka publish: %w", lastErr)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
