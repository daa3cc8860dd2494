package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// Handler обрабатывает одну задачу. Дедупликация — на entry guard
// пайплайна, не здесь.
type Handler func(ctx context.Context, key string, value []byte) error

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// TaskTimeout — wall-clock лимит одной попытки (по умолчанию 600s).
	TaskTimeout time.Duration
	// MaxRetries — повторы после первой неудачной попытки (по умолчанию 2).
	MaxRetries int
	// RetryBackoff — пауза перед повтором, удваивается (по умолчанию 1s).
	RetryBackoff time.Duration
	Logger       zerolog.Logger
}

type Consumer struct {
	reader *kafkago.Reader
	config ConsumerConfig
	logger zerolog.Logger
}

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers list is empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic is empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group id is empty")
	}
	if cfg.TaskTimeout < 0 {
		return nil, fmt.Errorf("task_timeout cannot be negative")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries cannot be negative")
	}

	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = 600 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Second
	}

	return &Consumer{
		reader: kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			GroupID: cfg.GroupID,
			// один воркер-процесс тянет сообщения по одному
			QueueCapacity: 1,
		}),
		config: cfg,
		logger: cfg.Logger.With().Str("component", "kafka_consumer").Logger(),
	}, nil
}

// Run читает задачи до отмены контекста. Каждая задача получает до
// 1 + MaxRetries попыток с удваивающимся backoff; исчерпанная задача
// коммитится и дальше её судьбу решает state machine видео.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.handleWithRetries(ctx, handle, msg); err != nil {
			c.logger.Error().
				Err(err).
				Str("key", string(msg.Key)).
				Int64("offset", msg.Offset).
				Int("retries", c.config.MaxRetries).
				Msg("task exhausted retries")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			c.logger.Warn().
				Err(err).
				Str("key", string(msg.Key)).
				Msg("commit failed, message may be redelivered")
		}
	}
}

func (c *Consumer) handleWithRetries(ctx context.Context, handle Handler, msg kafkago.Message) error {
	backoff := c.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn().
				Err(lastErr).
				Str("key", string(msg.Key)).
				Int("attempt", attempt).
				Msg("retrying task")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		taskCtx, cancel := context.WithTimeout(ctx, c.config.TaskTimeout)
		lastErr = handle(taskCtx, string(msg.Key), msg.Value)
		cancel()

		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
