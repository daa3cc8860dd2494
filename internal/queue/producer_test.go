package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_Success(t *testing.T) {
	cfg := ProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "test-topic",
		Logger:  zerolog.Nop(),
	}

	producer, err := NewProducer(cfg)

	require.NoError(t, err)
	assert.NotNil(t, producer)
	assert.Equal(t, "test-topic", producer.config.Topic)
	assert.Equal(t, 3, producer.config.MaxRetries) // default
	assert.Equal(t, 100*time.Millisecond, producer.config.RetryBackoff)
}

func TestNewProducer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  ProducerConfig
		wantErr string
	}{
		{
			name: "empty brokers",
			config: ProducerConfig{
				Brokers: []string{},
				Topic:   "test",
				Logger:  zerolog.Nop(),
			},
			wantErr: "brokers list is empty",
		},
		{
			name: "empty topic",
			config: ProducerConfig{
				Brokers: []string{"localhost:9092"},
				Topic:   "",
				Logger:  zerolog.Nop(),
			},
			wantErr: "topic is empty",
		},
		{
			name: "negative max retries",
			config: ProducerConfig{
				Brokers:    []string{"localhost:9092"},
				Topic:      "test",
				MaxRetries: -1,
				Logger:     zerolog.Nop(),
			},
			wantErr: "max_retries cannot be negative",
		},
		{
			name: "negative retry backoff",
			config: ProducerConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "test",
				RetryBackoff: -1 * time.Second,
				Logger:       zerolog.Nop(),
			},
			wantErr: "retry_backoff cannot be negative",
		},
		{
			name: "negative write timeout",
			config: ProducerConfig{
				Brokers:      []string{"localhost:9092"},
				Topic:        "test",
				WriteTimeout: -1 * time.Second,
				Logger:       zerolog.Nop(),
			},
			wantErr: "write_timeout cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			producer, err := NewProducer(tt.config)

			require.Error(t, err)
			assert.Nil(t, producer)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProducer_Defaults(t *testing.T) {
	cfg := ProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "test",
		Logger:  zerolog.Nop(),
	}

	producer, err := NewProducer(cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, producer.config.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, producer.config.RetryBackoff)
	assert.Equal(t, 10*time.Second, producer.config.WriteTimeout)
	assert.Equal(t, 100, producer.config.BatchSize)
	assert.False(t, producer.config.Async)
}

func TestNewConsumer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  ConsumerConfig
		wantErr string
	}{
		{
			name:    "empty brokers",
			config:  ConsumerConfig{Topic: "t", GroupID: "g", Logger: zerolog.Nop()},
			wantErr: "brokers list is empty",
		},
		{
			name:    "empty topic",
			config:  ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g", Logger: zerolog.Nop()},
			wantErr: "topic is empty",
		},
		{
			name:    "empty group",
			config:  ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", Logger: zerolog.Nop()},
			wantErr: "group id is empty",
		},
		{
			name: "negative timeout",
			config: ConsumerConfig{
				Brokers: []string{"localhost:9092"}, Topic: "t", GroupID: "g",
				TaskTimeout: -time.Second, Logger: zerolog.Nop(),
			},
			wantErr: "task_timeout cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			consumer, err := NewConsumer(tt.config)

			require.Error(t, err)
			assert.Nil(t, consumer)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConsumer_Defaults(t *testing.T) {
	consumer, err := NewConsumer(ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "t",
		GroupID: "g",
		Logger:  zerolog.Nop(),
	})
	require.NoError(t, err)
	defer consumer.Close()

	assert.Equal(t, 600*time.Second, consumer.config.TaskTimeout)
	assert.Equal(t, 2, consumer.config.MaxRetries)
	assert.Equal(t, time.Second, consumer.config.RetryBackoff)
}

func TestConsumer_HandleWithRetries(t *testing.T) {
	consumer, err := NewConsumer(ConsumerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "t",
		GroupID:      "g",
		RetryBackoff: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	defer consumer.Close()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := consumer.handleWithRetries(context.Background(), func(ctx context.Context, key string, value []byte) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		}, kafkago.Message{Key: []byte("k")})

		require.NoError(t, err)
		assert.Equal(t, 3, calls) // первая попытка + 2 ретрая
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := consumer.handleWithRetries(context.Background(), func(ctx context.Context, key string, value []byte) error {
			calls++
			return errors.New("still broken")
		}, kafkago.Message{Key: []byte("k")})

		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})
}
