// Package config loads configuration for all scene-index binaries from the
// environment. Endpoints are always injected; there are no hard-coded hosts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvHTTPAddr        = "HTTP_ADDR"
	EnvLogLevel        = "LOG_LEVEL"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvKafkaBrokers    = "KAFKA_BROKERS"
	EnvKafkaTopic      = "KAFKA_TOPIC"
	EnvKafkaGroupID    = "KAFKA_GROUP_ID"
	EnvMinioEndpoint   = "MINIO_ENDPOINT"
	EnvMinioExternal   = "MINIO_EXTERNAL_ENDPOINT"
	EnvMinioAccessKey  = "MINIO_ACCESS_KEY"
	EnvMinioSecretKey  = "MINIO_SECRET_KEY"
	EnvMinioSecure     = "MINIO_SECURE"
	EnvMISURL          = "MIS_URL"
	EnvMISAddr         = "MIS_ADDR"
	EnvMISMaxInflight  = "MIS_MAX_INFLIGHT"
	EnvModelCacheDir   = "MODEL_CACHE_DIR"
	EnvWorkerCount     = "WORKER_COUNT"
	EnvTaskTimeout     = "TASK_TIMEOUT"
	EnvOutboxInterval  = "OUTBOX_INTERVAL"
	EnvOutboxBatchSize = "OUTBOX_BATCH_SIZE"

	DefaultHTTPAddr       = ":8080"
	DefaultMISAddr        = ":8001"
	DefaultLogLevel       = "info"
	DefaultKafkaTopic     = "video.submitted"
	DefaultKafkaGroupID   = "scene-index-worker"
	DefaultWorkerCount    = 4
	DefaultMISMaxInflight = 8
	DefaultTaskTimeout    = 600 * time.Second
	DefaultOutboxInterval = time.Second
	DefaultOutboxBatch    = 100
)

type Config struct {
	HTTPAddr string
	LogLevel string

	DatabaseURL string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	MinioEndpoint         string
	MinioExternalEndpoint string
	MinioAccessKey        string
	MinioSecretKey        string
	MinioSecure           bool

	MISURL         string
	MISAddr        string
	MISMaxInflight int
	ModelCacheDir  string

	WorkerCount int
	TaskTimeout time.Duration

	OutboxInterval  time.Duration
	OutboxBatchSize int
}

// Load читает .env (если есть) и окружение. Валидация обязательных полей —
// на совести Require* методов: каждому бинарю нужен свой поднабор.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:              getEnv(EnvHTTPAddr, DefaultHTTPAddr),
		LogLevel:              getEnv(EnvLogLevel, DefaultLogLevel),
		DatabaseURL:           os.Getenv(EnvDatabaseURL),
		KafkaTopic:            getEnv(EnvKafkaTopic, DefaultKafkaTopic),
		KafkaGroupID:          getEnv(EnvKafkaGroupID, DefaultKafkaGroupID),
		MinioEndpoint:         os.Getenv(EnvMinioEndpoint),
		MinioExternalEndpoint: os.Getenv(EnvMinioExternal),
		MinioAccessKey:        os.Getenv(EnvMinioAccessKey),
		MinioSecretKey:        os.Getenv(EnvMinioSecretKey),
		MISURL:                os.Getenv(EnvMISURL),
		MISAddr:               getEnv(EnvMISAddr, DefaultMISAddr),
		ModelCacheDir:         os.Getenv(EnvModelCacheDir),
	}

	if brokers := os.Getenv(EnvKafkaBrokers); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.MinioSecure, err = boolEnv(EnvMinioSecure, false); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = intEnv(EnvWorkerCount, DefaultWorkerCount); err != nil {
		return nil, err
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("invalid %s: must be at least 1", EnvWorkerCount)
	}
	if cfg.MISMaxInflight, err = intEnv(EnvMISMaxInflight, DefaultMISMaxInflight); err != nil {
		return nil, err
	}
	if cfg.MISMaxInflight < 1 {
		return nil, fmt.Errorf("invalid %s: must be at least 1", EnvMISMaxInflight)
	}
	if cfg.TaskTimeout, err = durationEnv(EnvTaskTimeout, DefaultTaskTimeout); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = durationEnv(EnvOutboxInterval, DefaultOutboxInterval); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = intEnv(EnvOutboxBatchSize, DefaultOutboxBatch); err != nil {
		return nil, err
	}

	if cfg.MinioExternalEndpoint == "" {
		cfg.MinioExternalEndpoint = cfg.MinioEndpoint
	}

	return cfg, nil
}

// RequireDB проверяет, что задан DSN метаданных.
func (c *Config) RequireDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s is empty", EnvDatabaseURL)
	}
	return nil
}

func (c *Config) RequireKafka() error {
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("%s is empty", EnvKafkaBrokers)
	}
	return nil
}

func (c *Config) RequireMinio() error {
	if c.MinioEndpoint == "" {
		return fmt.Errorf("%s is empty", EnvMinioEndpoint)
	}
	if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
		return fmt.Errorf("%s/%s are empty", EnvMinioAccessKey, EnvMinioSecretKey)
	}
	return nil
}

func (c *Config) RequireMIS() error {
	if c.MISURL == "" {
		return fmt.Errorf("%s is empty", EnvMISURL)
	}
	return nil
}

func (c *Config) RequireModelCache() error {
	if c.ModelCacheDir == "" {
		return fmt.Errorf("%s is empty", EnvModelCacheDir)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
