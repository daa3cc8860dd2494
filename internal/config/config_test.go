package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultKafkaTopic, cfg.KafkaTopic)
	assert.Equal(t, DefaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, DefaultTaskTimeout, cfg.TaskTimeout)
	assert.Equal(t, DefaultOutboxBatch, cfg.OutboxBatchSize)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvHTTPAddr, ":9999")
	t.Setenv(EnvKafkaBrokers, "k1:9092, k2:9092 ,")
	t.Setenv(EnvWorkerCount, "2")
	t.Setenv(EnvTaskTimeout, "120s")
	t.Setenv(EnvMinioSecure, "true")
	t.Setenv(EnvMinioEndpoint, "minio:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, 120*time.Second, cfg.TaskTimeout)
	assert.True(t, cfg.MinioSecure)
	// Внешний endpoint по умолчанию совпадает с внутренним
	assert.Equal(t, "minio:9000", cfg.MinioExternalEndpoint)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad worker count", key: EnvWorkerCount, value: "many"},
		{name: "zero worker count", key: EnvWorkerCount, value: "0"},
		{name: "bad timeout", key: EnvTaskTimeout, value: "soon"},
		{name: "negative timeout", key: EnvTaskTimeout, value: "-5s"},
		{name: "bad secure flag", key: EnvMinioSecure, value: "da"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestRequire(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Error(t, cfg.RequireDB())
	require.Error(t, cfg.RequireKafka())
	require.Error(t, cfg.RequireMinio())
	require.Error(t, cfg.RequireMIS())
	require.Error(t, cfg.RequireModelCache())

	t.Setenv(EnvDatabaseURL, "postgres://x")
	t.Setenv(EnvMISURL, "http://mis:8001")
	cfg, err = Load()
	require.NoError(t, err)
	require.NoError(t, cfg.RequireDB())
	require.NoError(t, cfg.RequireMIS())
}
