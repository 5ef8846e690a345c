package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_FILE", "HTTP_ADDR", "STORE_DRIVER", "DB_URL", "DB_MAX_CONNS", "MEMORY_SHARDS",
		"INGEST_MAX_DURATION_MS", "INGEST_FUTURE_HORIZON", "LOG_LEVEL", "LOG_FORMAT", "CORS_ORIGINS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, int64(21_600_000), cfg.Ingest.MaxDurationMs)
	assert.Equal(t, 15*time.Minute, cfg.Ingest.FutureHorizon)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DB_URL", "postgres://localhost/events")
	t.Setenv("DB_MAX_CONNS", "20")
	t.Setenv("INGEST_FUTURE_HORIZON", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, int32(20), cfg.Store.MaxConns)
	assert.Equal(t, 5*time.Minute, cfg.Ingest.FutureHorizon)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":7000"
store:
  driver: memory
  memory_shards: 8
ingest:
  max_duration_ms: 1000
logging:
  level: debug
`), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.Store.MemoryShards)
	assert.Equal(t, int64(1000), cfg.Ingest.MaxDurationMs)
	assert.Equal(t, 15*time.Minute, cfg.Ingest.FutureHorizon, "unset keys keep defaults")
	assert.Equal(t, "warn", cfg.Logging.Level, "env overrides file")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres"}, want: "DB_URL required"},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "cassandra"}, want: "unknown STORE_DRIVER"},
		{name: "bad int", env: map[string]string{"MEMORY_SHARDS": "many"}, want: "MEMORY_SHARDS must be an integer"},
		{name: "bad horizon", env: map[string]string{"INGEST_FUTURE_HORIZON": "soon"}, want: "INGEST_FUTURE_HORIZON"},
		{name: "negative duration", env: map[string]string{"INGEST_MAX_DURATION_MS": "-1"}, want: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"k":"v"`)

	assert.Equal(t, zerolog.InfoLevel, newLogger(LoggingConfig{Level: "nonsense"}, &buf).GetLevel())
}
