package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains runtime configuration required by the service.
type Config struct {
	HTTPAddr    string        `yaml:"http_addr"`
	Store       StoreConfig   `yaml:"store"`
	Ingest      IngestConfig  `yaml:"ingest"`
	Logging     LoggingConfig `yaml:"logging"`
	CORSOrigins []string      `yaml:"cors_origins"`
}

type StoreConfig struct {
	Driver       string `yaml:"driver"`
	DBURL        string `yaml:"db_url"`
	MaxConns     int32  `yaml:"max_conns"`
	MemoryShards int    `yaml:"memory_shards"`
}

type IngestConfig struct {
	MaxDurationMs int64         `yaml:"max_duration_ms"`
	FutureHorizon time.Duration `yaml:"future_horizon"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		HTTPAddr: ":8080",
		Store: StoreConfig{
			Driver:       DriverMemory,
			MaxConns:     10,
			MemoryShards: 64,
		},
		Ingest: IngestConfig{
			MaxDurationMs: 21_600_000,
			FutureHorizon: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CORSOrigins: []string{"*"},
	}
}

// Load reads configuration: defaults, then the YAML file named by path
// (or CONFIG_FILE when path is empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var err error

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.Store.Driver = strings.ToLower(getEnv("STORE_DRIVER", cfg.Store.Driver))
	cfg.Store.DBURL = getEnv("DB_URL", cfg.Store.DBURL)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	maxConns, err := getEnvInt("DB_MAX_CONNS", int(cfg.Store.MaxConns))
	if err != nil {
		return err
	}
	cfg.Store.MaxConns = int32(maxConns)

	if cfg.Store.MemoryShards, err = getEnvInt("MEMORY_SHARDS", cfg.Store.MemoryShards); err != nil {
		return err
	}

	maxDuration, err := getEnvInt("INGEST_MAX_DURATION_MS", int(cfg.Ingest.MaxDurationMs))
	if err != nil {
		return err
	}
	cfg.Ingest.MaxDurationMs = int64(maxDuration)

	if v := strings.TrimSpace(os.Getenv("INGEST_FUTURE_HORIZON")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("INGEST_FUTURE_HORIZON: %w", err)
		}
		cfg.Ingest.FutureHorizon = d
	}

	if v := strings.TrimSpace(os.Getenv("CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DBURL == "" {
			return errors.New("DB_URL required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Ingest.MaxDurationMs < 0 {
		return errors.New("INGEST_MAX_DURATION_MS must not be negative")
	}
	if c.Ingest.FutureHorizon < 0 {
		return errors.New("INGEST_FUTURE_HORIZON must not be negative")
	}
	if c.Store.MaxConns < 0 {
		return errors.New("DB_MAX_CONNS must not be negative")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
