package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"vocab-quiz-service/internal/messages"
)

// Vocabulary source kinds.
const (
	SourceNotes    = "notes"
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"VOCABQUIZ_PORT"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"VOCABQUIZ_REDIS_ADDR"`
		Password string `yaml:"password" env:"VOCABQUIZ_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"VOCABQUIZ_REDIS_DB"`
		TTL      string `yaml:"ttl" env:"VOCABQUIZ_REDIS_TTL"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"VOCABQUIZ_POSTGRES_URL"`
	} `yaml:"postgres"`
	SQLite struct {
		DSN string `yaml:"dsn" env:"VOCABQUIZ_SQLITE_DSN"`
	} `yaml:"sqlite"`
	Vocabulary struct {
		Source   string `yaml:"source" env:"VOCABQUIZ_VOCABULARY_SOURCE"`
		NotesDir string `yaml:"notes_dir" env:"VOCABQUIZ_NOTES_DIR"`
		CacheTTL string `yaml:"cache_ttl" env:"VOCABQUIZ_VOCABULARY_CACHE_TTL"`
	} `yaml:"vocabulary"`
	Quiz struct {
		DefaultCount    int    `yaml:"default_count" env:"VOCABQUIZ_DEFAULT_COUNT"`
		SessionTTL      string `yaml:"session_ttl" env:"VOCABQUIZ_SESSION_TTL"`
		NotifyAbandoned bool   `yaml:"notify_abandoned" env:"VOCABQUIZ_NOTIFY_ABANDONED"`
	} `yaml:"quiz"`
	Telegram struct {
		Token         string `yaml:"token" env:"VOCABQUIZ_TELEGRAM_TOKEN"`
		MaxConcurrent int    `yaml:"max_concurrent" env:"VOCABQUIZ_TELEGRAM_MAX_CONCURRENT"`
		PollTimeout   int    `yaml:"poll_timeout" env:"VOCABQUIZ_TELEGRAM_POLL_TIMEOUT"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level" env:"VOCABQUIZ_LOG_LEVEL"`
		Format string `yaml:"format" env:"VOCABQUIZ_LOG_FORMAT"`
	} `yaml:"log"`
	Messages messages.Templates `yaml:"messages"`
}

// Load reads YAML config from path, then applies VOCABQUIZ_* environment
// overrides. A missing file is not an error; the environment alone may
// configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Vocabulary.Source == "" {
		cfg.Vocabulary.Source = SourceNotes
	}
	if cfg.Vocabulary.NotesDir == "" {
		cfg.Vocabulary.NotesDir = "note"
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.Log.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
