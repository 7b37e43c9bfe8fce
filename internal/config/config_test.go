package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 30m
vocabulary:
  source: sqlite
quiz:
  default_count: 5
  notify_abandoned: true
messages:
  score: "✅ {{.Correct}}/{{.Total}}"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VOCABQUIZ_TELEGRAM_TOKEN", "secret")
	t.Setenv("VOCABQUIZ_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected env to override port, got %q", cfg.Server.Port)
	}
	if cfg.Telegram.Token != "secret" {
		t.Fatalf("expected token from env, got %q", cfg.Telegram.Token)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Vocabulary.Source != SourceSQLite {
		t.Fatalf("unexpected yaml values %+v", cfg)
	}
	if cfg.Quiz.DefaultCount != 5 || !cfg.Quiz.NotifyAbandoned {
		t.Fatalf("unexpected quiz section %+v", cfg.Quiz)
	}
	if cfg.Messages.Score != "✅ {{.Correct}}/{{.Total}}" {
		t.Fatalf("unexpected score template %q", cfg.Messages.Score)
	}
	if got := TTLDuration(cfg.Redis.TTL, time.Minute); got != 30*time.Minute {
		t.Fatalf("expected 30m ttl, got %v", got)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Vocabulary.Source != SourceNotes || cfg.Vocabulary.NotesDir != "note" {
		t.Fatalf("unexpected defaults %+v", cfg.Vocabulary)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Second); got != time.Second {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
	if got := TTLDuration("soon", time.Second); got != time.Second {
		t.Fatalf("expected fallback for garbage, got %v", got)
	}
}

func TestNewLoggerHonoursLevelAndFormat(t *testing.T) {
	var cfg Config
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "user_id", "u1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("expected json output, got %s", out)
	}
}
