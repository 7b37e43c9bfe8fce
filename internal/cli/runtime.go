package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/config"
	"vocab-quiz-service/internal/infra/memory"
	"vocab-quiz-service/internal/infra/notes"
	"vocab-quiz-service/internal/infra/postgres"
	redisinfra "vocab-quiz-service/internal/infra/redis"
	"vocab-quiz-service/internal/infra/sqlite"
	"vocab-quiz-service/internal/messages"
)

// idleEvictor is implemented by session stores that can expire abandoned quizzes.
type idleEvictor interface {
	EvictIdle(ttl time.Duration) int
}

// runtime is the wired quiz engine shared by the serve and bot commands.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	engine  *app.QuizEngine
	catalog *messages.Catalog
	evictor idleEvictor
	closers []func()
}

func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

func loadConfig(path string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: logger}

	catalog, err := messages.New(cfg.Messages)
	if err != nil {
		return nil, err
	}
	rt.catalog = catalog

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	source, err := rt.openVocabulary(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	cacheTTL := config.TTLDuration(cfg.Vocabulary.CacheTTL, time.Minute)
	var vocabulary app.VocabularySource
	if redisClient != nil {
		vocabulary = redisinfra.NewVocabularyCache(redisClient, source, cacheTTL)
	} else {
		vocabulary = memory.NewVocabularyCache(source, cacheTTL)
	}

	var store app.SessionStore
	if redisClient != nil {
		redisTTL := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
		s := redisinfra.NewSessionStore(redisClient, redisTTL, logger)
		store, rt.evictor = s, s
	} else {
		s := memory.NewSessionStore()
		store, rt.evictor = s, s
	}

	rt.engine = app.NewQuizEngine(store, vocabulary,
		app.WithLogger(logger),
		app.WithAbandonNotice(cfg.Quiz.NotifyAbandoned),
	)
	logger.Info("quiz engine ready",
		"vocabulary", cfg.Vocabulary.Source,
		"redis", redisClient != nil,
	)
	return rt, nil
}

func (rt *runtime) openVocabulary(ctx context.Context) (app.VocabularySource, error) {
	switch rt.cfg.Vocabulary.Source {
	case config.SourceNotes:
		return notes.NewSource(rt.cfg.Vocabulary.NotesDir), nil
	case config.SourcePostgres:
		if rt.cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		if err := runMigrationsWithConfig(ctx, rt.cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, rt.cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		return postgres.NewVocabularyStore(pool), nil
	case config.SourceSQLite:
		store, err := sqlite.Open(ctx, rt.cfg.SQLite.DSN)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		return store, nil
	}
	return nil, fmt.Errorf("unknown vocabulary source %q", rt.cfg.Vocabulary.Source)
}

// runJanitor expires idle sessions until ctx is done.
func (rt *runtime) runJanitor(ctx context.Context) {
	ttl := config.TTLDuration(rt.cfg.Quiz.SessionTTL, 24*time.Hour)
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rt.evictor.EvictIdle(ttl); n > 0 {
				rt.logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}

func (rt *runtime) defaultCount() int {
	if rt.cfg.Quiz.DefaultCount > 0 {
		return rt.cfg.Quiz.DefaultCount
	}
	return app.DefaultQuestionCount
}
