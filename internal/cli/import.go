package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"vocab-quiz-service/internal/config"
	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/infra/notes"
	"vocab-quiz-service/internal/infra/postgres"
	redisinfra "vocab-quiz-service/internal/infra/redis"
	"vocab-quiz-service/internal/infra/sqlite"
)

// batchImporter is a vocabulary store that accepts note files as batches.
type batchImporter interface {
	ImportBatch(ctx context.Context, name string, createdAt time.Time, words []domain.WordPair) error
}

// NewImportCmd copies a notes folder into the configured database.
func NewImportCmd(configPath *string) *cobra.Command {
	var dir, target string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import note files into the vocabulary database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, dir, target)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "notes folder (defaults to vocabulary.notes_dir)")
	cmd.Flags().StringVar(&target, "target", "", "postgres or sqlite (defaults to vocabulary.source)")
	return cmd
}

func runImport(ctx context.Context, configPath, dir, target string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = cfg.Vocabulary.NotesDir
	}
	if target == "" {
		target = cfg.Vocabulary.Source
	}

	var store batchImporter
	switch target {
	case config.SourcePostgres:
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewVocabularyStore(pool)
	case config.SourceSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	default:
		return fmt.Errorf("cannot import into %q: target must be %s or %s", target, config.SourcePostgres, config.SourceSQLite)
	}

	batches, err := notes.NewSource(dir).Batches(ctx)
	if err != nil {
		return fmt.Errorf("read notes: %w", err)
	}
	words := 0
	for _, b := range batches {
		if err := store.ImportBatch(ctx, b.Name, b.CreatedAt, b.Words); err != nil {
			return fmt.Errorf("import %s: %w", b.Name, err)
		}
		words += len(b.Words)
		logger.Debug("imported batch", "name", b.Name, "words", len(b.Words))
	}
	logger.Info("vocabulary imported", "target", target, "batches", len(batches), "words", words)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache := redisinfra.NewVocabularyCache(client, nil, 0)
		if err := cache.Invalidate(ctx); err != nil {
			logger.Warn("invalidate vocabulary cache", "error", err)
		}
	}
	return nil
}
