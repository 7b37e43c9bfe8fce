// Package sqlite keeps vocabulary batches in a local SQLite file, for single
// instance deployments that have no Postgres.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // driver: sqlite

	"vocab-quiz-service/internal/domain"
)

const defaultDSN = "file:vocabulary.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"

const schema = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS vocabulary_batches (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS words (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  batch_id INTEGER NOT NULL REFERENCES vocabulary_batches(id) ON DELETE CASCADE,
  term TEXT NOT NULL,
  meaning TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS words_batch_id_idx ON words(batch_id);
`

// VocabularyStore reads and imports vocabulary batches in SQLite.
type VocabularyStore struct {
	db *sql.DB
}

// Open opens the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*VocabularyStore, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &VocabularyStore{db: db}, nil
}

func (s *VocabularyStore) Close() error {
	return s.db.Close()
}

func (s *VocabularyStore) AllWords(ctx context.Context) ([]domain.WordPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.term, w.meaning
		FROM words w
		JOIN vocabulary_batches b ON b.id = w.batch_id
		ORDER BY b.created_at, b.id, w.id`)
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	return scanWords(rows)
}

func (s *VocabularyStore) MostRecentBatch(ctx context.Context) ([]domain.WordPair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT term, meaning
		FROM words
		WHERE batch_id = (
			SELECT id FROM vocabulary_batches ORDER BY created_at DESC, id DESC LIMIT 1
		)
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load latest batch: %w", err)
	}
	return scanWords(rows)
}

// ImportBatch creates or replaces the batch called name with words.
func (s *VocabularyStore) ImportBatch(ctx context.Context, name string, createdAt time.Time, words []domain.WordPair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	var batchID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO vocabulary_batches (name, created_at) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET created_at = excluded.created_at
		RETURNING id`, name, createdAt.UnixNano()).Scan(&batchID)
	if err != nil {
		return fmt.Errorf("upsert batch %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM words WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("clear batch %s: %w", name, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO words (batch_id, term, meaning) VALUES ($1, $2, $3)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, w := range words {
		if _, err := stmt.ExecContext(ctx, batchID, w.Term, w.Meaning); err != nil {
			return fmt.Errorf("insert word %q: %w", w.Term, err)
		}
	}
	return tx.Commit()
}

func scanWords(rows *sql.Rows) ([]domain.WordPair, error) {
	defer rows.Close()
	var words []domain.WordPair
	for rows.Next() {
		var w domain.WordPair
		if err := rows.Scan(&w.Term, &w.Meaning); err != nil {
			return nil, fmt.Errorf("scan word: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read words: %w", err)
	}
	return words, nil
}
