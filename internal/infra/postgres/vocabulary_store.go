package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vocab-quiz-service/internal/domain"
)

// VocabularyStore reads and imports vocabulary batches in Postgres.
type VocabularyStore struct {
	pool *pgxpool.Pool
}

func NewVocabularyStore(pool *pgxpool.Pool) *VocabularyStore {
	return &VocabularyStore{pool: pool}
}

func (s *VocabularyStore) AllWords(ctx context.Context) ([]domain.WordPair, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT w.term, w.meaning
		FROM words w
		JOIN vocabulary_batches b ON b.id = w.batch_id
		ORDER BY b.created_at, b.id, w.id`)
	if err != nil {
		return nil, fmt.Errorf("load words: %w", err)
	}
	return scanWords(rows)
}

// MostRecentBatch returns the words of the newest batch, or nothing when no
// batch has been imported.
func (s *VocabularyStore) MostRecentBatch(ctx context.Context) ([]domain.WordPair, error) {
	rows, err := s.pool.Query(ctx, `
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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	var batchID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO vocabulary_batches (name, created_at) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET created_at = EXCLUDED.created_at
		RETURNING id`, name, createdAt).Scan(&batchID)
	if err != nil {
		return fmt.Errorf("upsert batch %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM words WHERE batch_id = $1`, batchID); err != nil {
		return fmt.Errorf("clear batch %s: %w", name, err)
	}

	rows := make([][]interface{}, len(words))
	for i, w := range words {
		rows[i] = []interface{}{batchID, w.Term, w.Meaning}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"words"}, []string{"batch_id", "term", "meaning"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy words for %s: %w", name, err)
	}
	return tx.Commit(ctx)
}

func scanWords(rows pgx.Rows) ([]domain.WordPair, error) {
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
