package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
)

// VocabularyCache caches word lists in Redis and falls back to a source on cache miss.
// Lists are stored as JSON strings:
//
//	SET vocab:all    [{"term":..,"meaning":..},...]
//	SET vocab:latest [...]
type VocabularyCache struct {
	client *redis.Client
	source app.VocabularySource
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewVocabularyCache(client *redis.Client, source app.VocabularySource, ttl time.Duration) *VocabularyCache {
	return &VocabularyCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *VocabularyCache) AllWords(ctx context.Context) ([]domain.WordPair, error) {
	return c.get(ctx, "vocab:all", c.source.AllWords)
}

func (c *VocabularyCache) MostRecentBatch(ctx context.Context) ([]domain.WordPair, error) {
	return c.get(ctx, "vocab:latest", c.source.MostRecentBatch)
}

// Invalidate drops both cached lists, e.g. after an import.
func (c *VocabularyCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, "vocab:all", "vocab:latest").Err()
}

func (c *VocabularyCache) get(ctx context.Context, key string, load func(context.Context) ([]domain.WordPair, error)) ([]domain.WordPair, error) {
	if words, ok := c.lookup(ctx, key); ok {
		return words, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if words, ok := c.lookup(ctx, key); ok {
			return words, nil
		}

		words, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if ttl := c.ttlWithJitter(); ttl > 0 {
			if raw, err := json.Marshal(words); err == nil {
				_ = c.client.Set(ctx, key, raw, ttl).Err()
			}
		}
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.WordPair), nil
}

func (c *VocabularyCache) lookup(ctx context.Context, key string) ([]domain.WordPair, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; other errors also fall through to the source
		return nil, false
	}
	var words []domain.WordPair
	if err := json.Unmarshal(raw, &words); err != nil {
		return nil, false
	}
	return words, true
}

func (c *VocabularyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
