package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
)

const (
	keyAll    = "all"
	keyLatest = "latest"
)

// VocabularyCache caches word lists from a slower source with a TTL so quiz
// starts do not hit the backing store every time.
type VocabularyCache struct {
	source app.VocabularySource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedWords
}

type cachedWords struct {
	words     []domain.WordPair
	expiresAt time.Time
}

func NewVocabularyCache(source app.VocabularySource, ttl time.Duration) *VocabularyCache {
	return &VocabularyCache{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedWords),
	}
}

func (c *VocabularyCache) AllWords(ctx context.Context) ([]domain.WordPair, error) {
	return c.get(ctx, keyAll, c.source.AllWords)
}

func (c *VocabularyCache) MostRecentBatch(ctx context.Context) ([]domain.WordPair, error) {
	return c.get(ctx, keyLatest, c.source.MostRecentBatch)
}

// Invalidate drops cached lists, e.g. after an import.
func (c *VocabularyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]cachedWords)
}

func (c *VocabularyCache) get(ctx context.Context, key string, load func(context.Context) ([]domain.WordPair, error)) ([]domain.WordPair, error) {
	if words, ok := c.lookup(key); ok {
		return words, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if words, ok := c.lookup(key); ok {
			return words, nil
		}

		words, err := load(ctx)
		if err != nil {
			return nil, err
		}

		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			c.cache[key] = cachedWords{words: words, expiresAt: c.clock().Add(ttl)}
			c.mu.Unlock()
		}
		return words, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.WordPair), nil
}

func (c *VocabularyCache) lookup(key string) ([]domain.WordPair, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return nil, false
	}
	return entry.words, true
}

func (c *VocabularyCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticSource is a vocabulary held in memory as ordered batches (useful for tests/demos).
// The last batch is the most recent one.
type StaticSource struct {
	mu      sync.RWMutex
	batches [][]domain.WordPair
}

func NewStaticSource(batches ...[]domain.WordPair) *StaticSource {
	return &StaticSource{batches: batches}
}

// AddBatch appends a new most-recent batch.
func (s *StaticSource) AddBatch(words []domain.WordPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, words)
}

func (s *StaticSource) AllWords(_ context.Context) ([]domain.WordPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []domain.WordPair
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all, nil
}

func (s *StaticSource) MostRecentBatch(_ context.Context) ([]domain.WordPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.batches) == 0 {
		return nil, nil
	}
	latest := s.batches[len(s.batches)-1]
	out := make([]domain.WordPair, len(latest))
	copy(out, latest)
	return out, nil
}
