package persona

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/inkonio/doppelbot/internal/store"
)

// DefaultTTL is how long a computed prompt stays fresh.
const DefaultTTL = 5 * time.Minute

// Cache holds the single derived persona prompt together with its generation
// time. It recomputes lazily on access when stale or invalidated. Safe for
// concurrent use; the lock is held across recomputation, so concurrent
// callers after expiry recompute once (the read is local, not a network call).
type Cache struct {
	corpus store.CorpusStore
	owner  string
	ttl    time.Duration
	now    func() time.Time

	mu          sync.Mutex
	text        string
	generatedAt time.Time
}

// NewCache creates a Cache over the given corpus store for the named owner.
// A non-positive ttl applies DefaultTTL.
func NewCache(corpus store.CorpusStore, owner string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		corpus: corpus,
		owner:  owner,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Prompt returns the cached persona prompt, recomputing it from the corpus
// when the cached value is absent, stale, or was invalidated.
func (c *Cache) Prompt(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.text != "" && now.Sub(c.generatedAt) < c.ttl {
		return c.text, nil
	}

	examples, err := c.corpus.Examples(ctx, maxCorpusRead)
	if err != nil {
		return "", fmt.Errorf("persona: read corpus: %w", err)
	}

	c.text = BuildPrompt(c.owner, examples)
	c.generatedAt = now
	return c.text, nil
}

// Invalidate clears the cached value. The next Prompt call recomputes
// regardless of TTL. Call after every corpus mutation.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.text = ""
	c.generatedAt = time.Time{}
	c.mu.Unlock()
}

// GeneratedAt returns when the cached prompt was computed. The zero time
// means no prompt is cached.
func (c *Cache) GeneratedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generatedAt
}
