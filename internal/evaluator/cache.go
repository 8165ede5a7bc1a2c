package evaluator

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/timvw/command-center/internal/model"
)

// AssessmentCache keeps the last verdict per session, keyed by a hash of
// the pane content it was computed from. An unchanged pane reuses the
// verdict until the TTL expires, after which it is re-evaluated so a frozen
// agent is still reviewed. A TTL of 0 disables caching.
type AssessmentCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry // keyed by session id
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	contentHash string
	verdict     model.LLMVerdict
	cachedAt    time.Time
	hits        int
}

// NewAssessmentCache creates a cache with the given TTL.
func NewAssessmentCache(ttl time.Duration) *AssessmentCache {
	return &AssessmentCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lookup returns the cached verdict for id if content is unchanged and the
// entry is still fresh.
func (c *AssessmentCache) Lookup(id, content string) (*model.LLMVerdict, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	hash := hashContent(content)

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok || entry.contentHash != hash || c.now().Sub(entry.cachedAt) > c.ttl {
		return nil, false
	}
	entry.hits++
	v := entry.verdict
	return &v, true
}

// Store saves a verdict for id computed from content.
func (c *AssessmentCache) Store(id, content string, verdict model.LLMVerdict) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = &cacheEntry{
		contentHash: hashContent(content),
		verdict:     verdict,
		cachedAt:    c.now(),
	}
}

// Invalidate drops the entry for id.
func (c *AssessmentCache) Invalidate(id string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// Len returns the number of cached sessions.
func (c *AssessmentCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}
