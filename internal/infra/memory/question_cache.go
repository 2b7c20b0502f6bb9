package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"exam-submission-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a question from the backing store.
type QuestionLoader interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// QuestionCache caches questions with a TTL so grading does not hit the store per answer.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu       sync.RWMutex
	rnd      *rand.Rand
	cache    map[string]cachedQuestion
	versions map[string]uint64 // bumped by Invalidate; a fill started at an older version is dropped
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader:   loader,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedQuestion),
		versions: make(map[string]uint64),
	}
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	if q, ok := c.lookup(id); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check in case another caller filled the entry.
		if q, ok := c.lookup(id); ok {
			return q, nil
		}
		c.mu.RLock()
		version := c.versions[id]
		c.mu.RUnlock()

		q, err := c.loader.GetQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		if c.ttl > 0 {
			c.mu.Lock()
			if c.versions[id] == version {
				c.cache[id] = cachedQuestion{question: q, expiresAt: c.clock().Add(c.ttlWithJitterLocked())}
			}
			c.mu.Unlock()
		}
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return cloneQuestion(result.(domain.Question)), nil
}

// Invalidate drops id so the next read reloads it. A load already in flight
// still returns to its callers but is not cached.
func (c *QuestionCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	c.versions[id]++
	delete(c.cache, id)
	c.mu.Unlock()
	c.sf.Forget(id)
	return nil
}

func (c *QuestionCache) lookup(id string) (domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[id]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Question{}, false
	}
	return cloneQuestion(entry.question), true
}

func (c *QuestionCache) ttlWithJitterLocked() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
