package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"certquiz-service/internal/app"
	"certquiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// GenerationCache caches generated quizzes per (user, video, topic) with TTL
// so a repeated request from the same user does not hit the model again.
// Finished attempts are dropped through Forget.
type GenerationCache struct {
	next  app.QuizGenerator
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuiz
}

type cachedQuiz struct {
	quiz      domain.GeneratedQuiz
	expiresAt time.Time
}

func NewGenerationCache(next app.QuizGenerator, ttl time.Duration) *GenerationCache {
	return &GenerationCache{
		next:  next,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuiz),
	}
}

func (c *GenerationCache) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedQuiz, error) {
	key := req.CacheKey()
	if quiz, ok := c.lookup(key); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		if quiz, ok := c.lookup(key); ok {
			return quiz, nil
		}

		quiz, err := c.next.Generate(ctx, req)
		if err != nil {
			return domain.GeneratedQuiz{}, err
		}

		if ttl := c.ttlWithJitter(); ttl > 0 {
			c.mu.Lock()
			c.cache[key] = cachedQuiz{quiz: copyGenerated(quiz), expiresAt: c.clock().Add(ttl)}
			c.mu.Unlock()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.GeneratedQuiz{}, err
	}
	return copyGenerated(result.(domain.GeneratedQuiz)), nil
}

// Forget drops the cached quiz for req.
func (c *GenerationCache) Forget(_ context.Context, req domain.GenerationRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, req.CacheKey())
	return nil
}

func (c *GenerationCache) lookup(key string) (domain.GeneratedQuiz, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[key]
	if !ok || !entry.expiresAt.After(now) {
		return domain.GeneratedQuiz{}, false
	}
	return copyGenerated(entry.quiz), true
}

func copyGenerated(q domain.GeneratedQuiz) domain.GeneratedQuiz {
	q.Questions = domain.CloneQuestions(q.Questions)
	return q
}

func (c *GenerationCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
