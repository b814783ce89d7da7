package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"certquiz-service/internal/app"
	"certquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// GenerationCache caches generated quizzes in Redis and falls back to the
// wrapped generator on a miss. Entries are stored as:
// SET quiz:generated:{sha256(user, video, topic)} {json}
type GenerationCache struct {
	client *redis.Client
	next   app.QuizGenerator
	ttl    time.Duration
	log    zerolog.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewGenerationCache(client *redis.Client, next app.QuizGenerator, ttl time.Duration, log zerolog.Logger) *GenerationCache {
	return &GenerationCache{
		client: client,
		next:   next,
		ttl:    ttl,
		log:    log,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *GenerationCache) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedQuiz, error) {
	key := c.key(req)
	if quiz, ok := c.lookup(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := c.lookup(ctx, key); ok {
			return quiz, nil
		}

		quiz, err := c.next.Generate(ctx, req)
		if err != nil {
			return domain.GeneratedQuiz{}, err
		}

		if ttl := c.ttlWithJitter(); ttl > 0 {
			raw, err := json.Marshal(quiz)
			if err == nil {
				err = c.client.Set(ctx, key, raw, ttl).Err()
			}
			if err != nil {
				// The quiz is still usable; only caching failed.
				c.log.Warn().Err(err).Str("key", key).Msg("cache generated quiz")
			}
		}
		return quiz, nil
	})
	if err != nil {
		return domain.GeneratedQuiz{}, err
	}
	quiz := result.(domain.GeneratedQuiz)
	quiz.Questions = domain.CloneQuestions(quiz.Questions)
	return quiz, nil
}

// Forget deletes the cached quiz for req.
func (c *GenerationCache) Forget(ctx context.Context, req domain.GenerationRequest) error {
	if err := c.client.Del(ctx, c.key(req)).Err(); err != nil {
		return fmt.Errorf("forget generated quiz: %w", err)
	}
	return nil
}

func (c *GenerationCache) lookup(ctx context.Context, key string) (domain.GeneratedQuiz, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("read generation cache")
		}
		return domain.GeneratedQuiz{}, false
	}
	var quiz domain.GeneratedQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil || len(quiz.Questions) == 0 {
		return domain.GeneratedQuiz{}, false
	}
	return quiz, true
}

func (c *GenerationCache) key(req domain.GenerationRequest) string {
	sum := sha256.Sum256([]byte(req.CacheKey()))
	return "quiz:generated:" + hex.EncodeToString(sum[:])
}

func (c *GenerationCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
