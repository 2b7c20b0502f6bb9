package redis

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"exam-submission-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionLoader fetches a question from the backing store.
type QuestionLoader interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// fillScript writes the grading view only while the generation read before the load is still current.
// KEYS: view, generation. ARGV: generation, type, correctAnswer, score, ttl in ms.
var fillScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("HSET", KEYS[1], "type", ARGV[2], "correctAnswer", ARGV[3], "score", ARGV[4])
if tonumber(ARGV[5]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[5])
end
return 1
`)

// QuestionCache keeps the grading view of each question in Redis and falls back to a loader on miss.
// The view is stored as: HSET question:{id}:grading type {type} correctAnswer {label} score {weight}
// Invalidate bumps question:{id}:gen so fills that loaded before it are discarded, across replicas too.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetQuestion returns the grading view of id: type, answer key and weight.
func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	key := gradingKey(id)
	if q, ok := c.lookup(ctx, id, key); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		if q, ok := c.lookup(ctx, id, key); ok {
			return q, nil
		}
		gen, err := c.client.Get(ctx, generationKey(id)).Result()
		cacheable := err == nil || errors.Is(err, redis.Nil)
		if errors.Is(err, redis.Nil) {
			gen = "0"
		}

		q, err := c.loader.GetQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		if !cacheable {
			return q, nil
		}

		// A failed write only costs a reload on the next read.
		_ = fillScript.Run(ctx, c.client, []string{key, generationKey(id)},
			gen,
			string(q.Type),
			q.CorrectAnswer,
			strconv.FormatFloat(q.Score, 'f', -1, 64),
			c.ttlWithJitter().Milliseconds(),
		).Err()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops the cached view so the next grade reads the updated question.
func (c *QuestionCache) Invalidate(ctx context.Context, id string) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, generationKey(id))
	pipe.Del(ctx, gradingKey(id))
	_, err := pipe.Exec(ctx)
	c.sf.Forget(id)
	return err
}

func (c *QuestionCache) lookup(ctx context.Context, id, key string) (domain.Question, bool) {
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil || len(fields) == 0 {
		return domain.Question{}, false
	}
	score, err := strconv.ParseFloat(fields["score"], 64)
	if err != nil {
		return domain.Question{}, false
	}
	return domain.Question{
		ID:            id,
		Type:          domain.QuestionType(fields["type"]),
		CorrectAnswer: fields["correctAnswer"],
		Score:         score,
	}, true
}

func gradingKey(id string) string {
	return "question:" + id + ":grading"
}

func generationKey(id string) string {
	return "question:" + id + ":gen"
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
