package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"livequiz-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store.
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, id string) (domain.Question, error)
}

// QuestionCache caches full question documents in Redis (hash per
// question) and falls back to a loader on cache miss. Layout:
//
//	HSET question:{id} category {category} question {prompt} options {json} correct {answer}
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	key := c.key(id)

	fields, err := c.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return questionFromHash(id, fields), nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		fields, err := c.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return questionFromHash(id, fields), nil
		}

		question, err := c.loader.LoadQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}

		options, _ := json.Marshal(question.Options)
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key,
			"category", question.Category,
			"question", question.Prompt,
			"options", string(options),
			"correct", question.CorrectAnswer,
		)
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) key(id string) string {
	return "question:" + id
}

func questionFromHash(id string, fields map[string]string) domain.Question {
	var options []string
	_ = json.Unmarshal([]byte(fields["options"]), &options)
	return domain.Question{
		ID:            id,
		Category:      fields["category"],
		Prompt:        fields["question"],
		Options:       options,
		CorrectAnswer: fields["correct"],
	}
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
