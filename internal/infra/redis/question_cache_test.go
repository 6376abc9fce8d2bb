package redis_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"livequiz-service/internal/domain"
	rediscache "livequiz-service/internal/infra/redis"
)

type countingLoader struct {
	loads int64
}

func (l *countingLoader) LoadQuestion(_ context.Context, id string) (domain.Question, error) {
	atomic.AddInt64(&l.loads, 1)
	if id != "q1" {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return domain.Question{
		ID:            "q1",
		Category:      "Sport",
		Prompt:        "How many holes in a round of golf?",
		Options:       []string{"9", "16", "18", "21"},
		CorrectAnswer: "18",
	}, nil
}

func newClient(mr *miniredis.Miniredis) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestQuestionCacheFillsHash(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{}
	cache := rediscache.NewQuestionCache(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	q, err := cache.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.CorrectAnswer != "18" || len(q.Options) != 4 {
		t.Fatalf("unexpected question: %+v", q)
	}

	if got := mr.HGet("question:q1", "question"); got != "How many holes in a round of golf?" {
		t.Fatalf("hash not filled, prompt field = %q", got)
	}
	if ttl := mr.TTL("question:q1"); ttl < time.Minute {
		t.Fatalf("expected ttl of at least a minute, got %v", ttl)
	}

	if _, err := cache.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if n := atomic.LoadInt64(&loader.loads); n != 1 {
		t.Fatalf("second read should be a cache hit, loads = %d", n)
	}
}

func TestQuestionCacheRebuildsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{}
	cache := rediscache.NewQuestionCache(newClient(mr), loader, time.Minute)
	ctx := context.Background()

	if _, err := cache.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := cache.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if n := atomic.LoadInt64(&loader.loads); n != 2 {
		t.Fatalf("expected a reload after expiry, loads = %d", n)
	}
}

func TestQuestionCacheMissingQuestion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := rediscache.NewQuestionCache(newClient(mr), &countingLoader{}, time.Minute)
	if _, err := cache.GetQuestion(context.Background(), "ghost"); err == nil {
		t.Fatalf("unknown question should not resolve")
	}
	if mr.Exists("question:ghost") {
		t.Fatalf("failed loads must not leave cache entries")
	}
}
