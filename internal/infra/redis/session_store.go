package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore mirrors session liveness into Redis so operators (or a
// future cross-instance projector) can see which quizzes are running.
// All writes are best-effort: the in-memory session registry stays
// authoritative and a Redis outage never disturbs the live flow.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) MarkLive(quizID string) {
	_ = s.client.Set(context.Background(), s.key(quizID), "1", s.ttl).Err()
}

func (s *SessionStore) ClearLive(quizID string) {
	_ = s.client.Del(context.Background(), s.key(quizID)).Err()
}

func (s *SessionStore) key(quizID string) string {
	return "quiz:session:" + quizID
}
