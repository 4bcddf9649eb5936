package session

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

const redisKeyPrefix = "interview:session:"

// lenCacheTTL bounds how often Len rescans the keyspace. The count feeds a
// gauge and a stats endpoint, so slight staleness is acceptable.
const lenCacheTTL = 15 * time.Second

// RedisStore keeps session memory in Redis with a TTL, so multiple replicas
// share one view of each session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	lenMu    sync.Mutex
	lenCount int
	lenAt    time.Time
}

// NewRedisStore connects to the given Redis URL (redis://...) and verifies the
// connection with a ping.
func NewRedisStore(ctx domain.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx domain.Context, sessionID string) (domain.SessionMemory, bool) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Error("redis session get failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
		return domain.SessionMemory{}, false
	}
	var mem domain.SessionMemory
	if err := json.Unmarshal(raw, &mem); err != nil {
		slog.Error("redis session decode failed", slog.String("session_id", sessionID), slog.Any("error", err))
		return domain.SessionMemory{}, false
	}
	return mem, true
}

func (s *RedisStore) Put(ctx domain.Context, sessionID string, mem domain.SessionMemory) error {
	raw, err := json.Marshal(mem)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+sessionID, raw, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx domain.Context, sessionID string) error {
	return s.client.Del(ctx, redisKeyPrefix+sessionID).Err()
}

// Len counts stored sessions by scanning the key prefix. Scans are expensive,
// so the result is cached for lenCacheTTL; Len is called after every question.
func (s *RedisStore) Len(ctx domain.Context) int {
	s.lenMu.Lock()
	defer s.lenMu.Unlock()
	if !s.lenAt.IsZero() && time.Since(s.lenAt) < lenCacheTTL {
		return s.lenCount
	}
	var count int
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		slog.Error("redis session scan failed", slog.Any("error", err))
		return s.lenCount
	}
	s.lenCount, s.lenAt = count, time.Now()
	return count
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

var _ domain.SessionStore = (*RedisStore)(nil)
