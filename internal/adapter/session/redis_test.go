package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()
	s, _ := newRedisStore(t)
	ctx := context.Background()

	analysis := domain.TopicAnalysis{
		MainConcepts:      []string{"Concurrency"},
		Skills:            []string{"Go"},
		FocusAreas:        []string{"Channels"},
		Complexity:        domain.ComplexityMedium,
		RelevanceKeywords: []string{"goroutine"},
	}
	mem := domain.SessionMemory{
		TopicAnalysis:  &analysis,
		LastQuestion:   "Explain channels.",
		QuestionNumber: 3,
	}
	require.NoError(t, s.Put(ctx, "a", mem))

	got, ok := s.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, mem, got)
	assert.Equal(t, 1, s.Len(ctx))

	require.NoError(t, s.Delete(ctx, "a"))
	_, ok = s.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisStoreMissingKey(t *testing.T) {
	t.Parallel()
	s, _ := newRedisStore(t)
	_, ok := s.Get(context.Background(), "nope")
	assert.False(t, ok)
}

func TestRedisStoreTTL(t *testing.T) {
	t.Parallel()
	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", domain.SessionMemory{QuestionNumber: 1}))
	mr.FastForward(2 * time.Minute)

	_, ok := s.Get(ctx, "a")
	assert.False(t, ok, "entry expires after the TTL")
}

func TestRedisStoreLenIsCached(t *testing.T) {
	t.Parallel()
	s, _ := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", domain.SessionMemory{QuestionNumber: 1}))
	assert.Equal(t, 1, s.Len(ctx))

	// Within the cache window Len serves the cached count without rescanning.
	require.NoError(t, s.Put(ctx, "b", domain.SessionMemory{QuestionNumber: 1}))
	assert.Equal(t, 1, s.Len(ctx))

	// Expiring the cache forces a fresh scan.
	s.lenMu.Lock()
	s.lenAt = time.Time{}
	s.lenMu.Unlock()
	assert.Equal(t, 2, s.Len(ctx))
}

func TestNewRedisStoreBadURL(t *testing.T) {
	t.Parallel()
	_, err := NewRedisStore(context.Background(), "not-a-url", time.Minute)
	assert.Error(t, err)
}
