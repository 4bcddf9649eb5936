package tokencount

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

func TestCountTokens(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	n := c.CountTokens("gpt-4o-mini", "Hello, how are you today?")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 20)
	assert.Equal(t, 0, c.CountTokens("gpt-4o-mini", ""))
}

func TestCountTokensUnknownModelFallsBack(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	// Unknown models use the fallback encoding, not the len/4 estimate.
	n := c.CountTokens("some/very-new-model", "Hello, how are you today?")
	assert.Greater(t, n, 0)
}

func TestCountMessagesIncludesOverhead(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	msgs := []domain.Message{{Role: "user", Content: "hi"}}
	withMsg := c.CountMessages("gpt-4o-mini", "system", msgs)
	withoutMsg := c.CountMessages("gpt-4o-mini", "system", nil)
	assert.Greater(t, withMsg, withoutMsg)
}

func TestFitMessagesDropsOldestFirst(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	long := strings.Repeat("an over-long conversational turn ", 50)
	msgs := []domain.Message{
		{Role: "user", Content: long},
		{Role: "assistant", Content: long},
		{Role: "user", Content: "final question"},
	}
	fitted := c.FitMessages("gpt-4o-mini", "system", msgs, 100)
	assert.NotEmpty(t, fitted)
	assert.Equal(t, "final question", fitted[len(fitted)-1].Content, "newest message survives")
	assert.Less(t, len(fitted), len(msgs))
}

func TestFitMessagesKeepsLastEvenOverBudget(t *testing.T) {
	t.Parallel()
	c := NewCounter()
	msgs := []domain.Message{{Role: "user", Content: strings.Repeat("words ", 200)}}
	fitted := c.FitMessages("gpt-4o-mini", "system", msgs, 10)
	assert.Len(t, fitted, 1)
}

func TestNormalizeModelName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "gpt-4o-mini", normalizeModelName("openai/gpt-4o-mini"))
	assert.Equal(t, "gpt-4o-mini", normalizeModelName("gpt-4o-mini"))
}
