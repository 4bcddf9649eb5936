// Package tokencount estimates token usage for LLM prompts.
//
// It uses tiktoken-go so that prompt budgeting happens before the provider
// call instead of failing on the provider's context limit. Models without a
// registered encoding fall back to cl100k_base, which is close enough for
// budgeting purposes.
package tokencount

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

const fallbackEncoding = "cl100k_base"

// Counter provides thread-safe token counting for LLM models.
type Counter struct {
	mu            sync.RWMutex
	encodingCache map[string]*tiktoken.Tiktoken
}

// NewCounter creates a new token counter instance.
func NewCounter() *Counter {
	return &Counter{encodingCache: make(map[string]*tiktoken.Tiktoken)}
}

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	key := normalizeModelName(model)

	c.mu.RLock()
	enc, ok := c.encodingCache[key]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encodingCache[key]; ok {
		return enc, nil
	}
	enc, err := tiktoken.EncodingForModel(key)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, err
		}
	}
	c.encodingCache[key] = enc
	return enc, nil
}

// CountTokens returns the token count for text under the given model's
// encoding. On encoder errors it falls back to a length/4 estimate so that
// budgeting never blocks a call.
func (c *Counter) CountTokens(model, text string) int {
	enc, err := c.encodingFor(model)
	if err != nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessages returns the token count of a prompt: system prompt plus each
// message with a small per-message framing overhead.
func (c *Counter) CountMessages(model, systemPrompt string, messages []domain.Message) int {
	const perMessageOverhead = 4
	total := c.CountTokens(model, systemPrompt) + perMessageOverhead
	for _, m := range messages {
		total += c.CountTokens(model, m.Content) + perMessageOverhead
	}
	return total
}

// FitMessages drops the oldest messages until the prompt fits within budget.
// The most recent message is always kept even when it alone exceeds budget.
func (c *Counter) FitMessages(model, systemPrompt string, messages []domain.Message, budget int) []domain.Message {
	if budget <= 0 || len(messages) == 0 {
		return messages
	}
	for len(messages) > 1 && c.CountMessages(model, systemPrompt, messages) > budget {
		messages = messages[1:]
	}
	return messages
}

// normalizeModelName strips provider prefixes (e.g. "openai/gpt-4o-mini")
// so that tiktoken's model table has a chance to match.
func normalizeModelName(model string) string {
	if idx := strings.LastIndex(model, "/"); idx != -1 {
		return model[idx+1:]
	}
	return model
}
