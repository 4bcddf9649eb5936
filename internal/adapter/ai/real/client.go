// Package real implements the LLM gateway against OpenAI-compatible chat
// completion APIs (OpenRouter, Groq, or any drop-in equivalent).
package real

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// Client implements domain.AIClient over an OpenAI-compatible chat endpoint.
// Provider differences are confined to config (base URL, key, model); callers
// see one Complete contract.
type Client struct {
	cfg     config.Config
	hc      *http.Client
	counter *tokencount.Counter
	breaker *observability.CircuitBreaker
}

// New constructs the gateway client with the configured request timeout and a
// circuit breaker guarding the provider.
func New(cfg config.Config) *Client {
	timeout := cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "llm " + r.URL.Path
		}))
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: timeout, Transport: transport},
		counter: tokencount.NewCounter(),
		breaker: observability.NewCircuitBreaker("llm:"+cfg.LLMProvider, 5, 30*time.Second),
	}
}

func (c *Client) backoffConfig() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxInterval, multiplier := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	return expo
}

// Complete calls the chat completions endpoint and returns the first choice's
// message content. 429 and 5xx responses are retried with exponential backoff;
// 4xx responses are permanent. Any terminal failure wraps domain.ErrLLMCall.
func (c *Client) Complete(ctx domain.Context, systemPrompt string, messages []domain.Message) (string, error) {
	if c.cfg.LLMAPIKey == "" {
		return "", fmt.Errorf("%w: LLM_API_KEY missing", domain.ErrInvalidArgument)
	}

	// Keep the prompt inside the configured token budget; oldest turns go first.
	messages = c.counter.FitMessages(c.cfg.LLMModel, systemPrompt, messages, c.cfg.MaxPromptTokens)

	wire := make([]map[string]string, 0, len(messages)+1)
	wire = append(wire, map[string]string{"role": "system", "content": systemPrompt})
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		wire = append(wire, map[string]string{"role": role, "content": m.Content})
	}

	body := map[string]any{
		"model":       c.cfg.LLMModel,
		"temperature": c.cfg.LLMTemperature,
		"max_tokens":  c.cfg.LLMMaxTokens,
		"messages":    wire,
	}
	b, _ := json.Marshal(body)

	var out struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	endpoint := c.cfg.LLMBaseURL + "/chat/completions"
	op := func() error {
		start := time.Now()
		// Recreate the request each attempt to avoid reusing consumed bodies
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Authorization", "Bearer "+c.cfg.LLMAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		observability.AIRequestsTotal.WithLabelValues(c.cfg.LLMProvider, "chat").Inc()
		observability.AIRequestDuration.WithLabelValues(c.cfg.LLMProvider, "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			slog.Error("failed to read provider response body", slog.String("provider", c.cfg.LLMProvider), slog.Any("error", err))
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("ai provider rate limited", slog.String("provider", c.cfg.LLMProvider), slog.Int("status", resp.StatusCode), slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			slog.Warn("ai provider 4xx", slog.String("provider", c.cfg.LLMProvider), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.LLMModel), slog.String("endpoint", endpoint), slog.String("body", snippet(bodyBytes, 512)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.Error("ai provider non-2xx", slog.String("provider", c.cfg.LLMProvider), slog.Int("status", resp.StatusCode), slog.String("model", c.cfg.LLMModel), slog.String("endpoint", endpoint), slog.String("body", snippet(bodyBytes, 512)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			slog.Error("ai provider decode error", slog.String("provider", c.cfg.LLMProvider), slog.String("model", c.cfg.LLMModel), slog.Any("error", err))
			return err
		}
		return nil
	}

	call := func() error {
		bo := backoff.WithContext(c.backoffConfig(), ctx)
		return backoff.Retry(op, bo)
	}
	if err := c.breaker.Call(call); err != nil {
		slog.Error("llm call failed after retries", slog.String("provider", c.cfg.LLMProvider), slog.String("model", c.cfg.LLMModel), slog.Any("error", err))
		return "", fmt.Errorf("%w: %v", domain.ErrLLMCall, err)
	}

	if len(out.Choices) == 0 {
		slog.Error("ai provider returned empty choices", slog.String("provider", c.cfg.LLMProvider), slog.String("model", c.cfg.LLMModel))
		return "", fmt.Errorf("%w: empty choices", domain.ErrLLMCall)
	}
	if out.Model != "" && out.Model != c.cfg.LLMModel {
		slog.Warn("model substitution detected",
			slog.String("requested_model", c.cfg.LLMModel),
			slog.String("actual_model", out.Model),
			slog.String("provider", c.cfg.LLMProvider))
	}
	return out.Choices[0].Message.Content, nil
}

var _ domain.AIClient = (*Client)(nil)

func snippet(b []byte, n int) string {
	if len(b) == 0 {
		return "<empty>"
	}
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
