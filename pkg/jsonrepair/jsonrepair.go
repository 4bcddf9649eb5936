// Package jsonrepair recovers a JSON object from a possibly malformed LLM
// text response. LLMs wrap JSON in markdown fences, prefix it with prose, or
// emit trailing commentary; the strategies here peel those layers off in a
// fixed order so the behavior stays testable in isolation.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Strategy attempts to recover a JSON object from raw text. Each strategy is a
// pure function; it either returns the decoded object or an error.
type Strategy func(raw string) (map[string]any, error)

// ParseError reports that every strategy in the chain failed.
type ParseError struct {
	Raw      string
	Attempts []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no strategy recovered a JSON object (tried %s)", strings.Join(e.Attempts, ", "))
}

// Preview returns up to n characters of the raw response for logging.
func (e *ParseError) Preview(n int) string {
	s := strings.TrimSpace(e.Raw)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// DirectParse trims whitespace, strips one leading ```json or ``` marker and
// one trailing ``` marker, then attempts a direct JSON parse.
func DirectParse(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	return decodeObject(s)
}

// BracedSpan scans the original raw text for the first balanced {...} span and
// parses that substring.
func BracedSpan(raw string) (map[string]any, error) {
	start := strings.Index(raw, "{")
	if start == -1 {
		return nil, fmt.Errorf("no opening brace")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return decodeObject(raw[start : i+1])
			}
		}
	}
	// Unbalanced: fall back to the greedy span up to the last closing brace.
	if end := strings.LastIndex(raw, "}"); end > start {
		return decodeObject(raw[start : end+1])
	}
	return nil, fmt.Errorf("no balanced object span")
}

// FencedBlock parses the interior of a fenced block explicitly tagged json.
func FencedBlock(raw string) (map[string]any, error) {
	const tag = "```json"
	start := strings.Index(raw, tag)
	if start == -1 {
		return nil, fmt.Errorf("no json fence")
	}
	inner := raw[start+len(tag):]
	if end := strings.Index(inner, "```"); end != -1 {
		inner = inner[:end]
	}
	return decodeObject(strings.TrimSpace(inner))
}

// DefaultChain is the repair order applied to every structured LLM response.
var DefaultChain = []Strategy{DirectParse, BracedSpan, FencedBlock}

// Extract runs the default strategy chain and returns the first recovered
// object, or a *ParseError when no strategy succeeds.
func Extract(raw string) (map[string]any, error) {
	return ExtractWith(raw, DefaultChain)
}

// ExtractWith runs the given strategies in order.
func ExtractWith(raw string, chain []Strategy) (map[string]any, error) {
	attempts := make([]string, 0, len(chain))
	for i, strat := range chain {
		obj, err := strat(raw)
		if err == nil {
			return obj, nil
		}
		attempts = append(attempts, fmt.Sprintf("strategy %d: %v", i+1, err))
	}
	return nil, &ParseError{Raw: raw, Attempts: attempts}
}

func decodeObject(s string) (map[string]any, error) {
	if s == "" {
		return nil, fmt.Errorf("empty input")
	}
	var obj map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("decoded nil object")
	}
	return obj, nil
}

// Number converts a decoded JSON value to float64 when it is numeric.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// StringList converts a decoded JSON value to []string, dropping non-string
// elements. The second result is false when v is not a list at all.
func StringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
