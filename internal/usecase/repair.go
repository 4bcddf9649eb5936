// Package usecase contains the interview pipeline business logic: the staged
// question generation flow and the performance analysis flow.
package usecase

import (
	"math"

	"github.com/fairyhunter13/ai-interview-coach/pkg/jsonrepair"
)

// neutralScore substitutes any missing, non-numeric, or out-of-range score.
const neutralScore = 70

// scoreOrDefault repairs one numeric score field. Values outside [0,100] are
// replaced with the neutral default, never clamped to the boundary.
func scoreOrDefault(v any) int {
	n, ok := jsonrepair.Number(v)
	if !ok {
		return neutralScore
	}
	if n < 0 || n > 100 {
		return neutralScore
	}
	return int(math.Round(n))
}

// listOrEmpty repairs a list field; anything unusable becomes an empty list,
// never nil.
func listOrEmpty(v any) []string {
	if l, ok := jsonrepair.StringList(v); ok {
		return l
	}
	return []string{}
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func intOr(v any, def int) int {
	if n, ok := jsonrepair.Number(v); ok {
		return int(math.Round(n))
	}
	return def
}

// pick returns the first present key from obj. Provider outputs mix snake_case
// and camelCase for the same field, so parsers accept both spellings.
func pick(obj map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func pickList(obj map[string]any, keys ...string) []string {
	v, _ := pick(obj, keys...)
	return listOrEmpty(v)
}

func pickString(obj map[string]any, def string, keys ...string) string {
	v, _ := pick(obj, keys...)
	return stringOr(v, def)
}

func pickScore(obj map[string]any, keys ...string) int {
	v, ok := pick(obj, keys...)
	if !ok {
		return neutralScore
	}
	return scoreOrDefault(v)
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func capList(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
