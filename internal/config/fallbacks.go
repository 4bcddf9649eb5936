package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed fallbacks.yaml
var fallbacksYAML []byte

// TopicFallback is one curated topic-analysis entry keyed by a topic keyword.
type TopicFallback struct {
	MainConcepts      []string `yaml:"main_concepts"`
	Skills            []string `yaml:"skills"`
	Technologies      []string `yaml:"technologies"`
	FocusAreas        []string `yaml:"focus_areas"`
	RelevanceKeywords []string `yaml:"relevance_keywords"`
}

// Fallbacks holds the static tables substituted when the LLM pipeline cannot
// produce a usable result.
type Fallbacks struct {
	TopicAnalysis        map[string]TopicFallback `yaml:"topic_analysis"`
	GenericTopicAnalysis TopicFallback            `yaml:"generic_topic_analysis"`
	FallbackQuestions    map[string][]string      `yaml:"fallback_questions"`
	FollowupFallback     string                   `yaml:"followup_fallback"`
}

var (
	fallbacksOnce sync.Once
	fallbacks     Fallbacks
	fallbacksErr  error
)

// LoadFallbacks parses the embedded fallback tables. The result is cached for
// the process lifetime.
func LoadFallbacks() (Fallbacks, error) {
	fallbacksOnce.Do(func() {
		fallbacksErr = yaml.Unmarshal(fallbacksYAML, &fallbacks)
		if fallbacksErr != nil {
			fallbacksErr = fmt.Errorf("op=config.LoadFallbacks: %w", fallbacksErr)
		}
	})
	return fallbacks, fallbacksErr
}

// MustFallbacks is LoadFallbacks for wiring paths where the embedded file is
// known good; it panics on a malformed embed.
func MustFallbacks() Fallbacks {
	fb, err := LoadFallbacks()
	if err != nil {
		panic(err)
	}
	return fb
}

// TopicFallbackFor returns the curated entry whose keyword occurs in topic, or
// the generic entry when nothing matches.
func (f Fallbacks) TopicFallbackFor(topic string) TopicFallback {
	lower := strings.ToLower(topic)
	for key, entry := range f.TopicAnalysis {
		if strings.Contains(lower, key) {
			return entry
		}
	}
	return f.GenericTopicAnalysis
}

// QuestionFor returns the static fallback question for the style at the given
// question number (1-based), clamped to the list bounds. Styles without a
// dedicated list fall back to the technical list.
func (f Fallbacks) QuestionFor(style, topic string, questionNumber int) string {
	list, ok := f.FallbackQuestions[style]
	if !ok || len(list) == 0 {
		list = f.FallbackQuestions["technical"]
	}
	if len(list) == 0 {
		return "Tell me about your experience with " + topic + "."
	}
	idx := questionNumber - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(list) {
		idx = len(list) - 1
	}
	return strings.ReplaceAll(list[idx], "{topic}", topic)
}
