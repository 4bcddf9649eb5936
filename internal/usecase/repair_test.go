package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

func TestScoreOrDefault(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   any
		want int
	}{
		{"in range", float64(84), 84},
		{"lower bound", float64(0), 0},
		{"upper bound", float64(100), 100},
		{"negative", float64(-5), 70},
		{"above range", float64(150), 70},
		{"non numeric", "eighty", 70},
		{"nil", nil, 70},
		{"json number", json.Number("91"), 91},
		{"fractional rounds", 84.6, 85},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, scoreOrDefault(tc.in))
		})
	}
}

func TestTopicAnalysisRoundTrip(t *testing.T) {
	t.Parallel()
	orig := domain.TopicAnalysis{
		MainConcepts:       []string{"Components", "Rendering"},
		Skills:             []string{"React", "TypeScript"},
		Technologies:       []string{"React", "Vite"},
		FocusAreas:         []string{"State Management"},
		Complexity:         domain.ComplexityMedium,
		QuestionCategories: []string{"technical"},
		RelevanceKeywords:  []string{"hooks", "props"},
	}
	b, err := json.Marshal(orig)
	require.NoError(t, err)

	// The serialized form survives the repair chain even when fenced.
	for _, raw := range []string{string(b), "```json\n" + string(b) + "\n```"} {
		got, ok := parseTopicAnalysis(raw, reactConfig())
		require.True(t, ok)
		assert.Equal(t, orig, got)
	}
}

func TestParseTopicAnalysisRejectsMissingLists(t *testing.T) {
	t.Parallel()
	_, ok := parseTopicAnalysis(`{"main_concepts":["a"],"skills":[],"focus_areas":["c"],"relevance_keywords":["d"]}`, reactConfig())
	assert.False(t, ok)
}

func TestComplexityFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, domain.ComplexityLow, complexityFor(domain.LevelFresher))
	assert.Equal(t, domain.ComplexityMedium, complexityFor(domain.LevelJunior))
	assert.Equal(t, domain.ComplexityMedium, complexityFor(domain.LevelMidLevel))
	assert.Equal(t, domain.ComplexityHigh, complexityFor(domain.LevelSenior))
	assert.Equal(t, domain.ComplexityHigh, complexityFor(domain.LevelLeadManager))
}

func TestDedupe(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b", "c"}, dedupe([]string{"a", "b", "a", "c", "b"}))
}
