package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

const responseJSON = `{"clarity":80,"structure":70,"technical":85,"communication":75,"confidence":72,"score":76,"strengths":["clear examples"],"improvements":["quantify impact"],"feedback":"Solid answer.","key_insights":["knows hooks"]}`

func sampleResponses() []domain.InterviewResponse {
	return []domain.InterviewResponse{
		{QuestionID: "q1", Question: "Explain React state.", Response: "State holds component data. It triggers re-renders when updated through setState or hooks."},
		{QuestionID: "q2", Question: "What are props?", Response: "Props are read-only inputs passed from parent to child components."},
	}
}

func TestSynthesisRecomputesOverallFromRepairedSubScores(t *testing.T) {
	t.Parallel()
	fenced := "```json\n{\"overallScore\": 150, \"responseAnalysis\": {\"clarity\": -5, \"structure\": 80, \"technical\": 90, \"communication\": 85, \"confidence\": 70}}\n```"
	ai := newStubAI().
		reply("response", responseJSON).
		reply("overall", fenced)
	svc := NewAnalysisService(ai, nil)

	a := svc.AnalyzeSession(context.Background(), reactConfig(), sampleResponses())

	// clarity -5 repairs to 70; overall is the mean of the repaired sub-scores,
	// never the model's out-of-range 150.
	assert.Equal(t, 70, a.Scores.Clarity)
	assert.Equal(t, (70+80+90+85+70+2)/5, a.OverallScore)
	assert.Equal(t, domain.PerformanceLevelFor(a.OverallScore), a.PerformanceLevel)
	assert.False(t, a.Fallback)
	assert.Len(t, a.QuestionReviews, 2)
}

func TestSynthesisParseFailureFallsBackToAggregates(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("response", responseJSON).
		reply("overall", "the candidate did fine, thanks for asking")
	svc := NewAnalysisService(ai, nil)

	a := svc.AnalyzeSession(context.Background(), reactConfig(), sampleResponses())

	assert.True(t, a.Fallback)
	// Both responses scored identically, so the averages match one response.
	assert.Equal(t, 80, a.Scores.Clarity)
	assert.Equal(t, 85, a.Scores.Technical)
	assert.Equal(t, a.Scores.Mean(), a.OverallScore)
	assert.NotEmpty(t, a.ExecutiveSummary)
	assert.NotEmpty(t, a.Recommendations)
	assert.Len(t, a.QuestionReviews, 2)
}

func TestAnalyzeResponseHeuristicFallback(t *testing.T) {
	t.Parallel()
	svc := NewAnalysisService(deadAI{}, nil)
	resp := domain.InterviewResponse{
		QuestionID: "q1",
		Question:   "Explain closures.",
		Response:   "I think closures capture variables. " + strings.Repeat("They are useful in callbacks. ", 10),
	}

	r := svc.AnalyzeResponse(context.Background(), reactConfig(), resp)

	assert.True(t, r.Fallback)
	n := len(resp.Response)
	assert.Equal(t, clampRange(70+n/50, 60, 95), r.Scores.Clarity)
	assert.Equal(t, 75, r.Scores.Structure, "long answer with sentences")
	assert.Equal(t, 70, r.Scores.Technical, "technical style scores technical dimension harder")
	assert.Equal(t, clampRange(65+n/40, 60, 90), r.Scores.Communication)
	assert.Equal(t, 65, r.Scores.Confidence, "hedging language lowers confidence")
	assert.Equal(t, r.Scores.Mean(), r.Score)
}

func TestAnalyzeResponseShortHedgeFreeAnswer(t *testing.T) {
	t.Parallel()
	svc := NewAnalysisService(deadAI{}, nil)
	r := svc.AnalyzeResponse(context.Background(), reactConfig(), domain.InterviewResponse{
		QuestionID: "q1",
		Question:   "What is JSX?",
		Response:   "A syntax extension",
	})
	assert.Equal(t, 65, r.Scores.Structure, "no sentence punctuation and short")
	assert.Equal(t, 75, r.Scores.Confidence)
}

func TestAnalyzeSessionNoResponses(t *testing.T) {
	t.Parallel()
	svc := NewAnalysisService(deadAI{}, nil)
	a := svc.AnalyzeSession(context.Background(), reactConfig(), nil)
	assert.True(t, a.Fallback)
	assert.Equal(t, 0, a.OverallScore)
	assert.Equal(t, domain.PerfNeedsImprovement, a.PerformanceLevel)
	assert.Empty(t, a.QuestionReviews)
}

func TestAnalyzeSessionNeverErrorsWhenEverythingIsDown(t *testing.T) {
	t.Parallel()
	svc := NewAnalysisService(deadAI{}, nil)
	a := svc.AnalyzeSession(context.Background(), reactConfig(), sampleResponses())
	assert.True(t, a.Fallback)
	assert.NotZero(t, a.OverallScore)
	assert.NotEmpty(t, a.PerformanceLevel)
	assert.Len(t, a.QuestionReviews, 2)
}
