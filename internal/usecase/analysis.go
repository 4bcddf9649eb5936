package usecase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/pkg/jsonrepair"
)

// AnalysisService orchestrates performance analysis: per-response scoring and
// the session-level synthesis. Like question generation its contract is total;
// the caller always receives some analysis, degraded heuristics at worst.
type AnalysisService struct {
	ai     domain.AIClient
	events domain.EventPublisher
}

// NewAnalysisService constructs the analysis orchestrator. events may be nil.
func NewAnalysisService(ai domain.AIClient, events domain.EventPublisher) *AnalysisService {
	return &AnalysisService{ai: ai, events: events}
}

// AnalyzeResponse scores one answered question. LLM or parse failure yields
// the length-heuristic fallback; this method never returns an error.
func (s *AnalysisService) AnalyzeResponse(ctx domain.Context, cfg domain.InterviewConfig, resp domain.InterviewResponse) domain.AnalysisResult {
	if resp.QuestionID == "" {
		resp.QuestionID = uuid.NewString()
	}
	raw, err := s.ai.Complete(ctx, responseAnalysisSystemPrompt(cfg), []domain.Message{
		{Role: "user", Content: responseAnalysisUserPrompt(resp.Question, resp.Response)},
	})
	if err != nil {
		slog.Warn("response analysis llm call failed, using heuristic fallback",
			slog.String("stage", "response_analysis"),
			slog.String("question_id", resp.QuestionID),
			slog.Any("error", err))
		observability.RecordAnalysis("response", true)
		return heuristicAnalysis(cfg, resp)
	}
	obj, err := jsonrepair.Extract(raw)
	if err != nil {
		logParseFailure("response_analysis", err)
		observability.RecordAnalysis("response", true)
		return heuristicAnalysis(cfg, resp)
	}
	scores := domain.ResponseScores{
		Clarity:       pickScore(obj, "clarity"),
		Structure:     pickScore(obj, "structure"),
		Technical:     pickScore(obj, "technical"),
		Communication: pickScore(obj, "communication"),
		Confidence:    pickScore(obj, "confidence"),
	}
	result := domain.AnalysisResult{
		QuestionID:   resp.QuestionID,
		Question:     resp.Question,
		Response:     resp.Response,
		Scores:       scores,
		Strengths:    pickList(obj, "strengths"),
		Improvements: pickList(obj, "improvements"),
		Feedback:     pickString(obj, "", "feedback"),
		Score:        scores.Mean(),
		KeyInsights:  pickList(obj, "key_insights", "keyInsights"),
	}
	observability.RecordAnalysis("response", false)
	return result
}

// heuristicAnalysis derives scores from surface features of the answer text.
// Crude, but it keeps the coaching loop alive when the model is unreachable.
func heuristicAnalysis(cfg domain.InterviewConfig, resp domain.InterviewResponse) domain.AnalysisResult {
	text := resp.Response
	n := len(text)
	lower := strings.ToLower(text)

	clarity := clampRange(70+n/50, 60, 95)
	structure := 65
	if strings.Contains(text, ".") && n > 50 {
		structure = 75
	}
	technical := 75
	if cfg.Style == domain.StyleTechnical {
		technical = 70
	}
	communication := clampRange(65+n/40, 60, 90)
	confidence := 75
	if strings.Contains(lower, "i think") {
		confidence = 65
	}

	scores := domain.ResponseScores{
		Clarity:       clarity,
		Structure:     structure,
		Technical:     technical,
		Communication: communication,
		Confidence:    confidence,
	}
	return domain.AnalysisResult{
		QuestionID:   resp.QuestionID,
		Question:     resp.Question,
		Response:     resp.Response,
		Scores:       scores,
		Strengths:    []string{"Provided a response to the question"},
		Improvements: []string{"Add more specific detail and concrete examples"},
		Feedback:     "Automated assessment based on response characteristics.",
		Score:        scores.Mean(),
		KeyInsights:  []string{},
		Fallback:     true,
	}
}

func clampRange(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AnalyzeSession scores every response and synthesizes the session report.
// It never returns an error; total failure degrades to computed aggregates.
func (s *AnalysisService) AnalyzeSession(ctx domain.Context, cfg domain.InterviewConfig, responses []domain.InterviewResponse) domain.OverallAnalysis {
	if len(responses) == 0 {
		observability.RecordAnalysis("session", true)
		return emptySessionAnalysis(cfg)
	}

	results := make([]domain.AnalysisResult, 0, len(responses))
	for _, r := range responses {
		results = append(results, s.AnalyzeResponse(ctx, cfg, r))
	}

	analysis, ok := s.synthesize(ctx, cfg, results)
	if !ok {
		analysis = aggregateAnalysis(cfg, results)
	}
	analysis.QuestionReviews = reviewsFrom(results)

	observability.RecordAnalysis("session", analysis.Fallback)
	observability.OverallScoreHistogram.Observe(float64(analysis.OverallScore))
	s.publishAnalyzed(ctx, cfg, analysis)
	return analysis
}

// synthesize runs the session synthesis stage over the per-response analyses.
// The overall score is always recomputed as the mean of the repaired
// sub-scores, so it can never disagree with them.
func (s *AnalysisService) synthesize(ctx domain.Context, cfg domain.InterviewConfig, results []domain.AnalysisResult) (domain.OverallAnalysis, bool) {
	raw, err := s.ai.Complete(ctx, overallAnalysisSystemPrompt(cfg), []domain.Message{
		{Role: "user", Content: overallAnalysisUserPrompt(results)},
	})
	if err != nil {
		slog.Warn("session synthesis llm call failed, using computed aggregates",
			slog.String("stage", "overall_analysis"),
			slog.Any("error", err))
		return domain.OverallAnalysis{}, false
	}
	obj, err := jsonrepair.Extract(raw)
	if err != nil {
		logParseFailure("overall_analysis", err)
		return domain.OverallAnalysis{}, false
	}

	sub, _ := pick(obj, "response_analysis", "responseAnalysis")
	subObj, _ := sub.(map[string]any)
	scores := domain.ResponseScores{
		Clarity:       pickScore(subObj, "clarity"),
		Structure:     pickScore(subObj, "structure"),
		Technical:     pickScore(subObj, "technical"),
		Communication: pickScore(subObj, "communication"),
		Confidence:    pickScore(subObj, "confidence"),
	}
	overall := scores.Mean()

	strengths := pickList(obj, "strengths")
	if len(strengths) == 0 {
		strengths = collectedStrengths(results)
	}
	improvements := pickList(obj, "improvements")
	if len(improvements) == 0 {
		improvements = collectedImprovements(results)
	}

	a := domain.OverallAnalysis{
		OverallScore:     overall,
		PerformanceLevel: domain.PerformanceLevelFor(overall),
		Strengths:        strengths,
		Improvements:     improvements,
		Scores:           scores,
		Trends:           trendsFrom(obj),
		Recommendations:  pickList(obj, "recommendations"),
		ExecutiveSummary: pickString(obj, defaultSummary(cfg, overall), "executive_summary", "executiveSummary"),
		NextSteps:        pickList(obj, "next_steps", "nextSteps"),
	}
	if len(a.Recommendations) == 0 {
		a.Recommendations = defaultRecommendations(cfg)
	}
	if len(a.NextSteps) == 0 {
		a.NextSteps = defaultNextSteps(cfg)
	}
	return a, true
}

// aggregateAnalysis is the synthesis fallback computed purely from the
// per-response results.
func aggregateAnalysis(cfg domain.InterviewConfig, results []domain.AnalysisResult) domain.OverallAnalysis {
	var sum domain.ResponseScores
	for _, r := range results {
		sum.Clarity += r.Scores.Clarity
		sum.Structure += r.Scores.Structure
		sum.Technical += r.Scores.Technical
		sum.Communication += r.Scores.Communication
		sum.Confidence += r.Scores.Confidence
	}
	n := len(results)
	avg := domain.ResponseScores{
		Clarity:       (sum.Clarity + n/2) / n,
		Structure:     (sum.Structure + n/2) / n,
		Technical:     (sum.Technical + n/2) / n,
		Communication: (sum.Communication + n/2) / n,
		Confidence:    (sum.Confidence + n/2) / n,
	}
	overall := avg.Mean()
	return domain.OverallAnalysis{
		OverallScore:     overall,
		PerformanceLevel: domain.PerformanceLevelFor(overall),
		Strengths:        collectedStrengths(results),
		Improvements:     collectedImprovements(results),
		Scores:           avg,
		Recommendations:  defaultRecommendations(cfg),
		ExecutiveSummary: defaultSummary(cfg, overall),
		NextSteps:        defaultNextSteps(cfg),
		Fallback:         true,
	}
}

func emptySessionAnalysis(cfg domain.InterviewConfig) domain.OverallAnalysis {
	return domain.OverallAnalysis{
		OverallScore:     0,
		PerformanceLevel: domain.PerfNeedsImprovement,
		Strengths:        []string{},
		Improvements:     []string{"Complete at least one question to receive an assessment"},
		Recommendations:  defaultRecommendations(cfg),
		ExecutiveSummary: "No responses were recorded for this session.",
		NextSteps:        []string{"Start a practice interview and answer the questions aloud"},
		QuestionReviews:  []domain.QuestionReview{},
		Fallback:         true,
	}
}

func reviewsFrom(results []domain.AnalysisResult) []domain.QuestionReview {
	reviews := make([]domain.QuestionReview, 0, len(results))
	for _, r := range results {
		reviews = append(reviews, domain.QuestionReview{
			QuestionID: r.QuestionID,
			Question:   r.Question,
			Response:   r.Response,
			Score:      r.Score,
			Feedback:   r.Feedback,
		})
	}
	return reviews
}

func collectedStrengths(results []domain.AnalysisResult) []string {
	var all []string
	for _, r := range results {
		all = append(all, r.Strengths...)
	}
	return capList(dedupe(all), 5)
}

func collectedImprovements(results []domain.AnalysisResult) []string {
	var all []string
	for _, r := range results {
		all = append(all, r.Improvements...)
	}
	return capList(dedupe(all), 5)
}

func trendsFrom(obj map[string]any) map[string]string {
	v, ok := pick(obj, "trends")
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, tv := range m {
		if s, ok := tv.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func defaultSummary(cfg domain.InterviewConfig, overall int) string {
	return fmt.Sprintf("Overall performance in this %s interview about %s scored %d/100 (%s).",
		cfg.Style, cfg.Topic, overall, domain.PerformanceLevelFor(overall))
}

func defaultRecommendations(cfg domain.InterviewConfig) []string {
	return []string{
		fmt.Sprintf("Practice answering %s questions about %s out loud", cfg.Style, cfg.Topic),
		"Structure answers with a short summary first, then supporting detail",
	}
}

func defaultNextSteps(cfg domain.InterviewConfig) []string {
	return []string{
		fmt.Sprintf("Review the core concepts of %s", cfg.Topic),
		"Schedule another practice session within a week",
	}
}

func (s *AnalysisService) publishAnalyzed(ctx domain.Context, cfg domain.InterviewConfig, a domain.OverallAnalysis) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, domain.InterviewEvent{
		Type:      "session_analyzed",
		SessionID: cfg.SessionID(),
		Payload: map[string]any{
			"overall_score":     a.OverallScore,
			"performance_level": a.PerformanceLevel,
			"fallback":          a.Fallback,
		},
		AtUnixMs: time.Now().UnixMilli(),
	})
}
