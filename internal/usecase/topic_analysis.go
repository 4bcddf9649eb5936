package usecase

import (
	"errors"
	"log/slog"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/pkg/jsonrepair"
)

// complexityFor derives topic complexity from the candidate's seniority when
// the model does not supply one.
func complexityFor(level domain.ExperienceLevel) domain.Complexity {
	switch level {
	case domain.LevelFresher:
		return domain.ComplexityLow
	case domain.LevelJunior, domain.LevelMidLevel:
		return domain.ComplexityMedium
	default:
		return domain.ComplexityHigh
	}
}

// analyzeTopic runs the topic analysis stage. Transport and parse failures fall
// back to the curated topic tables; the caller always gets a usable analysis.
func (s *InterviewService) analyzeTopic(ctx domain.Context, cfg domain.InterviewConfig) domain.TopicAnalysis {
	raw, err := s.ai.Complete(ctx, topicAnalysisSystemPrompt(), []domain.Message{
		{Role: "user", Content: topicAnalysisUserPrompt(cfg)},
	})
	if err != nil {
		slog.Warn("topic analysis llm call failed, using fallback table",
			slog.String("stage", "topic_analysis"),
			slog.String("topic", cfg.Topic),
			slog.Any("error", err))
		observability.RecordStage("topic_analysis", true)
		return s.fallbackTopicAnalysis(cfg)
	}
	analysis, ok := parseTopicAnalysis(raw, cfg)
	if !ok {
		observability.RecordStage("topic_analysis", true)
		return s.fallbackTopicAnalysis(cfg)
	}
	observability.RecordStage("topic_analysis", false)
	return analysis
}

// parseTopicAnalysis repairs the raw model output into a TopicAnalysis. The
// four required lists must be non-empty; anything less forces the fallback.
func parseTopicAnalysis(raw string, cfg domain.InterviewConfig) (domain.TopicAnalysis, bool) {
	obj, err := jsonrepair.Extract(raw)
	if err != nil {
		logParseFailure("topic_analysis", err)
		return domain.TopicAnalysis{}, false
	}
	a := domain.TopicAnalysis{
		MainConcepts:       pickList(obj, "main_concepts", "mainConcepts"),
		Skills:             pickList(obj, "skills"),
		Technologies:       pickList(obj, "technologies"),
		FocusAreas:         pickList(obj, "focus_areas", "focusAreas"),
		QuestionCategories: pickList(obj, "question_categories", "questionCategories"),
		RelevanceKeywords:  pickList(obj, "relevance_keywords", "relevanceKeywords"),
	}
	switch c := domain.Complexity(pickString(obj, "", "complexity")); c {
	case domain.ComplexityLow, domain.ComplexityMedium, domain.ComplexityHigh:
		a.Complexity = c
	default:
		a.Complexity = complexityFor(cfg.ExperienceLevel)
	}
	if len(a.MainConcepts) == 0 || len(a.Skills) == 0 || len(a.FocusAreas) == 0 || len(a.RelevanceKeywords) == 0 {
		slog.Warn("topic analysis missing required lists",
			slog.String("stage", "topic_analysis"),
			slog.Int("main_concepts", len(a.MainConcepts)),
			slog.Int("skills", len(a.Skills)),
			slog.Int("focus_areas", len(a.FocusAreas)),
			slog.Int("relevance_keywords", len(a.RelevanceKeywords)))
		return domain.TopicAnalysis{}, false
	}
	return a, true
}

func (s *InterviewService) fallbackTopicAnalysis(cfg domain.InterviewConfig) domain.TopicAnalysis {
	entry := s.fallbacks.TopicFallbackFor(cfg.Topic)
	return domain.TopicAnalysis{
		MainConcepts:       entry.MainConcepts,
		Skills:             entry.Skills,
		Technologies:       entry.Technologies,
		FocusAreas:         entry.FocusAreas,
		Complexity:         complexityFor(cfg.ExperienceLevel),
		QuestionCategories: []string{string(cfg.Style)},
		RelevanceKeywords:  entry.RelevanceKeywords,
	}
}

func logParseFailure(stage string, err error) {
	attrs := []any{slog.String("stage", stage), slog.Any("error", err)}
	var pe *jsonrepair.ParseError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("raw_preview", pe.Preview(200)), slog.Int("strategies_tried", len(pe.Attempts)))
	}
	slog.Warn("structured output repair failed", attrs...)
}
