package usecase

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/pkg/jsonrepair"
)

// generateCandidate runs the generation stage for one candidate question.
// Unlike the earlier stages it returns an error: its fallback (the static
// per-style question list) needs the question number, which only the
// orchestrator holds.
func (s *InterviewService) generateCandidate(ctx domain.Context, plan domain.QuestionPlan, analysis domain.TopicAnalysis, cfg domain.InterviewConfig, avoid []string) (string, domain.QuestionMetadata, error) {
	raw, err := s.ai.Complete(ctx, questionGenSystemPrompt(cfg), []domain.Message{
		{Role: "user", Content: questionGenUserPrompt(plan, analysis, cfg, avoid)},
	})
	if err != nil {
		observability.RecordStage("question_gen", true)
		return "", domain.QuestionMetadata{}, fmt.Errorf("generate question: %w", err)
	}
	obj, err := jsonrepair.Extract(raw)
	if err != nil {
		logParseFailure("question_gen", err)
		observability.RecordStage("question_gen", true)
		return "", domain.QuestionMetadata{}, fmt.Errorf("generate question: %w: %v", domain.ErrSchemaInvalid, err)
	}
	question := strings.TrimSpace(pickString(obj, "", "question"))
	if question == "" {
		observability.RecordStage("question_gen", true)
		return "", domain.QuestionMetadata{}, fmt.Errorf("generate question: %w: empty question field", domain.ErrSchemaInvalid)
	}
	meta := domain.QuestionMetadata{
		Category:      pickString(obj, plan.FocusArea, "category"),
		Difficulty:    pickString(obj, plan.Difficulty, "difficulty"),
		FocusArea:     plan.FocusArea,
		Concepts:      plan.Concepts,
		QuestionType:  plan.QuestionType,
		EstimatedTime: pickString(obj, "", "estimated_time", "estimatedTime"),
	}
	observability.RecordStage("question_gen", false)
	return question, meta, nil
}
