package usecase

import (
	"log/slog"
	"strings"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/pkg/jsonrepair"
)

// validationVerdict is the reviewer's judgement of one candidate question.
type validationVerdict struct {
	Decision     string
	OverallScore int
	Issues       []string
	Suggestions  []string
}

func (v validationVerdict) approved(threshold int) bool {
	return v.Decision == "approve" || v.OverallScore >= threshold
}

// validateQuestion runs the validation stage. A broken validator never blocks
// the pipeline: LLM or parse failure approves the candidate as-is.
func (s *InterviewService) validateQuestion(ctx domain.Context, question string, plan domain.QuestionPlan, analysis domain.TopicAnalysis, cfg domain.InterviewConfig) validationVerdict {
	approveAnyway := validationVerdict{Decision: "approve", OverallScore: s.opts.ValidationThreshold}
	raw, err := s.ai.Complete(ctx, questionValidateSystemPrompt(), []domain.Message{
		{Role: "user", Content: questionValidateUserPrompt(question, plan, analysis, cfg)},
	})
	if err != nil {
		slog.Warn("validation llm call failed, accepting candidate",
			slog.String("stage", "question_validate"),
			slog.Any("error", err))
		observability.RecordStage("question_validate", true)
		return approveAnyway
	}
	obj, err := jsonrepair.Extract(raw)
	if err != nil {
		logParseFailure("question_validate", err)
		observability.RecordStage("question_validate", true)
		return approveAnyway
	}
	observability.RecordStage("question_validate", false)
	return validationVerdict{
		Decision:     strings.ToLower(pickString(obj, "approve", "decision")),
		OverallScore: pickScore(obj, "overall_score", "overallScore"),
		Issues:       pickList(obj, "issues"),
		Suggestions:  pickList(obj, "suggestions"),
	}
}

// refinePlan folds reviewer suggestions into the plan for the next attempt.
func refinePlan(plan domain.QuestionPlan, verdict validationVerdict) domain.QuestionPlan {
	if len(verdict.Suggestions) > 0 {
		plan.Rationale = strings.TrimSpace(plan.Rationale + " Reviewer suggestions: " + strings.Join(verdict.Suggestions, "; "))
	}
	if len(verdict.Issues) > 0 {
		plan.AvoidTopics = dedupe(append(plan.AvoidTopics, verdict.Issues...))
	}
	return plan
}
