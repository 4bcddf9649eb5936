package usecase

import (
	"log/slog"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/pkg/jsonrepair"
)

// planQuestion runs the planning stage. It never fails: LLM or parse trouble
// yields a generic position-aware plan with Success=false that the generation
// stage can still consume.
func (s *InterviewService) planQuestion(ctx domain.Context, analysis domain.TopicAnalysis, prevQuestions []string, prevResponses []domain.InterviewResponse, questionNumber int, cfg domain.InterviewConfig) domain.QuestionPlan {
	raw, err := s.ai.Complete(ctx, questionPlanSystemPrompt(), []domain.Message{
		{Role: "user", Content: questionPlanUserPrompt(analysis, prevQuestions, prevResponses, questionNumber, cfg)},
	})
	if err != nil {
		slog.Warn("question planning llm call failed, using generic plan",
			slog.String("stage", "question_plan"),
			slog.Int("question_number", questionNumber),
			slog.Any("error", err))
		observability.RecordStage("question_plan", true)
		return genericPlan(analysis, questionNumber, cfg)
	}
	plan, ok := parseQuestionPlan(raw, cfg)
	if !ok {
		observability.RecordStage("question_plan", true)
		return genericPlan(analysis, questionNumber, cfg)
	}
	observability.RecordStage("question_plan", false)
	return plan
}

func parseQuestionPlan(raw string, cfg domain.InterviewConfig) (domain.QuestionPlan, bool) {
	obj, err := jsonrepair.Extract(raw)
	if err != nil {
		logParseFailure("question_plan", err)
		return domain.QuestionPlan{}, false
	}
	p := domain.QuestionPlan{
		QuestionType: domain.QuestionType(pickString(obj, string(defaultQuestionType(cfg.Style)), "question_type", "questionType")),
		FocusArea:    pickString(obj, "", "focus_area", "focusArea"),
		Difficulty:   pickString(obj, "medium", "difficulty"),
		Concepts:     pickList(obj, "concepts"),
		Rationale:    pickString(obj, "", "rationale"),
		AvoidTopics:  pickList(obj, "avoid_topics", "avoidTopics"),
		Success:      true,
	}
	if p.FocusArea == "" {
		return domain.QuestionPlan{}, false
	}
	return p, true
}

// genericPlan is the planning fallback. Question type follows the position in
// the interview: first question opens, later questions lean on the style.
func genericPlan(analysis domain.TopicAnalysis, questionNumber int, cfg domain.InterviewConfig) domain.QuestionPlan {
	qt := defaultQuestionType(cfg.Style)
	if questionNumber <= 1 {
		qt = domain.QuestionOpening
	} else if est := estimatedQuestionCount(cfg.DurationMinutes); questionNumber >= est && est > 1 {
		qt = domain.QuestionClosing
	}
	focus := cfg.Topic
	if len(analysis.FocusAreas) > 0 {
		focus = analysis.FocusAreas[(questionNumber-1+len(analysis.FocusAreas))%len(analysis.FocusAreas)]
	}
	return domain.QuestionPlan{
		QuestionType: qt,
		FocusArea:    focus,
		Difficulty:   difficultyFor(analysis.Complexity),
		Concepts:     capList(analysis.MainConcepts, 3),
		Rationale:    "generic plan derived from topic analysis",
		Success:      false,
	}
}

func defaultQuestionType(style domain.InterviewStyle) domain.QuestionType {
	switch style {
	case domain.StyleTechnical:
		return domain.QuestionTechnical
	case domain.StyleBehavioral, domain.StyleHR:
		return domain.QuestionBehavioral
	case domain.StyleCaseStudy:
		return domain.QuestionScenario
	default:
		return domain.QuestionOpening
	}
}

// estimatedQuestionCount assumes roughly five minutes per question.
func estimatedQuestionCount(durationMinutes int) int {
	n := durationMinutes / 5
	if n < 1 {
		n = 1
	}
	return n
}

func difficultyFor(c domain.Complexity) string {
	switch c {
	case domain.ComplexityLow:
		return "easy"
	case domain.ComplexityHigh:
		return "hard"
	default:
		return "medium"
	}
}
