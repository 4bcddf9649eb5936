package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrLLMCall         = errors.New("llm call failed")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrInternal        = errors.New("internal error")
)

// InterviewStyle enumerates the supported interview styles.
type InterviewStyle string

// Supported interview styles.
const (
	StyleTechnical  InterviewStyle = "technical"
	StyleHR         InterviewStyle = "hr"
	StyleBehavioral InterviewStyle = "behavioral"
	StyleSalary     InterviewStyle = "salary-negotiation"
	StyleCaseStudy  InterviewStyle = "case-study"
)

// ExperienceLevel enumerates candidate seniority levels.
type ExperienceLevel string

// Supported experience levels.
const (
	LevelFresher     ExperienceLevel = "fresher"
	LevelJunior      ExperienceLevel = "junior"
	LevelMidLevel    ExperienceLevel = "mid-level"
	LevelSenior      ExperienceLevel = "senior"
	LevelLeadManager ExperienceLevel = "lead-manager"
)

// InterviewConfig is the immutable per-session configuration. It drives every
// prompt built by every pipeline stage.
// Invariants: Style and ExperienceLevel in their enums; DurationMinutes > 0.
type InterviewConfig struct {
	Topic           string          `json:"topic"`
	Style           InterviewStyle  `json:"style"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	CompanyName     string          `json:"company_name,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
}

// SessionID derives the normalized session key topic_style_experienceLevel.
func (c InterviewConfig) SessionID() string {
	key := c.Topic + "_" + string(c.Style) + "_" + string(c.ExperienceLevel)
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// Validate checks the enum fields and duration.
func (c InterviewConfig) Validate() error {
	if strings.TrimSpace(c.Topic) == "" {
		return fmt.Errorf("%w: topic required", ErrInvalidArgument)
	}
	switch c.Style {
	case StyleTechnical, StyleHR, StyleBehavioral, StyleSalary, StyleCaseStudy:
	default:
		return fmt.Errorf("%w: unknown interview style %q", ErrInvalidArgument, c.Style)
	}
	switch c.ExperienceLevel {
	case LevelFresher, LevelJunior, LevelMidLevel, LevelSenior, LevelLeadManager:
	default:
		return fmt.Errorf("%w: unknown experience level %q", ErrInvalidArgument, c.ExperienceLevel)
	}
	if c.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidArgument)
	}
	return nil
}

// Complexity enumerates topic complexity levels.
type Complexity string

// Topic complexity levels.
const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// TopicAnalysis is the structured topic breakdown computed once per session.
// Invariant: the list fields are never empty on a successful analysis; the
// fallback generator guarantees non-empty defaults when the LLM call or parse
// fails.
type TopicAnalysis struct {
	MainConcepts       []string   `json:"main_concepts"`
	Skills             []string   `json:"skills"`
	Technologies       []string   `json:"technologies"`
	FocusAreas         []string   `json:"focus_areas"`
	Complexity         Complexity `json:"complexity"`
	QuestionCategories []string   `json:"question_categories"`
	RelevanceKeywords  []string   `json:"relevance_keywords"`
}

// QuestionType enumerates the kinds of questions a plan may call for.
type QuestionType string

// Question types produced by the planning stage.
const (
	QuestionOpening        QuestionType = "opening"
	QuestionTechnical      QuestionType = "technical"
	QuestionBehavioral     QuestionType = "behavioral"
	QuestionFollowUp       QuestionType = "follow-up"
	QuestionClosing        QuestionType = "closing"
	QuestionTheoretical    QuestionType = "theoretical"
	QuestionPractical      QuestionType = "practical"
	QuestionScenario       QuestionType = "scenario"
	QuestionProblemSolving QuestionType = "problem-solving"
)

// QuestionPlan is the ephemeral blueprint for one question, consumed only
// by the generation stage.
type QuestionPlan struct {
	QuestionType QuestionType `json:"question_type"`
	FocusArea    string       `json:"focus_area"`
	Difficulty   string       `json:"difficulty"`
	Concepts     []string     `json:"concepts"`
	Rationale    string       `json:"rationale"`
	AvoidTopics  []string     `json:"avoid_topics,omitempty"`
	// Success is false when the planning stage fell back to a generic plan;
	// generation must still be able to consume such a plan.
	Success bool `json:"success"`
}

// QuestionMetadata describes a generated question.
type QuestionMetadata struct {
	Category      string       `json:"category"`
	Difficulty    string       `json:"difficulty"`
	FocusArea     string       `json:"focus_area"`
	Concepts      []string     `json:"concepts"`
	QuestionType  QuestionType `json:"question_type"`
	EstimatedTime string       `json:"estimated_time,omitempty"`
	Attempts      int          `json:"attempts,omitempty"`
	Approved      bool         `json:"approved"`
	Fallback      bool         `json:"fallback,omitempty"`
}

// SessionMemory holds the per-session state owned by the question orchestrator.
type SessionMemory struct {
	TopicAnalysis        *TopicAnalysis   `json:"topic_analysis,omitempty"`
	LastQuestion         string           `json:"last_question,omitempty"`
	LastQuestionMetadata QuestionMetadata `json:"last_question_metadata,omitempty"`
	QuestionNumber       int              `json:"question_number"`
	// NextQuestion caches a pre-generated question for the next question number.
	NextQuestion         string           `json:"next_question,omitempty"`
	NextQuestionMetadata QuestionMetadata `json:"next_question_metadata,omitempty"`
	NextQuestionNumber   int              `json:"next_question_number,omitempty"`
}

// InterviewResponse is one answered question. Append-only; never mutated after
// creation.
type InterviewResponse struct {
	QuestionID  string `json:"question_id"`
	Question    string `json:"question"`
	Response    string `json:"response"`
	TimestampMs int64  `json:"timestamp_ms"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
}

// ResponseScores are the numeric sub-scores of one analyzed response.
// Invariant: every score is in [0,100]; repair clamps anything else.
type ResponseScores struct {
	Clarity       int `json:"clarity"`
	Structure     int `json:"structure"`
	Technical     int `json:"technical"`
	Communication int `json:"communication"`
	Confidence    int `json:"confidence"`
}

// Mean returns the rounded average of the five sub-scores.
func (s ResponseScores) Mean() int {
	sum := s.Clarity + s.Structure + s.Technical + s.Communication + s.Confidence
	return (sum + 2) / 5
}

// AnalysisResult is the per-response analysis produced by the scoring stage.
type AnalysisResult struct {
	QuestionID   string         `json:"question_id"`
	Question     string         `json:"question"`
	Response     string         `json:"response"`
	Scores       ResponseScores `json:"scores"`
	Strengths    []string       `json:"strengths"`
	Improvements []string       `json:"improvements"`
	Feedback     string         `json:"feedback"`
	Score        int            `json:"score"`
	KeyInsights  []string       `json:"key_insights,omitempty"`
	Fallback     bool           `json:"fallback,omitempty"`
}

// PerformanceLevel enumerates overall performance buckets.
type PerformanceLevel string

// Performance levels derived from the overall score.
const (
	PerfExcellent        PerformanceLevel = "excellent"
	PerfGood             PerformanceLevel = "good"
	PerfFair             PerformanceLevel = "fair"
	PerfNeedsImprovement PerformanceLevel = "needs_improvement"
)

// PerformanceLevelFor maps an overall score to its performance level.
// Thresholds: >=85 excellent, >=70 good, >=60 fair, else needs_improvement.
func PerformanceLevelFor(score int) PerformanceLevel {
	switch {
	case score >= 85:
		return PerfExcellent
	case score >= 70:
		return PerfGood
	case score >= 60:
		return PerfFair
	default:
		return PerfNeedsImprovement
	}
}

// QuestionReview is one entry of the question-by-question breakdown in an
// overall analysis.
type QuestionReview struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Response   string `json:"response"`
	Score      int    `json:"score"`
	Feedback   string `json:"feedback"`
}

// OverallAnalysis is the per-session synthesis of all response analyses.
type OverallAnalysis struct {
	OverallScore     int               `json:"overall_score"`
	PerformanceLevel PerformanceLevel  `json:"performance_level"`
	Strengths        []string          `json:"strengths"`
	Improvements     []string          `json:"improvements"`
	Scores           ResponseScores    `json:"scores"`
	Trends           map[string]string `json:"trends,omitempty"`
	Recommendations  []string          `json:"recommendations"`
	ExecutiveSummary string            `json:"executive_summary"`
	NextSteps        []string          `json:"next_steps"`
	QuestionReviews  []QuestionReview  `json:"question_reviews"`
	Fallback         bool              `json:"fallback,omitempty"`
}

// Message is one chat turn sent to the LLM provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AIClient (port)
// Complete runs one chat completion. Provider selection is invisible to
// callers; any transport or non-2xx failure wraps ErrLLMCall.
type AIClient interface {
	Complete(ctx Context, systemPrompt string, messages []Message) (string, error)
}

// SessionStore (port) holds per-session orchestrator memory. Implementations
// must be safe for concurrent use across different session keys and must own
// an eviction policy (TTL or bounded size).
type SessionStore interface {
	Get(ctx Context, sessionID string) (SessionMemory, bool)
	Put(ctx Context, sessionID string, mem SessionMemory) error
	Delete(ctx Context, sessionID string) error
	Len(ctx Context) int
}

// InterviewEvent is a fire-and-forget notification for downstream consumers.
type InterviewEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Payload   any    `json:"payload,omitempty"`
	AtUnixMs  int64  `json:"at_unix_ms"`
}

// EventPublisher (port). Publish failures are logged by implementations and
// never propagate into the pipeline.
type EventPublisher interface {
	Publish(ctx Context, ev InterviewEvent) error
	Close()
}

// Context is an alias so the domain package does not spell out std context in
// every port signature. Adapters and usecases pass context.Context through.
type Context = context.Context
