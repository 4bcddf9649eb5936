package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/pkg/jsonrepair"
)

// InterviewOptions tunes the question orchestrator. Validation is a
// configuration switch on the one orchestrator, not a separate service.
type InterviewOptions struct {
	ValidationEnabled     bool
	ValidationMaxAttempts int
	ValidationThreshold   int
	PregenEnabled         bool
	// PregenTimeout bounds the background pre-generation call.
	PregenTimeout time.Duration
}

// InterviewService orchestrates the staged question pipeline: topic analysis,
// planning, generation, and optional validation with bounded retry. Its
// GenerateQuestion contract is total: callers always receive a non-empty
// question, degraded to a static fallback in the worst case.
type InterviewService struct {
	ai        domain.AIClient
	sessions  domain.SessionStore
	events    domain.EventPublisher
	fallbacks config.Fallbacks
	opts      InterviewOptions

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewInterviewService constructs the orchestrator. events may be nil when
// event publishing is disabled.
func NewInterviewService(ai domain.AIClient, sessions domain.SessionStore, events domain.EventPublisher, fallbacks config.Fallbacks, opts InterviewOptions) *InterviewService {
	if opts.ValidationMaxAttempts <= 0 {
		opts.ValidationMaxAttempts = 3
	}
	if opts.ValidationThreshold <= 0 {
		opts.ValidationThreshold = 70
	}
	if opts.PregenTimeout <= 0 {
		opts.PregenTimeout = 90 * time.Second
	}
	return &InterviewService{
		ai:        ai,
		sessions:  sessions,
		events:    events,
		fallbacks: fallbacks,
		opts:      opts,
		locks:     make(map[string]*sync.Mutex),
	}
}

// sessionLock returns the mutex serializing all pipeline work for one session,
// so concurrent first calls cannot race the analysis cache.
func (s *InterviewService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// GenerateQuestion produces the next interview question. It never returns an
// error: every failure mode degrades to the static per-style fallback list.
func (s *InterviewService) GenerateQuestion(ctx domain.Context, cfg domain.InterviewConfig, prevQuestions []string, prevResponses []domain.InterviewResponse, questionNumber int) (string, domain.QuestionMetadata) {
	if questionNumber < 1 {
		questionNumber = 1
	}
	sessionID := cfg.SessionID()
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	mem, _ := s.sessions.Get(ctx, sessionID)

	// Serve the pre-generated question when one is waiting for this number.
	if mem.NextQuestion != "" && mem.NextQuestionNumber == questionNumber {
		question, meta := mem.NextQuestion, mem.NextQuestionMetadata
		mem.NextQuestion, mem.NextQuestionMetadata, mem.NextQuestionNumber = "", domain.QuestionMetadata{}, 0
		s.commit(ctx, sessionID, mem, question, meta, questionNumber)
		observability.RecordQuestion(string(cfg.Style), "pregen")
		s.publish(ctx, "question_generated", sessionID, map[string]any{"question_number": questionNumber, "source": "pregen"})
		s.maybePregen(sessionID, cfg, append(append([]string(nil), prevQuestions...), question), prevResponses, questionNumber+1)
		return question, meta
	}

	analysis := s.cachedAnalysis(ctx, &mem, cfg)
	question, meta := s.produce(ctx, analysis, prevQuestions, prevResponses, questionNumber, cfg)
	source := "llm"
	if meta.Fallback {
		source = "fallback"
	}
	observability.RecordQuestion(string(cfg.Style), source)
	s.commit(ctx, sessionID, mem, question, meta, questionNumber)
	s.publish(ctx, "question_generated", sessionID, map[string]any{
		"question_number": questionNumber,
		"approved":        meta.Approved,
		"fallback":        meta.Fallback,
		"attempts":        meta.Attempts,
	})
	if !meta.Fallback {
		s.maybePregen(sessionID, cfg, append(append([]string(nil), prevQuestions...), question), prevResponses, questionNumber+1)
	}
	return question, meta
}

// cachedAnalysis memoizes topic analysis in session memory. The analysis stage
// runs at most once per session id.
func (s *InterviewService) cachedAnalysis(ctx domain.Context, mem *domain.SessionMemory, cfg domain.InterviewConfig) domain.TopicAnalysis {
	if mem.TopicAnalysis != nil {
		return *mem.TopicAnalysis
	}
	analysis := s.analyzeTopic(ctx, cfg)
	mem.TopicAnalysis = &analysis
	return analysis
}

// produce runs plan, generate, and the validation loop for one question.
func (s *InterviewService) produce(ctx domain.Context, analysis domain.TopicAnalysis, prevQuestions []string, prevResponses []domain.InterviewResponse, questionNumber int, cfg domain.InterviewConfig) (string, domain.QuestionMetadata) {
	plan := s.planQuestion(ctx, analysis, prevQuestions, prevResponses, questionNumber, cfg)
	avoid := append([]string(nil), prevQuestions...)

	var question string
	var meta domain.QuestionMetadata
	for attempt := 1; ; attempt++ {
		q, m, err := s.generateCandidate(ctx, plan, analysis, cfg, avoid)
		if err != nil {
			slog.Warn("generation failed, serving static fallback question",
				slog.String("stage", "question_gen"),
				slog.String("session_id", cfg.SessionID()),
				slog.Int("question_number", questionNumber),
				slog.Any("error", err))
			question = s.fallbacks.QuestionFor(string(cfg.Style), cfg.Topic, questionNumber)
			meta = domain.QuestionMetadata{
				Category:     string(cfg.Style),
				Difficulty:   "medium",
				FocusArea:    cfg.Topic,
				Concepts:     []string{},
				QuestionType: defaultQuestionType(cfg.Style),
				Attempts:     attempt,
				Fallback:     true,
			}
			return question, meta
		}
		question, meta = q, m
		if !s.opts.ValidationEnabled {
			meta.Attempts, meta.Approved = attempt, true
			break
		}
		verdict := s.validateQuestion(ctx, q, plan, analysis, cfg)
		if verdict.approved(s.opts.ValidationThreshold) {
			meta.Attempts, meta.Approved = attempt, true
			observability.ValidationAttempts.Observe(float64(attempt))
			break
		}
		if attempt >= s.opts.ValidationMaxAttempts {
			// Retries exhausted: serve the last candidate rather than failing.
			meta.Attempts, meta.Approved = attempt, false
			observability.ValidationAttempts.Observe(float64(attempt))
			slog.Info("validation retries exhausted, accepting last candidate",
				slog.String("session_id", cfg.SessionID()),
				slog.Int("attempts", attempt),
				slog.Int("last_score", verdict.OverallScore))
			break
		}
		plan = refinePlan(plan, verdict)
		avoid = append(avoid, q)
	}
	return question, meta
}

func (s *InterviewService) commit(ctx domain.Context, sessionID string, mem domain.SessionMemory, question string, meta domain.QuestionMetadata, questionNumber int) {
	mem.LastQuestion = question
	mem.LastQuestionMetadata = meta
	mem.QuestionNumber = questionNumber
	if err := s.sessions.Put(ctx, sessionID, mem); err != nil {
		slog.Error("session store put failed", slog.String("session_id", sessionID), slog.Any("error", err))
	}
	observability.ActiveSessions.Set(float64(s.sessions.Len(ctx)))
}

// maybePregen speculatively generates the next question in the background. The
// candidate runs through the full pipeline, validation included, so a cached
// question is indistinguishable from one generated on demand. Failures are
// swallowed; the cache simply stays empty.
func (s *InterviewService) maybePregen(sessionID string, cfg domain.InterviewConfig, prevQuestions []string, prevResponses []domain.InterviewResponse, nextNumber int) {
	if !s.opts.PregenEnabled {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("pre-generation panic", slog.String("session_id", sessionID), slog.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.PregenTimeout)
		defer cancel()

		lock := s.sessionLock(sessionID)
		lock.Lock()
		defer lock.Unlock()

		mem, ok := s.sessions.Get(ctx, sessionID)
		if !ok || mem.NextQuestion != "" {
			return
		}
		analysis := s.cachedAnalysis(ctx, &mem, cfg)
		question, meta := s.produce(ctx, analysis, prevQuestions, prevResponses, nextNumber, cfg)
		if meta.Fallback {
			// A static fallback is cheap to produce on demand; caching it
			// would pin a degraded question on a provider blip.
			slog.Debug("pre-generation degraded to fallback, not caching", slog.String("session_id", sessionID))
			return
		}
		mem.NextQuestion = question
		mem.NextQuestionMetadata = meta
		mem.NextQuestionNumber = nextNumber
		if err := s.sessions.Put(ctx, sessionID, mem); err != nil {
			slog.Error("session store put failed", slog.String("session_id", sessionID), slog.Any("error", err))
		}
	}()
}

// GenerateFollowUp asks one short follow-up digging into the candidate's last
// answer. Any failure returns the static follow-up fallback.
func (s *InterviewService) GenerateFollowUp(ctx domain.Context, cfg domain.InterviewConfig, original, response string) string {
	raw, err := s.ai.Complete(ctx, followUpSystemPrompt(cfg), []domain.Message{
		{Role: "user", Content: followUpUserPrompt(original, response)},
	})
	if err != nil {
		slog.Warn("follow-up llm call failed, using fallback",
			slog.String("stage", "follow_up"),
			slog.Any("error", err))
		observability.RecordStage("follow_up", true)
		return s.fallbacks.FollowupFallback
	}
	obj, err := jsonrepair.Extract(raw)
	if err != nil {
		logParseFailure("follow_up", err)
		observability.RecordStage("follow_up", true)
		return s.fallbacks.FollowupFallback
	}
	q := strings.TrimSpace(pickString(obj, "", "question"))
	if q == "" {
		observability.RecordStage("follow_up", true)
		return s.fallbacks.FollowupFallback
	}
	observability.RecordStage("follow_up", false)
	return q
}

// ClearSession removes one session's memory and its serialization lock.
func (s *InterviewService) ClearSession(ctx domain.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()
	observability.ActiveSessions.Set(float64(s.sessions.Len(ctx)))
	s.publish(ctx, "session_cleared", sessionID, nil)
	return nil
}

// InterviewStats is the orchestrator's operational snapshot served by the
// system info endpoint.
type InterviewStats struct {
	ActiveSessions        int  `json:"active_sessions"`
	ValidationEnabled     bool `json:"validation_enabled"`
	ValidationMaxAttempts int  `json:"validation_max_attempts"`
	PregenEnabled         bool `json:"pregen_enabled"`
}

// Stats reports the orchestrator's current state.
func (s *InterviewService) Stats(ctx domain.Context) InterviewStats {
	return InterviewStats{
		ActiveSessions:        s.sessions.Len(ctx),
		ValidationEnabled:     s.opts.ValidationEnabled,
		ValidationMaxAttempts: s.opts.ValidationMaxAttempts,
		PregenEnabled:         s.opts.PregenEnabled,
	}
}

func (s *InterviewService) publish(ctx domain.Context, typ, sessionID string, payload any) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, domain.InterviewEvent{
		Type:      typ,
		SessionID: sessionID,
		Payload:   payload,
		AtUnixMs:  time.Now().UnixMilli(),
	})
}
