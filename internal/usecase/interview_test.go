package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-coach/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// stubAI routes completions by stage, classified from the system prompt, and
// counts calls per stage.
type stubAI struct {
	mu       sync.Mutex
	calls    map[string]int
	handlers map[string]func(n int) (string, error)
}

func newStubAI() *stubAI {
	return &stubAI{calls: map[string]int{}, handlers: map[string]func(int) (string, error){}}
}

func (s *stubAI) on(stage string, h func(n int) (string, error)) *stubAI {
	s.handlers[stage] = h
	return s
}

func (s *stubAI) reply(stage, out string) *stubAI {
	return s.on(stage, func(int) (string, error) { return out, nil })
}

func (s *stubAI) count(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[stage]
}

func (s *stubAI) Complete(_ domain.Context, systemPrompt string, _ []domain.Message) (string, error) {
	stage := classifyStage(systemPrompt)
	s.mu.Lock()
	s.calls[stage]++
	n := s.calls[stage]
	h := s.handlers[stage]
	s.mu.Unlock()
	if h == nil {
		return "", fmt.Errorf("%w: no stub for stage %s", domain.ErrLLMCall, stage)
	}
	return h(n)
}

func classifyStage(systemPrompt string) string {
	switch {
	case strings.Contains(systemPrompt, "interview designer"):
		return "topic"
	case strings.Contains(systemPrompt, "strategist"):
		return "plan"
	case strings.Contains(systemPrompt, "reviewer"):
		return "validate"
	case strings.Contains(systemPrompt, "follow-up"):
		return "followup"
	case strings.Contains(systemPrompt, "coach evaluating"):
		return "response"
	case strings.Contains(systemPrompt, "senior interview coach"):
		return "overall"
	default:
		return "gen"
	}
}

// deadAI fails every call, simulating an unreachable provider.
type deadAI struct{}

func (deadAI) Complete(domain.Context, string, []domain.Message) (string, error) {
	return "", fmt.Errorf("%w: connection refused", domain.ErrLLMCall)
}

// mapStore is an unbounded in-memory session store for tests.
type mapStore struct {
	mu sync.Mutex
	m  map[string]domain.SessionMemory
}

func newMapStore() *mapStore { return &mapStore{m: map[string]domain.SessionMemory{}} }

func (s *mapStore) Get(_ domain.Context, id string) (domain.SessionMemory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, ok := s.m[id]
	return mem, ok
}

func (s *mapStore) Put(_ domain.Context, id string, mem domain.SessionMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = mem
	return nil
}

func (s *mapStore) Delete(_ domain.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, id)
	return nil
}

func (s *mapStore) Len(_ domain.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

const (
	topicJSON = `{"main_concepts":["Components"],"skills":["React"],"technologies":["React"],"focus_areas":["State Management"],"complexity":"medium","question_categories":["technical"],"relevance_keywords":["hooks"]}`
	planJSON  = `{"question_type":"technical","focus_area":"State Management","difficulty":"medium","concepts":["hooks"],"rationale":"probe state handling","avoid_topics":[]}`
)

func genJSON(n int) string {
	return fmt.Sprintf(`{"question":"Candidate question %d","category":"technical","difficulty":"medium","estimated_time":"3-5 minutes"}`, n)
}

func reactConfig() domain.InterviewConfig {
	return domain.InterviewConfig{
		Topic:           "React",
		Style:           domain.StyleTechnical,
		ExperienceLevel: domain.LevelJunior,
		DurationMinutes: 30,
	}
}

func newService(t *testing.T, ai domain.AIClient, opts InterviewOptions) *InterviewService {
	t.Helper()
	fb, err := config.LoadFallbacks()
	require.NoError(t, err)
	return NewInterviewService(ai, newMapStore(), nil, fb, opts)
}

func TestGenerateQuestionUsesFallbackListWhenProviderDead(t *testing.T) {
	t.Parallel()
	svc := newService(t, deadAI{}, InterviewOptions{})
	cfg := reactConfig()

	fb := config.MustFallbacks()
	var prev []string
	for i := 1; i <= 4; i++ {
		q, meta := svc.GenerateQuestion(context.Background(), cfg, prev, nil, i)
		want := strings.ReplaceAll(fb.FallbackQuestions["technical"][i-1], "{topic}", "React")
		assert.Equal(t, want, q, "question %d", i)
		assert.True(t, meta.Fallback)
		assert.NotContains(t, prev, q, "fallback questions must be distinct in order")
		prev = append(prev, q)
	}

	// Past the end of the list the last entry is served.
	q, _ := svc.GenerateQuestion(context.Background(), cfg, prev, nil, 40)
	last := fb.FallbackQuestions["technical"][len(fb.FallbackQuestions["technical"])-1]
	assert.Equal(t, strings.ReplaceAll(last, "{topic}", "React"), q)
}

func TestTopicAnalysisComputedOncePerSession(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil })
	svc := newService(t, ai, InterviewOptions{})
	cfg := reactConfig()

	var prev []string
	for i := 1; i <= 3; i++ {
		q, _ := svc.GenerateQuestion(context.Background(), cfg, prev, nil, i)
		prev = append(prev, q)
	}
	assert.Equal(t, 1, ai.count("topic"), "topic analysis must run at most once per session")
	assert.Equal(t, 3, ai.count("gen"))
}

func TestGenerateQuestionNeverErrorsToCaller(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		ai   domain.AIClient
	}{
		{"network error", deadAI{}},
		{"malformed json", newStubAI().
			reply("topic", topicJSON).
			reply("plan", planJSON).
			reply("gen", "sorry, I cannot produce JSON today")},
		{"empty output", newStubAI().
			reply("topic", topicJSON).
			reply("plan", planJSON).
			reply("gen", "")},
		{"missing question field", newStubAI().
			reply("topic", topicJSON).
			reply("plan", planJSON).
			reply("gen", `{"category":"technical"}`)},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			svc := newService(t, tc.ai, InterviewOptions{})
			q, _ := svc.GenerateQuestion(context.Background(), reactConfig(), nil, nil, 1)
			assert.NotEmpty(t, q)
		})
	}
}

func TestValidationRejectTwiceThenApprove(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil }).
		on("validate", func(n int) (string, error) {
			if n < 3 {
				return `{"decision":"reject","overall_score":40,"issues":["too vague"],"suggestions":["ask about a concrete component"]}`, nil
			}
			return `{"decision":"approve","overall_score":82,"issues":[],"suggestions":[]}`, nil
		})
	svc := newService(t, ai, InterviewOptions{ValidationEnabled: true})

	q, meta := svc.GenerateQuestion(context.Background(), reactConfig(), nil, nil, 1)
	assert.Equal(t, "Candidate question 3", q)
	assert.Equal(t, 3, meta.Attempts)
	assert.True(t, meta.Approved)
}

func TestValidationExhaustionServesLastCandidate(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil }).
		reply("validate", `{"decision":"reject","overall_score":10,"issues":["off topic"],"suggestions":[]}`)
	svc := newService(t, ai, InterviewOptions{ValidationEnabled: true})

	q, meta := svc.GenerateQuestion(context.Background(), reactConfig(), nil, nil, 1)
	assert.Equal(t, "Candidate question 3", q)
	assert.Equal(t, 3, meta.Attempts)
	assert.False(t, meta.Approved)
}

func TestValidationAcceptsOnScoreAboveThreshold(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil }).
		reply("validate", `{"decision":"reject","overall_score":75,"issues":[],"suggestions":[]}`)
	svc := newService(t, ai, InterviewOptions{ValidationEnabled: true})

	_, meta := svc.GenerateQuestion(context.Background(), reactConfig(), nil, nil, 1)
	assert.Equal(t, 1, meta.Attempts)
	assert.True(t, meta.Approved, "score at or above threshold accepts even on a reject decision")
}

func TestBrokenValidatorDoesNotBlockPipeline(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil }).
		on("validate", func(int) (string, error) { return "", errors.New("boom") })
	svc := newService(t, ai, InterviewOptions{ValidationEnabled: true})

	q, meta := svc.GenerateQuestion(context.Background(), reactConfig(), nil, nil, 1)
	assert.Equal(t, "Candidate question 1", q)
	assert.True(t, meta.Approved)
}

func TestGenerateFollowUp(t *testing.T) {
	t.Parallel()
	t.Run("happy path", func(t *testing.T) {
		t.Parallel()
		ai := newStubAI().reply("followup", `{"question":"What tradeoffs did that force?"}`)
		svc := newService(t, ai, InterviewOptions{})
		q := svc.GenerateFollowUp(context.Background(), reactConfig(), "Describe your last project.", "I built a dashboard.")
		assert.Equal(t, "What tradeoffs did that force?", q)
	})
	t.Run("provider dead", func(t *testing.T) {
		t.Parallel()
		svc := newService(t, deadAI{}, InterviewOptions{})
		q := svc.GenerateFollowUp(context.Background(), reactConfig(), "Describe your last project.", "I built a dashboard.")
		assert.Equal(t, config.MustFallbacks().FollowupFallback, q)
	})
}

func TestClearSession(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil })
	svc := newService(t, ai, InterviewOptions{})
	cfg := reactConfig()

	svc.GenerateQuestion(context.Background(), cfg, nil, nil, 1)
	assert.Equal(t, 1, svc.Stats(context.Background()).ActiveSessions)

	require.NoError(t, svc.ClearSession(context.Background(), cfg.SessionID()))
	assert.Equal(t, 0, svc.Stats(context.Background()).ActiveSessions)

	// A fresh session recomputes the analysis.
	svc.GenerateQuestion(context.Background(), cfg, nil, nil, 1)
	assert.Equal(t, 2, ai.count("topic"))
}

func TestConcurrentFirstCallsAnalyzeOnce(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil })
	svc := newService(t, ai, InterviewOptions{})
	cfg := reactConfig()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, _ := svc.GenerateQuestion(context.Background(), cfg, nil, nil, 1)
			assert.NotEmpty(t, q)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ai.count("topic"))
}

func TestTopicAnalysisFallsBackOnUnparseableOutput(t *testing.T) {
	t.Parallel()
	ai := newStubAI().reply("topic", "```json\nnot an object at all\n```")
	svc := newService(t, ai, InterviewOptions{})
	cfg := reactConfig()

	got := svc.analyzeTopic(context.Background(), cfg)

	entry := config.MustFallbacks().TopicFallbackFor(cfg.Topic)
	assert.Equal(t, entry.MainConcepts, got.MainConcepts)
	assert.Equal(t, entry.Skills, got.Skills)
	assert.Equal(t, domain.ComplexityMedium, got.Complexity)
	assert.Equal(t, []string{"technical"}, got.QuestionCategories)
}

func validationAttemptSamples(t *testing.T) (uint64, float64) {
	t.Helper()
	var m dto.Metric
	require.NoError(t, observability.ValidationAttempts.Write(&m))
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}

// No t.Parallel: this test reads a process-global histogram, so it must not
// overlap other validation tests.
func TestValidationAttemptsObservedOncePerAcceptedQuestion(t *testing.T) {
	beforeCount, beforeSum := validationAttemptSamples(t)

	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil }).
		on("validate", func(n int) (string, error) {
			if n < 3 {
				return `{"decision":"reject","overall_score":40,"issues":[],"suggestions":[]}`, nil
			}
			return `{"decision":"approve","overall_score":82,"issues":[],"suggestions":[]}`, nil
		})
	svc := newService(t, ai, InterviewOptions{ValidationEnabled: true})

	_, meta := svc.GenerateQuestion(context.Background(), reactConfig(), nil, nil, 1)
	require.Equal(t, 3, meta.Attempts)

	afterCount, afterSum := validationAttemptSamples(t)
	assert.Equal(t, beforeCount+1, afterCount, "one observation per accepted question")
	assert.InDelta(t, 3, afterSum-beforeSum, 0.001, "the observation carries the final attempt count")
}

func TestPregenRunsValidationWhenEnabled(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) { return genJSON(n), nil }).
		reply("validate", `{"decision":"approve","overall_score":90,"issues":[],"suggestions":[]}`)
	store := newMapStore()
	fb, err := config.LoadFallbacks()
	require.NoError(t, err)
	svc := NewInterviewService(ai, store, nil, fb, InterviewOptions{ValidationEnabled: true, PregenEnabled: true})
	cfg := reactConfig()

	_, meta := svc.GenerateQuestion(context.Background(), cfg, nil, nil, 1)
	require.True(t, meta.Approved)

	require.Eventually(t, func() bool {
		mem, ok := store.Get(context.Background(), cfg.SessionID())
		return ok && mem.NextQuestionNumber == 2
	}, 2*time.Second, 10*time.Millisecond)

	mem, ok := store.Get(context.Background(), cfg.SessionID())
	require.True(t, ok)
	assert.True(t, mem.NextQuestionMetadata.Approved)
	assert.Equal(t, 1, mem.NextQuestionMetadata.Attempts)
	assert.Equal(t, 2, ai.count("validate"), "the cached question must pass the validation stage too")
}

func TestPregenDoesNotCacheFallbackQuestions(t *testing.T) {
	t.Parallel()
	ai := newStubAI().
		reply("topic", topicJSON).
		reply("plan", planJSON).
		on("gen", func(n int) (string, error) {
			if n == 1 {
				return genJSON(1), nil
			}
			return "", fmt.Errorf("%w: provider blip", domain.ErrLLMCall)
		})
	store := newMapStore()
	fb, err := config.LoadFallbacks()
	require.NoError(t, err)
	svc := NewInterviewService(ai, store, nil, fb, InterviewOptions{PregenEnabled: true})
	cfg := reactConfig()

	_, meta := svc.GenerateQuestion(context.Background(), cfg, nil, nil, 1)
	require.False(t, meta.Fallback)

	require.Eventually(t, func() bool { return ai.count("gen") == 2 }, 2*time.Second, 10*time.Millisecond)

	// The pre-generation attempt degraded to a static fallback; serving it
	// later would pin a degraded question, so nothing is cached.
	mem, ok := store.Get(context.Background(), cfg.SessionID())
	require.True(t, ok)
	assert.Empty(t, mem.NextQuestion)
}

func TestSessionIDNormalization(t *testing.T) {
	t.Parallel()
	cfg := domain.InterviewConfig{
		Topic:           "Machine Learning",
		Style:           domain.StyleTechnical,
		ExperienceLevel: domain.LevelMidLevel,
		DurationMinutes: 45,
	}
	assert.Equal(t, "machine_learning_technical_mid-level", cfg.SessionID())
}
