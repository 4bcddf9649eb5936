package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-interview-coach/internal/config"
	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
	"github.com/fairyhunter13/ai-interview-coach/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg       config.Config
	Interview *usecase.InterviewService
	Analysis  *usecase.AnalysisService
	// ReadyCheck probes external dependencies for the readiness endpoint.
	ReadyCheck func(ctx domain.Context) error
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func validate() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type configDTO struct {
	Topic           string `json:"topic" validate:"required"`
	Style           string `json:"style" validate:"required"`
	ExperienceLevel string `json:"experience_level" validate:"required"`
	CompanyName     string `json:"company_name"`
	DurationMinutes int    `json:"duration_minutes" validate:"required,min=1,max=480"`
}

func (d configDTO) toDomain() (domain.InterviewConfig, error) {
	cfg := domain.InterviewConfig{
		Topic:           d.Topic,
		Style:           domain.InterviewStyle(d.Style),
		ExperienceLevel: domain.ExperienceLevel(d.ExperienceLevel),
		CompanyName:     d.CompanyName,
		DurationMinutes: d.DurationMinutes,
	}
	return cfg, cfg.Validate()
}

type responseDTO struct {
	QuestionID  string `json:"question_id"`
	Question    string `json:"question" validate:"required"`
	Response    string `json:"response" validate:"required"`
	TimestampMs int64  `json:"timestamp_ms"`
	DurationMs  int64  `json:"duration_ms"`
}

func (d responseDTO) toDomain() domain.InterviewResponse {
	return domain.InterviewResponse{
		QuestionID:  d.QuestionID,
		Question:    d.Question,
		Response:    d.Response,
		TimestampMs: d.TimestampMs,
		DurationMs:  d.DurationMs,
	}
}

func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json body: %v", domain.ErrInvalidArgument, err)
	}
	if err := validate().Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// QuestionHandler serves POST /v1/interview/question.
func (s *Server) QuestionHandler() http.HandlerFunc {
	type request struct {
		Config            configDTO     `json:"config" validate:"required"`
		PreviousQuestions []string      `json:"previous_questions"`
		PreviousResponses []responseDTO `json:"previous_responses" validate:"dive"`
		QuestionNumber    int           `json:"question_number" validate:"min=0"`
	}
	type response struct {
		SessionID string                  `json:"session_id"`
		Question  string                  `json:"question"`
		Metadata  domain.QuestionMetadata `json:"metadata"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		cfg, err := req.Config.toDomain()
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if req.QuestionNumber < 1 {
			req.QuestionNumber = 1
		}
		prev := make([]domain.InterviewResponse, 0, len(req.PreviousResponses))
		for _, d := range req.PreviousResponses {
			prev = append(prev, d.toDomain())
		}
		question, meta := s.Interview.GenerateQuestion(r.Context(), cfg, req.PreviousQuestions, prev, req.QuestionNumber)
		writeJSON(w, http.StatusOK, response{SessionID: cfg.SessionID(), Question: question, Metadata: meta})
	}
}

// FollowUpHandler serves POST /v1/interview/followup.
func (s *Server) FollowUpHandler() http.HandlerFunc {
	type request struct {
		Config   configDTO `json:"config" validate:"required"`
		Question string    `json:"question" validate:"required"`
		Response string    `json:"response" validate:"required"`
	}
	type response struct {
		Question string `json:"question"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		cfg, err := req.Config.toDomain()
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		q := s.Interview.GenerateFollowUp(r.Context(), cfg, req.Question, req.Response)
		writeJSON(w, http.StatusOK, response{Question: q})
	}
}

// AnalyzeResponseHandler serves POST /v1/interview/response/analyze.
func (s *Server) AnalyzeResponseHandler() http.HandlerFunc {
	type request struct {
		Config   configDTO   `json:"config" validate:"required"`
		Response responseDTO `json:"response" validate:"required"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		cfg, err := req.Config.toDomain()
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		result := s.Analysis.AnalyzeResponse(r.Context(), cfg, req.Response.toDomain())
		writeJSON(w, http.StatusOK, result)
	}
}

// AnalyticsHandler serves POST /v1/interview/analytics.
func (s *Server) AnalyticsHandler() http.HandlerFunc {
	type request struct {
		Config    configDTO     `json:"config" validate:"required"`
		Responses []responseDTO `json:"responses" validate:"dive"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		cfg, err := req.Config.toDomain()
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		responses := make([]domain.InterviewResponse, 0, len(req.Responses))
		for _, d := range req.Responses {
			responses = append(responses, d.toDomain())
		}
		analysis := s.Analysis.AnalyzeSession(r.Context(), cfg, responses)
		writeJSON(w, http.StatusOK, analysis)
	}
}

// ClearSessionHandler serves DELETE /v1/interview/session/{id}.
func (s *Server) ClearSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "id")
		if sessionID == "" {
			writeError(w, r, fmt.Errorf("%w: session id required", domain.ErrInvalidArgument), nil)
			return
		}
		if err := s.Interview.ClearSession(r.Context(), sessionID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SystemInfoHandler serves GET /v1/system/info.
func (s *Server) SystemInfoHandler() http.HandlerFunc {
	type response struct {
		Service   string                 `json:"service"`
		Env       string                 `json:"env"`
		LLMModel  string                 `json:"llm_model"`
		Interview usecase.InterviewStats `json:"interview"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Service:   s.Cfg.OTELServiceName,
			Env:       s.Cfg.AppEnv,
			LLMModel:  s.Cfg.LLMModel,
			Interview: s.Interview.Stats(r.Context()),
		})
	}
}

// HealthHandler serves GET /healthz.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyHandler serves GET /readyz, probing external dependencies when a check
// is wired.
func (s *Server) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ReadyCheck != nil {
			if err := s.ReadyCheck(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
