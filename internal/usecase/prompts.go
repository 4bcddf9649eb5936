package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-interview-coach/internal/domain"
)

// Prompt builders. Every stage prompt pins the output to a bare JSON object so
// the repair chain has a fighting chance even when the model wraps it in prose
// or fences.

const jsonOnlyRule = "Respond with a single JSON object and nothing else. No markdown fences, no commentary."

func topicAnalysisSystemPrompt() string {
	return "You are an expert interview designer. You break an interview topic down into the concepts, skills, and focus areas an interviewer should probe. " + jsonOnlyRule
}

func topicAnalysisUserPrompt(cfg domain.InterviewConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the interview topic %q for a %s %s interview lasting %d minutes.\n",
		cfg.Topic, cfg.ExperienceLevel, cfg.Style, cfg.DurationMinutes)
	if cfg.CompanyName != "" {
		fmt.Fprintf(&b, "The interview is for a role at %s.\n", cfg.CompanyName)
	}
	b.WriteString(`Return JSON with exactly these keys:
{
  "main_concepts": ["..."],
  "skills": ["..."],
  "technologies": ["..."],
  "focus_areas": ["..."],
  "complexity": "low|medium|high",
  "question_categories": ["..."],
  "relevance_keywords": ["..."]
}`)
	return b.String()
}

func questionPlanSystemPrompt() string {
	return "You are an interview strategist. You decide what the next question should cover given the interview so far. " + jsonOnlyRule
}

func questionPlanUserPrompt(analysis domain.TopicAnalysis, prevQuestions []string, prevResponses []domain.InterviewResponse, questionNumber int, cfg domain.InterviewConfig) string {
	var b strings.Builder
	aj, _ := json.Marshal(analysis)
	fmt.Fprintf(&b, "Topic analysis: %s\n", aj)
	fmt.Fprintf(&b, "Interview: %s style, %s candidate, topic %q, question number %d.\n",
		cfg.Style, cfg.ExperienceLevel, cfg.Topic, questionNumber)
	if len(prevQuestions) > 0 {
		b.WriteString("Questions already asked:\n")
		for i, q := range prevQuestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}
	if len(prevResponses) > 0 {
		last := prevResponses[len(prevResponses)-1]
		fmt.Fprintf(&b, "Most recent answer (for context): %s\n", truncate(last.Response, 600))
	}
	b.WriteString("Early questions should open the conversation, middle questions should go deep, late questions should close out.\n")
	b.WriteString(`Return JSON with exactly these keys:
{
  "question_type": "opening|technical|behavioral|theoretical|practical|scenario|problem-solving|closing",
  "focus_area": "...",
  "difficulty": "easy|medium|hard",
  "concepts": ["..."],
  "rationale": "...",
  "avoid_topics": ["..."]
}`)
	return b.String()
}

func questionGenSystemPrompt(cfg domain.InterviewConfig) string {
	return fmt.Sprintf("You are a seasoned %s interviewer. You ask one sharp, answerable question at a time, pitched at a %s candidate. %s",
		cfg.Style, cfg.ExperienceLevel, jsonOnlyRule)
}

func questionGenUserPrompt(plan domain.QuestionPlan, analysis domain.TopicAnalysis, cfg domain.InterviewConfig, avoid []string) string {
	var b strings.Builder
	pj, _ := json.Marshal(plan)
	fmt.Fprintf(&b, "Question plan: %s\n", pj)
	fmt.Fprintf(&b, "Topic: %s. Key concepts: %s.\n", cfg.Topic, strings.Join(analysis.MainConcepts, ", "))
	if len(avoid) > 0 {
		b.WriteString("Do NOT repeat or rephrase any of these questions:\n")
		for _, q := range avoid {
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	b.WriteString(`Return JSON with exactly these keys:
{
  "question": "the question text",
  "category": "...",
  "difficulty": "...",
  "estimated_time": "e.g. 3-5 minutes"
}`)
	return b.String()
}

func questionValidateSystemPrompt() string {
	return "You are a strict interview question reviewer. You judge whether a question is clear, answerable, on-topic, and pitched at the right level. " + jsonOnlyRule
}

func questionValidateUserPrompt(question string, plan domain.QuestionPlan, analysis domain.TopicAnalysis, cfg domain.InterviewConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Candidate question: %q\n", question)
	fmt.Fprintf(&b, "Intended focus: %s (%s, difficulty %s). Interview topic: %s for a %s candidate.\n",
		plan.FocusArea, plan.QuestionType, plan.Difficulty, cfg.Topic, cfg.ExperienceLevel)
	fmt.Fprintf(&b, "Relevant concepts: %s.\n", strings.Join(analysis.MainConcepts, ", "))
	b.WriteString(`Score the question 0-100 and return JSON with exactly these keys:
{
  "decision": "approve|reject",
  "overall_score": 0,
  "issues": ["..."],
  "suggestions": ["..."]
}`)
	return b.String()
}

func followUpSystemPrompt(cfg domain.InterviewConfig) string {
	return fmt.Sprintf("You are a %s interviewer in the middle of a conversation. You ask one short follow-up that digs into the candidate's last answer. %s",
		cfg.Style, jsonOnlyRule)
}

func followUpUserPrompt(original, response string) string {
	return fmt.Sprintf("Original question: %q\nCandidate's answer: %q\nReturn JSON: {\"question\": \"the follow-up question\"}",
		original, truncate(response, 1200))
}

func responseAnalysisSystemPrompt(cfg domain.InterviewConfig) string {
	return fmt.Sprintf("You are an interview coach evaluating a candidate's answer in a %s interview about %s. Score each dimension 0-100. %s",
		cfg.Style, cfg.Topic, jsonOnlyRule)
}

func responseAnalysisUserPrompt(question, response string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %q\nAnswer: %q\n", question, truncate(response, 2000))
	b.WriteString(`Return JSON with exactly these keys:
{
  "clarity": 0,
  "structure": 0,
  "technical": 0,
  "communication": 0,
  "confidence": 0,
  "score": 0,
  "strengths": ["..."],
  "improvements": ["..."],
  "feedback": "1-2 sentences",
  "key_insights": ["..."]
}`)
	return b.String()
}

func overallAnalysisSystemPrompt(cfg domain.InterviewConfig) string {
	return fmt.Sprintf("You are a senior interview coach writing a performance report for a %s candidate after a %s interview about %s. %s",
		cfg.ExperienceLevel, cfg.Style, cfg.Topic, jsonOnlyRule)
}

func overallAnalysisUserPrompt(results []domain.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("Per-question analyses:\n")
	for i, r := range results {
		rj, _ := json.Marshal(struct {
			Question     string                `json:"question"`
			Scores       domain.ResponseScores `json:"scores"`
			Score        int                   `json:"score"`
			Strengths    []string              `json:"strengths"`
			Improvements []string              `json:"improvements"`
		}{r.Question, r.Scores, r.Score, r.Strengths, r.Improvements})
		fmt.Fprintf(&b, "%d. %s\n", i+1, rj)
	}
	b.WriteString(`Synthesize the whole session. Return JSON with exactly these keys:
{
  "overall_score": 0,
  "response_analysis": {"clarity": 0, "structure": 0, "technical": 0, "communication": 0, "confidence": 0},
  "strengths": ["..."],
  "improvements": ["..."],
  "recommendations": ["..."],
  "executive_summary": "2-3 sentences",
  "next_steps": ["..."],
  "trends": {"dimension": "improving|steady|declining"}
}`)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
