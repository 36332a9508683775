package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/maturio/maturio-backend/internal/learning"
	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/services"
	"github.com/maturio/maturio-backend/internal/types"
)

// Grader scores open-ended submissions with OpenAI structured outputs. One
// request per submission; the schema pins the feedback shape so the result
// decodes straight into the service-level feedback types.
type Grader struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client

	maxRetries int
}

var _ services.Grader = (*Grader)(nil)

func NewGrader(log *logger.Logger) (*Grader, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-5.2"
	}

	timeoutSec := 60
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &Grader{
		log:        log.With("service", "OpenAIGrader"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var he *httpError
	if errors.As(err, &he) {
		return isRetryableHTTP(he.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	// +/- 20%
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

func (c *Grader) doOnce(ctx context.Context, path string, body any) ([]byte, *http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, resp, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp, nil
}

func (c *Grader) do(ctx context.Context, path string, body, out any) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		raw, resp, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}
		if !isRetryableErr(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}

type responsesRequest struct {
	Model string `json:"model"`
	Input []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"input"`
	Text struct {
		Format map[string]any `json:"format"`
	} `json:"text"`
	Temperature float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func (c *Grader) generateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	req := responsesRequest{
		Model: c.model,
		Input: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.do(ctx, "/v1/responses", req, &resp); err != nil {
		return nil, err
	}
	if resp.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", resp.Refusal)
	}

	var jsonText string
	for _, item := range resp.Output {
		if item.Type == "message" && item.Role == "assistant" {
			for _, part := range item.Content {
				if part.Type == "output_text" && part.Text != "" {
					jsonText += part.Text
				}
			}
		}
	}
	if jsonText == "" {
		return nil, fmt.Errorf("no output_text found in response")
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonText), &obj); err != nil {
		return nil, fmt.Errorf("failed to parse model JSON: %w; text=%s", err, jsonText)
	}
	return obj, nil
}

func (c *Grader) Grade(ctx context.Context, exercise *types.Exercise, content learning.Content, answer learning.Answer) (*services.GradeResult, error) {
	switch exercise.Type {
	case types.ExerciseShortAnswer, types.ExerciseSynthesisNote:
		return c.gradeShortForm(ctx, exercise, content, answer)
	case types.ExerciseEssay:
		return c.gradeEssay(ctx, exercise, content, answer)
	default:
		return nil, fmt.Errorf("exercise type %s is not graded externally", exercise.Type)
	}
}

func answerText(a learning.Answer) string {
	if len(a.Steps) > 0 {
		return strings.Join(a.Steps, "\n\n")
	}
	return a.Text
}

func (c *Grader) gradeShortForm(ctx context.Context, exercise *types.Exercise, content learning.Content, answer learning.Answer) (*services.GradeResult, error) {
	system := "You grade short written answers for literature exam preparation. " +
		"Score strictly against the stated requirements and return only the requested JSON."
	user := fmt.Sprintf(
		"Exercise type: %s\nCategory: %s\nMaximum score: %d\n\nPrompt:\n%s\n\nRequirements:\n%s\n\nStudent answer:\n%s",
		exercise.Type, exercise.Category, exercise.Points, content.Prompt, content.Requirements, answerText(answer),
	)
	obj, err := c.generateJSON(ctx, system, user, "short_answer_grade", shortFormSchema(exercise.Points))
	if err != nil {
		return nil, err
	}

	score := clampScore(asInt(obj["score"]), exercise.Points)
	fb := services.ShortAnswerFeedback{
		CorrectElements: asStrings(obj["correct_elements"]),
		MissingElements: asStrings(obj["missing_elements"]),
		Suggestions:     asStrings(obj["suggestions"]),
	}
	raw, err := json.Marshal(fb)
	if err != nil {
		return nil, err
	}
	return &services.GradeResult{Score: score, Feedback: raw}, nil
}

// essayAxes are the grading dimensions for long-form answers.
var essayAxes = []string{"thesis", "argumentation", "evidence", "composition", "language"}

func (c *Grader) gradeEssay(ctx context.Context, exercise *types.Exercise, content learning.Content, answer learning.Answer) (*services.GradeResult, error) {
	system := "You grade student essays for literature exam preparation. " +
		"Assess each axis independently, then produce the overall score. Return only the requested JSON."
	user := fmt.Sprintf(
		"Maximum score: %d\nAxes: %s\n\nPrompt:\n%s\n\nRequirements:\n%s\n\nStudent essay:\n%s",
		exercise.Points, strings.Join(essayAxes, ", "), content.Prompt, content.Requirements, answerText(answer),
	)
	obj, err := c.generateJSON(ctx, system, user, "essay_grade", essaySchema(exercise.Points))
	if err != nil {
		return nil, err
	}

	score := clampScore(asInt(obj["score"]), exercise.Points)
	fb := services.EssayFeedback{
		AxisScores: asIntMap(obj["axis_scores"]),
		Strengths:  asStrings(obj["strengths"]),
		Weaknesses: asStrings(obj["weaknesses"]),
	}
	raw, err := json.Marshal(fb)
	if err != nil {
		return nil, err
	}
	return &services.GradeResult{Score: score, Feedback: raw}, nil
}

func (c *Grader) Summarize(ctx context.Context, session *types.Session, completed []types.CompletedExercise) (string, error) {
	system := "You write a short, encouraging end-of-session summary for a literature student. " +
		"Two or three sentences, concrete about what went well and what to practice next."
	var sb strings.Builder
	fmt.Fprintf(&sb, "Exercises completed: %d\nCorrect: %d\nBest streak: %d\nPoints earned: %d\nPer-exercise scores:",
		session.Completed, session.Correct, session.MaxStreak, session.Points)
	for _, e := range completed {
		fmt.Fprintf(&sb, " %d", e.Score)
	}
	obj, err := c.generateJSON(ctx, system, sb.String(), "session_summary", map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"summary"},
		"properties": map[string]any{
			"summary": map[string]any{"type": "string"},
		},
	})
	if err != nil {
		return "", err
	}
	summary, _ := obj["summary"].(string)
	if summary == "" {
		return "", fmt.Errorf("empty summary in response")
	}
	return summary, nil
}

func shortFormSchema(maxScore int) map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"score", "correct_elements", "missing_elements", "suggestions"},
		"properties": map[string]any{
			"score":            map[string]any{"type": "integer", "minimum": 0, "maximum": maxScore},
			"correct_elements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"missing_elements": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"suggestions":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

func essaySchema(maxScore int) map[string]any {
	axisProps := map[string]any{}
	for _, axis := range essayAxes {
		axisProps[axis] = map[string]any{"type": "integer", "minimum": 0, "maximum": maxScore}
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"score", "axis_scores", "strengths", "weaknesses"},
		"properties": map[string]any{
			"score": map[string]any{"type": "integer", "minimum": 0, "maximum": maxScore},
			"axis_scores": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             essayAxes,
				"properties":           axisProps,
			},
			"strengths":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"weaknesses": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
	}
}

// ---- coercion: structured outputs arrive as map[string]any ----

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(n))
		return i
	default:
		return 0
	}
}

func asStrings(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asIntMap(v any) map[string]int {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, val := range m {
		out[k] = asInt(val)
	}
	return out
}

func clampScore(score, max int) int {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}
