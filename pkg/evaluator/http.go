package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/resilience"
)

// HTTPClient talks to the evaluator service over plain HTTP.
// Question generation retries transient failures; answer analysis does not,
// a 429 there has to reach the scoring pipeline untouched.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
	Retry   resilience.RetryPolicy
	Breaker *resilience.CircuitBreaker
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
		Retry:   resilience.NewRetryPolicy(2, 500*time.Millisecond),
		Breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
	}
}

func (c *HTTPClient) Name() string { return "evaluator" }

func (c *HTTPClient) GenerateQuestions(ctx context.Context, resume io.Reader, filename, jobDescription string) ([]string, error) {
	// Buffer the upload once so retried attempts resend the same bytes.
	raw, err := io.ReadAll(resume)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonQuestionGen)
	}

	var questions []string
	err = c.Retry.Do(ctx, func() error {
		qs, err := c.uploadResume(ctx, raw, filename, jobDescription)
		if err != nil {
			return err
		}
		questions = qs
		return nil
	})
	if err != nil {
		if resilience.IsRateLimit(err) {
			return nil, errorsx.Wrap(err, errorsx.ReasonRateLimited)
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonQuestionGen)
	}
	if len(questions) == 0 {
		return nil, errorsx.New(errorsx.ReasonEmptyQuestionSet, "evaluator returned no questions")
	}
	return questions, nil
}

func (c *HTTPClient) uploadResume(ctx context.Context, resume []byte, filename, jobDescription string) ([]string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(resume); err != nil {
		return nil, err
	}
	if err := w.WriteField("job_description", jobDescription); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload-resume", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, c.Name()); err != nil {
		return nil, err
	}
	var payload struct {
		Questions []string `json:"questions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.Questions, nil
}

func (c *HTTPClient) AnalyzeAnswer(ctx context.Context, question, answer string) (map[string]any, error) {
	// A locally open breaker is surfaced as a rate limit on purpose: both
	// mean "back off and retry later". The message names the breaker so logs
	// can tell it apart from a genuine 429 off the wire.
	if c.Breaker != nil && !c.Breaker.Allow() {
		return nil, resilience.RateLimitError{
			Provider: c.Name(),
			Message:  "circuit breaker open, call suppressed locally",
		}
	}
	body, err := json.Marshal(map[string]string{
		"question":    question,
		"user_answer": answer,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/analyze-answer", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp, c.Name()); err != nil {
		if c.Breaker != nil {
			c.Breaker.OnError(err)
		}
		return nil, err
	}
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if c.Breaker != nil {
		c.Breaker.OnSuccess()
	}
	return payload, nil
}

func checkStatus(resp *http.Response, provider string) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return resilience.RateLimitError{Provider: provider, Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return errors.New(string(body))
	}
	return nil
}

func (c *HTTPClient) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
