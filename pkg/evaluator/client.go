package evaluator

import (
	"context"
	"io"
)

// Client is the contract for the external evaluator / question-generator
// service. Question text and answer analysis are opaque to the core; the
// analyze response is handed over as the decoded JSON object so the scoring
// pipeline can dig the score out of whichever field shape the service used.
type Client interface {
	// GenerateQuestions uploads the resume and job description and returns
	// the interview question list. An empty list is a setup error.
	GenerateQuestions(ctx context.Context, resume io.Reader, filename, jobDescription string) ([]string, error)
	// AnalyzeAnswer submits one question/answer pair for evaluation.
	// A "too many requests" signal surfaces as resilience.RateLimitError.
	AnalyzeAnswer(ctx context.Context, question, answer string) (map[string]any, error)
}
