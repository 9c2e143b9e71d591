package mock

import (
	"context"
	"io"
	"sync"

	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/evaluator"
)

type EvaluatorConfig struct {
	// Questions is the scripted output of question generation.
	Questions []string
	// QuestionsErr short-circuits question generation.
	QuestionsErr error
	// Analyses are scripted analyze responses, consumed per call. The last
	// one repeats once the script runs out.
	Analyses []map[string]any
	// Errs are per-call analyze errors aligned with Analyses by index.
	Errs []error
}

// Evaluator is a scripted stand-in for the evaluation service.
type Evaluator struct {
	cfg   EvaluatorConfig
	mu    sync.Mutex
	calls int
}

func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Name() string { return "mock_evaluator" }

func (e *Evaluator) GenerateQuestions(ctx context.Context, resume io.Reader, filename, jobDescription string) ([]string, error) {
	if resume != nil {
		_, _ = io.Copy(io.Discard, resume)
	}
	if e.cfg.QuestionsErr != nil {
		return nil, e.cfg.QuestionsErr
	}
	if len(e.cfg.Questions) == 0 {
		return nil, errorsx.New(errorsx.ReasonEmptyQuestionSet, "no scripted questions")
	}
	out := make([]string, len(e.cfg.Questions))
	copy(out, e.cfg.Questions)
	return out, nil
}

func (e *Evaluator) AnalyzeAnswer(ctx context.Context, question, answer string) (map[string]any, error) {
	e.mu.Lock()
	i := e.calls
	e.calls++
	e.mu.Unlock()

	if i < len(e.cfg.Errs) && e.cfg.Errs[i] != nil {
		return nil, e.cfg.Errs[i]
	}
	if len(e.cfg.Analyses) == 0 {
		return map[string]any{"score": 7}, nil
	}
	if i >= len(e.cfg.Analyses) {
		i = len(e.cfg.Analyses) - 1
	}
	return e.cfg.Analyses[i], nil
}

// Calls reports how many analyze requests were made.
func (e *Evaluator) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var _ evaluator.Client = (*Evaluator)(nil)
