package scoring

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/Samarth-1003/MockMate-AI/pkg/errorsx"
	"github.com/Samarth-1003/MockMate-AI/pkg/logging"
	"github.com/Samarth-1003/MockMate-AI/pkg/metrics"
	"github.com/Samarth-1003/MockMate-AI/pkg/resilience"
	"github.com/Samarth-1003/MockMate-AI/pkg/session"
)

// Evaluator is the slice of the collaborator the pipeline consumes.
type Evaluator interface {
	AnalyzeAnswer(ctx context.Context, question, answer string) (map[string]any, error)
}

// Result is the session outcome.
type Result struct {
	Percentage int    `json:"percentage"`
	Narrative  string `json:"narrative"`
}

const (
	narrativeExceptional = "Exceptional work! You demonstrated profound knowledge and clarity."
	narrativeSolid       = "Solid effort. You have a good base, but some details were missed."
	narrativeNeedsWork   = "Needs Improvement. We recommend reviewing the core requirements."
)

// Config tunes the pipeline.
type Config struct {
	// Pace is the delay before each evaluator call; it keeps the result
	// screen legible while scores tick in. Cosmetic, not a rate limiter.
	Pace     time.Duration
	Logger   *slog.Logger
	Observer metrics.Observer
}

// Pipeline scores a completed answer log. Calls run strictly in the original
// order and strictly one at a time; partial results are never returned.
type Pipeline struct {
	eval   Evaluator
	pace   time.Duration
	logger *slog.Logger
	obs    metrics.Observer
}

func NewPipeline(eval Evaluator, cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewComponentLogger(slog.Default(), "scoring")
	}
	obs := cfg.Observer
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	pace := cfg.Pace
	if pace <= 0 {
		pace = 800 * time.Millisecond
	}
	return &Pipeline{eval: eval, pace: pace, logger: logger, obs: obs}
}

// Score evaluates every entry and folds the per-answer scores into a final
// percentage. A rate-limit signal from the evaluator aborts the remaining
// calls and fails with ReasonRateLimited; any other evaluator failure aborts
// with ReasonEvaluationFailed. There is no retry here: retry is a
// user-initiated restart of the whole pipeline.
func (p *Pipeline) Score(ctx context.Context, entries []session.AnswerEntry) (Result, error) {
	if len(entries) == 0 {
		return Result{Percentage: 0, Narrative: narrativeFor(0)}, nil
	}

	var total float64
	for i, entry := range entries {
		select {
		case <-ctx.Done():
			return Result{}, errorsx.Wrap(ctx.Err(), errorsx.ReasonEvaluationFailed)
		case <-time.After(p.pace):
		}

		start := time.Now()
		resp, err := p.eval.AnalyzeAnswer(ctx, entry.Question, entry.Answer)
		if err != nil {
			if resilience.IsRateLimit(err) {
				p.logger.Warn("scoring_rate_limited", slog.Int("index", i))
				return Result{}, errorsx.Wrap(err, errorsx.ReasonRateLimited)
			}
			p.logger.Warn("scoring_failed", slog.Int("index", i), slog.Any("error", err))
			return Result{}, errorsx.Wrap(err, errorsx.ReasonEvaluationFailed)
		}
		score := extractScore(resp)
		total += score

		p.logger.Debug("answer_scored",
			slog.Int("index", i),
			slog.Float64("score", score))
		p.obs.RecordEvent(metrics.MetricsEvent{
			Name:  "answer_scored",
			Time:  time.Now(),
			Value: score,
			Tags:  map[string]string{"latency_ms": strconv.Itoa(int(time.Since(start).Milliseconds()))},
		})
	}

	pct := int(math.Round(total / (float64(len(entries)) * 10) * 100))
	p.logger.Info("scoring_done",
		slog.Int("answers", len(entries)),
		slog.Int("percentage", pct))
	return Result{Percentage: pct, Narrative: narrativeFor(pct)}, nil
}

// narrativeFor maps a percentage to its feedback band. Boundaries are
// inclusive lower bounds.
func narrativeFor(pct int) string {
	switch {
	case pct >= 80:
		return narrativeExceptional
	case pct >= 50:
		return narrativeSolid
	default:
		return narrativeNeedsWork
	}
}
