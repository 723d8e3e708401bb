// Package retry runs the per-record attempt and backoff loop around one
// classification round trip.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vietddude/labeler/internal/core/domain"
	"github.com/vietddude/labeler/internal/infra/classifier"
	"github.com/vietddude/labeler/internal/labeling/metrics"
	"github.com/vietddude/labeler/internal/labeling/parser"
)

// Limiter grants permission to start a request.
type Limiter interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Classifier performs a single classification request.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// Config holds the retry budget and wait settings.
type Config struct {
	MaxRetries    int
	BackoffBase   time.Duration // backoff is BackoffBase * 2^attempt
	RateLimitWait time.Duration // 429 without a Retry-After hint
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Engine is the session shared by every worker: limiter, client, parser
// and settings. It is safe for concurrent use.
type Engine struct {
	limiter Limiter
	client  Classifier
	parser  *parser.Parser
	cfg     Config
	logger  *slog.Logger
	sleep   SleepFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

// NewEngine creates a retry engine.
func NewEngine(limiter Limiter, client Classifier, p *parser.Parser, cfg Config, opts ...Option) *Engine {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	e := &Engine{
		limiter: limiter,
		client:  client,
		parser:  p,
		cfg:     cfg,
		logger:  slog.Default(),
		sleep:   Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "retry")
	return e
}

// Process classifies one record. It always returns an outcome; failures
// become score 0 with a diagnostic reason. Cancellation of ctx yields an
// aborted outcome, but a request already on the wire runs to completion.
func (e *Engine) Process(ctx context.Context, rec domain.Record) domain.Outcome {
	log := e.logger.With("index", rec.Index, "id", rec.ID)

	if ctx.Err() != nil {
		log.Info("Record aborted before first attempt")
		metrics.OutcomesTotal.WithLabelValues("aborted").Inc()
		return domain.AbortedOutcome(rec.Index, 0)
	}

	if strings.TrimSpace(rec.Text) == "" {
		log.Debug("Empty input, skipping request")
		metrics.OutcomesTotal.WithLabelValues("empty").Inc()
		return domain.Outcome{Index: rec.Index, Score: domain.ScoreNeutral, Reason: domain.ReasonEmptyInput}
	}

	attempts := 0
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return e.aborted(log, rec.Index, attempts)
		}

		release, err := e.limiter.Acquire(ctx)
		if err != nil {
			// Acquire only fails on cancellation
			return e.aborted(log, rec.Index, attempts)
		}
		if ctx.Err() != nil {
			release()
			return e.aborted(log, rec.Index, attempts)
		}

		attempts++
		log.Debug("Sending request", "attempt", attempts)

		metrics.InFlight.Inc()
		start := time.Now()
		// Let the current attempt finish; the connect and read timeouts bound it
		reply, err := e.client.Classify(context.WithoutCancel(ctx), rec.Text)
		metrics.RequestLatency.Observe(time.Since(start).Seconds())
		metrics.InFlight.Dec()
		release()

		if err == nil {
			metrics.RequestsTotal.WithLabelValues("2xx").Inc()
			res := e.parser.Parse(reply)
			metrics.ParseStrategyTotal.WithLabelValues(res.Strategy).Inc()
			metrics.OutcomesTotal.WithLabelValues("parsed").Inc()
			log.Debug("Record classified", "attempt", attempts, "score", int(res.Score), "strategy", res.Strategy)
			return domain.Outcome{Index: rec.Index, Score: res.Score, Reason: res.Reason, Attempts: attempts}
		}

		wait, cause, retryable := e.classify(err, attempt)
		if !retryable {
			var statusErr *classifier.StatusError
			errors.As(err, &statusErr)
			metrics.RequestsTotal.WithLabelValues(fmt.Sprintf("%dxx", statusErr.StatusCode/100)).Inc()
			metrics.OutcomesTotal.WithLabelValues("client_error").Inc()
			log.Error("Non-retryable API error", "attempt", attempts, "status", statusErr.StatusCode, "error", err)
			return domain.Outcome{
				Index:    rec.Index,
				Score:    domain.ScoreNeutral,
				Reason:   fmt.Sprintf("API error %d", statusErr.StatusCode),
				Attempts: attempts,
			}
		}
		metrics.RequestsTotal.WithLabelValues(cause).Inc()

		if attempt == e.cfg.MaxRetries-1 {
			log.Warn("Attempt failed", "attempt", attempts, "cause", cause, "error", err)
			break
		}
		if ctx.Err() != nil {
			return e.aborted(log, rec.Index, attempts)
		}

		metrics.RetriesTotal.WithLabelValues(cause).Inc()
		log.Warn("Attempt failed, backing off",
			"attempt", attempts,
			"cause", cause,
			"wait", wait,
			"error", err,
		)
		if err := e.sleep(ctx, wait); err != nil {
			return e.aborted(log, rec.Index, attempts)
		}
	}

	metrics.OutcomesTotal.WithLabelValues("exhausted").Inc()
	log.Error("Retry limit exceeded", "attempts", attempts)
	return domain.Outcome{Index: rec.Index, Score: domain.ScoreNeutral, Reason: domain.ReasonExhausted, Attempts: attempts}
}

// classify maps a request error to its wait and cause label.
// retryable is false for 4xx replies other than 429.
func (e *Engine) classify(err error, attempt int) (wait time.Duration, cause string, retryable bool) {
	var statusErr *classifier.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.RateLimited():
			if statusErr.HasRetryAfter {
				return statusErr.RetryAfter, "429", true
			}
			return e.cfg.RateLimitWait, "429", true
		case statusErr.ServerError():
			return e.backoff(attempt), "5xx", true
		default:
			return 0, "", false
		}
	}

	var netErr *classifier.NetworkError
	if errors.As(err, &netErr) {
		if netErr.Timeout {
			return e.backoff(attempt), "timeout", true
		}
		return e.backoff(attempt), "network", true
	}
	return e.backoff(attempt), "other", true
}

func (e *Engine) backoff(attempt int) time.Duration {
	return e.cfg.BackoffBase * time.Duration(1<<uint(attempt))
}

func (e *Engine) aborted(log *slog.Logger, index, attempts int) domain.Outcome {
	metrics.OutcomesTotal.WithLabelValues("aborted").Inc()
	log.Info("Record aborted", "attempts", attempts)
	return domain.AbortedOutcome(index, attempts)
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
