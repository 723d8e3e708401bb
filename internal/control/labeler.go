package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/vietddude/labeler/internal/core/config"
	"github.com/vietddude/labeler/internal/core/domain"
	"github.com/vietddude/labeler/internal/infra/checkpoint"
	"github.com/vietddude/labeler/internal/infra/classifier"
	"github.com/vietddude/labeler/internal/infra/ratelimit"
	"github.com/vietddude/labeler/internal/infra/sink"
	"github.com/vietddude/labeler/internal/infra/source"
	"github.com/vietddude/labeler/internal/labeling/dispatch"
	"github.com/vietddude/labeler/internal/labeling/health"
	"github.com/vietddude/labeler/internal/labeling/parser"
	"github.com/vietddude/labeler/internal/labeling/resume"
	"github.com/vietddude/labeler/internal/labeling/retry"
	"github.com/vietddude/labeler/internal/labeling/sequencer"
	"github.com/vietddude/labeler/internal/labeling/summary"
)

// Labeler is the main application struct that runs one labeling job.
type Labeler struct {
	cfg          *config.AppConfig
	fs           afero.Fs
	store        checkpoint.Store
	storeCloser  io.Closer
	client       retry.Classifier
	limiter      *ratelimit.Limiter
	sleep        retry.SleepFunc
	runID        string
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger
}

// Options overrides collaborators, mainly for tests. Zero values select
// the production implementation.
type Options struct {
	Fs         afero.Fs
	Store      checkpoint.Store
	Classifier retry.Classifier
	Sleep      retry.SleepFunc
}

// Result summarizes a finished or interrupted run.
type Result struct {
	RunID       string
	Total       int
	Start       int
	Written     int
	Submitted   int
	Aborted     int
	Resumed     bool
	Complete    bool
	SummaryPath string
	Duration    time.Duration
}

// NewLabeler creates a Labeler with all dependencies initialized.
func NewLabeler(ctx context.Context, cfg *config.AppConfig, opts Options) (*Labeler, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	limiter, err := ratelimit.New(cfg.Limits.MaxConcurrent, cfg.Limits.RequestsPerSecond)
	if err != nil {
		return nil, fmt.Errorf("failed to init rate limiter: %w", err)
	}

	var closer io.Closer
	store := opts.Store
	if store == nil {
		store, closer, err = checkpoint.Open(ctx, cfg.CheckpointSettings(), checkpoint.Deps{
			Fs:       fs,
			Redis:    cfg.Redis,
			Database: cfg.Database,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init checkpoint store: %w", err)
		}
	}

	client := opts.Classifier
	if client == nil {
		client = classifier.New(cfg.Classifier)
	}

	runID := uuid.NewString()
	log := slog.Default().With("run_id", runID)

	var healthServer *health.Server
	healthMon := health.NewMonitor(runID)
	if cfg.Server.Port > 0 {
		healthServer = health.NewServer(healthMon, cfg.Server.Port)
	}

	return &Labeler{
		cfg:          cfg,
		fs:           fs,
		store:        store,
		storeCloser:  closer,
		client:       client,
		limiter:      limiter,
		sleep:        opts.Sleep,
		runID:        runID,
		healthMon:    healthMon,
		healthServer: healthServer,
		log:          log,
	}, nil
}

// Run processes every record not yet written. Cancelling ctx stops new
// submissions; the output and checkpoint stay a consistent prefix and the
// returned error is ctx.Err().
func (l *Labeler) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	res := Result{RunID: l.runID}

	if err := l.cfg.ValidateIO(); err != nil {
		return res, err
	}

	records, err := source.Load(l.fs, l.cfg.Input)
	if err != nil {
		return res, err
	}
	res.Total = len(records)
	l.log.Info("Loaded records", "input", l.cfg.Input.Path, "count", len(records))

	plan, err := resume.Resolve(ctx, l.fs, l.store, resume.Target{
		InputPath:  l.cfg.Input.Path,
		OutputPath: l.cfg.Output.Path,
		Total:      len(records),
	}, l.log)
	if err != nil {
		return res, fmt.Errorf("%w: %v", source.ErrInput, err)
	}
	res.Start = plan.Start
	res.Resumed = plan.Resumed

	out, err := l.openSink(plan)
	if err != nil {
		return res, err
	}

	seq := sequencer.New(sequencer.Config{
		Records:         records,
		Start:           plan.Start,
		Sink:            out,
		Store:           l.store,
		Fingerprint:     plan.Fingerprint,
		SourcePath:      l.cfg.Input.Path,
		MaxReasonLength: l.cfg.Limits.MaxReasonLength,
		Logger:          l.log,
	})
	engine := l.newEngine()

	l.healthMon.Attach(seq, l.limiter, len(records), plan.Resumed)
	l.healthMon.SetStatus(health.StatusRunning)
	l.startHealthServer()

	l.log.Info("Dispatching records",
		"start", plan.Start,
		"total", len(records),
		"workers", l.cfg.Limits.MaxWorkers,
		"max_concurrent", l.cfg.Limits.MaxConcurrent,
		"rps", l.cfg.Limits.RequestsPerSecond,
	)
	stats, runErr := dispatch.New(l.cfg.Limits.MaxWorkers, l.log).Run(ctx, records, plan.Start, engine, seq)
	res.Submitted = stats.Submitted

	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
	}
	seq.Finish(ctx)

	res.Written = seq.Cursor()
	res.Aborted = seq.Aborted()
	res.Complete = seq.Complete()
	res.Duration = time.Since(started)

	switch {
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		l.healthMon.SetStatus(health.StatusStopping)
		l.log.Warn("Run interrupted, rerun to resume",
			"written", res.Written,
			"total", res.Total,
			"aborted", res.Aborted,
		)
		return res, runErr
	case runErr != nil:
		l.healthMon.SetStatus(health.StatusFailed)
		l.log.Error("Run failed", "written", res.Written, "error", runErr)
		return res, runErr
	}

	l.healthMon.SetStatus(health.StatusFinished)
	l.log.Info("Run complete",
		"written", res.Written,
		"total", res.Total,
		"duration", res.Duration.Round(time.Millisecond),
	)

	if res.Complete && l.cfg.Output.SummaryEnabled() {
		path, groups, err := summary.Summarize(l.fs, l.cfg.Output.Path)
		if err != nil {
			// The labeled output is complete; a summary failure is only logged.
			l.log.Error("Failed to write summary", "error", err)
		} else {
			res.SummaryPath = path
			l.log.Info("Summary written", "path", path, "groups", groups)
		}
	}
	return res, nil
}

func (l *Labeler) openSink(plan resume.Plan) (*sink.Writer, error) {
	if plan.Resumed {
		w, err := sink.Resume(l.fs, l.cfg.Output.Path, l.cfg.Output.Header, plan.Offset)
		if err != nil {
			return nil, fmt.Errorf("failed to reopen output: %w", err)
		}
		return w, nil
	}
	w, err := sink.Create(l.fs, l.cfg.Output.Path, l.cfg.Output.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	return w, nil
}

func (l *Labeler) newEngine() *retry.Engine {
	cats := make([]parser.Category, 0, len(l.cfg.Categories))
	for _, c := range l.cfg.Categories {
		cats = append(cats, parser.Category{Label: c.Label, Score: domain.Score(c.Score)})
	}

	opts := []retry.Option{retry.WithLogger(l.log)}
	if l.sleep != nil {
		opts = append(opts, retry.WithSleep(l.sleep))
	}
	return retry.NewEngine(
		l.limiter,
		l.client,
		parser.New(cats, l.cfg.Limits.MaxReasonLength),
		retry.Config{
			MaxRetries:    l.cfg.Limits.MaxRetries,
			BackoffBase:   l.cfg.Limits.BackoffBase,
			RateLimitWait: l.cfg.Limits.RateLimitWait,
		},
		opts...,
	)
}

func (l *Labeler) startHealthServer() {
	if l.healthServer == nil {
		return
	}
	go func() {
		if err := l.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Error("Health server failed", "error", err)
		}
	}()
}

// Status reports whether the stored checkpoint applies to the configured input.
func (l *Labeler) Status(ctx context.Context) (resume.Plan, int, error) {
	if err := l.cfg.ValidateIO(); err != nil {
		return resume.Plan{}, 0, err
	}
	records, err := source.Load(l.fs, l.cfg.Input)
	if err != nil {
		return resume.Plan{}, 0, err
	}
	plan, err := resume.Evaluate(ctx, l.fs, l.store, resume.Target{
		InputPath:  l.cfg.Input.Path,
		OutputPath: l.cfg.Output.Path,
		Total:      len(records),
	})
	return plan, len(records), err
}

// ResetCheckpoint deletes the stored checkpoint.
func (l *Labeler) ResetCheckpoint(ctx context.Context) error {
	return l.store.Delete(ctx)
}

// Close stops the health server and releases the checkpoint store.
func (l *Labeler) Close() error {
	var errs []error
	if l.healthServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.healthServer.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if c, ok := l.client.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if l.storeCloser != nil {
		if err := l.storeCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
