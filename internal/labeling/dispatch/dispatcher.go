// Package dispatch fans records out to a bounded pool of workers.
package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/labeler/internal/core/domain"
)

// Processor classifies one record.
type Processor interface {
	Process(ctx context.Context, rec domain.Record) domain.Outcome
}

// Collector receives completed outcomes in any order.
type Collector interface {
	Submit(ctx context.Context, out domain.Outcome) error
}

// Stats summarizes one dispatch.
type Stats struct {
	Submitted int
	Completed int
}

// Dispatcher runs at most Workers records at a time.
type Dispatcher struct {
	workers int
	logger  *slog.Logger
}

// New creates a dispatcher with the given pool size.
func New(workers int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{workers: workers, logger: logger.With("component", "dispatcher")}
}

// Run submits records[start:] one task per index. It stops submitting once
// ctx is cancelled or the collector fails, then waits for in-flight tasks.
// The collector's error is returned first, then ctx.Err().
func (d *Dispatcher) Run(
	ctx context.Context,
	records []domain.Record,
	start int,
	p Processor,
	c Collector,
) (Stats, error) {
	var completed atomic.Int64
	stats := Stats{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	for i := start; i < len(records); i++ {
		// Check before every submission; Go blocks while the pool is full
		if gctx.Err() != nil {
			d.logger.Info("Stopping submissions", "next_index", i, "remaining", len(records)-i)
			break
		}
		rec := records[i]
		g.Go(func() error {
			out := p.Process(gctx, rec)
			completed.Add(1)
			return c.Submit(gctx, out)
		})
		stats.Submitted++
	}

	err := g.Wait()
	stats.Completed = int(completed.Load())
	d.logger.Debug("Dispatch finished", "submitted", stats.Submitted, "completed", stats.Completed)

	if err != nil {
		return stats, err
	}
	return stats, ctx.Err()
}
