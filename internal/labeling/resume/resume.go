// Package resume decides whether a stored checkpoint applies to the
// current input and output.
package resume

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/vietddude/labeler/internal/core/domain"
	"github.com/vietddude/labeler/internal/infra/checkpoint"
	"github.com/vietddude/labeler/internal/infra/sink"
)

// Plan is where a run starts.
type Plan struct {
	Start       int   // first index to dispatch
	Offset      int64 // output size to keep; 0 for a fresh run
	Resumed     bool
	Fingerprint string // fingerprint of the current input
	Reason      string // why the checkpoint was or was not used
	Checkpoint  *domain.Checkpoint
}

// Target identifies the run a checkpoint must match.
type Target struct {
	InputPath  string
	OutputPath string
	Total      int
}

// Evaluate inspects the stored checkpoint without changing anything.
// The size and modification time fingerprint is coarse: a file rewritten
// with the same size and timestamp is treated as unchanged.
func Evaluate(ctx context.Context, fs afero.Fs, store checkpoint.Store, t Target) (Plan, error) {
	fp, err := checkpoint.Fingerprint(fs, t.InputPath)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Fingerprint: fp}

	cp, err := store.Load(ctx)
	if err != nil {
		plan.Reason = fmt.Sprintf("checkpoint unreadable: %v", err)
		return plan, nil
	}
	if cp == nil {
		plan.Reason = "no checkpoint"
		return plan, nil
	}
	plan.Checkpoint = cp

	switch {
	case cp.SourcePath != t.InputPath:
		plan.Reason = fmt.Sprintf("checkpoint is for %s", cp.SourcePath)
	case cp.InputFingerprint != fp:
		plan.Reason = "input changed since checkpoint"
	case cp.LastWrittenIndex < 0 || cp.LastWrittenIndex > t.Total:
		plan.Reason = fmt.Sprintf("checkpoint index %d out of range [0, %d]", cp.LastWrittenIndex, t.Total)
	case cp.LastWrittenIndex > 0 && cp.OutputOffset <= 0:
		plan.Reason = "checkpoint has no output offset"
	default:
		size, err := sink.Size(fs, t.OutputPath)
		if err != nil {
			plan.Reason = fmt.Sprintf("output unreadable: %v", err)
			break
		}
		if size < cp.OutputOffset {
			plan.Reason = fmt.Sprintf("output is %d bytes, checkpoint expects %d", size, cp.OutputOffset)
			break
		}
		plan.Start = cp.LastWrittenIndex
		plan.Offset = cp.OutputOffset
		plan.Resumed = true
		plan.Reason = "checkpoint valid"
	}
	return plan, nil
}

// Resolve evaluates the checkpoint and discards it when it does not apply.
func Resolve(ctx context.Context, fs afero.Fs, store checkpoint.Store, t Target, logger *slog.Logger) (Plan, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "resume")

	plan, err := Evaluate(ctx, fs, store, t)
	if err != nil {
		return Plan{}, err
	}

	if plan.Resumed {
		logger.Info("Resuming from checkpoint",
			"start", plan.Start,
			"total", t.Total,
			"offset", plan.Offset,
		)
		return plan, nil
	}

	if plan.Checkpoint != nil {
		logger.Warn("Discarding checkpoint", "reason", plan.Reason)
		if err := store.Delete(ctx); err != nil {
			logger.Warn("Failed to delete stale checkpoint", "error", err)
		}
	} else {
		logger.Info("Starting fresh run", "reason", plan.Reason, "total", t.Total)
	}
	return plan, nil
}
