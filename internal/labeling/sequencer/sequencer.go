// Package sequencer reorders out-of-order outcomes into a gap-free,
// index-ordered output and checkpoints after every written row.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/labeler/internal/core/domain"
	"github.com/vietddude/labeler/internal/infra/checkpoint"
	"github.com/vietddude/labeler/internal/infra/sink"
	"github.com/vietddude/labeler/internal/labeling/metrics"
	"github.com/vietddude/labeler/internal/labeling/parser"
)

var (
	// ErrUnexpectedIndex is returned for an outcome outside the pending range
	// or one that was already submitted.
	ErrUnexpectedIndex = errors.New("unexpected outcome index")
	// ErrSinkFailed is returned once the output could not be written.
	ErrSinkFailed = errors.New("output sink failed")
)

// Sink is the ordered, durable output.
type Sink interface {
	Append(row sink.Row) error
	Offset() int64
}

// Config wires a sequencer.
type Config struct {
	Records         []domain.Record
	Start           int // first index not yet written
	Sink            Sink
	Store           checkpoint.Store
	Fingerprint     string
	SourcePath      string
	MaxReasonLength int
	Logger          *slog.Logger
}

// Sequencer holds the pending map and write cursor behind one mutex.
type Sequencer struct {
	mu      sync.Mutex
	pending map[int]domain.Outcome
	cursor  int
	aborted int
	err     error

	records         []domain.Record
	sink            Sink
	store           checkpoint.Store
	fingerprint     string
	sourcePath      string
	maxReasonLength int
	logger          *slog.Logger
}

// New creates a sequencer starting at cfg.Start.
func New(cfg Config) *Sequencer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.WriteCursor.Set(float64(cfg.Start))
	return &Sequencer{
		pending:         make(map[int]domain.Outcome),
		cursor:          cfg.Start,
		records:         cfg.Records,
		sink:            cfg.Sink,
		store:           cfg.Store,
		fingerprint:     cfg.Fingerprint,
		sourcePath:      cfg.SourcePath,
		maxReasonLength: cfg.MaxReasonLength,
		logger:          logger.With("component", "sequencer"),
	}
}

// Submit hands over one completed outcome and writes every row that is now
// contiguous with the cursor. Aborted outcomes are counted and dropped; the
// cursor never passes them. A sink failure is sticky and returned from
// every later call.
func (s *Sequencer) Submit(ctx context.Context, out domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if out.Index < s.cursor || out.Index >= len(s.records) {
		return fmt.Errorf("%w: %d (cursor %d, total %d)", ErrUnexpectedIndex, out.Index, s.cursor, len(s.records))
	}
	if _, dup := s.pending[out.Index]; dup {
		return fmt.Errorf("%w: %d already pending", ErrUnexpectedIndex, out.Index)
	}
	if out.Aborted {
		s.aborted++
		return nil
	}

	s.pending[out.Index] = out
	for {
		next, ok := s.pending[s.cursor]
		if !ok {
			break
		}
		delete(s.pending, s.cursor)

		next.Reason = parser.Truncate(next.Reason, s.maxReasonLength)
		row := sink.Row{Record: s.records[s.cursor], Outcome: next}
		if err := s.sink.Append(row); err != nil {
			s.err = fmt.Errorf("%w: %v", ErrSinkFailed, err)
			s.logger.Error("Failed to write row", "index", s.cursor, "error", err)
			return s.err
		}
		s.cursor++
		metrics.RowsWritten.Inc()
		metrics.WriteCursor.Set(float64(s.cursor))

		s.saveCheckpoint(ctx)
	}
	metrics.PendingOutcomes.Set(float64(len(s.pending)))
	return nil
}

// saveCheckpoint persists the cursor. Failures are logged and the run goes on.
// Must be called with mu held.
func (s *Sequencer) saveCheckpoint(ctx context.Context) {
	cp := &domain.Checkpoint{
		LastWrittenIndex: s.cursor,
		InputFingerprint: s.fingerprint,
		SourcePath:       s.sourcePath,
		OutputOffset:     s.sink.Offset(),
		UpdatedAt:        time.Now(),
	}
	// The row is already durable; record it even if the run is stopping
	if err := s.store.Save(context.WithoutCancel(ctx), cp); err != nil {
		metrics.CheckpointErrors.Inc()
		s.logger.Warn("Failed to save checkpoint", "last_written_index", s.cursor, "error", err)
	}
}

// Cursor returns the next index to be written.
func (s *Sequencer) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Pending returns the number of outcomes waiting for a lower index.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Aborted returns how many aborted outcomes were dropped.
func (s *Sequencer) Aborted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Complete reports whether every record has been written.
func (s *Sequencer) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor == len(s.records)
}

// Finish deletes the checkpoint after a complete run. An incomplete run
// keeps it for resuming.
func (s *Sequencer) Finish(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil || s.cursor != len(s.records) {
		s.logger.Info("Run incomplete, keeping checkpoint",
			"written", s.cursor,
			"total", len(s.records),
			"pending", len(s.pending),
		)
		return
	}
	if err := s.store.Delete(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Failed to delete checkpoint", "error", err)
		return
	}
	s.logger.Debug("Checkpoint removed after complete run")
}
