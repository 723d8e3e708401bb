package sequencer

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/vietddude/labeler/internal/core/domain"
	"github.com/vietddude/labeler/internal/infra/sink"
)

// mockSink records appended rows; offset grows by one per row.
type mockSink struct {
	rows   []sink.Row
	failAt int // index that fails, -1 for never
}

func (m *mockSink) Append(row sink.Row) error {
	if row.Record.Index == m.failAt {
		return errors.New("disk full")
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockSink) Offset() int64 { return int64(len(m.rows)) }

// mockStore keeps the latest checkpoint and the full save history.
type mockStore struct {
	mu      sync.Mutex
	saved   []domain.Checkpoint
	current *domain.Checkpoint
	saveErr error
	deleted bool
}

func (m *mockStore) Load(context.Context) (*domain.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *mockStore) Save(_ context.Context, cp *domain.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	c := *cp
	m.saved = append(m.saved, c)
	m.current = &c
	return nil
}

func (m *mockStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = true
	m.current = nil
	return nil
}

func makeRecords(n int) []domain.Record {
	records := make([]domain.Record, n)
	for i := range records {
		records[i] = domain.Record{Index: i, ID: "id", Year: 2020, Text: "text"}
	}
	return records
}

func newTestSequencer(n, start int, sk *mockSink, st *mockStore) *Sequencer {
	return New(Config{
		Records:         makeRecords(n),
		Start:           start,
		Sink:            sk,
		Store:           st,
		Fingerprint:     "fp",
		SourcePath:      "/in.csv",
		MaxReasonLength: 200,
	})
}

func outcome(i int) domain.Outcome {
	return domain.Outcome{Index: i, Score: domain.ScorePositive, Reason: "r"}
}

func TestSequencer_OutOfOrder(t *testing.T) {
	sk := &mockSink{failAt: -1}
	st := &mockStore{}
	s := newTestSequencer(5, 0, sk, st)
	ctx := context.Background()

	steps := []struct {
		index       int
		wantCursor  int
		wantPending int
	}{
		{2, 0, 1},
		{1, 0, 2},
		{4, 0, 3},
		{0, 3, 1},
		{3, 5, 0},
	}
	for _, step := range steps {
		if err := s.Submit(ctx, outcome(step.index)); err != nil {
			t.Fatalf("Submit(%d) failed: %v", step.index, err)
		}
		if s.Cursor() != step.wantCursor || s.Pending() != step.wantPending {
			t.Errorf("after %d: cursor=%d pending=%d, want %d/%d",
				step.index, s.Cursor(), s.Pending(), step.wantCursor, step.wantPending)
		}
	}

	for i, row := range sk.rows {
		if row.Record.Index != i || row.Outcome.Index != i {
			t.Errorf("row %d holds index %d", i, row.Record.Index)
		}
	}

	// One checkpoint per written row, each matching the cursor at that moment
	if len(st.saved) != 5 {
		t.Fatalf("saves = %d, want 5", len(st.saved))
	}
	for i, cp := range st.saved {
		if cp.LastWrittenIndex != i+1 || cp.OutputOffset != int64(i+1) {
			t.Errorf("save %d = %+v", i, cp)
		}
		if cp.InputFingerprint != "fp" || cp.SourcePath != "/in.csv" {
			t.Errorf("save %d missing identity: %+v", i, cp)
		}
	}

	if !s.Complete() {
		t.Error("expected complete")
	}
	s.Finish(ctx)
	if !st.deleted {
		t.Error("checkpoint should be deleted after a complete run")
	}
}

func TestSequencer_ConcurrentSubmit(t *testing.T) {
	const n = 200
	sk := &mockSink{failAt: -1}
	st := &mockStore{}
	s := newTestSequencer(n, 0, sk, st)

	order := rand.New(rand.NewSource(1)).Perm(n)
	var wg sync.WaitGroup
	for _, i := range order {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Submit(context.Background(), outcome(i)); err != nil {
				t.Errorf("Submit(%d): %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if len(sk.rows) != n {
		t.Fatalf("rows = %d, want %d", len(sk.rows), n)
	}
	for i, row := range sk.rows {
		if row.Record.Index != i {
			t.Fatalf("row %d holds index %d", i, row.Record.Index)
		}
	}
	if st.current.LastWrittenIndex != n {
		t.Errorf("last checkpoint = %d", st.current.LastWrittenIndex)
	}
}

func TestSequencer_AbortedBlocksCursor(t *testing.T) {
	sk := &mockSink{failAt: -1}
	st := &mockStore{}
	s := newTestSequencer(4, 0, sk, st)
	ctx := context.Background()

	_ = s.Submit(ctx, outcome(0))
	_ = s.Submit(ctx, domain.AbortedOutcome(1, 0))
	_ = s.Submit(ctx, outcome(2))

	if s.Cursor() != 1 {
		t.Errorf("cursor = %d, want 1", s.Cursor())
	}
	if s.Aborted() != 1 {
		t.Errorf("aborted = %d", s.Aborted())
	}
	if st.current.LastWrittenIndex != int(sk.Offset()) {
		t.Errorf("checkpoint %d disagrees with sink rows %d", st.current.LastWrittenIndex, sk.Offset())
	}

	s.Finish(ctx)
	if st.deleted {
		t.Error("checkpoint must survive an incomplete run")
	}
}

func TestSequencer_ResumeStart(t *testing.T) {
	sk := &mockSink{failAt: -1}
	s := newTestSequencer(6, 5, sk, &mockStore{})

	if err := s.Submit(context.Background(), outcome(4)); !errors.Is(err, ErrUnexpectedIndex) {
		t.Errorf("index below start should be rejected, got %v", err)
	}
	if err := s.Submit(context.Background(), outcome(5)); err != nil {
		t.Fatal(err)
	}
	if len(sk.rows) != 1 || sk.rows[0].Record.Index != 5 {
		t.Errorf("rows = %+v", sk.rows)
	}
}

func TestSequencer_RejectsDuplicatesAndOutOfRange(t *testing.T) {
	s := newTestSequencer(3, 0, &mockSink{failAt: -1}, &mockStore{})
	ctx := context.Background()

	_ = s.Submit(ctx, outcome(2))
	if err := s.Submit(ctx, outcome(2)); !errors.Is(err, ErrUnexpectedIndex) {
		t.Errorf("duplicate pending: got %v", err)
	}
	if err := s.Submit(ctx, outcome(3)); !errors.Is(err, ErrUnexpectedIndex) {
		t.Errorf("out of range: got %v", err)
	}
}

func TestSequencer_SinkFailureIsSticky(t *testing.T) {
	sk := &mockSink{failAt: 1}
	st := &mockStore{}
	s := newTestSequencer(3, 0, sk, st)
	ctx := context.Background()

	_ = s.Submit(ctx, outcome(0))
	err := s.Submit(ctx, outcome(1))
	if !errors.Is(err, ErrSinkFailed) {
		t.Fatalf("expected ErrSinkFailed, got %v", err)
	}
	if err := s.Submit(ctx, outcome(2)); !errors.Is(err, ErrSinkFailed) {
		t.Errorf("later submits should keep failing, got %v", err)
	}
	if st.current.LastWrittenIndex != 1 {
		t.Errorf("checkpoint = %d, want 1", st.current.LastWrittenIndex)
	}
}

func TestSequencer_CheckpointErrorNotFatal(t *testing.T) {
	sk := &mockSink{failAt: -1}
	st := &mockStore{saveErr: errors.New("read-only fs")}
	s := newTestSequencer(2, 0, sk, st)

	for i := 0; i < 2; i++ {
		if err := s.Submit(context.Background(), outcome(i)); err != nil {
			t.Fatalf("Submit(%d): %v", i, err)
		}
	}
	if len(sk.rows) != 2 {
		t.Errorf("rows = %d, want 2", len(sk.rows))
	}
}

func TestSequencer_CheckpointSavedAfterCancel(t *testing.T) {
	st := &mockStore{}
	s := newTestSequencer(1, 0, &mockSink{failAt: -1}, st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Submit(ctx, outcome(0)); err != nil {
		t.Fatal(err)
	}
	if st.current == nil || st.current.LastWrittenIndex != 1 {
		t.Errorf("checkpoint = %+v", st.current)
	}
}

func TestSequencer_TruncatesReason(t *testing.T) {
	sk := &mockSink{failAt: -1}
	s := New(Config{Records: makeRecords(1), Sink: sk, Store: &mockStore{}, MaxReasonLength: 3})

	out := outcome(0)
	out.Reason = strings.Repeat("长", 10)
	if err := s.Submit(context.Background(), out); err != nil {
		t.Fatal(err)
	}
	if sk.rows[0].Outcome.Reason != "长长长" {
		t.Errorf("reason = %q", sk.rows[0].Outcome.Reason)
	}
}
