package resume

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/vietddude/labeler/internal/core/domain"
	"github.com/vietddude/labeler/internal/infra/checkpoint"
)

type failingStore struct{}

func (failingStore) Load(context.Context) (*domain.Checkpoint, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Save(context.Context, *domain.Checkpoint) error { return nil }
func (failingStore) Delete(context.Context) error                   { return nil }

func setup(t *testing.T) (afero.Fs, *checkpoint.FileStore, string) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/in.csv", []byte("uid,year,acntet\n1,2020,a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/out.csv", []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	fp, err := checkpoint.Fingerprint(fs, "/in.csv")
	if err != nil {
		t.Fatal(err)
	}
	return fs, checkpoint.NewFileStore(fs, "/out.csv.checkpoint"), fp
}

func TestResolve(t *testing.T) {
	target := Target{InputPath: "/in.csv", OutputPath: "/out.csv", Total: 10}

	tests := []struct {
		name        string
		cp          func(fp string) *domain.Checkpoint
		wantResumed bool
		wantStart   int
		wantDeleted bool
	}{
		{
			name:        "no checkpoint",
			cp:          func(string) *domain.Checkpoint { return nil },
			wantResumed: false,
		},
		{
			name: "valid",
			cp: func(fp string) *domain.Checkpoint {
				return &domain.Checkpoint{LastWrittenIndex: 5, InputFingerprint: fp, SourcePath: "/in.csv", OutputOffset: 8}
			},
			wantResumed: true,
			wantStart:   5,
		},
		{
			name: "other source",
			cp: func(fp string) *domain.Checkpoint {
				return &domain.Checkpoint{LastWrittenIndex: 5, InputFingerprint: fp, SourcePath: "/other.csv", OutputOffset: 8}
			},
			wantDeleted: true,
		},
		{
			name: "fingerprint mismatch",
			cp: func(string) *domain.Checkpoint {
				return &domain.Checkpoint{LastWrittenIndex: 5, InputFingerprint: "1_1", SourcePath: "/in.csv", OutputOffset: 8}
			},
			wantDeleted: true,
		},
		{
			name: "index beyond input",
			cp: func(fp string) *domain.Checkpoint {
				return &domain.Checkpoint{LastWrittenIndex: 11, InputFingerprint: fp, SourcePath: "/in.csv", OutputOffset: 8}
			},
			wantDeleted: true,
		},
		{
			name: "output shorter than offset",
			cp: func(fp string) *domain.Checkpoint {
				return &domain.Checkpoint{LastWrittenIndex: 5, InputFingerprint: fp, SourcePath: "/in.csv", OutputOffset: 11}
			},
			wantDeleted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, store, fp := setup(t)
			ctx := context.Background()
			if cp := tt.cp(fp); cp != nil {
				if err := store.Save(ctx, cp); err != nil {
					t.Fatal(err)
				}
			}

			plan, err := Resolve(ctx, fs, store, target, nil)
			if err != nil {
				t.Fatalf("Resolve failed: %v", err)
			}
			if plan.Resumed != tt.wantResumed || plan.Start != tt.wantStart {
				t.Errorf("plan = %+v", plan)
			}
			if plan.Fingerprint != fp {
				t.Errorf("fingerprint = %q, want %q", plan.Fingerprint, fp)
			}

			exists, _ := afero.Exists(fs, "/out.csv.checkpoint")
			if tt.wantDeleted && exists {
				t.Error("stale checkpoint should be deleted")
			}
			if tt.wantResumed && !exists {
				t.Error("valid checkpoint should be kept")
			}
		})
	}
}

func TestResolve_ValidOffset(t *testing.T) {
	fs, store, fp := setup(t)
	ctx := context.Background()
	_ = store.Save(ctx, &domain.Checkpoint{LastWrittenIndex: 5, InputFingerprint: fp, SourcePath: "/in.csv", OutputOffset: 8})

	plan, err := Resolve(ctx, fs, store, Target{InputPath: "/in.csv", OutputPath: "/out.csv", Total: 10}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Offset != 8 {
		t.Errorf("offset = %d, want 8", plan.Offset)
	}
}

func TestResolve_MissingInput(t *testing.T) {
	fs, store, _ := setup(t)
	_, err := Resolve(context.Background(), fs, store, Target{InputPath: "/gone.csv", OutputPath: "/out.csv"}, nil)
	if err == nil {
		t.Error("expected error for missing input")
	}
}

func TestResolve_UnreadableCheckpointStartsFresh(t *testing.T) {
	fs, _, _ := setup(t)
	plan, err := Resolve(context.Background(), fs, failingStore{}, Target{InputPath: "/in.csv", OutputPath: "/out.csv", Total: 1}, nil)
	if err != nil {
		t.Fatalf("checkpoint errors must not be fatal: %v", err)
	}
	if plan.Resumed || plan.Start != 0 {
		t.Errorf("plan = %+v", plan)
	}
}
