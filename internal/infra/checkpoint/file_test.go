package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/vietddude/labeler/internal/core/domain"
)

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(afero.NewMemMapFs(), "/out/results.csv.checkpoint")

	cp, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cp != nil {
		t.Errorf("expected nil checkpoint, got %+v", cp)
	}
}

func TestFileStore_SaveLoadDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/out", 0o755); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(fs, "/out/results.csv.checkpoint")
	ctx := context.Background()

	want := &domain.Checkpoint{
		LastWrittenIndex: 41,
		InputFingerprint: "1024_1700000000",
		SourcePath:       "/in/data.csv",
		OutputOffset:     2048,
		UpdatedAt:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Overwrite to make sure rename replaces the previous file
	want.LastWrittenIndex = 42
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected checkpoint, got nil")
	}
	if got.LastWrittenIndex != 42 || got.OutputOffset != 2048 || got.SourcePath != want.SourcePath {
		t.Errorf("unexpected checkpoint: %+v", got)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}

	// No temp files left behind
	entries, err := afero.ReadDir(fs, "/out")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the checkpoint file, got %d entries", len(entries))
	}

	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx); err != nil {
		t.Errorf("Delete of missing checkpoint should succeed: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil || got != nil {
		t.Errorf("after delete: got %+v, err %v", got, err)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/cp.json", []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(fs, "/cp.json").Load(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestFingerprint(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/in.csv", []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Unix(1700000000, 0)
	if err := fs.Chtimes("/in.csv", mtime, mtime); err != nil {
		t.Fatal(err)
	}

	fp, err := Fingerprint(fs, "/in.csv")
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	want := "4_1700000000000000000"
	if fp != want {
		t.Errorf("fingerprint = %q, want %q", fp, want)
	}

	if err := afero.WriteFile(fs, "/in.csv", []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	changed, err := Fingerprint(fs, "/in.csv")
	if err != nil {
		t.Fatal(err)
	}
	if changed == fp {
		t.Error("fingerprint should change with content size")
	}

	if _, err := Fingerprint(fs, "/missing.csv"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Backend: "s3"}, Deps{})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestOpen_File(t *testing.T) {
	store, closer, err := Open(context.Background(), Config{Backend: BackendFile, Path: "/x.checkpoint"}, Deps{Fs: afero.NewMemMapFs()})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer closer.Close()
	if fs, ok := store.(*FileStore); !ok || fs.Path() != "/x.checkpoint" {
		t.Errorf("unexpected store %T", store)
	}
}
