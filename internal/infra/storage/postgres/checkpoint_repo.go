package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/labeler/internal/core/domain"
)

// CheckpointRepo stores checkpoints in the checkpoints table, one row per name.
type CheckpointRepo struct {
	db *DB
}

// NewCheckpointRepo creates a new PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB) *CheckpointRepo {
	return &CheckpointRepo{db: db}
}

type checkpointRow struct {
	Name string `db:"name"`
	domain.Checkpoint
}

// Get retrieves the checkpoint by name. Not found returns nil, nil.
func (r *CheckpointRepo) Get(ctx context.Context, name string) (*domain.Checkpoint, error) {
	var row checkpointRow
	err := r.db.GetContext(ctx, &row, `
		SELECT name, last_written_index, input_fingerprint, source_path, output_offset, updated_at
		FROM checkpoints WHERE name = $1`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	cp := row.Checkpoint
	return &cp, nil
}

// Save upserts the checkpoint in a single statement.
func (r *CheckpointRepo) Save(ctx context.Context, name string, cp *domain.Checkpoint) error {
	row := checkpointRow{Name: name, Checkpoint: *cp}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO checkpoints (name, last_written_index, input_fingerprint, source_path, output_offset, updated_at)
		VALUES (:name, :last_written_index, :input_fingerprint, :source_path, :output_offset, :updated_at)
		ON CONFLICT (name) DO UPDATE SET
			last_written_index = EXCLUDED.last_written_index,
			input_fingerprint  = EXCLUDED.input_fingerprint,
			source_path        = EXCLUDED.source_path,
			output_offset      = EXCLUDED.output_offset,
			updated_at         = EXCLUDED.updated_at`, row)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint by name.
func (r *CheckpointRepo) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE name = $1`, name); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}
