package checkpoint

import (
	"context"

	"github.com/vietddude/labeler/internal/core/domain"
	"github.com/vietddude/labeler/internal/infra/storage/postgres"
)

// PostgresStore keeps the checkpoint as one row of the checkpoints table.
type PostgresStore struct {
	repo *postgres.CheckpointRepo
	name string
}

// NewPostgresStore creates a PostgreSQL-backed store.
func NewPostgresStore(db *postgres.DB, name string) *PostgresStore {
	return &PostgresStore{repo: postgres.NewCheckpointRepo(db), name: name}
}

func (s *PostgresStore) Load(ctx context.Context) (*domain.Checkpoint, error) {
	return s.repo.Get(ctx, s.name)
}

func (s *PostgresStore) Save(ctx context.Context, cp *domain.Checkpoint) error {
	return s.repo.Save(ctx, s.name, cp)
}

func (s *PostgresStore) Delete(ctx context.Context) error {
	return s.repo.Delete(ctx, s.name)
}
