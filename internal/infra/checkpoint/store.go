// Package checkpoint persists the resume marker of a labeling run.
package checkpoint

import (
	"context"
	"errors"

	"github.com/vietddude/labeler/internal/core/domain"
)

// Backend names.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown checkpoint backend")

// Config selects and addresses the checkpoint store.
type Config struct {
	Backend string `yaml:"backend"` // file, redis, postgres
	Path    string `yaml:"path"`    // file backend; default <output>.checkpoint
	Key     string `yaml:"key"`     // redis key / postgres row name
}

// Store loads and saves checkpoints.
// Load returns nil, nil when no checkpoint exists.
type Store interface {
	Load(ctx context.Context) (*domain.Checkpoint, error)
	Save(ctx context.Context, cp *domain.Checkpoint) error
	Delete(ctx context.Context) error
}
