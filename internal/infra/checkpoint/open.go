package checkpoint

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"

	redisclient "github.com/vietddude/labeler/internal/infra/redis"
	"github.com/vietddude/labeler/internal/infra/storage/postgres"
)

// Deps carries the connection settings the non-file backends need.
type Deps struct {
	Fs       afero.Fs
	Redis    redisclient.Config
	Database postgres.Config
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the store selected by cfg. The returned closer releases any
// connection the store holds.
func Open(ctx context.Context, cfg Config, deps Deps) (Store, io.Closer, error) {
	switch cfg.Backend {
	case BackendFile, "":
		fs := deps.Fs
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewFileStore(fs, cfg.Path), nopCloser{}, nil

	case BackendRedis:
		client, err := redisclient.NewClient(deps.Redis)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(client, cfg.Key, deps.Redis.TTL), client, nil

	case BackendPostgres:
		db, err := postgres.NewDB(ctx, deps.Database)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresStore(db, cfg.Key), db, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
