package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/dukex/flowengine/pkg/persistence/file"
	"github.com/dukex/flowengine/pkg/persistence/postgresql"
	"github.com/dukex/flowengine/pkg/persistence/redis"
)

// NewPersistence picks the run store from the scheme of databaseURL. Anything
// without a known scheme is treated as a file store root.
//
//nolint:ireturn
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	case "redis":
		store, err := redis.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	case "redis", "rediss":
		return "redis"
	default:
		return "file"
	}
}
