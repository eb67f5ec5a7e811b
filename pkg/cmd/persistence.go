package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowcrm/pkg/persistence"
	"github.com/dukex/flowcrm/pkg/persistence/file"
	"github.com/dukex/flowcrm/pkg/persistence/postgresql"
)

// NewPersistence picks the store from the scheme of databaseURL. Anything that is not a postgres
// URL is treated as a directory for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgresql: %w", err)
		}

		return p, nil
	default:
		logger.WarnContext(ctx, "Using file persistence; it does not support several processes sharing a directory")

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
	default:
		return "file"
	}
}
