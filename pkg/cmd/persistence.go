// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence/file"
	"github.com/mdrealofficial/node-bot-sub005/pkg/persistence/postgresql"
)

// NewPersistence selects the persistence backend by URL scheme. postgres://
// URLs get the PostgreSQL implementation; anything else is treated as a file
// root for development setups.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
