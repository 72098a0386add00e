package driven

import (
	"context"

	"github.com/umdl/umd-host/internal/history"
)

// HistoryRepository defines the interface for the download journal.
// This is a driven port implemented by concrete adapters (e.g. BoltDB).
type HistoryRepository interface {
	// Save persists a terminal download record.
	Save(ctx context.Context, rec history.Record) error

	// FindRecent retrieves up to limit records, most recent first.
	FindRecent(ctx context.Context, limit int) ([]history.Record, error)

	// Ping checks if the repository (database) is accessible and
	// operational. Returns nil if healthy.
	Ping(ctx context.Context) error
}
