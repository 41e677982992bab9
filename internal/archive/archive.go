// internal/archive/archive.go

// Package archive persists daily-log evidence to a search backend so the
// golden thread survives independently of the project aggregate.
package archive

import (
	"context"

	"rooftrust-engine/internal/models"
)

// Archiver indexes one golden-thread entry per call.
type Archiver interface {
	IndexLogEntry(ctx context.Context, projectID string, entry models.DailyLogEntry) error
}

// Noop discards everything. Used when no search backend is configured.
type Noop struct{}

func (Noop) IndexLogEntry(context.Context, string, models.DailyLogEntry) error { return nil }
