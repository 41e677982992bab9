// internal/store/store.go
package store

import (
	"context"
	"errors"

	"rooftrust-engine/internal/models"
)

// ErrNotFound is returned by Load when no aggregate exists for the id.
var ErrNotFound = errors.New("project state not found")

// Store persists the whole ProjectState aggregate after every mutation and
// restores it whole at startup. Implementations must surface write failures
// distinctly; the engine converts them to PERSISTENCE_FAILED results instead
// of swallowing them.
type Store interface {
	Save(ctx context.Context, state *models.ProjectState) error
	Load(ctx context.Context, projectID string) (*models.ProjectState, error)
	ListIDs(ctx context.Context) ([]string, error)
}
