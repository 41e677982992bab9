// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rooftrust-engine/internal/models"
)

// Postgres persists each aggregate as one JSONB row keyed by project id,
// with the schema version lifted into its own column for migration queries.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the backing table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS project_states (
			project_id     TEXT PRIMARY KEY,
			schema_version INT NOT NULL,
			state          JSONB NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure project_states schema: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, state *models.ProjectState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal project state: %w", err)
	}

	query := `
		INSERT INTO project_states (project_id, schema_version, state, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (project_id)
		DO UPDATE SET schema_version = $2, state = $3, updated_at = now()`
	if _, err := p.db.ExecContext(ctx, query, state.ProjectID, state.SchemaVersion, raw); err != nil {
		return fmt.Errorf("save project state %s: %w", state.ProjectID, err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, projectID string) (*models.ProjectState, error) {
	var raw []byte
	var version int

	query := `SELECT schema_version, state FROM project_states WHERE project_id = $1`
	err := p.db.QueryRowContext(ctx, query, projectID).Scan(&version, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load project state %s: %w", projectID, err)
	}

	if version > models.SchemaVersion {
		return nil, fmt.Errorf("project state %s has schema version %d, engine supports up to %d",
			projectID, version, models.SchemaVersion)
	}

	var state models.ProjectState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal project state %s: %w", projectID, err)
	}
	return &state, nil
}

func (p *Postgres) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT project_id FROM project_states ORDER BY project_id`)
	if err != nil {
		return nil, fmt.Errorf("list project ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
