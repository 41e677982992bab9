// internal/store/postgres_test.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rooftrust-engine/internal/models"
)

func sampleState() *models.ProjectState {
	start := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	last := start.Add(6 * time.Hour)
	return &models.ProjectState{
		SchemaVersion: models.SchemaVersion,
		ProjectID:     "prj-42",
		Phase:         models.PhaseTracking,
		Contractor: models.ContractorProfile{
			Name:                "London Master Roofing Ltd",
			RegistrationNumber:  "NFRC-12345",
			OnboardingCompleted: true,
			VerificationStatus:  models.VerificationPending,
		},
		Inputs: models.SurveyInputs{
			Postcode:            "SW1A 1AA",
			RoofAreaSqm:         100,
			ScaffoldingRequired: true,
			SpecialtyRepairs:    []string{"chimney_repointing"},
		},
		FixingSpec:          &models.FixingSpec{Zone: "Zone 3", Schedule: "s", Ref: "BS 5534"},
		DocType:             models.NonBindingEstimate,
		StartDate:           &start,
		LastUpdateTimestamp: &last,
		PaymentStages: []models.PaymentStage{
			{ID: models.StageDeposit, Percent: 30, Status: models.PaymentReleased},
			{ID: models.StageMid, Percent: 40, Status: models.PaymentPending},
			{ID: models.StageFinal, Percent: 30, Status: models.PaymentPending},
		},
		CompletionChecklist: []models.ChecklistItem{{ID: "c1", Label: "Site cleared of debris", Checked: true}},
		Variations: []models.VariationOrder{
			{ID: "v1", Reason: "battens", ExtraCost: 500, DaysAdded: 2, ProofPhotoURL: "p", Status: models.VariationApproved},
		},
		DailyLogs:        []models.DailyLogEntry{{Date: "2026-02-10", Tag: models.TagInsulationCheck, Status: "Completed", PhotoUploaded: true, RecordedAt: last}},
		CoolingOffActive: true,
	}
}

func TestPostgresSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	state := sampleState()
	raw, err := json.Marshal(state)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO project_states").
		WithArgs(state.ProjectID, state.SchemaVersion, raw).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pg := NewPostgres(db)
	require.NoError(t, pg.Save(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveSurfacesFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO project_states").
		WillReturnError(fmt.Errorf("connection reset"))

	pg := NewPostgres(db)
	err = pg.Save(context.Background(), sampleState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

// Round-trip: persisting and reloading must reproduce an identical logical
// state with no loss of nested arrays.
func TestPostgresRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	state := sampleState()
	raw, err := json.Marshal(state)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT schema_version, state FROM project_states").
		WithArgs(state.ProjectID).
		WillReturnRows(sqlmock.NewRows([]string{"schema_version", "state"}).
			AddRow(state.SchemaVersion, raw))

	pg := NewPostgres(db)
	loaded, err := pg.Load(context.Background(), state.ProjectID)
	require.NoError(t, err)

	assert.Equal(t, state, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLoadNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT schema_version, state FROM project_states").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"schema_version", "state"}))

	pg := NewPostgres(db)
	_, err = pg.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresLoadRejectsNewerSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT schema_version, state FROM project_states").
		WithArgs("prj-42").
		WillReturnRows(sqlmock.NewRows([]string{"schema_version", "state"}).
			AddRow(models.SchemaVersion+1, []byte(`{}`)))

	pg := NewPostgres(db)
	_, err = pg.Load(context.Background(), "prj-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema version")
}

func TestPostgresListIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT project_id FROM project_states").
		WillReturnRows(sqlmock.NewRows([]string{"project_id"}).AddRow("prj-1").AddRow("prj-2"))

	pg := NewPostgres(db)
	ids, err := pg.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"prj-1", "prj-2"}, ids)
}

func TestMemoryRoundTrip(t *testing.T) {
	mem := NewMemory()
	state := sampleState()

	require.NoError(t, mem.Save(context.Background(), state))

	loaded, err := mem.Load(context.Background(), state.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, state, loaded)

	ids, err := mem.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{state.ProjectID}, ids)

	_, err = mem.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
