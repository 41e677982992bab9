// internal/engine/auditlog/log_test.go
package auditlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rooftrust-engine/internal/common/config"
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/engine/compliance"
	"rooftrust-engine/internal/models"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newService() *Service {
	rules := config.DefaultRules()
	return NewService(compliance.NewGates(rules), rules)
}

func TestAppend(t *testing.T) {
	svc := newService()
	state := &models.ProjectState{Phase: models.PhaseTracking}

	entry, err := svc.Append(state, models.TagInsulationCheck, testNow)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", entry.Date)
	assert.Equal(t, models.TagInsulationCheck, entry.Tag)
	assert.True(t, entry.PhotoUploaded)
	require.NotNil(t, state.LastUpdateTimestamp)
	assert.Equal(t, testNow, *state.LastUpdateTimestamp)

	// Empty tag defaults to General.
	entry, err = svc.Append(state, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.TagGeneral, entry.Tag)
	assert.Len(t, state.DailyLogs, 2)
}

func TestAppendScaffoldGate(t *testing.T) {
	svc := newService()
	state := &models.ProjectState{Phase: models.PhaseTracking}
	state.Inputs.ScaffoldingRequired = true

	_, err := svc.Append(state, models.TagGeneral, testNow)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeScaffoldCertMissing, stderrors.AsStandard(err).Code)
	assert.Empty(t, state.DailyLogs)

	state.Contractor.ScaffoldCertRef = "TG20-2026-0117"
	_, err = svc.Append(state, models.TagGeneral, testNow)
	assert.NoError(t, err)
}

func TestAppendClearsDelayNotice(t *testing.T) {
	svc := newService()
	state := &models.ProjectState{Phase: models.PhaseTracking}
	sent := testNow.Add(-time.Hour)
	state.DelayNoticeSentAt = &sent

	_, err := svc.Append(state, models.TagGeneral, testNow)
	require.NoError(t, err)
	assert.Nil(t, state.DelayNoticeSentAt)
}

func TestLoggedToday(t *testing.T) {
	svc := newService()
	state := &models.ProjectState{Phase: models.PhaseTracking}

	_, err := svc.Append(state, models.TagInsulationCheck, testNow)
	require.NoError(t, err)

	assert.True(t, svc.LoggedToday(state, models.TagInsulationCheck, testNow))
	assert.False(t, svc.LoggedToday(state, models.TagStructuralFix, testNow))
	assert.False(t, svc.LoggedToday(state, models.TagInsulationCheck, testNow.Add(24*time.Hour)))
}

func TestGenerateHandover(t *testing.T) {
	svc := newService()
	state := &models.ProjectState{Phase: models.PhaseTracking}

	err := svc.GenerateHandover(state)
	require.Error(t, err)
	stdErr := stderrors.AsStandard(err)
	assert.Equal(t, stderrors.ErrCodeAuditIncomplete, stdErr.Code)
	assert.Equal(t, []string{models.TagInsulationCheck, models.TagStructuralFix}, stdErr.Missing)
	assert.False(t, state.HandoverPackGenerated)

	_, err = svc.Append(state, models.TagInsulationCheck, testNow)
	require.NoError(t, err)
	_, err = svc.Append(state, models.TagStructuralFix, testNow)
	require.NoError(t, err)

	require.NoError(t, svc.GenerateHandover(state))
	assert.True(t, state.HandoverPackGenerated)
}

func TestMarkSent(t *testing.T) {
	svc := newService()
	state := &models.ProjectState{Phase: models.PhaseTracking}

	err := svc.MarkSent(state)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeHandoverNotGenerated, stderrors.AsStandard(err).Code)

	state.HandoverPackGenerated = true
	require.NoError(t, svc.MarkSent(state))
	assert.True(t, state.HandoverPackSent)

	// Re-sending only re-affirms the flag.
	require.NoError(t, svc.MarkSent(state))
	assert.True(t, state.HandoverPackSent)
}

func TestBuildPack(t *testing.T) {
	svc := newService()
	state := &models.ProjectState{ProjectID: "prj-1", Phase: models.PhaseTracking}
	state.Contractor.Name = "London Master Roofing Ltd"

	for _, tag := range []string{models.TagInsulationCheck, models.TagStructuralFix, models.TagInsulationCheck} {
		_, err := svc.Append(state, tag, testNow)
		require.NoError(t, err)
	}

	pack := svc.BuildPack(state, testNow)
	assert.Equal(t, "prj-1", pack.ProjectID)
	assert.Equal(t, 3, pack.LogEntryCount)
	assert.Equal(t, []string{models.TagInsulationCheck, models.TagStructuralFix}, pack.Categories)
}
