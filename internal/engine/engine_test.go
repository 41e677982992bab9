// internal/engine/engine_test.go
package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rooftrust-engine/internal/common/config"
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/common/logger"
	"rooftrust-engine/internal/common/notify"
	"rooftrust-engine/internal/engine/variations"
	"rooftrust-engine/internal/models"
	"rooftrust-engine/internal/store"
)

type staticOracle struct {
	spec models.FixingSpec
	err  error
}

func (o staticOracle) Lookup(context.Context, string) (models.FixingSpec, error) {
	return o.spec, o.err
}

type recordingNotifier struct {
	mu           sync.Mutex
	handovers    []notify.HandoverPack
	delayNotices []string
	failDelivery bool
}

func (n *recordingNotifier) SendHandoverPack(_ context.Context, _ string, pack notify.HandoverPack) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failDelivery {
		return errors.New("smtp unavailable")
	}
	n.handovers = append(n.handovers, pack)
	return nil
}

func (n *recordingNotifier) SendDelayNotice(_ context.Context, projectID string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failDelivery {
		return errors.New("sns unavailable")
	}
	n.delayNotices = append(n.delayNotices, projectID)
	return nil
}

type recordingArchiver struct {
	mu      sync.Mutex
	entries []models.DailyLogEntry
	err     error
}

func (a *recordingArchiver) IndexLogEntry(_ context.Context, _ string, entry models.DailyLogEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

type failingStore struct {
	store.Store
	saveErr error
}

func (f *failingStore) Save(ctx context.Context, state *models.ProjectState) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, state)
}

type testHarness struct {
	engine   *Engine
	store    store.Store
	notifier *recordingNotifier
	archiver *recordingArchiver
	now      *time.Time
}

func newHarness(t *testing.T, opts ...func(*Deps)) *testHarness {
	t.Helper()

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	notifier := &recordingNotifier{}
	archiver := &recordingArchiver{}

	deps := Deps{
		Store: store.NewMemory(),
		Oracle: staticOracle{spec: models.FixingSpec{
			Zone:     "Zone 4",
			Schedule: "All perimeter tiles twice-fixed; clips required for zones A & B",
			Ref:      "BS 5534:2014+A2:2018",
		}},
		Notifier: notifier,
		Archiver: archiver,
		Logger:   logger.NewTestLogger(t),
		Clock:    func() time.Time { return now },
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testHarness{
		engine:   New(config.DefaultRules(), deps),
		store:    deps.Store,
		notifier: notifier,
		archiver: archiver,
		now:      &now,
	}
}

func (h *testHarness) onboard(t *testing.T, projectID, regNumber string) {
	t.Helper()
	expiry := h.now.Add(365 * 24 * time.Hour)
	require.NoError(t, h.engine.CompleteOnboarding(context.Background(), projectID, OnboardingRequest{
		Name:               "Apex Roofing Ltd",
		RegistrationNumber: regNumber,
		InsuranceExpiry:    &expiry,
	}))
}

func (h *testHarness) startTracking(t *testing.T, projectID string) {
	t.Helper()
	h.onboard(t, projectID, "NFRC-12345")
	require.NoError(t, h.engine.StartProject(context.Background(), projectID))
}

func errCode(t *testing.T, err error) stderrors.ErrorCode {
	t.Helper()
	std := stderrors.AsStandard(err)
	require.NotNil(t, std, "expected a StandardError, got %v", err)
	return std.Code
}

func TestCompleteOnboarding(t *testing.T) {
	tests := []struct {
		name       string
		regNumber  string
		wantStatus models.VerificationStatus
	}{
		{"nfrc prefix goes to pending", "NFRC-12345", models.VerificationPending},
		{"competent-roofer prefix goes to pending", "CR-98765", models.VerificationPending},
		{"lowercase prefix still recognised", "nfrc-777", models.VerificationPending},
		{"unknown scheme stays unverified", "ACME-1", models.VerificationUnverified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.onboard(t, "p1", tt.regNumber)

			state, err := h.engine.ProjectState(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, state.Contractor.VerificationStatus)
			assert.False(t, state.Contractor.IsVerified, "prefix match must never auto-verify")
			assert.Equal(t, models.PhaseSurvey, state.Phase)
			assert.True(t, state.Contractor.OnboardingCompleted)
		})
	}
}

func TestCompleteOnboardingValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.engine.CompleteOnboarding(ctx, "p1", OnboardingRequest{Name: "", RegistrationNumber: "NFRC-1"})
	assert.Equal(t, stderrors.ErrCodeValidationFailed, errCode(t, err))

	err = h.engine.CompleteOnboarding(ctx, "p1", OnboardingRequest{Name: "Apex", RegistrationNumber: "  "})
	assert.Equal(t, stderrors.ErrCodeValidationFailed, errCode(t, err))

	// Failed attempts must not advance the phase.
	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseOnboarding, state.Phase)
}

func TestApproveVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("approves pending check", func(t *testing.T) {
		h := newHarness(t)
		h.onboard(t, "p1", "NFRC-12345")

		require.NoError(t, h.engine.ApproveVerification(ctx, "p1", true))

		state, err := h.engine.ProjectState(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.VerificationVerified, state.Contractor.VerificationStatus)
		assert.True(t, state.Contractor.IsVerified)
	})

	t.Run("rejects pending check", func(t *testing.T) {
		h := newHarness(t)
		h.onboard(t, "p1", "NFRC-12345")

		require.NoError(t, h.engine.ApproveVerification(ctx, "p1", false))

		state, err := h.engine.ProjectState(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, models.VerificationUnverified, state.Contractor.VerificationStatus)
		assert.False(t, state.Contractor.IsVerified)
	})

	t.Run("resolves exactly once", func(t *testing.T) {
		h := newHarness(t)
		h.onboard(t, "p1", "NFRC-12345")

		require.NoError(t, h.engine.ApproveVerification(ctx, "p1", true))
		err := h.engine.ApproveVerification(ctx, "p1", true)
		assert.Equal(t, stderrors.ErrCodeVerificationNotPending, errCode(t, err))
	})

	t.Run("fails when nothing pending", func(t *testing.T) {
		h := newHarness(t)
		h.onboard(t, "p1", "ACME-1")

		err := h.engine.ApproveVerification(ctx, "p1", true)
		assert.Equal(t, stderrors.ErrCodeVerificationNotPending, errCode(t, err))
	})
}

func TestPhaseGating(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		call func(h *testHarness) error
	}{
		{"survey input before onboarding", func(h *testHarness) error {
			return h.engine.UpdateSurveyInput(ctx, "p1", "roof_area_sqm", 100.0)
		}},
		{"payment request before tracking", func(h *testHarness) error {
			return h.engine.RequestPayment(ctx, "p1", models.StageDeposit)
		}},
		{"daily photo before tracking", func(h *testHarness) error {
			return h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral)
		}},
		{"start project before onboarding", func(h *testHarness) error {
			return h.engine.StartProject(ctx, "p1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			err := tt.call(h)
			assert.Equal(t, stderrors.ErrCodePhaseViolation, errCode(t, err))
		})
	}
}

func TestSurveyInputsFrozenAfterStart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	err := h.engine.UpdateSurveyInput(ctx, "p1", "roof_area_sqm", 120.0)
	assert.Equal(t, stderrors.ErrCodePhaseViolation, errCode(t, err))
}

func TestLookupWindZone(t *testing.T) {
	ctx := context.Background()

	t.Run("stores fixing spec and postcode", func(t *testing.T) {
		h := newHarness(t)
		h.onboard(t, "p1", "NFRC-12345")

		spec, err := h.engine.LookupWindZone(ctx, "p1", "AB12 3CD")
		require.NoError(t, err)
		assert.Equal(t, "Zone 4", spec.Zone)

		state, err := h.engine.ProjectState(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, state.FixingSpec)
		assert.Equal(t, "Zone 4", state.FixingSpec.Zone)
		assert.Equal(t, "AB12 3CD", state.Inputs.Postcode)
	})

	t.Run("rejects blank postcode", func(t *testing.T) {
		h := newHarness(t)
		h.onboard(t, "p1", "NFRC-12345")

		_, err := h.engine.LookupWindZone(ctx, "p1", "   ")
		assert.Equal(t, stderrors.ErrCodeValidationFailed, errCode(t, err))
	})

	t.Run("wraps oracle failure", func(t *testing.T) {
		h := newHarness(t, func(d *Deps) {
			d.Oracle = staticOracle{err: errors.New("upstream timed out")}
		})
		h.onboard(t, "p1", "NFRC-12345")

		_, err := h.engine.LookupWindZone(ctx, "p1", "AB12 3CD")
		assert.Equal(t, stderrors.ErrCodeOracleFailed, errCode(t, err))

		state, err := h.engine.ProjectState(ctx, "p1")
		require.NoError(t, err)
		assert.Nil(t, state.FixingSpec, "failed lookup must not mutate state")
	})
}

func TestStartProject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseTracking, state.Phase)
	require.NotNil(t, state.StartDate)
	assert.Equal(t, *h.now, *state.StartDate)
	require.NotNil(t, state.LastUpdateTimestamp)
	assert.True(t, state.CoolingOffActive)
}

func TestWaiveCoolingOff(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	require.NoError(t, h.engine.WaiveCoolingOff(ctx, "p1"))

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, state.CoolingOffActive)
	require.NotNil(t, state.CoolingOffWaivedAt)
}

func TestCoolingOffLapsesAfterStatutoryWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, state.CoolingOffActive)

	*h.now = h.now.Add(15 * 24 * time.Hour)

	state, err = h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, state.CoolingOffActive)
}

func TestUpdateWeather(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	require.NoError(t, h.engine.UpdateWeather(ctx, "p1", models.WeatherReading{
		RainMMPerHour: 6, WindMPH: 20, TempCelsius: 8,
	}))

	verdict, err := h.engine.WeatherSafety(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, verdict.Safe)

	err = h.engine.UpdateWeather(ctx, "p1", models.WeatherReading{RainMMPerHour: -1})
	assert.Equal(t, stderrors.ErrCodeValidationFailed, errCode(t, err))
}

func TestPaymentLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	require.NoError(t, h.engine.RequestPayment(ctx, "p1", models.StageDeposit))
	require.NoError(t, h.engine.ReleasePayment(ctx, "p1", models.StageDeposit))

	err := h.engine.RequestPayment(ctx, "p1", models.StageDeposit)
	assert.Equal(t, stderrors.ErrCodeStageAlreadyReleased, errCode(t, err))

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	stage := state.Stage(models.StageDeposit)
	require.NotNil(t, stage)
	assert.Equal(t, models.PaymentReleased, stage.Status)
}

func TestFinalReleaseRequiresFullCloseout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))

	// Complete mandatory audit coverage.
	for _, tag := range []string{models.TagGeneral, models.TagInsulationCheck, models.TagStructuralFix} {
		require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", tag))
	}

	require.NoError(t, h.engine.RequestPayment(ctx, "p1", models.StageFinal))

	err := h.engine.ReleasePayment(ctx, "p1", models.StageFinal)
	assert.Equal(t, stderrors.ErrCodeChecklistIncomplete, errCode(t, err))

	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		require.NoError(t, h.engine.UpdateChecklist(ctx, "p1", id, true))
	}

	err = h.engine.ReleasePayment(ctx, "p1", models.StageFinal)
	assert.Equal(t, stderrors.ErrCodeHandoverNotSent, errCode(t, err))

	require.NoError(t, h.engine.GenerateHandoverPack(ctx, "p1"))
	require.NoError(t, h.engine.SendHandoverEmail(ctx, "p1", "owner@example.com"))
	require.NoError(t, h.engine.ReleasePayment(ctx, "p1", models.StageFinal))

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	stage := state.Stage(models.StageFinal)
	require.NotNil(t, stage)
	assert.Equal(t, models.PaymentReleased, stage.Status)
	require.Len(t, h.notifier.handovers, 1)
	assert.Equal(t, 3, h.notifier.handovers[0].LogEntryCount)
}

func TestVariationFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	order, err := h.engine.ApplyVariation(ctx, "p1", variations.Request{
		Reason:        "Rotten battens under ridge line",
		ExtraCost:     500,
		DaysAdded:     2,
		ProofPhotoURL: "https://photos.example.com/battens.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, models.VariationPending, order.Status)

	// Pending orders do not move the quote.
	quote, err := h.engine.CurrentEstimate(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, quote.VariationCost)

	decided, err := h.engine.UpdateVariationStatus(ctx, "p1", order.ID, models.VariationApproved, "agreed on call")
	require.NoError(t, err)
	assert.Equal(t, models.VariationApproved, decided.Status)
	assert.Equal(t, "agreed on call", decided.HomeownerMessage)

	quote, err = h.engine.CurrentEstimate(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 500.0, quote.VariationCost)
	assert.Equal(t, 2, quote.VariationDays)

	_, err = h.engine.UpdateVariationStatus(ctx, "p1", order.ID, models.VariationRejected, "")
	assert.Equal(t, stderrors.ErrCodeOrderAlreadyResolved, errCode(t, err))
}

func TestDailyPhotoRequiresScaffoldCert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	err := h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral)
	assert.Equal(t, stderrors.ErrCodeScaffoldCertMissing, errCode(t, err))

	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))
	require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral))

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, state.DailyLogs, 1)
	assert.Equal(t, models.TagGeneral, state.DailyLogs[0].Tag)
}

func TestDailyPhotoArchived(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))

	require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", models.TagInsulationCheck))

	require.Len(t, h.archiver.entries, 1)
	assert.Equal(t, models.TagInsulationCheck, h.archiver.entries[0].Tag)
}

func TestDailyPhotoSucceedsWhenArchiverDown(t *testing.T) {
	h := newHarness(t)
	h.archiver.err = errors.New("elasticsearch unreachable")
	ctx := context.Background()
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))

	require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral))

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, state.DailyLogs, 1)
}

func TestGenerateHandoverPackIncomplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))
	require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral))

	err := h.engine.GenerateHandoverPack(ctx, "p1")
	std := stderrors.AsStandard(err)
	require.NotNil(t, std)
	assert.Equal(t, stderrors.ErrCodeAuditIncomplete, std.Code)
	assert.ElementsMatch(t, []string{models.TagInsulationCheck, models.TagStructuralFix}, std.Missing)
}

func TestHandoverEmailDeliveryFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.notifier.failDelivery = true
	ctx := context.Background()
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))
	for _, tag := range []string{models.TagGeneral, models.TagInsulationCheck, models.TagStructuralFix} {
		require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", tag))
	}
	require.NoError(t, h.engine.GenerateHandoverPack(ctx, "p1"))

	require.NoError(t, h.engine.SendHandoverEmail(ctx, "p1", "owner@example.com"))

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, state.HandoverPackSent)
}

func TestResetProject(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")

	require.NoError(t, h.engine.ResetProject(ctx, "p1"))

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseOnboarding, state.Phase)
	assert.Empty(t, state.Contractor.Name)
	assert.Len(t, state.PaymentStages, 3)
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backing := store.NewMemory()

	h := newHarness(t, func(d *Deps) { d.Store = backing })
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))
	require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral))

	// A fresh engine over the same backing store sees identical state.
	h2 := newHarness(t, func(d *Deps) { d.Store = backing })
	state, err := h2.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseTracking, state.Phase)
	assert.Equal(t, "SCAF-001", state.Contractor.ScaffoldCertRef)
	require.Len(t, state.DailyLogs, 1)
	assert.Equal(t, models.SchemaVersion, state.SchemaVersion)
}

func TestPersistenceFailureSurfaced(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Store = &failingStore{Store: store.NewMemory(), saveErr: errors.New("connection reset")}
	})

	expiry := h.now.Add(24 * time.Hour)
	err := h.engine.CompleteOnboarding(context.Background(), "p1", OnboardingRequest{
		Name:               "Apex Roofing Ltd",
		RegistrationNumber: "NFRC-12345",
		InsuranceExpiry:    &expiry,
	})

	std := stderrors.AsStandard(err)
	require.NotNil(t, std)
	assert.Equal(t, stderrors.ErrCodePersistenceFailed, std.Code)
	assert.True(t, std.Retryable)
}

func TestNotifyOverdue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))
	require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral))

	// Nothing overdue yet.
	sent, err := h.engine.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	// Jump past the silence threshold.
	*h.now = h.now.Add(49 * time.Hour)

	sent, err = h.engine.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"p1"}, h.notifier.delayNotices)

	// One notice per episode.
	sent, err = h.engine.NotifyOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	// A fresh log entry re-arms the watchdog.
	require.NoError(t, h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral))
	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, state.DelayNoticeSentAt)
}

func TestConcurrentCommandsSerialised(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.startTracking(t, "p1")
	require.NoError(t, h.engine.RecordScaffoldCert(ctx, "p1", "SCAF-001"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.engine.UploadDailyPhoto(ctx, "p1", models.TagGeneral)
		}()
	}
	wg.Wait()

	state, err := h.engine.ProjectState(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, state.DailyLogs, 20)
}
