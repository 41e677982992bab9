// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rooftrust-engine/internal/common/config"
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/common/logger"
	"rooftrust-engine/internal/common/metrics"
	"rooftrust-engine/internal/common/notify"
	"rooftrust-engine/internal/common/observability"
	"rooftrust-engine/internal/engine/auditlog"
	"rooftrust-engine/internal/engine/compliance"
	"rooftrust-engine/internal/engine/payments"
	"rooftrust-engine/internal/engine/phase"
	"rooftrust-engine/internal/engine/survey"
	"rooftrust-engine/internal/engine/variations"
	"rooftrust-engine/internal/models"
	"rooftrust-engine/internal/store"
)

// Clock supplies the evaluation instant; injectable for tests.
type Clock func() time.Time

// Archiver indexes golden-thread evidence into the search backend.
// Archiving is best-effort: a failure is logged, never surfaced to the
// caller.
type Archiver interface {
	IndexLogEntry(ctx context.Context, projectID string, entry models.DailyLogEntry) error
}

// Deps are the engine's external collaborators.
type Deps struct {
	Store    store.Store
	Oracle   survey.WindZoneOracle
	Notifier notify.Notifier
	Archiver Archiver                     // optional
	Obs      *observability.Observability // optional
	Logger   logger.Logger
	Clock    Clock // optional, defaults to time.Now
}

// Engine owns every ProjectState aggregate and exposes the command/query
// surface. One mutex per aggregate serialises writes so each command is one
// atomic state-snapshot transition; the whole aggregate is persisted after
// every mutation.
type Engine struct {
	rules    config.RulesConfig
	store    store.Store
	oracle   survey.WindZoneOracle
	notifier notify.Notifier
	archiver Archiver
	obs      *observability.Observability
	logger   logger.Logger
	clock    Clock

	phases     phase.Controller
	calc       *survey.Calculator
	gates      *compliance.Gates
	payments   *payments.Ledger
	variations *variations.Ledger
	audit      *auditlog.Service

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	state *models.ProjectState
}

func New(rules config.RulesConfig, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	gates := compliance.NewGates(rules)

	return &Engine{
		rules:      rules,
		store:      deps.Store,
		oracle:     deps.Oracle,
		notifier:   deps.Notifier,
		archiver:   deps.Archiver,
		obs:        deps.Obs,
		logger:     deps.Logger.WithFields(map[string]interface{}{"component": "engine"}),
		clock:      deps.Clock,
		calc:       survey.NewCalculator(rules),
		gates:      gates,
		payments:   payments.NewLedger(gates),
		variations: variations.NewLedger(),
		audit:      auditlog.NewService(gates, rules),
		sessions:   make(map[string]*session),
	}
}

// newProjectState builds a fresh aggregate from the rules table.
func (e *Engine) newProjectState(projectID string) *models.ProjectState {
	state := &models.ProjectState{
		SchemaVersion: models.SchemaVersion,
		ProjectID:     projectID,
		Phase:         models.PhaseOnboarding,
		Contractor: models.ContractorProfile{
			VerificationStatus: models.VerificationUnverified,
		},
		Weather:       models.WeatherReading{TempCelsius: 15},
		DocType:       models.NonBindingEstimate,
		PaymentStages: payments.InitStages(e.rules),
	}
	for _, item := range e.rules.Checklist {
		state.CompletionChecklist = append(state.CompletionChecklist,
			models.ChecklistItem{ID: item.ID, Label: item.Label})
	}
	return state
}

// session returns the per-project aggregate, loading it from durable storage
// on first touch and creating a fresh one for unseen ids.
func (e *Engine) session(ctx context.Context, projectID string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s, ok := e.sessions[projectID]; ok {
		return s, nil
	}

	state, err := e.store.Load(ctx, projectID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, stderrors.NewPersistenceError(err)
		}
		state = e.newProjectState(projectID)
	}

	s := &session{state: state}
	e.sessions[projectID] = s
	metrics.ProjectsActive.Set(float64(len(e.sessions)))
	return s, nil
}

// withProject runs one command against the aggregate under its write lock
// and persists the full state afterwards. A persistence failure is surfaced
// distinctly and the in-memory mutation is kept; the caller may retry the
// save by re-issuing the command.
func (e *Engine) withProject(ctx context.Context, projectID, command string, fn func(*models.ProjectState) error) error {
	started := e.clock()

	s, err := e.session(ctx, projectID)
	if err != nil {
		e.recordFailure(ctx, command, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.state); err != nil {
		e.recordFailure(ctx, command, err)
		return err
	}

	if err := e.store.Save(ctx, s.state); err != nil {
		perr := stderrors.NewPersistenceError(err)
		e.logger.Error("failed to persist project state", map[string]interface{}{
			"projectId": projectID,
			"command":   command,
			"error":     err.Error(),
		})
		e.recordFailure(ctx, command, perr)
		return perr
	}

	metrics.EngineCommandsTotal.WithLabelValues(command).Inc()
	metrics.EngineCommandDuration.WithLabelValues(command).Observe(e.clock().Sub(started).Seconds())
	if e.obs != nil {
		e.obs.RecordCommandProcessed(ctx, command, "success")
		e.obs.RecordCommandDuration(ctx, command, e.clock().Sub(started))
	}
	return nil
}

func (e *Engine) recordFailure(ctx context.Context, command string, err error) {
	code := string(stderrors.Normalize(err).Code)
	metrics.EngineCommandFailures.WithLabelValues(command, code).Inc()
	if e.obs != nil {
		e.obs.RecordCommandProcessed(ctx, command, code)
	}
}

// readProject runs a pure query against the aggregate under its lock.
func (e *Engine) readProject(ctx context.Context, projectID string, fn func(*models.ProjectState)) error {
	s, err := e.session(ctx, projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
	return nil
}

// ==========================
// Commands: onboarding
// ==========================

// OnboardingRequest carries the contractor registration payload.
type OnboardingRequest struct {
	Name               string     `json:"name"`
	RegistrationNumber string     `json:"registrationNumber"`
	InsuranceExpiry    *time.Time `json:"insuranceExpiry,omitempty"`
}

// CompleteOnboarding registers the contractor and advances to the survey
// phase. A recognised scheme prefix puts verification into pending, never
// straight to verified; that takes the explicit verification decision.
func (e *Engine) CompleteOnboarding(ctx context.Context, projectID string, req OnboardingRequest) error {
	return e.withProject(ctx, projectID, "complete-onboarding", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "complete-onboarding", models.PhaseOnboarding); err != nil {
			return err
		}
		if strings.TrimSpace(req.Name) == "" {
			return stderrors.NewValidationError("contractor name must not be empty")
		}
		if strings.TrimSpace(req.RegistrationNumber) == "" {
			return stderrors.NewValidationError("registration number must not be empty")
		}

		status := models.VerificationUnverified
		upper := strings.ToUpper(req.RegistrationNumber)
		for _, prefix := range e.rules.Verification.RegistryPrefixes {
			if strings.HasPrefix(upper, prefix) {
				status = models.VerificationPending
				break
			}
		}

		state.Contractor.Name = req.Name
		state.Contractor.RegistrationNumber = req.RegistrationNumber
		state.Contractor.VerificationStatus = status
		state.Contractor.IsVerified = false
		state.Contractor.OnboardingCompleted = true
		state.Contractor.InsuranceExpiry = req.InsuranceExpiry

		e.phases.Advance(state)
		return nil
	})
}

// ApproveVerification is the external-verifier callback: it resolves a
// pending registry check exactly once.
func (e *Engine) ApproveVerification(ctx context.Context, projectID string, approved bool) error {
	return e.withProject(ctx, projectID, "approve-verification", func(state *models.ProjectState) error {
		if err := e.phases.RequireAtLeast(state, "approve-verification", models.PhaseSurvey); err != nil {
			return err
		}
		if state.Contractor.VerificationStatus != models.VerificationPending {
			return stderrors.NewOrderingError(stderrors.ErrCodeVerificationNotPending,
				"verification is "+string(state.Contractor.VerificationStatus)+", expected pending")
		}

		if approved {
			state.Contractor.VerificationStatus = models.VerificationVerified
			state.Contractor.IsVerified = true
		} else {
			state.Contractor.VerificationStatus = models.VerificationUnverified
		}
		return nil
	})
}

// UploadCredential stores the contractor's credential image reference.
func (e *Engine) UploadCredential(ctx context.Context, projectID, imageURL string) error {
	return e.withProject(ctx, projectID, "upload-credential", func(state *models.ProjectState) error {
		if err := e.phases.RequireAtLeast(state, "upload-credential", models.PhaseSurvey); err != nil {
			return err
		}
		if strings.TrimSpace(imageURL) == "" {
			return stderrors.NewValidationError("credential image reference must not be empty")
		}
		state.Contractor.CredentialImageURL = imageURL
		return nil
	})
}

// ==========================
// Commands: survey
// ==========================

// UpdateSurveyInput merges one field into the survey inputs and recomputes
// the document classification. Inputs are frozen once tracking begins.
func (e *Engine) UpdateSurveyInput(ctx context.Context, projectID, key string, value interface{}) error {
	return e.withProject(ctx, projectID, "update-survey-input", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "update-survey-input", models.PhaseSurvey); err != nil {
			return err
		}
		return e.calc.ApplyInput(state, key, value)
	})
}

// LookupWindZone consults the wind-uplift oracle for the postcode and stores
// the resulting fixing spec.
func (e *Engine) LookupWindZone(ctx context.Context, projectID, postcode string) (*models.FixingSpec, error) {
	var spec models.FixingSpec
	err := e.withProject(ctx, projectID, "lookup-wind-zone", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "lookup-wind-zone", models.PhaseSurvey); err != nil {
			return err
		}
		if strings.TrimSpace(postcode) == "" {
			return stderrors.NewValidationError("postcode must not be empty")
		}

		result, err := e.oracle.Lookup(ctx, postcode)
		if err != nil {
			if stderrors.AsStandard(err) != nil {
				return err
			}
			return stderrors.NewOracleError(err)
		}

		spec = result
		state.Inputs.Postcode = postcode
		state.FixingSpec = &spec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &spec, nil
}

// StartProject moves to live tracking, stamping the start date and opening
// the statutory cooling-off window.
func (e *Engine) StartProject(ctx context.Context, projectID string) error {
	return e.withProject(ctx, projectID, "start-project", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "start-project", models.PhaseSurvey); err != nil {
			return err
		}

		now := e.clock()
		state.StartDate = &now
		state.LastUpdateTimestamp = &now
		state.CoolingOffActive = true
		e.phases.Advance(state)
		return nil
	})
}

// ==========================
// Commands: tracking
// ==========================

// WaiveCoolingOff records the homeowner's explicit consent to start work
// inside the cooling-off window.
func (e *Engine) WaiveCoolingOff(ctx context.Context, projectID string) error {
	return e.withProject(ctx, projectID, "waive-cooling-off", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "waive-cooling-off", models.PhaseTracking); err != nil {
			return err
		}
		now := e.clock()
		state.CoolingOffActive = false
		state.CoolingOffWaivedAt = &now
		return nil
	})
}

// UpdateWeather ingests a stub telemetry reading.
func (e *Engine) UpdateWeather(ctx context.Context, projectID string, reading models.WeatherReading) error {
	return e.withProject(ctx, projectID, "update-weather", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "update-weather", models.PhaseTracking); err != nil {
			return err
		}
		if reading.RainMMPerHour < 0 || reading.WindMPH < 0 {
			return stderrors.NewValidationError("weather readings must not be negative")
		}
		state.Weather = reading
		return nil
	})
}

// RequestPayment marks an escrow stage as requested, gated on insurance.
func (e *Engine) RequestPayment(ctx context.Context, projectID string, stageID models.PaymentStageID) error {
	return e.withProject(ctx, projectID, "request-payment", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "request-payment", models.PhaseTracking); err != nil {
			return err
		}
		return e.payments.Request(state, stageID, e.clock())
	})
}

// ReleasePayment releases an escrow stage; the final balance is gated on the
// checklist, the sent handover pack and a prior request.
func (e *Engine) ReleasePayment(ctx context.Context, projectID string, stageID models.PaymentStageID) error {
	return e.withProject(ctx, projectID, "release-payment", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "release-payment", models.PhaseTracking); err != nil {
			return err
		}
		return e.payments.Release(state, stageID)
	})
}

// UpdateChecklist toggles one completion checklist item.
func (e *Engine) UpdateChecklist(ctx context.Context, projectID, itemID string, checked bool) error {
	return e.withProject(ctx, projectID, "update-checklist", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "update-checklist", models.PhaseTracking); err != nil {
			return err
		}
		return e.payments.UpdateChecklist(state, itemID, checked)
	})
}

// ApplyVariation submits a contractor change order for homeowner approval.
func (e *Engine) ApplyVariation(ctx context.Context, projectID string, req variations.Request) (*models.VariationOrder, error) {
	var created models.VariationOrder
	err := e.withProject(ctx, projectID, "apply-variation", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "apply-variation", models.PhaseTracking); err != nil {
			return err
		}
		order, err := e.variations.Apply(state, req, e.clock())
		if err != nil {
			return err
		}
		created = *order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateVariationStatus resolves a pending change order exactly once.
func (e *Engine) UpdateVariationStatus(ctx context.Context, projectID, orderID string, status models.VariationStatus, message string) (*models.VariationOrder, error) {
	var decided models.VariationOrder
	err := e.withProject(ctx, projectID, "update-variation-status", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "update-variation-status", models.PhaseTracking); err != nil {
			return err
		}
		order, err := e.variations.Decide(state, orderID, status, message, e.clock())
		if err != nil {
			return err
		}
		decided = *order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &decided, nil
}

// RecordScaffoldCert stores the scaffolding certification reference,
// unblocking daily-log submission.
func (e *Engine) RecordScaffoldCert(ctx context.Context, projectID, certRef string) error {
	return e.withProject(ctx, projectID, "record-scaffold-cert", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "record-scaffold-cert", models.PhaseTracking); err != nil {
			return err
		}
		if strings.TrimSpace(certRef) == "" {
			return stderrors.NewValidationError("scaffold certification reference must not be empty")
		}
		state.Contractor.ScaffoldCertRef = certRef
		return nil
	})
}

// UploadDailyPhoto appends a progress entry to the golden thread and
// refreshes the last-update timestamp.
func (e *Engine) UploadDailyPhoto(ctx context.Context, projectID, tag string) error {
	var entry models.DailyLogEntry
	err := e.withProject(ctx, projectID, "upload-daily-photo", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "upload-daily-photo", models.PhaseTracking); err != nil {
			return err
		}
		appended, err := e.audit.Append(state, tag, e.clock())
		if err != nil {
			return err
		}
		entry = *appended
		return nil
	})
	if err != nil {
		return err
	}

	if e.archiver != nil {
		if err := e.archiver.IndexLogEntry(ctx, projectID, entry); err != nil {
			e.logger.Warn("golden-thread archive indexing failed", map[string]interface{}{
				"projectId": projectID,
				"tag":       entry.Tag,
				"error":     err.Error(),
			})
		}
	}
	return nil
}

// GenerateHandoverPack marks the pack as generated once audit coverage is
// complete; the failure carries the exact missing categories.
func (e *Engine) GenerateHandoverPack(ctx context.Context, projectID string) error {
	return e.withProject(ctx, projectID, "generate-handover-pack", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "generate-handover-pack", models.PhaseTracking); err != nil {
			return err
		}
		return e.audit.GenerateHandover(state)
	})
}

// SendHandoverEmail marks the pack as sent and hands delivery to the email
// collaborator. Delivery failure never reverts the state flag.
func (e *Engine) SendHandoverEmail(ctx context.Context, projectID, recipient string) error {
	var pack notify.HandoverPack
	err := e.withProject(ctx, projectID, "send-handover-email", func(state *models.ProjectState) error {
		if err := e.phases.Require(state, "send-handover-email", models.PhaseTracking); err != nil {
			return err
		}
		if err := e.audit.MarkSent(state); err != nil {
			return err
		}
		pack = e.audit.BuildPack(state, e.clock())
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.notifier.SendHandoverPack(ctx, recipient, pack); err != nil {
		e.logger.Warn("handover email delivery failed", map[string]interface{}{
			"projectId": projectID,
			"error":     err.Error(),
		})
	}
	return nil
}

// ResetProject replaces the aggregate with a fresh one.
func (e *Engine) ResetProject(ctx context.Context, projectID string) error {
	return e.withProject(ctx, projectID, "reset-project", func(state *models.ProjectState) error {
		*state = *e.newProjectState(projectID)
		return nil
	})
}

// ==========================
// Queries
// ==========================

// ProjectState returns a deep-enough copy of the aggregate for rendering.
func (e *Engine) ProjectState(ctx context.Context, projectID string) (*models.ProjectState, error) {
	var out models.ProjectState
	err := e.readProject(ctx, projectID, func(state *models.ProjectState) {
		out = *state
		out.PaymentStages = append([]models.PaymentStage(nil), state.PaymentStages...)
		out.CompletionChecklist = append([]models.ChecklistItem(nil), state.CompletionChecklist...)
		out.Variations = append([]models.VariationOrder(nil), state.Variations...)
		out.DailyLogs = append([]models.DailyLogEntry(nil), state.DailyLogs...)

		// The statutory window lapses on its own; waiving is only needed to
		// start work early.
		if out.CoolingOffActive && state.StartDate != nil {
			windowEnd := state.StartDate.Add(time.Duration(e.rules.CoolingOff.Days) * 24 * time.Hour)
			if e.clock().After(windowEnd) {
				out.CoolingOffActive = false
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentEstimate recomputes the quote from current inputs, fixing spec and
// approved variations.
func (e *Engine) CurrentEstimate(ctx context.Context, projectID string) (*models.QuoteResult, error) {
	var quote models.QuoteResult
	err := e.readProject(ctx, projectID, func(state *models.ProjectState) {
		quote = e.calc.Estimate(state)
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

// WeatherSafety evaluates the three safety thresholds.
func (e *Engine) WeatherSafety(ctx context.Context, projectID string) (*models.SafetyVerdict, error) {
	var verdict models.SafetyVerdict
	err := e.readProject(ctx, projectID, func(state *models.ProjectState) {
		verdict = e.gates.WeatherSafety(state)
	})
	if err != nil {
		return nil, err
	}
	return &verdict, nil
}

// AuditProgress summarises mandatory-category coverage.
func (e *Engine) AuditProgress(ctx context.Context, projectID string) (*models.AuditProgress, error) {
	var progress models.AuditProgress
	err := e.readProject(ctx, projectID, func(state *models.ProjectState) {
		progress = e.gates.AuditProgress(state)
	})
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// InsuranceValid reports whether cover is in date at this instant.
func (e *Engine) InsuranceValid(ctx context.Context, projectID string) (bool, error) {
	var valid bool
	err := e.readProject(ctx, projectID, func(state *models.ProjectState) {
		valid = e.gates.InsuranceValid(state, e.clock())
	})
	return valid, err
}

// ==========================
// Overdue sweep
// ==========================

// NotifyOverdue scans every known project and issues one automated delay
// notice per overdue episode. Returns the number of notices sent.
func (e *Engine) NotifyOverdue(ctx context.Context) (int, error) {
	ids, err := e.store.ListIDs(ctx)
	if err != nil {
		return 0, stderrors.NewPersistenceError(err)
	}

	sent := 0
	for _, id := range ids {
		s, err := e.session(ctx, id)
		if err != nil {
			continue
		}

		s.mu.Lock()
		due := s.state.Phase == models.PhaseTracking &&
			s.state.DelayNoticeSentAt == nil &&
			e.gates.Overdue(s.state, e.clock())
		var hours int
		if due {
			hours = int(e.clock().Sub(*s.state.LastUpdateTimestamp).Hours())
		}
		s.mu.Unlock()

		if !due {
			continue
		}

		if err := e.notifier.SendDelayNotice(ctx, id, hours); err != nil {
			e.logger.Warn("delay notice delivery failed", map[string]interface{}{
				"projectId": id,
				"error":     err.Error(),
			})
			continue
		}

		s.mu.Lock()
		now := e.clock()
		s.state.DelayNoticeSentAt = &now
		saveErr := e.store.Save(ctx, s.state)
		s.mu.Unlock()

		if saveErr != nil {
			e.logger.Error("failed to persist delay-notice marker", map[string]interface{}{
				"projectId": id,
				"error":     saveErr.Error(),
			})
		}

		metrics.DelayNoticesSent.Inc()
		sent++
	}
	return sent, nil
}
