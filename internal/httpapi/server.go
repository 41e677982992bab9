// internal/httpapi/server.go

// Package httpapi exposes the engine's command and query surface over REST.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xeipuuv/gojsonschema"

	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/common/logger"
	"rooftrust-engine/internal/engine"
	"rooftrust-engine/internal/engine/variations"
	"rooftrust-engine/internal/models"
)

const maxBodyBytes = 1 << 20

// Server routes HTTP requests to engine commands and queries.
type Server struct {
	engine *engine.Engine
	logger logger.Logger
}

func NewServer(eng *engine.Engine, log logger.Logger) *Server {
	return &Server{
		engine: eng,
		logger: log.WithFields(map[string]interface{}{"component": "httpapi"}),
	}
}

// Routes mounts the full API on a chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/", s.handleGetState)
		r.Get("/estimate", s.handleGetEstimate)
		r.Get("/weather-safety", s.handleGetWeatherSafety)
		r.Get("/audit-progress", s.handleGetAuditProgress)
		r.Get("/insurance", s.handleGetInsurance)

		r.Post("/onboarding", s.handleOnboarding)
		r.Post("/verification", s.handleVerification)
		r.Post("/credential", s.handleCredential)
		r.Put("/survey/inputs", s.handleSurveyInput)
		r.Post("/survey/wind-zone", s.handleWindZone)
		r.Post("/start", s.handleStart)
		r.Post("/cooling-off/waiver", s.handleCoolingOffWaiver)
		r.Put("/weather", s.handleWeather)
		r.Post("/payments/{stageID}/request", s.handlePaymentRequest)
		r.Post("/payments/{stageID}/release", s.handlePaymentRelease)
		r.Put("/checklist/{itemID}", s.handleChecklist)
		r.Post("/variations", s.handleVariation)
		r.Post("/variations/{orderID}/decision", s.handleVariationDecision)
		r.Post("/scaffold-cert", s.handleScaffoldCert)
		r.Post("/daily-logs", s.handleDailyLog)
		r.Post("/handover/generate", s.handleHandoverGenerate)
		r.Post("/handover/send", s.handleHandoverSend)
		r.Post("/reset", s.handleReset)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==========================
// Queries
// ==========================

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.ProjectState(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetEstimate(w http.ResponseWriter, r *http.Request) {
	quote, err := s.engine.CurrentEstimate(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleGetWeatherSafety(w http.ResponseWriter, r *http.Request) {
	verdict, err := s.engine.WeatherSafety(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleGetAuditProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := s.engine.AuditProgress(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleGetInsurance(w http.ResponseWriter, r *http.Request) {
	valid, err := s.engine.InsuranceValid(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// ==========================
// Commands
// ==========================

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name               string     `json:"name"`
		RegistrationNumber string     `json:"registrationNumber"`
		InsuranceExpiry    *time.Time `json:"insuranceExpiry"`
	}
	if !s.readBody(w, r, onboardingSchema, &body) {
		return
	}

	err := s.engine.CompleteOnboarding(r.Context(), chi.URLParam(r, "projectID"), engine.OnboardingRequest{
		Name:               body.Name,
		RegistrationNumber: body.RegistrationNumber,
		InsuranceExpiry:    body.InsuranceExpiry,
	})
	s.finishCommand(w, r, err)
}

func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approved bool `json:"approved"`
	}
	if !s.readBody(w, r, verificationSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.ApproveVerification(r.Context(), chi.URLParam(r, "projectID"), body.Approved))
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageURL string `json:"imageUrl"`
	}
	if !s.readBody(w, r, credentialSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.UploadCredential(r.Context(), chi.URLParam(r, "projectID"), body.ImageURL))
}

func (s *Server) handleSurveyInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key   string      `json:"key"`
		Value interface{} `json:"value"`
	}
	if !s.readBody(w, r, surveyInputSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.UpdateSurveyInput(r.Context(), chi.URLParam(r, "projectID"), body.Key, body.Value))
}

func (s *Server) handleWindZone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Postcode string `json:"postcode"`
	}
	if !s.readBody(w, r, windZoneSchema, &body) {
		return
	}

	spec, err := s.engine.LookupWindZone(r.Context(), chi.URLParam(r, "projectID"), body.Postcode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, spec)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.finishCommand(w, r, s.engine.StartProject(r.Context(), chi.URLParam(r, "projectID")))
}

func (s *Server) handleCoolingOffWaiver(w http.ResponseWriter, r *http.Request) {
	s.finishCommand(w, r, s.engine.WaiveCoolingOff(r.Context(), chi.URLParam(r, "projectID")))
}

func (s *Server) handleWeather(w http.ResponseWriter, r *http.Request) {
	var body models.WeatherReading
	if !s.readBody(w, r, weatherSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.UpdateWeather(r.Context(), chi.URLParam(r, "projectID"), body))
}

func (s *Server) handlePaymentRequest(w http.ResponseWriter, r *http.Request) {
	stageID := models.PaymentStageID(chi.URLParam(r, "stageID"))
	s.finishCommand(w, r, s.engine.RequestPayment(r.Context(), chi.URLParam(r, "projectID"), stageID))
}

func (s *Server) handlePaymentRelease(w http.ResponseWriter, r *http.Request) {
	stageID := models.PaymentStageID(chi.URLParam(r, "stageID"))
	s.finishCommand(w, r, s.engine.ReleasePayment(r.Context(), chi.URLParam(r, "projectID"), stageID))
}

func (s *Server) handleChecklist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Checked bool `json:"checked"`
	}
	if !s.readBody(w, r, checklistSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.UpdateChecklist(r.Context(), chi.URLParam(r, "projectID"), chi.URLParam(r, "itemID"), body.Checked))
}

func (s *Server) handleVariation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason        string  `json:"reason"`
		ExtraCost     float64 `json:"extraCost"`
		DaysAdded     int     `json:"daysAdded"`
		ProofPhotoURL string  `json:"proofPhotoUrl"`
	}
	if !s.readBody(w, r, variationSchema, &body) {
		return
	}

	order, err := s.engine.ApplyVariation(r.Context(), chi.URLParam(r, "projectID"), variations.Request{
		Reason:        body.Reason,
		ExtraCost:     body.ExtraCost,
		DaysAdded:     body.DaysAdded,
		ProofPhotoURL: body.ProofPhotoURL,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleVariationDecision(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if !s.readBody(w, r, variationDecisionSchema, &body) {
		return
	}

	order, err := s.engine.UpdateVariationStatus(
		r.Context(),
		chi.URLParam(r, "projectID"),
		chi.URLParam(r, "orderID"),
		models.VariationStatus(body.Status),
		body.Message,
	)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleScaffoldCert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CertRef string `json:"certRef"`
	}
	if !s.readBody(w, r, scaffoldCertSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.RecordScaffoldCert(r.Context(), chi.URLParam(r, "projectID"), body.CertRef))
}

func (s *Server) handleDailyLog(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tag string `json:"tag"`
	}
	if !s.readBody(w, r, dailyLogSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.UploadDailyPhoto(r.Context(), chi.URLParam(r, "projectID"), body.Tag))
}

func (s *Server) handleHandoverGenerate(w http.ResponseWriter, r *http.Request) {
	s.finishCommand(w, r, s.engine.GenerateHandoverPack(r.Context(), chi.URLParam(r, "projectID")))
}

func (s *Server) handleHandoverSend(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Recipient string `json:"recipient"`
	}
	if !s.readBody(w, r, handoverSendSchema, &body) {
		return
	}
	s.finishCommand(w, r, s.engine.SendHandoverEmail(r.Context(), chi.URLParam(r, "projectID"), body.Recipient))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.finishCommand(w, r, s.engine.ResetProject(r.Context(), chi.URLParam(r, "projectID")))
}

// ==========================
// Plumbing
// ==========================

// readBody consumes, schema-validates and decodes the request body. Returns
// false after writing the error response.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, out interface{}) bool {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, stderrors.NewValidationError("failed to read request body"))
		return false
	}

	if err := validateBody(schema, raw); err != nil {
		s.writeError(w, r, err)
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		s.writeError(w, r, stderrors.NewValidationError("malformed request body: "+err.Error()))
		return false
	}
	return true
}

// finishCommand returns the fresh aggregate on success so clients render the
// post-command state without a second round trip.
func (s *Server) finishCommand(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	state, err := s.engine.ProjectState(r.Context(), chi.URLParam(r, "projectID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	std := stderrors.Normalize(err)
	status := stderrors.HTTPStatus(err)

	s.logger.Warn("request failed", map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"code":   string(std.Code),
	})

	s.writeJSON(w, status, map[string]interface{}{"error": std})
}
