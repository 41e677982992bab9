// internal/engine/variations/ledger.go
package variations

import (
	"strings"
	"time"

	"github.com/google/uuid"

	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/models"
)

// Request is the contractor-side submission payload. Validation happens
// here, inside the engine, independent of caller discipline.
type Request struct {
	Reason        string  `json:"reason"`
	ExtraCost     float64 `json:"extraCost"`
	DaysAdded     int     `json:"daysAdded"`
	ProofPhotoURL string  `json:"proofPhotoUrl"`
}

// Ledger manages the change-order lifecycle. Orders are decided exactly
// once; approved orders feed the estimate, rejected and pending ones never
// do.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Apply creates a new order in pending_approval. A non-empty reason, a
// positive cost and a proof photo are all required.
func (l *Ledger) Apply(state *models.ProjectState, req Request, now time.Time) (*models.VariationOrder, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, stderrors.NewValidationError("variation reason must not be empty")
	}
	if req.ExtraCost <= 0 {
		return nil, stderrors.NewValidationError("variation cost must be a positive number")
	}
	if req.DaysAdded < 0 {
		return nil, stderrors.NewValidationError("variation daysAdded must not be negative")
	}
	if strings.TrimSpace(req.ProofPhotoURL) == "" {
		return nil, stderrors.NewValidationError("variation requires a proof photo reference")
	}

	order := models.VariationOrder{
		ID:            uuid.NewString(),
		Reason:        req.Reason,
		ExtraCost:     req.ExtraCost,
		DaysAdded:     req.DaysAdded,
		ProofPhotoURL: req.ProofPhotoURL,
		Status:        models.VariationPending,
		SubmittedAt:   now,
	}
	state.Variations = append(state.Variations, order)
	return state.Variation(order.ID), nil
}

// Decide transitions a pending order to approved or rejected, exactly once.
// Re-deciding a resolved order is refused.
func (l *Ledger) Decide(state *models.ProjectState, id string, status models.VariationStatus, message string, now time.Time) (*models.VariationOrder, error) {
	if status != models.VariationApproved && status != models.VariationRejected {
		return nil, stderrors.NewValidationError("variation decision must be approved or rejected")
	}

	order := state.Variation(id)
	if order == nil {
		return nil, stderrors.NewNotFoundError(stderrors.ErrCodeOrderNotFound, id)
	}
	if order.Status != models.VariationPending {
		return nil, stderrors.NewOrderingError(stderrors.ErrCodeOrderAlreadyResolved,
			"variation "+id+" has already been "+string(order.Status))
	}

	order.Status = status
	order.HomeownerMessage = message
	order.DecidedAt = &now
	return order, nil
}
