// internal/models/variation.go
package models

import "time"

// VariationStatus is the change-order lifecycle. An order is decided exactly
// once; approved and rejected are terminal.
type VariationStatus string

const (
	VariationPending  VariationStatus = "pending_approval"
	VariationApproved VariationStatus = "approved"
	VariationRejected VariationStatus = "rejected"
)

// VariationOrder is a contractor-proposed, homeowner-decided change to scope,
// cost and duration after project start. Only approved orders feed the
// estimate.
type VariationOrder struct {
	ID               string          `json:"id"`
	Reason           string          `json:"reason"`
	ExtraCost        float64         `json:"extraCost"`
	DaysAdded        int             `json:"daysAdded"`
	ProofPhotoURL    string          `json:"proofPhotoUrl"`
	Status           VariationStatus `json:"status"`
	HomeownerMessage string          `json:"homeownerMessage,omitempty"`
	SubmittedAt      time.Time       `json:"submittedAt"`
	DecidedAt        *time.Time      `json:"decidedAt,omitempty"`
}
