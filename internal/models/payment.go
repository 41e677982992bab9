// internal/models/payment.go
package models

// PaymentStageID identifies one of the three fixed escrow milestones.
type PaymentStageID string

const (
	StageDeposit PaymentStageID = "deposit"
	StageMid     PaymentStageID = "mid"
	StageFinal   PaymentStageID = "final"
)

// PaymentStatus is the per-stage lifecycle. Released is terminal.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentReleased PaymentStatus = "released"
)

// PaymentStage is one escrow milestone. Exactly three stages exist for the
// lifetime of a project and their percentages sum to 100.
type PaymentStage struct {
	ID        PaymentStageID `json:"id"`
	Label     string         `json:"label"`
	Percent   int            `json:"percent"`
	Status    PaymentStatus  `json:"status"`
	Requested bool           `json:"requested"`
}

// ChecklistItem is one of the fixed completion checklist entries the
// homeowner ticks off before the final balance can be released.
type ChecklistItem struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}
