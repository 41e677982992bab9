// internal/models/project.go
package models

import "time"

// SchemaVersion tags the persisted aggregate so the layout can evolve
// safely. Bump on any incompatible change to ProjectState.
const SchemaVersion = 1

// Phase is the linear workflow position: onboarding → survey → tracking.
// No back-transitions are exposed.
type Phase string

const (
	PhaseOnboarding Phase = "onboarding"
	PhaseSurvey     Phase = "survey"
	PhaseTracking   Phase = "tracking"
)

// ProjectState is the aggregate root. One instance exists per project id; it
// is persisted as a whole after every mutation and restored as a whole at
// startup.
type ProjectState struct {
	SchemaVersion int    `json:"schemaVersion"`
	ProjectID     string `json:"projectId"`
	Phase         Phase  `json:"phase"`

	Contractor ContractorProfile `json:"contractor"`
	Inputs     SurveyInputs      `json:"inputs"`
	FixingSpec *FixingSpec       `json:"fixingSpec,omitempty"`
	Weather    WeatherReading    `json:"weather"`
	DocType    DocumentType      `json:"documentType"`

	StartDate           *time.Time `json:"startDate,omitempty"`
	LastUpdateTimestamp *time.Time `json:"lastUpdateTimestamp,omitempty"`

	PaymentStages       []PaymentStage   `json:"paymentStages"`
	CompletionChecklist []ChecklistItem  `json:"completionChecklist"`
	Variations          []VariationOrder `json:"variations"`
	DailyLogs           []DailyLogEntry  `json:"dailyLogs"`

	HandoverPackGenerated bool `json:"handoverPackGenerated"`
	HandoverPackSent      bool `json:"handoverPackSent"`

	CoolingOffActive   bool       `json:"coolingOffActive"`
	CoolingOffWaivedAt *time.Time `json:"coolingOffWaivedAt,omitempty"`
	DelayNoticeSentAt  *time.Time `json:"delayNoticeSentAt,omitempty"`
}

// Stage returns the payment stage with the given id, or nil.
func (p *ProjectState) Stage(id PaymentStageID) *PaymentStage {
	for i := range p.PaymentStages {
		if p.PaymentStages[i].ID == id {
			return &p.PaymentStages[i]
		}
	}
	return nil
}

// Variation returns the variation order with the given id, or nil.
func (p *ProjectState) Variation(id string) *VariationOrder {
	for i := range p.Variations {
		if p.Variations[i].ID == id {
			return &p.Variations[i]
		}
	}
	return nil
}

// ChecklistComplete reports whether every completion checklist item is
// checked.
func (p *ProjectState) ChecklistComplete() bool {
	for _, item := range p.CompletionChecklist {
		if !item.Checked {
			return false
		}
	}
	return true
}

// ApprovedVariationTotals sums the cost and day impact of approved orders
// only; pending and rejected orders never contribute.
func (p *ProjectState) ApprovedVariationTotals() (cost float64, days int) {
	for _, v := range p.Variations {
		if v.Status == VariationApproved {
			cost += v.ExtraCost
			days += v.DaysAdded
		}
	}
	return cost, days
}
