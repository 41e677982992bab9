// internal/models/quote.go
package models

// QuoteResult is the derived cost/duration picture. It is never persisted:
// it is recomputed on demand from SurveyInputs, FixingSpec and the approved
// variation orders.
type QuoteResult struct {
	LabourCost             float64      `json:"labourCost"`
	MaterialsCost          float64      `json:"materialsCost"`
	LogisticsCost          float64      `json:"logisticsCost"`
	StatutoryFees          float64      `json:"statutoryFees"`
	Warnings               []string     `json:"warnings,omitempty"`
	VariationCost          float64      `json:"variationCost"`
	TotalCost              float64      `json:"totalCost"`
	BaseDurationDays       int          `json:"baseDurationDays"`
	VariationDays          int          `json:"variationDays"`
	TotalDurationDays      int          `json:"totalDurationDays"`
	WeatherContingencyDays int          `json:"weatherContingencyDays"`
	DocumentType           DocumentType `json:"documentType"`
}

// AuditProgress summarises coverage of the mandatory golden-thread
// categories.
type AuditProgress struct {
	Count int     `json:"count"`
	Total int     `json:"total"`
	Ratio float64 `json:"ratio"`
}

// SafetyVerdict is the weather gate's answer.
type SafetyVerdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}
