// internal/models/auditlog.go
package models

import "time"

// Daily-log categories making up the golden thread. Insulation_Check and
// Structural_Fixing are mandatory for handover-pack eligibility.
const (
	TagGeneral         = "General"
	TagInsulationCheck = "Insulation_Check"
	TagStructuralFix   = "Structural_Fixing"
)

// DailyLogEntry is one append-only progress record with photographic
// evidence attached upstream.
type DailyLogEntry struct {
	Date          string    `json:"date"` // YYYY-MM-DD, site-local day
	Tag           string    `json:"tag"`
	Status        string    `json:"status"`
	PhotoUploaded bool      `json:"photoUploaded"`
	RecordedAt    time.Time `json:"recordedAt"`
}
