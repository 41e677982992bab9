// internal/models/survey.go
package models

// DocumentType classifies the commercial document the current survey supports.
// It is derived, never chosen: a binding quote requires a loft inspection and
// at least five site photos.
type DocumentType string

const (
	BindingQuote       DocumentType = "BINDING_QUOTE"
	NonBindingEstimate DocumentType = "NON_BINDING_ESTIMATE"
)

// SurveyInputs are the homeowner/contractor supplied survey facts. They are
// mutated field-by-field during the survey phase and frozen once tracking
// begins.
type SurveyInputs struct {
	Postcode              string   `json:"postcode"`
	BuildingHeightMeters  float64  `json:"buildingHeightMeters"`
	RoofPitchDegrees      float64  `json:"roofPitchDegrees"`
	RoofAreaSqm           float64  `json:"roofAreaSqm"`
	LoftInspectionDone    bool     `json:"loftInspectionDone"`
	SitePhotosCount       int      `json:"sitePhotosCount"`
	ScaffoldingRequired   bool     `json:"scaffoldingRequired"`
	PavementOccupation    bool     `json:"pavementOccupation"`
	SharedParapetWall     bool     `json:"sharedParapetWall"`
	SpecialtyRepairs      []string `json:"specialtyRepairs,omitempty"`
}

// FixingSpec is the stored answer of a wind-uplift lookup for the current
// postcode. Nil until the first lookup.
type FixingSpec struct {
	Zone     string `json:"zone"`
	Schedule string `json:"schedule"`
	Ref      string `json:"ref"`
}

// WeatherReading is the stub telemetry snapshot consulted by the weather
// safety gate.
type WeatherReading struct {
	RainMMPerHour float64 `json:"rainMmPerHour"`
	WindMPH       float64 `json:"windMph"`
	TempCelsius   float64 `json:"tempCelsius"`
}
