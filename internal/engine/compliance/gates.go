// internal/engine/compliance/gates.go
package compliance

import (
	"fmt"
	"time"

	"rooftrust-engine/internal/common/config"
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/models"
)

// Gates are the stateless compliance predicates consulted before
// state-changing operations are allowed to succeed. Each evaluator takes the
// current project state and answers allow/deny with a reason.
type Gates struct {
	rules config.RulesConfig
}

func NewGates(rules config.RulesConfig) *Gates {
	return &Gates{rules: rules}
}

// WeatherSafety checks the three independent thresholds: wind ceiling,
// precipitation ceiling and temperature floor. Any single violation suspends
// work.
func (g *Gates) WeatherSafety(state *models.ProjectState) models.SafetyVerdict {
	w := state.Weather
	t := g.rules.Weather

	switch {
	case w.WindMPH > t.WindGustMPH:
		return models.SafetyVerdict{Safe: false,
			Reason: fmt.Sprintf("Work suspended: wind %.0f mph exceeds the %.0f mph ceiling", w.WindMPH, t.WindGustMPH)}
	case w.RainMMPerHour > t.PrecipMMPerHr:
		return models.SafetyVerdict{Safe: false,
			Reason: fmt.Sprintf("Work suspended: precipitation %.1f mm/h exceeds the %.1f mm/h ceiling", w.RainMMPerHour, t.PrecipMMPerHr)}
	case w.TempCelsius < t.TempCelsiusMin:
		return models.SafetyVerdict{Safe: false,
			Reason: fmt.Sprintf("Work suspended: temperature %.1f°C is below the %.1f°C floor", w.TempCelsius, t.TempCelsiusMin)}
	}
	return models.SafetyVerdict{Safe: true}
}

// InsuranceValid holds only if an expiry date is set and is strictly in the
// future at the evaluation instant.
func (g *Gates) InsuranceValid(state *models.ProjectState, now time.Time) bool {
	exp := state.Contractor.InsuranceExpiry
	return exp != nil && exp.After(now)
}

// CheckInsurance blocks new payment requests when cover has lapsed.
func (g *Gates) CheckInsurance(state *models.ProjectState, now time.Time) error {
	if !g.InsuranceValid(state, now) {
		return stderrors.NewGateError(stderrors.ErrCodeInsuranceExpired,
			"Public liability insurance is missing or expired")
	}
	return nil
}

// CheckScaffoldCert refuses daily-log submission when the survey flags
// scaffolding as required but no certification has been recorded.
func (g *Gates) CheckScaffoldCert(state *models.ProjectState) error {
	if state.Inputs.ScaffoldingRequired && state.Contractor.ScaffoldCertRef == "" {
		return stderrors.NewGateError(stderrors.ErrCodeScaffoldCertMissing,
			"Scaffolding certification must be recorded before daily logs are accepted")
	}
	return nil
}

// MissingAuditCategories returns the mandatory golden-thread categories with
// no corresponding daily-log entry, in rules-table order. Entries with
// non-mandatory tags never influence the answer.
func (g *Gates) MissingAuditCategories(state *models.ProjectState) []string {
	covered := make(map[string]bool, len(state.DailyLogs))
	for _, entry := range state.DailyLogs {
		covered[entry.Tag] = true
	}

	var missing []string
	for _, cat := range g.rules.Audit.MandatoryCategories {
		if !covered[cat] {
			missing = append(missing, cat)
		}
	}
	return missing
}

// CheckAuditCoverage gates handover-pack generation and reports the exact
// missing categories on failure.
func (g *Gates) CheckAuditCoverage(state *models.ProjectState) error {
	if missing := g.MissingAuditCategories(state); len(missing) > 0 {
		return stderrors.NewAuditIncompleteError(missing)
	}
	return nil
}

// AuditProgress summarises mandatory-category coverage for the query surface.
func (g *Gates) AuditProgress(state *models.ProjectState) models.AuditProgress {
	total := len(g.rules.Audit.MandatoryCategories)
	missing := len(g.MissingAuditCategories(state))
	count := total - missing

	p := models.AuditProgress{Count: count, Total: total}
	if total > 0 {
		p.Ratio = float64(count) / float64(total)
	}
	return p
}

// Overdue is a status signal, not a gate: true once more than the configured
// window (48h by default) has elapsed since the last progress update.
func (g *Gates) Overdue(state *models.ProjectState, now time.Time) bool {
	if state.LastUpdateTimestamp == nil {
		return false
	}
	window := time.Duration(g.rules.Audit.OverdueHours) * time.Hour
	return now.Sub(*state.LastUpdateTimestamp) > window
}
