// internal/engine/auditlog/log.go
package auditlog

import (
	"time"

	"rooftrust-engine/internal/common/config"
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/common/notify"
	"rooftrust-engine/internal/engine/compliance"
	"rooftrust-engine/internal/models"
)

// Service owns the append-only daily log and the handover pack lifecycle.
type Service struct {
	gates *compliance.Gates
	rules config.RulesConfig
}

func NewService(gates *compliance.Gates, rules config.RulesConfig) *Service {
	return &Service{gates: gates, rules: rules}
}

// Append records one progress entry stamped with the current date and
// refreshes the last-update timestamp. Refused while scaffolding
// certification is outstanding.
func (s *Service) Append(state *models.ProjectState, tag string, now time.Time) (*models.DailyLogEntry, error) {
	if err := s.gates.CheckScaffoldCert(state); err != nil {
		return nil, err
	}
	if tag == "" {
		tag = models.TagGeneral
	}

	entry := models.DailyLogEntry{
		Date:          now.Format("2006-01-02"),
		Tag:           tag,
		Status:        "Completed",
		PhotoUploaded: true,
		RecordedAt:    now,
	}
	state.DailyLogs = append(state.DailyLogs, entry)
	state.LastUpdateTimestamp = &now
	// A fresh progress entry ends the current overdue episode.
	state.DelayNoticeSentAt = nil

	return &state.DailyLogs[len(state.DailyLogs)-1], nil
}

// LoggedToday reports whether an entry with the given tag already exists for
// the current date. The engine does not hard-enforce uniqueness; callers use
// this for gating repeat submissions.
func (s *Service) LoggedToday(state *models.ProjectState, tag string, now time.Time) bool {
	today := now.Format("2006-01-02")
	for _, entry := range state.DailyLogs {
		if entry.Date == today && entry.Tag == tag {
			return true
		}
	}
	return false
}

// GenerateHandover marks the pack as generated once every mandatory
// golden-thread category has at least one log entry; otherwise it fails with
// the exact missing categories.
func (s *Service) GenerateHandover(state *models.ProjectState) error {
	if err := s.gates.CheckAuditCoverage(state); err != nil {
		return err
	}
	state.HandoverPackGenerated = true
	return nil
}

// MarkSent records handover delivery. Sending before generation is an
// ordering violation; re-sending only re-affirms the flag.
func (s *Service) MarkSent(state *models.ProjectState) error {
	if !state.HandoverPackGenerated {
		return stderrors.NewOrderingError(stderrors.ErrCodeHandoverNotGenerated,
			"handover pack must be generated before it can be sent")
	}
	state.HandoverPackSent = true
	return nil
}

// BuildPack assembles the evidence summary handed to the email collaborator.
func (s *Service) BuildPack(state *models.ProjectState, now time.Time) notify.HandoverPack {
	seen := make(map[string]bool)
	var categories []string
	for _, entry := range state.DailyLogs {
		if !seen[entry.Tag] {
			seen[entry.Tag] = true
			categories = append(categories, entry.Tag)
		}
	}

	return notify.HandoverPack{
		ProjectID:      state.ProjectID,
		ContractorName: state.Contractor.Name,
		LogEntryCount:  len(state.DailyLogs),
		Categories:     categories,
		GeneratedAt:    now.Format(time.RFC3339),
	}
}
