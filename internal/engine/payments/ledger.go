// internal/engine/payments/ledger.go
package payments

import (
	"time"

	"rooftrust-engine/internal/common/config"
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/engine/compliance"
	"rooftrust-engine/internal/models"
)

// Ledger drives the three fixed escrow stages. Per stage the lifecycle is
// pending → requested → released; released is terminal and never reverts.
// The deposit and interim stages may be released directly from pending, the
// final balance requires an explicit request first.
type Ledger struct {
	gates *compliance.Gates
}

func NewLedger(gates *compliance.Gates) *Ledger {
	return &Ledger{gates: gates}
}

// InitStages builds the fixed stage set from the rules table.
func InitStages(rules config.RulesConfig) []models.PaymentStage {
	stages := make([]models.PaymentStage, 0, len(rules.Payments))
	for _, s := range rules.Payments {
		stages = append(stages, models.PaymentStage{
			ID:      models.PaymentStageID(s.ID),
			Label:   s.Label,
			Percent: s.Percent,
			Status:  models.PaymentPending,
		})
	}
	return stages
}

// Request marks a stage as requested. Refused while the insurance gate
// fails; re-requesting a released stage is an ordering violation.
func (l *Ledger) Request(state *models.ProjectState, stageID models.PaymentStageID, now time.Time) error {
	stage := state.Stage(stageID)
	if stage == nil {
		return stderrors.NewNotFoundError(stderrors.ErrCodeStageNotFound, string(stageID))
	}
	if stage.Status == models.PaymentReleased {
		return stderrors.NewOrderingError(stderrors.ErrCodeStageAlreadyReleased,
			"stage "+string(stageID)+" has already been released")
	}
	if err := l.gates.CheckInsurance(state, now); err != nil {
		return err
	}

	stage.Requested = true
	return nil
}

// Release marks a stage as released. The final balance is additionally gated
// behind the completed checklist, the sent handover pack and an explicit
// prior request.
func (l *Ledger) Release(state *models.ProjectState, stageID models.PaymentStageID) error {
	stage := state.Stage(stageID)
	if stage == nil {
		return stderrors.NewNotFoundError(stderrors.ErrCodeStageNotFound, string(stageID))
	}
	if stage.Status == models.PaymentReleased {
		return stderrors.NewOrderingError(stderrors.ErrCodeStageAlreadyReleased,
			"stage "+string(stageID)+" has already been released")
	}

	if stageID == models.StageFinal {
		if !state.ChecklistComplete() {
			return stderrors.NewGateError(stderrors.ErrCodeChecklistIncomplete,
				"Final balance withheld: completion checklist has unchecked items")
		}
		if !state.HandoverPackSent {
			return stderrors.NewGateError(stderrors.ErrCodeHandoverNotSent,
				"Final balance withheld: handover pack has not been sent")
		}
		if !stage.Requested {
			return stderrors.NewOrderingError(stderrors.ErrCodePaymentNotRequested,
				"final balance must be requested before release")
		}
	}

	stage.Status = models.PaymentReleased
	return nil
}

// UpdateChecklist toggles one completion checklist item.
func (l *Ledger) UpdateChecklist(state *models.ProjectState, itemID string, checked bool) error {
	for i := range state.CompletionChecklist {
		if state.CompletionChecklist[i].ID == itemID {
			state.CompletionChecklist[i].Checked = checked
			return nil
		}
	}
	return stderrors.NewNotFoundError(stderrors.ErrCodeItemNotFound, itemID)
}
