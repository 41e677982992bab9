// internal/engine/phase/phase.go
package phase

import (
	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/models"
)

// The workflow is linear: onboarding → survey → tracking. There are no
// back-transitions and tracking is terminal; "fully certified" is a derived
// condition, not a phase.
var order = map[models.Phase]int{
	models.PhaseOnboarding: 0,
	models.PhaseSurvey:     1,
	models.PhaseTracking:   2,
}

// Controller is the authoritative phase gate. Every command declares its
// required phase and the engine refuses out-of-phase invocations instead of
// trusting the caller.
type Controller struct{}

// Require refuses the command unless the project is exactly in the given
// phase.
func (Controller) Require(state *models.ProjectState, command string, required models.Phase) error {
	if state.Phase != required {
		return stderrors.NewPhaseViolationError(command, string(state.Phase), string(required))
	}
	return nil
}

// RequireAtLeast refuses the command while the project has not yet reached
// the given phase. Used by commands that stay valid for the rest of the
// project (credential upload, verification decisions).
func (Controller) RequireAtLeast(state *models.ProjectState, command string, required models.Phase) error {
	if order[state.Phase] < order[required] {
		return stderrors.NewPhaseViolationError(command, string(state.Phase), string(required))
	}
	return nil
}

// Advance moves to the next phase. Only the two forward transitions exist.
func (Controller) Advance(state *models.ProjectState) {
	switch state.Phase {
	case models.PhaseOnboarding:
		state.Phase = models.PhaseSurvey
	case models.PhaseSurvey:
		state.Phase = models.PhaseTracking
	}
}
