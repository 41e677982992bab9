// internal/engine/variations/ledger_test.go
package variations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "rooftrust-engine/internal/common/errors"
	"rooftrust-engine/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func validRequest() Request {
	return Request{
		Reason:        "Rotten battens discovered under ridge line",
		ExtraCost:     500,
		DaysAdded:     2,
		ProofPhotoURL: "https://evidence.example/battens.jpg",
	}
}

func TestApplyValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty reason", func(r *Request) { r.Reason = "  " }},
		{"zero cost", func(r *Request) { r.ExtraCost = 0 }},
		{"negative cost", func(r *Request) { r.ExtraCost = -50 }},
		{"negative days", func(r *Request) { r.DaysAdded = -1 }},
		{"missing proof photo", func(r *Request) { r.ProofPhotoURL = "" }},
	}

	ledger := NewLedger()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &models.ProjectState{}
			req := validRequest()
			tt.mutate(&req)

			_, err := ledger.Apply(state, req, testNow)
			require.Error(t, err)
			assert.Equal(t, stderrors.ErrCodeValidationFailed, stderrors.AsStandard(err).Code)
			assert.Empty(t, state.Variations)
		})
	}
}

func TestApplyCreatesPendingOrder(t *testing.T) {
	ledger := NewLedger()
	state := &models.ProjectState{}

	order, err := ledger.Apply(state, validRequest(), testNow)
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.VariationPending, order.Status)
	assert.Equal(t, testNow, order.SubmittedAt)

	second, err := ledger.Apply(state, validRequest(), testNow)
	require.NoError(t, err)
	assert.NotEqual(t, order.ID, second.ID, "ids are uniquely assigned")
	assert.Len(t, state.Variations, 2)
}

func TestDecideExactlyOnce(t *testing.T) {
	ledger := NewLedger()
	state := &models.ProjectState{}

	order, err := ledger.Apply(state, validRequest(), testNow)
	require.NoError(t, err)

	decided, err := ledger.Decide(state, order.ID, models.VariationApproved, "Go ahead", testNow)
	require.NoError(t, err)
	assert.Equal(t, models.VariationApproved, decided.Status)
	assert.Equal(t, "Go ahead", decided.HomeownerMessage)
	require.NotNil(t, decided.DecidedAt)

	// Transitioning an already-resolved order is refused.
	_, err = ledger.Decide(state, order.ID, models.VariationRejected, "", testNow)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeOrderAlreadyResolved, stderrors.AsStandard(err).Code)
	assert.Equal(t, models.VariationApproved, state.Variation(order.ID).Status)
}

func TestDecideValidation(t *testing.T) {
	ledger := NewLedger()
	state := &models.ProjectState{}

	order, err := ledger.Apply(state, validRequest(), testNow)
	require.NoError(t, err)

	_, err = ledger.Decide(state, order.ID, "maybe", "", testNow)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeValidationFailed, stderrors.AsStandard(err).Code)

	_, err = ledger.Decide(state, "missing-id", models.VariationApproved, "", testNow)
	require.Error(t, err)
	assert.Equal(t, stderrors.ErrCodeOrderNotFound, stderrors.AsStandard(err).Code)
}
