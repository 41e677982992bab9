// Package errors provides standardized error handling for the workflow
// engine. Every domain failure is recoverable: the engine reports a
// structured result and never aborts the process.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Kind partitions error codes into the three domain classes plus
// infrastructure failure.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindGate        Kind = "gate"
	KindOrdering    Kind = "ordering"
	KindNotFound    Kind = "not_found"
	KindPersistence Kind = "persistence"
)

// Validation failures: malformed or missing required fields on a command.
const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNegativeInput    ErrorCode = "NEGATIVE_INPUT"
	ErrCodeUnknownInputKey  ErrorCode = "UNKNOWN_INPUT_KEY"
)

// Gate failures: a compliance predicate denied the operation.
const (
	ErrCodeInsuranceExpired     ErrorCode = "INSURANCE_EXPIRED"
	ErrCodeScaffoldCertMissing  ErrorCode = "SCAFFOLD_CERT_MISSING"
	ErrCodeAuditIncomplete      ErrorCode = "AUDIT_COVERAGE_INCOMPLETE"
	ErrCodeChecklistIncomplete  ErrorCode = "CHECKLIST_INCOMPLETE"
	ErrCodeHandoverNotSent      ErrorCode = "HANDOVER_NOT_SENT"
)

// Ordering violations: a command invoked before its prerequisite state.
const (
	ErrCodePhaseViolation       ErrorCode = "PHASE_VIOLATION"
	ErrCodePaymentNotRequested  ErrorCode = "PAYMENT_NOT_REQUESTED"
	ErrCodeStageAlreadyReleased ErrorCode = "STAGE_ALREADY_RELEASED"
	ErrCodeOrderAlreadyResolved ErrorCode = "ORDER_ALREADY_RESOLVED"
	ErrCodeHandoverNotGenerated ErrorCode = "HANDOVER_NOT_GENERATED"
	ErrCodeVerificationNotPending ErrorCode = "VERIFICATION_NOT_PENDING"
)

// Lookup / infrastructure.
const (
	ErrCodeProjectNotFound   ErrorCode = "PROJECT_NOT_FOUND"
	ErrCodeStageNotFound     ErrorCode = "STAGE_NOT_FOUND"
	ErrCodeItemNotFound      ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeOracleFailed      ErrorCode = "WIND_ZONE_LOOKUP_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Kind      Kind                   `json:"kind"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Missing   []string               `json:"missing,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// AsStandard extracts a *StandardError from err, or nil.
func AsStandard(err error) *StandardError {
	var se *StandardError
	if errors.As(err, &se) {
		return se
	}
	return nil
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError reports a malformed or missing command field.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Kind:      KindValidation,
		Message:   "Command payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNegativeInputError rejects a negative numeric survey input.
func NewNegativeInputError(key string, value float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeNegativeInput,
		Kind:      KindValidation,
		Message:   "Numeric survey inputs must be non-negative",
		Details:   fmt.Sprintf("%s: %v", key, value),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownInputKeyError rejects an unrecognised survey input key.
func NewUnknownInputKeyError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownInputKey,
		Kind:      KindValidation,
		Message:   "Unknown survey input key",
		Details:   key,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGateError reports a compliance predicate denial.
func NewGateError(code ErrorCode, reason string) *StandardError {
	return &StandardError{
		Code:      code,
		Kind:      KindGate,
		Message:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditIncompleteError carries the exact missing mandatory categories.
func NewAuditIncompleteError(missing []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditIncomplete,
		Kind:      KindGate,
		Message:   "Golden-thread audit coverage incomplete",
		Details:   strings.Join(missing, ", "),
		Missing:   missing,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOrderingError reports a command invoked before its prerequisite state.
func NewOrderingError(code ErrorCode, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Kind:      KindOrdering,
		Message:   "Operation invoked out of order",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPhaseViolationError reports a command invoked outside its required phase.
func NewPhaseViolationError(command, current, required string) *StandardError {
	return &StandardError{
		Code:    ErrCodePhaseViolation,
		Kind:    KindOrdering,
		Message: "Command not available in current phase",
		Details: fmt.Sprintf("command %s requires phase %s, project is in %s", command, required, current),
		Metadata: map[string]interface{}{
			"command":       command,
			"currentPhase":  current,
			"requiredPhase": required,
		},
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports an unknown project, stage, checklist item or order.
func NewNotFoundError(code ErrorCode, id string) *StandardError {
	return &StandardError{
		Code:      code,
		Kind:      KindNotFound,
		Message:   "Referenced entity not found",
		Details:   id,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError surfaces a durable-storage failure distinctly; it is
// the only retryable condition the engine produces.
func NewPersistenceError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailed,
		Kind:      KindPersistence,
		Message:   "Failed to persist project state",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewOracleError reports a wind-zone oracle failure.
func NewOracleError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOracleFailed,
		Kind:      KindPersistence,
		Message:   "Wind-zone oracle lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
