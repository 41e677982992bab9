// internal/common/errors/handler.go
package errors

import (
	"net/http"
	"time"
)

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr := AsStandard(err); stdErr != nil {
		return stdErr
	}
	return &StandardError{
		Code:      "INTERNAL_ERROR",
		Kind:      KindPersistence,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// HTTPStatus maps an error class to the transport status used by the
// command/query surface: validation 400, ordering 409, gate 422, unknown
// ids 404, infrastructure 500.
func HTTPStatus(err error) int {
	stdErr := Normalize(err)
	switch stdErr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindOrdering:
		return http.StatusConflict
	case KindGate:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
