package api

import (
	"errors"
	"net/http"

	"templateflow/internal/auth"
	"templateflow/internal/store"
	"templateflow/internal/workflow"
)

// ErrInvalidRequest reports a malformed request body or parameter.
var ErrInvalidRequest = errors.New("invalid request")

// HTTPStatus maps a service error to a response code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrCredentialInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, store.ErrInvalidBillableState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKind names the error class for response bodies.
func ErrorKind(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "credential_invalid"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		if errors.Is(err, store.ErrInvalidBillableState) {
			return "invalid_billable_state"
		}
		return "invalid_transition"
	case http.StatusConflict:
		return "concurrent_modification"
	default:
		return "internal"
	}
}
