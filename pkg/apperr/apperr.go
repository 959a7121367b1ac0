// Package apperr defines the error taxonomy shared by the store, the
// service layer and the transports.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrDenied           = errors.New("access denied")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrSubscriptionLost = errors.New("subscription lost")
)

// GenericDenied is the only message an unauthorized caller ever sees, whether
// the document is missing or merely not shared with them.
const GenericDenied = "document not found or access denied"

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// HTTPStatus maps an error to the status code and message written to clients.
func HTTPStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDenied):
		return http.StatusNotFound, GenericDenied
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "storage temporarily unavailable, retry later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
