// Package apperr defines the error taxonomy shared by the store, the relay
// pipeline and the AI responder.
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
	ErrTimeout     = errors.New("timeout")
	ErrInvalid     = errors.New("invalid")
)

// ReplyError reports that the inbound message was persisted but the AI reply
// could not be produced. Cause is ErrTimeout or ErrUnavailable.
type ReplyError struct {
	Cause error
}

func (e *ReplyError) Error() string {
	return "reply unavailable: " + e.Cause.Error()
}

func (e *ReplyError) Unwrap() error {
	return e.Cause
}

// Reason returns a short machine-readable label for the failure.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code returned to clients.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
