package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/job-applier/internal/request"
)

// ErrNotFound indicates a requested resource does not exist
var ErrNotFound = errors.New("not found")

// ErrHistoryDisabled indicates run history was requested without a database
var ErrHistoryDisabled = errors.New("run history requires a database")

// ErrBadRequest indicates a malformed request outside the application payload
type ErrBadRequest struct {
	Message string
}

func (e *ErrBadRequest) Error() string {
	return e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *request.ValidationError
	var badRequest *ErrBadRequest
	switch {
	case errors.As(err, &validationErr), errors.As(err, &badRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
