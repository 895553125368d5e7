package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/allstarteams/sectional-reports/internal/reports"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

var (
	errAccessDenied        = errors.New("Access denied")
	errPipelineUnavailable = errors.New("Report generation is temporarily unavailable")
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *ErrValidation
	switch {
	case errors.As(err, &verr),
		errors.Is(err, reports.ErrInvalidReportType),
		errors.Is(err, reports.ErrInvalidSection):
		return http.StatusBadRequest
	case errors.Is(err, errAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, reports.ErrAssessmentNotFound),
		errors.Is(err, reports.ErrJobNotFound),
		errors.Is(err, reports.ErrSectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, reports.ErrReportExists),
		errors.Is(err, reports.ErrNotComplete),
		errors.Is(err, reports.ErrGenerationRunning):
		return http.StatusConflict
	case errors.Is(err, errPipelineUnavailable),
		errors.Is(err, reports.ErrDispatchFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the message returned to the caller. Internal errors are not exposed.
func errorMessage(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
