package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/allstarteams/sectional-reports/internal/reports"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ErrValidation{Field: "reportType", Message: "required"}, http.StatusBadRequest},
		{fmt.Errorf("%w: bogus", reports.ErrInvalidReportType), http.StatusBadRequest},
		{fmt.Errorf("%w: 9", reports.ErrInvalidSection), http.StatusBadRequest},
		{errAccessDenied, http.StatusForbidden},
		{reports.ErrAssessmentNotFound, http.StatusNotFound},
		{reports.ErrJobNotFound, http.StatusNotFound},
		{reports.ErrSectionNotFound, http.StatusNotFound},
		{reports.ErrReportExists, http.StatusConflict},
		{&reports.NotCompleteError{Percentage: 50}, http.StatusConflict},
		{reports.ErrGenerationRunning, http.StatusConflict},
		{errPipelineUnavailable, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: queue down", reports.ErrDispatchFailed), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Internal server error", errorMessage(errors.New("pq: connection refused"), 500))
	assert.Equal(t, "report is not yet complete. Current progress: 67%",
		errorMessage(&reports.NotCompleteError{Percentage: 67}, 409))
	assert.Equal(t, "validation error: sectionId - must be an integer",
		(&ErrValidation{Field: "sectionId", Message: "must be an integer"}).Error())
}
