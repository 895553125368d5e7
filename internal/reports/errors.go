package reports

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidReportType  = errors.New("invalid report type")
	ErrInvalidSection     = errors.New("invalid section id")
	ErrAssessmentNotFound = errors.New("assessment data not found")
	ErrReportExists       = errors.New("report already exists; use regenerate to create a new one")
	ErrNotComplete        = errors.New("report is not yet complete")
	ErrJobNotFound        = errors.New("no report found")
	ErrSectionNotFound    = errors.New("section not found")
	ErrGenerationRunning  = errors.New("report generation is in progress")
	ErrDispatchFailed     = errors.New("failed to start report generation")
)

// NotCompleteError carries the progress of a report that cannot be served yet.
type NotCompleteError struct {
	Percentage int
}

func (e *NotCompleteError) Error() string {
	return fmt.Sprintf("%s. Current progress: %d%%", ErrNotComplete, e.Percentage)
}

func (e *NotCompleteError) Is(target error) bool {
	return target == ErrNotComplete
}
