// Package types provides the report data model shared by the server, the worker and the client.
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportType identifies one of the closed set of sectional report variants.
type ReportType string

const (
	ReportTypePersonal     ReportType = "ast_personal"
	ReportTypeProfessional ReportType = "ast_professional"
)

// ReportTypes returns every supported report type in display order.
func ReportTypes() []ReportType {
	return []ReportType{ReportTypePersonal, ReportTypeProfessional}
}

// ParseReportType validates s against the closed report type set.
func ParseReportType(s string) (ReportType, error) {
	switch ReportType(s) {
	case ReportTypePersonal, ReportTypeProfessional:
		return ReportType(s), nil
	default:
		return "", fmt.Errorf("invalid report type %q: must be %q or %q", s, ReportTypePersonal, ReportTypeProfessional)
	}
}

// Label is the human title of the report type.
func (t ReportType) Label() string {
	if t == ReportTypePersonal {
		return "Personal Development Report"
	}
	return "Professional Profile Report"
}

// Subtitle is shown under the report title.
func (t ReportType) Subtitle() string {
	if t == ReportTypePersonal {
		return "Personal Development Insights"
	}
	return "Professional Profile Analysis"
}

// OverallStatus is the job-level status of a report generation.
type OverallStatus string

const (
	StatusPending        OverallStatus = "pending"
	StatusInProgress     OverallStatus = "in_progress"
	StatusCompleted      OverallStatus = "completed"
	StatusFailed         OverallStatus = "failed"
	StatusPartialFailure OverallStatus = "partial_failure"

	// StatusGenerating is reported by older servers for a running job.
	StatusGenerating OverallStatus = "generating"
)

// IsTerminal reports whether no further section updates are expected.
func (s OverallStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartialFailure:
		return true
	default:
		return false
	}
}

// IsActive reports whether a worker is generating sections.
func (s OverallStatus) IsActive() bool {
	return s == StatusInProgress || s == StatusGenerating
}

// SectionStatus is the status of a single report section.
type SectionStatus string

const (
	SectionPending    SectionStatus = "pending"
	SectionGenerating SectionStatus = "generating"
	SectionCompleted  SectionStatus = "completed"
	SectionFailed     SectionStatus = "failed"
)

// Section is one unit of report content.
type Section struct {
	ID                 int           `json:"id"`
	Name               string        `json:"name"`
	Title              string        `json:"title"`
	Status             SectionStatus `json:"status"`
	Content            string        `json:"content,omitempty"`
	ErrorMessage       string        `json:"errorMessage,omitempty"`
	GenerationAttempts int           `json:"generationAttempts"`
	CompletedAt        *time.Time    `json:"completedAt,omitempty"`
	UpdatedAt          *time.Time    `json:"updatedAt,omitempty"`
}

// ReportProgress is the snapshot of one report generation job for a (user, report type) pair.
type ReportProgress struct {
	UserID             int64         `json:"userId"`
	ReportType         ReportType    `json:"reportType"`
	ReportID           string        `json:"reportId,omitempty"`
	OverallStatus      OverallStatus `json:"overallStatus"`
	ProgressPercentage int           `json:"progressPercentage"`
	SectionsCompleted  int           `json:"sectionsCompleted"`
	SectionsFailed     int           `json:"sectionsFailed"`
	TotalSections      int           `json:"totalSections"`
	Sections           []Section     `json:"sections"`
	StartedAt          *time.Time    `json:"startedAt,omitempty"`
	CompletedAt        *time.Time    `json:"completedAt,omitempty"`
}

// Job is the persisted header of a generation job. Generation is bumped on every
// reset so that writes from a superseded worker can be detected.
type Job struct {
	ID            uuid.UUID     `json:"id"`
	UserID        int64         `json:"user_id"`
	ReportType    ReportType    `json:"report_type"`
	Status        OverallStatus `json:"status"`
	Generation    int           `json:"generation"`
	TotalSections int           `json:"total_sections"`
	StartedAt     *time.Time    `json:"started_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// JobRef identifies the work handed to a dispatcher.
type JobRef struct {
	ReportID   uuid.UUID  `json:"report_id"`
	UserID     int64      `json:"user_id"`
	ReportType ReportType `json:"report_type"`
	Generation int        `json:"generation"`
	Sections   []int      `json:"sections,omitempty"`
}

// Percentage converts completed/total to an integer percentage, rounding half up.
func Percentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return (completed*200 + total) / (2 * total)
}

// DefaultProgress is the snapshot for a pair that never had a job.
func DefaultProgress(userID int64, reportType ReportType, totalSections int) ReportProgress {
	return ReportProgress{
		UserID:        userID,
		ReportType:    reportType,
		OverallStatus: StatusPending,
		TotalSections: totalSections,
		Sections:      []Section{},
	}
}

// DeriveStatus computes the overall status from the stored job status and section counts.
func DeriveStatus(jobStatus OverallStatus, completed, failed, total int) OverallStatus {
	if total > 0 && completed == total && failed == 0 {
		return StatusCompleted
	}
	switch jobStatus {
	case StatusPending, StatusInProgress, StatusGenerating:
		return normalizeActive(jobStatus)
	}
	if failed > 0 && completed > 0 {
		return StatusPartialFailure
	}
	if failed > 0 {
		return StatusFailed
	}
	// terminal job status that its sections no longer back up
	return StatusPending
}

// TerminalStatus is the status a finished run settles on.
func TerminalStatus(completed, failed, total int) OverallStatus {
	switch {
	case total > 0 && completed == total && failed == 0:
		return StatusCompleted
	case failed > 0 && completed > 0:
		return StatusPartialFailure
	default:
		return StatusFailed
	}
}

func normalizeActive(s OverallStatus) OverallStatus {
	if s == StatusGenerating {
		return StatusInProgress
	}
	return s
}

// BuildProgress assembles a snapshot from the job header and its sections.
// A nil job yields DefaultProgress.
func BuildProgress(userID int64, reportType ReportType, job *Job, sections []Section, totalSections int) ReportProgress {
	if job == nil {
		return DefaultProgress(userID, reportType, totalSections)
	}
	if job.TotalSections > 0 {
		totalSections = job.TotalSections
	}

	p := ReportProgress{
		UserID:        userID,
		ReportType:    reportType,
		ReportID:      job.ID.String(),
		TotalSections: totalSections,
		Sections:      make([]Section, 0, len(sections)),
		StartedAt:     job.StartedAt,
	}

	for _, s := range sections {
		switch s.Status {
		case SectionCompleted:
			p.SectionsCompleted++
			s.ErrorMessage = ""
		case SectionFailed:
			p.SectionsFailed++
			s.Content = ""
		default:
			s.Content = ""
			s.ErrorMessage = ""
		}
		p.Sections = append(p.Sections, s)
	}

	if p.SectionsCompleted+p.SectionsFailed > p.TotalSections {
		p.TotalSections = p.SectionsCompleted + p.SectionsFailed
	}

	p.OverallStatus = DeriveStatus(job.Status, p.SectionsCompleted, p.SectionsFailed, p.TotalSections)
	p.ProgressPercentage = Percentage(p.SectionsCompleted, p.TotalSections)
	if p.OverallStatus.IsTerminal() {
		p.CompletedAt = job.CompletedAt
	}
	return p
}

// StartAction is the outcome of a generation request against the current job.
type StartAction int

const (
	// StartCreate creates the first job for the pair.
	StartCreate StartAction = iota
	// StartReset resets an existing job and starts a new generation.
	StartReset
	// StartAlreadyRunning leaves a non-terminal job alone.
	StartAlreadyRunning
	// StartAlreadyExists refuses because a finished report exists and regenerate was not set.
	StartAlreadyExists
)

func (a StartAction) String() string {
	switch a {
	case StartCreate:
		return "create"
	case StartReset:
		return "reset"
	case StartAlreadyRunning:
		return "already_running"
	case StartAlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Starts reports whether the action hands work to a dispatcher.
func (a StartAction) Starts() bool {
	return a == StartCreate || a == StartReset
}

// DecideStart picks what a generation request does. At most one non-terminal job
// exists per pair; only regenerate may replace it.
func DecideStart(existing *Job, regenerate bool) StartAction {
	if existing == nil {
		return StartCreate
	}
	if regenerate {
		return StartReset
	}
	if existing.Status.IsTerminal() {
		return StartAlreadyExists
	}
	return StartAlreadyRunning
}
