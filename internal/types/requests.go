package types

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// GenerateRequest is the body of POST /generate/{userId}.
type GenerateRequest struct {
	ReportType       string `json:"reportType" validate:"required,oneof=ast_personal ast_professional"`
	Regenerate       bool   `json:"regenerate"`
	SpecificSections []int  `json:"specificSections,omitempty" validate:"omitempty,max=6,dive,min=0,max=5"`
}

// Validate validates the GenerateRequest using the validator.
func (r *GenerateRequest) Validate() error {
	return validate.Struct(r)
}

// GenerateAck is the immediate answer to a generation request.
type GenerateAck struct {
	Success  bool          `json:"success"`
	ReportID string        `json:"reportId,omitempty"`
	Message  string        `json:"message"`
	Status   OverallStatus `json:"status"`
	Error    string        `json:"error,omitempty"`
}

// SectionUpdateRequest is the body of PUT /sections/{userId}/{reportType}/{sectionId}.
type SectionUpdateRequest struct {
	SectionContent string `json:"sectionContent" validate:"required"`
	SectionTitle   string `json:"sectionTitle,omitempty" validate:"omitempty,max=200"`
}

// Validate validates the SectionUpdateRequest using the validator.
func (r *SectionUpdateRequest) Validate() error {
	return validate.Struct(r)
}

// PipelineAvailabilityRequest is the body of PUT /admin/report-pipeline.
type PipelineAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// Validate validates the PipelineAvailabilityRequest using the validator.
func (r *PipelineAvailabilityRequest) Validate() error {
	return validate.Struct(r)
}

// StatusSummary answers GET /status/{userId}.
type StatusSummary struct {
	UserID  int64                         `json:"userId"`
	Reports map[ReportType]ReportProgress `json:"sectionalReports"`
	Summary map[string]bool               `json:"overallSummary"`
}

// ReportListEntry is one row of the admin listing.
type ReportListEntry struct {
	UserID           int64      `json:"userId"`
	Name             string     `json:"name"`
	PersonalJobs     int        `json:"sectionalPersonalReports"`
	ProfessionalJobs int        `json:"sectionalProfessionalReports"`
	TotalSections    int        `json:"totalSections"`
	LatestActivity   *time.Time `json:"latestActivity,omitempty"`
}

// HealthStatus answers GET /health.
type HealthStatus struct {
	Status         string `json:"status"`
	ReportPipeline string `json:"report_pipeline"`
}

// Pipeline availability values reported by /health.
const (
	PipelineAvailable   = "available"
	PipelineUnavailable = "unavailable"
)
