// Package reports runs sectional report generation: it decides when a job starts,
// hands it to a dispatcher, writes the sections and serves progress and the final report.
package reports

import (
	"context"
	"time"

	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/allstarteams/sectional-reports/internal/llm"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/google/uuid"
)

// Store persists jobs, sections and participant data. *db.DB implements it.
type Store interface {
	Snapshot(ctx context.Context, userID int64, reportType types.ReportType) (*types.Job, []types.Section, error)
	GetJob(ctx context.Context, userID int64, reportType types.ReportType) (*types.Job, error)
	GetJobByID(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListSections(ctx context.Context, jobID uuid.UUID) ([]types.Section, error)

	BeginGeneration(ctx context.Context, p db.StartParams) (*db.StartResult, error)
	MarkSectionGenerating(ctx context.Context, jobID uuid.UUID, generation, sectionID int) error
	CompleteSection(ctx context.Context, jobID uuid.UUID, generation, sectionID int, content string) error
	FailSection(ctx context.Context, jobID uuid.UUID, generation, sectionID int, message string) error
	FinishJob(ctx context.Context, jobID uuid.UUID, generation int) (types.OverallStatus, error)
	SaveFinalHTML(ctx context.Context, jobID uuid.UUID, generation int, html string) error
	GetFinalHTML(ctx context.Context, jobID uuid.UUID) (string, error)

	UpdateSectionContent(ctx context.Context, jobID uuid.UUID, sectionID int, content, title string) error
	BeginSectionRegeneration(ctx context.Context, jobID uuid.UUID, sectionID int) (int, error)
	DeleteReport(ctx context.Context, userID int64, reportType types.ReportType) (bool, error)
	ListReports(ctx context.Context) ([]types.ReportListEntry, error)

	StaleJobs(ctx context.Context, startedBefore time.Time) ([]types.Job, error)
	AbandonJob(ctx context.Context, jobID uuid.UUID, generation int, message string) (types.OverallStatus, int64, error)

	GetParticipant(ctx context.Context, id int64) (*db.Participant, error)
	GetAssessment(ctx context.Context, userID int64) ([]byte, error)
}

// Dispatcher hands a started job to whatever runs the generator.
type Dispatcher interface {
	Dispatch(ctx context.Context, ref types.JobRef) error
}

// ContentGenerator writes one section. llm.Client implements it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, system, prompt string, tier llm.ModelTier) (string, error)
}
