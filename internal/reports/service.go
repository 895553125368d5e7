package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/allstarteams/sectional-reports/internal/rendering"
	"github.com/allstarteams/sectional-reports/internal/sections"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TriggerOptions modify a generation request.
type TriggerOptions struct {
	Regenerate bool
	// SpecificSections limits a regeneration to these section ids.
	SpecificSections []int
}

// FinalReport is a rendered final report ready to serve.
type FinalReport struct {
	Body        []byte
	ContentType string
	Filename    string
	Format      rendering.Format
}

// Service implements the report operations behind the HTTP API.
type Service struct {
	store      Store
	dispatcher Dispatcher
	generator  *Generator
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a Service. The generator runs single-section regenerations in the request.
func NewService(store Store, dispatcher Dispatcher, generator *Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		generator:  generator,
		logger:     logger,
		now:        time.Now,
	}
}

func checkReportType(rt types.ReportType) error {
	if _, err := types.ParseReportType(string(rt)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReportType, err)
	}
	return nil
}

func checkSection(id int) error {
	if !sections.ValidID(id) {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidSection, id, sections.MaxSectionID)
	}
	return nil
}

func sectionSeeds(rt types.ReportType) []types.Section {
	defs := sections.All(rt)
	seeds := make([]types.Section, 0, len(defs))
	for _, d := range defs {
		seeds = append(seeds, types.Section{ID: d.ID, Name: d.Name, Title: d.Title})
	}
	return seeds
}

// Trigger starts, restarts or acknowledges generation for a pair without waiting for it.
func (s *Service) Trigger(ctx context.Context, userID int64, rt types.ReportType, opts TriggerOptions) (*types.GenerateAck, error) {
	if err := checkReportType(rt); err != nil {
		return nil, err
	}
	for _, id := range opts.SpecificSections {
		if err := checkSection(id); err != nil {
			return nil, err
		}
	}

	raw, err := s.store.GetAssessment(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrAssessmentNotFound
	}

	params := db.StartParams{
		UserID:     userID,
		ReportType: rt,
		Regenerate: opts.Regenerate,
		Sections:   sectionSeeds(rt),
	}
	if opts.Regenerate {
		params.Reset = opts.SpecificSections
	}

	res, err := s.store.BeginGeneration(ctx, params)
	if err != nil {
		return nil, err
	}
	job := res.Job

	switch res.Action {
	case types.StartAlreadyExists:
		return nil, ErrReportExists
	case types.StartAlreadyRunning:
		status := job.Status
		if status == types.StatusGenerating {
			status = types.StatusInProgress
		}
		return &types.GenerateAck{
			Success:  true,
			ReportID: job.ID.String(),
			Message:  "Report generation already in progress",
			Status:   status,
		}, nil
	}

	ref := types.JobRef{
		ReportID:   job.ID,
		UserID:     userID,
		ReportType: rt,
		Generation: job.Generation,
	}
	if res.Action == types.StartReset {
		ref.Sections = params.Reset
	}

	if err := s.dispatcher.Dispatch(ctx, ref); err != nil {
		s.logger.Error("dispatch failed", "report_id", job.ID, "error", err)
		msg := "generation could not be started"
		if _, _, ferr := s.store.AbandonJob(ctx, job.ID, job.Generation, msg); ferr != nil && !errors.Is(ferr, db.ErrSuperseded) {
			s.logger.Error("failed to settle undispatched job", "report_id", job.ID, "error", ferr)
		}
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	message := "Report generation started"
	if res.Action == types.StartReset {
		message = "Report regeneration started"
	}
	return &types.GenerateAck{
		Success:  true,
		ReportID: job.ID.String(),
		Message:  message,
		Status:   types.StatusInProgress,
	}, nil
}

// Progress returns the snapshot of a pair. A pair without a job gets DefaultProgress.
func (s *Service) Progress(ctx context.Context, userID int64, rt types.ReportType) (types.ReportProgress, error) {
	if err := checkReportType(rt); err != nil {
		return types.ReportProgress{}, err
	}
	job, secs, err := s.store.Snapshot(ctx, userID, rt)
	if err != nil {
		return types.ReportProgress{}, err
	}
	return types.BuildProgress(userID, rt, job, secs, sections.Total(rt)), nil
}

// Sections returns the stored section rows of a pair, or just one when sectionID is set.
func (s *Service) Sections(ctx context.Context, userID int64, rt types.ReportType, sectionID *int) ([]types.Section, error) {
	if err := checkReportType(rt); err != nil {
		return nil, err
	}
	if sectionID != nil {
		if err := checkSection(*sectionID); err != nil {
			return nil, err
		}
	}

	job, err := s.store.GetJob(ctx, userID, rt)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	secs, err := s.store.ListSections(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if sectionID == nil {
		if len(secs) == 0 {
			return nil, ErrSectionNotFound
		}
		return secs, nil
	}
	for _, sec := range secs {
		if sec.ID == *sectionID {
			return []types.Section{sec}, nil
		}
	}
	return nil, ErrSectionNotFound
}

// UpdateSection replaces the content of one section.
func (s *Service) UpdateSection(ctx context.Context, userID int64, rt types.ReportType, sectionID int, req types.SectionUpdateRequest) error {
	if err := checkReportType(rt); err != nil {
		return err
	}
	if err := checkSection(sectionID); err != nil {
		return err
	}
	job, err := s.store.GetJob(ctx, userID, rt)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}
	err = s.store.UpdateSectionContent(ctx, job.ID, sectionID, req.SectionContent, req.SectionTitle)
	if errors.Is(err, db.ErrNotFound) {
		return ErrSectionNotFound
	}
	return err
}

// RegenerateSection regenerates one section of a finished report and returns it.
func (s *Service) RegenerateSection(ctx context.Context, userID int64, rt types.ReportType, sectionID int) (*types.Section, error) {
	if err := checkReportType(rt); err != nil {
		return nil, err
	}
	if err := checkSection(sectionID); err != nil {
		return nil, err
	}
	job, err := s.store.GetJob(ctx, userID, rt)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if !job.Status.IsTerminal() {
		return nil, ErrGenerationRunning
	}

	generation, err := s.store.BeginSectionRegeneration(ctx, job.ID, sectionID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		return nil, ErrSectionNotFound
	case errors.Is(err, db.ErrJobRunning):
		return nil, ErrGenerationRunning
	}
	if err != nil {
		return nil, err
	}

	ref := types.JobRef{ReportID: job.ID, UserID: userID, ReportType: rt, Generation: generation}
	if err := s.generator.RunSection(ctx, ref, sectionID); err != nil {
		return nil, err
	}

	secs, err := s.store.ListSections(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	for _, sec := range secs {
		if sec.ID == sectionID {
			return &sec, nil
		}
	}
	return nil, ErrSectionNotFound
}

// FinalReport renders the completed report of a pair in the requested format.
func (s *Service) FinalReport(ctx context.Context, userID int64, rt types.ReportType, format rendering.Format) (*FinalReport, error) {
	progress, err := s.Progress(ctx, userID, rt)
	if err != nil {
		return nil, err
	}
	if progress.OverallStatus != types.StatusCompleted {
		return nil, &NotCompleteError{Percentage: progress.ProgressPercentage}
	}

	name := ""
	if p, err := s.store.GetParticipant(ctx, userID); err != nil {
		return nil, err
	} else if p != nil {
		name = p.Name
	}
	doc := rendering.NewDocument(name, progress, s.now())

	var body []byte
	if format == rendering.FormatHTML {
		if id, err := parseReportID(progress.ReportID); err == nil {
			if stored, err := s.store.GetFinalHTML(ctx, id); err == nil && stored != "" {
				body = []byte(stored)
			}
		}
	}
	if body == nil {
		body, err = rendering.Render(doc, format)
		if err != nil {
			return nil, err
		}
	}

	return &FinalReport{
		Body:        body,
		ContentType: format.ContentType(),
		Filename:    rendering.Filename(doc, format),
		Format:      format,
	}, nil
}

// Status returns the snapshots of both report types of a user.
func (s *Service) Status(ctx context.Context, userID int64) (*types.StatusSummary, error) {
	rts := types.ReportTypes()
	snapshots := make([]types.ReportProgress, len(rts))

	g, gctx := errgroup.WithContext(ctx)
	for i, rt := range rts {
		g.Go(func() error {
			p, err := s.Progress(gctx, userID, rt)
			snapshots[i] = p
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &types.StatusSummary{
		UserID:  userID,
		Reports: make(map[types.ReportType]types.ReportProgress, len(rts)),
		Summary: map[string]bool{},
	}
	for i, rt := range rts {
		p := snapshots[i]
		summary.Reports[rt] = p
		key := "personal"
		if rt == types.ReportTypeProfessional {
			key = "professional"
		}
		summary.Summary["has_"+key+"_report"] = p.ReportID != ""
		summary.Summary[key+"_completed"] = p.OverallStatus == types.StatusCompleted
		summary.Summary["any_in_progress"] = summary.Summary["any_in_progress"] || p.OverallStatus.IsActive()
	}
	return summary, nil
}

// Delete removes the job of a pair.
func (s *Service) Delete(ctx context.Context, userID int64, rt types.ReportType) error {
	if err := checkReportType(rt); err != nil {
		return err
	}
	deleted, err := s.store.DeleteReport(ctx, userID, rt)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrJobNotFound
	}
	return nil
}

// List summarises every participant with sectional reports.
func (s *Service) List(ctx context.Context) ([]types.ReportListEntry, error) {
	return s.store.ListReports(ctx)
}

func parseReportID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}
