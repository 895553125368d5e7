package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/allstarteams/sectional-reports/internal/llm"
	"github.com/allstarteams/sectional-reports/internal/rendering"
	"github.com/allstarteams/sectional-reports/internal/schemas"
	"github.com/allstarteams/sectional-reports/internal/sections"
	"github.com/allstarteams/sectional-reports/internal/types"
)

// DefaultSectionDelay is the pause between two sections of a run.
const DefaultSectionDelay = 2 * time.Second

// Generator writes the sections of a job one at a time. Every write carries the job
// generation so a run replaced by a newer trigger stops at its next write.
type Generator struct {
	store   Store
	content ContentGenerator
	logger  *slog.Logger
	delay   time.Duration
	tier    llm.ModelTier
	now     func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithSectionDelay sets the pause between sections.
func WithSectionDelay(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.delay = d }
}

// WithTier selects the model tier used for sections.
func WithTier(tier llm.ModelTier) GeneratorOption {
	return func(g *Generator) { g.tier = tier }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator. A nil logger uses slog.Default.
func NewGenerator(store Store, content ContentGenerator, logger *slog.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		store:   store,
		content: content,
		logger:  logger,
		delay:   DefaultSectionDelay,
		tier:    llm.TierStandard,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run generates the sections named by ref (all when empty) in dependency order and
// settles the job. Section failures are recorded and do not stop the run.
func (g *Generator) Run(ctx context.Context, ref types.JobRef) error {
	log := g.logger.With("report_id", ref.ReportID, "user_id", ref.UserID,
		"report_type", ref.ReportType, "generation", ref.Generation)

	ids := ref.Sections
	if len(ids) == 0 {
		ids = sections.IDs(ref.ReportType)
	}
	order := sections.Order(ids)
	log.Info("report generation started", "sections", order)

	assessment, err := g.loadAssessment(ctx, ref.UserID)
	if err != nil {
		log.Error("assessment unavailable", "error", err)
		for _, id := range order {
			if ferr := g.store.FailSection(ctx, ref.ReportID, ref.Generation, id, err.Error()); errors.Is(ferr, db.ErrSuperseded) {
				return nil
			}
		}
		_, ferr := g.store.FinishJob(ctx, ref.ReportID, ref.Generation)
		if ferr != nil && !errors.Is(ferr, db.ErrSuperseded) {
			return ferr
		}
		return err
	}

	for i, id := range order {
		if i > 0 {
			if err := sleep(ctx, g.delay); err != nil {
				return err
			}
		}
		err := g.generateSection(ctx, ref, assessment, id, log)
		switch {
		case errors.Is(err, db.ErrSuperseded):
			log.Info("generation superseded by a newer trigger")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		}
	}

	return g.finish(ctx, ref, log)
}

// RunSection regenerates one section for the job generation and settles the job again.
func (g *Generator) RunSection(ctx context.Context, ref types.JobRef, sectionID int) error {
	log := g.logger.With("report_id", ref.ReportID, "user_id", ref.UserID,
		"report_type", ref.ReportType, "section_id", sectionID)

	assessment, err := g.loadAssessment(ctx, ref.UserID)
	if err != nil {
		if ferr := g.store.FailSection(ctx, ref.ReportID, ref.Generation, sectionID, err.Error()); ferr != nil && !errors.Is(ferr, db.ErrSuperseded) {
			return ferr
		}
		return err
	}
	if err := g.generateSection(ctx, ref, assessment, sectionID, log); errors.Is(err, db.ErrSuperseded) {
		return nil
	}
	return g.finish(ctx, ref, log)
}

func (g *Generator) finish(ctx context.Context, ref types.JobRef, log *slog.Logger) error {
	status, err := g.store.FinishJob(ctx, ref.ReportID, ref.Generation)
	if errors.Is(err, db.ErrSuperseded) {
		log.Info("generation superseded before completion")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}

	if status == types.StatusCompleted {
		if err := g.assemble(ctx, ref); err != nil && !errors.Is(err, db.ErrSuperseded) {
			log.Warn("failed to assemble final report", "error", err)
		}
	}
	log.Info("report generation finished", "status", status)
	return nil
}

var errSectionFailed = errors.New("section generation failed")

// generateSection returns nil, db.ErrSuperseded, or a recorded section failure.
func (g *Generator) generateSection(ctx context.Context, ref types.JobRef, a *types.Assessment, id int, log *slog.Logger) error {
	def, ok := sections.Lookup(id)
	if !ok {
		return g.fail(ctx, ref, id, fmt.Sprintf("unknown section %d", id), log)
	}

	if err := g.store.MarkSectionGenerating(ctx, ref.ReportID, ref.Generation, id); err != nil {
		return err
	}

	prompt, err := sections.BuildPrompt(def, ref.ReportType, a)
	if err != nil {
		return g.fail(ctx, ref, id, err.Error(), log)
	}

	started := g.now()
	content, err := g.content.GenerateContent(ctx, sections.SystemPrompt(ref.ReportType), prompt, g.tier)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return g.fail(ctx, ref, id, err.Error(), log)
	}
	if strings.TrimSpace(content) == "" {
		return g.fail(ctx, ref, id, "generator returned empty content", log)
	}

	if err := g.store.CompleteSection(ctx, ref.ReportID, ref.Generation, id, content); err != nil {
		return err
	}
	log.Info("section completed", "section_id", id, "section", def.Name, "duration", g.now().Sub(started))
	return nil
}

func (g *Generator) fail(ctx context.Context, ref types.JobRef, id int, message string, log *slog.Logger) error {
	log.Warn("section failed", "section_id", id, "error", message)
	if err := g.store.FailSection(ctx, ref.ReportID, ref.Generation, id, message); err != nil {
		return err
	}
	return fmt.Errorf("%w: section %d: %s", errSectionFailed, id, message)
}

func (g *Generator) loadAssessment(ctx context.Context, userID int64) (*types.Assessment, error) {
	raw, err := g.store.GetAssessment(ctx, userID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrAssessmentNotFound
	}
	a, err := schemas.ParseAssessment(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid assessment data: %w", err)
	}
	if a.ParticipantName == "" {
		if p, err := g.store.GetParticipant(ctx, userID); err == nil && p != nil {
			a.ParticipantName = p.Name
		}
	}
	return a, nil
}

func (g *Generator) assemble(ctx context.Context, ref types.JobRef) error {
	job, err := g.store.GetJobByID(ctx, ref.ReportID)
	if err != nil || job == nil {
		return err
	}
	secs, err := g.store.ListSections(ctx, ref.ReportID)
	if err != nil {
		return err
	}
	progress := types.BuildProgress(ref.UserID, ref.ReportType, job, secs, sections.Total(ref.ReportType))

	name := ""
	if p, err := g.store.GetParticipant(ctx, ref.UserID); err == nil && p != nil {
		name = p.Name
	}
	html, err := rendering.RenderHTML(rendering.NewDocument(name, progress, g.now()))
	if err != nil {
		return err
	}
	return g.store.SaveFinalHTML(ctx, ref.ReportID, ref.Generation, html)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
