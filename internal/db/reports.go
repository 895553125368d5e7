package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, user_id, report_type, status, generation, total_sections,
	started_at, completed_at, created_at, updated_at`

const sectionColumns = `section_id, name, title, status, COALESCE(content, ''), COALESCE(error_message, ''),
	generation_attempts, completed_at, updated_at`

// StartParams describes a generation request against the (user, report type) pair.
type StartParams struct {
	UserID     int64
	ReportType types.ReportType
	Regenerate bool
	// Sections seeds the section rows (ID, Name, Title) of a new job.
	Sections []types.Section
	// Reset limits a regeneration to these section ids; all when empty.
	Reset []int
}

// StartResult is the decision taken by BeginGeneration and the job it applies to.
type StartResult struct {
	Action types.StartAction
	Job    types.Job
}

func scanJob(row pgx.Row) (*types.Job, error) {
	var job types.Job
	var reportType, status string
	err := row.Scan(&job.ID, &job.UserID, &reportType, &status, &job.Generation, &job.TotalSections,
		&job.StartedAt, &job.CompletedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	job.ReportType = types.ReportType(reportType)
	job.Status = types.OverallStatus(status)
	return &job, nil
}

func scanSection(row pgx.Row) (types.Section, error) {
	var s types.Section
	var status string
	err := row.Scan(&s.ID, &s.Name, &s.Title, &status, &s.Content, &s.ErrorMessage,
		&s.GenerationAttempts, &s.CompletedAt, &s.UpdatedAt)
	s.Status = types.SectionStatus(status)
	return s, err
}

// GetJob retrieves the job of a (user, report type) pair, nil when none exists
func (db *DB) GetJob(ctx context.Context, userID int64, reportType types.ReportType) (*types.Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE user_id = $1 AND report_type = $2`,
		userID, string(reportType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetJobByID retrieves a job by its UUID, nil when none exists
func (db *DB) GetJobByID(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListSections returns the sections of a job ordered by section id
func (db *DB) ListSections(ctx context.Context, jobID uuid.UUID) ([]types.Section, error) {
	return listSections(ctx, db.pool, jobID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listSections(ctx context.Context, q querier, jobID uuid.UUID) ([]types.Section, error) {
	rows, err := q.Query(ctx,
		`SELECT `+sectionColumns+` FROM report_sections WHERE job_id = $1 ORDER BY section_id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	sections := []types.Section{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// Snapshot reads the job header and its sections in one repeatable-read transaction.
// The job is nil when the pair never had one.
func (db *DB) Snapshot(ctx context.Context, userID int64, reportType types.ReportType) (*types.Job, []types.Section, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	job, err := scanJob(tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE user_id = $1 AND report_type = $2`,
		userID, string(reportType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to get job: %w", err)
	}

	sections, err := listSections(ctx, tx, job.ID)
	if err != nil {
		return nil, nil, err
	}
	return job, sections, tx.Commit(ctx)
}

// BeginGeneration takes the start decision for a pair under a row lock and applies it.
// A reset is committed before this returns so later reads never see the previous run.
func (db *DB) BeginGeneration(ctx context.Context, p StartParams) (*StartResult, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := lockJob(ctx, tx, p.UserID, p.ReportType)
	if err != nil {
		return nil, err
	}

	action := types.DecideStart(existing, p.Regenerate)
	var job *types.Job
	switch action {
	case types.StartCreate:
		job, err = insertJob(ctx, tx, p)
		if errors.Is(err, errConcurrentCreate) {
			// another request created the job between our lock and insert
			existing, err = lockJob(ctx, tx, p.UserID, p.ReportType)
			if err != nil {
				return nil, err
			}
			if existing == nil {
				return nil, fmt.Errorf("job for user %d vanished during create", p.UserID)
			}
			action = types.DecideStart(existing, p.Regenerate)
			if action == types.StartReset {
				job, err = resetJob(ctx, tx, existing, p)
			} else {
				job = existing
			}
		}
	case types.StartReset:
		job, err = resetJob(ctx, tx, existing, p)
	default:
		job = existing
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit generation start: %w", err)
	}
	return &StartResult{Action: action, Job: *job}, nil
}

var errConcurrentCreate = errors.New("job created concurrently")

func lockJob(ctx context.Context, tx pgx.Tx, userID int64, reportType types.ReportType) (*types.Job, error) {
	job, err := scanJob(tx.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE user_id = $1 AND report_type = $2 FOR UPDATE`,
		userID, string(reportType),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}
	return job, nil
}

func insertJob(ctx context.Context, tx pgx.Tx, p StartParams) (*types.Job, error) {
	job, err := scanJob(tx.QueryRow(ctx,
		`INSERT INTO report_jobs (id, user_id, report_type, status, generation, total_sections, started_at)
		 VALUES ($1, $2, $3, $4, 1, $5, NOW())
		 ON CONFLICT (user_id, report_type) DO NOTHING
		 RETURNING `+jobColumns,
		uuid.New(), p.UserID, string(p.ReportType), string(types.StatusInProgress), len(p.Sections),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errConcurrentCreate
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := seedSections(ctx, tx, job.ID, p.Sections); err != nil {
		return nil, err
	}
	return job, nil
}

func seedSections(ctx context.Context, tx pgx.Tx, jobID uuid.UUID, sections []types.Section) error {
	batch := &pgx.Batch{}
	for _, s := range sections {
		batch.Queue(
			`INSERT INTO report_sections (job_id, section_id, name, title, status)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (job_id, section_id) DO NOTHING`,
			jobID, s.ID, s.Name, s.Title, string(types.SectionPending),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed sections: %w", err)
	}
	return nil
}

func resetJob(ctx context.Context, tx pgx.Tx, existing *types.Job, p StartParams) (*types.Job, error) {
	job, err := scanJob(tx.QueryRow(ctx,
		`UPDATE report_jobs
		 SET status = $2, generation = generation + 1, total_sections = $3,
		     started_at = NOW(), completed_at = NULL, final_html = NULL, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+jobColumns,
		existing.ID, string(types.StatusInProgress), len(p.Sections),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to reset job: %w", err)
	}

	if err := seedSections(ctx, tx, job.ID, p.Sections); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE report_sections
		 SET status = $2, content = NULL, error_message = NULL, completed_at = NULL,
		     generation_attempts = 0, updated_at = NOW()
		 WHERE job_id = $1 AND (cardinality($3::int[]) = 0 OR section_id = ANY($3::int[]))`,
		job.ID, string(types.SectionPending), toInt32s(p.Reset),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reset sections: %w", err)
	}
	return job, nil
}

func toInt32s(ids []int) []int32 {
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id)
	}
	return out
}

// updateSection runs an epoch-guarded section update. ErrSuperseded means the job
// generation moved on or the job is gone.
func (db *DB) updateSection(ctx context.Context, jobID uuid.UUID, generation, sectionID int, set string, args ...any) error {
	query := `UPDATE report_sections s SET ` + set + `, updated_at = NOW()
		FROM report_jobs j
		WHERE s.job_id = j.id AND j.id = $1 AND j.generation = $2 AND s.section_id = $3`
	result, err := db.pool.Exec(ctx, query, append([]any{jobID, generation, sectionID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update section %d: %w", sectionID, err)
	}
	if result.RowsAffected() == 0 {
		return ErrSuperseded
	}
	return nil
}

// MarkSectionGenerating flags a section as being generated by the job generation.
func (db *DB) MarkSectionGenerating(ctx context.Context, jobID uuid.UUID, generation, sectionID int) error {
	return db.updateSection(ctx, jobID, generation, sectionID,
		`status = $4, error_message = NULL`, string(types.SectionGenerating))
}

// CompleteSection stores generated content and counts the attempt.
func (db *DB) CompleteSection(ctx context.Context, jobID uuid.UUID, generation, sectionID int, content string) error {
	return db.updateSection(ctx, jobID, generation, sectionID,
		`status = $4, content = $5, error_message = NULL, completed_at = NOW(),
		 generation_attempts = s.generation_attempts + 1`,
		string(types.SectionCompleted), content)
}

// FailSection records a failed attempt with its error message.
func (db *DB) FailSection(ctx context.Context, jobID uuid.UUID, generation, sectionID int, message string) error {
	return db.updateSection(ctx, jobID, generation, sectionID,
		`status = $4, content = NULL, error_message = $5, completed_at = NULL,
		 generation_attempts = s.generation_attempts + 1`,
		string(types.SectionFailed), message)
}

// FinishJob settles the job on its terminal status derived from the section rows.
func (db *DB) FinishJob(ctx context.Context, jobID uuid.UUID, generation int) (types.OverallStatus, error) {
	var completed, failed, total int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE s.status = 'completed'),
		        COUNT(*) FILTER (WHERE s.status = 'failed'),
		        j.total_sections
		 FROM report_jobs j LEFT JOIN report_sections s ON s.job_id = j.id
		 WHERE j.id = $1 AND j.generation = $2
		 GROUP BY j.total_sections`,
		jobID, generation,
	).Scan(&completed, &failed, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSuperseded
		}
		return "", fmt.Errorf("failed to count sections: %w", err)
	}

	status := types.TerminalStatus(completed, failed, total)
	result, err := db.pool.Exec(ctx,
		`UPDATE report_jobs SET status = $3, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND generation = $2`,
		jobID, generation, string(status),
	)
	if err != nil {
		return "", fmt.Errorf("failed to finish job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return "", ErrSuperseded
	}
	return status, nil
}

// SaveFinalHTML stores the assembled report of a completed generation.
func (db *DB) SaveFinalHTML(ctx context.Context, jobID uuid.UUID, generation int, html string) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE report_jobs SET final_html = $3 WHERE id = $1 AND generation = $2`,
		jobID, generation, html,
	)
	if err != nil {
		return fmt.Errorf("failed to save final report: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrSuperseded
	}
	return nil
}

// GetFinalHTML returns the stored final report, empty when none was assembled.
func (db *DB) GetFinalHTML(ctx context.Context, jobID uuid.UUID) (string, error) {
	var html *string
	err := db.pool.QueryRow(ctx, `SELECT final_html FROM report_jobs WHERE id = $1`, jobID).Scan(&html)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get final report: %w", err)
	}
	if html == nil {
		return "", nil
	}
	return *html, nil
}

// UpdateSectionContent replaces the content, and the title when non-empty, of a completed section.
// Editing invalidates the stored final report.
func (db *DB) UpdateSectionContent(ctx context.Context, jobID uuid.UUID, sectionID int, content, title string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := tx.Exec(ctx,
		`UPDATE report_sections
		 SET content = $3, title = COALESCE(NULLIF($4, ''), title), updated_at = NOW()
		 WHERE job_id = $1 AND section_id = $2`,
		jobID, sectionID, content, title,
	)
	if err != nil {
		return fmt.Errorf("failed to update section: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE report_jobs SET final_html = NULL, updated_at = NOW() WHERE id = $1`, jobID,
	); err != nil {
		return fmt.Errorf("failed to invalidate final report: %w", err)
	}
	return tx.Commit(ctx)
}

// BeginSectionRegeneration marks one section of a finished job as generating and
// returns the job generation. The job row is locked so a concurrent reset cannot
// slip between the status check and the update; ErrJobRunning means the job is
// not terminal.
func (db *DB) BeginSectionRegeneration(ctx context.Context, jobID uuid.UUID, sectionID int) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var generation int
	var status string
	err = tx.QueryRow(ctx,
		`SELECT generation, status FROM report_jobs WHERE id = $1 FOR UPDATE`, jobID,
	).Scan(&generation, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to lock job: %w", err)
	}
	if !types.OverallStatus(status).IsTerminal() {
		return 0, ErrJobRunning
	}

	result, err := tx.Exec(ctx,
		`UPDATE report_sections SET status = $3, error_message = NULL, updated_at = NOW()
		 WHERE job_id = $1 AND section_id = $2`,
		jobID, sectionID, string(types.SectionGenerating),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start section regeneration: %w", err)
	}
	if result.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit section regeneration: %w", err)
	}
	return generation, nil
}

// DeleteReport removes the job of a pair and its sections. It reports whether a job existed.
func (db *DB) DeleteReport(ctx context.Context, userID int64, reportType types.ReportType) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM report_jobs WHERE user_id = $1 AND report_type = $2`,
		userID, string(reportType),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete report: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListReports summarises the participants that have sectional reports.
func (db *DB) ListReports(ctx context.Context) ([]types.ReportListEntry, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT p.id, p.name,
		        COUNT(DISTINCT j.id) FILTER (WHERE j.report_type = 'ast_personal'),
		        COUNT(DISTINCT j.id) FILTER (WHERE j.report_type = 'ast_professional'),
		        COUNT(s.section_id),
		        MAX(j.updated_at)
		 FROM participants p
		 JOIN report_jobs j ON j.user_id = p.id
		 LEFT JOIN report_sections s ON s.job_id = j.id
		 GROUP BY p.id, p.name
		 ORDER BY MAX(j.updated_at) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	entries := []types.ReportListEntry{}
	for rows.Next() {
		var e types.ReportListEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.PersonalJobs, &e.ProfessionalJobs, &e.TotalSections, &e.LatestActivity); err != nil {
			return nil, fmt.Errorf("failed to scan report entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// StaleJobs lists running jobs started before the cutoff.
func (db *DB) StaleJobs(ctx context.Context, startedBefore time.Time) ([]types.Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM report_jobs
		 WHERE status IN ('pending', 'in_progress', 'generating') AND started_at < $1
		 ORDER BY started_at`,
		startedBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// AbandonJob settles a running job whose worker is presumed gone. Unfinished sections
// are failed and the job gets its terminal status and a new generation in one
// transaction, so a worker of the abandoned generation that is merely slow gets
// ErrSuperseded on its next write instead of rewriting the terminal job.
// ErrSuperseded is also returned when the generation already moved on or the
// job is no longer running.
func (db *DB) AbandonJob(ctx context.Context, jobID uuid.UUID, generation int, message string) (types.OverallStatus, int64, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int
	err = tx.QueryRow(ctx,
		`SELECT total_sections FROM report_jobs
		 WHERE id = $1 AND generation = $2 AND status IN ('pending', 'in_progress', 'generating')
		 FOR UPDATE`,
		jobID, generation,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", 0, ErrSuperseded
		}
		return "", 0, fmt.Errorf("failed to lock job: %w", err)
	}

	result, err := tx.Exec(ctx,
		`UPDATE report_sections
		 SET status = 'failed', error_message = $2, updated_at = NOW()
		 WHERE job_id = $1 AND status IN ('pending', 'generating')`,
		jobID, message,
	)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fail unfinished sections: %w", err)
	}

	var completed, failed int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'completed'), COUNT(*) FILTER (WHERE status = 'failed')
		 FROM report_sections WHERE job_id = $1`,
		jobID,
	).Scan(&completed, &failed); err != nil {
		return "", 0, fmt.Errorf("failed to count sections: %w", err)
	}

	status := types.TerminalStatus(completed, failed, total)
	if _, err := tx.Exec(ctx,
		`UPDATE report_jobs
		 SET status = $2, generation = generation + 1, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1`,
		jobID, string(status),
	); err != nil {
		return "", 0, fmt.Errorf("failed to settle job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", 0, fmt.Errorf("failed to commit abandoned job: %w", err)
	}
	return status, result.RowsAffected(), nil
}
