// Package reportstest provides an in-memory reports.Store for tests.
package reportstest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/allstarteams/sectional-reports/internal/db"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/google/uuid"
)

type pairKey struct {
	userID     int64
	reportType types.ReportType
}

type jobRecord struct {
	job       types.Job
	sections  map[int]types.Section
	finalHTML string
}

// MemoryStore mirrors the semantics of the Postgres store: one job per pair,
// generation guarded worker writes and terminal status derived from sections.
type MemoryStore struct {
	mu           sync.Mutex
	jobs         map[pairKey]*jobRecord
	byID         map[uuid.UUID]*jobRecord
	participants map[int64]*db.Participant
	assessments  map[int64][]byte
	now          func() time.Time

	// Err, when set, is returned by Snapshot and BeginGeneration.
	Err error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:         map[pairKey]*jobRecord{},
		byID:         map[uuid.UUID]*jobRecord{},
		participants: map[int64]*db.Participant{},
		assessments:  map[int64][]byte{},
		now:          time.Now,
	}
}

// AddParticipant registers a participant with assessment data (nil for none).
func (m *MemoryStore) AddParticipant(id int64, name string, assessment []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.participants[id] = &db.Participant{ID: id, Name: name, CreatedAt: m.now()}
	if assessment != nil {
		m.assessments[id] = assessment
	}
}

func (m *MemoryStore) tp() *time.Time {
	t := m.now()
	return &t
}

func (m *MemoryStore) sortedSections(rec *jobRecord) []types.Section {
	out := make([]types.Section, 0, len(rec.sections))
	for _, s := range rec.sections {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b types.Section) int { return a.ID - b.ID })
	return out
}

func (m *MemoryStore) Snapshot(_ context.Context, userID int64, rt types.ReportType) (*types.Job, []types.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, nil, m.Err
	}
	rec, ok := m.jobs[pairKey{userID, rt}]
	if !ok {
		return nil, nil, nil
	}
	job := rec.job
	return &job, m.sortedSections(rec), nil
}

func (m *MemoryStore) GetJob(_ context.Context, userID int64, rt types.ReportType) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[pairKey{userID, rt}]
	if !ok {
		return nil, nil
	}
	job := rec.job
	return &job, nil
}

func (m *MemoryStore) GetJobByID(_ context.Context, id uuid.UUID) (*types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	job := rec.job
	return &job, nil
}

func (m *MemoryStore) ListSections(_ context.Context, jobID uuid.UUID) ([]types.Section, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[jobID]
	if !ok {
		return []types.Section{}, nil
	}
	return m.sortedSections(rec), nil
}

func (m *MemoryStore) BeginGeneration(_ context.Context, p db.StartParams) (*db.StartResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	key := pairKey{p.UserID, p.ReportType}
	rec := m.jobs[key]
	var existing *types.Job
	if rec != nil {
		existing = &rec.job
	}

	action := types.DecideStart(existing, p.Regenerate)
	switch action {
	case types.StartCreate:
		now := m.now()
		rec = &jobRecord{
			job: types.Job{
				ID:            uuid.New(),
				UserID:        p.UserID,
				ReportType:    p.ReportType,
				Status:        types.StatusInProgress,
				Generation:    1,
				TotalSections: len(p.Sections),
				StartedAt:     &now,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
			sections: map[int]types.Section{},
		}
		m.seed(rec, p.Sections)
		m.jobs[key] = rec
		m.byID[rec.job.ID] = rec
	case types.StartReset:
		rec.job.Status = types.StatusInProgress
		rec.job.Generation++
		rec.job.TotalSections = len(p.Sections)
		rec.job.StartedAt = m.tp()
		rec.job.CompletedAt = nil
		rec.job.UpdatedAt = m.now()
		rec.finalHTML = ""
		m.seed(rec, p.Sections)
		for id, s := range rec.sections {
			if len(p.Reset) > 0 && !slices.Contains(p.Reset, id) {
				continue
			}
			s.Status = types.SectionPending
			s.Content = ""
			s.ErrorMessage = ""
			s.CompletedAt = nil
			s.GenerationAttempts = 0
			s.UpdatedAt = m.tp()
			rec.sections[id] = s
		}
	}
	return &db.StartResult{Action: action, Job: rec.job}, nil
}

func (m *MemoryStore) seed(rec *jobRecord, seeds []types.Section) {
	for _, s := range seeds {
		if _, ok := rec.sections[s.ID]; ok {
			continue
		}
		rec.sections[s.ID] = types.Section{ID: s.ID, Name: s.Name, Title: s.Title, Status: types.SectionPending, UpdatedAt: m.tp()}
	}
}

func (m *MemoryStore) guarded(jobID uuid.UUID, generation, sectionID int, fn func(*types.Section)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[jobID]
	if !ok || rec.job.Generation != generation {
		return db.ErrSuperseded
	}
	s, ok := rec.sections[sectionID]
	if !ok {
		return db.ErrSuperseded
	}
	fn(&s)
	s.UpdatedAt = m.tp()
	rec.sections[sectionID] = s
	return nil
}

func (m *MemoryStore) MarkSectionGenerating(_ context.Context, jobID uuid.UUID, generation, sectionID int) error {
	return m.guarded(jobID, generation, sectionID, func(s *types.Section) {
		s.Status = types.SectionGenerating
		s.ErrorMessage = ""
	})
}

func (m *MemoryStore) CompleteSection(_ context.Context, jobID uuid.UUID, generation, sectionID int, content string) error {
	return m.guarded(jobID, generation, sectionID, func(s *types.Section) {
		s.Status = types.SectionCompleted
		s.Content = content
		s.ErrorMessage = ""
		s.CompletedAt = m.tp()
		s.GenerationAttempts++
	})
}

func (m *MemoryStore) FailSection(_ context.Context, jobID uuid.UUID, generation, sectionID int, message string) error {
	return m.guarded(jobID, generation, sectionID, func(s *types.Section) {
		s.Status = types.SectionFailed
		s.Content = ""
		s.ErrorMessage = message
		s.CompletedAt = nil
		s.GenerationAttempts++
	})
}

func (m *MemoryStore) FinishJob(_ context.Context, jobID uuid.UUID, generation int) (types.OverallStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[jobID]
	if !ok || rec.job.Generation != generation {
		return "", db.ErrSuperseded
	}
	completed, failed := 0, 0
	for _, s := range rec.sections {
		switch s.Status {
		case types.SectionCompleted:
			completed++
		case types.SectionFailed:
			failed++
		}
	}
	status := types.TerminalStatus(completed, failed, rec.job.TotalSections)
	rec.job.Status = status
	rec.job.CompletedAt = m.tp()
	rec.job.UpdatedAt = m.now()
	return status, nil
}

func (m *MemoryStore) SaveFinalHTML(_ context.Context, jobID uuid.UUID, generation int, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[jobID]
	if !ok || rec.job.Generation != generation {
		return db.ErrSuperseded
	}
	rec.finalHTML = html
	return nil
}

func (m *MemoryStore) GetFinalHTML(_ context.Context, jobID uuid.UUID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.byID[jobID]; ok {
		return rec.finalHTML, nil
	}
	return "", nil
}

func (m *MemoryStore) UpdateSectionContent(_ context.Context, jobID uuid.UUID, sectionID int, content, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[jobID]
	if !ok {
		return db.ErrNotFound
	}
	s, ok := rec.sections[sectionID]
	if !ok {
		return db.ErrNotFound
	}
	s.Content = content
	if title != "" {
		s.Title = title
	}
	s.UpdatedAt = m.tp()
	rec.sections[sectionID] = s
	rec.finalHTML = ""
	return nil
}

func (m *MemoryStore) BeginSectionRegeneration(_ context.Context, jobID uuid.UUID, sectionID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[jobID]
	if !ok {
		return 0, db.ErrNotFound
	}
	if !rec.job.Status.IsTerminal() {
		return 0, db.ErrJobRunning
	}
	s, ok := rec.sections[sectionID]
	if !ok {
		return 0, db.ErrNotFound
	}
	s.Status = types.SectionGenerating
	s.ErrorMessage = ""
	rec.sections[sectionID] = s
	return rec.job.Generation, nil
}

func (m *MemoryStore) DeleteReport(_ context.Context, userID int64, rt types.ReportType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{userID, rt}
	rec, ok := m.jobs[key]
	if !ok {
		return false, nil
	}
	delete(m.jobs, key)
	delete(m.byID, rec.job.ID)
	return true, nil
}

func (m *MemoryStore) ListReports(_ context.Context) ([]types.ReportListEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byUser := map[int64]*types.ReportListEntry{}
	for key, rec := range m.jobs {
		e, ok := byUser[key.userID]
		if !ok {
			e = &types.ReportListEntry{UserID: key.userID}
			if p := m.participants[key.userID]; p != nil {
				e.Name = p.Name
			}
			byUser[key.userID] = e
		}
		if key.reportType == types.ReportTypePersonal {
			e.PersonalJobs++
		} else {
			e.ProfessionalJobs++
		}
		e.TotalSections += len(rec.sections)
		updated := rec.job.UpdatedAt
		if e.LatestActivity == nil || updated.After(*e.LatestActivity) {
			e.LatestActivity = &updated
		}
	}
	out := make([]types.ReportListEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b types.ReportListEntry) int { return int(a.UserID - b.UserID) })
	return out, nil
}

func (m *MemoryStore) StaleJobs(_ context.Context, startedBefore time.Time) ([]types.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Job
	for _, rec := range m.jobs {
		if rec.job.Status.IsTerminal() || rec.job.StartedAt == nil {
			continue
		}
		if rec.job.StartedAt.Before(startedBefore) {
			out = append(out, rec.job)
		}
	}
	return out, nil
}

func (m *MemoryStore) AbandonJob(_ context.Context, jobID uuid.UUID, generation int, message string) (types.OverallStatus, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[jobID]
	if !ok || rec.job.Generation != generation || rec.job.Status.IsTerminal() {
		return "", 0, db.ErrSuperseded
	}
	var n int64
	completed, failed := 0, 0
	for id, s := range rec.sections {
		if s.Status == types.SectionPending || s.Status == types.SectionGenerating {
			s.Status = types.SectionFailed
			s.ErrorMessage = message
			s.UpdatedAt = m.tp()
			rec.sections[id] = s
			n++
		}
		switch s.Status {
		case types.SectionCompleted:
			completed++
		case types.SectionFailed:
			failed++
		}
	}
	status := types.TerminalStatus(completed, failed, rec.job.TotalSections)
	rec.job.Status = status
	rec.job.Generation++
	rec.job.CompletedAt = m.tp()
	rec.job.UpdatedAt = m.now()
	return status, n, nil
}

func (m *MemoryStore) GetParticipant(_ context.Context, id int64) (*db.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.participants[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) GetAssessment(_ context.Context, userID int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assessments[userID], nil
}

// SetClock replaces time.Now.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}
