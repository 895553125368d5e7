// Package poller follows the progress of one report on the client side: it polls
// the progress endpoint while a generation is active, keeps the freshest snapshot,
// runs the advisory countdown and watches the pipeline health flag.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/allstarteams/sectional-reports/internal/client"
	"github.com/allstarteams/sectional-reports/internal/sections"
	"github.com/allstarteams/sectional-reports/internal/types"
)

// Poll intervals in units.
const (
	ActiveInterval  = 3
	StartupInterval = 5
)

// State of the poll loop.
type State string

const (
	StateIdle     State = "idle"
	StateFast     State = "polling_fast"
	StateOvertime State = "polling_overtime"
	StateStopped  State = "stopped"
)

var (
	ErrNoUser         = errors.New("poller: no user id")
	ErrAlreadyStarted = errors.New("poller: already started")
)

// Fetcher is the API used by the poller. *client.Client implements it.
type Fetcher interface {
	Progress(ctx context.Context, userID int64, rt types.ReportType) (types.ReportProgress, error)
	Generate(ctx context.Context, userID int64, rt types.ReportType, opts client.GenerateOptions) (*types.GenerateAck, error)
	FinalReportURL(userID int64, rt types.ReportType, format string) string
}

// NextInterval returns how long to wait before the next poll, in units, or false
// when no poll should be scheduled.
func NextInterval(status types.OverallStatus, active bool) (int, bool) {
	switch {
	case status.IsActive():
		return ActiveInterval, true
	case active:
		return StartupInterval, true
	default:
		return 0, false
	}
}

// Config configures a Poller.
type Config struct {
	UserID     int64
	ReportType types.ReportType
	// Unit is the length of one time unit; defaults to a second.
	Unit time.Duration
	// OnUpdate is called with every applied snapshot.
	OnUpdate func(types.ReportProgress)
	Logger   *slog.Logger
}

// Poller polls the progress of one (user, report type) pair.
type Poller struct {
	fetcher   Fetcher
	cfg       Config
	countdown *Countdown
	logger    *slog.Logger

	mu       sync.Mutex
	started  bool
	stopped  bool
	snapshot types.ReportProgress
	active   bool
	// seq numbers every fetch; applied is the newest applied one and boundary the
	// first sequence issued after the last successful trigger.
	seq          uint64
	applied      uint64
	boundary     uint64
	completedSeq uint64
	lastErr      error
	fetchFailed  bool
	message      string

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle poller.
func New(fetcher Fetcher, cfg Config) *Poller {
	if cfg.Unit <= 0 {
		cfg.Unit = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Poller{
		fetcher:   fetcher,
		cfg:       cfg,
		countdown: NewCountdown(cfg.Unit),
		logger:    cfg.Logger.With("user_id", cfg.UserID, "report_type", cfg.ReportType),
		snapshot:  types.DefaultProgress(cfg.UserID, cfg.ReportType, sections.Total(cfg.ReportType)),
		wake:      make(chan struct{}, 1),
	}
}

// Countdown returns the advisory countdown of this poller.
func (p *Poller) Countdown() *Countdown {
	return p.countdown
}

// Start fetches immediately and then keeps polling in the background until Stop.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.UserID <= 0 {
		return ErrNoUser
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx)
	return nil
}

// Stop cancels the poll loop and the countdown and waits for both to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.stopped = true
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	p.countdown.Stop()
}

// Snapshot returns the last applied progress.
func (p *Poller) Snapshot() types.ReportProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Err is the error of the last failed fetch or trigger, cleared by the next applied snapshot.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Message is the user-facing message of the last failed trigger.
func (p *Poller) Message() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.message
}

// Active reports whether a generation triggered from this poller is still awaited.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// State reports the current state of the poll loop.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case !p.started:
		return StateIdle
	case p.stopped:
		return StateStopped
	case p.applied == 0 && !p.fetchFailed:
		// first fetch still in flight
		return StateFast
	}
	if _, ok := p.intervalLocked(); !ok {
		return StateStopped
	}
	if p.countdown.Active() && p.countdown.Remaining() < 0 {
		return StateOvertime
	}
	return StateFast
}

// Trigger asks the server to (re)generate the report. On success the countdown
// restarts and fast polling resumes; responses to fetches issued before the
// trigger are ignored from then on.
func (p *Poller) Trigger(ctx context.Context, regenerate bool, sectionIDs ...int) (*types.GenerateAck, error) {
	ack, err := p.fetcher.Generate(ctx, p.cfg.UserID, p.cfg.ReportType, client.GenerateOptions{
		Regenerate: regenerate,
		Sections:   sectionIDs,
	})
	if err != nil {
		p.logger.Error("generation trigger failed", "error", err)
		p.mu.Lock()
		p.lastErr = err
		p.message = client.UserMessage(err)
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	p.boundary = p.seq + 1
	p.active = true
	p.message = ""
	p.lastErr = nil
	p.mu.Unlock()

	p.countdown.Start(NominalDuration)
	p.poke()
	return ack, nil
}

// OpenFinalReport hands the final report URL to opener. It never changes the
// poller state, whatever the current progress is.
func (p *Poller) OpenFinalReport(opener Opener, format string) error {
	if opener == nil {
		return errors.New("poller: no opener")
	}
	return opener.Open(p.fetcher.FinalReportURL(p.cfg.UserID, p.cfg.ReportType, format))
}

func (p *Poller) poke() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	for {
		p.poll(ctx)

		var timer *time.Timer
		var fire <-chan time.Time
		if d, ok := p.nextDelay(); ok {
			timer = time.NewTimer(d)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
		case <-p.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	progress, err := p.fetcher.Progress(ctx, p.cfg.UserID, p.cfg.ReportType)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		p.logger.Warn("progress fetch failed", "error", err)
		p.mu.Lock()
		p.lastErr = err
		p.fetchFailed = true
		p.mu.Unlock()
		return
	}
	if !p.apply(seq, progress) {
		return
	}

	switch progress.OverallStatus {
	case types.StatusCompleted:
		p.countdown.Complete()
	case types.StatusFailed, types.StatusPartialFailure:
		p.countdown.Stop()
	}
	if p.cfg.OnUpdate != nil {
		p.cfg.OnUpdate(progress)
	}
}

// apply stores a fetched snapshot if it is the freshest one and does not regress a
// completed report that no later trigger has reset.
func (p *Poller) apply(seq uint64, progress types.ReportProgress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq <= p.applied || seq < p.boundary {
		return false
	}
	if p.snapshot.OverallStatus == types.StatusCompleted &&
		!progress.OverallStatus.IsTerminal() &&
		p.boundary <= p.completedSeq {
		return false
	}

	p.applied = seq
	p.snapshot = progress
	p.lastErr = nil
	p.fetchFailed = false

	if progress.OverallStatus.IsTerminal() {
		p.active = false
	}
	if progress.OverallStatus == types.StatusCompleted {
		p.completedSeq = seq
	}
	return true
}

func (p *Poller) intervalLocked() (int, bool) {
	if units, ok := NextInterval(p.snapshot.OverallStatus, p.active); ok {
		return units, true
	}
	if p.fetchFailed {
		return StartupInterval, true
	}
	return 0, false
}

func (p *Poller) nextDelay() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	units, ok := p.intervalLocked()
	return time.Duration(units) * p.cfg.Unit, ok
}
