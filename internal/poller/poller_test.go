package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/allstarteams/sectional-reports/internal/client"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUnit   = time.Millisecond
	testUserID = 42
)

type response struct {
	progress types.ReportProgress
	err      error
}

// fakeFetcher serves scripted progress responses; the last one repeats.
type fakeFetcher struct {
	mu          sync.Mutex
	responses   []response
	next        int
	calls       int
	generateErr error
	generated   []client.GenerateOptions
	onGenerate  func(f *fakeFetcher)
}

func (f *fakeFetcher) Progress(_ context.Context, userID int64, rt types.ReportType) (types.ReportProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.responses) == 0 {
		return types.DefaultProgress(userID, rt, 6), nil
	}
	r := f.responses[min(f.next, len(f.responses)-1)]
	f.next++
	return r.progress, r.err
}

func (f *fakeFetcher) Generate(_ context.Context, _ int64, _ types.ReportType, opts client.GenerateOptions) (*types.GenerateAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, opts)
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	if f.onGenerate != nil {
		f.onGenerate(f)
	}
	return &types.GenerateAck{Success: true, ReportID: "r1", Status: types.StatusInProgress}, nil
}

func (f *fakeFetcher) FinalReportURL(userID int64, rt types.ReportType, format string) string {
	return fmt.Sprintf("http://reports.test/final/%d/%s?format=%s", userID, rt, format)
}

// script replaces the responses; call with f.mu held or before the poller starts.
func (f *fakeFetcher) script(responses ...response) {
	f.responses = responses
	f.next = 0
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func progress(status types.OverallStatus, completed int) response {
	return response{progress: types.ReportProgress{
		UserID:             testUserID,
		ReportType:         types.ReportTypePersonal,
		OverallStatus:      status,
		SectionsCompleted:  completed,
		TotalSections:      6,
		ProgressPercentage: types.Percentage(completed, 6),
	}}
}

func newTestPoller(t *testing.T, f *fakeFetcher) *Poller {
	t.Helper()
	p := New(f, Config{UserID: testUserID, ReportType: types.ReportTypePersonal, Unit: testUnit})
	t.Cleanup(p.Stop)
	return p
}

func TestNextInterval(t *testing.T) {
	tests := []struct {
		status types.OverallStatus
		active bool
		want   int
		ok     bool
	}{
		{types.StatusInProgress, false, 3, true},
		{types.StatusGenerating, true, 3, true},
		{types.StatusPending, true, 5, true},
		{types.StatusCompleted, true, 5, true},
		{types.StatusPending, false, 0, false},
		{types.StatusCompleted, false, 0, false},
		{types.StatusPartialFailure, false, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%v", tt.status, tt.active), func(t *testing.T) {
			got, ok := NextInterval(tt.status, tt.active)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestPoller_StartRequiresUser(t *testing.T) {
	p := New(&fakeFetcher{}, Config{ReportType: types.ReportTypePersonal})
	assert.ErrorIs(t, p.Start(context.Background()), ErrNoUser)
	assert.Equal(t, StateIdle, p.State())
}

func TestPoller_StartTwice(t *testing.T) {
	p := newTestPoller(t, &fakeFetcher{})
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)
}

func TestPoller_UnknownPairPollsOnce(t *testing.T) {
	f := &fakeFetcher{}
	p := newTestPoller(t, f)
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * testUnit)
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, StateStopped, p.State())
	assert.Equal(t, types.StatusPending, p.Snapshot().OverallStatus)
}

func TestPoller_PollsUntilCompleted(t *testing.T) {
	f := &fakeFetcher{}
	f.script(progress(types.StatusInProgress, 2), progress(types.StatusInProgress, 4), progress(types.StatusCompleted, 6))

	var mu sync.Mutex
	var seen []types.OverallStatus
	p := New(f, Config{
		UserID: testUserID, ReportType: types.ReportTypePersonal, Unit: testUnit,
		OnUpdate: func(rp types.ReportProgress) {
			mu.Lock()
			seen = append(seen, rp.OverallStatus)
			mu.Unlock()
		},
	})
	t.Cleanup(p.Stop)
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return p.State() == StateStopped }, time.Second, time.Millisecond)
	calls := f.callCount()
	time.Sleep(20 * testUnit)
	assert.Equal(t, calls, f.callCount(), "no polls after completed")
	assert.Equal(t, 3, calls)

	snap := p.Snapshot()
	assert.Equal(t, types.StatusCompleted, snap.OverallStatus)
	assert.Equal(t, 100, snap.ProgressPercentage)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []types.OverallStatus{types.StatusInProgress, types.StatusInProgress, types.StatusCompleted}, seen)
}

func TestPoller_TriggerRestartsAndCompletes(t *testing.T) {
	f := &fakeFetcher{}
	f.script(progress(types.StatusCompleted, 6))
	p := newTestPoller(t, f)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return p.State() == StateStopped }, time.Second, time.Millisecond)

	// the server holds the reset job until the third poll
	f.onGenerate = func(f *fakeFetcher) {
		f.script(progress(types.StatusInProgress, 0), progress(types.StatusInProgress, 3), progress(types.StatusCompleted, 6))
	}
	ack, err := p.Trigger(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "r1", ack.ReportID)
	assert.True(t, f.generated[0].Regenerate)

	require.Eventually(t, func() bool { return p.Snapshot().OverallStatus == types.StatusInProgress }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return p.Snapshot().OverallStatus == types.StatusCompleted }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !p.Countdown().Active() }, time.Second, time.Millisecond)

	assert.False(t, p.Active())
	assert.Zero(t, p.Countdown().Remaining())
	assert.Equal(t, StateStopped, p.State())
}

func TestPoller_TriggerBeforeServerReports(t *testing.T) {
	f := &fakeFetcher{}
	p := newTestPoller(t, f)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)

	// the server still answers pending: the active flag keeps polling at the slow rate
	_, err := p.Trigger(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, p.Active())
	assert.True(t, p.Countdown().Active())
	require.Eventually(t, func() bool { return f.callCount() >= 3 }, time.Second, time.Millisecond)
	assert.Equal(t, StateFast, p.State())
}

func TestPoller_TriggerFailureIsUserVisible(t *testing.T) {
	f := &fakeFetcher{generateErr: fmt.Errorf("%w: expected JSON", client.ErrGenerationFailed)}
	p := newTestPoller(t, f)

	ack, err := p.Trigger(context.Background(), false)
	require.Error(t, err)
	assert.Nil(t, ack)
	assert.Equal(t, "Uh oh, something went wrong", p.Message())
	assert.False(t, p.Active())
	assert.False(t, p.Countdown().Active())
	assert.Equal(t, StateIdle, p.State())
}

func TestPoller_FetchErrorKeepsSnapshot(t *testing.T) {
	f := &fakeFetcher{}
	boom := errors.New("connection reset")
	f.script(progress(types.StatusInProgress, 1), response{err: boom}, progress(types.StatusCompleted, 6))
	var snaps []types.ReportProgress
	var mu sync.Mutex
	p := New(f, Config{
		UserID: testUserID, ReportType: types.ReportTypePersonal, Unit: testUnit,
		OnUpdate: func(rp types.ReportProgress) {
			mu.Lock()
			snaps = append(snaps, rp)
			mu.Unlock()
		},
	})
	t.Cleanup(p.Stop)
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return p.Snapshot().OverallStatus == types.StatusCompleted }, time.Second, time.Millisecond)
	assert.NoError(t, p.Err())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, snaps, 2, "the failed fetch is not applied")
	assert.Equal(t, types.StatusInProgress, snaps[0].OverallStatus)
}

func TestPoller_InitialFetchErrorRetries(t *testing.T) {
	f := &fakeFetcher{}
	f.script(response{err: errors.New("down")}, progress(types.StatusInProgress, 0), progress(types.StatusCompleted, 6))
	p := newTestPoller(t, f)
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return p.Snapshot().OverallStatus == types.StatusCompleted }, time.Second, time.Millisecond)
}

func TestPoller_ApplyFreshness(t *testing.T) {
	p := New(&fakeFetcher{}, Config{UserID: testUserID, ReportType: types.ReportTypePersonal})

	assert.True(t, p.apply(2, progress(types.StatusCompleted, 6).progress))
	assert.False(t, p.apply(1, progress(types.StatusInProgress, 3).progress), "older response")
	assert.False(t, p.apply(3, progress(types.StatusInProgress, 3).progress), "completed never regresses")
	assert.Equal(t, types.StatusCompleted, p.Snapshot().OverallStatus)

	// a trigger moves the boundary past the fetches already issued
	p.mu.Lock()
	p.seq = 3
	p.boundary = p.seq + 1
	p.mu.Unlock()

	assert.False(t, p.apply(3, progress(types.StatusInProgress, 0).progress), "issued before the trigger")
	assert.True(t, p.apply(4, progress(types.StatusInProgress, 0).progress))
	assert.Equal(t, types.StatusInProgress, p.Snapshot().OverallStatus)
}

func TestPoller_CompletedInvariantAcrossSnapshots(t *testing.T) {
	f := &fakeFetcher{}
	f.script(progress(types.StatusInProgress, 1), progress(types.StatusInProgress, 5), progress(types.StatusCompleted, 6))
	var mu sync.Mutex
	var bad []types.ReportProgress
	p := New(f, Config{
		UserID: testUserID, ReportType: types.ReportTypePersonal, Unit: testUnit,
		OnUpdate: func(rp types.ReportProgress) {
			if rp.OverallStatus == types.StatusCompleted && (rp.SectionsCompleted != rp.TotalSections || rp.SectionsFailed != 0) {
				mu.Lock()
				bad = append(bad, rp)
				mu.Unlock()
			}
		},
	})
	t.Cleanup(p.Stop)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return p.State() == StateStopped }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, bad)
}

func TestPoller_FailureStopsCountdown(t *testing.T) {
	f := &fakeFetcher{}
	p := newTestPoller(t, f)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)

	f.onGenerate = func(f *fakeFetcher) {
		f.script(progress(types.StatusInProgress, 0), progress(types.StatusPartialFailure, 5))
	}
	_, err := p.Trigger(context.Background(), true)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.State() == StateStopped }, time.Second, time.Millisecond)
	assert.False(t, p.Active())
	require.Eventually(t, func() bool { return !p.Countdown().Active() }, time.Second, time.Millisecond)
	assert.Positive(t, p.Countdown().Remaining(), "stopped, not cleared")
}

func TestPoller_StopCancelsLoop(t *testing.T) {
	f := &fakeFetcher{}
	f.script(progress(types.StatusInProgress, 1))
	p := New(f, Config{UserID: testUserID, ReportType: types.ReportTypePersonal, Unit: testUnit})
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return f.callCount() >= 2 }, time.Second, time.Millisecond)

	p.Stop()
	calls := f.callCount()
	time.Sleep(20 * testUnit)
	assert.Equal(t, calls, f.callCount())
	assert.Equal(t, StateStopped, p.State())

	p.Stop()
}

func TestPoller_OpenFinalReportDoesNotChangeState(t *testing.T) {
	f := &fakeFetcher{}
	f.script(progress(types.StatusInProgress, 2))
	p := newTestPoller(t, f)
	require.NoError(t, p.Start(context.Background()))
	require.Eventually(t, func() bool { return p.Snapshot().OverallStatus == types.StatusInProgress }, time.Second, time.Millisecond)

	stateBefore, snapBefore := p.State(), p.Snapshot()
	var opened string
	err := p.OpenFinalReport(OpenerFunc(func(url string) error {
		opened = url
		return nil
	}), "html")
	require.NoError(t, err)

	assert.Equal(t, "http://reports.test/final/42/ast_personal?format=html", opened)
	assert.Equal(t, stateBefore, p.State())
	assert.Equal(t, snapBefore, p.Snapshot())

	assert.Error(t, p.OpenFinalReport(nil, "html"))
}
