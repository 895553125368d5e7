package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allstarteams/sectional-reports/internal/config"
	"github.com/allstarteams/sectional-reports/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	pipeline  atomic.Value
	polls     atomic.Int32
	generated atomic.Bool
	htmlAck   bool
}

func newFakeAPI(t *testing.T, api *fakeAPI) config.ClientConfig {
	t.Helper()
	if api.pipeline.Load() == nil {
		api.pipeline.Store(types.PipelineAvailable)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, types.HealthStatus{Status: "ok", ReportPipeline: api.pipeline.Load().(string)})
	})
	mux.HandleFunc("POST /generate/{userId}", func(w http.ResponseWriter, r *http.Request) {
		if api.htmlAck {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html><title>Bad Gateway</title></html>"))
			return
		}
		api.generated.Store(true)
		writeTestJSON(w, types.GenerateAck{Success: true, ReportID: "r1", Message: "Report generation started", Status: types.StatusInProgress})
	})
	mux.HandleFunc("GET /progress/{userId}/{reportType}", func(w http.ResponseWriter, r *http.Request) {
		n := api.polls.Add(1)
		rp := types.DefaultProgress(42, types.ReportTypePersonal, 6)
		if api.generated.Load() {
			completed := min(int(n)*2, 6)
			rp.OverallStatus = types.StatusInProgress
			rp.SectionsCompleted = completed
			rp.ProgressPercentage = types.Percentage(completed, 6)
			if completed == 6 {
				rp.OverallStatus = types.StatusCompleted
			}
		}
		writeTestJSON(w, map[string]any{"success": true, "progress": rp})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return config.ClientConfig{BaseURL: srv.URL, Token: "tok", UserID: 42, ReportType: "ast_personal", Format: "pdf"}
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestWatchReport_TriggerUntilComplete(t *testing.T) {
	api := &fakeAPI{}
	cfg := newFakeAPI(t, api)
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := watchReport(ctx, &out, cfg, watchOpts{Trigger: true, Open: true, Unit: time.Millisecond})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "AST PERSONAL REPORT")
	assert.Contains(t, out.String(), "100%")
	assert.Contains(t, out.String(), "/final/42/ast_personal?access_token=tok&format=pdf")
}

func TestWatchReport_NothingRunning(t *testing.T) {
	api := &fakeAPI{}
	cfg := newFakeAPI(t, api)
	var out bytes.Buffer

	err := watchReport(context.Background(), &out, cfg, watchOpts{Unit: time.Millisecond})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "NO REPORT")
	assert.Equal(t, int32(1), api.polls.Load())
}

func TestWatchReport_TriggerFailureShowsMessage(t *testing.T) {
	api := &fakeAPI{htmlAck: true}
	cfg := newFakeAPI(t, api)
	var out bytes.Buffer

	err := watchReport(context.Background(), &out, cfg, watchOpts{Trigger: true, Unit: time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, out.String(), "Uh oh, something went wrong")
}

func TestWatchReport_WaitsForPipeline(t *testing.T) {
	api := &fakeAPI{}
	api.pipeline.Store(types.PipelineUnavailable)
	cfg := newFakeAPI(t, api)
	go func() {
		time.Sleep(50 * time.Millisecond)
		api.pipeline.Store(types.PipelineAvailable)
	}()
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := watchReport(ctx, &out, cfg, watchOpts{Trigger: true, Unit: time.Millisecond})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Report generation is paused")
	assert.Contains(t, out.String(), "available again")
}
