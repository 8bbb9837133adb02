package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/memory"
	"fjacquet/budget-sync/internal/syncer"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	summary *syncer.Summary
	err     error
	running bool
	opts    syncer.Options
	calls   int
}

func (f *fakeSyncer) Run(_ context.Context, opts syncer.Options) (*syncer.Summary, error) {
	f.calls++
	f.opts = opts
	return f.summary, f.err
}

func (f *fakeSyncer) Running() bool { return f.running }

type fakeMemory struct {
	stats    memory.Stats
	err      error
	clearErr error
	cleared  bool
}

func (f *fakeMemory) Stats(context.Context) (memory.Stats, error) { return f.stats, f.err }

func (f *fakeMemory) Clear(context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = true
	return nil
}

func do(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHandleSync(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		syncer     *fakeSyncer
		wantStatus int
		wantDryRun bool
		wantCalls  int
	}{
		{
			name:       "live run",
			target:     "/sync",
			syncer:     &fakeSyncer{summary: &syncer.Summary{RunID: "r1", Success: true, Inserted: 3}},
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "dry run",
			target:     "/sync?dry_run=true",
			syncer:     &fakeSyncer{summary: &syncer.Summary{RunID: "r2", Success: true, DryRun: true}},
			wantStatus: http.StatusOK,
			wantDryRun: true,
			wantCalls:  1,
		},
		{
			name:       "in progress",
			target:     "/sync",
			syncer:     &fakeSyncer{err: syncerror.ErrSyncInProgress},
			wantStatus: http.StatusConflict,
			wantCalls:  1,
		},
		{
			name:       "aborted",
			target:     "/sync",
			syncer:     &fakeSyncer{summary: &syncer.Summary{RunID: "r3"}, err: errors.New("source down")},
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
		},
		{
			name:       "bad dry_run",
			target:     "/sync?dry_run=maybe",
			syncer:     &fakeSyncer{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(tt.syncer, &fakeMemory{}, logging.NewMockLogger())
			rec := do(t, srv, http.MethodPost, tt.target)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalls, tt.syncer.calls)
			assert.Equal(t, tt.wantDryRun, tt.syncer.opts.DryRun)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestHandleSync_ReturnsSummary(t *testing.T) {
	fs := &fakeSyncer{summary: &syncer.Summary{RunID: "r1", Success: true, Processed: 4, Inserted: 3, Skipped: 1}}
	rec := do(t, New(fs, &fakeMemory{}, nil), http.MethodPost, "/sync")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "r1", body["run_id"])
	assert.Equal(t, float64(3), body["inserted"])
	assert.Equal(t, float64(1), body["skipped"])
}

func TestHandleSync_MethodNotAllowed(t *testing.T) {
	rec := do(t, New(&fakeSyncer{}, &fakeMemory{}, nil), http.MethodGet, "/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleMemoryStats(t *testing.T) {
	modified := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	fm := &fakeMemory{stats: memory.Stats{
		TotalEntries:     2,
		UniqueCategories: 1,
		Categories:       []string{"Food"},
		LastModified:     &modified,
	}}
	rec := do(t, New(&fakeSyncer{}, fm, nil), http.MethodGet, "/memory/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var got memory.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.TotalEntries)
	assert.Equal(t, []string{"Food"}, got.Categories)
	require.NotNil(t, got.LastModified)
	assert.True(t, modified.Equal(*got.LastModified))
}

func TestHandleMemoryStats_Error(t *testing.T) {
	fm := &fakeMemory{err: errors.New("db gone")}
	rec := do(t, New(&fakeSyncer{}, fm, nil), http.MethodGet, "/memory/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleMemoryClear(t *testing.T) {
	fm := &fakeMemory{}
	logger := logging.NewMockLogger()
	rec := do(t, New(&fakeSyncer{}, fm, logger), http.MethodDelete, "/memory")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, fm.cleared)
	assert.True(t, logger.HasEntry("INFO", "Payee memory cleared"))

	fm = &fakeMemory{clearErr: errors.New("read-only")}
	rec = do(t, New(&fakeSyncer{}, fm, nil), http.MethodDelete, "/memory")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	rec := do(t, New(&fakeSyncer{running: true}, &fakeMemory{}, nil), http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sync_running":true}`, rec.Body.String())
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(&fakeSyncer{}, &fakeMemory{}, nil)

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
