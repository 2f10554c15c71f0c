package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verist/marketbrief/pkg/domain"
)

type fakeConfig struct{}

func (f *fakeConfig) GetServerConfig() (string, time.Duration) { return ":0", 5 * time.Second }

type fakePipeline struct {
	last *domain.PipelineResult
}

func (f *fakePipeline) LastResult() *domain.PipelineResult { return f.last }
func (f *fakePipeline) CollectorStatuses() map[string]domain.CollectorStatus {
	return map[string]domain.CollectorStatus{"rss": {State: domain.CollectorActive}}
}

type fakeRunner struct {
	result domain.PipelineResult
	err    error
	window time.Duration
}

func (f *fakeRunner) RunNow(_ context.Context, window time.Duration) (domain.PipelineResult, error) {
	f.window = window
	return f.result, f.err
}

type fakeStore struct {
	results []domain.PipelineResult
	err     error
	limit   int
}

func (f *fakeStore) ListResults(_ context.Context, limit int) ([]domain.PipelineResult, error) {
	f.limit = limit
	return f.results, f.err
}

type fakeCache struct{ size int }

func (f *fakeCache) CacheSize() int { return f.size }

func testServer(pipeline Pipeline, runner Runner, store Store, cache CacheStats) *httptest.Server {
	s := New(&fakeConfig{}, pipeline, runner, store, cache, "test", false)
	return httptest.NewServer(s.router)
}

func TestServer_Status(t *testing.T) {
	last := &domain.PipelineResult{Success: true, Collected: 10, Translated: 5, Timestamp: time.Now()}
	srv := testServer(&fakePipeline{last: last}, &fakeRunner{}, &fakeStore{}, &fakeCache{size: 3})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(3), body["search_cache_size"])

	lastRun, ok := body["last_run"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, lastRun["success"])
	assert.Equal(t, float64(10), lastRun["collected"])

	collectors, ok := body["collectors"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, collectors, "rss")
}

func TestServer_StatusNoRunsYet(t *testing.T) {
	srv := testServer(&fakePipeline{}, &fakeRunner{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotContains(t, body, "last_run")
	assert.NotContains(t, body, "search_cache_size")
}

func TestServer_LastResult(t *testing.T) {
	last := &domain.PipelineResult{Success: true, Message: "bulletin"}
	srv := testServer(&fakePipeline{last: last}, &fakeRunner{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results/last")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Equal(t, "bulletin", got.Message)
}

func TestServer_LastResultNotFound(t *testing.T) {
	srv := testServer(&fakePipeline{}, &fakeRunner{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results/last")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ListResults(t *testing.T) {
	store := &fakeStore{results: []domain.PipelineResult{{Success: true}, {Success: false}}}
	srv := testServer(&fakePipeline{}, &fakeRunner{}, store, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results?limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []domain.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got, 2)
	assert.Equal(t, 2, store.limit)
}

func TestServer_ListResultsBadLimit(t *testing.T) {
	srv := testServer(&fakePipeline{}, &fakeRunner{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results?limit=zero")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_ListResultsStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db gone")}
	srv := testServer(&fakePipeline{}, &fakeRunner{}, store, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/results")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_Run(t *testing.T) {
	runner := &fakeRunner{result: domain.PipelineResult{Success: true, Collected: 7}}
	srv := testServer(&fakePipeline{}, runner, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/run?window=2h", "application/json", http.NoBody)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, got.Success)
	assert.Equal(t, 7, got.Collected)
	assert.Equal(t, 2*time.Hour, runner.window)
}

func TestServer_RunConflict(t *testing.T) {
	runner := &fakeRunner{err: errors.New("pipeline run already in progress")}
	srv := testServer(&fakePipeline{}, runner, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/run", "application/json", http.NoBody)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_RunBadWindow(t *testing.T) {
	srv := testServer(&fakePipeline{}, &fakeRunner{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/run?window=soon", "application/json", http.NoBody)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Ping(t *testing.T) {
	srv := testServer(&fakePipeline{}, &fakeRunner{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
