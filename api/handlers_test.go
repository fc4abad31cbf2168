package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentpipe/agent"
	"agentpipe/runner"
	"agentpipe/runner/storage"
)

func newTestRunner(t *testing.T) (*runner.Runner, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rn := &runner.Runner{
		Agent: agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
			if strings.Contains(req.Task, "fail") {
				return agent.Outcome{Error: "model unavailable"}
			}
			return agent.Outcome{Success: true, Output: "done: " + req.Task}
		}),
		DefaultModel: "test-model",
		Storage:      store,
	}
	return rn, store
}

func TestPostRun(t *testing.T) {
	rn, _ := newTestRunner(t)

	body := `{"name": "adhoc-docs", "steps": [
		{"agent": "analyzer", "task": "find files"},
		{"agent": "summarizer", "task": "summarize", "use_previous": true}
	]}`

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(body))
	rec := httptest.NewRecorder()
	PostRun(rn)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result runner.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "success", result.Status)
	assert.Nil(t, result.HaltedAt)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "analyzer", result.Steps[0].AgentID)
	assert.Contains(t, result.Steps[1].Output, "summarize")
}

func TestPostRunHalts(t *testing.T) {
	rn, _ := newTestRunner(t)

	body := `{"steps": [
		{"agent": "a", "task": "fail here"},
		{"agent": "b", "task": "never runs"}
	]}`

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(body))
	rec := httptest.NewRecorder()
	PostRun(rn)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result runner.PipelineResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "failed", result.Status)
	require.NotNil(t, result.HaltedAt)
	assert.Equal(t, 0, *result.HaltedAt)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "model unavailable", result.Steps[0].Error)
}

func TestPostRunBadBody(t *testing.T) {
	rn, _ := newTestRunner(t)

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	PostRun(rn)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRunsAndGetRun(t *testing.T) {
	rn, store := newTestRunner(t)

	result, err := rn.RunPipeline(context.Background(), "docs", []runner.StepSpec{
		{AgentID: "analyzer", Task: "find files"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	GetRuns(store)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var runs []*storage.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].ID)
	assert.Equal(t, "docs", runs[0].Pipeline)

	req = httptest.NewRequest(http.MethodGet, "/api/runs/1", nil)
	rec = httptest.NewRecorder()
	GetRun(store)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var detail runDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "success", detail.Run.Status)
	require.Len(t, detail.Steps, 1)
	assert.Equal(t, "analyzer", detail.Steps[0].AgentID)
}

func TestGetRunInvalidID(t *testing.T) {
	_, store := newTestRunner(t)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil)
	rec := httptest.NewRecorder()
	GetRun(store)(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPipelines(t *testing.T) {
	registry := &runner.Registry{Pipelines: []runner.RegisteredPipeline{
		{Name: "docs", Path: "docs.yml"},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/pipelines", nil)
	rec := httptest.NewRecorder()
	GetPipelines(registry)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var pipelines []runner.RegisteredPipeline
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pipelines))
	require.Len(t, pipelines, 1)
	assert.Equal(t, "docs", pipelines[0].Name)
}

func TestPostPipelineRunNotFound(t *testing.T) {
	rn, _ := newTestRunner(t)
	registry := &runner.Registry{}

	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/missing/run", nil)
	rec := httptest.NewRecorder()
	PostPipelineRun(rn, registry, t.TempDir())(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPostPipelineRunAccepted(t *testing.T) {
	rn, _ := newTestRunner(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs.yml"),
		[]byte("steps:\n  - agent: a\n    task: find files\n"), 0644))
	registry := &runner.Registry{Pipelines: []runner.RegisteredPipeline{
		{Name: "docs", Path: "docs.yml"},
	}}

	req := httptest.NewRequest(http.MethodPost, "/api/pipelines/docs/run", nil)
	rec := httptest.NewRecorder()
	PostPipelineRun(rn, registry, dir)(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"started"`)
}

func TestGetPipelineStats(t *testing.T) {
	rn, store := newTestRunner(t)

	_, err := rn.RunPipeline(context.Background(), "docs", []runner.StepSpec{
		{AgentID: "analyzer", Task: "find files"},
		{AgentID: "breaker", Task: "fail now", ContinueOnError: true},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/pipelines/docs/stats", nil)
	rec := httptest.NewRecorder()
	GetPipelineStats(store)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		Agents []storage.AgentStats       `json:"agents"`
		Runs   []storage.PipelineRunStats `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Len(t, stats.Agents, 2)
	require.Len(t, stats.Runs, 1)
	assert.Equal(t, 2, stats.Runs[0].StepCount)
}

func TestMethodNotAllowed(t *testing.T) {
	rn, store := newTestRunner(t)

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	GetRuns(store)(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/run", nil)
	rec = httptest.NewRecorder()
	PostRun(rn)(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
