package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"agentpipe/runner"
	"agentpipe/runner/storage"
)

// runRequest is the body accepted by PostRun: an inline pipeline.
type runRequest struct {
	Name  string            `json:"name,omitempty"`
	Steps []runner.StepSpec `json:"steps"`
}

// runDetail is a run record joined with its step executions.
type runDetail struct {
	Run   *storage.Run             `json:"run"`
	Steps []*storage.StepExecution `json:"steps"`
}

// GetRuns returns recent runs
func GetRuns(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		runs, err := store.GetRuns(100) // Limit to 100 most recent
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get runs: %v", err), http.StatusInternalServerError)
			return
		}

		writeJSON(w, runs)
	}
}

// GetRun returns a single run with its step executions
func GetRun(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		idStr := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			http.Error(w, "Invalid run ID", http.StatusBadRequest)
			return
		}

		run, err := store.GetRun(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get run: %v", err), http.StatusNotFound)
			return
		}

		steps, err := store.GetStepExecutions(id)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get step executions: %v", err), http.StatusInternalServerError)
			return
		}

		writeJSON(w, runDetail{Run: run, Steps: steps})
	}
}

// PostRun executes an inline pipeline submitted as JSON and returns the
// full pipeline result
func PostRun(rn *runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}

		name := req.Name
		if name == "" {
			name = "adhoc"
		}

		result, err := rn.RunPipeline(r.Context(), name, req.Steps)
		if err != nil {
			http.Error(w, fmt.Sprintf("Pipeline run failed: %v", err), http.StatusInternalServerError)
			return
		}

		writeJSON(w, result)
	}
}

// GetPipelines returns the registered pipelines
func GetPipelines(registry *runner.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, registry.Pipelines)
	}
}

// PostPipelineRun triggers a registered pipeline by name. The run executes
// in the background; progress is delivered over SSE.
func PostPipelineRun(rn *runner.Runner, registry *runner.Registry, baseDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := pipelineName(r.URL.Path, "/run")
		reg, err := registry.Get(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		pipeline, err := runner.LoadPipeline(reg.FilePath(baseDir))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to load pipeline: %v", err), http.StatusInternalServerError)
			return
		}

		go func() {
			// Detached from the request context so the run survives the response.
			result, err := rn.RunPipeline(context.Background(), pipeline.Name, pipeline.Steps)
			if err != nil {
				log.Printf("❌ Run failed for %s: %v", pipeline.Name, err)
				return
			}
			log.Printf("📊 Run finished: %s (status: %s)", pipeline.Name, result.Status)
		}()

		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{"status": "started", "pipeline": pipeline.Name})
	}
}

// GetPipelineStats returns per-agent stats and recent runs for a pipeline
func GetPipelineStats(store *storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := pipelineName(r.URL.Path, "/stats")

		agents, err := store.GetAgentStats(name)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get agent stats: %v", err), http.StatusInternalServerError)
			return
		}

		latest, err := store.GetLatestRuns(name, 10)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get latest runs: %v", err), http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"agents": agents,
			"runs":   latest,
		})
	}
}

// pipelineName extracts the name segment from /api/pipelines/{name}{suffix}
func pipelineName(path, suffix string) string {
	name := strings.TrimPrefix(path, "/api/pipelines/")
	return strings.TrimSuffix(name, suffix)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
