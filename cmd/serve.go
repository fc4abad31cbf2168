package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"agentpipe/api"
	"agentpipe/runner"
)

// Serve starts the HTTP server with the API, SSE events, and the scheduler.
func Serve() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Load pipeline registry
	registry, err := runner.LoadRegistry("pipelines.yml")
	if err != nil {
		log.Printf("Warning: Failed to load pipeline registry: %v", err)
		registry = &runner.Registry{}
	} else {
		log.Printf("📁 Loaded %d pipeline(s)", len(registry.Pipelines))
	}

	rn := &runner.Runner{
		Agent:        newLocalAgent(cfg),
		DefaultModel: cfg.Agent.Model,
		Storage:      store,
	}

	// Start scheduler for registered pipelines with schedules
	scheduler := runner.NewScheduler(registry, rn, cwd)
	go scheduler.Start()
	defer scheduler.Stop()

	// Setup HTTP routes
	mux := http.NewServeMux()

	// CORS middleware
	corsMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// API endpoints
	mux.HandleFunc("/api/runs", api.GetRuns(store))
	mux.HandleFunc("/api/runs/", api.GetRun(store))
	mux.HandleFunc("/api/run", api.PostRun(rn))
	mux.HandleFunc("/api/events", api.SSEHandler())

	mux.HandleFunc("/api/pipelines", api.GetPipelines(registry))
	mux.HandleFunc("/api/pipelines/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/run") {
			api.PostPipelineRun(rn, registry, cwd)(w, r)
		} else if strings.HasSuffix(r.URL.Path, "/stats") {
			api.GetPipelineStats(store)(w, r)
		} else {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + cfg.System.Port
	log.Printf("🚀 Starting agentpipe server on port %s...", cfg.System.Port)
	log.Printf("🤖 Model: %s via %s", cfg.Agent.Model, cfg.Agent.Host)

	if err := http.ListenAndServe(serverAddr, corsMiddleware(mux)); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
