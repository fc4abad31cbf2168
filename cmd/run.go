package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"agentpipe/agent"
	"agentpipe/config"
	"agentpipe/runner"
	"agentpipe/runner/storage"
)

// Run executes the 'run' command: load a pipeline file, execute it against
// the local model backend, persist the run, and write the results file.
func Run(pipelinePath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := runner.LoadPipeline(pipelinePath)
	if err != nil {
		return fmt.Errorf("failed to load pipeline: %w", err)
	}

	rn := &runner.Runner{
		Agent:            newLocalAgent(cfg),
		DefaultModel:     cfg.Agent.Model,
		Storage:          store,
		StreamToTerminal: true, // Always stream to console for local development
	}

	result, err := rn.RunPipeline(context.Background(), pipeline.Name, pipeline.Steps)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	if err := runner.WriteResults(cfg.System.ResultsFile, result); err != nil {
		log.Printf("⚠️  Failed to write results file: %v", err)
	} else {
		log.Printf("💾 Results saved to %s", cfg.System.ResultsFile)
	}

	fmt.Printf("\n📊 Run ID: %d | Status: %s | Duration: %s\n", result.RunID, result.Status, result.Duration)
	if result.Halted() {
		fmt.Printf("🛑 Halted at step %d\n", *result.HaltedAt)
	}

	return nil
}

// loadConfig reads agentpipe.yml from the working directory when present,
// falling back to defaults plus environment overrides.
func loadConfig() (*config.Config, error) {
	path := "agentpipe.yml"
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStorage opens the sqlite database under the configured data directory.
func openStorage(cfg *config.Config) (*storage.Storage, error) {
	if err := os.MkdirAll(cfg.System.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(cfg.System.DataDir, "agentpipe.db")
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

// newLocalAgent builds the Ollama-backed agent from config.
func newLocalAgent(cfg *config.Config) *agent.Local {
	return agent.NewLocal(agent.LocalOptions{
		Host:          cfg.Agent.Host,
		ContextWindow: cfg.Agent.ContextWindow,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
		Timeout:       time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
	})
}
