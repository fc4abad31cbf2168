package cmd

import (
	"context"
	"fmt"
	"time"
)

// Check verifies that the local model backend is reachable.
func Check() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	local := newLocalAgent(cfg)
	if err := local.Ping(ctx); err != nil {
		return fmt.Errorf("backend check failed: %w", err)
	}

	fmt.Printf("✅ Ollama reachable at %s (model: %s)\n", cfg.Agent.Host, cfg.Agent.Model)
	return nil
}
