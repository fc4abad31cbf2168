package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AgentConfig holds settings for the local model backend.
type AgentConfig struct {
	Model          string  `yaml:"model"`
	Host           string  `yaml:"host"`
	ContextWindow  int     `yaml:"context_window"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout"`
}

// SystemConfig holds settings for storage and the HTTP server.
type SystemConfig struct {
	Port        string `yaml:"port"`
	DataDir     string `yaml:"data_dir"`
	ResultsFile string `yaml:"results_file"`
}

// Config is the full application configuration.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	System SystemConfig `yaml:"system"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Agent: AgentConfig{
			Model:          "qwen2.5-coder:14b-instruct-q4_K_M",
			Host:           "http://localhost:11434",
			ContextWindow:  32000,
			MaxTokens:      4096,
			Temperature:    0.7,
			TimeoutSeconds: 300,
		},
		System: SystemConfig{
			Port:        "8080",
			DataDir:     "data",
			ResultsFile: "pipeline_results.json",
		},
	}
}

// Load builds the configuration in three layers: built-in defaults, an
// optional YAML file, then environment variables (a .env file is loaded
// first if present).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Load .env file if it exists (ignore errors if it doesn't)
	_ = godotenv.Load()
	cfg.applyEnv()

	return &cfg, nil
}

// applyEnv overrides config values from environment variables.
func (c *Config) applyEnv() {
	c.Agent.Model = getEnv("AGENTPIPE_MODEL", c.Agent.Model)
	c.Agent.Host = getEnv("OLLAMA_HOST", c.Agent.Host)
	c.System.Port = getEnv("PORT", c.System.Port)
	c.System.DataDir = getEnv("AGENTPIPE_DATA_DIR", c.System.DataDir)
	c.System.ResultsFile = getEnv("AGENTPIPE_RESULTS_FILE", c.System.ResultsFile)

	if v := os.Getenv("AGENTPIPE_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Agent.TimeoutSeconds = secs
		}
	}
}

// getEnv gets environment variable or returns default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
