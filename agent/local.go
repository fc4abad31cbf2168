package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Defaults for the local Ollama backend.
const (
	DefaultHost          = "http://localhost:11434"
	DefaultModel         = "qwen2.5-coder:14b-instruct-q4_K_M"
	DefaultContextWindow = 32000
	DefaultMaxTokens     = 4096
	DefaultTemperature   = 0.7
	DefaultTimeout       = 300 * time.Second
)

// LocalOptions configures a Local agent.
type LocalOptions struct {
	Host          string        // Ollama base URL (default http://localhost:11434)
	ContextWindow int           // num_ctx passed to the model
	MaxTokens     int           // num_predict passed to the model
	Temperature   float64       // sampling temperature
	Timeout       time.Duration // per-request HTTP timeout
}

// Local is an Agent backed by a local Ollama instance. Every fault along the
// way (connection refused, non-2xx status, malformed body, timeout) is folded
// into a failed Outcome so the orchestrator never sees an unhandled error.
type Local struct {
	host   string
	client *http.Client

	contextWindow int
	maxTokens     int
	temperature   float64
}

// NewLocal creates a Local agent talking to an Ollama server.
func NewLocal(opts LocalOptions) *Local {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.ContextWindow == 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Local{
		host:          strings.TrimRight(opts.Host, "/"),
		client:        &http.Client{Timeout: opts.Timeout},
		contextWindow: opts.ContextWindow,
		maxTokens:     opts.MaxTokens,
		temperature:   opts.Temperature,
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Execute sends the task to Ollama's generate endpoint and returns the
// model's response as the Outcome output.
func (l *Local) Execute(ctx context.Context, req Request) Outcome {
	if strings.TrimSpace(req.Task) == "" {
		return Outcome{Error: "task is empty"}
	}

	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	body := generateRequest{
		Model:  model,
		Prompt: req.Task,
		System: systemPrompt(req.Role),
		Stream: false,
		Options: map[string]interface{}{
			"num_ctx":     l.contextWindow,
			"num_predict": l.maxTokens,
			"temperature": l.temperature,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Outcome{Error: fmt.Sprintf("failed to encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Outcome{Error: fmt.Sprintf("failed to build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return Outcome{Error: fmt.Sprintf("model request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Error: fmt.Sprintf("failed to read response: %v", err)}
	}

	var gen generateResponse
	if err := json.Unmarshal(raw, &gen); err != nil {
		return Outcome{Error: fmt.Sprintf("failed to decode response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := gen.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return Outcome{Error: fmt.Sprintf("model returned status %d: %s", resp.StatusCode, msg)}
	}
	if gen.Error != "" {
		return Outcome{Error: gen.Error}
	}

	return Outcome{Success: true, Output: gen.Response}
}

// Ping checks that the Ollama server is reachable.
func (l *Local) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", l.host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// systemPrompt builds the persona instruction sent as the system message.
func systemPrompt(role string) string {
	if role == "" {
		role = "general assistant"
	}
	return fmt.Sprintf("You are a %s. Complete the task autonomously. Write any code needed and save files as appropriate.", role)
}
