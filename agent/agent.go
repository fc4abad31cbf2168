package agent

import "context"

// Request carries the inputs for a single agent execution.
type Request struct {
	Task  string // instruction text, already combined with any forwarded context
	Role  string // free-text persona, empty means a general assistant
	Model string // backend model identifier, empty means the backend default
}

// Outcome is the result of one agent execution. Exactly one of Output/Error
// is populated depending on Success.
type Outcome struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Agent executes a single task and reports the outcome. Implementations must
// capture every internal fault (model unavailable, timeout, bad response) and
// convert it into a failed Outcome rather than panicking or losing it.
type Agent interface {
	Execute(ctx context.Context, req Request) Outcome
}

// Func adapts a plain function to the Agent interface. Useful for testing
// pipelines without a live model backend.
type Func func(ctx context.Context, req Request) Outcome

func (f Func) Execute(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}
