package runner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentpipe/agent"
	"agentpipe/events"
	"agentpipe/runner/storage"
)

// Runner executes pipelines against a single agent backend. Its fields are
// fixed at construction and never mutated by a run; all run-scoped state
// lives inside RunPipeline, so concurrent runs on one Runner are independent.
type Runner struct {
	Agent            agent.Agent      // backend that executes each step
	DefaultModel     string           // model used when a step has no override
	Storage          *storage.Storage // optional run persistence
	StreamToTerminal bool             // if true, print step progress to stdout
}

// RunPipeline executes the steps in order and returns one StepResult per
// executed step, in input order. A step failure is recorded in the result,
// never returned as an error; the returned error is reserved for faults in
// the runner's own bookkeeping (run record creation) and for context
// cancellation between steps.
func (r *Runner) RunPipeline(ctx context.Context, pipelineName string, steps []StepSpec) (*PipelineResult, error) {
	startTime := time.Now()

	result := &PipelineResult{
		RunUID:   uuid.New().String(),
		Pipeline: pipelineName,
		Status:   "running",
		Steps:    make([]StepResult, 0, len(steps)),
	}

	if r.Storage != nil {
		run, err := r.Storage.CreateRun(result.RunUID, pipelineName)
		if err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
		result.RunID = run.ID
	}

	events.GetBroker().Broadcast("run_started", map[string]interface{}{
		"run_uid":  result.RunUID,
		"pipeline": pipelineName,
		"steps":    len(steps),
	})

	var previousOutput *string

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			r.finishRun(result, "failed", time.Since(startTime))
			return result, fmt.Errorf("pipeline canceled before step %d: %w", i, err)
		}

		stepResult := r.runStep(ctx, i, len(steps), step, previousOutput, result.RunID)
		result.Steps = append(result.Steps, stepResult)

		if stepResult.Success {
			out := stepResult.Output
			previousOutput = &out
			continue
		}

		// A failed step never supplies output to the next one.
		if !step.ContinueOnError {
			halted := i
			result.HaltedAt = &halted
			r.finishRun(result, "failed", time.Since(startTime))

			if r.StreamToTerminal {
				fmt.Printf("\n🛑 Pipeline halted at step %d (%s)\n", i, step.AgentID)
			}
			return result, nil
		}
	}

	r.finishRun(result, "success", time.Since(startTime))

	if r.StreamToTerminal {
		fmt.Println("\n🏁 All steps finished.")
	}

	return result, nil
}

// runStep executes a single step and returns its result. The agent is never
// invoked for a step with an empty task; that is recorded as an ordinary
// step failure instead.
func (r *Runner) runStep(ctx context.Context, index, total int, step StepSpec, previousOutput *string, runID int) StepResult {
	stepStart := time.Now()

	model := step.Model
	if model == "" {
		model = r.DefaultModel
	}

	if r.StreamToTerminal {
		fmt.Printf("→ [%d/%d] %s\n", index+1, total, step.AgentID)
	}

	events.GetBroker().Broadcast("step_started", map[string]interface{}{
		"step_index": index,
		"agent":      step.AgentID,
		"model":      model,
	})

	// Create step execution record if storage is provided
	var stepExec *storage.StepExecution
	if r.Storage != nil {
		var err error
		stepExec, err = r.Storage.CreateStepExecution(runID, index, step.AgentID, step.Role, model, step.Task)
		if err != nil {
			log.Printf("⚠️  Failed to record step execution: %v", err)
		}
	}

	var outcome agent.Outcome
	if strings.TrimSpace(step.Task) == "" {
		outcome = agent.Outcome{Error: "step has no task"}
	} else {
		task := effectiveTask(step, previousOutput)
		outcome = r.Agent.Execute(ctx, agent.Request{Task: task, Role: step.Role, Model: model})
	}

	duration := time.Since(stepStart)

	stepResult := StepResult{
		AgentID:   step.AgentID,
		StepIndex: index,
		Success:   outcome.Success,
		Output:    outcome.Output,
		Error:     outcome.Error,
		Duration:  duration,
	}

	status := "success"
	if !outcome.Success {
		status = "failed"
		if r.StreamToTerminal {
			fmt.Println("❌ Step failed:", outcome.Error)
		}
	} else if r.StreamToTerminal {
		fmt.Println("✅ Done:", step.AgentID)
	}

	if r.Storage != nil && stepExec != nil {
		if err := r.Storage.UpdateStepExecution(stepExec.ID, status, outcome.Output, outcome.Error, duration); err != nil {
			log.Printf("⚠️  Failed to update step execution: %v", err)
		}
	}

	events.GetBroker().Broadcast("step_finished", map[string]interface{}{
		"step_index": index,
		"agent":      step.AgentID,
		"status":     status,
	})

	return stepResult
}

// finishRun stamps the final status and duration and flushes them to storage
// and the event broker.
func (r *Runner) finishRun(result *PipelineResult, status string, duration time.Duration) {
	result.Status = status
	result.Duration = duration

	if r.Storage != nil && result.RunID != 0 {
		if err := r.Storage.UpdateRunStatus(result.RunID, status, result.HaltedAt, duration); err != nil {
			log.Printf("⚠️  Failed to update run status: %v", err)
		}
	}

	events.GetBroker().Broadcast("run_finished", map[string]interface{}{
		"run_uid":   result.RunUID,
		"pipeline":  result.Pipeline,
		"status":    status,
		"halted_at": result.HaltedAt,
	})
}

// effectiveTask resolves the task string a step hands to the agent. When the
// step requests the previous output and one exists, it is presented as a
// context block above the task; on the first step, or after a failed step,
// the task is used verbatim.
func effectiveTask(step StepSpec, previousOutput *string) string {
	if !step.UsePrevious || previousOutput == nil {
		return step.Task
	}
	return fmt.Sprintf("Context:\n%s\n\nTask:\n%s", *previousOutput, step.Task)
}
