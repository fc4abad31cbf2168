package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentpipe/agent"
)

// echoAgent succeeds on every step, echoing the agent id and task.
func echoAgent() agent.Agent {
	return agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		return agent.Outcome{Success: true, Output: "output for " + req.Task}
	})
}

// failingAgent fails every step whose task contains the marker.
func failingAgent(marker, errMsg string) agent.Agent {
	return agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		if strings.Contains(req.Task, marker) {
			return agent.Outcome{Error: errMsg}
		}
		return agent.Outcome{Success: true, Output: "ok"}
	})
}

func TestRunPipelineAllSucceed(t *testing.T) {
	rn := &Runner{Agent: echoAgent(), DefaultModel: "test-model"}

	steps := []StepSpec{
		{AgentID: "analyzer", Task: "find files"},
		{AgentID: "documenter", Task: "write docs"},
		{AgentID: "tester", Task: "write tests"},
	}

	result, err := rn.RunPipeline(context.Background(), "docs", steps)
	require.NoError(t, err)

	assert.False(t, result.Halted())
	assert.Equal(t, "success", result.Status)
	require.Len(t, result.Steps, 3)
	for i, sr := range result.Steps {
		assert.Equal(t, steps[i].AgentID, sr.AgentID)
		assert.Equal(t, i, sr.StepIndex)
		assert.True(t, sr.Success)
		assert.Empty(t, sr.Error)
	}
	assert.NotEmpty(t, result.RunUID)
}

func TestRunPipelineHaltsOnFailure(t *testing.T) {
	rn := &Runner{Agent: failingAgent("deploy", "model unavailable")}

	steps := []StepSpec{
		{AgentID: "builder", Task: "build project"},
		{AgentID: "deployer", Task: "deploy project"},
		{AgentID: "notifier", Task: "send notification"},
	}

	result, err := rn.RunPipeline(context.Background(), "release", steps)
	require.NoError(t, err)

	require.True(t, result.Halted())
	assert.Equal(t, 1, *result.HaltedAt)
	assert.Equal(t, "failed", result.Status)

	// No result exists for the step beyond the halt point.
	require.Len(t, result.Steps, 2)
	assert.True(t, result.Steps[0].Success)
	assert.False(t, result.Steps[1].Success)
	assert.Equal(t, "model unavailable", result.Steps[1].Error)
	assert.Empty(t, result.Steps[1].Output)
}

func TestRunPipelineContinueOnError(t *testing.T) {
	rn := &Runner{Agent: failingAgent("flaky", "timeout")}

	steps := []StepSpec{
		{AgentID: "a", Task: "flaky one", ContinueOnError: true},
		{AgentID: "b", Task: "stable one"},
		{AgentID: "c", Task: "flaky two", ContinueOnError: true},
		{AgentID: "d", Task: "stable two"},
	}

	result, err := rn.RunPipeline(context.Background(), "tolerant", steps)
	require.NoError(t, err)

	assert.False(t, result.Halted())
	assert.Equal(t, "success", result.Status)
	require.Len(t, result.Steps, 4)
	assert.False(t, result.Steps[0].Success)
	assert.True(t, result.Steps[1].Success)
	assert.False(t, result.Steps[2].Success)
	assert.True(t, result.Steps[3].Success)
}

func TestUsePreviousForwardsOutput(t *testing.T) {
	var tasks []string
	ag := agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		tasks = append(tasks, req.Task)
		return agent.Outcome{Success: true, Output: "file1.py, file2.py"}
	})
	rn := &Runner{Agent: ag}

	steps := []StepSpec{
		{AgentID: "analyzer", Task: "find files"},
		{AgentID: "summarizer", Task: "summarize", UsePrevious: true},
	}

	result, err := rn.RunPipeline(context.Background(), "chain", steps)
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)

	require.Len(t, tasks, 2)
	assert.Equal(t, "find files", tasks[0])
	assert.Equal(t, "Context:\nfile1.py, file2.py\n\nTask:\nsummarize", tasks[1])
}

func TestUsePreviousOnFirstStepIsNoop(t *testing.T) {
	var tasks []string
	ag := agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		tasks = append(tasks, req.Task)
		return agent.Outcome{Success: true, Output: "ok"}
	})
	rn := &Runner{Agent: ag}

	steps := []StepSpec{{AgentID: "a", Task: "first task", UsePrevious: true}}

	_, err := rn.RunPipeline(context.Background(), "first", steps)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "first task", tasks[0])
}

func TestUsePreviousAfterFailedStep(t *testing.T) {
	var tasks []string
	ag := agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		tasks = append(tasks, req.Task)
		if strings.Contains(req.Task, "breaks") {
			return agent.Outcome{Error: "boom"}
		}
		return agent.Outcome{Success: true, Output: "ok"}
	})
	rn := &Runner{Agent: ag}

	steps := []StepSpec{
		{AgentID: "a", Task: "this breaks", ContinueOnError: true},
		{AgentID: "b", Task: "follow up", UsePrevious: true},
	}

	result, err := rn.RunPipeline(context.Background(), "noinject", steps)
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)

	// The failed step supplies no output, so the next task is unmodified.
	assert.Equal(t, "follow up", tasks[1])
}

func TestUsePreviousSkipsOverFailure(t *testing.T) {
	var tasks []string
	ag := agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		tasks = append(tasks, req.Task)
		if strings.Contains(req.Task, "breaks") {
			return agent.Outcome{Error: "boom"}
		}
		return agent.Outcome{Success: true, Output: "from " + req.Task}
	})
	rn := &Runner{Agent: ag}

	steps := []StepSpec{
		{AgentID: "a", Task: "produce"},
		{AgentID: "b", Task: "this breaks", ContinueOnError: true},
		{AgentID: "c", Task: "consume", UsePrevious: true},
	}

	_, err := rn.RunPipeline(context.Background(), "skip", steps)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	// Step c sees the last successful output (step a), not the failure.
	assert.Equal(t, "Context:\nfrom produce\n\nTask:\nconsume", tasks[2])
}

func TestRunPipelineEmptySteps(t *testing.T) {
	rn := &Runner{Agent: echoAgent()}

	result, err := rn.RunPipeline(context.Background(), "empty", nil)
	require.NoError(t, err)

	assert.False(t, result.Halted())
	assert.Equal(t, "success", result.Status)
	assert.Empty(t, result.Steps)
}

func TestRunPipelineEmptyTaskFailsWithoutAgentCall(t *testing.T) {
	calls := 0
	ag := agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		calls++
		return agent.Outcome{Success: true, Output: "ok"}
	})
	rn := &Runner{Agent: ag}

	steps := []StepSpec{
		{AgentID: "a", Task: "   "},
		{AgentID: "b", Task: "never reached"},
	}

	result, err := rn.RunPipeline(context.Background(), "malformed", steps)
	require.NoError(t, err)

	assert.Equal(t, 0, calls)
	require.True(t, result.Halted())
	assert.Equal(t, 0, *result.HaltedAt)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "step has no task", result.Steps[0].Error)
}

func TestModelResolution(t *testing.T) {
	var models []string
	ag := agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		models = append(models, req.Model)
		return agent.Outcome{Success: true, Output: "ok"}
	})
	rn := &Runner{Agent: ag, DefaultModel: "default-model"}

	steps := []StepSpec{
		{AgentID: "a", Task: "one"},
		{AgentID: "b", Task: "two", Model: "override-model"},
	}

	_, err := rn.RunPipeline(context.Background(), "models", steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"default-model", "override-model"}, models)
}

func TestRunPipelineCanceledContext(t *testing.T) {
	rn := &Runner{Agent: echoAgent()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := rn.RunPipeline(ctx, "canceled", []StepSpec{{AgentID: "a", Task: "task"}})
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Steps)
	assert.Equal(t, "failed", result.Status)
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	rn := &Runner{Agent: agent.Func(func(ctx context.Context, req agent.Request) agent.Outcome {
		return agent.Outcome{Success: true, Output: "out:" + req.Task}
	})}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*PipelineResult, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			steps := []StepSpec{
				{AgentID: "a", Task: fmt.Sprintf("task-%d", w)},
				{AgentID: "b", Task: "chain", UsePrevious: true},
			}
			res, err := rn.RunPipeline(context.Background(), "concurrent", steps)
			assert.NoError(t, err)
			results[w] = res
		}(w)
	}
	wg.Wait()

	uids := make(map[string]bool)
	for w, res := range results {
		require.NotNil(t, res)
		require.Len(t, res.Steps, 2)
		// Each run chains its own first output, never a sibling's.
		assert.Contains(t, res.Steps[1].Output, fmt.Sprintf("task-%d", w))
		uids[res.RunUID] = true
	}
	assert.Len(t, uids, workers)
}
