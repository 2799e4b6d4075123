package subagent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-project/agentic/pkg/config"
	"github.com/agentic-project/agentic/pkg/safety"
	"github.com/agentic-project/agentic/pkg/tools"
	"github.com/agentic-project/agentic/pkg/workflow"
)

func newManager(t *testing.T, chat *autoChat) *Manager {
	t.Helper()
	gw, err := tools.NewLocalGateway(t.TempDir())
	require.NoError(t, err)
	checker := safety.NewChecker(config.DefaultConfig().Safety)
	return NewManager(ExecutorConfig{
		MaxConcurrent: 4,
		AgentTimeout:  30 * time.Second,
		ToolTimeout:   5 * time.Second,
	}, chat, gw, checker)
}

func TestEstimateComplexity(t *testing.T) {
	m := newManager(t, &autoChat{complexity: `{"complexity": 0.85}`})

	score, err := m.EstimateComplexity(context.Background(), "Build a full stack app")
	require.NoError(t, err)
	assert.Equal(t, 0.85, score)
}

func TestEstimateComplexityErrors(t *testing.T) {
	tests := []struct {
		name       string
		complexity string
		failFor    string
	}{
		{name: "llm error", failFor: "Rate the complexity"},
		{name: "not json", complexity: "pretty complex I would say"},
		{name: "out of range", complexity: `{"complexity": 1.4}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, &autoChat{complexity: tt.complexity, failFor: tt.failFor})

			_, err := m.EstimateComplexity(context.Background(), "anything")
			assert.Error(t, err)
		})
	}
}

func TestExecuteWithSubAgents(t *testing.T) {
	chat := &autoChat{decomposition: twoSubtaskDecomposition}
	m := newManager(t, chat)
	parent := workflow.NewState("p1", "Build a full stack app", workflow.DomainCoding, t.TempDir(), 50, 300)

	summary, err := m.ExecuteWithSubAgents(context.Background(), parent)
	require.NoError(t, err)

	assert.Contains(t, summary, "t1")
	assert.Contains(t, summary, "t2")
	assert.Contains(t, summary, "subtask done")

	raw, ok := parent.Context.SubAgentConfig["aggregated_result"]
	require.True(t, ok, "aggregated result must be attached to the parent context")
	agg := raw.(AggregatedResult)
	assert.True(t, agg.Success)
	assert.Equal(t, 2, agg.SuccessCount)
	assert.Len(t, agg.PerSubtask, 2)
}

func TestExecuteWithSubAgentsSummarizesFailures(t *testing.T) {
	chat := &autoChat{
		decomposition: twoSubtaskDecomposition,
		failFor:       "test the backend",
	}
	m := newManager(t, chat)
	parent := workflow.NewState("p2", "Build a full stack app", workflow.DomainCoding, t.TempDir(), 50, 300)

	summary, err := m.ExecuteWithSubAgents(context.Background(), parent)
	require.NoError(t, err, "subtask failures surface in the summary, not as an error")
	assert.Contains(t, summary, "1 of 2 subtasks failed")

	agg := parent.Context.SubAgentConfig["aggregated_result"].(AggregatedResult)
	assert.False(t, agg.Success)
	assert.Equal(t, 1, agg.FailureCount)
}

func TestExecuteWithSubAgentsFallbackDecomposition(t *testing.T) {
	// Unparseable decomposition degrades to a single task_executor
	// subtask that still runs.
	chat := &autoChat{decomposition: "no json here"}
	m := newManager(t, chat)
	parent := workflow.NewState("p3", "tidy up the workspace files", workflow.DomainGeneral, t.TempDir(), 50, 300)

	summary, err := m.ExecuteWithSubAgents(context.Background(), parent)
	require.NoError(t, err)
	assert.Equal(t, "subtask done", summary, "single subtask output is returned verbatim")
}

func TestPickStrategy(t *testing.T) {
	m := newManager(t, &autoChat{})

	short := []Result{{Success: true, Output: "a"}, {Success: true, Output: "b"}}
	assert.Equal(t, AggregateConcatenate, m.pickStrategy(short))

	long := []Result{{Success: true, Output: string(make([]byte, summarizeOutputThreshold+1))}}
	assert.Equal(t, AggregateSummarize, m.pickStrategy(long))

	mixed := []Result{{Success: true, Output: "a"}, {Success: false, Error: "x"}}
	assert.Equal(t, AggregateSummarize, m.pickStrategy(mixed))
}
