package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/prompt"
	"github.com/agentic-project/agentic/pkg/safety"
	"github.com/agentic-project/agentic/pkg/tools"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// summarizeOutputThreshold switches aggregation to SUMMARIZE when the
// combined output grows past this many bytes.
const summarizeOutputThreshold = 4000

// Manager is the sub-agent facade the workflow engine delegates to. It
// decomposes, executes, and aggregates.
type Manager struct {
	llm        llm.Chat
	registry   *Registry
	decomposer *Decomposer
	executor   *Executor
	aggregator *Aggregator
}

var _ workflow.SubAgentRunner = (*Manager)(nil)

// NewManager wires the sub-agent subsystem.
func NewManager(cfg ExecutorConfig, chat llm.Chat, gateway tools.Gateway, checker *safety.Checker) *Manager {
	registry := NewRegistry()
	return &Manager{
		llm:        chat,
		registry:   registry,
		decomposer: NewDecomposer(chat, registry),
		executor:   NewExecutor(cfg, chat, gateway, checker, registry),
		aggregator: NewAggregator(chat),
	}
}

// Registry exposes the specialization registry.
func (m *Manager) Registry() *Registry { return m.registry }

// EstimateComplexity scores a task in [0,1] with a single LLM call.
func (m *Manager) EstimateComplexity(ctx context.Context, task string) (float64, error) {
	response, err := m.llm.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt.EstimateComplexity(task)},
		},
	})
	if err != nil {
		return 0, err
	}
	_, cleaned := workflow.ExtractThink(response)
	var parsed struct {
		Complexity float64 `json:"complexity"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return 0, fmt.Errorf("complexity estimate not parseable: %w", err)
	}
	if parsed.Complexity < 0 || parsed.Complexity > 1 {
		return 0, fmt.Errorf("complexity %v out of range [0,1]", parsed.Complexity)
	}
	return parsed.Complexity, nil
}

// ExecuteWithSubAgents decomposes the parent task, runs the subtasks,
// and returns the aggregated summary. The full AggregatedResult is also
// stored in the parent context for callers that need per-subtask data.
func (m *Manager) ExecuteWithSubAgents(ctx context.Context, s *workflow.State) (string, error) {
	decomposition := m.decomposer.Decompose(ctx, s.TaskDescription)
	slog.Info("Task decomposed",
		"task_id", s.TaskID,
		"subtasks", len(decomposition.Subtasks),
		"strategy", decomposition.ExecutionStrategy,
		"complexity", decomposition.Complexity)

	start := time.Now()
	results := m.executor.Execute(ctx, decomposition.Subtasks, decomposition.ExecutionStrategy, s)
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("sub-agent run cancelled: %w", err)
	}

	aggregated := m.aggregator.Aggregate(ctx, s.TaskDescription, results,
		m.pickStrategy(results), decomposition.ExecutionStrategy, time.Since(start).Seconds())

	if s.Context.SubAgentConfig == nil {
		s.Context.SubAgentConfig = map[string]any{}
	}
	s.Context.SubAgentConfig["aggregated_result"] = aggregated

	summary := aggregated.Summary
	if !aggregated.Success {
		// Subtask failures surface in the summary; only hard errors such
		// as cancellation fail the parent workflow.
		summary = fmt.Sprintf("%s\n\n%d of %d subtasks failed:\n- %s",
			summary, aggregated.FailureCount, len(results), joinErrors(aggregated.Errors))
	}
	return summary, nil
}

func joinErrors(errs []string) string {
	return strings.Join(errs, "\n- ")
}

// pickStrategy chooses how to aggregate: long or mixed outputs get a
// summarization call, everything else concatenates.
func (m *Manager) pickStrategy(results []Result) AggregationStrategy {
	total := 0
	failures := 0
	for _, r := range results {
		total += len(r.Output)
		if !r.Success {
			failures++
		}
	}
	if total > summarizeOutputThreshold || (failures > 0 && len(results) > 1) {
		return AggregateSummarize
	}
	return AggregateConcatenate
}
