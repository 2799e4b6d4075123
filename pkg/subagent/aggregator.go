package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"dario.cat/mergo"

	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/prompt"
)

// AggregationStrategy selects how per-subtask outputs are combined.
type AggregationStrategy string

const (
	AggregateConcatenate AggregationStrategy = "CONCATENATE"
	AggregateSummarize   AggregationStrategy = "SUMMARIZE"
	AggregateMergeJSON   AggregationStrategy = "MERGE_JSON"
	AggregateList        AggregationStrategy = "LIST"
)

// AggregatedResult is the combined outcome of a sub-agent run.
type AggregatedResult struct {
	Success              bool     `json:"success"`
	Summary              string   `json:"summary"`
	TotalDurationSeconds float64  `json:"total_duration_seconds"`
	SuccessCount         int      `json:"success_count"`
	FailureCount         int      `json:"failure_count"`
	Errors               []string `json:"errors"`
	PerSubtask           []Result `json:"per_subtask"`
}

// Aggregator combines sub-agent results. The LLM is only used by the
// SUMMARIZE strategy.
type Aggregator struct {
	llm llm.Chat
}

// NewAggregator creates an Aggregator.
func NewAggregator(chat llm.Chat) *Aggregator {
	return &Aggregator{llm: chat}
}

// Aggregate combines results under the given strategy. wallClockSeconds
// is the executor's elapsed time; sequential runs report the sum of
// per-subtask durations instead.
func (a *Aggregator) Aggregate(ctx context.Context, task string, results []Result, strategy AggregationStrategy, execStrategy Strategy, wallClockSeconds float64) AggregatedResult {
	agg := AggregatedResult{
		Success:              true,
		TotalDurationSeconds: wallClockSeconds,
		Errors:               []string{},
		PerSubtask:           results,
	}
	if execStrategy == StrategySequential {
		sum := 0.0
		for _, r := range results {
			sum += r.DurationSeconds
		}
		agg.TotalDurationSeconds = sum
	}
	for _, r := range results {
		if r.Success {
			agg.SuccessCount++
			continue
		}
		agg.Success = false
		agg.FailureCount++
		agg.Errors = append(agg.Errors, fmt.Sprintf("%s (%s): %s", r.SubtaskID, r.AgentType, r.Error))
	}

	switch strategy {
	case AggregateSummarize:
		agg.Summary = a.summarize(ctx, task, results)
	case AggregateMergeJSON:
		agg.Summary = mergeJSON(results)
	case AggregateList:
		agg.Summary = listOutputs(results)
	default:
		agg.Summary = concatenate(results)
	}
	return agg
}

// concatenate joins outputs in order. A single result is returned
// verbatim.
func concatenate(results []Result) string {
	if len(results) == 1 {
		return results[0].Output
	}
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		status := "succeeded"
		if !r.Success {
			status = "failed"
		}
		fmt.Fprintf(&sb, "### Subtask %s (%s) %s\n\n", r.SubtaskID, r.AgentType, status)
		if r.Output != "" {
			sb.WriteString(r.Output)
		} else if r.Error != "" {
			sb.WriteString(r.Error)
		}
	}
	return sb.String()
}

func (a *Aggregator) summarize(ctx context.Context, task string, results []Result) string {
	outputs := make([]string, 0, len(results))
	for _, r := range results {
		if r.Output != "" {
			outputs = append(outputs, r.Output)
		} else if r.Error != "" {
			outputs = append(outputs, "FAILED: "+r.Error)
		}
	}
	response, err := a.llm.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt.Summarize(task, outputs)},
		},
	})
	if err != nil {
		slog.Warn("Summarization LLM call failed, concatenating instead", "error", err)
		return concatenate(results)
	}
	return response
}

// mergeJSON deep-merges all JSON object outputs. Scalars are
// last-writer-wins, arrays concatenate, non-JSON outputs are skipped.
func mergeJSON(results []Result) string {
	merged := map[string]any{}
	for _, r := range results {
		var obj map[string]any
		if err := json.Unmarshal([]byte(r.Output), &obj); err != nil {
			continue
		}
		if err := mergo.Merge(&merged, obj, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
			slog.Warn("JSON merge failed for subtask output", "subtask_id", r.SubtaskID, "error", err)
		}
	}
	raw, err := json.Marshal(merged)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// listOutputs returns the outputs as a JSON array without merging.
func listOutputs(results []Result) string {
	outputs := make([]string, len(results))
	for i, r := range results {
		outputs[i] = r.Output
	}
	raw, err := json.Marshal(outputs)
	if err != nil {
		return "[]"
	}
	return string(raw)
}
