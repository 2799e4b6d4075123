package subagent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateConcatenateSingleIsVerbatim(t *testing.T) {
	a := NewAggregator(&autoChat{})

	agg := a.Aggregate(context.Background(), "task",
		[]Result{{SubtaskID: "t1", AgentType: AgentCodeWriter, Success: true, Output: "only output"}},
		AggregateConcatenate, StrategySequential, 1.0)

	assert.Equal(t, "only output", agg.Summary)
	assert.True(t, agg.Success)
	assert.Equal(t, 1, agg.SuccessCount)
	assert.Zero(t, agg.FailureCount)
}

func TestAggregateConcatenateMultiple(t *testing.T) {
	a := NewAggregator(&autoChat{})

	agg := a.Aggregate(context.Background(), "task", []Result{
		{SubtaskID: "t1", AgentType: AgentCodeWriter, Success: true, Output: "wrote main.go"},
		{SubtaskID: "t2", AgentType: AgentCodeTester, Success: false, Error: "tests crashed"},
	}, AggregateConcatenate, StrategyParallel, 2.5)

	assert.False(t, agg.Success)
	assert.Equal(t, 1, agg.SuccessCount)
	assert.Equal(t, 1, agg.FailureCount)
	require.Len(t, agg.Errors, 1)
	assert.Contains(t, agg.Errors[0], "tests crashed")
	assert.Contains(t, agg.Summary, "t1")
	assert.Contains(t, agg.Summary, "t2")
	assert.Contains(t, agg.Summary, "wrote main.go")
	assert.Equal(t, 2.5, agg.TotalDurationSeconds, "parallel runs report wall clock")
}

func TestAggregateSequentialDurationIsSum(t *testing.T) {
	a := NewAggregator(&autoChat{})

	agg := a.Aggregate(context.Background(), "task", []Result{
		{SubtaskID: "t1", Success: true, Output: "x", DurationSeconds: 1.5},
		{SubtaskID: "t2", Success: true, Output: "y", DurationSeconds: 2.0},
	}, AggregateConcatenate, StrategySequential, 9.9)

	assert.InDelta(t, 3.5, agg.TotalDurationSeconds, 0.001)
}

func TestAggregateMergeJSON(t *testing.T) {
	a := NewAggregator(&autoChat{})

	agg := a.Aggregate(context.Background(), "task", []Result{
		{SubtaskID: "t1", Success: true, Output: `{"a": 1, "list": [1], "nested": {"x": 1}}`},
		{SubtaskID: "t2", Success: true, Output: `{"a": 3, "b": 2, "list": [2], "nested": {"y": 2}}`},
		{SubtaskID: "t3", Success: true, Output: "not json, skipped"},
	}, AggregateMergeJSON, StrategyParallel, 1.0)

	var merged map[string]any
	require.NoError(t, json.Unmarshal([]byte(agg.Summary), &merged))
	assert.Equal(t, float64(3), merged["a"], "scalar conflicts are last-writer-wins")
	assert.Equal(t, float64(2), merged["b"])
	assert.Equal(t, []any{float64(1), float64(2)}, merged["list"], "arrays concatenate")
	nested := merged["nested"].(map[string]any)
	assert.Equal(t, float64(1), nested["x"])
	assert.Equal(t, float64(2), nested["y"])
}

func TestAggregateList(t *testing.T) {
	a := NewAggregator(&autoChat{})

	agg := a.Aggregate(context.Background(), "task", []Result{
		{SubtaskID: "t1", Success: true, Output: "one"},
		{SubtaskID: "t2", Success: true, Output: "two"},
	}, AggregateList, StrategyParallel, 1.0)

	var outputs []string
	require.NoError(t, json.Unmarshal([]byte(agg.Summary), &outputs))
	assert.Equal(t, []string{"one", "two"}, outputs)
}

func TestAggregateSummarizeFallsBackOnLLMError(t *testing.T) {
	chat := &autoChat{failFor: "Original task"}
	a := NewAggregator(chat)

	agg := a.Aggregate(context.Background(), "task", []Result{
		{SubtaskID: "t1", Success: true, Output: "alpha"},
		{SubtaskID: "t2", Success: true, Output: "beta"},
	}, AggregateSummarize, StrategyParallel, 1.0)

	// LLM summarization failed, so the concatenation fallback applies.
	assert.Contains(t, agg.Summary, "alpha")
	assert.Contains(t, agg.Summary, "beta")
}
