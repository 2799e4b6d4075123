package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/workflow"
)

type stubChat struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (s *stubChat) ChatCompletion(context.Context, llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.response, s.err
}

func (s *stubChat) ChatCompletionStream(context.Context, llm.Request) (<-chan llm.StreamChunk, error) {
	return nil, fmt.Errorf("not used")
}

func TestClassifyUsesLLMResult(t *testing.T) {
	chat := &stubChat{response: `{"domain": "coding", "confidence": 0.95, "reasoning": "writes code", "requires_sub_agents": false, "estimated_complexity": "low"}`}
	r := NewRouter(chat, 0.5)

	c := r.Classify(context.Background(), "Fix the failing unit test in auth_test.go")

	assert.Equal(t, workflow.DomainCoding, c.Domain)
	assert.Equal(t, 0.95, c.Confidence)
	assert.False(t, c.RequiresSubAgents)
	assert.Equal(t, 1, chat.calls)
}

func TestClassifyGreetingBypassesLLM(t *testing.T) {
	chat := &stubChat{err: fmt.Errorf("must not be called")}
	r := NewRouter(chat, 0.5)

	c := r.Classify(context.Background(), "hello")

	assert.Equal(t, workflow.DomainGeneral, c.Domain)
	assert.Equal(t, 1.0, c.Confidence)
	assert.False(t, c.RequiresSubAgents)
	assert.Equal(t, 0, chat.calls)
}

func TestClassifyFallsBackOnLowConfidence(t *testing.T) {
	chat := &stubChat{response: `{"domain": "research", "confidence": 0.2, "reasoning": "unsure", "requires_sub_agents": false, "estimated_complexity": "low"}`}
	r := NewRouter(chat, 0.5)

	c := r.Classify(context.Background(), "analyze the sales data in report.csv")

	assert.Equal(t, workflow.DomainData, c.Domain)
	assert.Equal(t, "keyword heuristic", c.Reasoning)
}

func TestClassifyFallsBackOnBadJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "not json", response: "I would say coding, probably."},
		{name: "wrong domain value", response: `{"domain": "devops", "confidence": 0.9, "reasoning": "x", "requires_sub_agents": false, "estimated_complexity": "low"}`},
		{name: "confidence out of range", response: `{"domain": "coding", "confidence": 1.7, "reasoning": "x", "requires_sub_agents": false, "estimated_complexity": "low"}`},
		{name: "missing field", response: `{"domain": "coding", "confidence": 0.9}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &stubChat{response: tt.response}
			r := NewRouter(chat, 0.5)

			c := r.Classify(context.Background(), "fix the bug in the parser code")

			assert.Equal(t, workflow.DomainCoding, c.Domain)
			assert.Equal(t, "keyword heuristic", c.Reasoning)
		})
	}
}

func TestClassifyFallsBackOnLLMError(t *testing.T) {
	chat := &stubChat{err: llm.ErrUnavailable}
	r := NewRouter(chat, 0.5)

	c := r.Classify(context.Background(), "summarize these research documents")

	assert.Equal(t, workflow.DomainResearch, c.Domain)
	assert.NotZero(t, c.Confidence)
}

func TestClassificationRoundTrip(t *testing.T) {
	original := Classification{
		Domain:              workflow.DomainData,
		Confidence:          0.85,
		Reasoning:           "loads a dataset",
		RequiresSubAgents:   true,
		EstimatedComplexity: ComplexityHigh,
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var asMap map[string]any
	require.NoError(t, json.Unmarshal(raw, &asMap))
	remarshaled, err := json.Marshal(asMap)
	require.NoError(t, err)

	var restored Classification
	require.NoError(t, json.Unmarshal(remarshaled, &restored))

	assert.Equal(t, original.Domain, restored.Domain)
	assert.Equal(t, original.Confidence, restored.Confidence)
	assert.Equal(t, original.RequiresSubAgents, restored.RequiresSubAgents)
}

func TestClassifyHeuristic(t *testing.T) {
	tests := []struct {
		name   string
		task   string
		domain workflow.Domain
	}{
		{name: "coding keywords", task: "refactor the function and fix the bug", domain: workflow.DomainCoding},
		{name: "research keywords", task: "summarize and compare the two articles", domain: workflow.DomainResearch},
		{name: "data keywords", task: "plot statistics from the csv dataset", domain: workflow.DomainData},
		{name: "no keywords", task: "water the plants", domain: workflow.DomainGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classifyHeuristic(tt.task)
			assert.Equal(t, tt.domain, c.Domain)
			assert.GreaterOrEqual(t, c.Confidence, 0.0)
			assert.LessOrEqual(t, c.Confidence, 1.0)
			assert.NotEmpty(t, c.EstimatedComplexity)
		})
	}

	c := classifyHeuristic("build the entire full stack pipeline with multiple services")
	assert.True(t, c.RequiresSubAgents)
	assert.Equal(t, ComplexityHigh, c.EstimatedComplexity)
}

func TestClassifyHeuristicTiesAreStable(t *testing.T) {
	// One coding hit (git) and one data hit (data): the tie must
	// resolve the same way on every call.
	const task = "check the git history of the data folder"

	first := classifyHeuristic(task)
	assert.Equal(t, workflow.DomainCoding, first.Domain)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first.Domain, classifyHeuristic(task).Domain)
	}
}
