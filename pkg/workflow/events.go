package workflow

import (
	"time"

	"github.com/agentic-project/agentic/pkg/tools"
)

// EventType discriminates engine stream events.
type EventType string

const (
	// EventClassified is emitted once by the orchestrator before any
	// engine event; its payload is the routing decision.
	EventClassified        EventType = "classified"
	EventNodeExecuted      EventType = "node_executed"
	EventToolExecuted      EventType = "tool_executed"
	EventCoT               EventType = "cot"
	EventWorkflowCompleted EventType = "workflow_completed"
	EventError             EventType = "error"
)

// Event is one entry of the engine's output stream. Data holds the
// payload struct matching Type. The channel is closed right after the
// workflow_completed event.
type Event struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NodeExecutedData is the payload for node_executed events, emitted as
// each node completes.
type NodeExecutedData struct {
	Node           string `json:"node"`
	Iteration      int    `json:"iteration"`
	MaxIterations  int    `json:"max_iterations"`
	Status         Status `json:"status"`
	ShouldContinue bool   `json:"should_continue"`
	TaskPreview    string `json:"task_description_preview"`
}

// ToolExecutedData is the payload for tool_executed events, emitted by
// the execute node right after each tool call. Result carries the
// gateway metadata unchanged.
type ToolExecutedData struct {
	Tool    string         `json:"tool"`
	Params  map[string]any `json:"params"`
	Result  tools.Result   `json:"result"`
	Success bool           `json:"success"`
}

// CoTData is the payload for cot events, carrying the reasoning block
// the model emitted between <think> delimiters. Only produced when
// chain-of-thought surfacing is enabled.
type CoTData struct {
	Node    string `json:"node"`
	Thought string `json:"thought"`
}

// WorkflowCompletedData is the terminal payload, emitted exactly once
// per run, on success and failure alike.
type WorkflowCompletedData struct {
	Status          Status  `json:"status"`
	Iterations      int     `json:"iterations"`
	ToolCallCount   int     `json:"tool_call_count"`
	DurationSeconds float64 `json:"duration_seconds"`
	Result          string  `json:"result"`
}

// ErrorData is the payload for error events. Errors that fail the task
// still produce a terminal workflow_completed afterwards.
type ErrorData struct {
	Message string `json:"message"`
	Node    string `json:"node"`
}
