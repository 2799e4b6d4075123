// Package bridge translates engine events into the flat ProgressUpdate
// records the backend streams to UIs. The engine's typed payloads stay
// attached as Data; Message is the human-readable line.
package bridge

import (
	"fmt"
	"time"

	"github.com/agentic-project/agentic/pkg/router"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// UpdateType discriminates progress updates.
type UpdateType string

const (
	UpdateStatus       UpdateType = "status"
	UpdateLog          UpdateType = "log"
	UpdateToolExecuted UpdateType = "tool_executed"
	UpdateResult       UpdateType = "result"
	UpdateCoT          UpdateType = "cot"
)

// ProgressUpdate is one UI-facing record.
type ProgressUpdate struct {
	Type      UpdateType `json:"type"`
	Message   string     `json:"message"`
	Data      any        `json:"data,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// nodeDescriptions maps state machine nodes to UI wording.
var nodeDescriptions = map[string]string{
	"plan":             "Planning task execution strategy",
	"check_complexity": "Assessing task complexity",
	"spawn_sub_agents": "Delegating to specialized sub-agents",
	"execute":          "Executing next action",
	"reflect":          "Reflecting on progress",
}

// Translate maps one engine event to zero or more progress updates.
// Tool executions produce two: the structured record and a log line.
func Translate(ev workflow.Event) []ProgressUpdate {
	switch data := ev.Data.(type) {
	case router.Classification:
		return []ProgressUpdate{update(ev, UpdateStatus,
			fmt.Sprintf("Task classified as %s (confidence %.2f)", data.Domain, data.Confidence),
			data)}
	case workflow.NodeExecutedData:
		return []ProgressUpdate{update(ev, UpdateStatus, nodeMessage(data), data)}
	case workflow.ToolExecutedData:
		return []ProgressUpdate{
			update(ev, UpdateToolExecuted,
				fmt.Sprintf("Tool %s %s", data.Tool, outcome(data.Success)),
				data),
			update(ev, UpdateLog, toolLogLine(data), nil),
		}
	case workflow.CoTData:
		return []ProgressUpdate{update(ev, UpdateCoT, data.Thought, data)}
	case workflow.WorkflowCompletedData:
		return []ProgressUpdate{update(ev, UpdateResult,
			fmt.Sprintf("Task %s after %d iterations and %d tool calls",
				data.Status, data.Iterations, data.ToolCallCount),
			data)}
	case workflow.ErrorData:
		return []ProgressUpdate{update(ev, UpdateLog,
			fmt.Sprintf("Error in %s: %s", data.Node, data.Message), data)}
	default:
		return nil
	}
}

// Stream translates a full event stream. The returned channel closes
// when the input closes.
func Stream(in <-chan workflow.Event) <-chan ProgressUpdate {
	out := make(chan ProgressUpdate, 16)
	go func() {
		defer close(out)
		for ev := range in {
			for _, u := range Translate(ev) {
				out <- u
			}
		}
	}()
	return out
}

func update(ev workflow.Event, typ UpdateType, message string, data any) ProgressUpdate {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ProgressUpdate{Type: typ, Message: message, Data: data, Timestamp: ts}
}

// nodeMessage renders the status line for one node execution. Reflect
// carries the continue/complete decision.
func nodeMessage(data workflow.NodeExecutedData) string {
	desc, ok := nodeDescriptions[data.Node]
	if !ok {
		desc = data.Node
	}
	msg := fmt.Sprintf("%s [Iteration %d/%d]", desc, data.Iteration, data.MaxIterations)
	if data.Node == "reflect" {
		if data.ShouldContinue {
			msg += " → will continue"
		} else {
			msg += " → will complete"
		}
	}
	return msg
}

// toolLogLine includes the resolved path and byte count when the
// gateway reported them.
func toolLogLine(data workflow.ToolExecutedData) string {
	msg := fmt.Sprintf("%s %s", data.Tool, outcome(data.Success))
	if path, ok := data.Result.Metadata["path"].(string); ok && path != "" {
		msg += " " + path
	}
	if bytes, ok := asInt(data.Result.Metadata["bytes"]); ok {
		msg += fmt.Sprintf(" (%d bytes)", bytes)
	}
	if !data.Success && data.Result.Error != "" {
		msg += ": " + data.Result.Error
	}
	return msg
}

func outcome(success bool) string {
	if success {
		return "succeeded"
	}
	return "failed"
}

// asInt tolerates the int/int64/float64 drift metadata values pick up
// across JSON round trips.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
