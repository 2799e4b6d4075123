// Package workflow implements the plan/check_complexity/execute/reflect
// state machine shared by all four task domains. A workflow differs from
// its siblings only in its prompts and its action set.
package workflow

import (
	"time"

	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/tools"
)

// Domain selects which workflow handles a task.
type Domain string

const (
	DomainCoding   Domain = "coding"
	DomainResearch Domain = "research"
	DomainData     Domain = "data_analysis"
	DomainGeneral  Domain = "general"
)

// Domains lists all routable workflow domains.
func Domains() []Domain {
	return []Domain{DomainCoding, DomainResearch, DomainData, DomainGeneral}
}

// Status is the lifecycle state of one task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further nodes may mutate the task.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Plan is the structured output of the plan node.
type Plan struct {
	Approach            string   `json:"approach"`
	Steps               []string `json:"steps"`
	EstimatedIterations int      `json:"estimated_iterations,omitempty"`
	Rationale           string   `json:"rationale,omitempty"`
}

// ToolExecution records the most recent tool invocation for the
// context's last_tool_execution slot.
type ToolExecution struct {
	Action        string         `json:"action"`
	ActionDetails map[string]any `json:"action_details"`
	Result        tools.Result   `json:"result"`
	Success       bool           `json:"success"`
}

// Context holds the structured task context. All fields are initialized
// at construction so nodes never observe a missing key.
type Context struct {
	Plan              *Plan          `json:"plan,omitempty"`
	CompletedSteps    []string       `json:"completed_steps"`
	LastToolExecution *ToolExecution `json:"last_tool_execution,omitempty"`
	SubAgentConfig    map[string]any `json:"sub_agent_config,omitempty"`
}

// ToolCall is one append-only entry in the task's tool call log. Result
// carries the gateway's metadata through unchanged.
type ToolCall struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Result     tools.Result   `json:"result"`
	Success    bool           `json:"success"`
	Iteration  int            `json:"iteration"`
}

// ErrorEntry is one append-only entry in the task's error log.
type ErrorEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Iteration int       `json:"iteration"`
}

// State is the single growing record passed through every node of one
// workflow run. It is created by the orchestrator, mutated only by nodes
// and the sub-agent manager, and terminal once Status is
// completed/failed.
type State struct {
	TaskID          string        `json:"task_id"`
	TaskDescription string        `json:"task_description"`
	Domain          Domain        `json:"domain"`
	Workspace       string        `json:"workspace"`
	Iteration       int           `json:"iteration"`
	MaxIterations   int           `json:"max_iterations"`
	RecursionLimit  int           `json:"recursion_limit"`
	Status          Status        `json:"status"`
	ShouldContinue  bool          `json:"should_continue"`
	Context         Context       `json:"context"`
	ToolCalls       []ToolCall    `json:"tool_calls"`
	Errors          []ErrorEntry  `json:"errors"`
	Messages        []llm.Message `json:"messages"`
	Result          string        `json:"result"`
	UseSubAgents    bool          `json:"use_sub_agents"`

	// parseFailures counts consecutive unparseable execute responses.
	// Reset on every successful parse; three in a row fail the task.
	parseFailures int
}

// NewState creates a fully initialized task state. CompletedSteps and
// the append-only logs start empty, never nil, so serialization and
// node code need no missing-key checks.
func NewState(taskID, description string, domain Domain, workspace string, maxIterations, recursionLimit int) *State {
	return &State{
		TaskID:          taskID,
		TaskDescription: description,
		Domain:          domain,
		Workspace:       workspace,
		MaxIterations:   maxIterations,
		RecursionLimit:  recursionLimit,
		Status:          StatusPending,
		Context:         Context{CompletedSteps: []string{}},
		ToolCalls:       []ToolCall{},
		Errors:          []ErrorEntry{},
		Messages:        []llm.Message{},
	}
}

// AppendError records a failure in the error log.
func (s *State) AppendError(message string) {
	s.Errors = append(s.Errors, ErrorEntry{
		Message:   message,
		Timestamp: time.Now().UTC(),
		Iteration: s.Iteration,
	})
}

// Fail marks the task failed and stops the loop.
func (s *State) Fail(message string) {
	s.Status = StatusFailed
	s.ShouldContinue = false
	s.AppendError(message)
}

// Complete marks the task completed with its final result.
func (s *State) Complete(result string) {
	s.Status = StatusCompleted
	s.ShouldContinue = false
	s.Result = result
}

// EffectiveRecursionLimit returns the transition ceiling actually
// enforced. The configured value is raised to max_iterations times six
// so iteration and recursion limits cannot drift out of sync.
func (s *State) EffectiveRecursionLimit() int {
	floor := s.MaxIterations * 6
	if s.RecursionLimit > floor {
		return s.RecursionLimit
	}
	return floor
}
