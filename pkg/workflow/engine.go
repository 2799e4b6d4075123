package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentic-project/agentic/pkg/conversation"
	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/safety"
	"github.com/agentic-project/agentic/pkg/tools"
)

// ErrRecursionLimit marks a task that hit the node transition ceiling.
var ErrRecursionLimit = errors.New("workflow: recursion limit exceeded")

// Node names of the engine state machine.
const (
	nodePlan            = "plan"
	nodeCheckComplexity = "check_complexity"
	nodeSpawnSubAgents  = "spawn_sub_agents"
	nodeExecute         = "execute"
	nodeReflect         = "reflect"
)

// maxParseFailures is the consecutive unparseable-response ceiling.
const maxParseFailures = 3

// taskPreviewLen bounds the task description carried in events.
const taskPreviewLen = 100

// eventBuffer sizes the stream channel so node code rarely blocks on a
// slow consumer.
const eventBuffer = 32

// PromptBuilder renders the engine's LLM prompts. Implementations live
// in pkg/prompt; the engine only depends on this interface.
type PromptBuilder interface {
	System(domain Domain) string
	Plan(s *State) string
	Execute(s *State, actions ActionSet) string
	Greeting(s *State) string
}

// SubAgentRunner is the engine's view of the sub-agent subsystem.
type SubAgentRunner interface {
	// EstimateComplexity scores the task in [0,1].
	EstimateComplexity(ctx context.Context, task string) (float64, error)
	// ExecuteWithSubAgents decomposes the task, runs sub-agents, and
	// returns the aggregated summary.
	ExecuteWithSubAgents(ctx context.Context, s *State) (string, error)
}

// Checkpointer persists state snapshots at node boundaries. Saving is
// best effort; failures are logged, never fatal.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, taskID string, iteration int, node string, state json.RawMessage) error
}

// Options carries the per-domain engine knobs not owned by the task
// state itself.
type Options struct {
	Domain              Domain
	ToolTimeout         time.Duration
	SubAgentsEnabled    bool
	ComplexityThreshold float64
	MaxPromptTokens     int
	// CoTEnabled surfaces <think> blocks as cot events. Think tags are
	// stripped from the working reply either way.
	CoTEnabled bool
	// SystemPrompt, when non-empty, replaces the domain system prompt.
	// Sub-agents use it to run under their specialization prompt.
	SystemPrompt string
}

// Engine drives one workflow domain. It is stateless across runs; all
// per-task data lives in State.
type Engine struct {
	opts        Options
	actions     ActionSet
	llm         llm.Chat
	prompts     PromptBuilder
	gateway     tools.Gateway
	safety      *safety.Checker
	subAgents   SubAgentRunner
	checkpoints Checkpointer
}

// NewEngine creates an engine for one domain. Sub-agents and
// checkpointing are optional, attached with the With methods.
func NewEngine(opts Options, chat llm.Chat, prompts PromptBuilder, gateway tools.Gateway, checker *safety.Checker) *Engine {
	return &Engine{
		opts:    opts,
		actions: ActionSetFor(opts.Domain),
		llm:     chat,
		prompts: prompts,
		gateway: gateway,
		safety:  checker,
	}
}

// WithActions overrides the engine's action enumeration. Sub-agents use
// this to run with a curated subset of their domain's actions.
func (e *Engine) WithActions(set ActionSet) *Engine {
	e.actions = set
	return e
}

// WithSubAgents attaches the sub-agent runner.
func (e *Engine) WithSubAgents(r SubAgentRunner) *Engine {
	e.subAgents = r
	return e
}

// WithCheckpoints attaches a checkpoint store.
func (e *Engine) WithCheckpoints(c Checkpointer) *Engine {
	e.checkpoints = c
	return e
}

// Actions returns the engine's action enumeration.
func (e *Engine) Actions() ActionSet { return e.actions }

// RunStream executes the workflow and returns its event stream. The
// channel always ends with a workflow_completed event and is then
// closed, on failure as well as success.
func (e *Engine) RunStream(ctx context.Context, s *State) <-chan Event {
	ch := make(chan Event, eventBuffer)
	go func() {
		defer close(ch)
		e.run(ctx, s, ch)
	}()
	return ch
}

// Run executes the workflow to completion and returns the terminal
// payload.
func (e *Engine) Run(ctx context.Context, s *State) WorkflowCompletedData {
	var terminal WorkflowCompletedData
	for ev := range e.RunStream(ctx, s) {
		if data, ok := ev.Data.(WorkflowCompletedData); ok {
			terminal = data
		}
	}
	return terminal
}

type runContext struct {
	events  chan<- Event
	history *conversation.History
	// node is the state machine node currently running, for event
	// payloads produced below the node level.
	node string
}

func (e *Engine) run(ctx context.Context, s *State, ch chan<- Event) {
	start := time.Now()
	limit := s.EffectiveRecursionLimit()
	slog.Info("Workflow starting",
		"task_id", s.TaskID,
		"domain", e.opts.Domain,
		"max_iterations", s.MaxIterations,
		"recursion_limit", limit)

	rc := &runContext{events: ch, history: e.seedHistory(s)}

	transitions := 0
	node := nodePlan
	for node != "" {
		if err := ctx.Err(); err != nil {
			s.Fail(fmt.Sprintf("cancelled at node %s: %v", node, err))
			e.emitError(ctx, s, rc, node, s.Errors[len(s.Errors)-1].Message)
			break
		}
		transitions++
		if transitions > limit {
			msg := fmt.Sprintf("%v: %d transitions, last node %s", ErrRecursionLimit, limit, node)
			s.Fail(msg)
			e.emitError(ctx, s, rc, node, msg)
			break
		}

		rc.node = node
		next := e.step(ctx, s, rc, node)
		e.saveCheckpoint(ctx, s, node)
		e.emitNode(ctx, s, rc, node)
		node = next
	}

	e.emit(ctx, rc, Event{
		Type:      EventWorkflowCompleted,
		TaskID:    s.TaskID,
		Timestamp: time.Now().UTC(),
		Data: WorkflowCompletedData{
			Status:          s.Status,
			Iterations:      s.Iteration,
			ToolCallCount:   len(s.ToolCalls),
			DurationSeconds: time.Since(start).Seconds(),
			Result:          s.Result,
		},
	})
	slog.Info("Workflow finished",
		"task_id", s.TaskID,
		"status", s.Status,
		"iterations", s.Iteration,
		"tool_calls", len(s.ToolCalls),
		"duration", time.Since(start).Round(time.Millisecond))
}

// step runs one node and returns the next node, or "" to stop.
func (e *Engine) step(ctx context.Context, s *State, rc *runContext, node string) string {
	switch node {
	case nodePlan:
		e.plan(ctx, s, rc)
		if s.Status.Terminal() {
			return ""
		}
		return nodeCheckComplexity
	case nodeCheckComplexity:
		e.checkComplexity(ctx, s)
		if s.UseSubAgents {
			return nodeSpawnSubAgents
		}
		return nodeExecute
	case nodeSpawnSubAgents:
		e.spawnSubAgents(ctx, s)
		return ""
	case nodeExecute:
		e.execute(ctx, s, rc)
		return nodeReflect
	case nodeReflect:
		e.reflect(s)
		if s.ShouldContinue {
			return nodeExecute
		}
		return ""
	default:
		s.Fail(fmt.Sprintf("unknown node %q", node))
		return ""
	}
}

// seedHistory builds the run's conversation, restoring prior messages
// when resuming from a checkpointed state.
func (e *Engine) seedHistory(s *State) *conversation.History {
	hist := conversation.New(e.opts.MaxPromptTokens)
	system := e.opts.SystemPrompt
	if system == "" {
		system = e.prompts.System(e.opts.Domain)
	}
	hist.SetSystem(system)
	for _, m := range s.Messages {
		if m.Role == llm.RoleSystem {
			continue
		}
		hist.Add(m.Role, m.Content)
	}
	return hist
}

func (e *Engine) chat(ctx context.Context, s *State, rc *runContext, userPrompt string) (string, error) {
	rc.history.Add(llm.RoleUser, userPrompt)
	response, err := e.llm.ChatCompletion(ctx, llm.Request{Messages: rc.history.Messages()})
	if err != nil {
		s.Messages = rc.history.Messages()
		return "", err
	}
	rc.history.Add(llm.RoleAssistant, response)
	s.Messages = rc.history.Messages()
	thought, cleaned := ExtractThink(response)
	if thought != "" && e.opts.CoTEnabled {
		e.emit(ctx, rc, Event{
			Type:      EventCoT,
			TaskID:    s.TaskID,
			Timestamp: time.Now().UTC(),
			Data:      CoTData{Node: rc.node, Thought: thought},
		})
	}
	return cleaned, nil
}

// plan initializes the task context and produces the plan. Re-entry on
// a state that already has a plan is a no-op. Greeting-like inputs in
// the general workflow complete here with a conversational reply.
func (e *Engine) plan(ctx context.Context, s *State, rc *runContext) {
	if s.Status == StatusPending {
		s.Status = StatusInProgress
	}
	if s.Context.CompletedSteps == nil {
		s.Context.CompletedSteps = []string{}
	}

	if e.opts.Domain == DomainGeneral && IsGreeting(s.TaskDescription) {
		reply, err := e.chat(ctx, s, rc, e.prompts.Greeting(s))
		if err != nil || reply == "" {
			reply = "Hello! How can I help you today?"
		}
		s.Complete(reply)
		return
	}

	if s.Context.Plan != nil {
		return
	}

	response, err := e.chat(ctx, s, rc, e.prompts.Plan(s))
	if err != nil {
		s.Fail(fmt.Sprintf("planning failed: %v", err))
		return
	}

	plan, perr := parsePlan(response)
	if perr != nil {
		// An unparseable plan degrades to a single-step plan instead of
		// failing the task.
		s.AppendError(fmt.Sprintf("plan response not parseable, using fallback: %v", perr))
		plan = &Plan{
			Approach: "direct",
			Steps:    []string{s.TaskDescription},
		}
	}
	s.Context.Plan = plan
	slog.Info("Plan ready", "task_id", s.TaskID, "steps", len(plan.Steps), "approach", plan.Approach)
}

// checkComplexity decides whether to delegate to sub-agents. Estimator
// failures degrade to false.
func (e *Engine) checkComplexity(ctx context.Context, s *State) {
	s.UseSubAgents = false
	if !e.opts.SubAgentsEnabled || e.subAgents == nil {
		return
	}
	complexity, err := e.subAgents.EstimateComplexity(ctx, s.TaskDescription)
	if err != nil {
		slog.Warn("Complexity estimation failed, staying single-agent",
			"task_id", s.TaskID, "error", err)
		return
	}
	s.UseSubAgents = complexity > e.opts.ComplexityThreshold
	slog.Info("Complexity checked",
		"task_id", s.TaskID,
		"complexity", complexity,
		"threshold", e.opts.ComplexityThreshold,
		"use_sub_agents", s.UseSubAgents)
}

func (e *Engine) spawnSubAgents(ctx context.Context, s *State) {
	summary, err := e.subAgents.ExecuteWithSubAgents(ctx, s)
	if err != nil {
		s.Fail(fmt.Sprintf("sub-agent execution failed: %v", err))
		return
	}
	s.Complete(summary)
}

// llmAction is the JSON shape the execute node expects back.
type llmAction struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Summary    string         `json:"summary"`
}

func (e *Engine) execute(ctx context.Context, s *State, rc *runContext) {
	if s.Iteration >= s.MaxIterations {
		s.Fail(fmt.Sprintf("max iterations reached (%d)", s.MaxIterations))
		return
	}

	response, err := e.chat(ctx, s, rc, e.prompts.Execute(s, e.actions))
	if err != nil {
		s.Fail(fmt.Sprintf("execute LLM call failed: %v", err))
		return
	}

	action, perr := parseAction(response)
	if perr != nil {
		e.recordParseFailure(s, response, perr)
		s.Iteration++
		return
	}
	s.parseFailures = 0
	if action.Parameters == nil {
		action.Parameters = map[string]any{}
	}

	if action.Action == ActionComplete {
		s.ToolCalls = append(s.ToolCalls, ToolCall{
			Action:     ActionComplete,
			Parameters: action.Parameters,
			Result:     tools.OK(action.Summary, nil),
			Success:    true,
			Iteration:  s.Iteration,
		})
		s.Complete(action.Summary)
		s.Iteration++
		return
	}

	result := e.dispatch(ctx, action)
	s.ToolCalls = append(s.ToolCalls, ToolCall{
		Action:     action.Action,
		Parameters: action.Parameters,
		Result:     result,
		Success:    result.Success,
		Iteration:  s.Iteration,
	})
	if result.Success {
		s.Context.CompletedSteps = append(s.Context.CompletedSteps, action.Action)
	} else {
		s.AppendError(fmt.Sprintf("action %s failed: %s", action.Action, result.Error))
	}
	s.Context.LastToolExecution = &ToolExecution{
		Action:        action.Action,
		ActionDetails: action.Parameters,
		Result:        result,
		Success:       result.Success,
	}

	e.emit(ctx, rc, Event{
		Type:      EventToolExecuted,
		TaskID:    s.TaskID,
		Timestamp: time.Now().UTC(),
		Data: ToolExecutedData{
			Tool:    action.Action,
			Params:  action.Parameters,
			Result:  result,
			Success: result.Success,
		},
	})

	s.Iteration++
}

// dispatch resolves the action against the domain's enumeration, runs
// the safety check, and invokes the gateway.
func (e *Engine) dispatch(ctx context.Context, action llmAction) tools.Result {
	spec, ok := e.actions.Lookup(action.Action)
	if !ok {
		return tools.Fail(fmt.Sprintf("unknown action %q for the %s workflow", action.Action, e.opts.Domain),
			map[string]any{"action": action.Action})
	}
	if e.safety != nil {
		if allowed, reason := e.safety.Validate(spec.Tool, action.Parameters); !allowed {
			return tools.Fail(fmt.Sprintf("%v: %s", safety.ErrDenied, reason),
				map[string]any{"action": action.Action, "denied": true})
		}
	}
	return spec.Run(ctx, e.gateway, action.Parameters, e.opts.ToolTimeout)
}

func (e *Engine) recordParseFailure(s *State, raw string, perr error) {
	s.parseFailures++
	s.ToolCalls = append(s.ToolCalls, ToolCall{
		Action:     "JSON_PARSE_ERROR",
		Parameters: map[string]any{"raw_response": raw},
		Result:     tools.Fail(perr.Error(), map[string]any{"consecutive_failures": s.parseFailures}),
		Success:    false,
		Iteration:  s.Iteration,
	})
	s.AppendError(fmt.Sprintf("response not parseable as action JSON: %v", perr))
	if s.parseFailures >= maxParseFailures {
		s.Fail(fmt.Sprintf("JSON parsing failed %d consecutive times", s.parseFailures))
	}
}

// reflect decides whether the loop continues. A terminal status is
// preserved untouched, so a COMPLETE in execute can never be overridden
// here.
func (e *Engine) reflect(s *State) {
	if s.Status.Terminal() {
		return
	}
	if s.Iteration >= s.MaxIterations {
		s.Fail(fmt.Sprintf("max iterations reached (%d)", s.MaxIterations))
		return
	}
	planned := 0
	if s.Context.Plan != nil {
		planned = len(s.Context.Plan.Steps)
	}
	slog.Info("Reflecting on progress",
		"task_id", s.TaskID,
		"iteration", s.Iteration,
		"completed_steps", len(s.Context.CompletedSteps),
		"planned_steps", planned)
	s.ShouldContinue = true
}

func (e *Engine) emitNode(ctx context.Context, s *State, rc *runContext, node string) {
	e.emit(ctx, rc, Event{
		Type:      EventNodeExecuted,
		TaskID:    s.TaskID,
		Timestamp: time.Now().UTC(),
		Data: NodeExecutedData{
			Node:           node,
			Iteration:      s.Iteration,
			MaxIterations:  s.MaxIterations,
			Status:         s.Status,
			ShouldContinue: s.ShouldContinue,
			TaskPreview:    preview(s.TaskDescription),
		},
	})
}

func (e *Engine) emitError(ctx context.Context, s *State, rc *runContext, node, message string) {
	e.emit(ctx, rc, Event{
		Type:      EventError,
		TaskID:    s.TaskID,
		Timestamp: time.Now().UTC(),
		Data:      ErrorData{Message: message, Node: node},
	})
}

// emit delivers an event. Delivery blocks only when the buffer is full,
// and then gives up if the run is cancelled and the consumer is gone.
func (e *Engine) emit(ctx context.Context, rc *runContext, ev Event) {
	select {
	case rc.events <- ev:
		return
	default:
	}
	select {
	case rc.events <- ev:
	case <-ctx.Done():
	}
}

func (e *Engine) saveCheckpoint(ctx context.Context, s *State, node string) {
	if e.checkpoints == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		slog.Warn("Checkpoint marshal failed", "task_id", s.TaskID, "node", node, "error", err)
		return
	}
	if err := e.checkpoints.SaveCheckpoint(ctx, s.TaskID, s.Iteration, node, raw); err != nil {
		slog.Warn("Checkpoint save failed", "task_id", s.TaskID, "node", node, "error", err)
	}
}

func preview(s string) string {
	if len(s) <= taskPreviewLen {
		return s
	}
	return s[:taskPreviewLen] + "..."
}

// parsePlan extracts the plan JSON from an LLM response.
func parsePlan(response string) (*Plan, error) {
	raw, ok := extractJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, err
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	return &plan, nil
}

// parseAction extracts the action JSON from an LLM response.
func parseAction(response string) (llmAction, error) {
	raw, ok := extractJSONObject(response)
	if !ok {
		return llmAction{}, fmt.Errorf("no JSON object in response")
	}
	var action llmAction
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return llmAction{}, err
	}
	if action.Action == "" {
		return llmAction{}, fmt.Errorf("missing action field")
	}
	return action, nil
}

// extractJSONObject returns the first balanced JSON object in text,
// tolerating surrounding prose and markdown fences.
func extractJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
