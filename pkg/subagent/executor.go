package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/prompt"
	"github.com/agentic-project/agentic/pkg/safety"
	"github.com/agentic-project/agentic/pkg/tools"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// Result is one subtask's outcome. Failures are captured here instead
// of cancelling sibling subtasks.
type Result struct {
	SubtaskID       string    `json:"subtask_id"`
	AgentType       AgentType `json:"agent_type"`
	Success         bool      `json:"success"`
	Output          string    `json:"output"`
	Error           string    `json:"error,omitempty"`
	Iterations      int       `json:"iterations"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// ExecutorConfig carries the executor's concurrency and timeout knobs.
type ExecutorConfig struct {
	MaxConcurrent int
	AgentTimeout  time.Duration
	ToolTimeout   time.Duration
	// MaxPromptTokens is handed down to each sub-agent's conversation.
	MaxPromptTokens int
}

// Executor runs subtasks level by level with bounded concurrency. Each
// subtask gets its own restricted workflow engine and child state.
type Executor struct {
	cfg      ExecutorConfig
	llm      llm.Chat
	gateway  tools.Gateway
	safety   *safety.Checker
	registry *Registry
	prompts  *prompt.Builder
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig, chat llm.Chat, gateway tools.Gateway, checker *safety.Checker, registry *Registry) *Executor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Executor{
		cfg:      cfg,
		llm:      chat,
		gateway:  gateway,
		safety:   checker,
		registry: registry,
		prompts:  prompt.NewBuilder(),
	}
}

// Execute runs the subtasks under the given strategy and returns one
// Result per subtask, in the input order. A failing or timed-out
// subtask never cancels its level siblings; cancellation of ctx stops
// everything cooperatively.
func (e *Executor) Execute(ctx context.Context, subtasks []Subtask, strategy Strategy, parent *workflow.State) []Result {
	levels, err := TopologicalLevels(subtasks)
	if err != nil {
		// Validation runs before execution, so this is a programming
		// error rather than bad LLM output.
		results := make([]Result, len(subtasks))
		for i, st := range subtasks {
			results[i] = Result{SubtaskID: st.ID, AgentType: st.AgentType, Error: err.Error()}
		}
		return results
	}

	concurrency := e.cfg.MaxConcurrent
	if strategy == StrategySequential {
		concurrency = 1
	}

	byID := make(map[string]Result, len(subtasks))
	var mu sync.Mutex

	for _, level := range levels {
		if ctx.Err() != nil {
			break
		}
		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup
		for _, st := range level {
			wg.Add(1)
			sem <- struct{}{}
			go func(st Subtask) {
				defer wg.Done()
				defer func() { <-sem }()
				result := e.runAgent(ctx, st, parent)
				mu.Lock()
				byID[st.ID] = result
				mu.Unlock()
			}(st)
		}
		wg.Wait()
	}

	results := make([]Result, len(subtasks))
	for i, st := range subtasks {
		if r, ok := byID[st.ID]; ok {
			results[i] = r
			continue
		}
		results[i] = Result{
			SubtaskID: st.ID,
			AgentType: st.AgentType,
			Error:     "not executed: run cancelled before this subtask's level",
		}
	}
	return results
}

// runAgent executes one subtask with a restricted engine and its own
// timeout. The parent's description and completed steps flow down
// read-only through the child's context.
func (e *Executor) runAgent(ctx context.Context, st Subtask, parent *workflow.State) Result {
	spec, ok := e.registry.Get(st.AgentType)
	if !ok {
		return Result{SubtaskID: st.ID, AgentType: st.AgentType, Error: fmt.Sprintf("unknown agent type %q", st.AgentType)}
	}

	agentCtx := ctx
	if e.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		agentCtx, cancel = context.WithTimeout(ctx, e.cfg.AgentTimeout)
		defer cancel()
	}

	engine := workflow.NewEngine(workflow.Options{
		Domain:          spec.Domain,
		ToolTimeout:     e.cfg.ToolTimeout,
		MaxPromptTokens: e.cfg.MaxPromptTokens,
		SystemPrompt:    prompt.SubAgentSystem(string(spec.Type), spec.Description),
	}, e.llm, e.prompts, e.gateway, e.safety).WithActions(spec.ActionSet())

	child := workflow.NewState(
		fmt.Sprintf("%s/%s", parent.TaskID, st.ID),
		childDescription(st, parent),
		spec.Domain,
		parent.Workspace,
		spec.MaxIterations,
		0, // raised to max_iterations*6 by the engine
	)
	child.Context.SubAgentConfig = map[string]any{
		"agent_type":     string(st.AgentType),
		"parent_task_id": parent.TaskID,
		"priority":       st.Priority,
	}

	slog.Info("Sub-agent starting",
		"parent_task_id", parent.TaskID,
		"subtask_id", st.ID,
		"agent_type", st.AgentType)

	start := time.Now()
	done := engine.Run(agentCtx, child)
	result := Result{
		SubtaskID:       st.ID,
		AgentType:       st.AgentType,
		Success:         done.Status == workflow.StatusCompleted,
		Output:          done.Result,
		Iterations:      done.Iterations,
		DurationSeconds: time.Since(start).Seconds(),
	}
	if !result.Success {
		result.Error = lastError(child)
	}
	slog.Info("Sub-agent finished",
		"subtask_id", st.ID,
		"agent_type", st.AgentType,
		"success", result.Success,
		"iterations", result.Iterations)
	return result
}

func childDescription(st Subtask, parent *workflow.State) string {
	desc := st.Description
	if parent.TaskDescription != "" {
		desc += fmt.Sprintf("\n\nThis is a subtask of the larger task: %s", parent.TaskDescription)
	}
	if len(parent.Context.CompletedSteps) > 0 {
		desc += fmt.Sprintf("\nThe parent has already completed: %v", parent.Context.CompletedSteps)
	}
	return desc
}

func lastError(s *workflow.State) string {
	if len(s.Errors) == 0 {
		return "sub-agent did not complete"
	}
	return s.Errors[len(s.Errors)-1].Message
}
