// Package orchestrator is the facade that turns a task description into
// a running workflow: it classifies the task, provisions a workspace,
// assembles the engine for the routed domain, and streams the combined
// event flow back to the caller.
package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/agentic-project/agentic/pkg/config"
	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/prompt"
	"github.com/agentic-project/agentic/pkg/router"
	"github.com/agentic-project/agentic/pkg/safety"
	"github.com/agentic-project/agentic/pkg/store"
	"github.com/agentic-project/agentic/pkg/subagent"
	"github.com/agentic-project/agentic/pkg/tools"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// Orchestrator wires the router, engine, sub-agent manager, and store
// together. One Orchestrator serves any number of concurrent tasks;
// per-task state lives in workflow.State.
type Orchestrator struct {
	cfg     *config.Config
	chat    llm.Chat
	router  *router.Router
	prompts *prompt.Builder
	checker *safety.Checker
	store   store.Store
}

// New creates an Orchestrator. The store is optional; pass nil to run
// without checkpointing and session records.
func New(cfg *config.Config, chat llm.Chat, st store.Store) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		chat:    chat,
		router:  router.NewRouter(chat, config.DefaultClassifyConfidence),
		prompts: prompt.NewBuilder(),
		checker: safety.NewChecker(cfg.Safety),
		store:   st,
	}
}

type taskOptions struct {
	taskID string
	domain workflow.Domain
}

// TaskOption tweaks a single ExecuteTask call.
type TaskOption func(*taskOptions)

// WithTaskID pins the task ID instead of generating one.
func WithTaskID(id string) TaskOption {
	return func(o *taskOptions) { o.taskID = id }
}

// WithDomain skips LLM classification and routes the task to the given
// domain directly.
func WithDomain(d workflow.Domain) TaskOption {
	return func(o *taskOptions) { o.domain = d }
}

// ExecuteTaskStream classifies the task, starts the workflow, and
// returns the event stream. The first event is always classified; the
// last is always workflow_completed, after which the channel closes.
// The returned error covers setup only (workspace provisioning);
// runtime failures surface as events.
func (o *Orchestrator) ExecuteTaskStream(ctx context.Context, task string, opts ...TaskOption) (<-chan workflow.Event, error) {
	var topts taskOptions
	for _, opt := range opts {
		opt(&topts)
	}
	taskID := topts.taskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	gateway, err := o.provisionWorkspace(taskID)
	if err != nil {
		return nil, err
	}

	classification := o.classify(ctx, task, topts.domain)
	slog.Info("Task classified",
		"task_id", taskID,
		"domain", classification.Domain,
		"confidence", classification.Confidence,
		"requires_sub_agents", classification.RequiresSubAgents)

	state := workflow.NewState(
		taskID,
		task,
		classification.Domain,
		gateway.Workspace(),
		o.cfg.Workflows.MaxIterations,
		o.cfg.Workflows.RecursionLimit,
	)

	engine := o.buildEngine(classification.Domain, gateway)

	o.saveSession(ctx, &store.Session{
		ID:              taskID,
		TaskDescription: task,
		Domain:          string(classification.Domain),
		Status:          string(workflow.StatusInProgress),
	})

	out := make(chan workflow.Event, 16)
	go func() {
		defer close(out)

		runCtx, cancel := context.WithTimeout(ctx, o.cfg.Workflows.Timeout())
		defer cancel()

		out <- workflow.Event{
			Type:      workflow.EventClassified,
			TaskID:    taskID,
			Timestamp: time.Now().UTC(),
			Data:      classification,
		}

		for ev := range engine.RunStream(runCtx, state) {
			if data, ok := ev.Data.(workflow.WorkflowCompletedData); ok {
				// The final save must land even when the task itself was
				// cancelled or timed out.
				o.saveSession(context.WithoutCancel(ctx), &store.Session{
					ID:     taskID,
					Status: string(data.Status),
					Result: data.Result,
				})
			}
			out <- ev
		}
	}()
	return out, nil
}

// ExecuteTask runs the task to completion and returns the terminal
// payload.
func (o *Orchestrator) ExecuteTask(ctx context.Context, task string, opts ...TaskOption) (workflow.WorkflowCompletedData, error) {
	stream, err := o.ExecuteTaskStream(ctx, task, opts...)
	if err != nil {
		return workflow.WorkflowCompletedData{}, err
	}
	var terminal workflow.WorkflowCompletedData
	for ev := range stream {
		if data, ok := ev.Data.(workflow.WorkflowCompletedData); ok {
			terminal = data
		}
	}
	return terminal, nil
}

// classify routes the task, honoring an explicit domain override.
func (o *Orchestrator) classify(ctx context.Context, task string, override workflow.Domain) router.Classification {
	if override != "" {
		return router.Classification{
			Domain:              override,
			Confidence:          1.0,
			Reasoning:           "caller-specified domain",
			EstimatedComplexity: router.ComplexityMedium,
		}
	}
	return o.router.Classify(ctx, task)
}

// provisionWorkspace returns the gateway for one task. With isolation
// enabled each task gets its own subdirectory of the default path.
func (o *Orchestrator) provisionWorkspace(taskID string) (*tools.LocalGateway, error) {
	path := o.cfg.Workspace.DefaultPath
	if o.cfg.Workspace.Isolation {
		path = filepath.Join(path, taskID)
	}
	return tools.NewLocalGateway(path)
}

// buildEngine assembles a workflow engine for the routed domain,
// attaching the sub-agent manager and checkpoint store when configured.
func (o *Orchestrator) buildEngine(domain workflow.Domain, gateway tools.Gateway) *workflow.Engine {
	engine := workflow.NewEngine(workflow.Options{
		Domain:              domain,
		ToolTimeout:         o.cfg.Workflows.ToolTimeout(),
		SubAgentsEnabled:    o.cfg.Workflows.SubAgents.IsEnabled(),
		ComplexityThreshold: o.cfg.Workflows.SubAgents.ComplexityThreshold,
		MaxPromptTokens:     o.cfg.LLM.MaxPromptTokens(),
		CoTEnabled:          o.cfg.LLM.ChainOfThought.IsEnabled(),
	}, o.chat, o.prompts, gateway, o.checker)

	if o.cfg.Workflows.SubAgents.IsEnabled() {
		manager := subagent.NewManager(subagent.ExecutorConfig{
			MaxConcurrent:   o.cfg.Workflows.SubAgents.MaxConcurrent,
			AgentTimeout:    o.cfg.Workflows.SubAgents.AgentTimeout(),
			ToolTimeout:     o.cfg.Workflows.ToolTimeout(),
			MaxPromptTokens: o.cfg.LLM.MaxPromptTokens(),
		}, o.chat, gateway, o.checker)
		engine.WithSubAgents(manager)
	}
	if o.store != nil {
		engine.WithCheckpoints(o.store)
	}
	return engine
}

// saveSession persists a session record. Best effort; a store failure
// never fails the task.
func (o *Orchestrator) saveSession(ctx context.Context, session *store.Session) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveSession(ctx, session); err != nil {
		slog.Warn("Failed to save session record", "session_id", session.ID, "error", err)
	}
}

// Sessions lists recent session records, newest first. Returns nil when
// no store is configured.
func (o *Orchestrator) Sessions(ctx context.Context, limit int) ([]*store.Session, error) {
	if o.store == nil {
		return nil, nil
	}
	return o.store.ListSessions(ctx, limit)
}

// Session fetches one session record by task ID.
func (o *Orchestrator) Session(ctx context.Context, id string) (*store.Session, error) {
	if o.store == nil {
		return nil, store.ErrNotFound
	}
	return o.store.GetSession(ctx, id)
}
