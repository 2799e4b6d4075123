package orchestrator_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-project/agentic/pkg/config"
	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/orchestrator"
	"github.com/agentic-project/agentic/pkg/router"
	"github.com/agentic-project/agentic/pkg/store"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// scriptedChat returns canned responses in order.
type scriptedChat struct {
	mu        sync.Mutex
	responses []any
	calls     int
}

func (c *scriptedChat) ChatCompletion(_ context.Context, _ llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.responses) {
		return "", fmt.Errorf("scripted chat exhausted after %d calls", c.calls)
	}
	r := c.responses[c.calls]
	c.calls++
	if err, ok := r.(error); ok {
		return "", err
	}
	return r.(string), nil
}

func (c *scriptedChat) ChatCompletionStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	content, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Content: content}
	close(ch)
	return ch, nil
}

const (
	planResponse     = `{"approach": "direct", "steps": ["do the thing"], "estimated_iterations": 1}`
	completeResponse = `{"action": "COMPLETE", "parameters": {}, "summary": "done"}`
)

// testConfig returns a config rooted at a temp workspace with
// sub-agents off, so scripted LLM responses stay in a fixed order.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workspace.DefaultPath = t.TempDir()
	disabled := false
	cfg.Workflows.SubAgents.Enabled = &disabled
	return cfg
}

func collect(t *testing.T, stream <-chan workflow.Event) []workflow.Event {
	t.Helper()
	var events []workflow.Event
	for ev := range stream {
		events = append(events, ev)
	}
	return events
}

func TestExecuteTaskStream(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workspace.Isolation = true
	chat := &scriptedChat{responses: []any{planResponse, completeResponse}}
	st := store.NewMemory()
	orch := orchestrator.New(cfg, chat, st)

	stream, err := orch.ExecuteTaskStream(context.Background(), "write a calculator in python",
		orchestrator.WithTaskID("task-123"),
		orchestrator.WithDomain(workflow.DomainCoding))
	require.NoError(t, err)
	events := collect(t, stream)
	require.NotEmpty(t, events)

	// First event is the routing decision, last the terminal payload.
	first := events[0]
	assert.Equal(t, workflow.EventClassified, first.Type)
	classification, ok := first.Data.(router.Classification)
	require.True(t, ok)
	assert.Equal(t, workflow.DomainCoding, classification.Domain)
	assert.Equal(t, "caller-specified domain", classification.Reasoning)

	last := events[len(events)-1]
	assert.Equal(t, workflow.EventWorkflowCompleted, last.Type)
	terminal, ok := last.Data.(workflow.WorkflowCompletedData)
	require.True(t, ok)
	assert.Equal(t, workflow.StatusCompleted, terminal.Status)
	assert.Equal(t, "done", terminal.Result)

	for _, ev := range events {
		assert.Equal(t, "task-123", ev.TaskID)
	}

	// Isolation gives the task its own workspace subdirectory.
	info, err := os.Stat(filepath.Join(cfg.Workspace.DefaultPath, "task-123"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSessionAndCheckpointRecords(t *testing.T) {
	cfg := testConfig(t)
	chat := &scriptedChat{responses: []any{planResponse, completeResponse}}
	st := store.NewMemory()
	orch := orchestrator.New(cfg, chat, st)
	ctx := context.Background()

	terminal, err := orch.ExecuteTask(ctx, "write a calculator in python",
		orchestrator.WithTaskID("task-sessions"),
		orchestrator.WithDomain(workflow.DomainCoding))
	require.NoError(t, err)
	require.Equal(t, workflow.StatusCompleted, terminal.Status)

	session, err := orch.Session(ctx, "task-sessions")
	require.NoError(t, err)
	assert.Equal(t, string(workflow.StatusCompleted), session.Status)
	assert.Equal(t, "done", session.Result)
	// The final update keeps the fields written at task start.
	assert.Equal(t, "write a calculator in python", session.TaskDescription)
	assert.Equal(t, "coding", session.Domain)

	latest, err := st.LoadLatest(ctx, "task-sessions")
	require.NoError(t, err)
	assert.Equal(t, "reflect", latest.Node)

	sessions, err := orch.Sessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

func TestClassifierHeuristicFallback(t *testing.T) {
	cfg := testConfig(t)
	// First call is the classification, answered with garbage so the
	// router degrades to keywords.
	chat := &scriptedChat{responses: []any{"not json at all", planResponse, completeResponse}}
	orch := orchestrator.New(cfg, chat, store.NewMemory())

	stream, err := orch.ExecuteTaskStream(context.Background(), "analyze the sales data in report.csv")
	require.NoError(t, err)
	events := collect(t, stream)
	require.NotEmpty(t, events)

	classification, ok := events[0].Data.(router.Classification)
	require.True(t, ok)
	assert.Equal(t, workflow.DomainData, classification.Domain)
	assert.Equal(t, "keyword heuristic", classification.Reasoning)
}

func TestGreetingTask(t *testing.T) {
	cfg := testConfig(t)
	// Greetings skip classification, so the single scripted response is
	// the conversational reply.
	chat := &scriptedChat{responses: []any{"Hi there! How can I help?"}}
	orch := orchestrator.New(cfg, chat, nil)

	stream, err := orch.ExecuteTaskStream(context.Background(), "hello")
	require.NoError(t, err)
	events := collect(t, stream)
	require.Len(t, events, 3)

	assert.Equal(t, workflow.EventClassified, events[0].Type)
	classification := events[0].Data.(router.Classification)
	assert.Equal(t, workflow.DomainGeneral, classification.Domain)
	assert.Equal(t, "greeting shortcut", classification.Reasoning)

	assert.Equal(t, workflow.EventNodeExecuted, events[1].Type)
	node := events[1].Data.(workflow.NodeExecutedData)
	assert.Equal(t, "plan", node.Node)

	terminal := events[2].Data.(workflow.WorkflowCompletedData)
	assert.Equal(t, workflow.StatusCompleted, terminal.Status)
	assert.Equal(t, "Hi there! How can I help?", terminal.Result)
	assert.Equal(t, 0, terminal.Iterations)
}

func TestNoStore(t *testing.T) {
	cfg := testConfig(t)
	chat := &scriptedChat{responses: []any{planResponse, completeResponse}}
	orch := orchestrator.New(cfg, chat, nil)
	ctx := context.Background()

	terminal, err := orch.ExecuteTask(ctx, "write a calculator in python",
		orchestrator.WithDomain(workflow.DomainCoding))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, terminal.Status)

	sessions, err := orch.Sessions(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, sessions)

	_, err = orch.Session(ctx, "whatever")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWorkspaceProvisioningError(t *testing.T) {
	cfg := testConfig(t)
	// Point the workspace at a regular file so MkdirAll fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.Workspace.DefaultPath = blocker

	orch := orchestrator.New(cfg, &scriptedChat{}, nil)
	_, err := orch.ExecuteTaskStream(context.Background(), "anything",
		orchestrator.WithDomain(workflow.DomainGeneral))
	require.Error(t, err)
}
