package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-project/agentic/pkg/tools"
	"github.com/agentic-project/agentic/pkg/workflow"
)

func codingState() *workflow.State {
	return workflow.NewState("t1", "write a calculator in python", workflow.DomainCoding, "/ws", 50, 300)
}

func TestSystemPromptPerDomain(t *testing.T) {
	b := NewBuilder()
	for _, domain := range workflow.Domains() {
		assert.NotEmpty(t, b.System(domain), domain)
	}
	// Unknown domains fall back to the general prompt.
	assert.Equal(t, b.System(workflow.DomainGeneral), b.System(workflow.Domain("bogus")))
	assert.NotEqual(t, b.System(workflow.DomainCoding), b.System(workflow.DomainData))
}

func TestPlanPrompt(t *testing.T) {
	p := NewBuilder().Plan(codingState())
	assert.Contains(t, p, "## Task")
	assert.Contains(t, p, "write a calculator in python")
	assert.Contains(t, p, `"approach"`)
	assert.Contains(t, p, `"steps"`)
	assert.Contains(t, p, `"estimated_iterations"`)
}

func TestExecutePromptRendersActionsFromSet(t *testing.T) {
	b := NewBuilder()
	s := codingState()
	actions := workflow.ActionSetFor(workflow.DomainCoding)

	p := b.Execute(s, actions)
	for _, name := range actions.Names() {
		assert.Contains(t, p, name)
	}
	assert.Contains(t, p, "Iteration 1 of 50")

	// A restricted set must not advertise the removed actions.
	restricted := actions.Restrict("READ_FILE", "COMPLETE")
	p = b.Execute(s, restricted)
	assert.Contains(t, p, "READ_FILE")
	assert.NotContains(t, p, "WRITE_FILE")
}

func TestExecutePromptCarriesProgress(t *testing.T) {
	s := codingState()
	s.Context.Plan = &workflow.Plan{Approach: "direct", Steps: []string{"write calc.py", "run tests"}}
	s.Context.CompletedSteps = []string{"WRITE_FILE"}
	s.Context.LastToolExecution = &workflow.ToolExecution{
		Action:  "WRITE_FILE",
		Success: true,
		Result:  tools.OK("wrote calc.py", map[string]any{"bytes": 42}),
	}
	s.Iteration = 1

	p := NewBuilder().Execute(s, workflow.ActionSetFor(workflow.DomainCoding))
	assert.Contains(t, p, "## Plan")
	assert.Contains(t, p, "1. write calc.py")
	assert.Contains(t, p, "## Completed actions")
	assert.Contains(t, p, "## Last action result")
	assert.Contains(t, p, "wrote calc.py")
	assert.Contains(t, p, "Iteration 2 of 50")
}

func TestExecutePromptTruncatesLongOutput(t *testing.T) {
	s := codingState()
	s.Context.LastToolExecution = &workflow.ToolExecution{
		Action:  "READ_FILE",
		Success: true,
		Result:  tools.OK(strings.Repeat("x", 3*outputPreviewLen), nil),
	}
	p := NewBuilder().Execute(s, workflow.ActionSetFor(workflow.DomainCoding))
	assert.Less(t, strings.Count(p, "x"), 2*outputPreviewLen)
}

func TestGreetingPrompt(t *testing.T) {
	s := workflow.NewState("t1", "hola", workflow.DomainGeneral, "/ws", 50, 300)
	p := NewBuilder().Greeting(s)
	assert.Contains(t, p, "hola")
	assert.Contains(t, p, "no JSON")
}

func TestClassifyPrompt(t *testing.T) {
	p := Classify("fix the failing unit tests")
	assert.Contains(t, p, "fix the failing unit tests")
	for _, domain := range workflow.Domains() {
		assert.Contains(t, p, string(domain))
	}
}

func TestDecomposePrompt(t *testing.T) {
	p := Decompose("build and test a REST API", []string{"code_writer", "code_tester"})
	assert.Contains(t, p, "build and test a REST API")
	assert.Contains(t, p, "code_writer, code_tester")
	assert.Contains(t, p, "requires_decomposition")
	assert.Contains(t, p, "depends_on")
}

func TestEstimateComplexityPrompt(t *testing.T) {
	p := EstimateComplexity("rename a variable")
	assert.Contains(t, p, "rename a variable")
	assert.Contains(t, p, `{"complexity": 0.5}`)
}

func TestSummarizePrompt(t *testing.T) {
	p := Summarize("build a site", []string{"wrote index.html", "styled the page"})
	assert.Contains(t, p, "## Original task")
	assert.Contains(t, p, "### Subtask 1")
	assert.Contains(t, p, "styled the page")
}

func TestSubAgentSystemPrompt(t *testing.T) {
	p := SubAgentSystem("code_writer", "Writes new code.")
	require.Contains(t, p, "code_writer")
	assert.Contains(t, p, "Writes new code.")
	assert.Contains(t, p, "one subtask")
}
