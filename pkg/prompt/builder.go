// Package prompt builds all LLM prompt text for the workflow engine,
// the intent router, and the sub-agent subsystem. Builders are
// stateless; all state comes from parameters.
package prompt

import (
	"fmt"
	"strings"

	"github.com/agentic-project/agentic/pkg/workflow"
)

// Builder renders the engine's prompts. Stateless and safe for
// concurrent use.
type Builder struct{}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

var _ workflow.PromptBuilder = (*Builder)(nil)

var systemPrompts = map[workflow.Domain]string{
	workflow.DomainCoding: "You are a senior software engineer working inside a sandboxed workspace. " +
		"You read, write, and test code through structured actions. " +
		"Respond only in the JSON format you are asked for.",
	workflow.DomainResearch: "You are a research assistant working inside a sandboxed workspace. " +
		"You gather information from documents and produce well-sourced write-ups. " +
		"Respond only in the JSON format you are asked for.",
	workflow.DomainData: "You are a data analyst working inside a sandboxed workspace. " +
		"You load, inspect, and analyze data files through structured actions. " +
		"Respond only in the JSON format you are asked for.",
	workflow.DomainGeneral: "You are a capable general-purpose assistant working inside a sandboxed workspace. " +
		"Respond only in the JSON format you are asked for, unless asked for a conversational reply.",
}

// System returns the system prompt for a domain.
func (b *Builder) System(domain workflow.Domain) string {
	if p, ok := systemPrompts[domain]; ok {
		return p
	}
	return systemPrompts[workflow.DomainGeneral]
}

// Greeting asks for a short conversational reply to a salutation.
func (b *Builder) Greeting(s *workflow.State) string {
	return fmt.Sprintf("The user said: %q\n\n"+
		"Reply with one short, friendly sentence. Plain text, no JSON.", s.TaskDescription)
}

// Plan asks for a structured execution plan.
func (b *Builder) Plan(s *workflow.State) string {
	var sb strings.Builder
	sb.WriteString("## Task\n\n")
	sb.WriteString(s.TaskDescription)
	sb.WriteString("\n\n## Instructions\n\n")
	sb.WriteString("Produce a short execution plan for this task. Respond with a single JSON object:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString("  \"approach\": \"one-line strategy\",\n")
	sb.WriteString("  \"steps\": [\"step 1\", \"step 2\"],\n")
	sb.WriteString("  \"estimated_iterations\": 3,\n")
	sb.WriteString("  \"rationale\": \"why this approach\"\n")
	sb.WriteString("}\n```\n\n")
	sb.WriteString("Keep steps concrete and few. No text outside the JSON object.")
	return sb.String()
}

// Execute asks for the next action. The action list and parameter
// schemas are rendered from the domain's action enumeration, so the
// prompt can never advertise an action the dispatcher does not know.
func (b *Builder) Execute(s *workflow.State, actions workflow.ActionSet) string {
	var sb strings.Builder
	sb.WriteString("## Task\n\n")
	sb.WriteString(s.TaskDescription)

	if plan := s.Context.Plan; plan != nil {
		sb.WriteString("\n\n## Plan\n\n")
		sb.WriteString("Approach: ")
		sb.WriteString(plan.Approach)
		for i, step := range plan.Steps {
			fmt.Fprintf(&sb, "\n%d. %s", i+1, step)
		}
	}

	if len(s.Context.CompletedSteps) > 0 {
		sb.WriteString("\n\n## Completed actions\n\n")
		sb.WriteString(strings.Join(s.Context.CompletedSteps, ", "))
	}

	if last := s.Context.LastToolExecution; last != nil {
		sb.WriteString("\n\n## Last action result\n\n")
		fmt.Fprintf(&sb, "Action: %s\nSuccess: %t\n", last.Action, last.Success)
		if last.Result.Error != "" {
			fmt.Fprintf(&sb, "Error: %s\n", last.Result.Error)
		} else {
			fmt.Fprintf(&sb, "Output: %s\n", previewOutput(last.Result.Output))
		}
	}

	sb.WriteString("\n\n## Available actions\n\n")
	for _, action := range actions.Actions {
		fmt.Fprintf(&sb, "- %s: %s\n", action.Name, action.Description)
		for _, p := range action.Params {
			required := "optional"
			if p.Required {
				required = "required"
			}
			fmt.Fprintf(&sb, "    - %s (%s, %s): %s\n", p.Name, p.Type, required, p.Description)
		}
	}

	sb.WriteString("\n## Instructions\n\n")
	fmt.Fprintf(&sb, "Iteration %d of %d. ", s.Iteration+1, s.MaxIterations)
	sb.WriteString("Choose exactly one action. Respond with a single JSON object:\n\n")
	sb.WriteString("```json\n{\"action\": \"ACTION_NAME\", \"parameters\": {}, \"summary\": \"only for COMPLETE\"}\n```\n\n")
	sb.WriteString("Use COMPLETE with a summary once the task is done. No text outside the JSON object.")
	return sb.String()
}

// outputPreviewLen bounds tool output echoed back into the prompt.
const outputPreviewLen = 2000

func previewOutput(output any) string {
	text := fmt.Sprintf("%v", output)
	if len(text) > outputPreviewLen {
		return text[:outputPreviewLen] + "... (truncated)"
	}
	return text
}
