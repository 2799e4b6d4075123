package prompt

import (
	"fmt"
	"strings"
)

// Decompose builds the task decomposition prompt. agentTypes is the
// fixed specialization list the subtasks may be assigned to.
func Decompose(task string, agentTypes []string) string {
	var sb strings.Builder
	sb.WriteString("## Task\n\n")
	sb.WriteString(task)
	sb.WriteString("\n\n## Instructions\n\n")
	sb.WriteString("Decide whether this task should be split into subtasks, and if so, split it. ")
	sb.WriteString("Respond with a single JSON object:\n\n")
	sb.WriteString("```json\n{\n")
	sb.WriteString("  \"requires_decomposition\": true,\n")
	sb.WriteString("  \"complexity\": 0.8,\n")
	sb.WriteString("  \"execution_strategy\": \"PARALLEL\",\n")
	sb.WriteString("  \"subtasks\": [\n")
	sb.WriteString("    {\"id\": \"t1\", \"description\": \"...\", \"agent_type\": \"code_writer\", \"priority\": 1, \"depends_on\": []}\n")
	sb.WriteString("  ]\n")
	sb.WriteString("}\n```\n\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("- complexity is a number in [0,1].\n")
	sb.WriteString("- execution_strategy is PARALLEL, SEQUENTIAL, or MIXED.\n")
	fmt.Fprintf(&sb, "- agent_type must be one of: %s.\n", strings.Join(agentTypes, ", "))
	sb.WriteString("- depends_on lists subtask ids that must finish first; it must not form a cycle.\n")
	sb.WriteString("- For a simple task, return requires_decomposition=false with a single subtask mirroring the task.\n\n")
	sb.WriteString("No text outside the JSON object.")
	return sb.String()
}

// EstimateComplexity asks for a bare complexity score for the
// check_complexity node.
func EstimateComplexity(task string) string {
	return fmt.Sprintf("Rate the complexity of this task on a scale from 0 to 1, "+
		"where 0 is trivial and 1 needs many coordinated steps.\n\nTask: %q\n\n"+
		"Respond with a single JSON object: {\"complexity\": 0.5}. No other text.", task)
}

// Summarize builds the aggregation summary prompt used by the SUMMARIZE
// strategy.
func Summarize(task string, outputs []string) string {
	var sb strings.Builder
	sb.WriteString("## Original task\n\n")
	sb.WriteString(task)
	sb.WriteString("\n\n## Subtask outputs\n\n")
	for i, out := range outputs {
		fmt.Fprintf(&sb, "### Subtask %d\n\n%s\n\n", i+1, out)
	}
	sb.WriteString("## Instructions\n\n")
	sb.WriteString("Write one concise summary of what was accomplished across all subtasks, ")
	sb.WriteString("in plain text, at most a few paragraphs.")
	return sb.String()
}

// SubAgentSystem returns the specialized system prompt for one
// sub-agent type.
func SubAgentSystem(agentType, description string) string {
	return fmt.Sprintf("You are a %s sub-agent: %s "+
		"You work on exactly one subtask inside a sandboxed workspace and you only use the actions you are offered. "+
		"Respond only in the JSON format you are asked for.", agentType, description)
}
