package prompt

import (
	"fmt"
	"strings"
)

// Classify builds the few-shot intent classification prompt. The reply
// shape is pinned by a JSON schema on the request as well; the examples
// here steer the content.
func Classify(task string) string {
	var sb strings.Builder
	sb.WriteString("Classify the following task into exactly one domain: ")
	sb.WriteString("coding, research, data_analysis, or general.\n\n")
	sb.WriteString("Respond with a single JSON object:\n")
	sb.WriteString("{\"domain\": \"...\", \"confidence\": 0.0, \"reasoning\": \"...\", ")
	sb.WriteString("\"requires_sub_agents\": false, \"estimated_complexity\": \"low|medium|high\"}\n\n")
	sb.WriteString("Examples:\n")
	sb.WriteString(`Task: "Fix the failing unit test in auth_test.go"` + "\n")
	sb.WriteString(`{"domain": "coding", "confidence": 0.95, "reasoning": "modifies source code", "requires_sub_agents": false, "estimated_complexity": "low"}` + "\n\n")
	sb.WriteString(`Task: "Summarize what these three RFC documents say about retries"` + "\n")
	sb.WriteString(`{"domain": "research", "confidence": 0.9, "reasoning": "reads and synthesizes documents", "requires_sub_agents": false, "estimated_complexity": "medium"}` + "\n\n")
	sb.WriteString(`Task: "Load sales.csv and plot monthly revenue"` + "\n")
	sb.WriteString(`{"domain": "data_analysis", "confidence": 0.92, "reasoning": "loads and analyzes a dataset", "requires_sub_agents": false, "estimated_complexity": "medium"}` + "\n\n")
	sb.WriteString(`Task: "Build a full stack app with auth, API and frontend"` + "\n")
	sb.WriteString(`{"domain": "coding", "confidence": 0.9, "reasoning": "large multi-part build", "requires_sub_agents": true, "estimated_complexity": "high"}` + "\n\n")
	fmt.Fprintf(&sb, "Task: %q\n", task)
	sb.WriteString("No text outside the JSON object.")
	return sb.String()
}
