// Package router classifies incoming tasks into one of the four
// workflow domains.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentic-project/agentic/pkg/llm"
	"github.com/agentic-project/agentic/pkg/prompt"
	"github.com/agentic-project/agentic/pkg/workflow"
)

// Complexity buckets produced by classification.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// Classification is the routing decision for one task. It serializes
// cleanly so it can be logged, persisted, and attached to events.
type Classification struct {
	Domain              workflow.Domain `json:"domain"`
	Confidence          float64         `json:"confidence"`
	Reasoning           string          `json:"reasoning"`
	RequiresSubAgents   bool            `json:"requires_sub_agents"`
	EstimatedComplexity string          `json:"estimated_complexity"`
}

// classificationSchema pins the LLM's reply shape. It is sent as the
// structured-output schema and used to validate the parsed reply.
const classificationSchema = `{
	"type": "object",
	"required": ["domain", "confidence", "reasoning", "requires_sub_agents", "estimated_complexity"],
	"additionalProperties": false,
	"properties": {
		"domain": {"type": "string", "enum": ["coding", "research", "data_analysis", "general"]},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reasoning": {"type": "string"},
		"requires_sub_agents": {"type": "boolean"},
		"estimated_complexity": {"type": "string", "enum": ["low", "medium", "high"]}
	}
}`

var compiledSchema = jsonschema.MustCompileString("classification.json", classificationSchema)

// Router classifies tasks, preferring the LLM and degrading to a
// keyword heuristic when the LLM reply is unusable or unsure.
type Router struct {
	llm       llm.Chat
	threshold float64
}

// NewRouter creates a Router. Classifications below the confidence
// threshold fall back to the heuristic.
func NewRouter(chat llm.Chat, confidenceThreshold float64) *Router {
	return &Router{llm: chat, threshold: confidenceThreshold}
}

// Classify routes a task. It never fails: greeting-like inputs bypass
// classification entirely, and every LLM problem degrades to the
// keyword heuristic.
func (r *Router) Classify(ctx context.Context, task string) Classification {
	if workflow.IsGreeting(task) {
		return Classification{
			Domain:              workflow.DomainGeneral,
			Confidence:          1.0,
			Reasoning:           "greeting shortcut",
			RequiresSubAgents:   false,
			EstimatedComplexity: ComplexityLow,
		}
	}

	classification, err := r.classifyLLM(ctx, task)
	if err != nil {
		slog.Warn("LLM classification unusable, using heuristic", "error", err)
		return classifyHeuristic(task)
	}
	if classification.Confidence < r.threshold {
		slog.Info("Classification below confidence threshold, using heuristic",
			"confidence", classification.Confidence, "threshold", r.threshold)
		return classifyHeuristic(task)
	}
	return classification
}

func (r *Router) classifyLLM(ctx context.Context, task string) (Classification, error) {
	response, err := r.llm.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You classify tasks for an agent runtime. Reply with JSON only."},
			{Role: llm.RoleUser, Content: prompt.Classify(task)},
		},
		Schema: &llm.ResponseSchema{
			Name:   "task_classification",
			Schema: json.RawMessage(classificationSchema),
		},
	})
	if err != nil {
		return Classification{}, err
	}

	_, cleaned := workflow.ExtractThink(response)

	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return Classification{}, fmt.Errorf("classification is not valid JSON: %w", err)
	}
	if err := compiledSchema.Validate(parsed); err != nil {
		return Classification{}, fmt.Errorf("classification failed schema validation: %w", err)
	}

	var classification Classification
	if err := json.Unmarshal([]byte(cleaned), &classification); err != nil {
		return Classification{}, err
	}
	return classification, nil
}
