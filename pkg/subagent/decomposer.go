package subagent

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

// Strategy orders subtask execution.
type Strategy string

const (
	StrategyParallel   Strategy = "PARALLEL"
	StrategySequential Strategy = "SEQUENTIAL"
	StrategyMixed      Strategy = "MIXED"
)

// Subtask is one unit of a decomposed task. DependsOn references other
// subtask IDs and must form a DAG.
type Subtask struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AgentType   AgentType `json:"agent_type"`
	Priority    int       `json:"priority"`
	DependsOn   []string  `json:"depends_on"`
}

// Decomposition is the decomposer's full answer.
type Decomposition struct {
	RequiresDecomposition bool      `json:"requires_decomposition"`
	Complexity            float64   `json:"complexity"`
	ExecutionStrategy     Strategy  `json:"execution_strategy"`
	Subtasks              []Subtask `json:"subtasks"`
}

// decompositionSchema pins the decomposer's reply shape. Sent as the
// structured-output schema and used to validate the parsed reply;
// semantic checks (known agent types, DAG-ness) happen in validate.
const decompositionSchema = `{
	"type": "object",
	"required": ["requires_decomposition", "complexity", "execution_strategy", "subtasks"],
	"properties": {
		"requires_decomposition": {"type": "boolean"},
		"complexity": {"type": "number", "minimum": 0, "maximum": 1},
		"execution_strategy": {"type": "string", "enum": ["PARALLEL", "SEQUENTIAL", "MIXED"]},
		"subtasks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "description", "agent_type"],
				"properties": {
					"id": {"type": "string"},
					"description": {"type": "string"},
					"agent_type": {"type": "string"},
					"priority": {"type": "integer"},
					"depends_on": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

var compiledDecompositionSchema = jsonschema.MustCompileString("decomposition.json", decompositionSchema)

// Decomposer splits complex tasks into dependency-aware subtasks.
type Decomposer struct {
	llm      llm.Chat
	registry *Registry
}

// NewDecomposer creates a Decomposer.
func NewDecomposer(chat llm.Chat, registry *Registry) *Decomposer {
	return &Decomposer{llm: chat, registry: registry}
}

// Decompose asks the LLM to split the task. Any LLM failure or invalid
// answer degrades to a single subtask mirroring the original task, so
// the caller always gets something runnable.
func (d *Decomposer) Decompose(ctx context.Context, task string) Decomposition {
	response, err := d.llm.ChatCompletion(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You split tasks into subtasks for specialized agents. Reply with JSON only."},
			{Role: llm.RoleUser, Content: prompt.Decompose(task, d.registry.Types())},
		},
		Schema: &llm.ResponseSchema{
			Name:   "decomposition",
			Schema: json.RawMessage(decompositionSchema),
		},
	})
	if err != nil {
		slog.Warn("Decomposition LLM call failed, using single-subtask fallback", "error", err)
		return fallbackDecomposition(task)
	}

	_, cleaned := workflow.ExtractThink(response)
	var parsed any
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		slog.Warn("Decomposition not parseable, using single-subtask fallback", "error", err)
		return fallbackDecomposition(task)
	}
	if err := compiledDecompositionSchema.Validate(parsed); err != nil {
		slog.Warn("Decomposition violates schema, using single-subtask fallback", "error", err)
		return fallbackDecomposition(task)
	}
	var decomposition Decomposition
	if err := json.Unmarshal([]byte(cleaned), &decomposition); err != nil {
		slog.Warn("Decomposition not parseable, using single-subtask fallback", "error", err)
		return fallbackDecomposition(task)
	}
	if err := d.validate(decomposition); err != nil {
		slog.Warn("Decomposition invalid, using single-subtask fallback", "error", err)
		return fallbackDecomposition(task)
	}
	return decomposition
}

// validate rejects unknown agent types, dangling dependencies, cycles,
// and unusable strategies.
func (d *Decomposer) validate(dec Decomposition) error {
	if len(dec.Subtasks) == 0 {
		return fmt.Errorf("no subtasks")
	}
	switch dec.ExecutionStrategy {
	case StrategyParallel, StrategySequential, StrategyMixed:
	default:
		return fmt.Errorf("unknown execution strategy %q", dec.ExecutionStrategy)
	}
	ids := make(map[string]struct{}, len(dec.Subtasks))
	for _, st := range dec.Subtasks {
		if st.ID == "" {
			return fmt.Errorf("subtask with empty id")
		}
		if _, dup := ids[st.ID]; dup {
			return fmt.Errorf("duplicate subtask id %q", st.ID)
		}
		ids[st.ID] = struct{}{}
		if _, ok := d.registry.Get(st.AgentType); !ok {
			return fmt.Errorf("unknown agent type %q in subtask %q", st.AgentType, st.ID)
		}
	}
	for _, st := range dec.Subtasks {
		for _, dep := range st.DependsOn {
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("subtask %q depends on unknown id %q", st.ID, dep)
			}
		}
	}
	if _, err := TopologicalLevels(dec.Subtasks); err != nil {
		return err
	}
	return nil
}

func fallbackDecomposition(task string) Decomposition {
	return Decomposition{
		RequiresDecomposition: false,
		Complexity:            0.3,
		ExecutionStrategy:     StrategySequential,
		Subtasks: []Subtask{
			{ID: "t1", Description: task, AgentType: AgentTaskExecutor, Priority: 1},
		},
	}
}

// TopologicalLevels groups subtasks into dependency levels: every
// subtask in level N depends only on subtasks in levels < N. A cycle
// returns an error.
func TopologicalLevels(subtasks []Subtask) ([][]Subtask, error) {
	remaining := make(map[string]Subtask, len(subtasks))
	order := make([]string, 0, len(subtasks))
	for _, st := range subtasks {
		remaining[st.ID] = st
		order = append(order, st.ID)
	}

	done := make(map[string]struct{}, len(subtasks))
	var levels [][]Subtask
	for len(remaining) > 0 {
		var level []Subtask
		for _, id := range order {
			st, ok := remaining[id]
			if !ok {
				continue
			}
			ready := true
			for _, dep := range st.DependsOn {
				if _, finished := done[dep]; !finished {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, st)
			}
		}
		if len(level) == 0 {
			return nil, fmt.Errorf("dependency cycle among %d remaining subtasks", len(remaining))
		}
		for _, st := range level {
			done[st.ID] = struct{}{}
			delete(remaining, st.ID)
		}
		levels = append(levels, level)
	}
	return levels, nil
}
