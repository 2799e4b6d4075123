package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractThink(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		thought   string
		remainder string
	}{
		{
			name:      "no tags",
			input:     "plain answer",
			thought:   "",
			remainder: "plain answer",
		},
		{
			name:      "single block",
			input:     "<think>let me reason</think>the answer",
			thought:   "let me reason",
			remainder: "the answer",
		},
		{
			name:      "block in the middle",
			input:     "prefix <think>reasoning</think> suffix",
			thought:   "reasoning",
			remainder: "prefix  suffix",
		},
		{
			name:      "unclosed tag swallows the rest",
			input:     "before <think>never closed",
			thought:   "never closed",
			remainder: "before",
		},
		{
			// Greedy stripping: a nested open tag is swallowed up to the
			// last closing tag.
			name:      "nested tags stripped greedily",
			input:     "<think>outer <think>inner</think> tail</think>answer",
			thought:   "outer <think>inner</think> tail",
			remainder: "answer",
		},
		{
			name:      "empty input",
			input:     "",
			thought:   "",
			remainder: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thought, remainder := ExtractThink(tt.input)
			assert.Equal(t, tt.thought, thought)
			assert.Equal(t, tt.remainder, remainder)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "bare object", input: `{"a": 1}`, want: `{"a": 1}`, ok: true},
		{name: "fenced", input: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`, ok: true},
		{name: "prose around", input: `Sure! {"a": {"b": 2}} hope that helps`, want: `{"a": {"b": 2}}`, ok: true},
		{name: "braces in strings", input: `{"a": "{not nested}"}`, want: `{"a": "{not nested}"}`, ok: true},
		{name: "escaped quotes", input: `{"a": "say \"hi\""}`, want: `{"a": "say \"hi\""}`, ok: true},
		{name: "no object", input: "just text", ok: false},
		{name: "unbalanced", input: `{"a": 1`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	action, err := parseAction(`<think>pick one</think>{"action": "READ_FILE", "parameters": {"file_path": "a.txt"}}`)
	assert.NoError(t, err)
	assert.Equal(t, "READ_FILE", action.Action)
	assert.Equal(t, "a.txt", action.Parameters["file_path"])

	_, err = parseAction(`{"parameters": {}}`)
	assert.Error(t, err)

	_, err = parseAction("nope")
	assert.Error(t, err)
}

func TestParsePlan(t *testing.T) {
	plan, err := parsePlan(`{"approach": "direct", "steps": ["a"], "estimated_iterations": 1}`)
	assert.NoError(t, err)
	assert.Equal(t, []string{"a"}, plan.Steps)

	_, err = parsePlan(`{"approach": "direct", "steps": []}`)
	assert.Error(t, err)
}
