// Package conversation maintains a token-budgeted message history for one
// task. The system prompt and the most recent user and assistant messages
// are never trimmed.
package conversation

import (
	"github.com/agentic-project/agentic/pkg/llm"
)

// EstimateTokens approximates token count at 4 characters per token.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// History is an ordered message sequence with a prompt-token budget.
// Owned by a single task; not safe for concurrent use.
type History struct {
	maxPromptTokens int
	messages        []llm.Message
}

// New creates a history bounded to maxPromptTokens. A non-positive budget
// disables trimming.
func New(maxPromptTokens int) *History {
	return &History{maxPromptTokens: maxPromptTokens}
}

// SetSystem installs or replaces the system prompt as the first message.
func (h *History) SetSystem(content string) {
	if len(h.messages) > 0 && h.messages[0].Role == llm.RoleSystem {
		h.messages[0].Content = content
		return
	}
	h.messages = append([]llm.Message{{Role: llm.RoleSystem, Content: content}}, h.messages...)
}

// Add appends a message and trims oldest non-protected messages until the
// history fits the budget.
func (h *History) Add(role, content string) {
	h.messages = append(h.messages, llm.Message{Role: role, Content: content})
	h.trim()
}

// Messages returns a copy of the current message sequence.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of messages.
func (h *History) Len() int { return len(h.messages) }

// TokenCount returns the estimated token total across all messages.
func (h *History) TokenCount() int {
	total := 0
	for _, msg := range h.messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}

// trim drops the oldest trimmable messages while over budget. Protected:
// the leading system message, the last user message, and the last
// assistant message.
func (h *History) trim() {
	if h.maxPromptTokens <= 0 {
		return
	}
	for h.TokenCount() > h.maxPromptTokens {
		idx := h.oldestTrimmable()
		if idx < 0 {
			return
		}
		h.messages = append(h.messages[:idx], h.messages[idx+1:]...)
	}
}

// oldestTrimmable returns the index of the oldest non-protected message,
// or -1 when only protected messages remain.
func (h *History) oldestTrimmable() int {
	lastUser, lastAssistant := -1, -1
	for i := len(h.messages) - 1; i >= 0; i-- {
		switch h.messages[i].Role {
		case llm.RoleUser:
			if lastUser < 0 {
				lastUser = i
			}
		case llm.RoleAssistant:
			if lastAssistant < 0 {
				lastAssistant = i
			}
		}
	}

	for i, msg := range h.messages {
		if i == 0 && msg.Role == llm.RoleSystem {
			continue
		}
		if i == lastUser || i == lastAssistant {
			continue
		}
		return i
	}
	return -1
}
