package workflow

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// ExtractThink splits chain-of-thought blocks out of an LLM response.
// It returns the concatenated reasoning and the remaining text with the
// tags removed. Stripping is greedy: a nested or unbalanced <think>
// swallows everything up to the last closing tag, and an unclosed
// <think> swallows the rest of the text.
func ExtractThink(text string) (thought, remainder string) {
	var thoughts []string
	var out strings.Builder

	rest := text
	for {
		start := strings.Index(rest, thinkOpen)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		rest = rest[start+len(thinkOpen):]

		end := strings.LastIndex(rest, thinkClose)
		if end < 0 {
			thoughts = append(thoughts, strings.TrimSpace(rest))
			break
		}
		thoughts = append(thoughts, strings.TrimSpace(rest[:end]))
		rest = rest[end+len(thinkClose):]
	}

	return strings.Join(thoughts, "\n"), strings.TrimSpace(out.String())
}
