package workflow

import "strings"

// maxGreetingLen bounds inputs eligible for the greeting shortcut.
const maxGreetingLen = 20

// salutations a short input may open with to count as a greeting.
var salutations = []string{
	"hello", "hi", "hey", "yo", "howdy",
	"good morning", "good afternoon", "good evening",
	"hola", "bonjour", "salut", "hallo", "ciao",
	"hej", "privet", "namaste", "ni hao", "konnichiwa",
	"你好", "こんにちは", "안녕",
}

// IsGreeting reports whether input is a short salutation that should
// bypass classification and get a conversational reply in a single plan
// node visit.
func IsGreeting(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || len(trimmed) > maxGreetingLen {
		return false
	}
	normalized := strings.ToLower(strings.TrimRight(trimmed, "!.?, "))
	for _, s := range salutations {
		if normalized == s || strings.HasPrefix(normalized, s+" ") {
			return true
		}
	}
	return false
}
