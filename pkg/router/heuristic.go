package router

import (
	"strings"

	"github.com/agentic-project/agentic/pkg/workflow"
)

var domainKeywords = map[workflow.Domain][]string{
	workflow.DomainCoding: {
		"code", "bug", "fix", "test", "function", "class", "refactor",
		"implement", "compile", "script", ".py", ".go", ".js", "api",
		"debug", "repository", "git",
	},
	workflow.DomainResearch: {
		"research", "summarize", "summary", "find out", "document",
		"compare", "explain", "investigate", "review", "read about",
		"sources", "article",
	},
	workflow.DomainData: {
		"data", "csv", "dataset", "analyze", "analysis", "plot",
		"chart", "statistics", "aggregate", "pandas", "sql", "metrics",
	},
}

// complexKeywords hint that a task spans multiple coordinated pieces.
var complexKeywords = []string{
	"full stack", "end to end", "entire", "complete system",
	"multiple", "pipeline", "architecture", "and then",
}

// scoredDomains fixes the scoring order so ties always resolve to the
// same domain.
var scoredDomains = []workflow.Domain{
	workflow.DomainCoding,
	workflow.DomainResearch,
	workflow.DomainData,
}

// classifyHeuristic is the deterministic fallback classifier. It scores
// keyword hits per domain and produces the same shape as the LLM path.
func classifyHeuristic(task string) Classification {
	lowered := strings.ToLower(task)

	best := workflow.DomainGeneral
	bestScore := 0
	for _, domain := range scoredDomains {
		score := 0
		for _, kw := range domainKeywords[domain] {
			if strings.Contains(lowered, kw) {
				score++
			}
		}
		if score > bestScore {
			best = domain
			bestScore = score
		}
	}

	complexity := ComplexityLow
	requiresSubAgents := false
	complexHits := 0
	for _, kw := range complexKeywords {
		if strings.Contains(lowered, kw) {
			complexHits++
		}
	}
	switch {
	case complexHits >= 2 || (complexHits >= 1 && len(task) > 120):
		complexity = ComplexityHigh
		requiresSubAgents = true
	case complexHits >= 1 || len(task) > 200:
		complexity = ComplexityMedium
	}

	confidence := 0.3
	if bestScore > 0 {
		// Capped below the LLM path so heuristic picks stay recognizable.
		confidence = 0.5 + 0.1*float64(min(bestScore, 4))
	}

	return Classification{
		Domain:              best,
		Confidence:          confidence,
		Reasoning:           "keyword heuristic",
		RequiresSubAgents:   requiresSubAgents,
		EstimatedComplexity: complexity,
	}
}
