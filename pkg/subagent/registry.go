// Package subagent implements task decomposition, the specialized
// sub-agent registry, the bounded parallel executor, and result
// aggregation.
package subagent

import (
	"github.com/agentic-project/agentic/pkg/workflow"
)

// AgentType names one of the twelve sub-agent specializations.
type AgentType string

const (
	AgentCodeReader AgentType = "code_reader"
	AgentCodeWriter AgentType = "code_writer"
	AgentCodeTester AgentType = "code_tester"

	AgentDocumentSearcher    AgentType = "document_searcher"
	AgentInformationGatherer AgentType = "information_gatherer"
	AgentReportWriter        AgentType = "report_writer"

	AgentDataLoader     AgentType = "data_loader"
	AgentDataAnalyzer   AgentType = "data_analyzer"
	AgentDataVisualizer AgentType = "data_visualizer"

	AgentFileOrganizer AgentType = "file_organizer"
	AgentTaskExecutor  AgentType = "task_executor"
	AgentCommandRunner AgentType = "command_runner"
)

// defaultAgentIterations bounds one sub-agent's execute/reflect loop.
// Sub-agents work on a single subtask, so the budget is much smaller
// than the parent workflow's.
const defaultAgentIterations = 10

// Spec describes one specialization: which domain's actions it draws
// from and which subset it may use.
type Spec struct {
	Type           AgentType
	Family         string
	Description    string
	Domain         workflow.Domain
	AllowedActions []string
	MaxIterations  int
}

// ActionSet returns the spec's curated action enumeration. COMPLETE is
// always included.
func (s Spec) ActionSet() workflow.ActionSet {
	return workflow.ActionSetFor(s.Domain).Restrict(s.AllowedActions...)
}

// Registry holds the fixed set of sub-agent specializations.
type Registry struct {
	specs map[AgentType]Spec
	order []AgentType
}

// NewRegistry builds the registry of all twelve specializations.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[AgentType]Spec)}
	for _, spec := range []Spec{
		{
			Type: AgentCodeReader, Family: "code", Domain: workflow.DomainCoding,
			Description:    "You inspect source code and report findings without modifying anything.",
			AllowedActions: []string{"READ_FILE", "LIST_DIRECTORY", "SEARCH_CODE"},
		},
		{
			Type: AgentCodeWriter, Family: "code", Domain: workflow.DomainCoding,
			Description:    "You create and modify source files to implement the requested change.",
			AllowedActions: []string{"READ_FILE", "WRITE_FILE", "LIST_DIRECTORY", "SEARCH_CODE"},
		},
		{
			Type: AgentCodeTester, Family: "code", Domain: workflow.DomainCoding,
			Description:    "You run tests and report results. You do not modify source files.",
			AllowedActions: []string{"READ_FILE", "LIST_DIRECTORY", "RUN_TESTS", "GIT_STATUS"},
		},
		{
			Type: AgentDocumentSearcher, Family: "research", Domain: workflow.DomainResearch,
			Description:    "You locate relevant documents and passages in the workspace.",
			AllowedActions: []string{"READ_FILE", "LIST_DIRECTORY", "SEARCH_DOCUMENTS"},
		},
		{
			Type: AgentInformationGatherer, Family: "research", Domain: workflow.DomainResearch,
			Description:    "You collect and organize facts from workspace documents.",
			AllowedActions: []string{"READ_FILE", "LIST_DIRECTORY", "SEARCH_DOCUMENTS"},
		},
		{
			Type: AgentReportWriter, Family: "research", Domain: workflow.DomainResearch,
			Description:    "You write clear, structured reports from gathered material.",
			AllowedActions: []string{"READ_FILE", "WRITE_FILE"},
		},
		{
			Type: AgentDataLoader, Family: "data", Domain: workflow.DomainData,
			Description:    "You locate and load data files, reporting their shape and quality.",
			AllowedActions: []string{"READ_FILE", "LIST_DIRECTORY", "SEARCH_DATA"},
		},
		{
			Type: AgentDataAnalyzer, Family: "data", Domain: workflow.DomainData,
			Description:    "You run analysis scripts over loaded data and interpret results.",
			AllowedActions: []string{"READ_FILE", "RUN_SCRIPT"},
		},
		{
			Type: AgentDataVisualizer, Family: "data", Domain: workflow.DomainData,
			Description:    "You produce charts and visual summaries from analyzed data.",
			AllowedActions: []string{"READ_FILE", "WRITE_FILE", "RUN_SCRIPT"},
		},
		{
			Type: AgentFileOrganizer, Family: "general", Domain: workflow.DomainGeneral,
			Description:    "You organize, rename, and tidy files in the workspace.",
			AllowedActions: []string{"READ_FILE", "WRITE_FILE", "LIST_DIRECTORY"},
		},
		{
			Type: AgentTaskExecutor, Family: "general", Domain: workflow.DomainGeneral,
			Description:    "You carry out general subtasks end to end.",
			AllowedActions: []string{"READ_FILE", "WRITE_FILE", "LIST_DIRECTORY", "SEARCH_FILES", "RUN_COMMAND", "GIT_STATUS"},
		},
		{
			Type: AgentCommandRunner, Family: "general", Domain: workflow.DomainGeneral,
			Description:    "You run shell commands and report their output.",
			AllowedActions: []string{"LIST_DIRECTORY", "RUN_COMMAND"},
		},
	} {
		if spec.MaxIterations == 0 {
			spec.MaxIterations = defaultAgentIterations
		}
		r.specs[spec.Type] = spec
		r.order = append(r.order, spec.Type)
	}
	return r
}

// Get returns the spec for an agent type.
func (r *Registry) Get(t AgentType) (Spec, bool) {
	spec, ok := r.specs[t]
	return spec, ok
}

// Types returns all agent type names in registration order.
func (r *Registry) Types() []string {
	names := make([]string, len(r.order))
	for i, t := range r.order {
		names[i] = string(t)
	}
	return names
}
