package workflow

import (
	"context"
	"time"

	"github.com/agentic-project/agentic/pkg/tools"
)

// ActionComplete is the termination action shared by every workflow.
const ActionComplete = "COMPLETE"

// ParamSpec describes one parameter of an action, used to render the
// action's schema into the execute prompt.
type ParamSpec struct {
	Name        string
	Type        string // "string" or "boolean"
	Required    bool
	Description string
}

// ActionSpec is one action a workflow recognizes. The prompt listing and
// the dispatch table both derive from the same spec, so an action the
// LLM is told about is always dispatchable and vice versa.
type ActionSpec struct {
	Name        string
	Description string
	Params      []ParamSpec
	// Tool is the gateway capability name handed to the safety checker.
	// Empty for COMPLETE.
	Tool string
	// Run invokes the capability. Nil for COMPLETE.
	Run func(ctx context.Context, gw tools.Gateway, params map[string]any, toolTimeout time.Duration) tools.Result
}

// ActionSet is the full action enumeration of one workflow domain.
type ActionSet struct {
	Domain  Domain
	Actions []ActionSpec
}

// Lookup returns the spec for an action name, matching case-sensitively
// (action names are uppercase by contract).
func (s ActionSet) Lookup(name string) (ActionSpec, bool) {
	for _, a := range s.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionSpec{}, false
}

// Names returns the action names in declaration order.
func (s ActionSet) Names() []string {
	names := make([]string, len(s.Actions))
	for i, a := range s.Actions {
		names[i] = a.Name
	}
	return names
}

// Restrict returns a copy of the set holding only the named actions, in
// declaration order. COMPLETE is always kept so a restricted agent can
// still terminate.
func (s ActionSet) Restrict(names ...string) ActionSet {
	keep := make(map[string]struct{}, len(names)+1)
	keep[ActionComplete] = struct{}{}
	for _, n := range names {
		keep[n] = struct{}{}
	}
	restricted := ActionSet{Domain: s.Domain}
	for _, a := range s.Actions {
		if _, ok := keep[a.Name]; ok {
			restricted.Actions = append(restricted.Actions, a)
		}
	}
	return restricted
}

// ActionSetFor returns the action enumeration of a domain. Unknown
// domains get the general set.
func ActionSetFor(domain Domain) ActionSet {
	switch domain {
	case DomainCoding:
		return codingActions
	case DomainResearch:
		return researchActions
	case DomainData:
		return dataActions
	default:
		return generalActions
	}
}

func stringParam(params map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func boolParam(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

var (
	completeSpec = ActionSpec{
		Name:        ActionComplete,
		Description: "Finish the task. Use once the goal is met.",
		Params: []ParamSpec{
			{Name: "summary", Type: "string", Required: true, Description: "Final answer for the user"},
		},
	}

	readFileSpec = ActionSpec{
		Name:        "READ_FILE",
		Description: "Read a file from the workspace.",
		Params: []ParamSpec{
			{Name: "file_path", Type: "string", Required: true, Description: "Path relative to the workspace"},
		},
		Tool: "read_file",
		Run: func(ctx context.Context, gw tools.Gateway, params map[string]any, _ time.Duration) tools.Result {
			return gw.ReadFile(ctx, stringParam(params, "file_path", "path"))
		},
	}

	writeFileSpec = ActionSpec{
		Name:        "WRITE_FILE",
		Description: "Create or overwrite a file. Parent directories are created.",
		Params: []ParamSpec{
			{Name: "file_path", Type: "string", Required: true, Description: "Path relative to the workspace"},
			{Name: "content", Type: "string", Required: true, Description: "Full file content"},
		},
		Tool: "write_file",
		Run: func(ctx context.Context, gw tools.Gateway, params map[string]any, _ time.Duration) tools.Result {
			return gw.WriteFile(ctx, stringParam(params, "file_path", "path"), stringParam(params, "content"))
		},
	}

	listDirectorySpec = ActionSpec{
		Name:        "LIST_DIRECTORY",
		Description: "List entries of a workspace directory.",
		Params: []ParamSpec{
			{Name: "path", Type: "string", Required: false, Description: "Directory path, defaults to the workspace root"},
			{Name: "recursive", Type: "boolean", Required: false, Description: "Walk subdirectories"},
		},
		Tool: "list_directory",
		Run: func(ctx context.Context, gw tools.Gateway, params map[string]any, _ time.Duration) tools.Result {
			path := stringParam(params, "path", "file_path")
			if path == "" {
				path = "."
			}
			return gw.ListDirectory(ctx, path, boolParam(params, "recursive"))
		},
	}

	gitStatusSpec = ActionSpec{
		Name:        "GIT_STATUS",
		Description: "Show branch and working tree status of a repository.",
		Params: []ParamSpec{
			{Name: "repo", Type: "string", Required: false, Description: "Repository path, defaults to the workspace root"},
		},
		Tool: "git_status",
		Run: func(ctx context.Context, gw tools.Gateway, params map[string]any, _ time.Duration) tools.Result {
			return gw.GitStatus(ctx, stringParam(params, "repo", "path"))
		},
	}
)

func searchSpec(name, description string) ActionSpec {
	return ActionSpec{
		Name:        name,
		Description: description,
		Params: []ParamSpec{
			{Name: "pattern", Type: "string", Required: true, Description: "Regular expression matched per line"},
			{Name: "glob", Type: "string", Required: false, Description: "Glob restricting scanned files, e.g. **/*.go"},
		},
		Tool: "search",
		Run: func(ctx context.Context, gw tools.Gateway, params map[string]any, _ time.Duration) tools.Result {
			return gw.Search(ctx, stringParam(params, "pattern"), stringParam(params, "glob"))
		},
	}
}

func commandSpec(name, description, paramDescription string) ActionSpec {
	return ActionSpec{
		Name:        name,
		Description: description,
		Params: []ParamSpec{
			{Name: "command", Type: "string", Required: true, Description: paramDescription},
			{Name: "cwd", Type: "string", Required: false, Description: "Working directory, defaults to the workspace root"},
		},
		Tool: "run_command",
		Run: func(ctx context.Context, gw tools.Gateway, params map[string]any, toolTimeout time.Duration) tools.Result {
			return gw.RunCommand(ctx, stringParam(params, "command", "cmd"), stringParam(params, "cwd"), toolTimeout)
		},
	}
}

var codingActions = ActionSet{
	Domain: DomainCoding,
	Actions: []ActionSpec{
		readFileSpec,
		writeFileSpec,
		listDirectorySpec,
		searchSpec("SEARCH_CODE", "Search workspace source files for a pattern."),
		commandSpec("RUN_TESTS", "Run the project's test command.", "Test command, e.g. pytest or go test ./..."),
		gitStatusSpec,
		completeSpec,
	},
}

var researchActions = ActionSet{
	Domain: DomainResearch,
	Actions: []ActionSpec{
		readFileSpec,
		writeFileSpec,
		listDirectorySpec,
		searchSpec("SEARCH_DOCUMENTS", "Search workspace documents for a pattern."),
		completeSpec,
	},
}

var dataActions = ActionSet{
	Domain: DomainData,
	Actions: []ActionSpec{
		readFileSpec,
		writeFileSpec,
		listDirectorySpec,
		searchSpec("SEARCH_DATA", "Search data files for a pattern."),
		commandSpec("RUN_SCRIPT", "Run an analysis script or command.", "Command to run, e.g. python analyze.py"),
		completeSpec,
	},
}

var generalActions = ActionSet{
	Domain: DomainGeneral,
	Actions: []ActionSpec{
		readFileSpec,
		writeFileSpec,
		listDirectorySpec,
		searchSpec("SEARCH_FILES", "Search workspace files for a pattern."),
		commandSpec("RUN_COMMAND", "Run a shell command in the workspace.", "Shell command to run"),
		gitStatusSpec,
		completeSpec,
	},
}
