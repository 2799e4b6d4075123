package tools

import (
	"context"
	"errors"
	"time"
)

// ErrOutsideWorkspace marks a path that resolves outside the task
// workspace.
var ErrOutsideWorkspace = errors.New("tools: path escapes workspace")

// DirEntry is one entry in a ListDirectory result.
type DirEntry struct {
	Name string `json:"name"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size,omitempty"`
}

// SearchMatch is one line matching a Search pattern.
type SearchMatch struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Gateway is the capability interface the workflow engine executes
// through. Implementations never return an error value: failures are
// reported inside the Result so they flow into the task's tool_calls
// record uniformly.
type Gateway interface {
	// ReadFile returns file content. Metadata: path (absolute resolved),
	// bytes, lines.
	ReadFile(ctx context.Context, path string) Result
	// WriteFile creates parent directories and writes content. Directory
	// creation failures and write failures carry distinct error text.
	WriteFile(ctx context.Context, path, content string) Result
	// ListDirectory lists entries, optionally recursively.
	ListDirectory(ctx context.Context, path string, recursive bool) Result
	// Search scans workspace files for a regular expression, optionally
	// restricted by a doublestar glob.
	Search(ctx context.Context, pattern, glob string) Result
	// RunCommand executes a shell command inside the workspace with a
	// timeout. Metadata: command, exit_code, duration_ms.
	RunCommand(ctx context.Context, cmd, cwd string, timeout time.Duration) Result
	// GitStatus reports branch and working-tree state of a repository.
	GitStatus(ctx context.Context, repo string) Result
}
