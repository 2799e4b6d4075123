package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalGateway implements Gateway against the local filesystem, scoped to
// a workspace directory. All relative paths resolve inside the workspace;
// paths escaping it are rejected.
type LocalGateway struct {
	workspace string
}

var _ Gateway = (*LocalGateway)(nil)

// NewLocalGateway creates a gateway rooted at workspace. The directory is
// created if missing.
func NewLocalGateway(workspace string) (*LocalGateway, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory %s: %w", abs, err)
	}
	return &LocalGateway{workspace: abs}, nil
}

// Workspace returns the absolute workspace root.
func (g *LocalGateway) Workspace() string { return g.workspace }

// resolve maps a task-relative path to an absolute path inside the
// workspace, rejecting escapes.
func (g *LocalGateway) resolve(path string) (string, error) {
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.workspace, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(g.workspace, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}
	return p, nil
}

// ReadFile implements Gateway.
func (g *LocalGateway) ReadFile(_ context.Context, path string) Result {
	abs, err := g.resolve(path)
	if err != nil {
		return Fail(err.Error(), map[string]any{"path": path})
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return Fail(fmt.Sprintf("failed to read file %s: %v", abs, err),
			map[string]any{"path": abs})
	}

	content := string(data)
	return OK(content, map[string]any{
		"path":  abs,
		"bytes": len(data),
		"lines": strings.Count(content, "\n") + 1,
	})
}

// WriteFile implements Gateway. Directory-creation failure and write
// failure are reported with distinct error text naming the failed step.
func (g *LocalGateway) WriteFile(_ context.Context, path, content string) Result {
	abs, err := g.resolve(path)
	if err != nil {
		return Fail(err.Error(), map[string]any{"path": path})
	}

	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Fail(fmt.Sprintf("failed to create directory %s: %v", dir, err),
			map[string]any{"path": abs, "step": "mkdir"})
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return Fail(fmt.Sprintf("failed to write file %s: %v", abs, err),
			map[string]any{"path": abs, "step": "write"})
	}

	return OK(fmt.Sprintf("wrote %d bytes to %s", len(content), abs), map[string]any{
		"path":  abs,
		"bytes": len(content),
	})
}

// ListDirectory implements Gateway.
func (g *LocalGateway) ListDirectory(_ context.Context, path string, recursive bool) Result {
	abs, err := g.resolve(path)
	if err != nil {
		return Fail(err.Error(), map[string]any{"path": path})
	}

	var entries []DirEntry
	if recursive {
		err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if p == abs {
				return nil
			}
			rel, relErr := filepath.Rel(abs, p)
			if relErr != nil {
				return relErr
			}
			entries = append(entries, dirEntry(rel, d))
			return nil
		})
	} else {
		var list []fs.DirEntry
		list, err = os.ReadDir(abs)
		if err == nil {
			for _, d := range list {
				entries = append(entries, dirEntry(d.Name(), d))
			}
		}
	}
	if err != nil {
		return Fail(fmt.Sprintf("failed to list directory %s: %v", abs, err),
			map[string]any{"path": abs})
	}

	return OK(entries, map[string]any{
		"path":      abs,
		"count":     len(entries),
		"recursive": recursive,
	})
}

func dirEntry(name string, d fs.DirEntry) DirEntry {
	entry := DirEntry{Name: name, Type: "file"}
	if d.IsDir() {
		entry.Type = "dir"
		return entry
	}
	if info, err := d.Info(); err == nil {
		entry.Size = info.Size()
	}
	return entry
}
