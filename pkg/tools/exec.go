package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// defaultCommandTimeout applies when the caller passes no timeout.
const defaultCommandTimeout = 30 * time.Second

// outputLimit caps captured command output.
const outputLimit = 64 * 1024

// RunCommand implements Gateway. The command runs through `sh -c` inside
// the workspace (or cwd when given) with a hard timeout.
func (g *LocalGateway) RunCommand(ctx context.Context, cmd, cwd string, timeout time.Duration) Result {
	if strings.TrimSpace(cmd) == "" {
		return Fail("empty command", map[string]any{"command": cmd})
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	dir := g.workspace
	if cwd != "" {
		resolved, err := g.resolve(cwd)
		if err != nil {
			return Fail(err.Error(), map[string]any{"command": cmd, "cwd": cwd})
		}
		dir = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := exec.CommandContext(runCtx, "sh", "-c", cmd)
	command.Dir = dir

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	start := time.Now()
	err := command.Run()
	elapsed := time.Since(start)

	exitCode := -1
	if command.ProcessState != nil {
		exitCode = command.ProcessState.ExitCode()
	}
	metadata := map[string]any{
		"command":     cmd,
		"cwd":         dir,
		"duration_ms": elapsed.Milliseconds(),
		"exit_code":   exitCode,
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return Fail(fmt.Sprintf("command timed out after %s: %s", timeout, cmd), metadata)
	}
	if err != nil {
		return Fail(fmt.Sprintf("command failed: %v\n%s", err, truncate(stderr.String())), metadata)
	}

	return OK(map[string]any{
		"stdout": truncate(stdout.String()),
		"stderr": truncate(stderr.String()),
	}, metadata)
}

// GitStatus implements Gateway. Parses `git status --porcelain=v1 -b`.
func (g *LocalGateway) GitStatus(ctx context.Context, repo string) Result {
	dir := g.workspace
	if repo != "" {
		resolved, err := g.resolve(repo)
		if err != nil {
			return Fail(err.Error(), map[string]any{"repo": repo})
		}
		dir = resolved
	}

	runCtx, cancel := context.WithTimeout(ctx, defaultCommandTimeout)
	defer cancel()

	command := exec.CommandContext(runCtx, "git", "status", "--porcelain=v1", "-b")
	command.Dir = dir

	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return Fail(fmt.Sprintf("git status failed in %s: %v\n%s", dir, err, truncate(stderr.String())),
			map[string]any{"repo": dir})
	}

	branch := ""
	var entries []map[string]string
	for _, line := range strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "## ") {
			branch = strings.TrimPrefix(line, "## ")
			continue
		}
		if len(line) > 3 {
			entries = append(entries, map[string]string{
				"status": strings.TrimSpace(line[:2]),
				"path":   line[3:],
			})
		}
	}

	return OK(map[string]any{
		"branch":  branch,
		"clean":   len(entries) == 0,
		"entries": entries,
	}, map[string]any{
		"repo":        dir,
		"entry_count": len(entries),
	})
}

func truncate(s string) string {
	if len(s) <= outputLimit {
		return s
	}
	return s[:outputLimit] + "\n... (output truncated)"
}
