// Package safety validates tool invocations against the configured
// command and path policy before the workflow engine executes them.
package safety

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentic-project/agentic/pkg/config"
)

// ErrDenied marks an invocation rejected by policy.
var ErrDenied = errors.New("safety: invocation denied")

// Checker enforces the safety policy for tool invocations. A zero-value
// policy allows everything except dangerous patterns, so Checker should
// always be built from config (which carries non-empty defaults).
type Checker struct {
	allowlist map[string]struct{}
	denylist  map[string]struct{}
	protected []string
	dangerous []string
}

// NewChecker builds a Checker from the safety configuration.
func NewChecker(cfg config.SafetyConfig) *Checker {
	c := &Checker{
		allowlist: make(map[string]struct{}, len(cfg.CommandAllowlist)),
		denylist:  make(map[string]struct{}, len(cfg.CommandDenylist)),
		protected: cfg.ProtectedPatterns,
		dangerous: cfg.DangerousPatterns,
	}
	for _, cmd := range cfg.CommandAllowlist {
		c.allowlist[cmd] = struct{}{}
	}
	for _, cmd := range cfg.CommandDenylist {
		c.denylist[cmd] = struct{}{}
	}
	return c
}

// Validate checks one tool invocation. It returns (true, "") when the
// invocation may proceed, or (false, reason) when policy rejects it.
func (c *Checker) Validate(tool string, params map[string]any) (bool, string) {
	switch tool {
	case "run_command", "run_tests":
		cmd, _ := params["command"].(string)
		if cmd == "" {
			cmd, _ = params["cmd"].(string)
		}
		return c.validateCommand(cmd)
	case "write_file":
		path, _ := params["file_path"].(string)
		if path == "" {
			path, _ = params["path"].(string)
		}
		return c.validatePath(path)
	default:
		return true, ""
	}
}

// validateCommand applies dangerous-pattern, denylist, and allowlist
// checks. Compound commands (pipes, &&, ;) are split and every segment's
// executable is checked.
func (c *Checker) validateCommand(cmd string) (bool, string) {
	trimmed := strings.TrimSpace(cmd)
	if trimmed == "" {
		return false, "empty command"
	}

	lowered := strings.ToLower(trimmed)
	for _, pattern := range c.dangerous {
		if strings.Contains(lowered, strings.ToLower(pattern)) {
			return false, fmt.Sprintf("command matches dangerous pattern %q", pattern)
		}
	}

	for _, exe := range commandExecutables(trimmed) {
		if _, denied := c.denylist[exe]; denied {
			return false, fmt.Sprintf("command %q is denied by policy", exe)
		}
		if len(c.allowlist) > 0 {
			if _, allowed := c.allowlist[exe]; !allowed {
				return false, fmt.Sprintf("command %q is not in the allowlist", exe)
			}
		}
	}
	return true, ""
}

// validatePath rejects writes that target protected locations.
func (c *Checker) validatePath(path string) (bool, string) {
	if path == "" {
		return false, "empty path"
	}
	slashed := filepath.ToSlash(path)
	for _, pattern := range c.protected {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return false, fmt.Sprintf("path %s matches protected pattern %q", path, pattern)
		}
	}
	return true, ""
}

// commandExecutables returns the leading token of every segment of a
// possibly compound shell command.
func commandExecutables(cmd string) []string {
	segments := strings.FieldsFunc(cmd, func(r rune) bool {
		return r == '|' || r == ';' || r == '&'
	})
	var exes []string
	for _, segment := range segments {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		exe := filepath.Base(fields[0])
		// Skip env assignments like FOO=bar before the executable.
		for i := 0; strings.Contains(exe, "=") && i+1 < len(fields); i++ {
			exe = filepath.Base(fields[i+1])
		}
		exes = append(exes, exe)
	}
	return exes
}
