package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// maxSearchMatches caps search output to keep tool results bounded.
const maxSearchMatches = 200

// Search implements Gateway. pattern is a Go regular expression matched
// per line; glob (doublestar syntax, e.g. "**/*.go") restricts which
// workspace files are scanned.
func (g *LocalGateway) Search(ctx context.Context, pattern, glob string) Result {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Fail(fmt.Sprintf("invalid search pattern %q: %v", pattern, err),
			map[string]any{"pattern": pattern})
	}
	if glob != "" {
		if !doublestar.ValidatePattern(glob) {
			return Fail(fmt.Sprintf("invalid glob pattern %q", glob),
				map[string]any{"pattern": pattern, "glob": glob})
		}
	}

	var matches []SearchMatch
	scanned := 0
	walkErr := filepath.WalkDir(g.workspace, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			// Skip VCS internals.
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(g.workspace, p)
		if err != nil {
			return err
		}
		if glob != "" {
			ok, _ := doublestar.Match(glob, filepath.ToSlash(rel))
			if !ok {
				return nil
			}
		}
		scanned++
		fileMatches, err := scanFile(p, rel, re, maxSearchMatches-len(matches))
		if err != nil {
			// Unreadable files are skipped, not fatal.
			return nil
		}
		matches = append(matches, fileMatches...)
		if len(matches) >= maxSearchMatches {
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return Fail(fmt.Sprintf("search failed: %v", walkErr),
			map[string]any{"pattern": pattern, "glob": glob})
	}

	return OK(matches, map[string]any{
		"pattern":       pattern,
		"glob":          glob,
		"files_scanned": scanned,
		"match_count":   len(matches),
		"truncated":     len(matches) >= maxSearchMatches,
	})
}

// scanFile collects up to limit matching lines from one file.
func scanFile(path, rel string, re *regexp.Regexp, limit int) ([]SearchMatch, error) {
	if limit <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var matches []SearchMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if re.MatchString(line) {
			matches = append(matches, SearchMatch{
				File: rel,
				Line: lineNo,
				Text: strings.TrimRight(line, "\r"),
			})
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, scanner.Err()
}
