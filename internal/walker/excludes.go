package walker

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes are always applied, ahead of any custom patterns.
var DefaultExcludes = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	"vendor",
	"__pycache__",
	".build",
	"build",
	"dist",
	"DerivedData",
	"Pods",
	"target",
	".venv",
	"venv",
	"*.min.js",
	"*.generated.*",
}

const excludeTemplate = `# Exclude patterns for the code index.
# One pattern per line; lines starting with # are ignored.
# Built-in defaults (node_modules, build, dist, vendor, ...) always apply.
#
#   name          skips any file or directory with that exact name
#   *.snap        '*' wildcard, matched anywhere in the relative path
#   docs/api      substring of the project-relative path
#   **/gen/**     glob over the whole relative path
#
`

// LoadExcludes reads custom patterns from path, creating the file from a
// commented template on first use, and returns defaults followed by the
// custom patterns with duplicates removed.
func LoadExcludes(path string) ([]string, error) {
	custom, err := readPatterns(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return DefaultExcludes, err
		}
		if err := os.WriteFile(path, []byte(excludeTemplate), 0o644); err != nil {
			return MergeExcludes(DefaultExcludes, nil), err
		}
		return MergeExcludes(DefaultExcludes, nil), nil
	}
	if err != nil {
		return MergeExcludes(DefaultExcludes, nil), err
	}
	return MergeExcludes(DefaultExcludes, custom), nil
}

func readPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

// MergeExcludes concatenates defaults and custom, keeping the first
// occurrence of each pattern.
func MergeExcludes(defaults, custom []string) []string {
	seen := make(map[string]bool, len(defaults)+len(custom))
	out := make([]string, 0, len(defaults)+len(custom))
	for _, list := range [][]string{defaults, custom} {
		for _, p := range list {
			p = strings.TrimSpace(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// Excluder decides whether a project-relative path is excluded.
type Excluder struct {
	patterns []string
}

// NewExcluder builds an Excluder from patterns in priority order.
func NewExcluder(patterns []string) *Excluder {
	return &Excluder{patterns: patterns}
}

// Match reports whether relPath (slash-separated, relative to the project
// root) is excluded, and by which pattern.
func (e *Excluder) Match(relPath string) (string, bool) {
	if e == nil {
		return "", false
	}
	relPath = filepath.ToSlash(relPath)
	for _, p := range e.patterns {
		if matchPattern(p, relPath) {
			return p, true
		}
	}
	return "", false
}

// Excluded is Match without the pattern.
func (e *Excluder) Excluded(relPath string) bool {
	_, ok := e.Match(relPath)
	return ok
}

// matchPattern applies the one rule selected by the pattern's shape.
func matchPattern(pattern, relPath string) bool {
	switch {
	case strings.Contains(pattern, "**"):
		ok, err := doublestar.Match(pattern, relPath)
		return err == nil && ok
	case strings.Contains(pattern, "*"):
		return wildcardContains(relPath, pattern)
	case strings.Contains(pattern, "/"):
		return strings.Contains(relPath, strings.Trim(pattern, "/"))
	default:
		for _, part := range strings.Split(relPath, "/") {
			if part == pattern {
				return true
			}
		}
		return false
	}
}

// wildcardContains reports whether s contains the pieces of pattern between
// '*' characters in order. The match is unanchored.
func wildcardContains(s, pattern string) bool {
	for _, piece := range strings.Split(pattern, "*") {
		if piece == "" {
			continue
		}
		i := strings.Index(s, piece)
		if i < 0 {
			return false
		}
		s = s[i+len(piece):]
	}
	return true
}
