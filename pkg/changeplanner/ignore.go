package changeplanner

import (
	"bufio"
	"io"
	"path"
	"strings"
)

// ignoreMatcher is a small subset of gitignore pattern matching: exact
// segment globs via path.Match, directory-prefix patterns (trailing
// slash), and simple anchoring (leading slash). It is not a full
// gitignore implementation — no third-party library in the pack covers
// gitignore semantics, so this stays intentionally narrow to what the
// planner needs: "is this repo-relative path excluded".
type ignoreMatcher struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	glob      string
	anchored  bool
	dirOnly   bool
	negate    bool
}

func newIgnoreMatcher() *ignoreMatcher {
	return &ignoreMatcher{}
}

func (m *ignoreMatcher) loadFile(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := ignorePattern{}

		if strings.HasPrefix(line, "!") {
			p.negate = true
			line = line[1:]
		}

		if strings.HasPrefix(line, "/") {
			p.anchored = true
			line = line[1:]
		}

		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}

		p.glob = line
		m.patterns = append(m.patterns, p)
	}
}

// Match reports whether relativePath (using forward slashes, relative to
// the repository root) is excluded. Later patterns override earlier
// ones, matching gitignore's last-match-wins precedence; a trailing "!"
// pattern re-includes a path excluded by an earlier pattern.
func (m *ignoreMatcher) Match(relativePath string) bool {
	excluded := false

	for _, p := range m.patterns {
		if matchesPattern(p, relativePath) {
			excluded = !p.negate
		}
	}

	return excluded
}

func matchesPattern(p ignorePattern, relativePath string) bool {
	segments := strings.Split(relativePath, "/")

	if p.anchored || strings.Contains(p.glob, "/") {
		ok, _ := path.Match(p.glob, relativePath)
		if ok {
			return true
		}

		return matchesAnyPrefix(p.glob, segments)
	}

	for _, seg := range segments {
		if ok, _ := path.Match(p.glob, seg); ok {
			return true
		}
	}

	return false
}

func matchesAnyPrefix(glob string, segments []string) bool {
	for i := range segments {
		candidate := strings.Join(segments[:i+1], "/")
		if ok, _ := path.Match(glob, candidate); ok {
			return true
		}
	}

	return false
}
