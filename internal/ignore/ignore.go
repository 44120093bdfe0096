// Package ignore implements the file-exclusion rules the enumerator
// applies while walking a working tree. The effective rule set is the
// union of three sources: the built-in defaults, the repository's
// version-control ignore file, and the project-level engine ignore file.
// Within one source, later rules win; across sources, later sources win.
//
// The pattern language is the familiar one: one pattern per line, `#`
// introduces a comment, blank lines are skipped, `**` matches any number
// of path segments, a trailing `/` restricts the pattern to directories,
// and a leading `!` re-includes a previously excluded path.
package ignore

import (
	"bufio"
	"os"
	"path"
	"strings"
)

// rule is one compiled pattern line.
type rule struct {
	segs     []string
	negate   bool
	dirOnly  bool
	anchored bool
}

// Ruleset is an ordered list of rules; the last matching rule decides.
type Ruleset struct {
	rules []rule
}

// New returns an empty Ruleset.
func New() *Ruleset {
	return &Ruleset{}
}

// Parse compiles a whole ignore file's content.
func Parse(content string) *Ruleset {
	rs := New()
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		rs.Add(sc.Text())
	}
	return rs
}

// ParseFile reads and compiles the ignore file at p. A missing file
// yields an empty Ruleset and no error, since every ignore source is
// optional.
func ParseFile(p string) (*Ruleset, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}
	return Parse(string(data)), nil
}

// Add compiles one pattern line into the set. Comments and blank lines
// are dropped.
func (rs *Ruleset) Add(line string) {
	r, ok := compile(line)
	if ok {
		rs.rules = append(rs.rules, r)
	}
}

// Append copies every rule of other onto rs, preserving order. Use it to
// build the union of sources with later sources winning.
func (rs *Ruleset) Append(other *Ruleset) {
	if other != nil {
		rs.rules = append(rs.rules, other.rules...)
	}
}

// Len reports how many rules the set holds.
func (rs *Ruleset) Len() int { return len(rs.rules) }

// Match reports whether relPath (slash-separated, relative to the walk
// root) is excluded. isDir selects directory-only rules; excluding a
// directory prunes everything under it at walk time, so Match is only
// ever asked about paths whose ancestors survived.
func (rs *Ruleset) Match(relPath string, isDir bool) bool {
	ignored := false
	for _, r := range rs.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.match(relPath) {
			ignored = !r.negate
		}
	}
	return ignored
}

func compile(line string) (rule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rule{}, false
	}

	var r rule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		line = line[1:]
	}
	if line == "" {
		return rule{}, false
	}
	// A separator anywhere in the body anchors the pattern to the root;
	// a bare name floats and matches at any depth.
	r.anchored = strings.Contains(line, "/")
	r.segs = strings.Split(line, "/")
	return r, true
}

func (r rule) match(relPath string) bool {
	segs := strings.Split(relPath, "/")
	if r.anchored {
		return matchSegs(r.segs, segs)
	}
	for i := range segs {
		if matchSegs(r.segs, segs[i:]) {
			return true
		}
	}
	return false
}

// matchSegs matches pattern segments against path segments. `**` spans
// zero or more segments; a trailing pattern may also match a proper
// prefix of the path, because excluding a directory excludes its
// contents.
func matchSegs(pat, segs []string) bool {
	if len(pat) == 0 {
		return true // pattern consumed: segs (possibly empty) live under the match
	}
	if pat[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegs(pat[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(pat[0], segs[0]); err != nil || !ok {
		return false
	}
	return matchSegs(pat[1:], segs[1:])
}

// defaultPatterns are the universally-noisy directories and lockfiles no
// index run should ever read.
var defaultPatterns = []string{
	".git/",
	".hg/",
	".svn/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"out/",
	"target/",
	"coverage/",
	"__pycache__/",
	".venv/",
	"venv/",
	".next/",
	".nuxt/",
	".cache/",
	".idea/",
	".vscode/",
	".uce/",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
	"Cargo.lock",
	"poetry.lock",
	"Pipfile.lock",
	"composer.lock",
	"Gemfile.lock",
	"*.min.js",
	"*.min.css",
}

// Defaults returns the built-in exclusion set.
func Defaults() *Ruleset {
	rs := New()
	for _, p := range defaultPatterns {
		rs.Add(p)
	}
	return rs
}
