package scanner

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/unicore-dev/uce/internal/coreconfig"
)

// submoduleSet resolves which nested git working trees the walk may
// descend into: the paths declared in .gitmodules, filtered by the
// config's include/exclude lists. With submodules disabled (or no
// .gitmodules), the set is empty and every nested repo is pruned.
func submoduleSet(root string, cfg *coreconfig.SubmoduleConfig) map[string]bool {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	declared := parseGitmodules(filepath.Join(root, ".gitmodules"))
	set := make(map[string]bool, len(declared))
	for _, p := range declared {
		if !submoduleAllowed(p, cfg) {
			continue
		}
		set[p] = true
		if cfg.Recursive {
			for _, nested := range parseGitmodules(filepath.Join(root, filepath.FromSlash(p), ".gitmodules")) {
				np := path.Join(p, nested)
				if submoduleAllowed(np, cfg) {
					set[np] = true
				}
			}
		}
	}
	return set
}

// parseGitmodules extracts the `path = ...` values from a .gitmodules
// file. A missing or malformed file yields nothing; submodule discovery
// is best-effort.
func parseGitmodules(p string) []string {
	f, err := os.Open(p)
	if err != nil {
		return nil
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(key) != "path" {
			continue
		}
		if v := path.Clean(filepath.ToSlash(strings.TrimSpace(value))); v != "" && v != "." {
			paths = append(paths, v)
		}
	}
	return paths
}

func submoduleAllowed(p string, cfg *coreconfig.SubmoduleConfig) bool {
	for _, ex := range cfg.Exclude {
		if p == ex || strings.HasPrefix(p, ex+"/") {
			return false
		}
	}
	if len(cfg.Include) == 0 {
		return true
	}
	for _, in := range cfg.Include {
		if p == in || strings.HasPrefix(p, in+"/") {
			return true
		}
	}
	return false
}
