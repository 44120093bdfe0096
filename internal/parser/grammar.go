package parser

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/unicore-dev/uce/internal/coreconfig"
)

// grammarLoader memoizes which languages have a working tree-sitter
// grammar and which have been marked unavailable after a timed-out or
// failed load, for the remainder of the process. It also caches parsed
// trees per (language, content hash) via an LRU so repeated parses of
// unchanged content skip tree-sitter entirely.
type grammarLoader struct {
	mu      sync.RWMutex
	unavail map[string]bool
	timeout time.Duration

	treeCache *lru.Cache[string, *syntaxTree]
}

func newGrammarLoader(cfg coreconfig.GrammarConfig) *grammarLoader {
	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 32
	}
	cache, _ := lru.New[string, *syntaxTree](cacheSize)

	timeout := time.Duration(cfg.LoadTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &grammarLoader{
		unavail:   make(map[string]bool),
		timeout:   timeout,
		treeCache: cache,
	}
}

// available reports whether language has not yet been marked unavailable.
func (g *grammarLoader) available(language string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.unavail[language]
}

func (g *grammarLoader) markUnavailable(language string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unavail[language] = true
}

// parse runs tree-sitter parsing bounded by the grammar load timeout. On
// timeout or failure the language is marked unavailable for the rest of
// the process and an error is returned so the caller falls back to the
// regex backend.
func (g *grammarLoader) parse(cacheKey string, source []byte, language string) (*syntaxTree, error) {
	if !g.available(language) {
		return nil, errGrammarUnavailable
	}

	if cacheKey != "" {
		if tree, ok := g.treeCache.Get(cacheKey); ok {
			return tree, nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	type result struct {
		tree *syntaxTree
		err  error
	}
	done := make(chan result, 1)
	go func() {
		tree, err := parseSyntaxTree(ctx, source, language)
		done <- result{tree, err}
	}()

	select {
	case <-ctx.Done():
		g.markUnavailable(language)
		return nil, errGrammarTimeout
	case r := <-done:
		if r.err != nil {
			g.markUnavailable(language)
			return nil, r.err
		}
		if cacheKey != "" {
			g.treeCache.Add(cacheKey, r.tree)
		}
		return r.tree, nil
	}
}
