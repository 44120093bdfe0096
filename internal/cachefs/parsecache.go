package cachefs

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/unicore-dev/uce/internal/model"
)

// ParseCache fronts cache/parse/<hash>.json with an in-process LRU so a
// content hash seen twice in one process (e.g. a file reverted to a prior
// version) skips both the parse and the disk
// read. The on-disk layer is an optional derivable optimization: it can
// always be rebuilt from a full re-parse.
type ParseCache struct {
	dir string
	mem *lru.Cache[string, *model.ParseResult]
}

// NewParseCache returns a ParseCache rooted at <cacheDir>/cache/parse,
// memoizing up to memSize entries in process.
func NewParseCache(cacheDir string, memSize int) (*ParseCache, error) {
	if memSize <= 0 {
		memSize = 512
	}
	mem, err := lru.New[string, *model.ParseResult](memSize)
	if err != nil {
		return nil, fmt.Errorf("cachefs: create parse cache: %w", err)
	}
	return &ParseCache{dir: filepath.Join(cacheDir, "cache", "parse"), mem: mem}, nil
}

func (c *ParseCache) path(hash string) string {
	return filepath.Join(c.dir, hash+".json")
}

// Get returns the cached ParseResult for hash, checking the in-memory LRU
// before falling back to disk.
func (c *ParseCache) Get(hash string) (*model.ParseResult, bool) {
	if pr, ok := c.mem.Get(hash); ok {
		return pr, true
	}

	data, err := ReadFile(c.path(hash))
	if err != nil {
		return nil, false
	}
	var pr model.ParseResult
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, false
	}
	c.mem.Add(hash, &pr)
	return &pr, true
}

// Put stores a ParseResult under hash, both in the LRU and on disk
// (write-then-rename).
func (c *ParseCache) Put(hash string, pr *model.ParseResult) error {
	c.mem.Add(hash, pr)
	data, err := json.Marshal(pr)
	if err != nil {
		return fmt.Errorf("cachefs: marshal parse result: %w", err)
	}
	return WriteAtomic(c.path(hash), data)
}
