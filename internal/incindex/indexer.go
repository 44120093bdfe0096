// Package incindex implements the incremental indexer: a content-hash-keyed
// cache over parsed files that re-parses only changed or new files, evicts
// removed ones, and republishes a new ProjectIndex generation atomically.
// It fans out per-file parsing across a bounded worker pool
// (golang.org/x/sync's errgroup + semaphore) and joins before publishing.
package incindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/unicore-dev/uce/internal/bm25"
	"github.com/unicore-dev/uce/internal/cachefs"
	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/coreerrors"
	"github.com/unicore-dev/uce/internal/graph"
	"github.com/unicore-dev/uce/internal/model"
	"github.com/unicore-dev/uce/internal/parser"
	"github.com/unicore-dev/uce/internal/scanner"
)

// Config bundles every tunable the indexer needs across its collaborators.
type Config struct {
	Index      coreconfig.IndexConfig
	Chunk      coreconfig.ChunkConfig
	Grammar    coreconfig.GrammarConfig
	BM25       coreconfig.BM25Config
	Submodules coreconfig.SubmoduleConfig
}

// DefaultConfig returns the canonical defaults for every sub-config.
func DefaultConfig() Config {
	return Config{
		Index:      coreconfig.DefaultIndexConfig(),
		Chunk:      coreconfig.DefaultChunkConfig(),
		Grammar:    coreconfig.DefaultGrammarConfig(),
		BM25:       coreconfig.DefaultBM25Config(),
		Submodules: coreconfig.DefaultSubmoduleConfig(),
	}
}

// Indexer is the process-wide incremental indexer for one project root.
// Safe for concurrent use; publication of a new ProjectIndex generation is
// atomic (readers either see the prior generation in full or the new one,
// never a mix).
type Indexer struct {
	mu sync.RWMutex

	rootPath    string
	projectName string
	cacheDir    string
	cfg         Config

	scan       *scanner.Scanner
	parse      *parser.Parser
	parseCache *cachefs.ParseCache
	lock       *cachefs.Lock
	builder    *graph.Builder

	index      *model.ProjectIndex
	hashes     map[string]string // path -> content hash, as of the current generation
	chunkIndex map[string]*model.SemanticChunk
	g          *graph.Graph
	b25        *bm25.Index
	bm25Dirty  bool
}

// New builds an Indexer rooted at rootPath. Initialize must be called
// before Index/UpdateFiles.
func New(rootPath, projectName string, cfg Config) (*Indexer, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("incindex: build scanner: %w", err)
	}
	cacheDir := cfg.Index.CacheDirName
	if cacheDir == "" {
		cacheDir = ".uce"
	}
	parseCache, err := cachefs.NewParseCache(cacheDirPath(rootPath, cacheDir), 512)
	if err != nil {
		return nil, fmt.Errorf("incindex: build parse cache: %w", err)
	}

	return &Indexer{
		rootPath:    rootPath,
		projectName: projectName,
		cacheDir:    cacheDirPath(rootPath, cacheDir),
		cfg:         cfg,
		scan:        sc,
		parse:       parser.New(cfg.Grammar, cfg.Chunk),
		parseCache:  parseCache,
		lock:        cachefs.NewLock(cacheDirPath(rootPath, cacheDir)),
		builder:     graph.NewBuilder(),
		index:       model.NewProjectIndex(projectName, rootPath),
		hashes:      make(map[string]string),
		chunkIndex:  make(map[string]*model.SemanticChunk),
		g:           graph.New(),
		bm25Dirty:   true,
	}, nil
}

func cacheDirPath(root, name string) string {
	return root + string(os.PathSeparator) + name
}

// Initialize creates the cache directory and loads a prior snapshot if
// present. A missing or corrupted snapshot is not fatal — the next Index
// call performs a full re-index.
func (ix *Indexer) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(ix.cacheDir, 0o755); err != nil {
		return coreerrors.Wrap(coreerrors.ErrCodeFileSystemPermissionDenied, err)
	}
	if err := ix.loadSnapshot(); err != nil {
		slog.Warn("incindex: no usable prior snapshot, will do a full index",
			slog.String("error", err.Error()))
	}
	return nil
}

// GetIndex returns the current ProjectIndex generation. The returned
// pointer is stable until the next Index/UpdateFiles call.
func (ix *Indexer) GetIndex() *model.ProjectIndex {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.index
}

// GetFileHashes returns a copy of the path->content-hash map for the
// current generation.
func (ix *Indexer) GetFileHashes() map[string]string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]string, len(ix.hashes))
	for k, v := range ix.hashes {
		out[k] = v
	}
	return out
}

// SetFileHashes seeds the path->content-hash map, e.g. when restoring
// state from an external snapshot format.
func (ix *Indexer) SetFileHashes(hashes map[string]string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.hashes = make(map[string]string, len(hashes))
	for k, v := range hashes {
		ix.hashes[k] = v
	}
}

// GetAllChunks returns every chunk across every file in the current
// generation, in deterministic file-then-chunk order.
func (ix *Indexer) GetAllChunks() []*model.SemanticChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.index.AllChunks()
}

// Graph returns the knowledge graph for the current generation, rebuilding
// it first if the previous generation's graph was marked dirty (dirty
// derived structures rebuild wholesale on next access).
func (ix *Indexer) Graph() *graph.Graph {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.g.Dirty() {
		ix.g = ix.builder.Build(ix.index)
		if err := ix.persistGraphLocked(); err != nil {
			slog.Warn("incindex: failed to persist graph snapshot", slog.String("error", err.Error()))
		}
	}
	return ix.g
}

// BM25 returns the BM25 index for the current generation, rebuilding it
// first if dirty.
func (ix *Indexer) BM25() bm25.SearchIndex {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.bm25Dirty {
		ix.rebuildBM25Locked()
		ix.bm25Dirty = false
		if err := ix.persistBM25Locked(); err != nil {
			slog.Warn("incindex: failed to persist bm25 snapshot", slog.String("error", err.Error()))
		}
	}
	return ix.b25
}

func newNativeFromConfig(cfg Config) *bm25.Index {
	return bm25.New(cfg.BM25)
}

func (ix *Indexer) rebuildBM25Locked() {
	idx := bm25.New(ix.cfg.BM25)
	docs := make([]bm25.Document, 0)
	for _, chunk := range ix.index.AllChunks() {
		docs = append(docs, bm25.Document{ID: chunk.ID, Content: chunk.Content})
	}
	if len(docs) > 0 {
		_ = idx.AddDocuments(context.Background(), docs)
	}
	ix.b25 = idx
}

// scannedFile is the minimal per-file record the index pass accumulates
// before deciding what needs (re)parsing.
type scannedFile struct {
	path     string
	absPath  string
	language string
	size     int64
	modTime  time.Time
	hash     string
}

// Index re-scans the working tree, parses only files whose content hash
// changed or are new, and evicts files that disappeared. It publishes a
// new ProjectIndex generation atomically.
func (ix *Indexer) Index(ctx context.Context) (*model.ProjectIndex, error) {
	scanned, err := ix.scanTree(ctx)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.ErrCodeFileSystemNotFound, err)
	}

	ix.mu.RLock()
	prevFiles := ix.index.Files
	prevHashes := ix.hashes
	ix.mu.RUnlock()

	currentPaths := make(map[string]bool, len(scanned))
	var toParse []*scannedFile
	newFiles := make(map[string]*model.FileIndex, len(scanned))

	for _, sf := range scanned {
		currentPaths[sf.path] = true
		if prevHash, ok := prevHashes[sf.path]; ok && prevHash == sf.hash {
			if fi, ok := prevFiles[sf.path]; ok {
				newFiles[sf.path] = fi // pointer equality preserved: unchanged file
				continue
			}
		}
		toParse = append(toParse, sf)
	}

	var removed []string
	for path := range prevHashes {
		if !currentPaths[path] {
			removed = append(removed, path)
		}
	}

	parsedFiles, diagPaths, err := ix.parseFiles(ctx, toParse)
	if err != nil {
		return nil, err
	}
	for path, fi := range parsedFiles {
		newFiles[path] = fi
	}

	newHashes := make(map[string]string, len(scanned))
	for _, sf := range scanned {
		newHashes[sf.path] = sf.hash
	}

	newIndex := model.NewProjectIndex(ix.projectName, ix.rootPath)
	newIndex.Files = newFiles
	resolveDependencies(newIndex)
	computeTotals(newIndex)

	chunkIndex, err := buildChunkIndex(newIndex)
	if err != nil {
		return nil, coreerrors.Internal("chunk ids collide across files", err)
	}

	ix.mu.Lock()
	newIndex.Generation = ix.index.Generation + 1
	newIndex.IndexedAt = now()
	ix.index = newIndex
	ix.hashes = newHashes
	ix.chunkIndex = chunkIndex
	ix.g.MarkDirty()
	ix.bm25Dirty = true
	ix.mu.Unlock()

	if err := ix.persistIndex(); err != nil {
		slog.Warn("incindex: failed to persist index snapshot", slog.String("error", err.Error()))
	}

	slog.Info("incindex: index run complete",
		slog.Int64("generation", newIndex.Generation),
		slog.Int("files", len(newFiles)),
		slog.Int("parsed", len(parsedFiles)),
		slog.Int("removed", len(removed)),
		slog.Int("diagnostics", len(diagPaths)))

	return newIndex, nil
}

func (ix *Indexer) scanTree(ctx context.Context) ([]*scannedFile, error) {
	opts := &scanner.ScanOptions{
		RootDir:          ix.rootPath,
		RespectGitignore: true,
		Workers:          ix.cfg.Index.Workers,
		MaxFileSize:      ix.cfg.Index.MaxFileSize,
	}
	if ix.cfg.Submodules.Enabled {
		opts.Submodules = &ix.cfg.Submodules
	}
	results, err := ix.scan.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}

	var files []*scannedFile
	count := 0
	for res := range results {
		if res.Error != nil {
			slog.Warn("incindex: scan error", slog.String("error", res.Error.Error()))
			continue
		}
		if res.Skip != nil {
			slog.Info("incindex: file skipped",
				slog.String("path", res.Skip.Path),
				slog.String("reason", string(res.Skip.Reason)))
			continue
		}
		if res.File == nil {
			continue
		}
		count++
		if ix.cfg.Index.MaxFiles > 0 && count > ix.cfg.Index.MaxFiles {
			continue
		}
		content, err := os.ReadFile(res.File.AbsPath)
		if err != nil {
			slog.Warn("incindex: failed to read file", slog.String("path", res.File.Path), slog.String("error", err.Error()))
			continue
		}
		files = append(files, &scannedFile{
			path:     res.File.Path,
			absPath:  res.File.AbsPath,
			language: res.File.Language,
			size:     res.File.Size,
			modTime:  res.File.ModTime,
			hash:     contentHash(content),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// parseFiles runs the parser over every file in toParse across a bounded
// worker pool, consulting (and populating) the parse cache by content
// hash. A cached result is reused only for the path it was parsed under,
// because its chunk ids and file paths embed that path. Per-file failures
// are isolated as diagnostics; only a cancelled ctx fails the batch.
func (ix *Indexer) parseFiles(ctx context.Context, toParse []*scannedFile) (map[string]*model.FileIndex, []string, error) {
	workers := ix.cfg.Index.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))

	var mu sync.Mutex
	results := make(map[string]*model.FileIndex, len(toParse))
	var diagPaths []string

	g, gctx := errgroup.WithContext(ctx)
	for _, sf := range toParse {
		sf := sf
		if err := sem.Acquire(gctx, 1); err != nil {
			break // context cancelled: stop launching new work, already-running parses still finish
		}
		g.Go(func() error {
			defer sem.Release(1)
			fi := ix.parseOne(gctx, sf)
			mu.Lock()
			results[sf.path] = fi
			if len(fi.Diagnostics) > 0 {
				diagPaths = append(diagPaths, sf.path)
			}
			mu.Unlock()
			return nil // per-file errors never propagate; see parseOne
		})
	}
	// The goroutines never return an error (per-file failures are isolated
	// above), so a cancelled ctx is the only batch-level failure; Index then
	// discards the partial results and does not advance the generation.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, diagPaths, coreerrors.Internal("index run cancelled", err)
	}
	return results, diagPaths, nil
}

func (ix *Indexer) parseOne(ctx context.Context, sf *scannedFile) *model.FileIndex {
	content, err := os.ReadFile(sf.absPath)
	if err != nil {
		return &model.FileIndex{
			Path:         sf.path,
			Language:     sf.language,
			LastModified: sf.modTime,
			Size:         sf.size,
			ContentHash:  sf.hash,
			Diagnostics: []model.Diagnostic{{
				Code:    coreerrors.ErrCodeFileSystemNotFound,
				Message: "failed to read file for parsing: " + err.Error(),
			}},
		}
	}

	var pr *model.ParseResult
	if cached, ok := ix.parseCache.Get(sf.hash); ok && cached.Path == sf.path {
		pr = cached
	} else {
		pr = ix.parse.Parse(ctx, sf.path, content, sf.language)
		if err := ix.parseCache.Put(sf.hash, pr); err != nil {
			slog.Debug("incindex: failed to persist parse cache entry", slog.String("error", err.Error()))
		}
	}

	return &model.FileIndex{
		Path:         sf.path,
		ContentHash:  sf.hash,
		Language:     sf.language,
		LastModified: sf.modTime,
		Size:         sf.size,
		Symbols:      pr.Symbols,
		Imports:      pr.Imports,
		Exports:      pr.Exports,
		CallRefs:     pr.CallRefs,
		Chunks:       pr.Chunks,
		Description:  pr.Description,
		Diagnostics:  pr.Diagnostics,
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// now is a seam so tests can observe a deterministic IndexedAt.
var now = time.Now
