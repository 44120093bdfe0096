// Package scanner enumerates the indexable files of a working tree: it
// walks the root, applies the union of ignore sources (built-in defaults,
// the repository's .gitignore, the project's .uceignore), keeps only files
// whose extension maps to a known language, and streams results over a
// channel from a bounded reader pool. Files that are too large or look
// binary are reported with a skip reason rather than silently dropped.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unicore-dev/uce/internal/coreconfig"
	"github.com/unicore-dev/uce/internal/ignore"
)

// engineIgnoreFile is the project-level ignore file layered on top of the
// repository's .gitignore.
const engineIgnoreFile = ".uceignore"

// binarySniffLen is how much of a file's head is checked for a NUL byte.
const binarySniffLen = 8 * 1024

// languageByExt maps recognized extensions to their language name. Only
// files with a recognized extension are enumerated at all.
var languageByExt = map[string]string{
	".go":       "go",
	".ts":       "typescript",
	".mts":      "typescript",
	".cts":      "typescript",
	".tsx":      "tsx",
	".js":       "javascript",
	".mjs":      "javascript",
	".cjs":      "javascript",
	".jsx":      "jsx",
	".py":       "python",
	".md":       "markdown",
	".markdown": "markdown",
}

// LanguageForPath returns the language a path's extension maps to, or ""
// when the extension is unknown.
func LanguageForPath(p string) string {
	return languageByExt[strings.ToLower(filepath.Ext(p))]
}

// FileInfo describes one enumerated file.
type FileInfo struct {
	Path     string // repo-relative, slash-separated
	AbsPath  string
	Language string
	Size     int64
	ModTime  time.Time
}

// SkipReason says why an otherwise-candidate file was not enumerated.
type SkipReason string

const (
	SkipTooLarge SkipReason = "too-large"
	SkipBinary   SkipReason = "binary"
)

// Skip reports a candidate file that was rejected after discovery.
type Skip struct {
	Path   string
	Reason SkipReason
}

// ScanResult is one message on the scan stream: exactly one of File,
// Skip, or Error is set.
type ScanResult struct {
	File  *FileInfo
	Skip  *Skip
	Error error
}

// ScanOptions configures a single Scan call.
type ScanOptions struct {
	RootDir string

	// RespectGitignore layers the repository's .gitignore into the ignore
	// union. The built-in defaults and .uceignore always apply.
	RespectGitignore bool

	// Extra patterns are user overrides appended after every file-based
	// source, so they win ties.
	Extra []string

	// Workers bounds the concurrent file-sniffing pool (0 = 4).
	Workers int

	// MaxFileSize rejects larger files with SkipTooLarge (0 = 1 MiB).
	MaxFileSize int64

	// Submodules, when enabled, lets the walk descend into nested git
	// working trees declared in .gitmodules. Disabled, any nested
	// directory carrying a .git entry is pruned.
	Submodules *coreconfig.SubmoduleConfig
}

// Scanner walks working trees. It carries no per-scan state and is safe
// for concurrent Scan calls.
type Scanner struct{}

// New builds a Scanner.
func New() (*Scanner, error) {
	return &Scanner{}, nil
}

// Scan walks opts.RootDir and streams results until the walk completes or
// ctx is cancelled, then closes the channel. Symbolic links are not
// followed.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil || opts.RootDir == "" {
		return nil, fmt.Errorf("scanner: root directory is required")
	}
	root, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root: %w", err)
	}
	if info, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("scanner: stat root: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("scanner: root %s is not a directory", root)
	}

	rules, err := buildRules(root, opts)
	if err != nil {
		return nil, err
	}
	subs := submoduleSet(root, opts.Submodules)

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	out := make(chan ScanResult, 64)
	candidates := make(chan candidate, 64)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for c := range candidates {
				res := sniff(c)
				select {
				case out <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	go func() {
		walkErr := walkTree(gctx, root, rules, subs, maxSize, candidates, out)
		close(candidates)
		if err := g.Wait(); err == nil && walkErr != nil && walkErr != context.Canceled {
			out <- ScanResult{Error: walkErr}
		}
		close(out)
	}()

	return out, nil
}

type candidate struct {
	rel  string
	abs  string
	lang string
	info fs.FileInfo
}

// buildRules assembles the ignore union in precedence order: defaults,
// then .gitignore, then .uceignore, then user overrides.
func buildRules(root string, opts *ScanOptions) (*ignore.Ruleset, error) {
	rules := ignore.Defaults()
	if opts.RespectGitignore {
		gi, err := ignore.ParseFile(filepath.Join(root, ".gitignore"))
		if err != nil {
			return nil, fmt.Errorf("scanner: read .gitignore: %w", err)
		}
		rules.Append(gi)
	}
	ei, err := ignore.ParseFile(filepath.Join(root, engineIgnoreFile))
	if err != nil {
		return nil, fmt.Errorf("scanner: read %s: %w", engineIgnoreFile, err)
	}
	rules.Append(ei)
	for _, p := range opts.Extra {
		rules.Add(p)
	}
	return rules, nil
}

func walkTree(ctx context.Context, root string, rules *ignore.Ruleset, subs map[string]bool, maxSize int64, candidates chan<- candidate, out chan<- ScanResult) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Unreadable entries are per-file conditions, never fatal.
			select {
			case out <- ScanResult{Error: fmt.Errorf("scanner: %s: %w", p, err)}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}
		if p == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.Match(rel, true) {
				return filepath.SkipDir
			}
			if isNestedRepo(p) && !subs[rel] {
				return filepath.SkipDir
			}
			return nil
		}

		// Symbolic links are not followed.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		lang := LanguageForPath(rel)
		if lang == "" {
			return nil
		}
		if rules.Match(rel, false) {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return nil
		}
		if info.Size() > maxSize {
			select {
			case out <- ScanResult{Skip: &Skip{Path: rel, Reason: SkipTooLarge}}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}

		select {
		case candidates <- candidate{rel: rel, abs: p, lang: lang, info: info}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// isNestedRepo reports whether dir is the root of another git working
// tree (a directory or file named .git lives directly inside it).
func isNestedRepo(dir string) bool {
	_, err := os.Lstat(filepath.Join(dir, ".git"))
	return err == nil
}

// sniff reads the candidate's head: a NUL byte within the first 8 KiB
// marks the file binary and skips it.
func sniff(c candidate) ScanResult {
	f, err := os.Open(c.abs)
	if err != nil {
		return ScanResult{Error: fmt.Errorf("scanner: open %s: %w", c.rel, err)}
	}
	defer f.Close()

	head := make([]byte, binarySniffLen)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return ScanResult{Error: fmt.Errorf("scanner: read %s: %w", c.rel, err)}
	}
	if bytes.IndexByte(head[:n], 0) >= 0 {
		return ScanResult{Skip: &Skip{Path: c.rel, Reason: SkipBinary}}
	}

	return ScanResult{File: &FileInfo{
		Path:     c.rel,
		AbsPath:  c.abs,
		Language: c.lang,
		Size:     c.info.Size(),
		ModTime:  c.info.ModTime(),
	}}
}
