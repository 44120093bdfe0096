package model

import (
	"sort"
	"time"
)

// Diagnostic is a non-fatal, per-file issue recorded during parsing or
// indexing (see the error taxonomy in coreerrors).
type Diagnostic struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// FileIndex is the parsed, chunked representation of a single file as of
// its current content hash. It is replaced atomically when the hash
// changes and removed when the file disappears from the tree.
type FileIndex struct {
	Path         string           `json:"path"`
	ContentHash  string           `json:"content_hash"`
	Language     string           `json:"language"`
	LastModified time.Time        `json:"last_modified"`
	Size         int64            `json:"size"`
	Symbols      []*Symbol        `json:"symbols"`
	Imports      []*Import        `json:"imports"`
	Exports      []*Export        `json:"exports"`
	CallRefs     []*CallReference `json:"call_refs"`
	Chunks       []*SemanticChunk `json:"chunks"`

	// Description is the file's leading comment/docstring, if any.
	Description string `json:"description,omitempty"`

	// ImportedBy lists repo-relative paths of files that import this one.
	// Maintained by the indexer's dependency-edge pass, not the parser.
	ImportedBy []string `json:"imported_by,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// DependencyEdge is a resolved import relationship between two files.
type DependencyEdge struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	Imports []string `json:"imports"`
}

// LanguageStats aggregates per-language totals across a ProjectIndex.
type LanguageStats struct {
	Files   int `json:"files"`
	Symbols int `json:"symbols"`
	Chunks  int `json:"chunks"`
}

// IndexTotals summarizes a ProjectIndex at a glance.
type IndexTotals struct {
	Files   int `json:"files"`
	Symbols int `json:"symbols"`
	Chunks  int `json:"chunks"`
}

// ParseResult is the single-pass output of parsing one file: everything
// the indexer needs to build or refresh that file's FileIndex entry.
type ParseResult struct {
	Path        string
	Language    string
	Symbols     []*Symbol
	Imports     []*Import
	Exports     []*Export
	CallRefs    []*CallReference
	Chunks      []*SemanticChunk
	Description string
	Diagnostics []Diagnostic
}

// ProjectIndex is the process-wide, generation-versioned snapshot of every
// indexed file. Publication of a new generation is atomic: readers either
// see the prior generation in full or the new one in full, never a mix.
type ProjectIndex struct {
	Generation  int64              `json:"generation"`
	ProjectName string             `json:"project_name"`
	RootPath    string             `json:"root_path"`
	IndexedAt   time.Time          `json:"indexed_at"`
	Totals      IndexTotals        `json:"totals"`
	Files       map[string]*FileIndex `json:"files"`
	Dependencies []DependencyEdge  `json:"dependencies"`
	EntryPoints []string           `json:"entry_points,omitempty"`
	Languages   map[string]LanguageStats `json:"languages"`
}

// NewProjectIndex returns an empty ProjectIndex ready for generation 0.
func NewProjectIndex(projectName, rootPath string) *ProjectIndex {
	return &ProjectIndex{
		ProjectName: projectName,
		RootPath:    rootPath,
		Files:       make(map[string]*FileIndex),
		Languages:   make(map[string]LanguageStats),
	}
}

// AllChunkIDs returns every chunk id across every file, in repo-relative
// lexicographic file order then chunk order.
func (p *ProjectIndex) AllChunkIDs() []string {
	paths := make([]string, 0, len(p.Files))
	for path := range p.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var ids []string
	for _, path := range paths {
		fi := p.Files[path]
		for _, c := range fi.Chunks {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// AllChunks returns every chunk across every file, in the same
// deterministic order as AllChunkIDs.
func (p *ProjectIndex) AllChunks() []*SemanticChunk {
	paths := make([]string, 0, len(p.Files))
	for path := range p.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var chunks []*SemanticChunk
	for _, path := range paths {
		chunks = append(chunks, p.Files[path].Chunks...)
	}
	return chunks
}
