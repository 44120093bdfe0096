package model

// BM25Document is the tokenized form of a chunk as carried inside the
// BM25 inverted index. It is created when a chunk enters the index and
// discarded when the chunk's file is re-indexed.
type BM25Document struct {
	ID         string            `json:"id"`
	Tokens     []string          `json:"tokens"`
	TokenCount int               `json:"token_count"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
