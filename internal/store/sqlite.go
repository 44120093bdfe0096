package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/unicore-dev/uce/internal/token"
)

// SQLiteIndex is the FTS5-backed KeywordIndex: one database file, one
// virtual table, ranking by SQLite's built-in bm25() (which fixes k1 and b
// at the Okapi defaults 1.2/0.75). Content is stored pre-tokenized with
// the shared identifier-aware splitter so FTS5's own tokenizer never has
// to understand camelCase.
type SQLiteIndex struct {
	mu     sync.RWMutex
	db     *sql.DB
	stop   map[string]struct{}
	minTL  int
	closed bool
}

// NewSQLiteIndex opens (or creates) the index database at path. An empty
// path builds an in-memory database.
func NewSQLiteIndex(path string, cfg KeywordConfig) (*SQLiteIndex, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite index: %w", err)
	}
	// The database is single-writer by construction (the cache directory
	// lock), so one connection avoids SQLITE_BUSY entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(doc_id UNINDEXED, body, tokenize = 'unicode61')`,
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create fts5 table: %w", err)
	}

	minTL := cfg.MinTokenLength
	if minTL <= 0 {
		minTL = 2
	}
	stopWords := cfg.StopWords
	if stopWords == nil {
		stopWords = CodeStopWords
	}
	return &SQLiteIndex{db: db, stop: token.StopSet(stopWords), minTL: minTL}, nil
}

// terms runs the shared tokenizer and applies this index's stop list and
// minimum token length.
func (s *SQLiteIndex) terms(text string) []string {
	raw := token.Split(text)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) < s.minTL {
			continue
		}
		if _, isStop := s.stop[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (s *SQLiteIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin fts5 write: %w", err)
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, `DELETE FROM chunk_fts WHERE doc_id = ?`)
	if err != nil {
		return fmt.Errorf("store: prepare fts5 delete: %w", err)
	}
	defer del.Close()
	ins, err := tx.PrepareContext(ctx, `INSERT INTO chunk_fts (doc_id, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare fts5 insert: %w", err)
	}
	defer ins.Close()

	for _, d := range docs {
		if _, err := del.ExecContext(ctx, d.ID); err != nil {
			return fmt.Errorf("store: replace document %s: %w", d.ID, err)
		}
		body := strings.Join(s.terms(d.Content), " ")
		if _, err := ins.ExecContext(ctx, d.ID, body); err != nil {
			return fmt.Errorf("store: insert document %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) Search(ctx context.Context, query string, limit int) ([]KeywordHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	terms := s.terms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	match := strings.Join(quoted, " OR ")

	// bm25() returns more-negative-is-better; negate so callers see
	// higher-is-better, tie-breaking on doc_id for determinism.
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, -bm25(chunk_fts) AS score
		   FROM chunk_fts
		  WHERE chunk_fts MATCH ?
		  ORDER BY score DESC, doc_id ASC
		  LIMIT ?`,
		match, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fts5 search: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.DocID, &h.Score); err != nil {
			return nil, fmt.Errorf("store: scan fts5 hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *SQLiteIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin fts5 delete: %w", err)
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_fts WHERE doc_id = ?`, id); err != nil {
			return fmt.Errorf("store: delete document %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) DocCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	var n int
	if err := s.db.QueryRow(`SELECT count(*) FROM chunk_fts`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

var _ KeywordIndex = (*SQLiteIndex)(nil)
