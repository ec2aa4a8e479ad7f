package policy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	_ "modernc.org/sqlite"
)

// IndexRetriever ranks corpus sections with SQLite FTS5 (bm25) in an
// in-memory database. Queries with no full-text hit are routed by keyword.
type IndexRetriever struct {
	db       *sql.DB
	fallback *KeywordRetriever
}

// NewIndexRetriever builds the full-text index for c.
func NewIndexRetriever(ctx context.Context, c *Corpus) (*IndexRetriever, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("policy index: open: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx,
		`CREATE VIRTUAL TABLE sections USING fts5(id UNINDEXED, title, body, tokenize = 'porter unicode61')`); err != nil {
		db.Close()
		return nil, fmt.Errorf("policy index: create table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("policy index: begin: %w", err)
	}
	for _, s := range c.Sections() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO sections (id, title, body) VALUES (?, ?, ?)`, s.ID, s.Title, s.Text); err != nil {
			_ = tx.Rollback()
			db.Close()
			return nil, fmt.Errorf("policy index: insert %q: %w", s.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("policy index: commit: %w", err)
	}

	return &IndexRetriever{db: db, fallback: NewKeywordRetriever(c)}, nil
}

// Retrieve implements Retriever.
func (ix *IndexRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = 1
	}
	match := ftsQuery(query)
	if match == "" {
		return ix.fallback.Retrieve(ctx, query, topK)
	}

	rows, err := ix.db.QueryContext(ctx,
		`SELECT id, title, body, bm25(sections) AS rank
		   FROM sections
		  WHERE sections MATCH ?
		  ORDER BY rank
		  LIMIT ?`, match, topK)
	if err != nil {
		return nil, fmt.Errorf("policy index: query: %w", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var (
			ch   Chunk
			rank float64
		)
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Text, &rank); err != nil {
			return nil, fmt.Errorf("policy index: scan: %w", err)
		}
		ch.Source = "corpus"
		// bm25 is lower-is-better and negative; expose a positive score.
		ch.Score = -rank
		out = append(out, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("policy index: rows: %w", err)
	}
	if len(out) == 0 {
		return ix.fallback.Retrieve(ctx, query, topK)
	}
	return out, nil
}

// Close releases the database.
func (ix *IndexRetriever) Close() error {
	return ix.db.Close()
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "any": true,
	"what": true, "when": true, "which": true, "policy": true, "claim": true,
}

// ftsQuery turns free text into an FTS5 OR-query of quoted terms.
func ftsQuery(q string) string {
	words := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, `"`+w+`"`)
	}
	return strings.Join(terms, " OR ")
}
