package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore keeps chunks in a Postgres table with a pgvector column and a
// full text index for keyword scoring.
type PgVectorStore struct {
	db    *pgxpool.Pool
	table string
	dims  int
}

// NewPgVectorStore creates the extension and table if needed.
func NewPgVectorStore(ctx context.Context, pool *pgxpool.Pool, table string, dims int) (*PgVectorStore, error) {
	if dims <= 0 {
		dims = EmbeddingDimensions
	}
	s := &PgVectorStore{db: pool, table: pgx.Identifier{table}.Sanitize(), dims: dims}
	idx := pgx.Identifier{table + "_fts_idx"}.Sanitize()
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content_id TEXT NOT NULL,
			name TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d)
		)`, s.table, dims),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (to_tsvector('english', content))`, idx, s.table),
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to migrate knowledge table %s: %w", table, err)
		}
	}
	return s, nil
}

// Upsert writes docs in a single batch.
func (s *PgVectorStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, content_id, name, content, embedding) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, name = EXCLUDED.name`, s.table)
	batch := &pgx.Batch{}
	for _, d := range docs {
		if len(d.Embedding) != s.dims {
			return fmt.Errorf("document %s: embedding has %d dimensions, want %d", d.ID, len(d.Embedding), s.dims)
		}
		batch.Queue(q, d.ID, d.ContentID, d.Name, d.Content, pgvector.NewVector(d.Embedding))
	}
	return s.db.SendBatch(ctx, batch).Close()
}

// Count reports the stored chunks.
func (s *PgVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	return n, err
}

// Search blends cosine similarity with ts_rank keyword relevance.
func (s *PgVectorStore) Search(ctx context.Context, query string, embedding []float32, limit int) ([]Result, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("query embedding has %d dimensions, want %d", len(embedding), s.dims)
	}
	q := fmt.Sprintf(`SELECT id, content_id, name, content,
			$3 * (1 - (embedding <=> $1)) + $4 * ts_rank(to_tsvector('english', content), plainto_tsquery('english', $2)) AS score
		FROM %s
		ORDER BY score DESC, id
		LIMIT $5`, s.table)
	rows, err := s.db.Query(ctx, q, pgvector.NewVector(embedding), query, VectorWeight, KeywordWeight, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.ContentID, &r.Name, &r.Content, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
