// Package kb provides vector-similarity search over the company knowledge
// base stored in Postgres with pgvector.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Document is one retrieved knowledge-base chunk.
type Document struct {
	Content  string
	Metadata map[string]any
}

// Embedder produces the query embedding used for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Store struct {
	pool   *pgxpool.Pool
	embed  Embedder
	logger *slog.Logger
}

func NewStore(pool *pgxpool.Pool, embed Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embed: embed, logger: logger}
}

// Search returns the k documents nearest to the query by cosine distance.
func (s *Store) Search(ctx context.Context, query string, k int) ([]Document, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("knowledge base store is not configured")
	}
	if k <= 0 {
		k = 10
	}

	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT content, metadata
		   FROM kb_documents
		  ORDER BY embedding <=> $1::vector
		  LIMIT $2`,
		vectorLiteral(vec), k,
	)
	if err != nil {
		return nil, fmt.Errorf("query kb_documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Content, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("scan kb document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kb documents: %w", err)
	}

	s.logger.Info("knowledge base search complete", "results", len(docs))
	return docs, nil
}

// vectorLiteral renders an embedding as a pgvector input literal.
func vectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
