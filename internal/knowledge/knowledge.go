// Package knowledge stores chunked documents with embeddings and answers
// hybrid (vector plus keyword) searches for agents.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
)

var tracer = otel.Tracer("superpod/knowledge")

// ErrEmptyContent is returned when a document has no text.
var ErrEmptyContent = errors.New("knowledge: empty content")

// Hybrid score weights.
const (
	VectorWeight  = 0.7
	KeywordWeight = 0.3
)

// Document is one stored chunk.
type Document struct {
	ID        string
	ContentID string
	Name      string
	Content   string
	Embedding []float32
}

// Result is a scored search hit.
type Result struct {
	Document
	Score float64
}

// Embedder turns texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore persists documents of one knowledge table.
type VectorStore interface {
	Upsert(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, embedding []float32, limit int) ([]Result, error)
	Count(ctx context.Context) (int, error)
}

// Fetcher downloads the readable text of a URL.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Base is a named knowledge base backed by one vector table.
type Base struct {
	Table    string
	store    VectorStore
	embedder Embedder
	contents repository.Store
	logger   *zap.Logger

	ChunkSize    int
	ChunkOverlap int
}

// NewBase wires a knowledge base. contents may be nil, in which case added
// documents are not registered in the contents table.
func NewBase(table string, store VectorStore, embedder Embedder, contents repository.Store, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{
		Table:        table,
		store:        store,
		embedder:     embedder,
		contents:     contents,
		logger:       logger.With(zap.String("knowledge_table", table)),
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// AddText chunks, embeds and stores text under name.
func (b *Base) AddText(ctx context.Context, name, description, sourceURL, text string) (*domain.KnowledgeContent, error) {
	ctx, span := tracer.Start(ctx, "knowledge.add")
	defer span.End()
	span.SetAttributes(attribute.String("knowledge.table", b.Table), attribute.String("knowledge.name", name))

	chunks := Chunk(text, b.ChunkSize, b.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrEmptyContent
	}

	vectors, err := b.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", name, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed %q: got %d vectors for %d chunks", name, len(vectors), len(chunks))
	}

	content := &domain.KnowledgeContent{
		ContentID:   uuid.NewString(),
		Name:        name,
		Description: description,
		URL:         sourceURL,
		Table:       b.Table,
		Chunks:      len(chunks),
		Status:      "completed",
		CreatedAt:   time.Now().UTC(),
	}
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			ID:        fmt.Sprintf("%s-%04d", content.ContentID, i),
			ContentID: content.ContentID,
			Name:      name,
			Content:   c,
			Embedding: vectors[i],
		}
	}
	if err := b.store.Upsert(ctx, docs); err != nil {
		return nil, fmt.Errorf("store %q: %w", name, err)
	}
	if b.contents != nil {
		if err := b.contents.CreateKnowledgeContent(ctx, content); err != nil {
			return nil, fmt.Errorf("register %q: %w", name, err)
		}
	}
	b.logger.Info("knowledge content added", zap.String("name", name), zap.Int("chunks", len(chunks)))
	return content, nil
}

// AddURL fetches url and adds its text.
func (b *Base) AddURL(ctx context.Context, fetcher Fetcher, name, description, url string) (*domain.KnowledgeContent, error) {
	text, err := fetcher.FetchText(ctx, url)
	if err != nil {
		return nil, err
	}
	return b.AddText(ctx, name, description, url, text)
}

// Search returns the best matching chunks for query.
func (b *Base) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	ctx, span := tracer.Start(ctx, "knowledge.search")
	defer span.End()
	span.SetAttributes(attribute.String("knowledge.table", b.Table))

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	vectors, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	var vec []float32
	if len(vectors) == 1 {
		vec = vectors[0]
	}
	results, err := b.store.Search(ctx, query, vec, limit)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("knowledge.hits", len(results)))
	return results, nil
}

// FormatResults renders hits for a model prompt.
func FormatResults(results []Result) string {
	if len(results) == 0 {
		return "No relevant documents found in the knowledge base."
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] %s (score %.3f)\n%s\n\n", i+1, r.Name, r.Score, r.Content)
	}
	return strings.TrimSpace(sb.String())
}

// SearchText runs Search and formats the hits for a model.
func (b *Base) SearchText(ctx context.Context, query string, limit int) (string, error) {
	results, err := b.Search(ctx, query, limit)
	if err != nil {
		return "", err
	}
	return FormatResults(results), nil
}
