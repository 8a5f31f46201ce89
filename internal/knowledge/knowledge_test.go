package knowledge

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pessini/superpod-blog/internal/repository"
)

const testDims = 16

// hashEmbedder buckets words into a fixed size vector.
type hashEmbedder struct {
	calls int
	err   error
}

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			f := fnv.New32a()
			f.Write([]byte(w))
			v[f.Sum32()%testDims]++
		}
		out[i] = v
	}
	return out, nil
}

type staticFetcher map[string]string

func (s staticFetcher) FetchText(_ context.Context, url string) (string, error) {
	if txt, ok := s[url]; ok {
		return txt, nil
	}
	return "", errors.New("not found")
}

func newTestBase(t *testing.T) (*Base, *MemoryStore, repository.Store) {
	t.Helper()
	repo, err := repository.NewSQLiteStore(":memory:", repository.Tables{})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	store := NewMemoryStore()
	return NewBase("agno_assist_knowledge", store, &hashEmbedder{}, repo, nil), store, repo
}

func TestAddTextAndSearch(t *testing.T) {
	ctx := context.Background()
	base, store, repo := newTestBase(t)
	base.ChunkSize = 80
	base.ChunkOverlap = 0

	text := "Agents use tools to act on the world and answer user questions.\n\n" +
		"Teams coordinate several member agents under a single leader.\n\n" +
		"Workflows run steps, loops and conditions in a fixed order."
	content, err := base.AddText(ctx, "Agno Docs", "framework docs", "", text)
	require.NoError(t, err)
	assert.Equal(t, 3, content.Chunks)
	assert.Equal(t, "agno_assist_knowledge", content.Table)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	contents, err := repo.ListKnowledgeContents(ctx, "agno_assist_knowledge")
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "Agno Docs", contents[0].Name)

	results, err := base.Search(ctx, "teams leader", 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Content, "Teams coordinate")
	assert.LessOrEqual(t, len(results), 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestAddTextEmpty(t *testing.T) {
	base, _, _ := newTestBase(t)
	_, err := base.AddText(context.Background(), "empty", "", "", "  \n ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestAddTextEmbedError(t *testing.T) {
	boom := errors.New("ollama down")
	base := NewBase("kb", NewMemoryStore(), &hashEmbedder{err: boom}, nil, nil)
	_, err := base.AddText(context.Background(), "doc", "", "", "some text")
	assert.ErrorIs(t, err, boom)
}

func TestAddURL(t *testing.T) {
	base, _, repo := newTestBase(t)
	fetcher := staticFetcher{"https://docs.agno.com/llms.txt": "# Agno\n\nAgno is a framework for agents."}

	content, err := base.AddURL(context.Background(), fetcher, "Agno Docs", "", "https://docs.agno.com/llms.txt")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.agno.com/llms.txt", content.URL)

	_, err = base.AddURL(context.Background(), fetcher, "Missing", "", "https://example.com/404")
	assert.Error(t, err)

	contents, err := repo.ListKnowledgeContents(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, contents, 1)
}

func TestSearchBlankQuery(t *testing.T) {
	emb := &hashEmbedder{}
	base := NewBase("kb", NewMemoryStore(), emb, nil, nil)
	results, err := base.Search(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, emb.calls)
}

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "No relevant documents found in the knowledge base.", FormatResults(nil))
	out := FormatResults([]Result{{Document: Document{Name: "Agno Docs", Content: "body"}, Score: 0.5}})
	assert.Equal(t, "[1] Agno Docs (score 0.500)\nbody", out)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestHashEmbedder(t *testing.T) {
	vecs, err := HashEmbedder{Dims: 16}.Embed(context.Background(), []string{"Agno agents", "agno AGENTS", "", "workflow steps"})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	assert.Len(t, vecs[0], 16)
	assert.Equal(t, vecs[0], vecs[1])
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[1]), 1e-6)
	assert.Zero(t, cosine(vecs[2], vecs[0]))
	assert.Less(t, cosine(vecs[0], vecs[3]), 1.0)
}
