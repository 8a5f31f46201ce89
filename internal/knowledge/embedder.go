package knowledge

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/pessini/superpod-blog/internal/adapter/ollama"
)

// EmbeddingDimensions matches nomic-embed-text.
const EmbeddingDimensions = 768

// OllamaEmbedder embeds texts with a local Ollama model.
type OllamaEmbedder struct {
	Client *ollama.Client
	Model  string
	// Batch caps the inputs sent per request.
	Batch int
}

// Embed implements Embedder.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	batch := e.Batch
	if batch <= 0 {
		batch = 32
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		vecs, err := e.Client.Embed(ctx, e.Model, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// HashEmbedder maps words into a fixed number of buckets. It needs no model
// server and is used in mock mode.
type HashEmbedder struct {
	Dims int
}

// Embed implements Embedder. Vectors are L2-normalised.
func (e HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dims := e.Dims
	if dims <= 0 {
		dims = EmbeddingDimensions
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, dims)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			h.Write([]byte(w))
			vec[h.Sum32()%uint32(dims)]++
		}
		var norm float64
		for _, x := range vec {
			norm += float64(x) * float64(x)
		}
		if norm > 0 {
			n := float32(math.Sqrt(norm))
			for j := range vec {
				vec[j] /= n
			}
		}
		out[i] = vec
	}
	return out, nil
}
