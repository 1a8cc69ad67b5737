// Package rag provides an in-memory embeddings index that supplies topical
// context snippets to the question generator.
package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns texts into dense vectors. The OpenAI-compatible client
// satisfies it; tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder computes embeddings through an OpenAI-compatible endpoint.
type OpenAIEmbedder struct {
	api   *openai.Client
	model string
}

// NewOpenAIEmbedder creates an embedder against the given endpoint.
func NewOpenAIEmbedder(baseURL, apiKey, modelName string) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIEmbedder{api: openai.NewClientWithConfig(config), model: modelName}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings API call: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings returned %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Index holds embedded text chunks and answers similarity queries.
type Index struct {
	embedder Embedder
	chunks   []string
	vectors  [][]float32
}

// Chunking parameters for the seeded knowledge text.
const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// NewIndex splits the text into overlapping chunks, embeds them and builds
// the index.
func NewIndex(ctx context.Context, embedder Embedder, text string) (*Index, error) {
	chunks := SplitText(text, chunkSize, chunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content to index")
	}
	vectors, err := embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed knowledge chunks: %w", err)
	}
	return &Index{embedder: embedder, chunks: chunks, vectors: vectors}, nil
}

// Retrieve returns up to k chunks most similar to the query terms, joined by
// blank lines, or an empty string when nothing is indexed.
func (ix *Index) Retrieve(ctx context.Context, query []string, k int) (string, error) {
	if len(ix.chunks) == 0 || k <= 0 {
		return "", nil
	}
	q := strings.Join(query, ", ")
	vecs, err := ix.embedder.Embed(ctx, []string{q})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	qv := vecs[0]

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(ix.vectors))
	for i, v := range ix.vectors {
		ranked[i] = scored{idx: i, score: cosine(qv, v)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].idx < ranked[j].idx
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	parts := make([]string, 0, k)
	for _, r := range ranked[:k] {
		parts = append(parts, ix.chunks[r.idx])
	}
	return strings.Join(parts, "\n\n"), nil
}

// SplitText cuts text into chunks of at most size runes with the given
// overlap between consecutive chunks. Whitespace-only chunks are dropped.
func SplitText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{string(runes)}
	}
	if overlap >= size {
		overlap = size / 2
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
