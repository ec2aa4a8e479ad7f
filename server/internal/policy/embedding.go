package policy

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Embedder produces vectors for documents and queries.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingRetriever ranks corpus sections by cosine similarity of their
// embeddings to the query embedding. Every Retrieve makes a network call
// through the Embedder, so it is only wired in agentic mode.
type EmbeddingRetriever struct {
	embedder Embedder
	sections []Chunk
	vectors  [][]float32
}

// NewEmbeddingRetriever embeds every section of c up front.
func NewEmbeddingRetriever(ctx context.Context, c *Corpus, e Embedder) (*EmbeddingRetriever, error) {
	sections := c.Sections()
	texts := make([]string, len(sections))
	for i, s := range sections {
		texts[i] = s.Text
	}
	vecs, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("policy embeddings: %w", err)
	}
	if len(vecs) != len(sections) {
		return nil, fmt.Errorf("policy embeddings: got %d vectors for %d sections", len(vecs), len(sections))
	}
	return &EmbeddingRetriever{embedder: e, sections: sections, vectors: vecs}, nil
}

// Retrieve implements Retriever.
func (r *EmbeddingRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error) {
	if topK <= 0 {
		topK = 1
	}
	q, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("policy embeddings: query: %w", err)
	}

	ranked := make([]Chunk, len(r.sections))
	for i, s := range r.sections {
		s.Score = cosine(q, r.vectors[i])
		ranked[i] = s
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if topK > len(ranked) {
		topK = len(ranked)
	}
	return ranked[:topK], nil
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
