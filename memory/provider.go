package memory

import (
	"context"

	"github.com/cloudwego/eino/components/embedding"
)

// MemoryContent is what a SummaryProvider produces for one session: a
// narrative summary plus the discrete facts worth indexing individually.
type MemoryContent struct {
	Summary  string
	KeyFacts []string
	Category Category
}

// SummaryProvider condenses a session's events into MemoryContent, per
// spec §4.9. Implementations typically delegate to an LlmAgent turn.
type SummaryProvider interface {
	Summarize(ctx context.Context, events []string) (MemoryContent, error)
}

// SummaryFunc adapts a plain function to SummaryProvider.
type SummaryFunc func(ctx context.Context, events []string) (MemoryContent, error)

func (f SummaryFunc) Summarize(ctx context.Context, events []string) (MemoryContent, error) {
	return f(ctx, events)
}

// EmbeddingProvider turns text into a vector, per spec §4.9.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// einoEmbedder bridges a cloudwego/eino embedding.Embedder (float64
// vectors) to this package's EmbeddingProvider (float32), the way the
// teacher's vectorstore.go bridges Eino to chromem-go.
type einoEmbedder struct {
	embedder embedding.Embedder
}

// NewEinoEmbeddingProvider wraps an eino-ext embedding component (e.g.
// embedding/openai, embedding/ollama) as an EmbeddingProvider.
func NewEinoEmbeddingProvider(e embedding.Embedder) EmbeddingProvider {
	return einoEmbedder{embedder: e}
}

func (e einoEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errEmptyEmbedding
	}
	f64 := vectors[0]
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32, nil
}
