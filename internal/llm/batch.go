package llm

import (
	"context"
	"fmt"
)

// DefaultBatchSize is the number of texts sent per embeddings request
const DefaultBatchSize = 64

// EmbedBatched embeds texts in batches of size and concatenates the vectors
func EmbedBatched(ctx context.Context, client Client, texts []string, size int) ([][]float64, error) {
	if size <= 0 {
		size = DefaultBatchSize
	}
	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		batch, err := client.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
