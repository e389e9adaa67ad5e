package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
)

const mockDimensions = 64

// MockClient returns deterministic pseudo-embeddings: the same text always
// maps to the same vector, and different texts are close to orthogonal.
// Good enough for tests and offline runs where only exact lexicon matches
// should score high.
type MockClient struct {
	// Call tracking for assertions
	EmbedCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	out := make([]float32, mockDimensions)
	for i := range out {
		out[i] = float32(rng.NormFloat64())
	}
	return out, nil
}

func (c *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := c.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}
