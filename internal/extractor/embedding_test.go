package extractor

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/embedding"
)

func TestEmbeddingExtractor_ExactLexiconMatch(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria's green eyes shone.", 0, maria)

	e := NewEmbeddingExtractor(embedding.NewMockClient(), nil, testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Type != domain.AttrEyeColor || c.Value != "green" || c.EntityID != maria.id {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if c.Method != domain.MethodEmbedding {
		t.Fatalf("unexpected method: %+v", c)
	}
	// identical word and lexicon entry embed to the same vector, so the
	// confidence is exactly the similarity scale
	if math.Abs(float64(c.Confidence)-similarityConfidenceScale) > 1e-6 {
		t.Fatalf("expected confidence %.2f, got %.3f", similarityConfidenceScale, c.Confidence)
	}
	if c.Span.Start != 8 || c.Span.End != 13 {
		t.Fatalf("span must cover the adjective: %+v", c.Span)
	}
}

func TestEmbeddingExtractor_ConventionalSimile(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria smiled. She had eyes like the sea.", 0, maria)

	e := NewEmbeddingExtractor(embedding.NewMockClient(), nil, testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %+v", len(cands), cands)
	}
	c := cands[0]
	if c.Type != domain.AttrEyeColor || c.Value != "blue" || c.RawValue != "sea" {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if c.Confidence != metaphorConfidence {
		t.Fatalf("similes carry the reduced confidence, got %.3f", c.Confidence)
	}
	if c.EntityID != maria.id {
		t.Fatal("owner must fall back to the region's only entity")
	}
}

func TestEmbeddingExtractor_CachesPhraseEmbeddings(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria's green eyes shone.", 0, maria)

	client := embedding.NewMockClient()
	e := NewEmbeddingExtractor(client, nil, testLogger())
	if _, err := e.Propose(context.Background(), region); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	afterFirst := len(client.EmbedCalls)
	if _, err := e.Propose(context.Background(), region); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.EmbedCalls) != afterFirst {
		t.Fatalf("second pass must be served from cache, calls went %d -> %d", afterFirst, len(client.EmbedCalls))
	}
	greens := 0
	for _, call := range client.EmbedCalls {
		if call == "green" {
			greens++
		}
	}
	if greens != 1 {
		t.Fatalf("expected a single embed call for green, got %d", greens)
	}
}

func TestEmbeddingExtractor_NilClientProposesNothing(t *testing.T) {
	maria := testEntity{id: uuid.New(), name: "Maria"}
	region := makeRegion("Maria's green eyes shone.", 0, maria)

	e := NewEmbeddingExtractor(nil, nil, testLogger())
	cands, err := e.Propose(context.Background(), region)
	if err != nil || cands != nil {
		t.Fatalf("nil client must be a silent no-op, got %v / %+v", err, cands)
	}
}
