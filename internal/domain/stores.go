package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EntityStore interface {
	Upsert(ctx context.Context, e *Entity) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entity, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID) ([]Entity, error)
	FindByNameOrAlias(ctx context.Context, manuscriptID uuid.UUID, name string) (*Entity, error)
}

type ConsensusStore interface {
	Upsert(ctx context.Context, c *ConsensusAttribute) error
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]ConsensusAttribute, error)
	DeleteByManuscript(ctx context.Context, manuscriptID uuid.UUID) (int64, error)
	DeleteByStream(ctx context.Context, entityID uuid.UUID, attrType AttributeType, key string) (int64, error)
}

type ContradictionStore interface {
	Create(ctx context.Context, c *Contradiction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contradiction, error)
	ListByManuscript(ctx context.Context, manuscriptID uuid.UUID, includeDismissed bool) ([]Contradiction, error)
	Dismiss(ctx context.Context, id uuid.UUID) error
	DeleteByManuscript(ctx context.Context, manuscriptID uuid.UUID) (int64, error)
	DeleteByStream(ctx context.Context, entityID uuid.UUID, attrType AttributeType, key string) (int64, error)
}

// LexiconMatch is a canonical attribute value scored by vector similarity.
type LexiconMatch struct {
	Type       AttributeType `json:"type"`
	Value      string        `json:"value"`
	Similarity float32       `json:"similarity"`
}

// LexiconStore holds embeddings of canonical attribute values for the
// embedding extractor's nearest-value lookup.
type LexiconStore interface {
	UpsertValue(ctx context.Context, attrType AttributeType, value string, embedding []float32) error
	Nearest(ctx context.Context, attrType AttributeType, embedding []float32, limit int) ([]LexiconMatch, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbeddingClient is implemented by clients that can embed several texts
// in one call; bulk jobs fall back to per-text Embed when it is absent.
type BatchEmbeddingClient interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerativeClient is the optional generative-language collaborator. Invoke
// must respect the timeout; callers degrade to no candidate on error.
type GenerativeClient interface {
	Invoke(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// ParseProvider is the optional grammatical-relation-graph collaborator.
type ParseProvider interface {
	Parse(ctx context.Context, sentence Sentence) (*DepGraph, error)
}

// AlertNotifier receives contradictions for the user-facing alerting layer.
// Both evidences and the confidence must stay visible downstream; the core
// never corrects text on its own.
type AlertNotifier interface {
	Notify(ctx context.Context, c Contradiction)
}
