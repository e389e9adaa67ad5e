package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entity is a canonical character or other narrative entity. Entities are owned
// by the upstream coreference collaborator; this service only reads them and
// keys attribute streams by their stable ID.
type Entity struct {
	ID           uuid.UUID      `json:"id"`
	ManuscriptID uuid.UUID      `json:"manuscript_id"`
	Name         string         `json:"name"`
	Aliases      []string       `json:"aliases,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Matches reports whether the given surface form refers to this entity by
// canonical name or alias.
func (e *Entity) Matches(name string) bool {
	if strings.EqualFold(e.Name, name) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// Mention is a single occurrence of an entity in the text, with global
// character offsets supplied by the segmentation collaborator.
type Mention struct {
	EntityID uuid.UUID `json:"entity_id"`
	Name     string    `json:"name"`
	Start    int       `json:"start"`
	End      int       `json:"end"`
}
