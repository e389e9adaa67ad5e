package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/store"
)

// EntityHandler serves the derived character sheet: every consensus attribute
// known for an entity, in stream order.
type EntityHandler struct {
	entities  domain.EntityStore
	consensus domain.ConsensusStore
}

func NewEntityHandler(entities domain.EntityStore, consensus domain.ConsensusStore) *EntityHandler {
	return &EntityHandler{entities: entities, consensus: consensus}
}

type attributeSheetResponse struct {
	Entity     *domain.Entity              `json:"entity"`
	Attributes []domain.ConsensusAttribute `json:"attributes"`
}

func (h *EntityHandler) GetAttributes(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return
	}
	if h.entities == nil || h.consensus == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	entity, err := h.entities.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entity not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load entity")
		return
	}

	attrs, err := h.consensus.ListByEntity(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load attributes")
		return
	}
	if attrs == nil {
		attrs = []domain.ConsensusAttribute{}
	}

	writeJSON(w, http.StatusOK, attributeSheetResponse{Entity: entity, Attributes: attrs})
}
