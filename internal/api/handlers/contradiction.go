package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/store"
)

type ContradictionHandler struct {
	contradictions domain.ContradictionStore
}

func NewContradictionHandler(contradictions domain.ContradictionStore) *ContradictionHandler {
	return &ContradictionHandler{contradictions: contradictions}
}

func (h *ContradictionHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contradiction id")
		return
	}
	if h.contradictions == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	c, err := h.contradictions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contradiction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load contradiction")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// Dismiss marks a contradiction as reviewed and intentional. The record stays;
// the author's text is never touched.
func (h *ContradictionHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contradiction id")
		return
	}
	if h.contradictions == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	if err := h.contradictions.Dismiss(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "contradiction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to dismiss contradiction")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
