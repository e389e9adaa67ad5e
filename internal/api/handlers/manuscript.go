package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/domain"
	"github.com/lorecheck/lorecheck/internal/pipeline"
	"go.uber.org/zap"
)

// ManuscriptHandler accepts pre-segmented manuscripts with resolved entities
// and runs consistency analysis on them. Segmentation and coreference are the
// caller's responsibility.
type ManuscriptHandler struct {
	pipeline       *pipeline.Pipeline
	entities       domain.EntityStore
	contradictions domain.ContradictionStore
	logger         *zap.Logger
}

func NewManuscriptHandler(p *pipeline.Pipeline, entities domain.EntityStore, contradictions domain.ContradictionStore, logger *zap.Logger) *ManuscriptHandler {
	return &ManuscriptHandler{pipeline: p, entities: entities, contradictions: contradictions, logger: logger}
}

type chapterRequest struct {
	ID     string `json:"id"`
	Index  int    `json:"index"`
	Offset int    `json:"offset"`
	Text   string `json:"text"`
	Device bool   `json:"device,omitempty"`
}

type entityRequest struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

type analyzeRequest struct {
	Title           string           `json:"title,omitempty"`
	Chapters        []chapterRequest `json:"chapters"`
	Entities        []entityRequest  `json:"entities"`
	ChangedChapters []string         `json:"changed_chapters,omitempty"`
}

func (h *ManuscriptHandler) decode(w http.ResponseWriter, r *http.Request) (*domain.Manuscript, []domain.Entity, []uuid.UUID, bool) {
	manuscriptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid manuscript id")
		return nil, nil, nil, false
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, nil, false
	}
	if len(req.Chapters) == 0 {
		writeError(w, http.StatusBadRequest, "chapters are required")
		return nil, nil, nil, false
	}

	m := &domain.Manuscript{ID: manuscriptID, Title: req.Title}
	for _, ch := range req.Chapters {
		id, err := uuid.Parse(ch.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid chapter id")
			return nil, nil, nil, false
		}
		m.Chapters = append(m.Chapters, domain.Chapter{
			ID:     id,
			Index:  ch.Index,
			Offset: ch.Offset,
			Text:   ch.Text,
			Device: ch.Device,
		})
	}

	var entities []domain.Entity
	for _, e := range req.Entities {
		id, err := uuid.Parse(e.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid entity id")
			return nil, nil, nil, false
		}
		entities = append(entities, domain.Entity{
			ID:           id,
			ManuscriptID: manuscriptID,
			Name:         e.Name,
			Aliases:      e.Aliases,
		})
	}

	var changed []uuid.UUID
	for _, c := range req.ChangedChapters {
		id, err := uuid.Parse(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid changed chapter id")
			return nil, nil, nil, false
		}
		changed = append(changed, id)
	}

	return m, entities, changed, true
}

// Analyze runs a full pass over the submitted manuscript.
func (h *ManuscriptHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	m, entities, _, ok := h.decode(w, r)
	if !ok {
		return
	}

	if h.entities != nil {
		for i := range entities {
			if err := h.entities.Upsert(r.Context(), &entities[i]); err != nil {
				h.logger.Warn("entity upsert failed",
					zap.String("name", entities[i].Name), zap.Error(err))
			}
		}
	}

	result, err := h.pipeline.Analyze(r.Context(), m, entities)
	if err != nil {
		h.logger.Error("analysis failed",
			zap.String("manuscript_id", m.ID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Reanalyze re-runs extraction for the listed chapters only, falling back to
// a full pass when no prior analysis exists.
func (h *ManuscriptHandler) Reanalyze(w http.ResponseWriter, r *http.Request) {
	m, entities, changed, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.pipeline.Reanalyze(r.Context(), m, entities, changed)
	if err != nil {
		h.logger.Error("re-analysis failed",
			zap.String("manuscript_id", m.ID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "re-analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListContradictions returns the stored contradictions of a manuscript,
// dismissed ones included only on request.
func (h *ManuscriptHandler) ListContradictions(w http.ResponseWriter, r *http.Request) {
	manuscriptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid manuscript id")
		return
	}
	if h.contradictions == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	includeDismissed := r.URL.Query().Get("include_dismissed") == "true"
	results, err := h.contradictions.ListByManuscript(r.Context(), manuscriptID, includeDismissed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list contradictions")
		return
	}
	if results == nil {
		results = []domain.Contradiction{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"contradictions": results})
}
