package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lorecheck/lorecheck/internal/extractor"
	"github.com/lorecheck/lorecheck/internal/fusion"
	"github.com/lorecheck/lorecheck/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func testRouter() *chi.Mux {
	logger := testLogger()
	runner := extractor.NewRunner(logger, extractor.NewPatternExtractor(logger))
	p := pipeline.NewPipeline(runner, fusion.NewEngine(fusion.DefaultConfig(), logger), logger)
	h := NewManuscriptHandler(p, nil, nil, logger)

	r := chi.NewRouter()
	r.Post("/v1/manuscripts/{id}/analyze", h.Analyze)
	r.Post("/v1/manuscripts/{id}/reanalyze", h.Reanalyze)
	return r
}

func analyzeBody(ch1, ch2 string) string {
	return fmt.Sprintf(`{
		"title": "draft",
		"chapters": [
			{"id": %q, "index": 1, "offset": 0, "text": %q},
			{"id": %q, "index": 2, "offset": 30000, "text": %q}
		],
		"entities": [{"id": %q, "name": "Maria"}]
	}`, uuid.NewString(), ch1, uuid.NewString(), ch2, uuid.NewString())
}

func TestAnalyzeEndpoint(t *testing.T) {
	r := testRouter()
	body := analyzeBody("Maria had green eyes.", "Maria had blue eyes.")
	req := httptest.NewRequest(http.MethodPost, "/v1/manuscripts/"+uuid.NewString()+"/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.Result
	err := json.Unmarshal(rec.Body.Bytes(), &result)
	assert.NoError(t, err)
	assert.Len(t, result.Contradictions, 1)
	assert.Equal(t, "green", result.Contradictions[0].EvidenceA.Value)
	assert.Equal(t, "blue", result.Contradictions[0].EvidenceB.Value)
}

func TestAnalyzeEndpoint_InvalidManuscriptID(t *testing.T) {
	r := testRouter()
	body := analyzeBody("Maria had green eyes.", "Maria smiled.")
	req := httptest.NewRequest(http.MethodPost, "/v1/manuscripts/not-a-uuid/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpoint_RequiresChapters(t *testing.T) {
	r := testRouter()
	req := httptest.NewRequest(http.MethodPost, "/v1/manuscripts/"+uuid.NewString()+"/analyze",
		strings.NewReader(`{"chapters": [], "entities": []}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReanalyzeEndpoint_FallsBackWithoutState(t *testing.T) {
	r := testRouter()
	body := analyzeBody("Maria had green eyes.", "Maria waved.")
	req := httptest.NewRequest(http.MethodPost, "/v1/manuscripts/"+uuid.NewString()+"/reanalyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.Result
	err := json.Unmarshal(rec.Body.Bytes(), &result)
	assert.NoError(t, err)
	assert.Len(t, result.Consensus, 1)
	assert.Empty(t, result.Contradictions)
}
