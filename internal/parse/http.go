package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lorecheck/lorecheck/internal/domain"
)

// HTTPProvider posts each sentence to an external parse service and decodes
// the grammatical-relation graph it returns. Token Start offsets in the
// response are sentence-local, as the dependency extractor expects.
type HTTPProvider struct {
	url        string
	httpClient *http.Client
}

func NewHTTPProvider(url string) *HTTPProvider {
	return &HTTPProvider{
		url:        url,
		httpClient: &http.Client{},
	}
}

type parseRequest struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
}

func (p *HTTPProvider) Parse(ctx context.Context, sent domain.Sentence) (*domain.DepGraph, error) {
	body, err := json.Marshal(parseRequest{Text: sent.Text, Start: sent.Start})
	if err != nil {
		return nil, fmt.Errorf("marshal parse request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create parse request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parse request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("parse service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var graph domain.DepGraph
	if err := json.Unmarshal(respBody, &graph); err != nil {
		return nil, fmt.Errorf("unmarshal parse response: %w", err)
	}
	return &graph, nil
}
