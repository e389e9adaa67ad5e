package parse

import (
	"fmt"

	"github.com/lorecheck/lorecheck/internal/domain"
)

// Provider constants
const (
	ProviderHTTP = "http"
	ProviderNone = "none"
)

// NewProvider creates the grammatical-parse collaborator based on the
// provider name. "none" returns a nil provider: the dependency extractor
// proposes nothing without one and the pipeline runs on the remaining
// methods.
func NewProvider(provider, url string) (domain.ParseProvider, error) {
	switch provider {
	case ProviderHTTP:
		if url == "" {
			return nil, fmt.Errorf("PARSE_SERVICE_URL is required for the http parse provider")
		}
		return NewHTTPProvider(url), nil

	case ProviderNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown parse provider: %s (valid options: http, none)", provider)
	}
}
