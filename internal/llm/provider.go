package llm

import (
	"fmt"

	"github.com/lorecheck/lorecheck/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
	ProviderNone   = "none"
)

// NewClient creates a generative-language client based on the provider name.
// "none" returns a nil client: the generative extractor is optional and the
// pipeline runs on the remaining methods without it.
func NewClient(provider, apiKey string) (domain.GenerativeClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(), nil

	case ProviderNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, mock, none)", provider)
	}
}
