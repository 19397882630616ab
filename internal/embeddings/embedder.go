// Package embeddings turns free-text queries into vectors in the same space as
// the stored explanation embeddings, so explanations can be searched by meaning.
package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Embedder embeds a single query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the provider and model, e.g. "ollama/nomic-embed-text".
	Name() string
}

// Provider names a query embedding backend.
type Provider string

const (
	ProviderNone   Provider = "none"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	ProviderGoogle Provider = "google"
)

// ErrDisabled is returned by New when no provider is configured.
var ErrDisabled = errors.New("explanation search is disabled")

// Config selects and configures a provider. An empty BaseURL uses the
// provider's public endpoint.
type Config struct {
	Provider Provider
	Model    string
	BaseURL  string
	APIKey   string
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "text-embedding-ada-002"
	case ProviderOllama:
		return "nomic-embed-text"
	case ProviderGoogle:
		return "text-embedding-004"
	default:
		return ""
	}
}

// New builds the embedder named by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel(cfg.Provider)
	}
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, ErrDisabled
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai embeddings need an API key (OPENAI_API_KEY)")
		}
		return NewOpenAIEmbedder(cfg.APIKey, model, cfg.BaseURL), nil
	case ProviderOllama:
		return NewOllamaEmbedder(model, cfg.BaseURL), nil
	case ProviderGoogle:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("google embeddings need an API key (GOOGLE_API_KEY)")
		}
		return NewGoogleEmbedder(cfg.APIKey, model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
