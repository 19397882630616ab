package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// OllamaEmbedder embeds queries with a local Ollama server.
type OllamaEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaEmbedder targets baseURL, or http://localhost:11434 when empty.
func NewOllamaEmbedder(model, baseURL string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedder{
		endpoint: strings.TrimSuffix(baseURL, "/") + "/api/embed",
		model:    model,
		client:   newHTTPClient(),
	}
}

func (e *OllamaEmbedder) Name() string { return "ollama/" + e.model }

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	in := struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}{e.model, text}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := postJSON(ctx, e.client, "ollama", e.endpoint, in, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama: no embedding for %q", e.model)
	}
	return out.Embeddings[0], nil
}
