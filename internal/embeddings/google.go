package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// GoogleEmbedder embeds queries with the Generative Language API.
type GoogleEmbedder struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewGoogleEmbedder(apiKey, model, baseURL string) *GoogleEmbedder {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleEmbedder{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

func (e *GoogleEmbedder) Name() string { return "google/" + e.model }

type googlePart struct {
	Text string `json:"text"`
}

func (e *GoogleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var in struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
	}
	in.Content.Parts = []googlePart{{Text: text}}

	var out struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	endpoint := fmt.Sprintf("%s/models/%s:embedContent?key=%s", e.baseURL, e.model, url.QueryEscape(e.apiKey))
	if err := postJSON(ctx, e.client, "google", endpoint, in, &out); err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) == 0 {
		return nil, fmt.Errorf("google: empty embedding for %q", e.model)
	}
	return out.Embedding.Values, nil
}
