package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantName string
	}{
		{name: "none", cfg: Config{Provider: ProviderNone}, wantErr: true},
		{name: "empty", cfg: Config{}, wantErr: true},
		{name: "openai without key", cfg: Config{Provider: ProviderOpenAI}, wantErr: true},
		{name: "openai", cfg: Config{Provider: ProviderOpenAI, APIKey: "sk-test"}, wantName: "openai/text-embedding-ada-002"},
		{name: "ollama", cfg: Config{Provider: ProviderOllama, Model: "mxbai-embed-large"}, wantName: "ollama/mxbai-embed-large"},
		{name: "google without key", cfg: Config{Provider: ProviderGoogle}, wantErr: true},
		{name: "google", cfg: Config{Provider: ProviderGoogle, APIKey: "k"}, wantName: "google/text-embedding-004"},
		{name: "unknown", cfg: Config{Provider: "cohere"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got embedder %v", e)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if e.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", e.Name(), tt.wantName)
			}
		})
	}

	if _, err := New(Config{}); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "nomic-embed-text" || req.Input != "dates and times" {
			t.Errorf("request = %+v", req)
		}
		w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	}))
	defer srv.Close()

	vec, err := NewOllamaEmbedder("nomic-embed-text", srv.URL).Embed(context.Background(), "dates and times")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("vec = %v", vec)
	}
}

func TestOllamaEmbedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder("missing", srv.URL).Embed(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestGoogleEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/text-embedding-004:embedContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "secret" {
			t.Errorf("missing api key")
		}
		w.Write([]byte(`{"embedding":{"values":[1,0]}}`))
	}))
	defer srv.Close()

	vec, err := NewGoogleEmbedder("secret", "text-embedding-004", srv.URL).Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Errorf("vec = %v", vec)
	}
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[0.5,0.5],"index":0}],"model":"text-embedding-ada-002"}`))
	}))
	defer srv.Close()

	vec, err := NewOpenAIEmbedder("sk-test", "text-embedding-ada-002", srv.URL).Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[1] != 0.5 {
		t.Errorf("vec = %v", vec)
	}
}

type stubEmbedder struct{ vec []float32 }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) { return s.vec, nil }
func (s stubEmbedder) Name() string                                     { return "stub" }

func TestToChromemFunc(t *testing.T) {
	f := ToChromemFunc(stubEmbedder{vec: []float32{1, 2}})
	vec, err := f(context.Background(), "anything")
	if err != nil || len(vec) != 2 {
		t.Errorf("got %v, %v", vec, err)
	}
}
