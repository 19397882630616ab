package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ziadkadry99/neuronview/internal/embeddings"
	"github.com/ziadkadry99/neuronview/internal/normalize"
	"github.com/ziadkadry99/neuronview/internal/projection"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.NodeType != "mlp_neuron" {
		t.Errorf("expected default node_type mlp_neuron, got %q", cfg.NodeType)
	}
	if cfg.Projection.Method != projection.MethodUMAP {
		t.Errorf("expected default projection umap, got %q", cfg.Projection.Method)
	}
	if cfg.TopAndBottomK != 50 {
		t.Errorf("expected default top_and_bottom_k 50, got %d", cfg.TopAndBottomK)
	}
	if cfg.ActivationLimit != 10 {
		t.Errorf("expected default activation_limit 10, got %d", cfg.ActivationLimit)
	}
	if cfg.SizeRange != (normalize.Range{Min: 0.3, Max: 1.2}) {
		t.Errorf("unexpected default size_range %+v", cfg.SizeRange)
	}
	if cfg.Projection.UMAP() != projection.DefaultUMAP() {
		t.Errorf("projection defaults diverge from DefaultUMAP: %+v", cfg.Projection.UMAP())
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.neuronview.yml")

	original := DefaultConfig()
	original.DatabasePath = "/data/gpt2-small.db"
	original.Port = 9090
	original.Projection.Method = projection.MethodPCA
	original.Projection.MinDist = 0.25
	original.SizeRange = normalize.Range{Min: 0.5, Max: 2}
	original.Search.Provider = embeddings.ProviderOllama
	original.Log.Level = "debug"

	// Save.
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Load back.
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.DatabasePath != original.DatabasePath {
		t.Errorf("database_path: got %q, want %q", loaded.DatabasePath, original.DatabasePath)
	}
	if loaded.Port != 9090 {
		t.Errorf("port: got %d, want 9090", loaded.Port)
	}
	if loaded.Projection != original.Projection {
		t.Errorf("projection: got %+v, want %+v", loaded.Projection, original.Projection)
	}
	if loaded.SizeRange != original.SizeRange {
		t.Errorf("size_range: got %+v, want %+v", loaded.SizeRange, original.SizeRange)
	}
	if loaded.Search.Provider != embeddings.ProviderOllama {
		t.Errorf("search.provider: got %q", loaded.Search.Provider)
	}
	if loaded.Log.Level != "debug" {
		t.Errorf("log.level: got %q", loaded.Log.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected default port, got %d", cfg.Port)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	if err := os.WriteFile(path, []byte("port: 7000\nprojection:\n  method: pca\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7000 || cfg.Projection.Method != "pca" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Projection.NNeighbors != 15 || cfg.InferenceURL != "http://localhost:8000" {
		t.Errorf("defaults lost: n_neighbors=%d inference_url=%q", cfg.Projection.NNeighbors, cfg.InferenceURL)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("NEURONVIEW_INFERENCE_URL", "http://gpu-box:8000")
	t.Setenv("NEURONVIEW_LOG__LEVEL", "warn")
	t.Setenv("NEURONVIEW_PROJECTION__N_NEIGHBORS", "30")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.InferenceURL != "http://gpu-box:8000" {
		t.Errorf("env override failed: got %q", loaded.InferenceURL)
	}
	if loaded.Log.Level != "warn" {
		t.Errorf("nested env override failed: got %q", loaded.Log.Level)
	}
	if loaded.Projection.NNeighbors != 30 {
		t.Errorf("nested numeric env override failed: got %d", loaded.Projection.NNeighbors)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.DatabasePath = "" }},
		{"bad embedding format", func(c *Config) { c.EmbeddingFormat = "float64" }},
		{"relative inference url", func(c *Config) { c.InferenceURL = "localhost:8000" }},
		{"negative timeout", func(c *Config) { c.InferenceTimeoutSeconds = -1 }},
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative concurrency", func(c *Config) { c.FetchConcurrency = -1 }},
		{"negative activation limit", func(c *Config) { c.ActivationLimit = -1 }},
		{"negative top k", func(c *Config) { c.TopAndBottomK = -5 }},
		{"unknown node type", func(c *Config) { c.NodeType = "transformer_block" }},
		{"unknown projection", func(c *Config) { c.Projection.Method = "tsne" }},
		{"min_dist above spread", func(c *Config) { c.Projection.MinDist = 2 }},
		{"zero spread", func(c *Config) { c.Projection.Spread = 0 }},
		{"zero neighbours", func(c *Config) { c.Projection.NNeighbors = 0 }},
		{"inverted size range", func(c *Config) { c.SizeRange = normalize.Range{Min: 2, Max: 1} }},
		{"unknown search provider", func(c *Config) { c.Search.Provider = "cohere" }},
		{"negative audit retention", func(c *Config) { c.AuditRetentionDays = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsNodeTypeAlias(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NodeType = "MLP_NEURON"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected alias to validate, got %v", err)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider embeddings.Provider
		want     string
	}{
		{embeddings.ProviderOpenAI, "OPENAI_API_KEY"},
		{embeddings.ProviderGoogle, "GOOGLE_API_KEY"},
		{embeddings.ProviderOllama, ""},
		{embeddings.ProviderNone, ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestEmbedderConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	cfg := DefaultConfig()
	cfg.Search.Provider = embeddings.ProviderOpenAI
	ec := cfg.EmbedderConfig()
	if ec.APIKey != "sk-from-env" || ec.Provider != embeddings.ProviderOpenAI {
		t.Errorf("EmbedderConfig = %+v", ec)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"NEURONVIEW_PORT":             "port",
		"NEURONVIEW_DATABASE_PATH":    "database_path",
		"NEURONVIEW_SIZE_RANGE__MAX":  "size_range.max",
		"NEURONVIEW_SEARCH__BASE_URL": "search.base_url",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
