package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/neuronview/internal/embeddings"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/nodes"
)

const envPrefix = "NEURONVIEW_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (NEURONVIEW_*). A double underscore in a
// variable name separates nested keys: NEURONVIEW_LOG__LEVEL sets log.level.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var validLogFormats = map[string]bool{"console": true, "json": true}

var validSearchProviders = map[embeddings.Provider]bool{
	"":                        true,
	embeddings.ProviderNone:   true,
	embeddings.ProviderOpenAI: true,
	embeddings.ProviderOllama: true,
	embeddings.ProviderGoogle: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	if _, err := neurondb.ParseEmbeddingFormat(c.EmbeddingFormat); err != nil {
		return fmt.Errorf("invalid embedding_format: %w", err)
	}

	u, err := url.Parse(c.InferenceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid inference_url %q: must be an http(s) URL", c.InferenceURL)
	}
	if c.InferenceTimeoutSeconds < 0 {
		return fmt.Errorf("inference_timeout_seconds must be non-negative")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}

	if c.Log.Level != "" && !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.Format != "" && !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be console or json", c.Log.Format)
	}

	if c.FetchConcurrency < 0 {
		return fmt.Errorf("fetch_concurrency must be non-negative")
	}
	if c.ActivationLimit < 0 {
		return fmt.Errorf("activation_limit must be non-negative")
	}
	if c.TopAndBottomK < 0 {
		return fmt.Errorf("top_and_bottom_k must be non-negative")
	}

	if _, err := nodes.ParseNodeType(c.NodeType); err != nil {
		return fmt.Errorf("invalid node_type: %w", err)
	}

	if _, err := c.Projection.Reducer(); err != nil {
		return err
	}
	p := c.Projection
	if p.Spread <= 0 || p.MinDist < 0 || p.MinDist > p.Spread {
		return fmt.Errorf("projection.min_dist must lie in [0, spread] and spread must be positive")
	}
	if p.NNeighbors < 1 {
		return fmt.Errorf("projection.n_neighbors must be at least 1")
	}

	if c.SizeRange.Min < 0 || c.SizeRange.Min > c.SizeRange.Max {
		return fmt.Errorf("size_range must satisfy 0 <= min <= max")
	}

	if c.AuditRetentionDays < 0 {
		return fmt.Errorf("audit_retention_days must be non-negative")
	}

	if !validSearchProviders[c.Search.Provider] {
		return fmt.Errorf("invalid search.provider %q: must be one of none, openai, ollama, google", c.Search.Provider)
	}

	return nil
}

// InferenceTimeout returns the inference request timeout.
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.InferenceTimeoutSeconds) * time.Second
}

// EmbedderConfig returns the query embedder settings, with the API key taken
// from the environment.
func (c *Config) EmbedderConfig() embeddings.Config {
	return embeddings.Config{
		Provider: c.Search.Provider,
		Model:    c.Search.Model,
		BaseURL:  c.Search.BaseURL,
		APIKey:   os.Getenv(APIKeyEnvVar(c.Search.Provider)),
	}
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider embeddings.Provider) string {
	switch provider {
	case embeddings.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case embeddings.ProviderGoogle:
		return "GOOGLE_API_KEY"
	default:
		return ""
	}
}
