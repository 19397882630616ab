package config

import (
	"github.com/ziadkadry99/neuronview/internal/embeddings"
	"github.com/ziadkadry99/neuronview/internal/normalize"
)

// Config is the top-level neuronview configuration, corresponding to .neuronview.yml.
type Config struct {
	DatabasePath            string           `yaml:"database_path" koanf:"database_path"`
	EmbeddingFormat         string           `yaml:"embedding_format" koanf:"embedding_format"`
	IndexPath               string           `yaml:"index_path" koanf:"index_path"`
	InferenceURL            string           `yaml:"inference_url" koanf:"inference_url"`
	InferenceTimeoutSeconds int              `yaml:"inference_timeout_seconds" koanf:"inference_timeout_seconds"`
	Port                    int              `yaml:"port" koanf:"port"`
	Log                     LogConfig        `yaml:"log" koanf:"log"`
	FetchConcurrency        int              `yaml:"fetch_concurrency" koanf:"fetch_concurrency"`
	ActivationLimit         int              `yaml:"activation_limit" koanf:"activation_limit"`
	NodeType                string           `yaml:"node_type" koanf:"node_type"`
	TopAndBottomK           int              `yaml:"top_and_bottom_k" koanf:"top_and_bottom_k"`
	Projection              ProjectionConfig `yaml:"projection" koanf:"projection"`
	SizeRange               normalize.Range  `yaml:"size_range" koanf:"size_range"`
	Search                  SearchConfig     `yaml:"search" koanf:"search"`
	AuditRetentionDays      int              `yaml:"audit_retention_days" koanf:"audit_retention_days"`
}

// LogConfig selects log verbosity and output format.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// ProjectionConfig picks the reducer and its UMAP parameters.
type ProjectionConfig struct {
	Method             string  `yaml:"method" koanf:"method"`
	NNeighbors         int     `yaml:"n_neighbors" koanf:"n_neighbors"`
	MinDist            float64 `yaml:"min_dist" koanf:"min_dist"`
	Spread             float64 `yaml:"spread" koanf:"spread"`
	NEpochs            int     `yaml:"n_epochs" koanf:"n_epochs"`
	LearningRate       float64 `yaml:"learning_rate" koanf:"learning_rate"`
	NegativeSampleRate float64 `yaml:"negative_sample_rate" koanf:"negative_sample_rate"`
	Seed               int64   `yaml:"seed" koanf:"seed"`
}

// SearchConfig configures the query embedder used for explanation search.
// The API key is read from the provider's conventional environment variable.
type SearchConfig struct {
	Provider embeddings.Provider `yaml:"provider" koanf:"provider"`
	Model    string              `yaml:"model" koanf:"model"`
	BaseURL  string              `yaml:"base_url" koanf:"base_url"`
}
