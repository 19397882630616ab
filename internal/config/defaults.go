package config

import (
	"github.com/ziadkadry99/neuronview/internal/embeddings"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/nodeview"
	"github.com/ziadkadry99/neuronview/internal/projection"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = ".neuronview.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	u := projection.DefaultUMAP()
	return &Config{
		DatabasePath:            "neuronview.db",
		EmbeddingFormat:         string(neurondb.FormatJSON),
		IndexPath:               "",
		InferenceURL:            "http://localhost:8000",
		InferenceTimeoutSeconds: 120,
		Port:                    8080,
		Log:                     LogConfig{Level: "info", Format: "console"},
		FetchConcurrency:        projection.DefaultConcurrency,
		ActivationLimit:         neurondb.DefaultActivationLimit,
		NodeType:                string(nodes.MLPNeuron),
		TopAndBottomK:           50,
		Projection: ProjectionConfig{
			Method:             projection.MethodUMAP,
			NNeighbors:         u.NNeighbors,
			MinDist:            u.MinDist,
			Spread:             u.Spread,
			NEpochs:            u.NEpochs,
			LearningRate:       u.LearningRate,
			NegativeSampleRate: u.NegativeSampleRate,
			Seed:               u.Seed,
		},
		SizeRange:          nodeview.DefaultSizeRange,
		Search:             SearchConfig{Provider: embeddings.ProviderNone},
		AuditRetentionDays: 30,
	}
}

// UMAP returns the projection parameters as reducer settings.
func (p ProjectionConfig) UMAP() projection.UMAP {
	return projection.UMAP{
		NNeighbors:         p.NNeighbors,
		MinDist:            p.MinDist,
		Spread:             p.Spread,
		NEpochs:            p.NEpochs,
		LearningRate:       p.LearningRate,
		NegativeSampleRate: p.NegativeSampleRate,
		Seed:               p.Seed,
	}
}

// Reducer builds the configured reducer.
func (p ProjectionConfig) Reducer() (projection.Reducer, error) {
	return projection.NewReducer(p.Method, p.UMAP())
}
