package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ziadkadry99/neuronview/internal/config"
	"github.com/ziadkadry99/neuronview/internal/db"
	"github.com/ziadkadry99/neuronview/internal/embeddings"
	"github.com/ziadkadry99/neuronview/internal/logger"
	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/vectordb"
)

// loadConfig loads and validates the config, then configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `neuronview init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger.Setup(level, cfg.Log.Format)
	return cfg, nil
}

// openStore opens the metadata database named by the config.
func openStore(cfg *config.Config) (*db.DB, *neurondb.Store, error) {
	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	format, err := neurondb.ParseEmbeddingFormat(cfg.EmbeddingFormat)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, neurondb.NewStore(database, neurondb.WithEmbeddingFormat(format)), nil
}

// createEmbedderFromConfig returns the query embedder, or nil when
// explanation search is disabled.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	embedder, err := embeddings.New(cfg.EmbedderConfig())
	if errors.Is(err, embeddings.ErrDisabled) {
		return nil, nil
	}
	return embedder, err
}

// loadIndex loads the neighbour index from cfg.IndexPath, or builds it from
// the store and persists it there. An empty IndexPath always rebuilds in
// memory.
func loadIndex(ctx context.Context, cfg *config.Config, store *neurondb.Store, embedder embeddings.Embedder, rebuild bool) (*vectordb.ChromemIndex, error) {
	index, err := vectordb.NewChromemIndex(embedder)
	if err != nil {
		return nil, fmt.Errorf("creating neighbour index: %w", err)
	}

	if cfg.IndexPath != "" && !rebuild {
		if _, err := os.Stat(cfg.IndexPath); err == nil {
			loadErr := index.Load(cfg.IndexPath)
			if loadErr == nil {
				return index, nil
			}
			logger.Log.Warn("could not load neighbour index, rebuilding", "path", cfg.IndexPath, "error", loadErr)
		}
	}

	if _, err := index.Build(ctx, store); err != nil {
		return nil, fmt.Errorf("building neighbour index: %w", err)
	}
	if cfg.IndexPath != "" {
		if err := index.Persist(cfg.IndexPath); err != nil {
			logger.Log.Warn("could not persist neighbour index", "path", cfg.IndexPath, "error", err)
		}
	}
	return index, nil
}
