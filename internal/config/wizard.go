package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/manifoldco/promptui"

	"github.com/ziadkadry99/neuronview/internal/embeddings"
	"github.com/ziadkadry99/neuronview/internal/nodes"
	"github.com/ziadkadry99/neuronview/internal/projection"
)

// detectDatabase returns an existing SQLite file in the current directory,
// or the default database path.
func detectDatabase() string {
	for _, pattern := range []string{"*.db", "*.sqlite", "*.sqlite3"} {
		matches, _ := filepath.Glob(pattern)
		if len(matches) > 0 {
			return matches[0]
		}
	}
	return DefaultConfig().DatabasePath
}

// RunWizard runs an interactive configuration wizard and saves the result to
// path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to neuronview! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Metadata store.
	dbPrompt := promptui.Prompt{
		Label:   "SQLite database with neuron metadata",
		Default: detectDatabase(),
	}
	dbPath, err := dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}
	cfg.DatabasePath = dbPath

	// 2. Inference backend.
	urlPrompt := promptui.Prompt{
		Label:   "Inference backend URL",
		Default: cfg.InferenceURL,
	}
	inferenceURL, err := urlPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("inference url: %w", err)
	}
	cfg.InferenceURL = inferenceURL

	// 3. Dashboard port.
	portPrompt := promptui.Prompt{
		Label:   "Dashboard port",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			p, err := strconv.Atoi(s)
			if err != nil || p < 1 || p > 65535 {
				return fmt.Errorf("enter a port between 1 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 4. Node kind to project.
	typePrompt := promptui.Select{
		Label: "Node kind shown in the view",
		Items: []string{
			string(nodes.MLPNeuron),
			string(nodes.AutoencoderLatent),
			string(nodes.MLPAutoencoderLatent),
			string(nodes.AttentionAutoencoderLatent),
		},
	}
	_, nodeType, err := typePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("node type selection: %w", err)
	}
	cfg.NodeType = nodeType

	// 5. Projection method.
	methodPrompt := promptui.Select{
		Label: "Projection method",
		Items: []string{
			"umap - preserves local neighbourhoods",
			"pca  - fast linear projection",
		},
	}
	methodIdx, _, err := methodPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("projection selection: %w", err)
	}
	cfg.Projection.Method = []string{projection.MethodUMAP, projection.MethodPCA}[methodIdx]

	// 6. Explanation search.
	searchPrompt := promptui.Select{
		Label: "Query embeddings for explanation search",
		Items: []string{
			string(embeddings.ProviderNone),
			string(embeddings.ProviderOpenAI),
			string(embeddings.ProviderOllama),
			string(embeddings.ProviderGoogle),
		},
	}
	_, provider, err := searchPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("search provider selection: %w", err)
	}
	cfg.Search.Provider = embeddings.Provider(provider)
	cfg.Search.Model = embeddings.DefaultModel(cfg.Search.Provider)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Check for API key.
	if envVar := APIKeyEnvVar(cfg.Search.Provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before starting the server.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
