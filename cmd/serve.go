package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/neuronview/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing neuron lookup, ranking and explanation search tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr; stdout carries the MCP protocol.
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, err := loadIndex(context.Background(), cfg, store, embedder, false)
		if err != nil {
			return err
		}

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "neuronview MCP server started on stdio (db=%s, indexed=%d)\n", cfg.DatabasePath, index.Count())

		srv := mcpserver.NewServer(store, index)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
