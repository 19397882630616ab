package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/neuronview/internal/importer"
	"github.com/ziadkadry99/neuronview/internal/progress"
)

var (
	importStrict  bool
	importNoIndex bool
)

var importCmd = &cobra.Command{
	Use:   "import <glob>...",
	Short: "Load neuron metadata, activations and topics from JSONL files",
	Long: `Imports JSONL files (optionally gzip-compressed) into the metadata store.
Each line is a JSON object whose "type" is neuron, activations or topic.
Patterns support ** to match nested directories.

After importing, the neighbour index at index_path is rebuilt unless
--no-index is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		im := importer.New(store, progress.NewReporter("Importing"), importer.Options{Strict: importStrict})
		stats, err := im.Import(ctx, args)
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d neuron(s), %d activation set(s) and %d topic(s) from %d file(s)",
			stats.Neurons, stats.Activations, stats.Topics, stats.Files)
		if stats.Skipped > 0 {
			fmt.Printf("; skipped %d line(s)", stats.Skipped)
		}
		fmt.Println()

		if importNoIndex || cfg.IndexPath == "" {
			return nil
		}
		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		index, err := loadIndex(ctx, cfg, store, embedder, true)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d explanation embedding(s) in %s\n", index.Count(), cfg.IndexPath)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importStrict, "strict", false, "Abort on the first malformed line instead of skipping it")
	importCmd.Flags().BoolVar(&importNoIndex, "no-index", false, "Skip rebuilding the neighbour index")
	rootCmd.AddCommand(importCmd)
}
