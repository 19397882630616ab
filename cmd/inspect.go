package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/neuronview/internal/neurondb"
	"github.com/ziadkadry99/neuronview/internal/rank"
	"github.com/ziadkadry99/neuronview/internal/vectordb"
)

var (
	inspectLimit   int
	inspectSimilar int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <layer> <index>",
	Short: "Print a neuron's metadata, ranks, activations and nearest explanations",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		layer, err := strconv.Atoi(args[0])
		if err != nil || layer < 0 {
			return fmt.Errorf("layer must be a non-negative integer, got %q", args[0])
		}
		index, err := strconv.Atoi(args[1])
		if err != nil || index < 0 {
			return fmt.Errorf("index must be a non-negative integer, got %q", args[1])
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := context.Background()
		rec, err := store.GetNeuron(ctx, layer, index)
		if errors.Is(err, neurondb.ErrNotFound) {
			return fmt.Errorf("no neuron at layer %d index %d", layer, index)
		}
		if err != nil {
			return err
		}
		topics, err := store.ListTopics(ctx)
		if err != nil {
			return err
		}
		fmt.Print(neurondb.FormatNeuron(rec, neurondb.TopicsByID(topics)))

		var sample []*neurondb.NeuronRecord
		if err := store.AllNeurons(ctx, func(n *neurondb.NeuronRecord) error {
			sample = append(sample, n)
			return nil
		}); err != nil {
			return err
		}
		fmt.Printf("\nRank among %d stored neuron(s)\n", len(sample))
		fmt.Print(rank.FormatRanks(rank.RankRecord(rec, sample)))

		samples, err := store.ListActivations(ctx, layer, index, string(neurondb.CategoryTop), inspectLimit)
		if err != nil {
			return err
		}
		if len(samples) > 0 {
			fmt.Println("\nTop activations")
			fmt.Print(neurondb.FormatActivations(samples))
		}

		if inspectSimilar <= 0 {
			return nil
		}
		// Neighbours only; the query embedder is not needed.
		neighbourIndex, err := loadIndex(ctx, cfg, store, nil, false)
		if err != nil {
			return err
		}
		neighbours, err := neighbourIndex.Similar(ctx, layer, index, inspectSimilar, nil)
		if errors.Is(err, vectordb.ErrNotIndexed) {
			fmt.Println("\nNo explanation embedding indexed for this neuron.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Print(vectordb.FormatNeighbours(neighbours))
		return nil
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 5, "Number of top activation examples to print")
	inspectCmd.Flags().IntVar(&inspectSimilar, "similar", 5, "Number of similar neurons to print (0 to skip)")
	rootCmd.AddCommand(inspectCmd)
}
