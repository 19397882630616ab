package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/neuronview/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "neuronview",
	Short: "Interactive explorer for language model neurons",
	Long: `neuronview runs a prompt through an inference backend, projects the
most influential neurons onto a 2D map of their explanation embeddings,
and serves the result as a live dashboard. Neuron metadata is read from
a local SQLite store populated with ` + "`neuronview import`" + `.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
