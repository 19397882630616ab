package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/neuronview/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize neuronview configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure the metadata store, inference backend and dashboard, and writes a .neuronview.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
