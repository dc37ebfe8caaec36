package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "streamgate",
	Short: "StreamGate media-stream aggregator and delivery gateway",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./streamgate.yaml", "config file (default is ./streamgate.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
