package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streamgate/streamgate/internal/config"
)

func init() {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file without starting the server",
		RunE:  runValidate,
	}

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	fmt.Printf("%s is valid\n", configFile)
	return nil
}
