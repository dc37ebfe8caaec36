package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/streamgate/streamgate/internal/config"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the gateway configuration file",
	}

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration as YAML",
		RunE:  runConfigPrint,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write out a default configuration file",
		RunE:  runConfigInit,
	}

	configCmd.AddCommand(printCmd)
	configCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigPrint loads configFile if present (falling back to defaults) and
// echoes the fully resolved configuration, env overrides included.
func runConfigPrint(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

// runConfigInit writes a DefaultConfig to configFile, refusing to overwrite
// an existing file.
func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", configFile)
	}

	cfg := config.DefaultConfig()
	if err := config.SaveToFile(cfg, configFile); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(os.Stdout, "wrote default configuration to %s\n", configFile)
	return nil
}
