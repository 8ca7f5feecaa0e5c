package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prism-gw/prism/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the gateway.

Checks the whole configuration tree: server and upstream settings, the
credential pool (at least one key, no duplicates, sane thresholds),
recovery probing, storage, and telemetry.

Examples:
  # Validate the default config
  prism validate

  # Validate a specific file
  prism validate --config /etc/prism/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Printf("Configuration %s is valid\n", cfgFile)
		fmt.Printf("  Pool:     %d keys, max_failures=%d, max_retries=%d\n",
			len(cfg.Pool.Keys), cfg.Pool.MaxFailures, cfg.Pool.MaxRetries)
		fmt.Printf("  Upstream: %s\n", cfg.Upstream.BaseURL)
		fmt.Printf("  Listen:   %s\n", cfg.Server.ListenAddress)
		fmt.Printf("  Storage:  %s\n", cfg.Storage.Backend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
