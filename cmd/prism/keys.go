package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prism-gw/prism/pkg/config"
	"prism-gw/prism/pkg/keypool"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configured pool keys (masked)",
	Long: `List the credentials configured in the pool, masked for display.

This reads the configuration file only; it does not reflect runtime state.
Use GET /v1/keys on a running gateway for live status.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		fmt.Printf("%d keys configured:\n", len(cfg.Pool.Keys))
		for i, key := range cfg.Pool.Keys {
			fmt.Printf("  %2d. %s\n", i+1, keypool.MaskKey(key))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
