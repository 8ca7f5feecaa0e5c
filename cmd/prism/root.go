package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "prism",
	Short: "Prism - credential-pool gateway for generative APIs",
	Long: `Prism fronts a rate-limited, key-authenticated generative-content API
with a pool of credentials.

It relays requests while rotating through the pool, providing:
  - Round-robin key selection with per-key rate ceilings
  - Retry across keys when a credential is rejected or throttled
  - Quarantine of repeatedly failing keys
  - Background probing that returns recovered keys to rotation
  - Pool status and reset operations for operators`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
