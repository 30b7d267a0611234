package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "reaper",
		Short: "Terminate EC2 instances and report per-instance outcomes",
		Long: `Reaper - EC2 termination request handler

Reaper accepts one or more instance IDs, snapshots their current state,
issues a terminate call for each one and returns a report that sorts
every instance into successful, blocked or failed.

Configuration comes from an optional TOML/YAML file and the environment
(INSTANCE_IDS, AWS_REGION, LOG_LEVEL, ...).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Reaper {{.Version}} - EC2 termination request handler
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.toml or .yaml); environment only when empty")
}
