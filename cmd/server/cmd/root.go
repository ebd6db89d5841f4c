package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "runwaylens",
	Short: "Startup KPI consolidation and runway tracking service",
	Long: `RunwayLens consolidates startup financial KPIs from payment processors,
spreadsheet exports and manual entries into one monthly snapshot per company.

It provides:
  - Feed collection with provenance-based merge precedence
  - Derived metrics: ARR, MRR growth and runway with guardrails
  - Dense monthly chart series with an optional linear trend extension
  - An authenticated HTTP API for dashboards

Running with no subcommand starts the API server.`,
	RunE: runServe,
}

var configPath string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "f", "", "path to config file (YAML)")
}
