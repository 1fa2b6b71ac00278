// Package cmd implements the datagate command-line interface: the stdio
// MCP server itself plus small operator commands for inspecting the
// configured database. Commands are built on Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "datagate",
	Short: "MCP server exposing analytics tools over PostgreSQL",
	Long: `Datagate is a Model Context Protocol server that exposes a fixed set of
read-oriented SQL tools (query_database, list_tables, describe_table,
get_customer_summary) backed by a PostgreSQL analytics database.

The protocol runs over stdin/stdout; logs and diagnostics go to stderr.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")
}
