package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version holds the CLI version. Set at build time with -ldflags.
var Version = "0.0.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the datagate version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("datagate %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
