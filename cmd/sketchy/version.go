package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/sketchy"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sketchy",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sketchy version %s\n", strings.TrimSpace(sketchy.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
