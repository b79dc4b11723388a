package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KenthJohan/ouster-sdk/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "ouster-client", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
