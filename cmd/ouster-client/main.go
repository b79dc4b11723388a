// Command ouster-client talks to a spinning lidar sensor: it downloads the
// sensor metadata and streams decoded frames.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KenthJohan/ouster-sdk/internal/version"
)

var (
	verbose bool
	logFile string
)

var rootCmd = &cobra.Command{
	Use:   "ouster-client",
	Short: "Lidar sensor metadata and UDP stream client",
	Long: `Download sensor metadata over the TCP command port and decode the UDP
lidar stream into per-quantity images.

Examples:
  ouster-client fetch-meta os-992100000123.local --out meta.json
  ouster-client stream --meta meta.json --destagger --frames 10
  ouster-client stream --meta meta.json --config client.yaml`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(logSettings{File: logFile, Verbose: verbose})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (diagnostics and packet telemetry)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to a rotating file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
