package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/KenthJohan/ouster-sdk/internal/lidar/network"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

var (
	fetchOut     string
	fetchTimeout time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch-meta <host>",
	Short: "Download sensor metadata over the TCP command port",
	Long: `Query the sensor's TCP command port (default 7501) for its sensor info,
lidar data format and active configuration, validate the result as a sensor
profile, and write it as one JSON document.

Examples:
  ouster-client fetch-meta 169.254.0.10
  ouster-client fetch-meta os-992100000123.local:7501 --out meta.json`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "write metadata to this .json file instead of stdout")
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", network.DefaultFetchTimeout, "connect and reply timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 4*fetchTimeout)
	defer cancel()

	attrs, err := network.FetchMetadata(ctx, args[0], fetchTimeout)
	if err != nil {
		return err
	}
	p, err := profile.BuildProfile(attrs)
	if err != nil {
		return fmt.Errorf("sensor returned unusable metadata: %w", err)
	}

	data, err := json.MarshalIndent(attrs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	data = append(data, '\n')

	if fetchOut == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(fetchOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s: %s\n", fetchOut, p)
	return nil
}
