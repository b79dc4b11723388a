package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KenthJohan/ouster-sdk/internal/config"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/pipeline"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
)

var (
	streamMeta      string
	streamConfig    string
	streamDestagger bool
	streamFrames    int
	streamFields    []string
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Receive the lidar stream and report each completed frame",
	Long: `Bind the lidar and IMU UDP ports named in the metadata, decode every
packet into per-quantity images, and print one line per completed frame:

  frame=<id> mid_loss=<missing measurement ids>

Examples:
  ouster-client stream --meta meta.json
  ouster-client stream --meta meta.json --fields range,signal --destagger --frames 100`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)

	streamCmd.Flags().StringVarP(&streamMeta, "meta", "m", "", "sensor metadata .json file (required)")
	streamCmd.Flags().StringVarP(&streamConfig, "config", "c", "", "client .yaml configuration")
	streamCmd.Flags().BoolVar(&streamDestagger, "destagger", false, "destagger completed frames")
	streamCmd.Flags().IntVarP(&streamFrames, "frames", "n", 0, "stop after this many frames (0 runs until interrupted)")
	streamCmd.Flags().StringSliceVar(&streamFields, "fields", nil, "quantities to extract (default: all the profile carries)")
	streamCmd.MarkFlagRequired("meta")
}

func runStream(cmd *cobra.Command, args []string) error {
	prof, err := profile.LoadProfileFile(streamMeta)
	if err != nil {
		return err
	}

	client := &config.ClientConfig{}
	if streamConfig != "" {
		if client, err = config.LoadClientConfig(streamConfig); err != nil {
			return err
		}
		if client.Logs.File != "" || client.Logs.Trace {
			if err := setupLogging(logSettings{File: logFile, Verbose: verbose, Rotate: client.Logs}); err != nil {
				return err
			}
		}
	}
	if len(streamFields) > 0 {
		client.Fields = streamFields
	}
	if cmd.Flags().Changed("destagger") {
		client.Destagger = &streamDestagger
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := pipelineConfig(prof, client)
	if err != nil {
		return err
	}
	cfg.OnFrame = frameReporter(cmd.OutOrStdout(), streamFrames, cancel)

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "streaming %s on %v\n", prof, p.LocalAddr(pipeline.HandleLidar))
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	p.Stats().LogStats()
	return nil
}

// pipelineConfig merges the profile and client configuration.
func pipelineConfig(prof *profile.Profile, client *config.ClientConfig) (pipeline.Config, error) {
	qs, err := client.Quantities()
	if err != nil {
		return pipeline.Config{}, err
	}
	fwdAddr, fwdPort := client.GetForward()
	return pipeline.Config{
		Profile:        prof,
		Quantities:     qs,
		Address:        client.GetBindAddress(),
		RcvBuf:         client.GetRcvBuf(),
		MulticastGroup: client.GetMulticastGroup(),
		Interface:      client.GetInterface(),
		WaitTimeout:    client.GetWaitTimeout(),
		StatsInterval:  client.GetStatsInterval(),
		Destagger:      client.GetDestagger(),
		ForwardAddr:    fwdAddr,
		ForwardPort:    fwdPort,
	}, nil
}

// frameReporter prints one line per frame and calls done after limit
// frames when limit is positive.
func frameReporter(w io.Writer, limit int, done func()) func(pipeline.Frame) {
	count := 0
	return func(f pipeline.Frame) {
		fmt.Fprintf(w, "frame=%d mid_loss=%d\n", f.ID, f.MIDLoss)
		count++
		if limit > 0 && count >= limit {
			done()
		}
	}
}
