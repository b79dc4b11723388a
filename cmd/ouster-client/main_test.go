package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KenthJohan/ouster-sdk/internal/config"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/pipeline"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/profile"
	"github.com/KenthJohan/ouster-sdk/internal/testutil"
)

func TestRootCommand_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"fetch-meta", "stream", "version"} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "ouster-client dev"))
}

func TestPipelineConfig_MergesClientConfig(t *testing.T) {
	prof := testutil.MustProfile(t, testutil.Geometry{})
	on := true
	fwd := "127.0.0.1"
	wait := "200ms"
	client := &config.ClientConfig{
		Fields:      []string{"range", "signal"},
		Destagger:   &on,
		ForwardAddr: &fwd,
		WaitTimeout: &wait,
	}

	cfg, err := pipelineConfig(prof, client)
	require.NoError(t, err)
	assert.Equal(t, []profile.Quantity{profile.QuantityRange, profile.QuantitySignal}, cfg.Quantities)
	assert.True(t, cfg.Destagger)
	assert.Equal(t, "127.0.0.1", cfg.ForwardAddr)
	assert.Equal(t, 7502, cfg.ForwardPort)
	assert.Equal(t, 200*time.Millisecond, cfg.WaitTimeout)
	assert.Equal(t, 1024*1024, cfg.RcvBuf)

	client.Fields = []string{"depth"}
	_, err = pipelineConfig(prof, client)
	assert.Error(t, err)
}

func TestFrameReporter(t *testing.T) {
	var out bytes.Buffer
	done := 0
	report := frameReporter(&out, 2, func() { done++ })

	report(pipeline.Frame{ID: 1, MIDLoss: 0})
	assert.Zero(t, done)
	report(pipeline.Frame{ID: 2, MIDLoss: 16})
	assert.Equal(t, 1, done)
	assert.Equal(t, "frame=1 mid_loss=0\nframe=2 mid_loss=16\n", out.String())
}

func TestSetupLogging_ReplacesRotator(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")
	t.Cleanup(func() { setupLogging(logSettings{}) })

	require.NoError(t, setupLogging(logSettings{File: first}))
	old := rotator
	require.NotNil(t, old)
	_, err := old.Write([]byte("opened\n"))
	require.NoError(t, err)

	require.NoError(t, setupLogging(logSettings{File: first, Rotate: config.LogConfig{File: second}}))
	assert.NotSame(t, old, rotator)
	assert.Equal(t, first, rotator.Filename, "--log-file wins over the config file")

	require.NoError(t, setupLogging(logSettings{Rotate: config.LogConfig{File: second}}))
	assert.Equal(t, second, rotator.Filename)

	require.NoError(t, setupLogging(logSettings{}))
	assert.Nil(t, rotator)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), "opened")
}
