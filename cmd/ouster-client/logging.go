package main

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/KenthJohan/ouster-sdk/internal/config"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/network"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/parse"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/pipeline"
	"github.com/KenthJohan/ouster-sdk/internal/lidar/stats"
)

type logSettings struct {
	File    string
	Verbose bool
	Rotate  config.LogConfig
}

// rotator is the open log file, if any. setupLogging closes the previous
// one after installing its replacement.
var rotator *lumberjack.Logger

// setupLogging routes the ops and diag streams of every package to stderr
// plus the optional rotating file. The trace stream is enabled by verbose
// or by the config file.
func setupLogging(s logSettings) error {
	var sinks []io.Writer
	sinks = append(sinks, os.Stderr)

	file := s.File
	if file == "" {
		file = s.Rotate.File
	}
	previous := rotator
	rotator = nil
	if file != "" {
		rotator = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    orDefault(s.Rotate.MaxSizeMB, 25),
			MaxAge:     orDefault(s.Rotate.MaxAgeDays, 7),
			MaxBackups: orDefault(s.Rotate.MaxBackups, 5),
			Compress:   s.Rotate.Compress,
		}
		sinks = append(sinks, rotator)
	}

	out := io.MultiWriter(sinks...)
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ops, diag := out, out
	var trace io.Writer
	if !s.Verbose {
		diag = nil
		if rotator != nil {
			diag = rotator
		}
	}
	if s.Verbose || s.Rotate.Trace {
		trace = out
	}

	network.SetLogWriters(ops, diag, trace)
	parse.SetLogWriters(ops, diag, trace)
	stats.SetLogWriters(ops, out, trace)
	pipeline.SetLogWriters(ops, diag, trace)

	// Closed only once nothing writes to it; lumberjack reopens on write.
	if previous != nil {
		return previous.Close()
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
