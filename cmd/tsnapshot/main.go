// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Command tsnapshot runs one snapshot from a YAML configuration file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tflucke/tsnapshot/internal/config"
	"github.com/tflucke/tsnapshot/internal/engine"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("tsnapshot", flag.ContinueOnError)
	verbosity := fs.String("verbosity", "", "override the configured log verbosity (silent, error, warning, verbose, debug)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: tsnapshot <config.yaml>\n")
		return 2
	}

	cfg, err := config.Load(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "tsnapshot: %v\n", err)
		return 1
	}

	level := cfg.Verbosity
	if *verbosity != "" {
		lvl, err := config.ParseVerbosity(*verbosity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "tsnapshot: invalid -verbosity %q: %v\n", *verbosity, err)
			return 2
		}
		level = lvl
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := engine.Run(ctx, cfg, logger)
	if err != nil {
		logger.Error("snapshot run failed", "error", err)
		return 1
	}

	logger.Info("snapshot complete", "destination", result.Destination, "duration", result.Duration)
	return 0
}
