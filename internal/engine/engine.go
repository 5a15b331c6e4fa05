// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package engine orchestrates a single snapshot run: resolving the
// destination directory, invoking the root directory policy, and
// keeping the snapshot catalog in sync with what actually landed on
// disk.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tflucke/tsnapshot/internal/catalog"
	"github.com/tflucke/tsnapshot/internal/config"
	"github.com/tflucke/tsnapshot/internal/sink"
)

const catalogFileName = "catalog.txt"

// RunResult summarizes a completed run.
type RunResult struct {
	Destination string
	Duration    time.Duration
	RunID       string
}

// Run executes one snapshot: it loads (or creates) the catalog at
// cfg.DestinationDir, creates a timestamped destination directory, walks
// cfg.Root into it, then records and prunes the catalog. On any error
// after the destination directory is created, the catalog is left
// untouched so a failed run never hides the last good snapshot.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) (RunResult, error) {
	if log == nil {
		log = slog.Default()
	}
	runID := uuid.NewString()
	log = log.With("run_id", runID)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}

	catalogPath := filepath.Join(cfg.DestinationDir, catalogFileName)
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("load catalog %s: %w", catalogPath, err)
	}

	now := time.Now()
	dstName := now.Format(goStrftime(cfg.NameFormat))
	dst := filepath.Join(cfg.DestinationDir, dstName)
	log.Info("starting snapshot run", "destination", dst)

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return RunResult{}, fmt.Errorf("create destination %s: %w", dst, err)
	}

	var ref string
	if prev, ok := cat.MostRecent(); ok {
		ref = prev
	}

	copySink := sink.NewCopySink(dst)
	cfg.Root.Log = log
	backupErr := cfg.Root.Backup(cfg.Root.Subpath, dst, copySink, ref)
	if closeErr := copySink.Close(); backupErr == nil {
		backupErr = closeErr
	}
	if backupErr != nil {
		log.Error("snapshot run failed", "error", backupErr)
		return RunResult{}, fmt.Errorf("backup: %w", backupErr)
	}

	if err := ctx.Err(); err != nil {
		log.Error("context cancelled after backup completed; catalog not updated", "error", err)
		return RunResult{}, err
	}

	cat.Push(dst, now)
	cat.Clean(cfg.KeepLimits)

	if err := cat.SaveFile(catalogPath); err != nil {
		return RunResult{}, fmt.Errorf("save catalog %s: %w", catalogPath, err)
	}

	result := RunResult{
		Destination: dst,
		Duration:    time.Since(start),
		RunID:       runID,
	}
	log.Info("snapshot run complete", "destination", dst, "duration", result.Duration)
	return result, nil
}

// goStrftime translates the strftime directives %Y %m %d %H %M %S into a
// time.Format reference layout. Anything else, including any other %
// directive, passes through unchanged and is not interpreted as strftime.
func goStrftime(format string) string {
	replacer := map[string]string{
		"%Y": "2006",
		"%m": "01",
		"%d": "02",
		"%H": "15",
		"%M": "04",
		"%S": "05",
	}
	out := make([]byte, 0, len(format)*2)
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			if repl, ok := replacer[format[i:i+2]]; ok {
				out = append(out, repl...)
				i++
				continue
			}
		}
		out = append(out, format[i])
	}
	return string(out)
}
