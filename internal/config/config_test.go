// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/tflucke/tsnapshot/internal/policy"
)

const minimalDoc = `
root_dir_config:
  subpath: /home/user
destination_dir: /backups
`

func TestParseMinimalDocument(t *testing.T) {
	cfg, err := Parse(strings.NewReader(minimalDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Root.Subpath != "/home/user" {
		t.Errorf("Root.Subpath = %q", cfg.Root.Subpath)
	}
	if cfg.Root.Mode != policy.ModeBasic {
		t.Errorf("default space_mode should resolve to ModeBasic")
	}
	if cfg.DestinationDir != "/backups" {
		t.Errorf("DestinationDir = %q", cfg.DestinationDir)
	}
	if cfg.NameFormat != defaultNameFmt {
		t.Errorf("NameFormat = %q, want default", cfg.NameFormat)
	}
	if cfg.Verbosity != slog.LevelWarn {
		t.Errorf("Verbosity = %v, want default warn", cfg.Verbosity)
	}
}

func TestParseVerbositySilentAndVerbose(t *testing.T) {
	for _, tc := range []struct {
		verbosity string
		want      slog.Level
	}{
		{"silent", LevelSilent},
		{"verbose", slog.LevelInfo},
	} {
		doc := "root_dir_config:\n  subpath: /home/user\ndestination_dir: /backups\nverbosity: " + tc.verbosity + "\n"
		cfg, err := Parse(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.verbosity, err)
		}
		if cfg.Verbosity != tc.want {
			t.Errorf("Verbosity for %q = %v, want %v", tc.verbosity, cfg.Verbosity, tc.want)
		}
	}
}

func TestParseRequiresRootAndDestination(t *testing.T) {
	if _, err := Parse(strings.NewReader("destination_dir: /backups\n")); err == nil {
		t.Errorf("expected error when root_dir_config is missing")
	}
	if _, err := Parse(strings.NewReader("root_dir_config:\n  subpath: /x\n")); err == nil {
		t.Errorf("expected error when destination_dir is missing")
	}
}

func TestParseCompressedRejectsNonBasicSubtree(t *testing.T) {
	doc := `
root_dir_config:
  subpath: /home/user
  space_mode: compress
  subconfigs:
    - subpath: cache
      space_mode: linked
destination_dir: /backups
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Errorf("expected error for compress wrapping a non-basic subtree")
	}
}

func TestParseCompressedAcceptsBasicSubtree(t *testing.T) {
	doc := `
root_dir_config:
  subpath: /home/user
  space_mode: compress
  algorithm: gzip
  subconfigs:
    - subpath: cache
destination_dir: /backups
`
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Root.Mode != policy.ModeCompressed {
		t.Errorf("expected ModeCompressed, got %v", cfg.Root.Mode)
	}
}

func TestParseFiltersAndKeepLimit(t *testing.T) {
	doc := `
root_dir_config:
  subpath: /home/user
  filters:
    - on: name
      pattern: "\\.tmp$"
    - on: and
      filters:
        - on: size
          min: 100
          max: 200
destination_dir: /backups
keep_limit:
  - count: 2
    timespan:
      hours: 1
  - count: 5
    timespan:
      minutes: 10
`
	cfg, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfg.Root.Filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(cfg.Root.Filters))
	}
	if len(cfg.KeepLimits) != 2 {
		t.Fatalf("expected 2 keep limits, got %d", len(cfg.KeepLimits))
	}
	// Sorted by ascending timespan: 10 minutes (600s) before 1 hour (3600s).
	if cfg.KeepLimits[0].Timespan != 600 {
		t.Errorf("KeepLimits[0].Timespan = %d, want 600", cfg.KeepLimits[0].Timespan)
	}
	if cfg.KeepLimits[1].Timespan != 3600 {
		t.Errorf("KeepLimits[1].Timespan = %d, want 3600", cfg.KeepLimits[1].Timespan)
	}
}

func TestParseUnknownSpaceModeRejected(t *testing.T) {
	doc := `
root_dir_config:
  subpath: /home/user
  space_mode: bogus
destination_dir: /backups
`
	if _, err := Parse(strings.NewReader(doc)); err == nil {
		t.Errorf("expected error for unknown space_mode")
	}
}

func TestParseYearsAndMonthsTimespan(t *testing.T) {
	ts := rawTimespan{Years: 1, Months: 1}
	want := uint64(365*24*60*60 + 30*24*60*60)
	if got := ts.seconds(); got != want {
		t.Errorf("seconds() = %d, want %d", got, want)
	}
}
