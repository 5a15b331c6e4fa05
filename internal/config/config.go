// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package config reads a tsnapshot YAML configuration document into a
// directory policy tree and the run-level settings that sit alongside it.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tflucke/tsnapshot/internal/catalog"
	"github.com/tflucke/tsnapshot/internal/compress"
	"github.com/tflucke/tsnapshot/internal/policy"
	"github.com/tflucke/tsnapshot/internal/sink"
)

const (
	defaultVerbosity = "warning"
	defaultNameFmt   = "%Y-%m-%d_%H-%M-%S"
	defaultAlgorithm = "bzip2"
)

// Config is a fully resolved run configuration: the directory policy
// tree plus the settings that govern a run as a whole.
type Config struct {
	Root            *policy.Node
	DestinationDir  string
	Verbosity       slog.Level
	NameFormat      string
	KeepLimits      []catalog.KeepLimit
}

// Errors returned while resolving a configuration document. Each wraps
// ErrInvalid so callers can test broadly with errors.Is.
var ErrInvalid = errors.New("config: invalid configuration")

// Load reads and resolves the configuration document at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads and resolves a configuration document from r.
func Parse(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc rawDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, err)
	}

	if doc.RootDirConfig == nil {
		return nil, fmt.Errorf("%w: root_dir_config is required", ErrInvalid)
	}
	if doc.DestinationDir == "" {
		return nil, fmt.Errorf("%w: destination_dir is required", ErrInvalid)
	}

	root, err := buildNode(doc.RootDirConfig)
	if err != nil {
		return nil, err
	}

	verbosity := doc.Verbosity
	if verbosity == "" {
		verbosity = defaultVerbosity
	}
	level, err := parseVerbosity(verbosity)
	if err != nil {
		return nil, err
	}

	nameFormat := doc.NameFormat
	if nameFormat == "" {
		nameFormat = defaultNameFmt
	}

	limits, err := buildKeepLimits(doc.KeepLimit)
	if err != nil {
		return nil, err
	}

	return &Config{
		Root:           root,
		DestinationDir: doc.DestinationDir,
		Verbosity:      level,
		NameFormat:     nameFormat,
		KeepLimits:     limits,
	}, nil
}

// ----- Raw YAML shape --------------------------------------------------

type rawDocument struct {
	RootDirConfig  *rawNode         `yaml:"root_dir_config"`
	DestinationDir string           `yaml:"destination_dir"`
	Verbosity      string           `yaml:"verbosity"`
	NameFormat     string           `yaml:"name_format"`
	KeepLimit      []rawKeepLimit   `yaml:"keep_limit"`
}

type rawNode struct {
	Subpath         string     `yaml:"subpath"`
	SpaceMode       string     `yaml:"space_mode"`
	Algorithm       string     `yaml:"algorithm"`
	MaxLinkCount    *uint64    `yaml:"max_link_count"`
	ChangeDetection string     `yaml:"change_detection"`
	Filters         []rawFilter `yaml:"filters"`
	Subconfigs      []*rawNode  `yaml:"subconfigs"`
}

type rawFilter struct {
	On      string       `yaml:"on"`
	Pattern string       `yaml:"pattern"`
	Min     *uint64      `yaml:"min"`
	Max     *uint64      `yaml:"max"`
	Filter  *rawFilter   `yaml:"filter"`
	Filters []rawFilter  `yaml:"filters"`
}

type rawKeepLimit struct {
	Count    uint64         `yaml:"count"`
	Timespan rawTimespan    `yaml:"timespan"`
}

type rawTimespan struct {
	Seconds uint64 `yaml:"seconds"`
	Minutes uint64 `yaml:"minutes"`
	Hours   uint64 `yaml:"hours"`
	Days    uint64 `yaml:"days"`
	Months  uint64 `yaml:"months"`
	Years   uint64 `yaml:"years"`
}

func (t rawTimespan) seconds() uint64 {
	return t.Seconds +
		t.Minutes*60 +
		t.Hours*60*60 +
		t.Days*24*60*60 +
		t.Months*30*24*60*60 +
		t.Years*365*24*60*60
}

// ----- Directory policy tree construction -------------------------------

func buildNode(raw *rawNode) (*policy.Node, error) {
	filters, err := buildFilters(raw.Filters)
	if err != nil {
		return nil, err
	}

	children := make([]*policy.Node, 0, len(raw.Subconfigs))
	for _, sub := range raw.Subconfigs {
		child, err := buildNode(sub)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	n := &policy.Node{
		Subpath:    raw.Subpath,
		Filters:    filters,
		Subconfigs: children,
	}

	switch strings.ToLower(raw.SpaceMode) {
	case "", "none":
		n.Mode = policy.ModeBasic
	case "compress":
		n.Mode = policy.ModeBasic // subtree must stay all-basic until validated below
		if !n.AllBasic() {
			return nil, fmt.Errorf("%w: subpath %q: space_mode compress requires an entirely basic subtree", ErrInvalid, raw.Subpath)
		}
		algoName := raw.Algorithm
		if algoName == "" {
			algoName = defaultAlgorithm
		}
		algo, err := compress.ParseAlgorithm(algoName)
		if err != nil {
			return nil, fmt.Errorf("%w: subpath %q: %s", ErrInvalid, raw.Subpath, err)
		}
		n.Mode = policy.ModeCompressed
		n.Algorithm = algo
	case "linked":
		n.Mode = policy.ModeHardLinked
		if raw.MaxLinkCount != nil {
			n.MaxLinkCount = *raw.MaxLinkCount
		} else {
			n.MaxLinkCount = sink.MaxLinkCountUnbounded
		}
		detection := raw.ChangeDetection
		if detection == "" {
			detection = "timestamp"
		}
		detector, err := buildChangeDetector(detection)
		if err != nil {
			return nil, fmt.Errorf("%w: subpath %q: %s", ErrInvalid, raw.Subpath, err)
		}
		n.Detector = detector
	default:
		return nil, fmt.Errorf("%w: unknown space_mode %q", ErrInvalid, raw.SpaceMode)
	}

	return n, nil
}

func buildChangeDetector(name string) (sink.ChangeDetector, error) {
	switch strings.ToLower(name) {
	case "timestamp":
		return sink.TimestampDetector{}, nil
	case "full":
		return sink.FullCompareDetector{}, nil
	default:
		return nil, fmt.Errorf("unknown change_detection %q", name)
	}
}

func buildFilters(raws []rawFilter) ([]policy.Filter, error) {
	out := make([]policy.Filter, 0, len(raws))
	for _, r := range raws {
		f, err := buildFilter(r)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func buildFilter(r rawFilter) (policy.Filter, error) {
	switch strings.ToLower(r.On) {
	case "name":
		pat, err := compileRegex(r.Pattern)
		if err != nil {
			return policy.Filter{}, err
		}
		return policy.Filter{Kind: policy.FilterName, Pattern: pat}, nil
	case "size":
		min := uint64(0)
		if r.Min != nil {
			min = *r.Min
		}
		max := ^uint64(0)
		if r.Max != nil {
			max = *r.Max
		}
		return policy.Filter{Kind: policy.FilterSize, Min: min, Max: max}, nil
	case "mime":
		pat, err := compileRegex(r.Pattern)
		if err != nil {
			return policy.Filter{}, err
		}
		return policy.Filter{Kind: policy.FilterMime, Pattern: pat}, nil
	case "not":
		if r.Filter == nil {
			return policy.Filter{}, fmt.Errorf("%w: not filter requires \"filter\"", ErrInvalid)
		}
		inner, err := buildFilter(*r.Filter)
		if err != nil {
			return policy.Filter{}, err
		}
		return policy.Filter{Kind: policy.FilterNot, Inner: &inner}, nil
	case "and":
		filters, err := buildFilters(r.Filters)
		if err != nil {
			return policy.Filter{}, err
		}
		return policy.Filter{Kind: policy.FilterAnd, Filters: filters}, nil
	case "or":
		filters, err := buildFilters(r.Filters)
		if err != nil {
			return policy.Filter{}, err
		}
		return policy.Filter{Kind: policy.FilterOr, Filters: filters}, nil
	default:
		return policy.Filter{}, fmt.Errorf("%w: unknown filter kind %q", ErrInvalid, r.On)
	}
}

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: filter pattern is required", ErrInvalid)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pattern %q: %s", ErrInvalid, pattern, err)
	}
	return re, nil
}

// ----- Retention buckets -------------------------------------------------

func buildKeepLimits(raws []rawKeepLimit) ([]catalog.KeepLimit, error) {
	out := make([]catalog.KeepLimit, 0, len(raws))
	for _, r := range raws {
		out = append(out, catalog.KeepLimit{
			Count:    r.Count,
			Timespan: r.Timespan.seconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timespan != out[j].Timespan {
			return out[i].Timespan < out[j].Timespan
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

// ----- Verbosity -----------------------------------------------------------

// LevelSilent is above slog.LevelError, so a logger built at this level
// emits nothing at all.
const LevelSilent slog.Level = slog.LevelError + 4

// ParseVerbosity maps a configuration string ("silent", "error",
// "warning"/"warn", "verbose", "debug") to an slog.Level. Exported so
// callers (the CLI's -verbosity override) can parse the same vocabulary
// the configuration file itself uses.
func ParseVerbosity(s string) (slog.Level, error) {
	return parseVerbosity(s)
}

func parseVerbosity(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "silent":
		return LevelSilent, nil
	case "error":
		return slog.LevelError, nil
	case "warning", "warn":
		return slog.LevelWarn, nil
	case "verbose":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	default:
		return 0, fmt.Errorf("%w: unknown verbosity %q", ErrInvalid, s)
	}
}
