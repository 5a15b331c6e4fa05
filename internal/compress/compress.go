// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package compress wraps a raw destination file in a compression encoder
// selected by an algorithm tag, so the directory policy tree can redirect
// a subtree's tar stream through gzip, bzip2, or zip without knowing which.
package compress

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/pgzip"
)

// Algorithm identifies a compression codec and its level.
type Algorithm struct {
	Kind  Kind
	Level Level
}

// Kind enumerates the supported compression codecs.
type Kind int

const (
	Bzip2 Kind = iota
	Gzip
	Zip
)

// Level is either a named preset or a numeric 0-9 level.
type Level struct {
	named   string // "fast" | "best" | ""
	numeric int
	isNum   bool
}

// LevelFast requests the fastest available compression.
func LevelFast() Level { return Level{named: "fast"} }

// LevelBest requests the best available compression ratio.
func LevelBest() Level { return Level{named: "best"} }

// LevelNumeric requests an explicit 0-9 compression level.
func LevelNumeric(n int) Level { return Level{numeric: n, isNum: true} }

// ErrUnknownAlgorithm is returned for an unrecognized algorithm tag.
var ErrUnknownAlgorithm = errors.New("compress: unknown algorithm")

// ErrUnsupportedExtension is returned when FromExtension can't classify name.
var ErrUnsupportedExtension = errors.New("compress: unrecognized extension")

// ParseAlgorithm maps a config string ("bzip2", "gzip", "zip") to an
// Algorithm with a fast default level.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "bzip2":
		return Algorithm{Kind: Bzip2, Level: LevelFast()}, nil
	case "gzip":
		return Algorithm{Kind: Gzip, Level: LevelFast()}, nil
	case "zip":
		return Algorithm{Kind: Zip}, nil
	default:
		return Algorithm{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, s)
	}
}

// ParseLevel maps a config string ("fast", "best", or a single digit) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "best":
		return LevelBest(), nil
	case "fast":
		return LevelFast(), nil
	}
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return LevelNumeric(int(s[0] - '0')), nil
	}
	return Level{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, s)
}

// Extension returns the canonical output file suffix for a.
func (a Algorithm) Extension() string {
	switch a.Kind {
	case Bzip2:
		return ".tar.bz2"
	case Gzip:
		return ".tar.gz"
	case Zip:
		return ".zip"
	default:
		return ""
	}
}

// FromExtension reverses Extension, classifying a filename by suffix.
func FromExtension(name string) (Algorithm, error) {
	switch {
	case strings.HasSuffix(name, ".tar.bz2"):
		return Algorithm{Kind: Bzip2, Level: LevelFast()}, nil
	case strings.HasSuffix(name, ".tar.gz"):
		return Algorithm{Kind: Gzip, Level: LevelFast()}, nil
	case strings.HasSuffix(name, ".zip"):
		return Algorithm{Kind: Zip}, nil
	default:
		return Algorithm{}, fmt.Errorf("%w: %s", ErrUnsupportedExtension, name)
	}
}

// Compressor is a single-member write stream that must be explicitly
// closed to flush its trailer.
type Compressor interface {
	io.Writer
	Close() error
}

// NewWriter returns a Compressor wrapping dst per the algorithm. For Zip,
// name is used as the single archive member's file name (the zip format
// has no "append raw bytes" mode the way gzip/bzip2 do, so this adapter
// opens one entry per invocation).
func (a Algorithm) NewWriter(dst io.Writer, name string) (Compressor, error) {
	switch a.Kind {
	case Gzip:
		level := gzipLevel(a.Level)
		w, err := pgzip.NewWriterLevel(dst, level)
		if err != nil {
			return nil, err
		}
		return w, nil
	case Bzip2:
		level := bzip2Level(a.Level)
		w, err := bzip2.NewWriter(dst, &bzip2.WriterConfig{Level: level})
		if err != nil {
			return nil, err
		}
		return w, nil
	case Zip:
		return newZipCompressor(dst, name)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownAlgorithm, a.Kind)
	}
}

func gzipLevel(l Level) int {
	switch {
	case l.isNum:
		return l.numeric
	case l.named == "best":
		return pgzip.BestCompression
	default:
		return pgzip.BestSpeed
	}
}

// bzip2 block sizes run 1-9 (100KB-900KB); dsnet/compress/bzip2 follows
// the same convention the reference bzip2 CLI uses.
const (
	bzip2BestSpeed       = 1
	bzip2BestCompression = 9
)

func bzip2Level(l Level) int {
	switch {
	case l.isNum:
		return l.numeric
	case l.named == "best":
		return bzip2BestCompression
	default:
		return bzip2BestSpeed
	}
}

// zipCompressor adapts archive/zip.Writer (which owns entries, not a flat
// byte stream) to the Compressor interface.
type zipCompressor struct {
	zw *zip.Writer
	w  io.Writer
}

func newZipCompressor(dst io.Writer, name string) (Compressor, error) {
	zw := zip.NewWriter(dst)
	w, err := zw.Create(name)
	if err != nil {
		_ = zw.Close()
		return nil, err
	}
	return &zipCompressor{zw: zw, w: w}, nil
}

func (z *zipCompressor) Write(p []byte) (int, error) { return z.w.Write(p) }
func (z *zipCompressor) Close() error                { return z.zw.Close() }
