// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tflucke/tsnapshot/internal/pathutil"
	"github.com/tflucke/tsnapshot/internal/tarfmt"
)

// TarSink writes UStar headers plus padded content to an underlying byte
// stream. Close writes the two-block end-of-archive trailer; a failure to
// write the trailer is logged, not propagated, because by the time Close
// runs there is no longer a caller positioned to handle it (mirroring the
// original Drop-path behavior).
type TarSink struct {
	w      io.Writer
	log    *slog.Logger
	closed bool
}

// NewTarSink wraps w. Entry names are relativized from their source path
// independent of any particular root (spec.md's Relative already strips
// absolute prefixes), so no root is needed here.
func NewTarSink(w io.Writer, logger *slog.Logger) *TarSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &TarSink{w: w, log: logger}
}

// AppendFile writes a header for src, followed by its padded content if
// src is a regular file.
func (s *TarSink) AppendFile(src string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	name := pathutil.Relative(src)
	hdr, err := tarfmt.HeaderFromFileInfo(name, src, info)
	if err != nil {
		return fmt.Errorf("build tar header for %s: %w", src, err)
	}

	block, err := hdr.Encode()
	if err != nil {
		return fmt.Errorf("encode tar header for %s: %w", src, err)
	}
	if _, err := s.w.Write(block[:]); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(src)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(s.w, f); err != nil {
			return err
		}

		padding := tarfmt.PaddingFor(info.Size())
		if padding > 0 {
			if _, err := s.w.Write(make([]byte, padding)); err != nil {
				return err
			}
		}
	}

	return nil
}

// Close writes the two zero-filled trailer blocks. Safe to call once;
// subsequent calls are no-ops.
func (s *TarSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	trailer := tarfmt.Trailer()
	if _, err := s.w.Write(trailer[:]); err != nil {
		s.log.Error("failed to write tar trailer", "error", err)
	}
	return nil
}
