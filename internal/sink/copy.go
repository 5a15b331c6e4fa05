// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"fmt"
	"io"
	"os"

	"github.com/tflucke/tsnapshot/internal/pathutil"
)

// CopySink mirrors files, directories, and symlinks into OutputDir.
type CopySink struct {
	OutputDir string
}

// NewCopySink returns a sink that mirrors entries under outputDir.
func NewCopySink(outputDir string) *CopySink {
	return &CopySink{OutputDir: outputDir}
}

// AppendFile mirrors src into the sink's output directory, preserving
// symlinks as symlinks. Directories are created with os.MkdirAll, so a
// directory's missing ancestors are created too; regular files and
// symlinks are not, and need their parent directory to exist already
// (the walker appends a directory before its entries).
func (s *CopySink) AppendFile(src string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	out := pathutil.Append(s.OutputDir, src)

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		if err := os.Symlink(target, out); err != nil {
			return err
		}
	case info.IsDir():
		// MkdirAll rather than a bare Mkdir: the walker normally visits
		// every ancestor before its children, but the very first entry
		// appended (the policy tree's own root) has no such predecessor,
		// so its destination's ancestor chain may not exist yet.
		if err := os.MkdirAll(out, 0o755); err != nil {
			return err
		}
	case info.Mode().IsRegular():
		if err := copyFileContents(src, out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, src)
	}

	return nil
}

// Close is a no-op for CopySink: plain mirroring has no format trailer.
func (s *CopySink) Close() error { return nil }

func copyFileContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
