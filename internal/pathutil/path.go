// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package pathutil provides the relativization and prefix-joining helpers
// that every sink and policy node uses to compute a destination path from
// a source path and a snapshot root.
package pathutil

import (
	"path/filepath"
	"strings"
)

// Append joins dst to the relativized form of src, so that a source path
// outside dst's tree still lands under dst.
func Append(dst, src string) string {
	return filepath.Join(dst, Relative(src))
}

// Relative strips any root or volume prefix from path and re-encodes it as
// a plain relative path. Current-directory components are dropped;
// parent-directory components are preserved unchanged so callers keep the
// navigation behavior the original path implied.
//
// Relative is idempotent: Relative(Relative(p)) == Relative(p).
func Relative(path string) string {
	vol := filepath.VolumeName(path)
	rest := strings.TrimPrefix(path, vol)
	rest = strings.TrimPrefix(rest, string(filepath.Separator))

	parts := strings.Split(filepath.ToSlash(rest), "/")
	out := make([]string, 0, len(parts)+1)
	if vol != "" {
		// A drive/prefix component (e.g. "C:") is re-encoded as a normal
		// path segment rather than dropped like the root separator is.
		out = append(out, vol)
	}
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		default:
			out = append(out, p)
		}
	}

	if len(out) == 0 {
		return "."
	}

	// strings.Join, not filepath.Join: Join would Clean the result and
	// collapse "a/../b" to "b", dropping the parent-directory component.
	return strings.Join(out, string(filepath.Separator))
}
