// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the directory policy tree: a recursive
// traversal driven by per-directory strategies (copy, compressed archive,
// hard-link incremental) and the filters that can skip a subtree.
package policy

import (
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
)

// FilterKind tags which predicate a Filter applies.
type FilterKind int

const (
	FilterName FilterKind = iota
	FilterSize
	FilterMime
	FilterNot
	FilterAnd
	FilterOr
)

// Filter is a boolean predicate over (path, metadata). It is a closed,
// tagged variant (not an interface) matching the configuration grammar's
// fixed filter kinds.
type Filter struct {
	Kind FilterKind

	// FilterName / FilterMime
	Pattern *regexp.Regexp

	// FilterSize
	Min, Max uint64

	// FilterNot
	Inner *Filter

	// FilterAnd / FilterOr
	Filters []Filter
}

// Match reports whether path (with the given symlink metadata) matches f.
func (f Filter) Match(path string, info os.FileInfo) bool {
	switch f.Kind {
	case FilterName:
		return f.Pattern != nil && path != "" && f.Pattern.MatchString(path)
	case FilterSize:
		size := uint64(info.Size())
		return size >= f.Min && size <= f.Max
	case FilterMime:
		mt := guessMimeType(path, info)
		return f.Pattern != nil && mt != "" && f.Pattern.MatchString(mt)
	case FilterNot:
		if f.Inner == nil {
			return true
		}
		return !f.Inner.Match(path, info)
	case FilterAnd:
		for _, sub := range f.Filters {
			if !sub.Match(path, info) {
				return false
			}
		}
		return true
	case FilterOr:
		for _, sub := range f.Filters {
			if sub.Match(path, info) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// guessMimeType determines a best-effort MIME type for path. Regular
// files are content-sniffed (stdlib net/http.DetectContentType); anything
// else falls back to an extension guess. Neither ecosystem mime-guessing
// library nor any corpus repo provides a richer detector, so this is
// deliberately stdlib-only (see DESIGN.md).
func guessMimeType(path string, info os.FileInfo) string {
	if info != nil && info.Mode().IsRegular() {
		f, err := os.Open(path)
		if err == nil {
			defer f.Close()
			buf := make([]byte, 512)
			n, _ := f.Read(buf)
			if n > 0 {
				return http.DetectContentType(buf[:n])
			}
		}
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return ""
}
