// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func TestFilterName(t *testing.T) {
	f := Filter{Kind: FilterName, Pattern: regexp.MustCompile(`\.log$`)}
	if !f.Match("/var/log/app.log", nil) {
		t.Errorf("expected match for .log suffix")
	}
	if f.Match("/var/log/app.txt", nil) {
		t.Errorf("expected no match for .txt suffix")
	}
}

func TestFilterSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	f := Filter{Kind: FilterSize, Min: 1, Max: 10}
	if !f.Match(path, info) {
		t.Errorf("expected 5-byte file within [1,10] to match")
	}

	f2 := Filter{Kind: FilterSize, Min: 100, Max: 200}
	if f2.Match(path, info) {
		t.Errorf("expected 5-byte file outside [100,200] to not match")
	}
}

func TestFilterNotVacuousTrue(t *testing.T) {
	f := Filter{Kind: FilterNot}
	if !f.Match("anything", nil) {
		t.Errorf("Not with nil inner should default to true (negation of always-false)")
	}
}

func TestFilterAndVacuousTrue(t *testing.T) {
	f := Filter{Kind: FilterAnd}
	if !f.Match("anything", nil) {
		t.Errorf("empty And should be vacuously true")
	}
}

func TestFilterOrVacuousFalse(t *testing.T) {
	f := Filter{Kind: FilterOr}
	if f.Match("anything", nil) {
		t.Errorf("empty Or should be vacuously false")
	}
}

func TestFilterAndOrComposition(t *testing.T) {
	logPattern := Filter{Kind: FilterName, Pattern: regexp.MustCompile(`\.log$`)}
	txtPattern := Filter{Kind: FilterName, Pattern: regexp.MustCompile(`\.txt$`)}

	or := Filter{Kind: FilterOr, Filters: []Filter{logPattern, txtPattern}}
	if !or.Match("a.log", nil) || !or.Match("a.txt", nil) {
		t.Errorf("Or should match either branch")
	}
	if or.Match("a.csv", nil) {
		t.Errorf("Or should not match neither branch")
	}

	and := Filter{Kind: FilterAnd, Filters: []Filter{logPattern, txtPattern}}
	if and.Match("a.log", nil) {
		t.Errorf("And of mutually exclusive patterns should never match")
	}
}

func TestFilterNotNegatesInner(t *testing.T) {
	inner := Filter{Kind: FilterName, Pattern: regexp.MustCompile(`\.tmp$`)}
	f := Filter{Kind: FilterNot, Inner: &inner}
	if f.Match("a.tmp", nil) {
		t.Errorf("Not should negate a matching inner filter")
	}
	if !f.Match("a.go", nil) {
		t.Errorf("Not should negate a non-matching inner filter")
	}
}

func TestGuessMimeTypeRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("plain text content"), 0o644); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	mt := guessMimeType(path, info)
	if mt == "" {
		t.Errorf("expected a non-empty mime type for a regular file")
	}
}
