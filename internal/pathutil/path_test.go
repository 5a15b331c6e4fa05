// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package pathutil

import "testing"

func TestRelative(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already relative", "a/b/c", "a/b/c"},
		{"absolute root stripped", "/a/b/c", "a/b/c"},
		{"current dir dropped", "./a/./b", "a/b"},
		{"parent dir preserved", "../a/b", "../a/b"},
		{"bare root", "/", "."},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Relative(c.in); got != c.want {
				t.Errorf("Relative(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestRelativeIdempotent(t *testing.T) {
	inputs := []string{"/a/b/c", "a/../b", "./x/y", "/", "rel/path"}
	for _, in := range inputs {
		once := Relative(in)
		twice := Relative(once)
		if once != twice {
			t.Errorf("Relative not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}

func TestAppend(t *testing.T) {
	got := Append("/dst", "/src/a/b.txt")
	want := "/dst/src/a/b.txt"
	if got != want {
		t.Errorf("Append = %q, want %q", got, want)
	}
}
