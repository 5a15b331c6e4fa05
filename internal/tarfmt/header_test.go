// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

package tarfmt

import (
	"strings"
	"testing"
	"time"
)

func sumWithChecksumAsSpaces(buf [BlockSize]byte) uint32 {
	for i := 0; i < widChecksum; i++ {
		buf[offChecksum+i] = ' '
	}
	var sum uint32
	for _, b := range buf {
		sum += uint32(b)
	}
	return sum
}

func TestEncodeChecksum(t *testing.T) {
	h := Header{
		Name:     "a.txt",
		Mode:     0o644,
		UID:      0,
		GID:      0,
		Size:     10,
		ModTime:  time.Unix(1700000000, 0),
		Typeflag: TypeRegular,
	}
	buf, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := sumWithChecksumAsSpaces(buf)
	gotStr := strings.TrimRight(string(buf[offChecksum:offChecksum+6]), "\x00")
	var got uint32
	for _, c := range gotStr {
		got = got*8 + uint32(c-'0')
	}
	if got != want {
		t.Errorf("checksum = %o, want %o", got, want)
	}
	if buf[offChecksum+6] != 0 {
		t.Errorf("checksum field byte 6 should be NUL")
	}
}

func TestSplitNameShort(t *testing.T) {
	name, prefix := splitName("short/path.txt")
	if prefix != "" || name != "short/path.txt" {
		t.Errorf("short path should not split: name=%q prefix=%q", name, prefix)
	}
}

func TestSplitNameExactly100(t *testing.T) {
	p := strings.Repeat("a", 99) + "b" // length 100
	name, prefix := splitName(p)
	if prefix != "" {
		t.Errorf("path exactly 100 bytes should use name-only, got prefix=%q", prefix)
	}
	if name != p {
		t.Errorf("name = %q, want %q", name, p)
	}
}

func TestSplitNameLong(t *testing.T) {
	long := strings.Repeat("x", 150)
	name, prefix := splitName(long)
	if len(name) > 100 {
		t.Errorf("name too long: %d bytes", len(name))
	}
	if len(prefix) > 155 {
		t.Errorf("prefix too long: %d bytes", len(prefix))
	}
	if prefix+name != long && prefix+"/"+name != long {
		t.Errorf("split did not reconstruct original path: %q + %q", prefix, name)
	}
}

func TestPaddingFor(t *testing.T) {
	if PaddingFor(512) != 0 {
		t.Errorf("multiple of 512 should need no padding")
	}
	if PaddingFor(0) != 0 {
		t.Errorf("zero size should need no padding")
	}
	if PaddingFor(500) != 12 {
		t.Errorf("PaddingFor(500) = %d, want 12", PaddingFor(500))
	}
}

func TestEncodePreEpochFails(t *testing.T) {
	h := Header{
		Name:     "a.txt",
		ModTime:  time.Unix(-100, 0),
		Typeflag: TypeRegular,
	}
	if _, err := h.Encode(); err == nil {
		t.Errorf("expected error for pre-epoch mtime")
	}
}

func TestEncodeDirectoryZeroSize(t *testing.T) {
	h := Header{
		Name:     "dir/",
		Size:     999, // should be ignored for non-regular entries
		ModTime:  time.Unix(1000, 0),
		Typeflag: TypeDir,
	}
	buf, err := h.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	sizeField := strings.TrimRight(string(buf[offSize:offSize+widSize-1]), "\x00")
	if sizeField != "00000000000" {
		t.Errorf("directory size field = %q, want zeros", sizeField)
	}
}
