// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

// Package tarfmt builds UStar tar headers by hand, writing into a fixed
// 512-byte buffer at known offsets rather than relying on a language- or
// library-provided memory layout. This mirrors the manual wire-record
// packing the rest of this codebase's ancestry (the CXDB binary protocol
// client) already did with bytes.Buffer and encoding/binary — the same
// idiom, aimed at a different fixed-width record.
package tarfmt

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"strconv"
	"time"
)

// BlockSize is the fixed width of a tar record.
const BlockSize = 512

// Sentinel errors surfaced while building a header.
var (
	ErrPathNotUTF8  = errors.New("tarfmt: path not representable as UTF-8")
	ErrNameNotUTF8  = errors.New("tarfmt: owner/group name not representable as UTF-8")
	ErrPreEpoch     = errors.New("tarfmt: modification time is before the Unix epoch")
	ErrUnknownOwner = errors.New("tarfmt: uid does not resolve to a user name")
	ErrUnknownGroup = errors.New("tarfmt: gid does not resolve to a group name")
)

// Typeflag values recognized by this encoder.
const (
	TypeRegular  = '0'
	TypeSymlink  = '2'
	TypeChar     = '3'
	TypeBlock    = '4'
	TypeDir      = '5'
	TypeFIFO     = '6'
)

// Fixed-field byte offsets and widths within a 512-byte UStar block.
const (
	offName     = 0
	widName     = 100
	offMode     = 100
	widMode     = 8
	offUID      = 108
	widUID      = 8
	offGID      = 116
	widGID      = 8
	offSize     = 124
	widSize     = 12
	offMtime    = 136
	widMtime    = 12
	offChecksum = 148
	widChecksum = 8
	offTypeflag = 156
	widTypeflag = 1
	offLinkname = 157
	widLinkname = 100
	offMagic    = 257
	widMagic    = 6
	offVersion  = 263
	widVersion  = 2
	offOwner    = 265
	widOwner    = 32
	offGroup    = 297
	widGroup    = 32
	offDevMajor = 329
	widDevMajor = 8
	offDevMinor = 337
	widDevMinor = 8
	offPrefix   = 345
	widPrefix   = 155
	offPad      = 500
	widPad      = 12
)

// Header holds everything needed to encode one UStar record for an entry.
// The name passed to HeaderFromFileInfo is the path that becomes the
// archive member name (already relativized by callers).
type Header struct {
	// Name is the archive member name (relative path, directories suffixed "/").
	Name string
	// LinkTarget is the symlink target, read from the original source path
	// (not the relativized path — see SPEC_FULL.md deviation note).
	LinkTarget string
	Mode       uint32
	UID        uint32
	GID        uint32
	Size       int64
	ModTime    time.Time
	Typeflag   byte
}

// TypeflagFromMode maps a Go file mode to a UStar typeflag.
func TypeflagFromMode(mode fs.FileMode) byte {
	switch {
	case mode&fs.ModeSymlink != 0:
		return TypeSymlink
	case mode&fs.ModeCharDevice != 0:
		return TypeChar
	case mode&fs.ModeDevice != 0:
		return TypeBlock
	case mode&fs.ModeDir != 0:
		return TypeDir
	case mode&fs.ModeNamedPipe != 0:
		return TypeFIFO
	default:
		return TypeRegular
	}
}

// Encode renders h into a 512-byte UStar block.
func (h Header) Encode() ([BlockSize]byte, error) {
	var buf [BlockSize]byte

	name, prefix := splitName(h.Name)
	if err := putString(buf[:], offName, widName, name); err != nil {
		return buf, fmt.Errorf("%w: name", ErrPathNotUTF8)
	}
	if err := putString(buf[:], offPrefix, widPrefix, prefix); err != nil {
		return buf, fmt.Errorf("%w: prefix", ErrPathNotUTF8)
	}

	putOctal(buf[:], offMode, widMode, uint64(h.Mode&0o7777))
	putOctal(buf[:], offUID, widUID, uint64(h.UID))
	putOctal(buf[:], offGID, widGID, uint64(h.GID))

	size := h.Size
	if h.Typeflag != TypeRegular {
		size = 0
	}
	putOctal(buf[:], offSize, widSize, uint64(size))

	secs := h.ModTime.Unix()
	if h.ModTime.Before(time.Unix(0, 0)) || secs < 0 {
		return buf, ErrPreEpoch
	}
	putOctal(buf[:], offMtime, widMtime, uint64(secs))

	buf[offTypeflag] = h.Typeflag

	if err := putString(buf[:], offLinkname, widLinkname, h.LinkTarget); err != nil {
		return buf, fmt.Errorf("%w: linkname", ErrPathNotUTF8)
	}

	copy(buf[offMagic:offMagic+widMagic], "ustar ")
	buf[offVersion] = ' '
	buf[offVersion+1] = 0

	ownerName, groupName, err := lookupOwnerGroup(h.UID, h.GID)
	if err != nil {
		return buf, err
	}
	if err := putString(buf[:], offOwner, widOwner, ownerName); err != nil {
		return buf, fmt.Errorf("%w: owner", ErrNameNotUTF8)
	}
	if err := putString(buf[:], offGroup, widGroup, groupName); err != nil {
		return buf, fmt.Errorf("%w: group", ErrNameNotUTF8)
	}

	// devmajor/devminor/pad are intentionally left zero.

	// Checksum: fill the checksum field with spaces, sum every byte in the
	// block, then overwrite the checksum field with the octal result.
	for i := 0; i < widChecksum; i++ {
		buf[offChecksum+i] = ' '
	}
	var sum uint32
	for _, b := range buf {
		sum += uint32(b)
	}
	checksum := fmt.Sprintf("%06o", sum)
	copy(buf[offChecksum:offChecksum+6], checksum)
	buf[offChecksum+6] = 0
	buf[offChecksum+7] = ' '

	return buf, nil
}

// splitName splits path into (name, prefix). If path fits in 100 bytes,
// prefix is empty. Otherwise it splits at the first '/' that leaves name
// within 100 bytes (the '/' itself is dropped); with no such separator,
// the trailing 100 bytes form name and everything before forms prefix.
func splitName(path string) (name, prefix string) {
	if len(path) <= widName {
		return path, ""
	}
	splitAt := len(path) - widName
	// Prefer splitting on a path separator near the boundary so prefix and
	// name both remain legible paths, falling back to a hard byte split
	// when no separator is close enough.
	for i := splitAt; i < len(path) && i < splitAt+widPrefix; i++ {
		if path[i] == '/' {
			return path[i+1:], path[:i]
		}
	}
	return path[splitAt:], path[:splitAt]
}

func putString(buf []byte, offset, width int, s string) error {
	if len(s) > width {
		s = s[:width]
	}
	if !isValidUTF8Subset(s) {
		return errors.New("not representable")
	}
	copy(buf[offset:offset+width], s)
	return nil
}

func isValidUTF8Subset(s string) bool {
	for _, r := range s {
		if r == 0xFFFD {
			return false
		}
	}
	return true
}

func putOctal(buf []byte, offset, width int, v uint64) {
	s := strconv.FormatUint(v, 8)
	for len(s) < width-1 {
		s = "0" + s
	}
	if len(s) > width-1 {
		s = s[len(s)-(width-1):]
	}
	copy(buf[offset:offset+width-1], s)
	buf[offset+width-1] = 0
}

func lookupOwnerGroup(uid, gid uint32) (owner, group string, err error) {
	u, uerr := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if uerr != nil {
		return "", "", fmt.Errorf("%w: uid %d", ErrUnknownOwner, uid)
	}
	g, gerr := lookupGroupID(strconv.FormatUint(uint64(gid), 10))
	if gerr != nil {
		return "", "", fmt.Errorf("%w: gid %d", ErrUnknownGroup, gid)
	}
	return u.Username, g, nil
}

func lookupGroupID(gid string) (string, error) {
	g, err := user.LookupGroupId(gid)
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

// Trailer returns the two zero-filled end-of-archive blocks.
func Trailer() [2 * BlockSize]byte {
	return [2 * BlockSize]byte{}
}

// PaddingFor returns the number of zero bytes needed to pad size up to the
// next BlockSize boundary (0 if size is already a multiple of BlockSize).
func PaddingFor(size int64) int64 {
	rem := size % BlockSize
	if rem == 0 {
		return 0
	}
	return BlockSize - rem
}

// HeaderFromFileInfo builds a Header for src given its (symlink) metadata,
// the relativized archive name, and the original absolute path used to
// resolve a symlink's link target.
func HeaderFromFileInfo(name, originalSrcPath string, info os.FileInfo) (Header, error) {
	mode := info.Mode()
	typ := TypeflagFromMode(mode)

	archiveName := name
	if typ == TypeDir && len(archiveName) > 0 && archiveName[len(archiveName)-1] != '/' {
		archiveName += "/"
	}

	h := Header{
		Name:     archiveName,
		Mode:     uint32(mode.Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Typeflag: typ,
	}

	if sys, ok := sysStat(info); ok {
		h.UID = sys.UID
		h.GID = sys.GID
	}

	if typ == TypeSymlink {
		target, err := os.Readlink(originalSrcPath)
		if err != nil {
			return Header{}, fmt.Errorf("readlink %s: %w", originalSrcPath, err)
		}
		h.LinkTarget = target
	}

	return h, nil
}
