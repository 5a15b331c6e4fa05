// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package tarfmt

import "os"

type statInfo struct {
	UID uint32
	GID uint32
}

// sysStat has no POSIX uid/gid to report on non-unix platforms; this tool
// targets POSIX filesystems only (spec Non-goals exclude Windows device
// semantics), so headers built here simply carry uid/gid 0.
func sysStat(info os.FileInfo) (statInfo, bool) {
	return statInfo{}, false
}
