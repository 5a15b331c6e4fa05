// Copyright 2025 StrongDM Inc
// SPDX-License-Identifier: Apache-2.0

//go:build !unix

package sink

import "os"

func linkCount(info os.FileInfo) uint64 {
	return 0
}
