// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

//go:build !windows

package main

import "golang.org/x/sys/unix"

func diskFree(path string) (string, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return "", err
	}
	return formatBytes(stat.Bavail*uint64(stat.Bsize)) + " available", nil
}
