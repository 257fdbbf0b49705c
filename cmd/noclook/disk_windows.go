// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 NOCLook Contributors

//go:build windows

package main

import "golang.org/x/sys/windows"

func diskFree(path string) (string, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return "", err
	}
	var free uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, nil, nil); err != nil {
		return "", err
	}
	return formatBytes(free) + " available", nil
}
