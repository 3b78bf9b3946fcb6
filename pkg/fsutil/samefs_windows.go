// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

//go:build windows

package fsutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

func sameFilesystem(path1, path2 string) (bool, error) {
	serial1, err := volumeSerial(path1)
	if err != nil {
		return false, err
	}
	serial2, err := volumeSerial(path2)
	if err != nil {
		return false, err
	}
	return serial1 == serial2, nil
}

func volumeSerial(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var info windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(windows.Handle(f.Fd()), &info); err != nil {
		return 0, fmt.Errorf("file information for %s: %w", path, err)
	}
	return info.VolumeSerialNumber, nil
}
