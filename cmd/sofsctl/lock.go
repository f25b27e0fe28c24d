package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"os"
	"syscall"
)

// lockDevice takes an advisory exclusive flock on the backing container for
// the lifetime of the process, matching spec.md §5's "single mounter"
// concurrency model: the core itself does no locking, so the thin sofsctl
// adapter is where that exclusion is enforced.
func lockDevice(path string) (*os.File, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: already locked by another sofsctl: %w", path, err)
	}

	return f, nil

}

func unlockDevice(f *os.File) {
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}
