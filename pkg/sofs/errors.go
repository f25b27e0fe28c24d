package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "errors"

// Error taxonomy (spec.md §7). Every CORE operation returns one of these
// sentinels, wrapped with context via fmt.Errorf("%w", ...) where useful,
// but always resolvable with errors.Is.
var (
	// Argument errors.
	ErrInvalidInode    = errors.New("sofs: inode number out of range")
	ErrInvalidCluster  = errors.New("sofs: cluster index out of range")
	ErrNilBuffer       = errors.New("sofs: nil buffer")
	ErrIllegalPath     = errors.New("sofs: illegal path")
	ErrNameTooLong     = errors.New("sofs: name too long")
	ErrBadOp           = errors.New("sofs: bad operation code")
	ErrNotDirectory    = errors.New("sofs: not a directory")
	ErrIsDirectory     = errors.New("sofs: is a directory")
	ErrTooManySymlinks = errors.New("sofs: too many symlinks")
	ErrRelativePath    = errors.New("sofs: relative path")

	// Access errors.
	ErrNoExec  = errors.New("sofs: permission denied (execute)")
	ErrNoWrite = errors.New("sofs: permission denied (write)")
	ErrNoRead  = errors.New("sofs: permission denied (read)")

	// State errors.
	ErrNoSpace       = errors.New("sofs: no space left")
	ErrFileTooBig    = errors.New("sofs: file too big")
	ErrNotEmpty      = errors.New("sofs: directory not empty")
	ErrExists        = errors.New("sofs: entry exists")
	ErrNotFound      = errors.New("sofs: entry not found")
	ErrTooManyLinks  = errors.New("sofs: too many links")
	ErrLoop          = errors.New("sofs: too many levels of symbolic links")

	// File cluster map errors.
	ErrAlreadyAllocated = errors.New("sofs: cluster index already allocated")
	ErrNotInList        = errors.New("sofs: cluster index not allocated")
	ErrWrongInode       = errors.New("sofs: cluster owner mismatch")

	// Consistency errors.
	ErrBadSuperblock       = errors.New("sofs: inconsistent superblock")
	ErrInconsistentInode   = errors.New("sofs: inconsistent free or in-use inode")
	ErrInconsistentCluster = errors.New("sofs: inconsistent cluster header")
	ErrInconsistentRefs    = errors.New("sofs: inconsistent list of cluster references")
	ErrMappingMismatch     = errors.New("sofs: cluster ownership mismatch")

	// I/O errors.
	ErrDeviceNotOpen = errors.New("sofs: device not open")
	ErrIO            = errors.New("sofs: I/O failure")
	ErrSeek          = errors.New("sofs: seek failure")
)
