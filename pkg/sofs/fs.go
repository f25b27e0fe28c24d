package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"

	"github.com/google/uuid"
)

// Credentials identifies the calling process for access checks (component
// K) and for ownership at inode-allocation time.
type Credentials struct {
	UID uint32
	GID uint32
}

// IsRoot reports whether these credentials are the superuser's.
func (c Credentials) IsRoot() bool {
	return c.UID == 0
}

// Filesystem is the context object that replaces the source model's
// process-wide globals (spec.md §9, "Global mutable state"): it owns the
// device, the buffer cache, and the in-memory superblock for one mounted
// volume. It is not safe for concurrent use (spec.md §5).
type Filesystem struct {
	dev   BlockDevice
	cache *bufferCache
	sb    *Superblock

	// SessionID tags this mount for log correlation only; it is never
	// persisted to disk.
	SessionID uuid.UUID
}

// Mount opens the backing container at path, loads and validates its
// superblock, and flags the volume as un-properly-unmounted until a
// matching Unmount. Returns ErrBadSuperblock if the container does not
// hold a well-formed SOFS14 image; an image left un-properly-unmounted is
// accepted.
func Mount(path string) (*Filesystem, error) {

	dev, err := OpenDevice(path)
	if err != nil {
		return nil, err
	}

	fs := &Filesystem{
		dev:       dev,
		cache:     newBufferCache(dev),
		SessionID: uuid.New(),
	}

	sb, err := fs.loadSuperblock()
	if err != nil {
		dev.Close()
		return nil, err
	}

	sb.MountState = MountUDU
	if err := fs.storeSuperblock(sb); err != nil {
		dev.Close()
		return nil, err
	}

	fs.sb = sb
	return fs, nil

}

// Unmount flushes the superblock with the mount-state flag flipped to
// PRU, the final write of a clean shutdown (spec.md §5), and closes the
// backing container.
func (fs *Filesystem) Unmount() error {

	fs.sb.MountState = MountPRU
	if err := fs.storeSuperblock(fs.sb); err != nil {
		return err
	}

	return fs.dev.Close()

}

// refreshSuperblock re-reads block 0 and replaces the in-memory superblock
// copy with it. In this implementation every mutator works on fs.sb
// directly, and nothing in the package calls refreshSuperblock.
func (fs *Filesystem) refreshSuperblock() error {
	sb, err := fs.loadSuperblock()
	if err != nil {
		return err
	}
	fs.sb = sb
	return nil
}

func (fs *Filesystem) String() string {
	return fmt.Sprintf("sofs14 volume %q (session %s)", fs.sb.nameString(), fs.SessionID)
}
