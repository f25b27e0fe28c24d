package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMkdirAndList(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 24)
	defer cleanup()

	require.NoError(t, fs.Mkdir(root, "/etc"))

	entries, err := fs.List(root, "/")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "etc")

	sub, err := fs.List(root, "/etc")
	require.NoError(t, err)
	require.Len(t, sub, 2) // "." and ".."
}

func TestCreateFileThenDuplicateRejected(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 24)
	defer cleanup()

	require.NoError(t, fs.CreateFile(root, "/hello"))

	err := fs.CreateFile(root, "/hello")
	require.ErrorIs(t, err, ErrExists)
}

func TestRemoveTombstonesAndFreesOnLastReference(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 24)
	defer cleanup()

	require.NoError(t, fs.CreateFile(root, "/bye"))
	n, _, err := fs.Stat(root, "/bye")
	require.NoError(t, err)

	require.NoError(t, fs.Remove(root, "/bye"))

	_, _, err = fs.Stat(root, "/bye")
	require.ErrorIs(t, err, ErrNotFound)

	freed, err := fs.readInodeAnyFree(n)
	require.NoError(t, err)
	require.True(t, freed.IsFree())
}

func TestRemoveNonEmptyDirectoryRejected(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 24)
	defer cleanup()

	require.NoError(t, fs.Mkdir(root, "/a"))
	require.NoError(t, fs.CreateFile(root, "/a/b"))

	err := fs.Remove(root, "/a")
	require.ErrorIs(t, err, ErrNotEmpty)
}

func TestRenameSameDirectory(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 24)
	defer cleanup()

	require.NoError(t, fs.CreateFile(root, "/old"))
	require.NoError(t, fs.Rename(root, "/old", "/new"))

	_, _, err := fs.Stat(root, "/old")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = fs.Stat(root, "/new")
	require.NoError(t, err)
}

func TestRenameAcrossDirectoriesUpdatesDotDot(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 24)
	defer cleanup()

	require.NoError(t, fs.Mkdir(root, "/src"))
	require.NoError(t, fs.Mkdir(root, "/dst"))
	require.NoError(t, fs.Mkdir(root, "/src/moveme"))

	require.NoError(t, fs.Rename(root, "/src/moveme", "/dst/moveme"))

	_, _, err := fs.Stat(root, "/src/moveme")
	require.ErrorIs(t, err, ErrNotFound)

	movedN, _, err := fs.Stat(root, "/dst/moveme")
	require.NoError(t, err)

	entries, err := fs.List(root, "/dst/moveme")
	require.NoError(t, err)
	var dotdot uint32
	for _, e := range entries {
		if e.Name == ".." {
			dotdot = e.NInode
		}
	}
	dstN, _, err := fs.Stat(root, "/dst")
	require.NoError(t, err)
	require.Equal(t, dstN, dotdot)
	require.NotEqual(t, uint32(0), movedN)
}

func TestDirectoryOperationsRequireWriteAccess(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 24)
	defer cleanup()

	rootInode, err := fs.readInode(RootInode, StateInUse)
	require.NoError(t, err)
	rootInode.Mode = rootInode.Mode&^ModePermMask | (PermOwnerR | PermOwnerX | PermGroupR | PermGroupX | PermOtherR | PermOtherX)
	require.NoError(t, fs.writeInodeRaw(RootInode, rootInode))

	createErr := fs.CreateFile(alice, "/nope")
	require.ErrorIs(t, createErr, ErrNoWrite)
}
