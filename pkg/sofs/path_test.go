package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetDirEntryByPathRoot(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	r, err := fs.GetDirEntryByPath(root, "/")
	require.NoError(t, err)
	require.Equal(t, uint32(RootInode), r.DirInode)
	require.Equal(t, uint32(RootInode), r.EntryInode)
}

func TestGetDirEntryByPathRejectsRelative(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	_, err := fs.GetDirEntryByPath(root, "etc/passwd")
	require.ErrorIs(t, err, ErrRelativePath)
}

func TestGetDirEntryByPathRejectsOverlongPath(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	p := "/" + strings.Repeat("a", MaxPath+1)
	_, err := fs.GetDirEntryByPath(root, p)
	require.ErrorIs(t, err, ErrIllegalPath)
}

func TestGetDirEntryByPathRejectsOverlongComponent(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	p := "/" + strings.Repeat("b", MaxName+1)
	_, err := fs.GetDirEntryByPath(root, p)
	require.ErrorIs(t, err, ErrNameTooLong)
}

func TestGetDirEntryByPathMissingEntry(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	_, err := fs.GetDirEntryByPath(root, "/nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetDirEntryByPathFollowsAbsoluteSymlink(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 16)
	defer cleanup()

	require.NoError(t, fs.CreateFile(root, "/target"))
	require.NoError(t, fs.Symlink(root, "/target", "/link"))

	r, err := fs.GetDirEntryByPath(root, "/link")
	require.NoError(t, err)

	targetR, err := fs.GetDirEntryByPath(root, "/target")
	require.NoError(t, err)
	require.Equal(t, targetR.EntryInode, r.EntryInode)
}

func TestGetDirEntryByPathFollowsRelativeSymlink(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 16)
	defer cleanup()

	require.NoError(t, fs.Mkdir(root, "/dir"))
	require.NoError(t, fs.CreateFile(root, "/dir/target"))
	require.NoError(t, fs.Symlink(root, "target", "/dir/link"))

	r, err := fs.GetDirEntryByPath(root, "/dir/link")
	require.NoError(t, err)

	targetR, err := fs.GetDirEntryByPath(root, "/dir/target")
	require.NoError(t, err)
	require.Equal(t, targetR.EntryInode, r.EntryInode)
}

// TestSymlinkChainBeyondMaxSymlinksFails proves that a symlink pointing at
// another symlink exceeds MaxSymlinks (1) and surfaces ErrLoop, matching
// spec.md's "at most one symlink hop" rule.
func TestSymlinkChainBeyondMaxSymlinksFails(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 16)
	defer cleanup()

	require.NoError(t, fs.CreateFile(root, "/real"))
	require.NoError(t, fs.Symlink(root, "/real", "/link1"))
	require.NoError(t, fs.Symlink(root, "/link1", "/link2"))

	_, err := fs.GetDirEntryByPath(root, "/link2")
	require.ErrorIs(t, err, ErrLoop)
}

func TestGetDirEntryByPathRequiresExecOnIntermediateDirectories(t *testing.T) {
	fs, cleanup := newTestVolume(t, 2*IPB, 16)
	defer cleanup()

	require.NoError(t, fs.Mkdir(root, "/priv"))
	require.NoError(t, fs.CreateFile(root, "/priv/secret"))

	n, inode, err := fs.Stat(root, "/priv")
	require.NoError(t, err)
	inode.Mode = inode.Mode&^ModePermMask | (PermOwnerR | PermOwnerW)
	require.NoError(t, fs.writeInodeRaw(n, inode))

	_, err = fs.GetDirEntryByPath(alice, "/priv/secret")
	require.ErrorIs(t, err, ErrNoExec)
}
