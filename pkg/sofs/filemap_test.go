package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allocTestFile(t *testing.T, fs *Filesystem) (uint32, *Inode) {
	t.Helper()
	n, err := fs.allocInode(TypeFile, 1000, 1000)
	require.NoError(t, err)
	inode, err := fs.readInode(n, StateInUse)
	require.NoError(t, err)
	return n, inode
}

func TestHandleFileClusterDirectRange(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 24)
	defer cleanup()

	n, inode := allocTestFile(t, fs)

	for i := uint32(0); i < NDirect; i++ {
		l, err := fs.handleFileCluster(n, inode, i, opAlloc)
		require.NoError(t, err)
		require.NotEqual(t, NullCluster, l)

		got, err := fs.handleFileCluster(n, inode, i, opGet)
		require.NoError(t, err)
		require.Equal(t, l, got)
	}

	require.Equal(t, uint32(NDirect), inode.CluCount)

	_, err := fs.handleFileCluster(n, inode, 0, opAlloc)
	require.ErrorIs(t, err, ErrAlreadyAllocated)
}

func TestHandleFileClusterCrossesIntoSingleIndirect(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 24)
	defer cleanup()

	n, inode := allocTestFile(t, fs)

	l, err := fs.handleFileCluster(n, inode, NDirect, opAlloc)
	require.NoError(t, err)
	require.NotEqual(t, NullCluster, l)
	require.NotEqual(t, NullCluster, inode.I1)

	// Allocating the indirection cluster plus the leaf costs two clusters.
	require.Equal(t, uint32(2), inode.CluCount)

	got, err := fs.handleFileCluster(n, inode, NDirect, opGet)
	require.NoError(t, err)
	require.Equal(t, l, got)
}

func TestFreeCleanCascadesIndirectionCluster(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 24)
	defer cleanup()

	n, inode := allocTestFile(t, fs)

	_, err := fs.handleFileCluster(n, inode, NDirect, opAlloc)
	require.NoError(t, err)
	require.NotEqual(t, NullCluster, inode.I1)

	_, err = fs.handleFileCluster(n, inode, NDirect, opFreeClean)
	require.NoError(t, err)

	// The lone leaf under I1 is gone, so I1 itself must have been freed too.
	require.Equal(t, NullCluster, inode.I1)
	require.Equal(t, uint32(0), inode.CluCount)
}

func TestCleanLeafVerifiesOwnership(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	n, inode := allocTestFile(t, fs)

	l, err := fs.handleFileCluster(n, inode, 0, opAlloc)
	require.NoError(t, err)

	// FREE (not FREE_CLEAN) leaves the slot populated and the cluster's
	// header still claiming n as owner -- this is the free-dirty state
	// CLEAN is meant to scrub.
	_, err = fs.handleFileCluster(n, inode, 0, opFree)
	require.NoError(t, err)

	err = fs.cleanLeaf(n, l)
	require.NoError(t, err)

	c, err := fs.readCluster(l)
	require.NoError(t, err)
	require.Equal(t, NullInode, c.Stat)

	// A second clean against the wrong owner must fail.
	err = fs.cleanLeaf(n+1, l)
	require.ErrorIs(t, err, ErrWrongInode)
}

func TestAttachLogicalClusterLinksNeighbours(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	n, inode := allocTestFile(t, fs)

	l0, err := fs.handleFileCluster(n, inode, 0, opAlloc)
	require.NoError(t, err)
	l1, err := fs.handleFileCluster(n, inode, 1, opAlloc)
	require.NoError(t, err)

	c0, err := fs.readCluster(l0)
	require.NoError(t, err)
	c1, err := fs.readCluster(l1)
	require.NoError(t, err)

	require.Equal(t, l1, c0.Next)
	require.Equal(t, l0, c1.Prev)
}
