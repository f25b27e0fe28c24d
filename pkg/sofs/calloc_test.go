package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocClusterAndFreeRoundTrip(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 8)
	defer cleanup()

	before := fs.sb.DZoneFree

	l, err := fs.allocCluster(RootInode)
	require.NoError(t, err)
	require.NotEqual(t, RootDataCluster, l)
	require.Equal(t, before-1, fs.sb.DZoneFree)

	c, err := fs.readCluster(l)
	require.NoError(t, err)
	require.Equal(t, RootInode, c.Stat)
	require.False(t, c.IsFree())

	require.NoError(t, fs.freeCluster(l))
	require.Equal(t, before, fs.sb.DZoneFree)

	// FREE leaves Stat unchanged: the cluster is free-dirty, not yet clean.
	c, err = fs.readCluster(l)
	require.NoError(t, err)
	require.Equal(t, RootInode, c.Stat)
}

func TestFreeRootClusterRejected(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 4)
	defer cleanup()

	err := fs.freeCluster(RootDataCluster)
	require.ErrorIs(t, err, ErrInvalidCluster)
}

func TestFreeClusterTwiceRejected(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 4)
	defer cleanup()

	l, err := fs.allocCluster(RootInode)
	require.NoError(t, err)
	require.NoError(t, fs.freeCluster(l))

	err = fs.freeCluster(l)
	require.ErrorIs(t, err, ErrInconsistentCluster)
}

// TestCacheReplenishDepleteCycle forces the retrieval cache to refill from
// the on-disk free list more than once, and the insertion cache to spill
// back to the list, exercising replenish/deplete's cooperative refill
// described in spec.md's two-cache design.
func TestCacheReplenishDepleteCycle(t *testing.T) {
	dZoneTotal := uint32(3*CacheSize + 10)
	fs, cleanup := newTestVolume(t, IPB, dZoneTotal)
	defer cleanup()

	var allocated []uint32
	for i := uint32(0); i < 2*CacheSize; i++ {
		l, err := fs.allocCluster(RootInode)
		require.NoError(t, err)
		allocated = append(allocated, l)
	}

	for _, l := range allocated {
		require.NoError(t, fs.freeCluster(l))
	}

	// Drain everything back out; every cluster must come back exactly
	// once and none may be the reserved root cluster.
	seen := make(map[uint32]bool)
	for fs.sb.DZoneFree > 0 {
		l, err := fs.allocCluster(RootInode)
		require.NoError(t, err)
		require.False(t, seen[l], "cluster %d handed out twice", l)
		require.NotEqual(t, RootDataCluster, l)
		seen[l] = true
	}

	require.Equal(t, int(dZoneTotal-1), len(seen))
}

func TestAllocClusterExhaustion(t *testing.T) {
	fs, cleanup := newTestVolume(t, IPB, 4)
	defer cleanup()

	for fs.sb.DZoneFree > 0 {
		_, err := fs.allocCluster(RootInode)
		require.NoError(t, err)
	}

	_, err := fs.allocCluster(RootInode)
	require.ErrorIs(t, err, ErrNoSpace)
}
