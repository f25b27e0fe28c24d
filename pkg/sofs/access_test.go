package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newAccessTestInode(owner, group, perm uint32) *Inode {
	return &Inode{
		Mode:  ModeTypeFile | perm,
		Owner: owner,
		Group: group,
	}
}

func TestAccessGrantedOwnerTriple(t *testing.T) {
	inode := newAccessTestInode(alice.UID, alice.GID, PermOwnerR|PermOwnerW)
	require.True(t, accessGranted(inode, alice, PermOwnerR))
	require.True(t, accessGranted(inode, alice, PermOwnerW))
	require.False(t, accessGranted(inode, alice, PermOwnerX))
}

func TestAccessGrantedGroupTriple(t *testing.T) {
	// bob shares alice's file's group but is not its owner.
	inode := newAccessTestInode(alice.UID, bob.GID, PermGroupR)
	require.True(t, accessGranted(inode, bob, PermOwnerR|PermGroupR|PermOtherR))
	require.False(t, accessGranted(inode, bob, PermOwnerW|PermGroupW|PermOtherW))
}

func TestAccessGrantedOtherTriple(t *testing.T) {
	inode := newAccessTestInode(alice.UID, alice.GID, PermOtherR)
	require.True(t, accessGranted(inode, bob, PermOwnerR|PermGroupR|PermOtherR))
	require.False(t, accessGranted(inode, bob, PermOwnerW|PermGroupW|PermOtherW))
}

func TestAccessGrantedOwnerTripleDoesNotLeakToNonOwner(t *testing.T) {
	// Owner has rw but group/other have nothing; bob (neither owner nor
	// group) must be refused even though the owner triple would allow it.
	inode := newAccessTestInode(alice.UID, alice.GID, PermOwnerR|PermOwnerW)
	require.False(t, accessGranted(inode, bob, PermOwnerR|PermGroupR|PermOtherR))
}

func TestAccessGrantedRootBypassesReadWrite(t *testing.T) {
	inode := newAccessTestInode(alice.UID, alice.GID, 0)
	require.True(t, accessGranted(inode, root, PermOwnerR|PermGroupR|PermOtherR))
	require.True(t, accessGranted(inode, root, PermOwnerW|PermGroupW|PermOtherW))
}

// TestAccessGrantedRootStillNeedsSomeExecBit proves root's bypass does not
// extend to execute/traverse: some triple must carry an X bit.
func TestAccessGrantedRootStillNeedsSomeExecBit(t *testing.T) {
	noExec := newAccessTestInode(alice.UID, alice.GID, PermOwnerR|PermGroupR|PermOtherR)
	require.False(t, accessGranted(noExec, root, PermOwnerX|PermGroupX|PermOtherX))

	withExec := newAccessTestInode(alice.UID, alice.GID, PermOtherX)
	require.True(t, accessGranted(withExec, root, PermOwnerX|PermGroupX|PermOtherX))
}

func TestAccessGrantedRequiresAllRequestedBits(t *testing.T) {
	inode := newAccessTestInode(alice.UID, alice.GID, PermOwnerR)
	require.False(t, accessGranted(inode, alice, PermOwnerR|PermOwnerW))
}
