package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// accessGranted implements §4.K access_granted: root bypasses the
// permission bits for read/write but still needs an X bit from some
// triple to execute/traverse; everyone else is judged against whichever
// triple (owner/group/other) applies to them.
func accessGranted(inode *Inode, caller Credentials, opMask uint32) bool {

	readWrite := opMask &^ (PermOwnerX | PermGroupX | PermOtherX)
	execBit := opMask & (PermOwnerX | PermGroupX | PermOtherX)

	if caller.IsRoot() {
		if readWrite != 0 {
			// Root's R/W request carries no further restriction.
			readWrite = 0
		}
		if execBit != 0 {
			anyX := inode.Perm()&(PermOwnerX|PermGroupX|PermOtherX) != 0
			if !anyX {
				return false
			}
		}
		return readWrite == 0
	}

	var triple uint32
	switch {
	case caller.UID == inode.Owner:
		triple = (inode.Perm() >> 6) & 07
	case caller.GID == inode.Group:
		triple = (inode.Perm() >> 3) & 07
	default:
		triple = inode.Perm() & 07
	}

	requested := uint32(0)
	if opMask&(PermOwnerR|PermGroupR|PermOtherR) != 0 {
		requested |= 04
	}
	if opMask&(PermOwnerW|PermGroupW|PermOtherW) != 0 {
		requested |= 02
	}
	if opMask&(PermOwnerX|PermGroupX|PermOtherX) != 0 {
		requested |= 01
	}

	return requested&triple == requested

}
