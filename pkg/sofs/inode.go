package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Inode is the fixed-size on-disk inode record (spec.md §6). VD1/VD2 are
// the tagged overlay described in SPEC_FULL.md/design note §9: when the
// inode is in-use they hold aTime/mTime, when free they hold the
// next/prev free-list links. Always go through the accessor methods below
// rather than reading the fields directly.
type Inode struct {
	Mode     uint32
	RefCount uint32
	Owner    uint32
	Group    uint32
	Size     uint64
	CluCount uint32
	VD1      uint32
	VD2      uint32
	D        [NDirect]uint32
	I1       uint32
	I2       uint32
	Reserved [inodeReservedBytes]byte
}

// InodeState is the tri-state spec.md §3 "Inode states" describes.
type InodeState int

const (
	StateInUse InodeState = iota
	StateFreeClean
	StateFreeDirty
)

// IsFree reports whether the free bit is set, i.e. the inode is in either
// free substate.
func (n *Inode) IsFree() bool {
	return n.Mode&ModeFree != 0
}

// Type returns the inode's file type. Only meaningful when the inode is
// in-use; callers must check State() first.
func (n *Inode) Type() InodeType {
	switch n.Mode & ModeTypeMask {
	case ModeTypeDir:
		return TypeDir
	case ModeTypeSymlink:
		return TypeSymlink
	default:
		return TypeFile
	}
}

// Perm returns the permission bits (9 low bits of Mode).
func (n *Inode) Perm() uint32 {
	return n.Mode & ModePermMask
}

// isDirty reports whether a free inode still carries stale references
// from a deleted file (free-dirty) as opposed to having been fully
// scrubbed (free-clean).
func (n *Inode) isDirty() bool {
	if !n.IsFree() {
		return false
	}
	return n.CluCount != 0 || n.D[0] != NullCluster || n.I1 != NullCluster || n.I2 != NullCluster
}

// State classifies the inode into one of the three substates spec.md §3
// names.
func (n *Inode) State() InodeState {
	if !n.IsFree() {
		return StateInUse
	}
	if n.isDirty() {
		return StateFreeDirty
	}
	return StateFreeClean
}

// AccessTime returns the inode's last-access time. Panics if the inode is
// free: VD1 means something else there (see design note §9).
func (n *Inode) AccessTime() uint32 {
	if n.IsFree() {
		panic("sofs: AccessTime read on a free inode")
	}
	return n.VD1
}

func (n *Inode) setAccessTime(t uint32) {
	if n.IsFree() {
		panic("sofs: AccessTime set on a free inode")
	}
	n.VD1 = t
}

// ModTime returns the inode's last-modification time. Panics if free.
func (n *Inode) ModTime() uint32 {
	if n.IsFree() {
		panic("sofs: ModTime read on a free inode")
	}
	return n.VD2
}

func (n *Inode) setModTime(t uint32) {
	if n.IsFree() {
		panic("sofs: ModTime set on a free inode")
	}
	n.VD2 = t
}

// freeNext/freePrev are the free-list links, meaningful only while the
// inode is free (either substate).
func (n *Inode) freeNext() uint32 {
	if !n.IsFree() {
		panic("sofs: freeNext read on an in-use inode")
	}
	return n.VD1
}

func (n *Inode) setFreeNext(v uint32) {
	if !n.IsFree() {
		panic("sofs: freeNext set on an in-use inode")
	}
	n.VD1 = v
}

func (n *Inode) freePrev() uint32 {
	if !n.IsFree() {
		panic("sofs: freePrev read on an in-use inode")
	}
	return n.VD2
}

func (n *Inode) setFreePrev(v uint32) {
	if !n.IsFree() {
		panic("sofs: freePrev set on an in-use inode")
	}
	n.VD2 = v
}

func nowTime() uint32 {
	return uint32(time.Now().Unix())
}

// inodeBlockOffset converts an inode number to its (block, offset within
// block) location, per spec.md §4.D.
func inodeBlockOffset(sb *Superblock, n uint32) (block uint32, offset int) {
	block = sb.ITableStart + n/IPB
	offset = int(n%IPB) * InodeSize
	return
}

func encodeInode(n *Inode) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentInode, err)
	}
	return buf.Bytes(), nil
}

func decodeInode(data []byte) (*Inode, error) {
	n := new(Inode)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentInode, err)
	}
	return n, nil
}

// readInode loads inode n and verifies it is in expectedState. For
// in-use reads it updates aTime and persists that single timestamp
// change, matching spec.md §4.D.
func (fs *Filesystem) readInode(nInode uint32, expectedState InodeState) (*Inode, error) {

	if nInode >= fs.sb.ITotal {
		return nil, fmt.Errorf("%w: %d", ErrInvalidInode, nInode)
	}

	block, offset := inodeBlockOffset(fs.sb, nInode)

	data, err := fs.cache.load(block)
	if err != nil {
		return nil, err
	}

	inode, err := decodeInode(data[offset : offset+InodeSize])
	if err != nil {
		return nil, err
	}

	if inode.State() != expectedState {
		return nil, fmt.Errorf("%w: inode %d is in state %d, expected %d", ErrInconsistentInode, nInode, inode.State(), expectedState)
	}

	if expectedState == StateInUse {
		inode.setAccessTime(nowTime())
		if err := fs.writeInodeRaw(nInode, inode); err != nil {
			return nil, err
		}
	}

	return inode, nil

}

// writeInode validates inode against expectedState, stamps mTime/aTime
// for in-use inodes, and persists it (spec.md §4.D).
func (fs *Filesystem) writeInode(nInode uint32, inode *Inode, expectedState InodeState) error {

	if nInode >= fs.sb.ITotal {
		return fmt.Errorf("%w: %d", ErrInvalidInode, nInode)
	}

	if inode.State() != expectedState {
		return fmt.Errorf("%w: inode %d write state mismatch", ErrInconsistentInode, nInode)
	}

	if expectedState == StateInUse {
		t := nowTime()
		inode.setModTime(t)
		inode.setAccessTime(t)
	}

	return fs.writeInodeRaw(nInode, inode)

}

// writeInodeRaw persists inode without touching timestamps; used by
// readInode's atime bump and by callers that have already stamped times
// themselves (e.g. the allocator, which sets aTime=mTime=now directly).
func (fs *Filesystem) writeInodeRaw(nInode uint32, inode *Inode) error {

	block, offset := inodeBlockOffset(fs.sb, nInode)

	data, err := fs.cache.load(block)
	if err != nil {
		return err
	}

	encoded, err := encodeInode(inode)
	if err != nil {
		return err
	}

	copy(data[offset:offset+InodeSize], encoded)

	return fs.cache.store(block, data)

}
