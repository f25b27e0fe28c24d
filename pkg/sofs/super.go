package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Superblock is the on-disk block-0 descriptor (spec.md §6). Field order
// and sizes are exact; the byte offset of each field is given in the
// comment beside it.
type Superblock struct {
	Magic       uint32     // 0x00
	Version     uint32     // 0x04
	Name        [32]byte   // 0x08
	NTotal      uint32     // 0x28
	MountState  uint32     // 0x2C
	ITableStart uint32     // 0x30
	ITableSize  uint32     // 0x34
	ITotal      uint32     // 0x38
	IFree       uint32     // 0x3C
	IHead       uint32     // 0x40
	ITail       uint32     // 0x44
	DZoneStart  uint32     // 0x48
	DZoneTotal  uint32     // 0x4C
	DZoneFree   uint32     // 0x50
	DHead       uint32     // 0x54
	DTail       uint32     // 0x58

	RetrievCache [CacheSize]uint32 // 0x5C
	RetrievIdx   uint32

	InsertCache [CacheSize]uint32
	InsertIdx   uint32

	Reserved [superblockReservedBytes]byte
}

func (sb *Superblock) nameString() string {
	i := bytes.IndexByte(sb.Name[:], 0)
	if i < 0 {
		i = len(sb.Name)
	}
	return string(sb.Name[:i])
}

func (sb *Superblock) setName(name string) {
	for i := range sb.Name {
		sb.Name[i] = 0
	}
	copy(sb.Name[:], name)
}

func encodeSuperblock(sb *Superblock) ([]byte, error) {

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, sb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSuperblock, err)
	}

	for i := superblockFixedBytes; i < BlockSize; i++ {
		buf.Bytes()[i] = 0xEE
	}

	out := buf.Bytes()
	if len(out) != BlockSize {
		return nil, fmt.Errorf("%w: encoded superblock is %d bytes, expected %d", ErrBadSuperblock, len(out), BlockSize)
	}

	return out, nil

}

func decodeSuperblock(data []byte) (*Superblock, error) {

	if len(data) != BlockSize {
		return nil, fmt.Errorf("%w: block is %d bytes, expected %d", ErrBadSuperblock, len(data), BlockSize)
	}

	sb := new(Superblock)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, sb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSuperblock, err)
	}

	return sb, nil

}

// loadSuperblock reads block 0 and validates its magic. Returns
// ErrBadSuperblock if the block is not a well-formed SOFS14 superblock.
// Either mount state (properly unmounted or not) is accepted.
func (fs *Filesystem) loadSuperblock() (*Superblock, error) {

	data, err := fs.cache.load(0)
	if err != nil {
		return nil, err
	}

	sb, err := decodeSuperblock(data)
	if err != nil {
		return nil, err
	}

	if sb.Magic != Magic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrBadSuperblock, sb.Magic)
	}

	if err := checkSuperblock(sb); err != nil {
		return nil, err
	}

	return sb, nil

}

// storeSuperblock flushes sb to block 0. The allocators call it as soon as
// they change the superblock, so other metadata writes of the same
// operation may follow it.
func (fs *Filesystem) storeSuperblock(sb *Superblock) error {

	data, err := encodeSuperblock(sb)
	if err != nil {
		return err
	}

	return fs.cache.store(0, data)

}

// checkSuperblock verifies the invariants spec.md §4.C calls for: list
// head/tail either both null or both in range, cache indices in range, and
// the empty-list identities between head/tail/count. This is the "cheap
// form" the spec explicitly allows -- range and count checks, not a list
// walk.
func checkSuperblock(sb *Superblock) error {

	if sb.ITableStart != 1 {
		return fmt.Errorf("%w: iTableStart must be 1, got %d", ErrBadSuperblock, sb.ITableStart)
	}

	if sb.DZoneStart != 1+sb.ITableSize {
		return fmt.Errorf("%w: dZoneStart inconsistent with iTableSize", ErrBadSuperblock)
	}

	if sb.ITotal != sb.ITableSize*IPB {
		return fmt.Errorf("%w: iTotal inconsistent with iTableSize", ErrBadSuperblock)
	}

	emptyInodeList := sb.IHead == NullInode && sb.ITail == NullInode
	if emptyInodeList != (sb.IFree == 0) {
		return fmt.Errorf("%w: free-inode list emptiness disagrees with iFree", ErrBadSuperblock)
	}
	if !emptyInodeList && (sb.IHead >= sb.ITotal || sb.ITail >= sb.ITotal) {
		return fmt.Errorf("%w: iHead/iTail out of range", ErrBadSuperblock)
	}

	emptyClusterList := sb.DHead == NullCluster && sb.DTail == NullCluster
	if emptyClusterList != (sb.DZoneFree == 0 && sb.RetrievIdx == CacheSize && sb.InsertIdx == 0) {
		// The free-list itself may be empty while clusters still sit in
		// either cache, so only the stronger conjunction above implies a
		// wholly exhausted data zone.
		if emptyClusterList && sb.DZoneFree != 0 && sb.RetrievIdx == CacheSize && sb.InsertIdx == 0 {
			return fmt.Errorf("%w: empty free-cluster list but dZoneFree != 0 and caches are empty", ErrBadSuperblock)
		}
	}
	if !emptyClusterList && (sb.DHead >= sb.DZoneTotal || sb.DTail >= sb.DZoneTotal) {
		return fmt.Errorf("%w: dHead/dTail out of range", ErrBadSuperblock)
	}

	if sb.RetrievIdx > CacheSize {
		return fmt.Errorf("%w: retrievIdx out of range", ErrBadSuperblock)
	}
	if sb.InsertIdx > CacheSize {
		return fmt.Errorf("%w: insertIdx out of range", ErrBadSuperblock)
	}

	if sb.MountState != MountPRU && sb.MountState != MountUDU {
		return fmt.Errorf("%w: invalid mount state %d", ErrBadSuperblock, sb.MountState)
	}

	return nil

}
