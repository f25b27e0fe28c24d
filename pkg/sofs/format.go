package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "encoding/binary"

// The Encode*ForFormat functions and RawInit below are the only pieces of
// the package mkfs14 touches directly: formatting writes directly to the
// backing file (there is no mounted Filesystem yet, so the buffer cache
// and allocators do not apply), but it must still produce bytes that
// Mount and the allocators will later recognize, so the encoding itself is
// shared rather than duplicated in cmd/mkfs14.

// RawInit fills in the fields of a fresh superblock that mkfs14 knows
// before the free lists are built; IHead/ITail/DHead/DTail/IFree/DZoneFree
// are left as "empty" placeholders for formatInodeTable/formatDataZone to
// overwrite once they have chained the free lists.
func (sb *Superblock) RawInit(magic uint32, iTableStart, nTotal, iTableSize, iTotal, dZoneTotal uint32) {

	sb.Magic = magic
	sb.Version = 1
	sb.NTotal = nTotal
	sb.MountState = MountUDU
	sb.ITableStart = iTableStart
	sb.ITableSize = iTableSize
	sb.ITotal = iTotal
	sb.DZoneStart = iTableStart + iTableSize
	sb.DZoneTotal = dZoneTotal

	sb.IHead = NullInode
	sb.ITail = NullInode
	sb.DHead = NullCluster
	sb.DTail = NullCluster

	for i := range sb.RetrievCache {
		sb.RetrievCache[i] = NullCluster
	}
	sb.RetrievIdx = CacheSize

	for i := range sb.InsertCache {
		sb.InsertCache[i] = NullCluster
	}
	sb.InsertIdx = 0

}

// SetName sets the volume name (exported wrapper around setName, for
// mkfs14's -n flag).
func (sb *Superblock) SetName(name string) {
	sb.setName(name)
}

func EncodeSuperblockForFormat(sb *Superblock) ([]byte, error) {
	return encodeSuperblock(sb)
}

// EncodeFreeInodeForFormat builds an on-disk free-clean inode record
// carrying prev/next free-list links.
func EncodeFreeInodeForFormat(prev, next uint32) ([]byte, error) {
	n := new(Inode)
	n.Mode = ModeFree
	n.D[0] = NullCluster
	n.I1 = NullCluster
	n.I2 = NullCluster
	n.setFreeNext(next)
	n.setFreePrev(prev)
	return encodeInode(n)
}

// EncodeFreeClusterForFormat builds a full free-clean cluster (header plus
// the given payload, typically all zero).
func EncodeFreeClusterForFormat(prev, next uint32, payload []byte) ([]byte, error) {
	c := new(Cluster)
	c.Prev = prev
	c.Next = next
	c.Stat = NullInode
	copy(c.Payload[:], payload)
	return encodeCluster(c)
}

// EncodeFreeClusterHeaderForFormat builds just the 12-byte prev/next/stat
// header, for the non-zero-fill mkfs14 path that leaves stale payload
// bytes in place.
func EncodeFreeClusterHeaderForFormat(prev, next uint32) ([]byte, error) {
	buf := make([]byte, clusterHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], prev)
	binary.LittleEndian.PutUint32(buf[4:8], next)
	binary.LittleEndian.PutUint32(buf[8:12], NullInode)
	return buf, nil
}

// EncodeRootInodeForFormat builds inode 0, in-use, as the root directory.
func EncodeRootInodeForFormat() ([]byte, error) {
	n := new(Inode)
	n.Mode = ModeTypeDir | DefaultPermissions
	n.RefCount = 2
	n.Size = uint64(DPC) * DirEntrySize
	n.CluCount = 1
	n.D[0] = RootDataCluster
	for i := 1; i < NDirect; i++ {
		n.D[i] = NullCluster
	}
	n.I1 = NullCluster
	n.I2 = NullCluster
	t := nowTime()
	n.setAccessTime(t)
	n.setModTime(t)
	return encodeInode(n)
}

// EncodeRootClusterForFormat builds data cluster 0: "." and ".." in slots
// 0 and 1, every other slot free-clean.
func EncodeRootClusterForFormat() ([]byte, error) {

	c := new(Cluster)
	c.Prev = NullCluster
	c.Next = NullCluster
	c.Stat = RootInode

	blank := &DirEntry{NInode: NullInode}
	encBlank, err := encodeDirEntry(blank)
	if err != nil {
		return nil, err
	}
	for s := 0; s < DPC; s++ {
		copy(c.Payload[s*DirEntrySize:(s+1)*DirEntrySize], encBlank)
	}

	dot := &DirEntry{NInode: RootInode}
	dot.setName(".")
	encDot, err := encodeDirEntry(dot)
	if err != nil {
		return nil, err
	}
	copy(c.Payload[0:DirEntrySize], encDot)

	dotdot := &DirEntry{NInode: RootInode}
	dotdot.setName("..")
	encDotDot, err := encodeDirEntry(dotdot)
	if err != nil {
		return nil, err
	}
	copy(c.Payload[DirEntrySize:2*DirEntrySize], encDotDot)

	return encodeCluster(c)

}
