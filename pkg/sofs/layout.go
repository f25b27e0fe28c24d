// Package sofs implements the SOFS14 on-disk filesystem core: the
// superblock, the inode and data-cluster allocators, the per-file cluster
// index, directory operations, and the path resolver. Everything in this
// package assumes a single mounter; callers are responsible for excluding
// concurrent access.
package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

// Fixed design constants. These are chosen once (see SPEC_FULL.md §3) and
// used uniformly; they are not configurable per-volume.
const (
	// BlockSize is the device I/O unit, in bytes.
	BlockSize = 512

	// BlocksPerCluster is the number of consecutive blocks making up a
	// data-zone allocation unit.
	BlocksPerCluster = 4

	// ClusterSize is the size in bytes of one data cluster.
	ClusterSize = BlocksPerCluster * BlockSize

	// NDirect is the number of direct cluster references stored in an inode.
	NDirect = 10

	// CacheSize is the bound on the superblock's retrieval and insertion
	// caches for free data clusters.
	CacheSize = 46

	// MaxName is the maximum number of bytes in a directory entry's name,
	// not counting the terminating NUL.
	MaxName = 59

	// MaxPath is the maximum total length of a path passed to the resolver.
	MaxPath = 1024

	// MaxSymlinks bounds the number of symlinks a single path resolution
	// may follow before failing with ErrLoop.
	MaxSymlinks = 1
)

// clusterHeaderSize is the size, in bytes, of the prev/next/stat header
// every data cluster carries, whatever it stores (spec.md §3).
const clusterHeaderSize = 4 + 4 + 4

// BSLPC is the number of user-data payload bytes in one data cluster,
// after the header.
const BSLPC = ClusterSize - clusterHeaderSize

// RPC is the number of logical cluster references that fit in the payload
// of one indirection cluster (the header applies uniformly: an
// indirection cluster is still a cluster, and must be free-listable).
const RPC = BSLPC / 4

// MaxFileClusters is the number of cluster indices a file's three-level
// index can address (valid indices are 0 .. MaxFileClusters-1).
const MaxFileClusters = NDirect + RPC + RPC*RPC

// InodeSize is the on-disk size of one Inode record, padded so that
// BlockSize is an exact multiple of it (and so ClusterSize is too).
const InodeSize = 128

// inodeSizeUsed is the number of bytes of InodeSize actually carrying
// live fields; the remainder is reserved padding.
const inodeSizeUsed = 4 + 4 + 4 + 4 + 8 + 4 + 4 + 4 + 4*NDirect + 4 + 4

const inodeReservedBytes = InodeSize - inodeSizeUsed

// IPB is the number of inodes packed into one block.
const IPB = BlockSize / InodeSize

// DirEntrySize is the on-disk size of one directory entry.
const DirEntrySize = (MaxName + 1) + 4

// DPC is the number of directory entries packed into one cluster.
const DPC = BSLPC / DirEntrySize

// superblockFixedBytes is the number of superblock bytes before the
// reserved tail, per the §6 layout table.
const superblockFixedBytes = 92 + 2*(4*CacheSize+4)

const superblockReservedBytes = BlockSize - superblockFixedBytes

// Magic constants (§6, §2 invariants).
const (
	// Magic marks a cleanly formatted, cleanly unmounted volume.
	Magic uint32 = 0x53344F53 // "SOFS4" squeezed into 4 bytes, LE

	// FormatSentinel is written to the magic field while mkfs is still in
	// progress; Magic itself is written only once formatting completes.
	FormatSentinel uint32 = 0x0000FFFF

	// NullInode is the sentinel "no such inode" value.
	NullInode uint32 = 0xFFFFFFFF

	// NullCluster is the sentinel "no such cluster" value.
	NullCluster uint32 = 0xFFFFFFFF
)

// Mount state flag values.
const (
	MountPRU uint32 = 0 // properly unmounted
	MountUDU uint32 = 1 // un-properly unmounted
)

// Inode mode bits: one type bit plus 9 permission bits, with a separate
// free-dirty flag (spec.md §3, "Inode").
const (
	ModeTypeDir     uint32 = 0x1000
	ModeTypeFile    uint32 = 0x2000
	ModeTypeSymlink uint32 = 0x4000
	ModeFree        uint32 = 0x8000

	ModeTypeMask uint32 = ModeTypeDir | ModeTypeFile | ModeTypeSymlink
	ModePermMask uint32 = 0777
)

// Permission bits, POSIX rwx triples packed owner/group/other high to low.
const (
	PermOwnerR uint32 = 0400
	PermOwnerW uint32 = 0200
	PermOwnerX uint32 = 0100
	PermGroupR uint32 = 0040
	PermGroupW uint32 = 0020
	PermGroupX uint32 = 0010
	PermOtherR uint32 = 0004
	PermOtherW uint32 = 0002
	PermOtherX uint32 = 0001
)

// RootInode is the inode number of the root directory, installed by mkfs
// and never freeable.
const RootInode uint32 = 0

// RootDataCluster is the logical number of the first cluster of the data
// zone, reserved for the root directory's first entry page and never
// freeable.
const RootDataCluster uint32 = 0

// InodeType identifies the three file types the filesystem distinguishes.
type InodeType uint32

const (
	TypeFile InodeType = iota
	TypeDir
	TypeSymlink
)

func (t InodeType) modeBit() uint32 {
	switch t {
	case TypeDir:
		return ModeTypeDir
	case TypeSymlink:
		return ModeTypeSymlink
	default:
		return ModeTypeFile
	}
}
