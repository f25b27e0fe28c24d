package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

// newTestVolume formats a small, throwaway SOFS14 image with iTotal
// inodes and dZoneTotal data clusters and mounts it, returning the
// mounted filesystem and a cleanup func. It mirrors cmd/mkfs14/format.go's
// sequence (placeholder superblock, free-list chaining, root install, final
// magic flip) using the same pkg/sofs format-time encoders mkfs14 itself
// calls, so a test volume is built exactly the way a real one would be.
func newTestVolume(t *testing.T, iTotal, dZoneTotal uint32) (*Filesystem, func()) {
	t.Helper()

	dir, err := ioutil.TempDir("", "sofs14-test")
	if err != nil {
		t.Fatalf("tempdir: %v", err)
	}
	path := filepath.Join(dir, "volume.img")

	iTableSize := iTotal / IPB
	if iTotal%IPB != 0 {
		t.Fatalf("iTotal %d must be a multiple of IPB %d", iTotal, IPB)
	}
	nTotal := 1 + iTableSize + dZoneTotal*BlocksPerCluster

	dev, err := CreateDevice(path, nTotal)
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}

	sb := new(Superblock)
	sb.RawInit(FormatSentinel, 1, nTotal, iTableSize, iTotal, dZoneTotal)
	sb.SetName("test")

	writeSB := func() {
		data, err := EncodeSuperblockForFormat(sb)
		if err != nil {
			t.Fatalf("encode superblock: %v", err)
		}
		if err := dev.WriteBlock(0, data); err != nil {
			t.Fatalf("write superblock: %v", err)
		}
	}
	writeSB()

	for b := uint32(0); b < iTableSize; b++ {
		block := make([]byte, BlockSize)
		for slot := 0; slot < IPB; slot++ {
			n := b*IPB + uint32(slot)
			if n == 0 {
				continue // reserved for the root inode, installed below
			}
			var prev, next uint32
			if n == 1 {
				prev = NullInode
			} else {
				prev = n - 1
			}
			if n == iTotal-1 {
				next = NullInode
			} else {
				next = n + 1
			}
			enc, err := EncodeFreeInodeForFormat(prev, next)
			if err != nil {
				t.Fatalf("encode free inode: %v", err)
			}
			copy(block[slot*InodeSize:(slot+1)*InodeSize], enc)
		}
		if err := dev.WriteBlock(1+b, block); err != nil {
			t.Fatalf("write inode table block: %v", err)
		}
	}
	if iTotal > 1 {
		sb.IHead = 1
		sb.ITail = iTotal - 1
	} else {
		sb.IHead = NullInode
		sb.ITail = NullInode
	}
	sb.IFree = iTotal - 1

	for l := uint32(1); l < dZoneTotal; l++ {
		var prev, next uint32 = l - 1, l + 1
		if l == 1 {
			prev = NullCluster
		}
		if l == dZoneTotal-1 {
			next = NullCluster
		}
		enc, err := EncodeFreeClusterForFormat(prev, next, make([]byte, BSLPC))
		if err != nil {
			t.Fatalf("encode free cluster: %v", err)
		}
		start := sb.DZoneStart + l*BlocksPerCluster
		for bb := uint32(0); bb < BlocksPerCluster; bb++ {
			if err := dev.WriteBlock(start+bb, enc[bb*BlockSize:(bb+1)*BlockSize]); err != nil {
				t.Fatalf("write data cluster block: %v", err)
			}
		}
	}
	if dZoneTotal > 1 {
		sb.DHead = 1
		sb.DTail = dZoneTotal - 1
	} else {
		sb.DHead = NullCluster
		sb.DTail = NullCluster
	}
	sb.DZoneFree = dZoneTotal - 1

	rootInodeEnc, err := EncodeRootInodeForFormat()
	if err != nil {
		t.Fatalf("encode root inode: %v", err)
	}
	blk, err := dev.ReadBlock(sb.ITableStart)
	if err != nil {
		t.Fatalf("read inode table block 0: %v", err)
	}
	copy(blk[0:InodeSize], rootInodeEnc)
	if err := dev.WriteBlock(sb.ITableStart, blk); err != nil {
		t.Fatalf("write root inode: %v", err)
	}

	rootClusterEnc, err := EncodeRootClusterForFormat()
	if err != nil {
		t.Fatalf("encode root cluster: %v", err)
	}
	for bb := uint32(0); bb < BlocksPerCluster; bb++ {
		if err := dev.WriteBlock(sb.DZoneStart+bb, rootClusterEnc[bb*BlockSize:(bb+1)*BlockSize]); err != nil {
			t.Fatalf("write root cluster: %v", err)
		}
	}

	sb.Magic = Magic
	sb.MountState = MountPRU
	writeSB()

	if err := dev.Close(); err != nil {
		t.Fatalf("close device: %v", err)
	}

	fs, err := Mount(path)
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	cleanup := func() {
		fs.Unmount()
		os.RemoveAll(dir)
	}

	return fs, cleanup

}

var root = Credentials{UID: 0, GID: 0}
var alice = Credentials{UID: 1000, GID: 1000}
var bob = Credentials{UID: 2000, GID: 2000}
