package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"testing"
)

func TestEncodeSuperblockRoundTrip(t *testing.T) {

	sb := new(Superblock)
	sb.RawInit(Magic, 1, 100, 2, 8, 20)
	sb.SetName("testvol")
	sb.IHead = 1
	sb.ITail = 7
	sb.IFree = 7
	sb.DHead = 1
	sb.DTail = 19
	sb.DZoneFree = 19

	encoded, err := EncodeSuperblockForFormat(sb)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != BlockSize {
		t.Fatalf("encoded superblock is %d bytes, want %d", len(encoded), BlockSize)
	}

	decoded, err := decodeSuperblock(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.Magic != Magic {
		t.Errorf("magic = 0x%08X, want 0x%08X", decoded.Magic, Magic)
	}
	if decoded.nameString() != "testvol" {
		t.Errorf("name = %q, want %q", decoded.nameString(), "testvol")
	}
	if decoded.ITotal != 8 || decoded.DZoneTotal != 20 {
		t.Errorf("layout fields did not round-trip: %+v", decoded)
	}
	if decoded.IHead != 1 || decoded.ITail != 7 || decoded.IFree != 7 {
		t.Errorf("free-inode list fields did not round-trip: %+v", decoded)
	}
}

func TestCheckSuperblockInvariants(t *testing.T) {

	base := func() *Superblock {
		sb := new(Superblock)
		sb.RawInit(Magic, 1, 9, 1, 4, 4)
		sb.IHead = NullInode
		sb.ITail = NullInode
		sb.DHead = NullCluster
		sb.DTail = NullCluster
		return sb
	}

	t.Run("fresh empty-list superblock is valid", func(t *testing.T) {
		if err := checkSuperblock(base()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("bad iTableStart is rejected", func(t *testing.T) {
		sb := base()
		sb.ITableStart = 2
		if err := checkSuperblock(sb); err == nil {
			t.Fatal("expected an error for iTableStart != 1")
		}
	})

	t.Run("iHead set without iFree is rejected", func(t *testing.T) {
		sb := base()
		sb.IHead = 0
		if err := checkSuperblock(sb); err == nil {
			t.Fatal("expected an error for head/iFree disagreement")
		}
	})

	t.Run("dZoneStart inconsistent with iTableSize is rejected", func(t *testing.T) {
		sb := base()
		sb.DZoneStart = 99
		if err := checkSuperblock(sb); err == nil {
			t.Fatal("expected an error for bad dZoneStart")
		}
	})

	t.Run("bad mount state is rejected", func(t *testing.T) {
		sb := base()
		sb.MountState = 7
		if err := checkSuperblock(sb); err == nil {
			t.Fatal("expected an error for invalid mount state")
		}
	})
}

func TestInodeBlockOffset(t *testing.T) {
	sb := new(Superblock)
	sb.RawInit(Magic, 1, 9, 1, IPB, 4)

	block, offset := inodeBlockOffset(sb, 0)
	if block != 1 || offset != 0 {
		t.Errorf("inode 0 at (%d, %d), want (1, 0)", block, offset)
	}

	block, offset = inodeBlockOffset(sb, 1)
	if block != 1 || offset != InodeSize {
		t.Errorf("inode 1 at (%d, %d), want (1, %d)", block, offset, InodeSize)
	}
}
