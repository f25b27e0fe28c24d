package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/luminoso/sofs14/pkg/elog"
	"github.com/luminoso/sofs14/pkg/sofs"
	"github.com/luminoso/sofs14/pkg/vio"
)

// layout is the outcome of fitting an inode ratio against a device's raw
// block count, honouring the nTotal = 1 + iTableSize + dZoneTotal*BPC
// identity from spec.md §6. Any raw blocks beyond the fitted nTotal are
// left unused, mirroring the original mkfs_sofs14.c's own rounding.
type layout struct {
	nTotal      uint32
	iTableSize  uint32
	iTotal      uint32
	dZoneTotal  uint32
}

func computeLayout(rawBlocks uint32, inodeRatio uint32) (layout, error) {

	if inodeRatio == 0 {
		inodeRatio = 8
	}

	itotal := rawBlocks / inodeRatio
	if itotal == 0 {
		itotal = sofs.IPB
	}

	// Round up to a full inode-table block.
	if itotal%sofs.IPB != 0 {
		itotal += sofs.IPB - itotal%sofs.IPB
	}

	iTableSize := itotal / sofs.IPB

	if rawBlocks < 1+iTableSize {
		return layout{}, fmt.Errorf("device too small for %d inodes", itotal)
	}

	remaining := rawBlocks - 1 - iTableSize
	dZoneTotal := remaining / sofs.BlocksPerCluster

	if dZoneTotal == 0 {
		return layout{}, fmt.Errorf("device too small to hold any data clusters")
	}

	nTotal := 1 + iTableSize + dZoneTotal*sofs.BlocksPerCluster

	return layout{
		nTotal:     nTotal,
		iTableSize: iTableSize,
		iTotal:     itotal,
		dZoneTotal: dZoneTotal,
	}, nil

}

// format writes a brand new SOFS14 volume to devPath. devPath must already
// exist with a size that is a multiple of sofs.BlockSize; mkfs14 never
// resizes the backing container, matching the original tool's contract.
func format(devPath string, cfg fsConfig, log elog.View) error {

	fi, err := os.Stat(devPath)
	if err != nil {
		return fmt.Errorf("%s: %w", devPath, err)
	}
	if fi.Size()%sofs.BlockSize != 0 {
		return fmt.Errorf("%s: size %d is not a multiple of block size %d", devPath, fi.Size(), sofs.BlockSize)
	}

	rawBlocks := uint32(fi.Size() / sofs.BlockSize)

	lay, err := computeLayout(rawBlocks, cfg.InodeRatio)
	if err != nil {
		return err
	}

	if !cfg.Quiet {
		log.Infof("installing a %d-inode SOFS14 volume %q in %s (%d of %d blocks used)",
			lay.iTotal, cfg.Name, devPath, lay.nTotal, rawBlocks)
	}

	f, err := os.OpenFile(devPath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", devPath, err)
	}
	defer f.Close()

	sb := new(sofs.Superblock)
	sb.RawInit(sofs.FormatSentinel, 1, lay.nTotal, lay.iTableSize, lay.iTotal, lay.dZoneTotal)
	sb.SetName(cfg.Name)

	if err := writeSuperblock(f, sb); err != nil {
		return err
	}

	if err := formatInodeTable(f, sb, log, cfg.Quiet); err != nil {
		return err
	}

	if err := formatDataZone(f, sb, log, cfg.Quiet, cfg.ZeroFill); err != nil {
		return err
	}

	if !cfg.Quiet {
		log.Infof("filling in the contents of the root directory")
	}
	if err := installRoot(f, sb); err != nil {
		return err
	}

	sb.Magic = sofs.Magic
	sb.MountState = sofs.MountPRU
	if err := writeSuperblock(f, sb); err != nil {
		return err
	}

	return nil

}

func writeSuperblock(f *os.File, sb *sofs.Superblock) error {
	data, err := sofs.EncodeSuperblockForFormat(sb)
	if err != nil {
		return err
	}
	return writeBlock(f, 0, data)
}

func writeBlock(f *os.File, n uint32, data []byte) error {
	if _, err := f.Seek(int64(n)*sofs.BlockSize, io.SeekStart); err != nil {
		return err
	}
	_, err := f.Write(data)
	return err
}

// formatInodeTable reinitializes every inode as free-clean, chaining 1..
// iTotal-1 into the free list (inode 0 is reserved for the root directory
// and installed separately by installRoot).
func formatInodeTable(f *os.File, sb *sofs.Superblock, log elog.View, quiet bool) error {

	var prog elog.Progress
	if !quiet {
		prog = log.NewProgress("formatting inode table", "%", int64(sb.ITotal))
		defer prog.Finish(true)
	}

	block := make([]byte, sofs.BlockSize)
	for b := uint32(0); b < sb.ITableSize; b++ {

		for slot := 0; slot < sofs.IPB; slot++ {
			n := b*sofs.IPB + uint32(slot)

			var prev, next uint32
			switch {
			case n == 0:
				// Root inode: left for installRoot to write in-use.
				continue
			case n == 1:
				prev = sofs.NullInode
			default:
				prev = n - 1
			}
			if n == sb.ITotal-1 {
				next = sofs.NullInode
			} else {
				next = n + 1
			}

			enc, err := sofs.EncodeFreeInodeForFormat(prev, next)
			if err != nil {
				return err
			}
			copy(block[slot*sofs.InodeSize:(slot+1)*sofs.InodeSize], enc)
		}

		if err := writeBlock(f, 1+b, block); err != nil {
			return err
		}
		if prog != nil {
			prog.Increment(int64(sofs.IPB))
		}
	}

	if sb.ITotal > 1 {
		sb.IHead = 1
		sb.ITail = sb.ITotal - 1
	} else {
		sb.IHead = sofs.NullInode
		sb.ITail = sofs.NullInode
	}
	sb.IFree = sb.ITotal - 1

	return nil

}

// formatDataZone chains clusters 1..dZoneTotal-1 into the free list
// (cluster 0 is reserved for the root directory's entry page). With
// zeroFill it writes a fully zeroed payload per cluster (streamed from
// vio.Zeroes, forcing real block allocation); without it, it writes only
// the prev/next/stat header, leaving whatever bytes already sat in the
// backing file beyond the header.
func formatDataZone(f *os.File, sb *sofs.Superblock, log elog.View, quiet, zeroFill bool) error {

	var prog elog.Progress
	if !quiet {
		prog = log.NewProgress("formatting data zone", "clusters", int64(sb.DZoneTotal))
		defer prog.Finish(true)
	}

	for l := uint32(1); l < sb.DZoneTotal; l++ {

		var prev, next uint32 = l - 1, l + 1
		if l == 1 {
			prev = sofs.NullCluster
		}
		if l == sb.DZoneTotal-1 {
			next = sofs.NullCluster
		}

		start := sb.DZoneStart + l*sofs.BlocksPerCluster

		if zeroFill {
			var buf bytes.Buffer
			if _, err := io.CopyN(&buf, vio.Zeroes, sofs.BSLPC); err != nil {
				return err
			}
			enc, err := sofs.EncodeFreeClusterForFormat(prev, next, buf.Bytes())
			if err != nil {
				return err
			}
			if err := writeClusterBlocks(f, start, enc); err != nil {
				return err
			}
		} else {
			if err := patchClusterHeader(f, start, prev, next); err != nil {
				return err
			}
		}

		if prog != nil {
			prog.Increment(1)
		}

	}

	if sb.DZoneTotal > 1 {
		sb.DHead = 1
		sb.DTail = sb.DZoneTotal - 1
	} else {
		sb.DHead = sofs.NullCluster
		sb.DTail = sofs.NullCluster
	}
	sb.DZoneFree = sb.DZoneTotal - 1

	return nil

}

func writeClusterBlocks(f *os.File, startBlock uint32, encoded []byte) error {
	for b := uint32(0); b < sofs.BlocksPerCluster; b++ {
		chunk := encoded[b*sofs.BlockSize : (b+1)*sofs.BlockSize]
		if err := writeBlock(f, startBlock+b, chunk); err != nil {
			return err
		}
	}
	return nil
}

// patchClusterHeader rewrites only the 12-byte prev/next/stat header of
// the cluster starting at startBlock, reading the existing first block
// back so the remaining payload bytes are preserved untouched.
func patchClusterHeader(f *os.File, startBlock uint32, prev, next uint32) error {

	if _, err := f.Seek(int64(startBlock)*sofs.BlockSize, io.SeekStart); err != nil {
		return err
	}

	block := make([]byte, sofs.BlockSize)
	if _, err := io.ReadFull(f, block); err != nil {
		return err
	}

	header, err := sofs.EncodeFreeClusterHeaderForFormat(prev, next)
	if err != nil {
		return err
	}
	copy(block[:len(header)], header)

	return writeBlock(f, startBlock, block)

}

// installRoot writes inode 0 in-use as a directory and its reserved
// first data cluster (cluster 0) with "." and ".." installed.
func installRoot(f *os.File, sb *sofs.Superblock) error {

	inodeEnc, err := sofs.EncodeRootInodeForFormat()
	if err != nil {
		return err
	}

	block := make([]byte, sofs.BlockSize)
	if _, err := f.Seek(int64(sb.ITableStart)*sofs.BlockSize, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.ReadFull(f, block); err != nil {
		return err
	}
	copy(block[0:sofs.InodeSize], inodeEnc)
	if err := writeBlock(f, sb.ITableStart, block); err != nil {
		return err
	}

	clusterEnc, err := sofs.EncodeRootClusterForFormat()
	if err != nil {
		return err
	}

	return writeClusterBlocks(f, sb.DZoneStart, clusterEnc)

}
