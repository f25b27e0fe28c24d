package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"io"
	"os"
)

// BlockDevice is the fixed-size block read/write interface over the
// backing container (spec.md §1, component A). The CORE only ever
// addresses whole blocks by number; everything above this layer works in
// those units.
type BlockDevice interface {
	// ReadBlock reads exactly BlockSize bytes starting at block n.
	ReadBlock(n uint32) ([]byte, error)

	// WriteBlock writes exactly BlockSize bytes to block n.
	WriteBlock(n uint32, buf []byte) error

	// BlockCount returns the total number of blocks in the container.
	BlockCount() uint32

	// Close releases the underlying container.
	Close() error
}

// fileDevice is a BlockDevice backed by a regular host file or block
// device node, opened with os.OpenFile.
type fileDevice struct {
	f      *os.File
	blocks uint32
}

// OpenDevice opens the backing container at path for reading and writing.
// The file's size must already be a multiple of BlockSize; this
// constructor does not resize the file and returns ErrBadSuperblock if the
// size is not a multiple.
func OpenDevice(path string) (BlockDevice, error) {

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotOpen, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotOpen, err)
	}

	if fi.Size()%BlockSize != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: container size %d is not a multiple of block size %d", ErrBadSuperblock, fi.Size(), BlockSize)
	}

	return &fileDevice{f: f, blocks: uint32(fi.Size() / BlockSize)}, nil

}

// CreateDevice truncates (or creates) the backing container at path to
// hold exactly nBlocks blocks, all zero-filled, and returns it opened.
// mkfs14 does not call it; it formats an existing container instead.
func CreateDevice(path string, nBlocks uint32) (BlockDevice, error) {

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotOpen, err)
	}

	size := int64(nBlocks) * BlockSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	return &fileDevice{f: f, blocks: nBlocks}, nil

}

func (d *fileDevice) BlockCount() uint32 {
	return d.blocks
}

func (d *fileDevice) ReadBlock(n uint32) ([]byte, error) {

	if n >= d.blocks {
		return nil, fmt.Errorf("%w: block %d", ErrInvalidCluster, n)
	}

	buf := make([]byte, BlockSize)

	_, err := d.f.Seek(int64(n)*BlockSize, io.SeekStart)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeek, err)
	}

	_, err = io.ReadFull(d.f, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %v", ErrIO, n, err)
	}

	return buf, nil

}

func (d *fileDevice) WriteBlock(n uint32, buf []byte) error {

	if n >= d.blocks {
		return fmt.Errorf("%w: block %d", ErrInvalidCluster, n)
	}

	if len(buf) != BlockSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrNilBuffer, BlockSize, len(buf))
	}

	_, err := d.f.Seek(int64(n)*BlockSize, io.SeekStart)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSeek, err)
	}

	_, err = d.f.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: block %d: %v", ErrIO, n, err)
	}

	return nil

}

func (d *fileDevice) Close() error {
	return d.f.Close()
}
