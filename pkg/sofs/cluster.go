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

// Cluster is the in-memory representation of one data cluster: the
// 12-byte header (spec.md §3) plus its payload, which the caller
// interprets as raw bytes, a direct-reference array, or a single-indirect
// reference array depending on where in the file's index it sits.
type Cluster struct {
	Prev    uint32
	Next    uint32
	Stat    uint32
	Payload [BSLPC]byte
}

// IsFree reports whether the cluster is free-clean (stat == NullInode).
// A free-dirty cluster still carries its former owner in Stat until it
// is cleaned, so IsFree reports false for it (spec.md §3, "Cluster
// states").
func (c *Cluster) IsFree() bool {
	return c.Stat == NullInode
}

// refs interprets the payload as an array of RPC logical cluster numbers
// (used for direct-reference and single-indirect-reference clusters).
func (c *Cluster) refs() [RPC]uint32 {
	var out [RPC]uint32
	for i := 0; i < RPC; i++ {
		out[i] = binary.LittleEndian.Uint32(c.Payload[i*4 : i*4+4])
	}
	return out
}

func (c *Cluster) ref(i int) uint32 {
	return binary.LittleEndian.Uint32(c.Payload[i*4 : i*4+4])
}

func (c *Cluster) setRef(i int, v uint32) {
	binary.LittleEndian.PutUint32(c.Payload[i*4:i*4+4], v)
}

func (c *Cluster) clearRefs() {
	for i := 0; i < RPC; i++ {
		c.setRef(i, NullCluster)
	}
}

func encodeCluster(c *Cluster) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentCluster, err)
	}
	return buf.Bytes(), nil
}

func decodeCluster(data []byte) (*Cluster, error) {
	c := new(Cluster)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentCluster, err)
	}
	return c, nil
}

// clusterBlock converts a logical cluster number to the physical block at
// which it begins (spec.md §4.E).
func clusterBlock(sb *Superblock, l uint32) uint32 {
	return sb.DZoneStart + l*BlocksPerCluster
}

// readCluster loads the whole cluster l through the buffer cache,
// concatenating its BlocksPerCluster blocks.
func (fs *Filesystem) readCluster(l uint32) (*Cluster, error) {

	if l >= fs.sb.DZoneTotal {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCluster, l)
	}

	start := clusterBlock(fs.sb, l)

	buf := make([]byte, 0, ClusterSize)
	for b := uint32(0); b < BlocksPerCluster; b++ {
		data, err := fs.cache.load(start + b)
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}

	return decodeCluster(buf)

}

// writeCluster persists cluster l, splitting it back into
// BlocksPerCluster blocks.
func (fs *Filesystem) writeCluster(l uint32, c *Cluster) error {

	if l >= fs.sb.DZoneTotal {
		return fmt.Errorf("%w: %d", ErrInvalidCluster, l)
	}

	encoded, err := encodeCluster(c)
	if err != nil {
		return err
	}

	start := clusterBlock(fs.sb, l)
	for b := uint32(0); b < BlocksPerCluster; b++ {
		chunk := encoded[b*BlockSize : (b+1)*BlockSize]
		if err := fs.cache.store(start+b, chunk); err != nil {
			return err
		}
	}

	return nil

}
