package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "fmt"

// allocCluster allocates a free data cluster and associates it with
// owningInode (spec.md §4.G). It pops from the retrieval cache,
// replenishing it from the on-disk free list first if empty, and cleans
// the cluster in place if it was left free-dirty by a prior free.
func (fs *Filesystem) allocCluster(owningInode uint32) (uint32, error) {

	if fs.sb.DZoneFree == 0 {
		return 0, ErrNoSpace
	}

	if fs.sb.RetrievIdx == CacheSize {
		if err := fs.replenish(); err != nil {
			return 0, err
		}
	}

	l := fs.sb.RetrievCache[fs.sb.RetrievIdx]
	fs.sb.RetrievCache[fs.sb.RetrievIdx] = NullCluster
	fs.sb.RetrievIdx++

	c, err := fs.readCluster(l)
	if err != nil {
		return 0, err
	}

	// A free-dirty cluster still carries the inode number it used to
	// belong to in Stat; a free-clean one already reads NullInode. Either
	// way Stat is about to be overwritten with the new owner below, so no
	// separate scrub step is needed.
	c.Prev = NullCluster
	c.Next = NullCluster
	c.Stat = owningInode

	if err := fs.writeCluster(l, c); err != nil {
		return 0, err
	}

	fs.sb.DZoneFree--

	if err := fs.storeSuperblock(fs.sb); err != nil {
		return 0, err
	}

	return l, nil

}

// freeCluster detaches cluster l from its owner and queues it on the
// insertion cache (spec.md §4.G). Stat is deliberately left unchanged,
// marking the cluster free-dirty until a later clean scrubs it. A cluster
// that is free-clean, or free-dirty and still queued in either cache, is
// rejected as already free; a free-dirty cluster that has moved on to the
// on-disk free list is not detected.
func (fs *Filesystem) freeCluster(l uint32) error {

	if l == RootDataCluster {
		return fmt.Errorf("%w: cannot free the reserved root cluster", ErrInvalidCluster)
	}

	if l >= fs.sb.DZoneTotal {
		return fmt.Errorf("%w: %d", ErrInvalidCluster, l)
	}

	c, err := fs.readCluster(l)
	if err != nil {
		return err
	}

	if c.Stat == NullInode {
		return fmt.Errorf("%w: cluster %d is already free", ErrInconsistentCluster, l)
	}

	for i := fs.sb.RetrievIdx; i < CacheSize; i++ {
		if fs.sb.RetrievCache[i] == l {
			return fmt.Errorf("%w: cluster %d is already free", ErrInconsistentCluster, l)
		}
	}
	for i := uint32(0); i < fs.sb.InsertIdx; i++ {
		if fs.sb.InsertCache[i] == l {
			return fmt.Errorf("%w: cluster %d is already free", ErrInconsistentCluster, l)
		}
	}

	c.Prev = NullCluster
	c.Next = NullCluster

	if err := fs.writeCluster(l, c); err != nil {
		return err
	}

	if fs.sb.InsertIdx == CacheSize {
		if err := fs.deplete(); err != nil {
			return err
		}
	}

	fs.sb.InsertCache[fs.sb.InsertIdx] = l
	fs.sb.InsertIdx++
	fs.sb.DZoneFree++

	return fs.storeSuperblock(fs.sb)

}

// replenish refills the retrieval cache from the head of the on-disk free
// list, falling back to depleting the insertion cache first if the list
// runs dry before the target size is reached (spec.md §4.G).
func (fs *Filesystem) replenish() error {

	sb := fs.sb

	target := sb.DZoneFree
	if target > CacheSize {
		target = CacheSize
	}

	var extractedList []uint32
	head := sb.DHead

	for uint32(len(extractedList)) < target {

		if head == NullCluster {
			if sb.InsertIdx > 0 {
				// The on-disk list just ran dry inside this walk, but
				// sb.DTail still holds the stale pre-call tail -- deplete
				// only recognises an empty list off DTail, so clear it
				// here or deplete would append past an already-extracted
				// cluster and leave sb.DHead pointing at consumed nodes.
				sb.DTail = NullCluster
				if err := fs.deplete(); err != nil {
					return err
				}
				head = sb.DHead
				if head == NullCluster {
					break
				}
				continue
			}
			break
		}

		c, err := fs.readCluster(head)
		if err != nil {
			return err
		}

		next := c.Next

		c.Prev = NullCluster
		c.Next = NullCluster
		if err := fs.writeCluster(head, c); err != nil {
			return err
		}

		extractedList = append(extractedList, head)
		head = next

	}

	sb.DHead = head
	if head == NullCluster {
		sb.DTail = NullCluster
	} else {
		newHead, err := fs.readCluster(head)
		if err != nil {
			return err
		}
		newHead.Prev = NullCluster
		if err := fs.writeCluster(head, newHead); err != nil {
			return err
		}
	}

	// Right-align whatever was actually extracted so RetrievIdx always
	// matches the true count, even if that falls short of target.
	extracted := uint32(len(extractedList))
	start := CacheSize - extracted
	for i := uint32(0); i < start; i++ {
		sb.RetrievCache[i] = NullCluster
	}
	for i, l := range extractedList {
		sb.RetrievCache[start+uint32(i)] = l
	}
	sb.RetrievIdx = start

	return nil

}

// deplete appends every cluster queued in the insertion cache to the tail
// of the on-disk free list, flushing the superblock on success (spec.md
// §4.G; this flush-on-success is an Open Question the spec resolves
// explicitly, see SPEC_FULL.md).
func (fs *Filesystem) deplete() error {

	sb := fs.sb

	n := sb.InsertIdx
	if n == 0 {
		return nil
	}

	if sb.DTail != NullCluster {
		tail, err := fs.readCluster(sb.DTail)
		if err != nil {
			return err
		}
		tail.Next = sb.InsertCache[0]
		if err := fs.writeCluster(sb.DTail, tail); err != nil {
			return err
		}
	} else {
		sb.DHead = sb.InsertCache[0]
	}

	prev := sb.DTail
	for i := uint32(0); i < n; i++ {
		l := sb.InsertCache[i]
		c, err := fs.readCluster(l)
		if err != nil {
			return err
		}
		c.Prev = prev
		if i+1 < n {
			c.Next = sb.InsertCache[i+1]
		} else {
			c.Next = NullCluster
		}
		if err := fs.writeCluster(l, c); err != nil {
			return err
		}
		prev = l
	}

	sb.DTail = sb.InsertCache[n-1]

	for i := uint32(0); i < CacheSize; i++ {
		sb.InsertCache[i] = NullCluster
	}
	sb.InsertIdx = 0

	return fs.storeSuperblock(sb)

}
