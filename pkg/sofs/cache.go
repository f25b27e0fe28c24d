package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "fmt"

// cacheCapacity bounds the number of distinct blocks the buffer cache will
// hold at once before it evicts the oldest entry.
// spec.md §5 calls for "a bounded number of blocks"; this is a small,
// fixed size appropriate to a teaching filesystem, not a tunable.
const cacheCapacity = 64

type cacheEntry struct {
	block uint32
	data  []byte
	dirty bool
}

// bufferCache is a small write-through cache of recently touched blocks
// (spec.md §1, component B). It guarantees that a completed store is
// durable before the next load of the same block returns a stale copy,
// and that no logical block is ever torn across two writes.
type bufferCache struct {
	dev   BlockDevice
	order []uint32 // LRU order, oldest first
	byBlk map[uint32]*cacheEntry
}

func newBufferCache(dev BlockDevice) *bufferCache {
	return &bufferCache{
		dev:   dev,
		byBlk: make(map[uint32]*cacheEntry),
	}
}

func (c *bufferCache) touch(n uint32) {
	for i, b := range c.order {
		if b == n {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, n)
}

// load reads block n, preferring a cached (possibly dirty) copy.
func (c *bufferCache) load(n uint32) ([]byte, error) {

	if e, ok := c.byBlk[n]; ok {
		c.touch(n)
		out := make([]byte, BlockSize)
		copy(out, e.data)
		return out, nil
	}

	data, err := c.dev.ReadBlock(n)
	if err != nil {
		return nil, err
	}

	if err := c.insert(n, data, false); err != nil {
		return nil, err
	}

	return data, nil

}

// store writes block n through the cache and flushes it immediately,
// satisfying the "no torn writes, durable before next load" guarantee by
// never deferring a write past the call that issued it.
func (c *bufferCache) store(n uint32, data []byte) error {

	if len(data) != BlockSize {
		return fmt.Errorf("%w: block %d", ErrNilBuffer, n)
	}

	if err := c.dev.WriteBlock(n, data); err != nil {
		return err
	}

	return c.insert(n, data, false)

}

func (c *bufferCache) insert(n uint32, data []byte, dirty bool) error {

	if e, ok := c.byBlk[n]; ok {
		e.data = data
		e.dirty = dirty
		c.touch(n)
		return nil
	}

	if len(c.order) >= cacheCapacity {
		if err := c.evictOldest(); err != nil {
			return err
		}
	}

	c.byBlk[n] = &cacheEntry{block: n, data: data, dirty: dirty}
	c.order = append(c.order, n)

	return nil

}

func (c *bufferCache) evictOldest() error {

	if len(c.order) == 0 {
		return nil
	}

	n := c.order[0]
	c.order = c.order[1:]
	e := c.byBlk[n]
	delete(c.byBlk, n)

	if e.dirty {
		if err := c.dev.WriteBlock(n, e.data); err != nil {
			return err
		}
	}

	return nil

}

// flushAll writes back every entry the cache still believes dirty. Since
// store() above always writes through synchronously, this is mostly a
// safety net for any future caller that uses insert() with dirty=true.
func (c *bufferCache) flushAll() error {
	for _, n := range c.order {
		e := c.byBlk[n]
		if e.dirty {
			if err := c.dev.WriteBlock(n, e.data); err != nil {
				return err
			}
			e.dirty = false
		}
	}
	return nil
}
