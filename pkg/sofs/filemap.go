package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "fmt"

// fileClusterOp is the operation code handleFileCluster dispatches on
// (spec.md §4.H).
type fileClusterOp int

const (
	opGet fileClusterOp = iota
	opAlloc
	opFree
	opFreeClean
	opClean
)

// handleFileCluster is the single public entry point of the file cluster
// map (spec.md §4.H): it resolves clustInd through the inode's direct,
// single-indirect, or double-indirect range and applies op to the slot it
// finds there. inode must already be loaded by the caller in the state op
// requires (in-use for GET/ALLOC/FREE/FREE_CLEAN, free-dirty for CLEAN);
// this function persists inode and any indirection cluster it modifies,
// but never the caller's copy beyond that -- callers that need the fresh
// on-disk aTime/mTime should reload.
func (fs *Filesystem) handleFileCluster(nInode uint32, inode *Inode, clustInd uint32, op fileClusterOp) (uint32, error) {

	switch {
	case clustInd < NDirect:
		return fs.handleDirect(nInode, inode, clustInd, op)
	case clustInd < NDirect+RPC:
		return fs.handleSIndirect(nInode, inode, clustInd-NDirect, op)
	case clustInd < MaxFileClusters:
		rel := clustInd - NDirect - RPC
		return fs.handleDIndirect(nInode, inode, rel/RPC, rel%RPC, op)
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidCluster, clustInd)
	}

}

// handleDirect implements §4.H for clustInd in [0, NDirect).
func (fs *Filesystem) handleDirect(nInode uint32, inode *Inode, idx uint32, op fileClusterOp) (uint32, error) {

	cur := inode.D[idx]

	switch op {

	case opGet:
		return cur, nil

	case opAlloc:
		if cur != NullCluster {
			return 0, ErrAlreadyAllocated
		}
		l, err := fs.allocCluster(nInode)
		if err != nil {
			return 0, err
		}
		inode.D[idx] = l
		inode.CluCount++
		if err := fs.attachLogicalCluster(nInode, inode, idx, l); err != nil {
			return 0, err
		}
		return l, fs.writeInodeRaw(nInode, inode)

	case opFree:
		if cur == NullCluster {
			return 0, ErrNotInList
		}
		if err := fs.freeCluster(cur); err != nil {
			return 0, err
		}
		return cur, nil

	case opFreeClean:
		if cur == NullCluster {
			return 0, ErrNotInList
		}
		if err := fs.freeCluster(cur); err != nil {
			return 0, err
		}
		inode.D[idx] = NullCluster
		inode.CluCount--
		return cur, fs.writeInodeRaw(nInode, inode)

	case opClean:
		if cur == NullCluster {
			return 0, nil
		}
		if err := fs.cleanLeaf(nInode, cur); err != nil {
			return 0, err
		}
		inode.D[idx] = NullCluster
		return cur, fs.writeInodeRaw(nInode, inode)

	default:
		return 0, ErrBadOp
	}

}

// handleSIndirect implements §4.H for clustInd in [NDirect, NDirect+RPC),
// idx being the offset within that range (0-based index into inode.I1's
// ref array).
func (fs *Filesystem) handleSIndirect(nInode uint32, inode *Inode, idx uint32, op fileClusterOp) (uint32, error) {

	absIdx := NDirect + idx

	if op == opGet {
		if inode.I1 == NullCluster {
			return NullCluster, nil
		}
		c, err := fs.readCluster(inode.I1)
		if err != nil {
			return 0, err
		}
		return c.ref(int(idx)), nil
	}

	if op == opClean {
		if inode.I1 == NullCluster {
			return 0, nil
		}
		c, err := fs.readCluster(inode.I1)
		if err != nil {
			return 0, err
		}
		leaf := c.ref(int(idx))
		if leaf != NullCluster {
			if err := fs.cleanLeaf(nInode, leaf); err != nil {
				return 0, err
			}
			c.setRef(int(idx), NullCluster)
			if err := fs.writeCluster(inode.I1, c); err != nil {
				return 0, err
			}
		}
		if refsAllNull(c) {
			if err := fs.freeCluster(inode.I1); err != nil {
				return 0, err
			}
			if err := fs.cleanLeaf(nInode, inode.I1); err != nil {
				return 0, err
			}
			inode.I1 = NullCluster
			return leaf, fs.writeInodeRaw(nInode, inode)
		}
		return leaf, nil
	}

	if op == opAlloc {
		if inode.I1 == NullCluster {
			l, err := fs.allocCluster(nInode)
			if err != nil {
				return 0, err
			}
			c := new(Cluster)
			c.clearRefs()
			c.Stat = nInode
			if err := fs.writeCluster(l, c); err != nil {
				return 0, err
			}
			inode.I1 = l
			inode.CluCount++
		}
		c, err := fs.readCluster(inode.I1)
		if err != nil {
			return 0, err
		}
		if c.ref(int(idx)) != NullCluster {
			return 0, ErrAlreadyAllocated
		}
		leaf, err := fs.allocCluster(nInode)
		if err != nil {
			return 0, err
		}
		c.setRef(int(idx), leaf)
		if err := fs.writeCluster(inode.I1, c); err != nil {
			return 0, err
		}
		inode.CluCount++
		if err := fs.attachLogicalCluster(nInode, inode, absIdx, leaf); err != nil {
			return 0, err
		}
		return leaf, fs.writeInodeRaw(nInode, inode)
	}

	// opFree, opFreeClean
	if inode.I1 == NullCluster {
		return 0, ErrNotInList
	}
	c, err := fs.readCluster(inode.I1)
	if err != nil {
		return 0, err
	}
	leaf := c.ref(int(idx))
	if leaf == NullCluster {
		return 0, ErrNotInList
	}
	if err := fs.freeCluster(leaf); err != nil {
		return 0, err
	}
	if op == opFree {
		return leaf, nil
	}

	c.setRef(int(idx), NullCluster)
	if err := fs.writeCluster(inode.I1, c); err != nil {
		return 0, err
	}
	inode.CluCount--

	if refsAllNull(c) {
		if err := fs.freeCluster(inode.I1); err != nil {
			return 0, err
		}
		inode.I1 = NullCluster
		inode.CluCount--
	}

	return leaf, fs.writeInodeRaw(nInode, inode)

}

// handleDIndirect implements §4.H for clustInd in
// [NDirect+RPC, MaxFileClusters), with s selecting the single-indirect
// cluster under inode.I2 and t selecting the leaf ref within it.
func (fs *Filesystem) handleDIndirect(nInode uint32, inode *Inode, s, t uint32, op fileClusterOp) (uint32, error) {

	absIdx := NDirect + RPC + s*RPC + t

	if op == opGet {
		if inode.I2 == NullCluster {
			return NullCluster, nil
		}
		i2, err := fs.readCluster(inode.I2)
		if err != nil {
			return 0, err
		}
		l1 := i2.ref(int(s))
		if l1 == NullCluster {
			return NullCluster, nil
		}
		c, err := fs.readCluster(l1)
		if err != nil {
			return 0, err
		}
		return c.ref(int(t)), nil
	}

	if op == opClean {
		if inode.I2 == NullCluster {
			return 0, nil
		}
		i2, err := fs.readCluster(inode.I2)
		if err != nil {
			return 0, err
		}
		l1 := i2.ref(int(s))
		var leaf uint32
		if l1 != NullCluster {
			c, err := fs.readCluster(l1)
			if err != nil {
				return 0, err
			}
			leaf = c.ref(int(t))
			if leaf != NullCluster {
				if err := fs.cleanLeaf(nInode, leaf); err != nil {
					return 0, err
				}
				c.setRef(int(t), NullCluster)
				if err := fs.writeCluster(l1, c); err != nil {
					return 0, err
				}
			}
			if refsAllNull(c) {
				if err := fs.freeCluster(l1); err != nil {
					return 0, err
				}
				if err := fs.cleanLeaf(nInode, l1); err != nil {
					return 0, err
				}
				i2.setRef(int(s), NullCluster)
				if err := fs.writeCluster(inode.I2, i2); err != nil {
					return 0, err
				}
			}
		}
		if refsAllNull(i2) {
			if err := fs.freeCluster(inode.I2); err != nil {
				return 0, err
			}
			if err := fs.cleanLeaf(nInode, inode.I2); err != nil {
				return 0, err
			}
			inode.I2 = NullCluster
			return leaf, fs.writeInodeRaw(nInode, inode)
		}
		return leaf, nil
	}

	if op == opAlloc {
		if inode.I2 == NullCluster {
			l, err := fs.allocCluster(nInode)
			if err != nil {
				return 0, err
			}
			c := new(Cluster)
			c.clearRefs()
			c.Stat = nInode
			if err := fs.writeCluster(l, c); err != nil {
				return 0, err
			}
			inode.I2 = l
			inode.CluCount++
		}
		i2, err := fs.readCluster(inode.I2)
		if err != nil {
			return 0, err
		}
		l1 := i2.ref(int(s))
		if l1 == NullCluster {
			nl, err := fs.allocCluster(nInode)
			if err != nil {
				return 0, err
			}
			c := new(Cluster)
			c.clearRefs()
			c.Stat = nInode
			if err := fs.writeCluster(nl, c); err != nil {
				return 0, err
			}
			i2.setRef(int(s), nl)
			if err := fs.writeCluster(inode.I2, i2); err != nil {
				return 0, err
			}
			inode.CluCount++
			l1 = nl
		}
		c, err := fs.readCluster(l1)
		if err != nil {
			return 0, err
		}
		if c.ref(int(t)) != NullCluster {
			return 0, ErrAlreadyAllocated
		}
		leaf, err := fs.allocCluster(nInode)
		if err != nil {
			return 0, err
		}
		c.setRef(int(t), leaf)
		if err := fs.writeCluster(l1, c); err != nil {
			return 0, err
		}
		inode.CluCount++
		if err := fs.attachLogicalCluster(nInode, inode, absIdx, leaf); err != nil {
			return 0, err
		}
		return leaf, fs.writeInodeRaw(nInode, inode)
	}

	// opFree, opFreeClean
	if inode.I2 == NullCluster {
		return 0, ErrNotInList
	}
	i2, err := fs.readCluster(inode.I2)
	if err != nil {
		return 0, err
	}
	l1 := i2.ref(int(s))
	if l1 == NullCluster {
		return 0, ErrNotInList
	}
	c, err := fs.readCluster(l1)
	if err != nil {
		return 0, err
	}
	leaf := c.ref(int(t))
	if leaf == NullCluster {
		return 0, ErrNotInList
	}
	if err := fs.freeCluster(leaf); err != nil {
		return 0, err
	}
	if op == opFree {
		return leaf, nil
	}

	c.setRef(int(t), NullCluster)
	if err := fs.writeCluster(l1, c); err != nil {
		return 0, err
	}
	inode.CluCount--

	if refsAllNull(c) {
		if err := fs.freeCluster(l1); err != nil {
			return 0, err
		}
		i2.setRef(int(s), NullCluster)
		if err := fs.writeCluster(inode.I2, i2); err != nil {
			return 0, err
		}
		inode.CluCount--

		if refsAllNull(i2) {
			if err := fs.freeCluster(inode.I2); err != nil {
				return 0, err
			}
			inode.I2 = NullCluster
			inode.CluCount--
		}
	}

	return leaf, fs.writeInodeRaw(nInode, inode)

}

func refsAllNull(c *Cluster) bool {
	for i := 0; i < RPC; i++ {
		if c.ref(i) != NullCluster {
			return false
		}
	}
	return true
}

// cleanLeaf verifies a cluster's header claims ownership by nInode and
// scrubs it to free-clean, without touching the free list (it is already
// on the list from an earlier FREE call -- spec.md §4.H, CLEAN).
func (fs *Filesystem) cleanLeaf(nInode, l uint32) error {

	c, err := fs.readCluster(l)
	if err != nil {
		return err
	}

	if c.Stat != nInode {
		return fmt.Errorf("%w: cluster %d claims owner %d, expected %d", ErrWrongInode, l, c.Stat, nInode)
	}

	c.Stat = NullInode

	return fs.writeCluster(l, c)

}

// attachLogicalCluster wires newly allocated leaf L into the doubly
// linked chain of a file's allocated clusters (spec.md §4.H and design
// note §9): its immediate logical neighbours (clustInd-1, clustInd+1) are
// looked up via GET, and both L and (if present) each neighbour have
// their prev/next header fields updated to point at each other.
func (fs *Filesystem) attachLogicalCluster(nInode uint32, inode *Inode, clustInd uint32, l uint32) error {

	c, err := fs.readCluster(l)
	if err != nil {
		return err
	}
	c.Prev = NullCluster
	c.Next = NullCluster

	if clustInd > 0 {
		prevL, err := fs.handleFileCluster(nInode, inode, clustInd-1, opGet)
		if err != nil {
			return err
		}
		if prevL != NullCluster {
			pc, err := fs.readCluster(prevL)
			if err != nil {
				return err
			}
			pc.Next = l
			if err := fs.writeCluster(prevL, pc); err != nil {
				return err
			}
			c.Prev = prevL
		}
	}

	if clustInd+1 < MaxFileClusters {
		nextL, err := fs.handleFileCluster(nInode, inode, clustInd+1, opGet)
		if err != nil {
			return err
		}
		if nextL != NullCluster {
			nc, err := fs.readCluster(nextL)
			if err != nil {
				return err
			}
			nc.Prev = l
			if err := fs.writeCluster(nextL, nc); err != nil {
				return err
			}
			c.Next = nextL
		}
	}

	return fs.writeCluster(l, c)

}

// handleFileClusters applies op (one of FREE, FREE_CLEAN, CLEAN) to every
// attached index >= fromIdx, walking i2 then i1 then direct so that
// indirection clusters are only ever touched after the leaves beneath
// them (spec.md §4.H, bulk helper).
func (fs *Filesystem) handleFileClusters(nInode uint32, inode *Inode, fromIdx uint32, op fileClusterOp) error {

	if op != opFree && op != opFreeClean && op != opClean {
		return ErrBadOp
	}

	for ind := uint32(MaxFileClusters); ind > fromIdx; ind-- {
		clustInd := ind - 1
		cur, err := fs.handleFileCluster(nInode, inode, clustInd, opGet)
		if err != nil {
			return err
		}
		if cur == NullCluster {
			continue
		}
		if _, err := fs.handleFileCluster(nInode, inode, clustInd, op); err != nil {
			return err
		}
	}

	return nil

}
