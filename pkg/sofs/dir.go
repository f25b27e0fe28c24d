package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// dirOp selects between the two variants of add_att_dir_entry and
// rem_detach_dir_entry (spec.md §4.I).
type dirOp int

const (
	DirAdd dirOp = iota
	DirAttach
	DirRem
	DirDetach
)

// DirEntry is one record of a directory's payload: a fixed-size name plus
// the inode it names (spec.md §3, §6).
type DirEntry struct {
	Name   [MaxName + 1]byte
	NInode uint32
}

func encodeDirEntry(e *DirEntry) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentRefs, err)
	}
	return buf.Bytes(), nil
}

func decodeDirEntry(data []byte) (*DirEntry, error) {
	e := new(DirEntry)
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentRefs, err)
	}
	return e, nil
}

// entryName returns the live name of an in-use or free-clean entry. It
// does not attempt to recover a tombstone's original name.
func (e *DirEntry) entryName() string {
	i := bytes.IndexByte(e.Name[:], 0)
	if i < 0 {
		i = len(e.Name)
	}
	return string(e.Name[:i])
}

func (e *DirEntry) isInUse() bool {
	return e.Name[0] != 0 && e.NInode != NullInode
}

func (e *DirEntry) isFreeClean() bool {
	if e.NInode != NullInode {
		return false
	}
	for _, b := range e.Name {
		if b != 0 {
			return false
		}
	}
	return true
}

func (e *DirEntry) isTombstone() bool {
	return e.Name[0] == 0 && e.Name[MaxName] != 0
}

func (e *DirEntry) setName(name string) {
	for i := range e.Name {
		e.Name[i] = 0
	}
	copy(e.Name[:], name)
}

// tombstone turns an in-use entry into a recoverable free-dirty record:
// the first byte moves to the last slot and the head is zeroed (spec.md
// §4.I, REM).
func (e *DirEntry) tombstone() {
	e.Name[MaxName] = e.Name[0]
	e.Name[0] = 0
}

func validateBasename(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrIllegalPath)
	}
	if len(name) > MaxName {
		return fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return fmt.Errorf("%w: %q contains '/'", ErrIllegalPath, name)
		}
	}
	return nil
}

// dirSlotCount returns the number of entry slots currently covered by a
// directory's size (its "high-water mark").
func dirSlotCount(inode *Inode) uint32 {
	return uint32(inode.Size) / DirEntrySize
}

// readDirSlot loads the slot-th directory entry of dirInode, reading
// through §4.H GET for the cluster that contains it.
func (fs *Filesystem) readDirSlot(nDir uint32, inode *Inode, slot uint32) (*DirEntry, uint32, error) {

	clustInd := slot / DPC
	within := slot % DPC

	l, err := fs.handleFileCluster(nDir, inode, clustInd, opGet)
	if err != nil {
		return nil, 0, err
	}
	if l == NullCluster {
		return nil, 0, fmt.Errorf("%w: unallocated directory cluster %d", ErrInconsistentRefs, clustInd)
	}

	c, err := fs.readCluster(l)
	if err != nil {
		return nil, 0, err
	}

	off := within * DirEntrySize
	e, err := decodeDirEntry(c.Payload[off : off+DirEntrySize])
	if err != nil {
		return nil, 0, err
	}

	return e, l, nil

}

// writeDirSlot persists entry e into the slot-th position of dirInode's
// payload; the containing cluster must already be allocated.
func (fs *Filesystem) writeDirSlot(nDir uint32, inode *Inode, slot uint32, e *DirEntry) error {

	clustInd := slot / DPC
	within := slot % DPC

	l, err := fs.handleFileCluster(nDir, inode, clustInd, opGet)
	if err != nil {
		return err
	}
	if l == NullCluster {
		return fmt.Errorf("%w: unallocated directory cluster %d", ErrInconsistentRefs, clustInd)
	}

	c, err := fs.readCluster(l)
	if err != nil {
		return err
	}

	encoded, err := encodeDirEntry(e)
	if err != nil {
		return err
	}

	off := within * DirEntrySize
	copy(c.Payload[off:off+DirEntrySize], encoded)

	return fs.writeCluster(l, c)

}

// getEntryByName implements §4.I get_entry_by_name. On ErrNotFound,
// freeSlot holds a candidate slot for a new entry (the first existing
// free-clean slot, or the first slot of the next not-yet-allocated
// cluster); on success it is 0.
func (fs *Filesystem) getEntryByName(nDir uint32, dirInode *Inode, caller Credentials, name string) (nInode uint32, idx uint32, freeSlot uint32, err error) {

	if err := validateBasename(name); err != nil {
		return 0, 0, 0, err
	}
	if dirInode.Type() != TypeDir {
		return 0, 0, 0, ErrNotDirectory
	}
	if !accessGranted(dirInode, caller, PermOwnerX|PermGroupX|PermOtherX) {
		return 0, 0, 0, ErrNoExec
	}

	total := dirSlotCount(dirInode)
	haveFree := false
	var free uint32

	for slot := uint32(0); slot < total; slot++ {
		e, _, err := fs.readDirSlot(nDir, dirInode, slot)
		if err != nil {
			return 0, 0, 0, err
		}
		if e.isInUse() && e.entryName() == name {
			return e.NInode, slot, 0, nil
		}
		if !haveFree && e.isFreeClean() {
			haveFree = true
			free = slot
		}
	}

	if !haveFree {
		free = total
	}

	return 0, 0, free, fmt.Errorf("%w: %q", ErrNotFound, name)

}

// addAttDirEntry implements §4.I add_att_dir_entry for op ∈ {DirAdd,
// DirAttach}.
func (fs *Filesystem) addAttDirEntry(nDir uint32, dirInode *Inode, caller Credentials, name string, nEntry uint32, entryInode *Inode, op dirOp) error {

	if err := validateBasename(name); err != nil {
		return err
	}
	if !accessGranted(dirInode, caller, PermOwnerW|PermOwnerX|PermGroupW|PermGroupX|PermOtherW|PermOtherX) {
		return ErrNoWrite
	}

	_, _, freeSlot, err := fs.getEntryByName(nDir, dirInode, caller, name)
	if err == nil {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	clustInd := freeSlot / DPC
	within := freeSlot % DPC

	l, err := fs.handleFileCluster(nDir, dirInode, clustInd, opGet)
	if err != nil {
		return err
	}
	if l == NullCluster {
		l, err = fs.handleFileCluster(nDir, dirInode, clustInd, opAlloc)
		if err != nil {
			return err
		}
		c, err := fs.readCluster(l)
		if err != nil {
			return err
		}
		blank := &DirEntry{NInode: NullInode}
		encoded, err := encodeDirEntry(blank)
		if err != nil {
			return err
		}
		for s := uint32(0); s < DPC; s++ {
			copy(c.Payload[s*DirEntrySize:(s+1)*DirEntrySize], encoded)
		}
		if err := fs.writeCluster(l, c); err != nil {
			return err
		}
		dirInode.Size += uint64(DPC) * DirEntrySize
		if err := fs.writeInodeRaw(nDir, dirInode); err != nil {
			return err
		}
	}

	e := &DirEntry{NInode: nEntry}
	e.setName(name)
	if err := fs.writeDirSlotAt(l, within, e); err != nil {
		return err
	}

	switch op {
	case DirAdd:
		if entryInode.Type() == TypeDir {
			firstCluster, err := fs.handleFileCluster(nEntry, entryInode, 0, opAlloc)
			if err != nil {
				return err
			}
			if err := fs.initDirCluster(firstCluster, nEntry, nDir); err != nil {
				return err
			}
			entryInode.Size = uint64(DPC) * DirEntrySize
			entryInode.RefCount += 2
			dirInode.RefCount++
		} else {
			entryInode.RefCount++
		}
	case DirAttach:
		if err := fs.rewriteDotDot(nEntry, entryInode, nDir); err != nil {
			return err
		}
		entryInode.RefCount += 2
		dirInode.RefCount++
	default:
		return ErrBadOp
	}

	if err := fs.writeInodeRaw(nEntry, entryInode); err != nil {
		return err
	}

	return fs.writeInodeRaw(nDir, dirInode)

}

// writeDirSlotAt writes e into slot "within" of an already-resolved
// cluster l, avoiding a redundant index walk in addAttDirEntry.
func (fs *Filesystem) writeDirSlotAt(l, within uint32, e *DirEntry) error {

	c, err := fs.readCluster(l)
	if err != nil {
		return err
	}
	encoded, err := encodeDirEntry(e)
	if err != nil {
		return err
	}
	off := within * DirEntrySize
	copy(c.Payload[off:off+DirEntrySize], encoded)
	return fs.writeCluster(l, c)

}

// initDirCluster installs "." and ".." in slots 0 and 1 of a freshly
// allocated directory cluster, blanking the rest free-clean.
func (fs *Filesystem) initDirCluster(l, self, parent uint32) error {

	c, err := fs.readCluster(l)
	if err != nil {
		return err
	}

	blank := &DirEntry{NInode: NullInode}
	encodedBlank, err := encodeDirEntry(blank)
	if err != nil {
		return err
	}
	for s := uint32(0); s < DPC; s++ {
		copy(c.Payload[s*DirEntrySize:(s+1)*DirEntrySize], encodedBlank)
	}

	dot := &DirEntry{NInode: self}
	dot.setName(".")
	dotEnc, err := encodeDirEntry(dot)
	if err != nil {
		return err
	}
	copy(c.Payload[0:DirEntrySize], dotEnc)

	dotdot := &DirEntry{NInode: parent}
	dotdot.setName("..")
	dotdotEnc, err := encodeDirEntry(dotdot)
	if err != nil {
		return err
	}
	copy(c.Payload[DirEntrySize:2*DirEntrySize], dotdotEnc)

	return fs.writeCluster(l, c)

}

// rewriteDotDot updates slot 1 ("..") of an already-formed directory to
// point at newParent (spec.md §4.I, ATTACH).
func (fs *Filesystem) rewriteDotDot(nDir uint32, inode *Inode, newParent uint32) error {

	l, err := fs.handleFileCluster(nDir, inode, 0, opGet)
	if err != nil {
		return err
	}
	if l == NullCluster {
		return fmt.Errorf("%w: directory %d has no first cluster", ErrInconsistentRefs, nDir)
	}

	dotdot := &DirEntry{NInode: newParent}
	dotdot.setName("..")

	return fs.writeDirSlotAt(l, 1, dotdot)

}

// remDetachDirEntry implements §4.I rem_detach_dir_entry for op ∈
// {DirRem, DirDetach}.
func (fs *Filesystem) remDetachDirEntry(nDir uint32, dirInode *Inode, caller Credentials, name string, op dirOp) error {

	if !accessGranted(dirInode, caller, PermOwnerW|PermOwnerX|PermGroupW|PermGroupX|PermOtherW|PermOtherX) {
		return ErrNoWrite
	}

	nEntry, slot, _, err := fs.getEntryByName(nDir, dirInode, caller, name)
	if err != nil {
		return err
	}

	entryInode, err := fs.readInode(nEntry, StateInUse)
	if err != nil {
		return err
	}

	if op == DirRem && entryInode.Type() == TypeDir {
		if err := fs.checkDirectoryEmptiness(nEntry, entryInode); err != nil {
			return err
		}
	}

	e, l, err := fs.readDirSlot(nDir, dirInode, slot)
	if err != nil {
		return err
	}

	switch op {
	case DirRem:
		e.tombstone()
	case DirDetach:
		for i := range e.Name {
			e.Name[i] = 0
		}
		e.NInode = NullInode
	default:
		return ErrBadOp
	}

	within := slot % DPC
	if err := fs.writeDirSlotAt(l, within, e); err != nil {
		return err
	}

	entryInode.RefCount--
	if entryInode.Type() == TypeDir {
		entryInode.RefCount--
		dirInode.RefCount--
	}

	if err := fs.writeInodeRaw(nDir, dirInode); err != nil {
		return err
	}

	if op == DirRem && entryInode.RefCount == 0 {
		if err := fs.handleFileClusters(nEntry, entryInode, 0, opFree); err != nil {
			return err
		}
		if err := fs.writeInodeRaw(nEntry, entryInode); err != nil {
			return err
		}
		return fs.freeInode(nEntry)
	}

	return fs.writeInodeRaw(nEntry, entryInode)

}

// checkDirectoryEmptiness implements §4.I: only "." and ".." may occupy
// slots.
func (fs *Filesystem) checkDirectoryEmptiness(nDir uint32, inode *Inode) error {

	total := dirSlotCount(inode)
	for slot := uint32(2); slot < total; slot++ {
		e, _, err := fs.readDirSlot(nDir, inode, slot)
		if err != nil {
			return err
		}
		if e.isInUse() {
			return ErrNotEmpty
		}
	}
	return nil

}

// renameDirEntry implements §4.I rename_dir_entry.
func (fs *Filesystem) renameDirEntry(nDir uint32, dirInode *Inode, caller Credentials, oldName, newName string) error {

	if oldName == "." || oldName == ".." {
		return fmt.Errorf("%w: cannot rename %q", ErrIllegalPath, oldName)
	}
	if err := validateBasename(newName); err != nil {
		return err
	}
	if !accessGranted(dirInode, caller, PermOwnerW|PermOwnerX|PermGroupW|PermGroupX|PermOtherW|PermOtherX) {
		return ErrNoWrite
	}

	_, slot, _, err := fs.getEntryByName(nDir, dirInode, caller, oldName)
	if err != nil {
		return err
	}

	if _, _, _, err := fs.getEntryByName(nDir, dirInode, caller, newName); err == nil {
		return fmt.Errorf("%w: %q", ErrExists, newName)
	}

	e, l, err := fs.readDirSlot(nDir, dirInode, slot)
	if err != nil {
		return err
	}

	e.setName(newName)

	within := slot % DPC
	return fs.writeDirSlotAt(l, within, e)

}
