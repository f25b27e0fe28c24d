package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"path"
)

// Stat resolves path and returns its inode number and a copy of its
// in-use inode record (§4.J + §4.D). Mirrors original_source's soStat in
// spirit, without the libc struct stat translation.
func (fs *Filesystem) Stat(caller Credentials, p string) (uint32, *Inode, error) {

	r, err := fs.GetDirEntryByPath(caller, p)
	if err != nil {
		return 0, nil, err
	}

	inode, err := fs.readInode(r.EntryInode, StateInUse)
	if err != nil {
		return 0, nil, err
	}

	return r.EntryInode, inode, nil

}

// DirEntryInfo is one resolved, in-use directory entry as returned by
// List.
type DirEntryInfo struct {
	Name   string
	NInode uint32
}

// List resolves path to a directory and returns its in-use entries
// (§4.I), requiring R on the directory (and X on the directories along
// the path, checked by the resolver).
func (fs *Filesystem) List(caller Credentials, p string) ([]DirEntryInfo, error) {

	r, err := fs.GetDirEntryByPath(caller, p)
	if err != nil {
		return nil, err
	}

	dirInode, err := fs.readInode(r.EntryInode, StateInUse)
	if err != nil {
		return nil, err
	}
	if dirInode.Type() != TypeDir {
		return nil, ErrNotDirectory
	}
	if !accessGranted(dirInode, caller, PermOwnerR|PermGroupR|PermOtherR) {
		return nil, ErrNoRead
	}

	var out []DirEntryInfo
	total := dirSlotCount(dirInode)
	for slot := uint32(0); slot < total; slot++ {
		e, _, err := fs.readDirSlot(r.EntryInode, dirInode, slot)
		if err != nil {
			return nil, err
		}
		if e.isInUse() {
			out = append(out, DirEntryInfo{Name: e.entryName(), NInode: e.NInode})
		}
	}

	return out, nil

}

// ReadFile copies up to len(buf) bytes starting at offset from the file
// at path into buf, returning the number of bytes actually read (short
// of len(buf) only at end of file). Grounded in
// original_source/src/syscalls14/soRead.c's cluster-by-cluster loop.
func (fs *Filesystem) ReadFile(caller Credentials, p string, offset int64, buf []byte) (int, error) {

	r, err := fs.GetDirEntryByPath(caller, p)
	if err != nil {
		return 0, err
	}

	inode, err := fs.readInode(r.EntryInode, StateInUse)
	if err != nil {
		return 0, err
	}
	if inode.Type() == TypeDir {
		return 0, ErrIsDirectory
	}
	if !accessGranted(inode, caller, PermOwnerR|PermGroupR|PermOtherR) {
		return 0, ErrNoRead
	}

	if offset < 0 || uint64(offset) >= inode.Size {
		return 0, nil
	}

	remaining := inode.Size - uint64(offset)
	if uint64(len(buf)) < remaining {
		remaining = uint64(len(buf))
	}

	read := 0
	for uint64(read) < remaining {

		pos := uint64(offset) + uint64(read)
		clustInd := uint32(pos / BSLPC)
		within := pos % BSLPC

		l, err := fs.handleFileCluster(r.EntryInode, inode, clustInd, opGet)
		if err != nil {
			return read, err
		}

		chunk := remaining - uint64(read)
		if chunk > BSLPC-within {
			chunk = BSLPC - within
		}

		if l == NullCluster {
			for i := uint64(0); i < chunk; i++ {
				buf[uint64(read)+i] = 0
			}
		} else {
			c, err := fs.readCluster(l)
			if err != nil {
				return read, err
			}
			copy(buf[read:uint64(read)+chunk], c.Payload[within:within+chunk])
		}

		read += int(chunk)

	}

	return read, nil

}

// WriteFile writes buf at offset into the file at path, allocating
// clusters as needed and growing Size if the write extends past the
// current end of file.
func (fs *Filesystem) WriteFile(caller Credentials, p string, offset int64, buf []byte) (int, error) {

	r, err := fs.GetDirEntryByPath(caller, p)
	if err != nil {
		return 0, err
	}

	inode, err := fs.readInode(r.EntryInode, StateInUse)
	if err != nil {
		return 0, err
	}
	if inode.Type() == TypeDir {
		return 0, ErrIsDirectory
	}
	if !accessGranted(inode, caller, PermOwnerW|PermGroupW|PermOtherW) {
		return 0, ErrNoWrite
	}

	if offset < 0 {
		return 0, fmt.Errorf("%w: negative offset", ErrIllegalPath)
	}

	maxClustInd := uint32((uint64(offset) + uint64(len(buf))) / BSLPC)
	if maxClustInd >= MaxFileClusters {
		return 0, ErrFileTooBig
	}

	written := 0
	for written < len(buf) {

		pos := uint64(offset) + uint64(written)
		clustInd := uint32(pos / BSLPC)
		within := pos % BSLPC

		l, err := fs.handleFileCluster(r.EntryInode, inode, clustInd, opGet)
		if err != nil {
			return written, err
		}
		if l == NullCluster {
			l, err = fs.handleFileCluster(r.EntryInode, inode, clustInd, opAlloc)
			if err != nil {
				return written, err
			}
		}

		c, err := fs.readCluster(l)
		if err != nil {
			return written, err
		}

		chunk := uint64(len(buf) - written)
		if chunk > BSLPC-within {
			chunk = BSLPC - within
		}

		copy(c.Payload[within:within+chunk], buf[written:uint64(written)+chunk])

		if err := fs.writeCluster(l, c); err != nil {
			return written, err
		}

		written += int(chunk)

	}

	newSize := uint64(offset) + uint64(written)
	if newSize > inode.Size {
		inode.Size = newSize
	}

	return written, fs.writeInode(r.EntryInode, inode, StateInUse)

}

// Mkdir creates a new directory entry ADD'ed under the parent of path
// (§4.F alloc_inode + §4.I add_att_dir_entry, ADD).
func (fs *Filesystem) Mkdir(caller Credentials, p string) error {
	_, err := fs.createEntry(caller, p, TypeDir)
	return err
}

// CreateFile creates a new empty regular file entry under the parent of
// path.
func (fs *Filesystem) CreateFile(caller Credentials, p string) error {
	_, err := fs.createEntry(caller, p, TypeFile)
	return err
}

// Symlink creates a symlink entry at path whose target is the literal
// string target, written into its first data cluster.
func (fs *Filesystem) Symlink(caller Credentials, target, p string) error {

	nEntry, err := fs.createEntry(caller, p, TypeSymlink)
	if err != nil {
		return err
	}

	entryInode, err := fs.readInode(nEntry, StateInUse)
	if err != nil {
		return err
	}

	l, err := fs.handleFileCluster(nEntry, entryInode, 0, opAlloc)
	if err != nil {
		return err
	}

	c, err := fs.readCluster(l)
	if err != nil {
		return err
	}
	copy(c.Payload[:], target)
	if err := fs.writeCluster(l, c); err != nil {
		return err
	}

	entryInode.Size = uint64(len(target))

	return fs.writeInode(nEntry, entryInode, StateInUse)

}

func (fs *Filesystem) createEntry(caller Credentials, p string, typ InodeType) (uint32, error) {

	dir := path.Dir(p)
	name := path.Base(p)

	r, err := fs.GetDirEntryByPath(caller, dir)
	if err != nil {
		return 0, err
	}

	dirInode, err := fs.readInode(r.EntryInode, StateInUse)
	if err != nil {
		return 0, err
	}
	if dirInode.Type() != TypeDir {
		return 0, ErrNotDirectory
	}

	nEntry, err := fs.allocInode(typ, caller.UID, caller.GID)
	if err != nil {
		return 0, err
	}

	entryInode, err := fs.readInode(nEntry, StateInUse)
	if err != nil {
		return 0, err
	}

	if err := fs.addAttDirEntry(r.EntryInode, dirInode, caller, name, nEntry, entryInode, DirAdd); err != nil {
		return 0, err
	}

	return nEntry, nil

}

// Remove detaches and, if the last reference, reclaims the entry at path
// (§4.I rem_detach_dir_entry, REM).
func (fs *Filesystem) Remove(caller Credentials, p string) error {

	dir := path.Dir(p)
	name := path.Base(p)

	r, err := fs.GetDirEntryByPath(caller, dir)
	if err != nil {
		return err
	}

	dirInode, err := fs.readInode(r.EntryInode, StateInUse)
	if err != nil {
		return err
	}

	return fs.remDetachDirEntry(r.EntryInode, dirInode, caller, name, DirRem)

}

// Rename implements mv semantics grounded in
// original_source/src/syscalls14/soRename.c: a same-directory rename uses
// rename_dir_entry directly; a cross-directory move detaches the entry
// from its old parent and re-attaches it (ADD for files, ATTACH for
// directories, so the moved directory's ".." is rewritten) under the new
// name in the new parent.
func (fs *Filesystem) Rename(caller Credentials, oldPath, newPath string) error {

	oldDir := path.Dir(oldPath)
	oldName := path.Base(oldPath)
	newDir := path.Dir(newPath)
	newName := path.Base(newPath)

	oldDirR, err := fs.GetDirEntryByPath(caller, oldDir)
	if err != nil {
		return err
	}
	oldDirInode, err := fs.readInode(oldDirR.EntryInode, StateInUse)
	if err != nil {
		return err
	}

	if oldDir == newDir {
		return fs.renameDirEntry(oldDirR.EntryInode, oldDirInode, caller, oldName, newName)
	}

	nEntry, _, _, err := fs.getEntryByName(oldDirR.EntryInode, oldDirInode, caller, oldName)
	if err != nil {
		return err
	}
	entryInode, err := fs.readInode(nEntry, StateInUse)
	if err != nil {
		return err
	}

	newDirR, err := fs.GetDirEntryByPath(caller, newDir)
	if err != nil {
		return err
	}
	newDirInode, err := fs.readInode(newDirR.EntryInode, StateInUse)
	if err != nil {
		return err
	}

	if _, _, _, err := fs.getEntryByName(newDirR.EntryInode, newDirInode, caller, newName); err == nil {
		if err := fs.Remove(caller, newPath); err != nil {
			return err
		}
		newDirInode, err = fs.readInode(newDirR.EntryInode, StateInUse)
		if err != nil {
			return err
		}
	}

	if err := fs.remDetachDirEntry(oldDirR.EntryInode, oldDirInode, caller, oldName, DirDetach); err != nil {
		return err
	}

	op := DirAdd
	if entryInode.Type() == TypeDir {
		op = DirAttach
	}

	return fs.addAttDirEntry(newDirR.EntryInode, newDirInode, caller, newName, nEntry, entryInode, op)

}
