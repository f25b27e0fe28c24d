package sofs

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"path"
	"strings"
)

// resolveResult is what GetDirEntryByPath hands back: the inode number of
// the containing directory and of the resolved entry itself. For "/" both
// are RootInode.
type resolveResult struct {
	DirInode   uint32
	EntryInode uint32
}

// GetDirEntryByPath implements §4.J get_dir_entry_by_path: split into
// dirname/basename, recurse on the parent, then look the leaf up by name,
// following at most MaxSymlinks symlinks along the way.
func (fs *Filesystem) GetDirEntryByPath(caller Credentials, p string) (resolveResult, error) {
	return fs.resolvePath(caller, p, 0)
}

func (fs *Filesystem) resolvePath(caller Credentials, p string, symlinksFollowed int) (resolveResult, error) {

	if len(p) == 0 || p[0] != '/' {
		return resolveResult{}, fmt.Errorf("%w: %q", ErrRelativePath, p)
	}
	if len(p) > MaxPath {
		return resolveResult{}, fmt.Errorf("%w: path exceeds %d bytes", ErrIllegalPath, MaxPath)
	}
	for _, comp := range strings.Split(p, "/") {
		if len(comp) > MaxName {
			return resolveResult{}, fmt.Errorf("%w: component %q exceeds %d bytes", ErrNameTooLong, comp, MaxName)
		}
	}

	clean := path.Clean(p)
	if clean == "/" {
		return resolveResult{DirInode: RootInode, EntryInode: RootInode}, nil
	}

	dir := path.Dir(clean)
	name := path.Base(clean)

	parent, err := fs.resolvePath(caller, dir, symlinksFollowed)
	if err != nil {
		return resolveResult{}, err
	}

	parentInode, err := fs.readInode(parent.EntryInode, StateInUse)
	if err != nil {
		return resolveResult{}, err
	}
	if parentInode.Type() != TypeDir {
		return resolveResult{}, ErrNotDirectory
	}
	if !accessGranted(parentInode, caller, PermOwnerX|PermGroupX|PermOtherX) {
		return resolveResult{}, ErrNoExec
	}

	nEntry, _, _, err := fs.getEntryByName(parent.EntryInode, parentInode, caller, name)
	if err != nil {
		return resolveResult{}, err
	}

	entryInode, err := fs.readInode(nEntry, StateInUse)
	if err != nil {
		return resolveResult{}, err
	}

	if entryInode.Type() == TypeSymlink {
		if symlinksFollowed >= MaxSymlinks {
			return resolveResult{}, ErrLoop
		}
		target, err := fs.readSymlinkTarget(nEntry, entryInode)
		if err != nil {
			return resolveResult{}, err
		}
		if strings.HasPrefix(target, "/") {
			return fs.resolvePath(caller, target, symlinksFollowed+1)
		}
		spliced := path.Join(dir, target)
		if !strings.HasPrefix(spliced, "/") {
			spliced = "/" + spliced
		}
		return fs.resolvePath(caller, spliced, symlinksFollowed+1)
	}

	return resolveResult{DirInode: parent.EntryInode, EntryInode: nEntry}, nil

}

// readSymlinkTarget reads a symlink's target path out of its first data
// cluster (spec.md §4.J). Targets are expected to fit in one cluster.
func (fs *Filesystem) readSymlinkTarget(nInode uint32, inode *Inode) (string, error) {

	l, err := fs.handleFileCluster(nInode, inode, 0, opGet)
	if err != nil {
		return "", err
	}
	if l == NullCluster {
		return "", fmt.Errorf("%w: symlink %d has no target cluster", ErrInconsistentRefs, nInode)
	}

	c, err := fs.readCluster(l)
	if err != nil {
		return "", err
	}

	n := int(inode.Size)
	if n > len(c.Payload) {
		n = len(c.Payload)
	}

	return string(c.Payload[:n]), nil

}
