package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"io/ioutil"
	"os"

	"github.com/spf13/cobra"

	"github.com/luminoso/sofs14/pkg/sofs"
)

func caller() sofs.Credentials {
	return sofs.Credentials{UID: flagUID, GID: flagGID}
}

// withMount locks devPath, mounts it, runs fn, then unmounts and unlocks,
// in that order regardless of fn's outcome.
func withMount(devPath string, fn func(fs *sofs.Filesystem) error) error {

	lockFile, err := lockDevice(devPath)
	if err != nil {
		return err
	}
	defer unlockDevice(lockFile)

	fs, err := sofs.Mount(devPath)
	if err != nil {
		return err
	}

	err = fn(fs)

	if uerr := fs.Unmount(); uerr != nil && err == nil {
		err = uerr
	}

	return err

}

func typeName(t sofs.InodeType) string {
	switch t {
	case sofs.TypeDir:
		return "dir"
	case sofs.TypeSymlink:
		return "symlink"
	default:
		return "file"
	}
}

var statCmd = &cobra.Command{
	Use:   "stat device path",
	Short: "Print an inode's metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {
			n, inode, err := fs.Stat(caller(), args[1])
			if err != nil {
				return err
			}
			fmt.Printf("inode:   %d\n", n)
			fmt.Printf("type:    %s\n", typeName(inode.Type()))
			fmt.Printf("perm:    %04o\n", inode.Perm())
			fmt.Printf("owner:   %d\n", inode.Owner)
			fmt.Printf("group:   %d\n", inode.Group)
			fmt.Printf("size:    %d\n", inode.Size)
			fmt.Printf("nlink:   %d\n", inode.RefCount)
			fmt.Printf("mtime:   %d\n", inode.ModTime())
			fmt.Printf("atime:   %d\n", inode.AccessTime())
			return nil
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls device path",
	Short: "List a directory's entries",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {
			entries, err := fs.List(caller(), args[1])
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%8d  %s\n", e.NInode, e.Name)
			}
			return nil
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat device path",
	Short: "Print a file's contents to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {
			buf := make([]byte, sofs.BSLPC)
			var offset int64
			for {
				n, err := fs.ReadFile(caller(), args[1], offset, buf)
				if err != nil {
					return err
				}
				if n == 0 {
					return nil
				}
				if _, err := os.Stdout.Write(buf[:n]); err != nil {
					return err
				}
				offset += int64(n)
			}
		})
	},
}

var flagWriteOffset int64
var flagWriteAppend bool

var writeCmd = &cobra.Command{
	Use:   "write device path",
	Short: "Write stdin into a file, creating it if absent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {

			if _, _, err := fs.Stat(caller(), args[1]); err != nil {
				if err := fs.CreateFile(caller(), args[1]); err != nil {
					return err
				}
			}

			offset := flagWriteOffset
			if flagWriteAppend {
				_, inode, err := fs.Stat(caller(), args[1])
				if err != nil {
					return err
				}
				offset = int64(inode.Size)
			}

			data, err := ioutil.ReadAll(os.Stdin)
			if err != nil {
				return err
			}

			_, err = fs.WriteFile(caller(), args[1], offset, data)
			return err

		})
	},
}

func init() {
	writeCmd.Flags().Int64Var(&flagWriteOffset, "offset", 0, "byte offset to write at")
	writeCmd.Flags().BoolVar(&flagWriteAppend, "append", false, "write at the current end of file")
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir device path",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {
			return fs.Mkdir(caller(), args[1])
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm device path",
	Short: "Remove a file or empty directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {
			return fs.Remove(caller(), args[1])
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv device old new",
	Short: "Rename or move an entry",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {
			return fs.Rename(caller(), args[1], args[2])
		})
	},
}

var lnCmd = &cobra.Command{
	Use:   "ln device target path",
	Short: "Create a symbolic link",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMount(args[0], func(fs *sofs.Filesystem) error {
			return fs.Symlink(caller(), args[1], args[2])
		})
	},
}
