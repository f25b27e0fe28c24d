package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagUID uint32
	flagGID uint32
)

var rootCmd = &cobra.Command{
	Use:   "sofsctl",
	Short: "Inspect and modify a SOFS14 volume from outside a mount",
	Long: `sofsctl is a thin adapter over the sofs14 library: every subcommand
opens a device file, takes an advisory exclusive lock, mounts it, performs
one operation, and unmounts.`,
}

func init() {
	rootCmd.PersistentFlags().Uint32Var(&flagUID, "uid", 0, "caller uid for access checks")
	rootCmd.PersistentFlags().Uint32Var(&flagGID, "gid", 0, "caller gid for access checks")

	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(lnCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
