package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/luminoso/sofs14/pkg/elog"
)

var log elog.View

func main() {

	name := pflag.StringP("name", "n", "", "volume name, up to 31 characters")
	inodeRatio := pflag.UintP("inodes", "i", 8, "approximate blocks per inode")
	quiet := pflag.BoolP("quiet", "q", false, "suppress progress output")
	zero := pflag.BoolP("zero", "z", false, "zero-fill every free data cluster instead of patching headers only")
	config := pflag.StringP("config", "c", "", "YAML file of mkfs14 defaults")
	verbose := pflag.BoolP("verbose", "v", false, "enable verbose output")
	pflag.Parse()

	logger := &elog.CLI{}
	logrus.SetFormatter(logger)
	logrus.SetLevel(logrus.TraceLevel)
	if *verbose {
		logger.IsVerbose = true
	}
	log = logger

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: mkfs14 [flags] device-file")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig(*config, defaultConfig())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *name != "" {
		cfg.Name = *name
	}
	if pflag.CommandLine.Changed("inodes") {
		cfg.InodeRatio = uint32(*inodeRatio)
	}
	if *quiet {
		cfg.Quiet = true
	}
	if *zero {
		cfg.ZeroFill = true
	}

	if err := format(pflag.Arg(0), cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

}
