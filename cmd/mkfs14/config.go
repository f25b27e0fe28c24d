package main

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import (
	"fmt"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// fsConfig is the set of mkfs14 defaults, overridable by a -c/--config
// file and then by explicit flags (SPEC_FULL.md §2).
type fsConfig struct {
	Name       string `mapstructure:"name"`
	InodeRatio uint32 `mapstructure:"inodeRatio"`
	Quiet      bool   `mapstructure:"quiet"`
	ZeroFill   bool   `mapstructure:"zeroFill"`
}

func defaultConfig() fsConfig {
	return fsConfig{
		Name:       "SOFS14",
		InodeRatio: 8,
	}
}

// loadConfig reads mkfs14 defaults the same way the rest of the toolchain
// reads its config files: an explicit -c path takes precedence, otherwise
// viper looks for mkfs14.yaml in the user's home directory. Either way,
// base supplies the defaults beneath whatever the file sets (flags applied
// afterwards in main take final precedence over both).
func loadConfig(path string, base fsConfig) (fsConfig, error) {

	viper.SetDefault("name", base.Name)
	viper.SetDefault("inodeRatio", base.InodeRatio)
	viper.SetDefault("quiet", base.Quiet)
	viper.SetDefault("zeroFill", base.ZeroFill)

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		if home, err := homedir.Dir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName("mkfs14")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if path != "" {
			return base, fmt.Errorf("reading config %q: %w", path, err)
		}
		return base, nil
	}

	var cfg fsConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return base, fmt.Errorf("parsing config %q: %w", path, err)
	}

	return cfg, nil

}
