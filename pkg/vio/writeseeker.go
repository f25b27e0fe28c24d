package vio

/**
 * SPDX-License-Identifier: Apache-2.0
 * Copyright 2020 vorteil.io Pty Ltd
 */

import "io"

type zeroesReader struct {
}

func (rdr *zeroesReader) Read(p []byte) (n int, err error) {

	if len(p) == 0 {
		return
	}
	p[0] = 0
	for bp := 1; bp < len(p); bp *= 2 {
		copy(p[bp:], p[:bp])
	}

	return len(p), nil

}

// Zeroes is an infinite stream of zero bytes, used by mkfs14's -z flag to
// zero-fill the payload of free data clusters via io.CopyN.
var Zeroes = io.Reader(&zeroesReader{})
