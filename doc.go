// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vx1742 holds code for the CAEN VX1742 digitizer data acquisition.
//
// The digitizer package decodes the raw event records of the board,
// the frame package turns decoded records into transport frames and the
// producer package drives the board and its readout loop from a tdaq
// run-control.
package vx1742 // import "github.com/go-lpc/vx1742"

import (
	"runtime/debug"
)

const modulePath = "github.com/go-lpc/vx1742"

// Version returns the version of vx1742 and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	if b.Main.Path == modulePath {
		return moduleVersion(&b.Main)
	}

	for _, m := range b.Deps {
		if m.Path == modulePath {
			return moduleVersion(m)
		}
	}
	return "", ""
}

func moduleVersion(m *debug.Module) (version, sum string) {
	if r := m.Replace; r != nil {
		switch {
		case r.Version != "" && r.Path != "":
			return r.Path + " " + r.Version, r.Sum
		case r.Version != "":
			return r.Version, r.Sum
		case r.Path != "":
			return r.Path, r.Sum
		default:
			return m.Version + "*", ""
		}
	}
	return m.Version, m.Sum
}
