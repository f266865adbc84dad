// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vx1742

import (
	"runtime/debug"
	"testing"
)

func TestVersion(t *testing.T) {
	for _, tc := range []struct {
		name string
		info *debug.BuildInfo
		vers string
		sum  string
	}{
		{
			name: "nil",
		},
		{
			name: "main",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: modulePath, Version: "v0.3.0", Sum: "h1:main"},
			},
			vers: "v0.3.0",
			sum:  "h1:main",
		},
		{
			name: "dep",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/daq"},
				Deps: []*debug.Module{
					{Path: "go-hep.org/x/hep", Version: "v0.32.1"},
					{Path: modulePath, Version: "v0.2.1", Sum: "h1:dep"},
				},
			},
			vers: "v0.2.1",
			sum:  "h1:dep",
		},
		{
			name: "replace-path",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/daq"},
				Deps: []*debug.Module{
					{Path: modulePath, Version: "v0.2.1", Replace: &debug.Module{Path: "../vx1742"}},
				},
			},
			vers: "../vx1742",
		},
		{
			name: "replace-version",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/daq"},
				Deps: []*debug.Module{
					{
						Path: modulePath, Version: "v0.2.1",
						Replace: &debug.Module{Path: "example.org/vx1742", Version: "v0.2.2", Sum: "h1:fork"},
					},
				},
			},
			vers: "example.org/vx1742 v0.2.2",
			sum:  "h1:fork",
		},
		{
			name: "missing",
			info: &debug.BuildInfo{
				Main: debug.Module{Path: "example.org/daq"},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			vers, sum := versionOf(tc.info)
			if vers != tc.vers {
				t.Fatalf("invalid version: got=%q, want=%q", vers, tc.vers)
			}
			if sum != tc.sum {
				t.Fatalf("invalid sum: got=%q, want=%q", sum, tc.sum)
			}
		})
	}
}
