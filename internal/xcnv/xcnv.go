// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xcnv provides tools to convert VX1742 frame streams to/from LCIO.
package xcnv // import "github.com/go-lpc/vx1742/internal/xcnv"

const (
	detector = "VX1742"
	collName = "VX1742_RAW"
)
