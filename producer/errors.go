// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"errors"

	"github.com/go-lpc/vx1742/digitizer"
)

var (
	// ErrInitialization reports a device that could not be opened.
	ErrInitialization = errors.New("producer: initialization error")
	// ErrConfiguration reports a failed Configure transition.
	ErrConfiguration = errors.New("producer: configuration error")
	// ErrStartRun reports a failed StartRun transition.
	ErrStartRun = errors.New("producer: start-run error")
	// ErrDevice reports a device fault during readout.
	ErrDevice = errors.New("producer: device error")
	// ErrMalformedRecord reports an inconsistent raw record.
	ErrMalformedRecord = digitizer.ErrMalformedRecord
	// ErrState reports a transition not allowed from the current state.
	ErrState = errors.New("producer: invalid state transition")
)
