// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package digitizer holds types and functions to drive a CAEN VX1742
// waveform digitizer and to decode the raw event records it produces.
package digitizer // import "github.com/go-lpc/vx1742/digitizer"

import (
	"errors"
)

const (
	NumGroups   = 4    // number of channel groups on the board
	NumChannels = 8    // number of channels per group
	MaxSamples  = 1024 // maximum number of samples per channel

	hdrWords  = 4   // number of 32-bit words in an event header
	hdrMarker = 0xa // event header marker (bits 31..28 of word 0)
)

var (
	// ErrMalformedRecord reports a raw event record whose internal
	// layout is inconsistent with its declared size.
	ErrMalformedRecord = errors.New("digitizer: malformed record")

	// ErrClosed reports an operation on a closed device.
	ErrClosed = errors.New("digitizer: device closed")
)

// Device is the handle to a digitizer board.
//
// Device calls are synchronous. A Device is not safe for concurrent use:
// the caller serializes accesses.
type Device interface {
	// Reset issues a software reset of the board.
	Reset() error
	// Configure pushes the whole configuration to the board.
	Configure(cfg Config) error
	// ArmBusySignal propagates the busy signal on the TRG-OUT connector.
	ArmBusySignal() error
	// EnableRawTriggerCounting makes the event counter count all
	// triggers, not just the accepted ones.
	EnableRawTriggerCounting() error

	IsAcquiring() (bool, error)
	StartAcquisition() error
	StopAcquisition() error
	ClearBuffers() error

	SerialNumber() (string, error)
	FirmwareVersion() (string, error)

	// RecordsStored returns the number of records stored in the board memory.
	RecordsStored() (int, error)
	// NextRecordSize returns the size, in 32-bit words, of the next record.
	NextRecordSize() (int, error)
	// RecordReady returns whether a record is available for readout.
	RecordReady() (bool, error)
	// FetchNextRecord reads the next record into dst, growing it as needed,
	// and returns the filled buffer.
	FetchNextRecord(dst []byte) ([]byte, error)

	Close() error
}

// grow returns a slice of length n, reusing the storage of p when possible.
func grow(p []byte, n int) []byte {
	if cap(p) < n {
		return make([]byte, n)
	}
	return p[:n]
}
