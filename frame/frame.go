// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame holds the transport frames emitted by the VX1742 producer,
// the builder converting decoded records into frames and the binary codec
// used to stream frames over the network and into files.
package frame // import "github.com/go-lpc/vx1742/frame"

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// EventType is the event-type identifier of frames emitted by the producer.
const EventType = "VX1742"

// Indices of the metadata blocks.
const (
	BlkSize    = iota // event size, in 32-bit words
	BlkMask           // group mask
	BlkChans          // number of payload blocks following the metadata blocks
	BlkSamples        // samples per channel
	BlkTimeTag        // trigger time tag

	NumMeta // number of metadata blocks
)

// BORE tag keys.
const (
	TagTimestamp = "timestamp"
	TagSerial    = "serial_number"
	TagFirmware  = "firmware_version"
)

// Frame is an ordered sequence of data blocks, tagged with the event type,
// the run number and the event sequence number.
//
// Begin-of-run (BORE) frames carry no blocks, only tags.
type Frame struct {
	Type    string
	Run     uint32
	Event   uint32 // event sequence number within the run
	Trigger uint32 // hardware event counter
	BORE    bool
	Tags    map[string]string
	Blocks  [][]byte
}

// BeginOfRun returns the begin-of-run frame of run, started at ts (in
// 100ns ticks since the Unix epoch) on the board with the provided serial
// number and firmware version.
func BeginOfRun(run uint32, ts uint64, serial, firmware string) Frame {
	return Frame{
		Type: EventType,
		Run:  run,
		BORE: true,
		Tags: map[string]string{
			TagTimestamp: strconv.FormatUint(ts, 10),
			TagSerial:    serial,
			TagFirmware:  firmware,
		},
	}
}

// Tag returns the value of the tag key.
func (f *Frame) Tag(key string) string {
	return f.Tags[key]
}

// Meta returns the value of the metadata block i.
func (f *Frame) Meta(i int) (uint32, error) {
	if i < 0 || i >= NumMeta || i >= len(f.Blocks) {
		return 0, fmt.Errorf("frame: no metadata block %d", i)
	}
	blk := f.Blocks[i]
	if len(blk) != 4 {
		return 0, fmt.Errorf("frame: invalid metadata block %d size %d", i, len(blk))
	}
	return binary.LittleEndian.Uint32(blk), nil
}

// Payload returns the samples of the payload block i, appended to dst.
func (f *Frame) Payload(dst []uint16, i int) ([]uint16, error) {
	i += NumMeta
	if i < NumMeta || i >= len(f.Blocks) {
		return dst, fmt.Errorf("frame: no payload block %d", i-NumMeta)
	}
	blk := f.Blocks[i]
	if len(blk)%2 != 0 {
		return dst, fmt.Errorf("frame: invalid payload block %d size %d", i-NumMeta, len(blk))
	}
	for j := 0; j < len(blk); j += 2 {
		dst = append(dst, binary.LittleEndian.Uint16(blk[j:]))
	}
	return dst, nil
}

// NumPayloads returns the number of payload blocks.
func (f *Frame) NumPayloads() int {
	if len(f.Blocks) < NumMeta {
		return 0
	}
	return len(f.Blocks) - NumMeta
}
