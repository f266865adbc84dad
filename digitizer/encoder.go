// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record describes a raw event record, as produced by the board.
type Record struct {
	BoardID   uint32
	BoardFail bool
	Counter   uint32 // hardware event counter (22 bits)
	TimeTag   uint32 // trigger time tag
	Mask      uint32 // group mask

	// HeaderOnly marks a record without group data, as emitted by the
	// board right after the acquisition start.
	HeaderOnly bool

	Groups [NumGroups]GroupData
}

// GroupData holds the data of one channel group.
type GroupData struct {
	Freq      uint32
	StartCell uint32
	TimeTag   uint32
	Samples   [NumChannels][]uint16 // 12-bit samples, same length for all channels
	TR        []uint16              // optional fast trigger samples
}

// Size returns the size, in 32-bit words, of the encoded record.
func (rec *Record) Size() int {
	n := hdrWords
	if rec.HeaderOnly {
		return n
	}
	for i := range rec.Groups {
		if (rec.Mask>>i)&1 == 0 {
			continue
		}
		g := &rec.Groups[i]
		ns := len(g.Samples[0])
		n += 1 + 3*ns + 1
		if g.TR != nil {
			n += 3 * ns / 8
		}
	}
	return n
}

// Encoder writes raw event records to an output stream.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, buf: make([]byte, 4)}
}

// Encode writes the record to the stream.
func (enc *Encoder) Encode(rec *Record) error {
	if rec == nil {
		return nil
	}

	for i := range rec.Groups {
		if rec.HeaderOnly || (rec.Mask>>i)&1 == 0 {
			continue
		}
		g := &rec.Groups[i]
		ns := len(g.Samples[0])
		if ns == 0 {
			return fmt.Errorf("digitizer: group %d has no samples", i)
		}
		for ch, v := range g.Samples {
			if len(v) != ns {
				return fmt.Errorf(
					"digitizer: group %d channel %d has %d samples (want=%d)",
					i, ch, len(v), ns,
				)
			}
		}
		if g.TR != nil && (ns%8 != 0 || len(g.TR) != ns) {
			return fmt.Errorf("digitizer: group %d has invalid TR samples", i)
		}
	}

	size := uint32(rec.Size())
	w1 := rec.BoardID<<27 | rec.Mask&0xf
	if rec.BoardFail {
		w1 |= 1 << 26
	}

	enc.writeU32(hdrMarker<<28 | size&0x0fffffff)
	enc.writeU32(w1)
	enc.writeU32(rec.Counter & 0x3fffff)
	enc.writeU32(rec.TimeTag)
	if enc.err != nil {
		return fmt.Errorf("digitizer: could not write record header: %w", enc.err)
	}

	if rec.HeaderOnly {
		return nil
	}

	for i := range rec.Groups {
		if (rec.Mask>>i)&1 == 0 {
			continue
		}
		enc.writeGroup(&rec.Groups[i])
		if enc.err != nil {
			return fmt.Errorf("digitizer: could not write group %d: %w", i, enc.err)
		}
	}

	return enc.err
}

func (enc *Encoder) writeGroup(g *GroupData) {
	ns := len(g.Samples[0])
	hdr := uint32(3*ns)&0xfff | (g.Freq&0x3)<<16 | (g.StartCell&0x3ff)<<20
	if g.TR != nil {
		hdr |= 1 << 12
	}
	enc.writeU32(hdr)

	var blk [3]uint32
	for i := 0; i < ns; i++ {
		var ch [NumChannels]uint16
		for c := range ch {
			ch[c] = g.Samples[c][i]
		}
		pack12(&blk, ch[:])
		for _, w := range blk {
			enc.writeU32(w)
		}
	}

	if g.TR != nil {
		// 8 TR samples per 3 words.
		for i := 0; i < len(g.TR); i += 8 {
			pack12(&blk, g.TR[i:i+8])
			for _, w := range blk {
				enc.writeU32(w)
			}
		}
	}

	enc.writeU32(g.TimeTag & 0x3fffffff)
}

// pack12 packs 8 12-bit values into 3 32-bit words.
func pack12(blk *[3]uint32, vs []uint16) {
	*blk = [3]uint32{}
	for i, v := range vs {
		var (
			pos   = 12 * i
			iw    = pos / 32
			shift = uint(pos % 32)
			u     = uint32(v & 0xfff)
		)
		blk[iw] |= u << shift
		if shift > 20 {
			blk[iw+1] |= u >> (32 - shift)
		}
	}
}

func (enc *Encoder) writeU32(v uint32) {
	if enc.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(enc.buf[:4], v)
	_, enc.err = enc.w.Write(enc.buf[:4])
}
