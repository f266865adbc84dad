// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"encoding/binary"
	"fmt"
)

// Event is a decoded raw event record.
//
// An Event references the raw buffer it was decoded from: the buffer must
// not be modified while the Event is in use.
type Event struct {
	raw   []byte
	valid bool

	size  uint32 // event size, in 32-bit words
	mask  uint32 // group mask
	board uint32 // board ID
	fail  bool   // board-fail flag
	cnt   uint32 // hardware event counter
	ttag  uint32 // trigger time tag

	grps [NumGroups]group
}

type group struct {
	on      bool
	beg     int // index of the first channel data word
	samples int // samples per channel
	freq    uint32
	cell    uint32 // start index cell
	tr      bool   // fast trigger (TR) samples present
	ttag    uint32 // group trigger time tag
}

// Valid returns whether the event carries a consistent record.
func (evt *Event) Valid() bool { return evt.valid }

// Size returns the event size, in 32-bit words.
func (evt *Event) Size() int { return int(evt.size) }

// GroupMask returns the bit mask of the groups flagged in the event header.
func (evt *Event) GroupMask() uint32 { return evt.mask }

// BoardID returns the geographical address of the board.
func (evt *Event) BoardID() uint32 { return evt.board }

// BoardFail returns whether the board reported a hardware failure.
func (evt *Event) BoardFail() bool { return evt.fail }

// Counter returns the hardware event counter.
func (evt *Event) Counter() uint32 { return evt.cnt }

// TriggerTimeTag returns the event trigger time tag.
func (evt *Event) TriggerTimeTag() uint32 { return evt.ttag }

// Channels returns the number of active channels in group grp.
func (evt *Event) Channels(grp int) int {
	if grp < 0 || grp >= NumGroups || !evt.grps[grp].on {
		return 0
	}
	return NumChannels
}

// SamplesPerChannel returns the number of samples per channel in group grp.
func (evt *Event) SamplesPerChannel(grp int) int {
	if grp < 0 || grp >= NumGroups {
		return 0
	}
	return evt.grps[grp].samples
}

// StartCell returns the start index cell of group grp.
func (evt *Event) StartCell(grp int) uint32 {
	if grp < 0 || grp >= NumGroups {
		return 0
	}
	return evt.grps[grp].cell
}

// GroupTimeTag returns the trigger time tag of group grp.
func (evt *Event) GroupTimeTag(grp int) uint32 {
	if grp < 0 || grp >= NumGroups {
		return 0
	}
	return evt.grps[grp].ttag
}

// ChannelData copies the samples of channel ch of group grp into dst and
// returns the number of copied samples.
func (evt *Event) ChannelData(grp, ch int, dst []uint16) int {
	if evt.Channels(grp) == 0 || ch < 0 || ch >= NumChannels {
		return 0
	}
	g := &evt.grps[grp]
	n := g.samples
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		dst[i] = unpack12(evt.raw, g.beg+3*i, ch)
	}
	return n
}

func (evt *Event) word(i int) uint32 {
	return binary.LittleEndian.Uint32(evt.raw[4*i:])
}

// unpack12 extracts the 12-bit sample of channel ch from the 3-word
// block starting at word beg.
// Samples of the 8 channels are packed back to back, least significant
// bits first.
func unpack12(raw []byte, beg, ch int) uint16 {
	var (
		pos   = 12 * ch
		iw    = beg + pos/32
		shift = uint(pos % 32)
		v     = binary.LittleEndian.Uint32(raw[4*iw:]) >> shift
	)
	if shift > 20 {
		v |= binary.LittleEndian.Uint32(raw[4*(iw+1):]) << (32 - shift)
	}
	return uint16(v & 0xfff)
}

// Decode decodes the raw event record into evt.
//
// Decode marks evt as invalid and returns ErrMalformedRecord when the
// record is inconsistent. Decode has no side effect on raw.
func Decode(raw []byte, evt *Event) error {
	*evt = Event{raw: raw}

	if len(raw)%4 != 0 || len(raw) < 4*hdrWords {
		return fmt.Errorf("%w: invalid buffer length %d", ErrMalformedRecord, len(raw))
	}

	w0 := evt.word(0)
	if w0>>28 != hdrMarker {
		return fmt.Errorf("%w: invalid header marker 0x%x", ErrMalformedRecord, w0>>28)
	}

	size := w0 & 0x0fffffff
	if int(size) != len(raw)/4 {
		return fmt.Errorf(
			"%w: event size %d inconsistent with buffer length %d",
			ErrMalformedRecord, size, len(raw)/4,
		)
	}

	w1 := evt.word(1)
	evt.size = size
	evt.mask = w1 & 0xf
	evt.board = w1 >> 27
	evt.fail = (w1>>26)&1 == 1
	evt.cnt = evt.word(2) & 0x3fffff
	evt.ttag = evt.word(3)

	if size == hdrWords {
		// header-only record: no group data.
		evt.valid = true
		return nil
	}

	pos := hdrWords
	for i := range evt.grps {
		if (evt.mask>>i)&1 == 0 {
			continue
		}
		if pos >= int(size) {
			return fmt.Errorf("%w: missing header for group %d", ErrMalformedRecord, i)
		}
		var (
			g  = &evt.grps[i]
			gh = evt.word(pos)
			n  = int(gh & 0xfff)
		)
		pos++
		if n == 0 || n%3 != 0 {
			return fmt.Errorf("%w: invalid data size %d for group %d", ErrMalformedRecord, n, i)
		}
		g.on = true
		g.samples = n / 3
		g.tr = (gh>>12)&1 == 1
		g.freq = (gh >> 16) & 0x3
		g.cell = (gh >> 20) & 0x3ff
		g.beg = pos

		ntr := 0
		if g.tr {
			if g.samples%8 != 0 {
				return fmt.Errorf(
					"%w: invalid TR samples count %d for group %d",
					ErrMalformedRecord, g.samples, i,
				)
			}
			ntr = 3 * g.samples / 8
		}

		pos += n + ntr
		if pos >= int(size) {
			return fmt.Errorf("%w: truncated data for group %d", ErrMalformedRecord, i)
		}
		g.ttag = evt.word(pos) & 0x3fffffff
		pos++
	}

	if pos != int(size) {
		return fmt.Errorf(
			"%w: group data size %d inconsistent with event size %d",
			ErrMalformedRecord, pos, size,
		)
	}

	evt.valid = true
	return nil
}
