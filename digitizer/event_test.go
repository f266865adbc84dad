// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func newRecord(mask uint32, ns int, tr bool) Record {
	rec := Record{
		BoardID: 3,
		Counter: 42,
		TimeTag: 0xdeadbeef,
		Mask:    mask,
	}
	for i := range rec.Groups {
		if (mask>>i)&1 == 0 {
			continue
		}
		g := &rec.Groups[i]
		g.Freq = 2
		g.StartCell = uint32(100 + i)
		g.TimeTag = uint32(0x1000 + i)
		for ch := range g.Samples {
			vs := make([]uint16, ns)
			for j := range vs {
				vs[j] = uint16((i*1000 + ch*100 + j*7) & 0xfff)
			}
			g.Samples[ch] = vs
		}
		if tr {
			g.TR = make([]uint16, ns)
			for j := range g.TR {
				g.TR[j] = uint16(0xfff - j)
			}
		}
	}
	return rec
}

func encode(t *testing.T, rec Record) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	err := NewEncoder(buf).Encode(&rec)
	if err != nil {
		t.Fatalf("could not encode record: %+v", err)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	for _, tc := range []struct {
		name string
		rec  Record
	}{
		{
			name: "group-0",
			rec:  newRecord(0x1, 16, false),
		},
		{
			name: "groups-0-2",
			rec:  newRecord(0x5, 16, false),
		},
		{
			name: "all-groups-tr",
			rec:  newRecord(0xf, 8, true),
		},
		{
			name: "max-samples",
			rec:  newRecord(0x1, MaxSamples, false),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw := encode(t, tc.rec)
			orig := append([]byte(nil), raw...)

			var evt Event
			err := Decode(raw, &evt)
			if err != nil {
				t.Fatalf("could not decode record: %+v", err)
			}

			if !bytes.Equal(raw, orig) {
				t.Fatalf("decoding modified the input buffer")
			}

			if !evt.Valid() {
				t.Fatalf("event should be valid")
			}
			if got, want := evt.Size(), tc.rec.Size(); got != want {
				t.Fatalf("invalid size: got=%d, want=%d", got, want)
			}
			if got, want := evt.Size(), len(raw)/4; got != want {
				t.Fatalf("invalid size: got=%d, want=%d", got, want)
			}
			if got, want := evt.GroupMask(), tc.rec.Mask; got != want {
				t.Fatalf("invalid mask: got=0x%x, want=0x%x", got, want)
			}
			if got, want := evt.Counter(), tc.rec.Counter; got != want {
				t.Fatalf("invalid counter: got=%d, want=%d", got, want)
			}
			if got, want := evt.TriggerTimeTag(), tc.rec.TimeTag; got != want {
				t.Fatalf("invalid time tag: got=0x%x, want=0x%x", got, want)
			}
			if got, want := evt.BoardID(), tc.rec.BoardID; got != want {
				t.Fatalf("invalid board id: got=%d, want=%d", got, want)
			}
			if evt.BoardFail() {
				t.Fatalf("invalid board-fail flag")
			}

			for i := range tc.rec.Groups {
				g := &tc.rec.Groups[i]
				if (tc.rec.Mask>>i)&1 == 0 {
					if got := evt.Channels(i); got != 0 {
						t.Fatalf("group %d: invalid channels: got=%d, want=0", i, got)
					}
					continue
				}
				if got, want := evt.Channels(i), NumChannels; got != want {
					t.Fatalf("group %d: invalid channels: got=%d, want=%d", i, got, want)
				}
				ns := len(g.Samples[0])
				if got, want := evt.SamplesPerChannel(i), ns; got != want {
					t.Fatalf("group %d: invalid samples: got=%d, want=%d", i, got, want)
				}
				if got, want := evt.StartCell(i), g.StartCell; got != want {
					t.Fatalf("group %d: invalid start cell: got=%d, want=%d", i, got, want)
				}
				if got, want := evt.GroupTimeTag(i), g.TimeTag; got != want {
					t.Fatalf("group %d: invalid time tag: got=%d, want=%d", i, got, want)
				}
				for ch := 0; ch < NumChannels; ch++ {
					got := make([]uint16, ns)
					n := evt.ChannelData(i, ch, got)
					if n != ns {
						t.Fatalf("group %d, ch %d: invalid number of samples: got=%d, want=%d", i, ch, n, ns)
					}
					if want := g.Samples[ch]; !reflect.DeepEqual(got, want) {
						t.Fatalf("group %d, ch %d: invalid samples:\ngot= %v\nwant=%v", i, ch, got, want)
					}
				}
			}

			// decoding is a pure function of the input.
			var again Event
			err = Decode(raw, &again)
			if err != nil {
				t.Fatalf("could not re-decode record: %+v", err)
			}
			if !reflect.DeepEqual(evt, again) {
				t.Fatalf("decoding is not reproducible")
			}
		})
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	rec := newRecord(0x1, 16, false)
	rec.HeaderOnly = true
	rec.BoardFail = true

	raw := encode(t, rec)
	if got, want := len(raw), 4*hdrWords; got != want {
		t.Fatalf("invalid raw size: got=%d, want=%d", got, want)
	}

	var evt Event
	err := Decode(raw, &evt)
	if err != nil {
		t.Fatalf("could not decode header-only record: %+v", err)
	}
	if !evt.Valid() {
		t.Fatalf("header-only event should be valid")
	}
	if got, want := evt.Size(), 4; got != want {
		t.Fatalf("invalid size: got=%d, want=%d", got, want)
	}
	if got, want := evt.GroupMask(), uint32(0x1); got != want {
		t.Fatalf("invalid mask: got=0x%x, want=0x%x", got, want)
	}
	if got := evt.Channels(0); got != 0 {
		t.Fatalf("invalid channels: got=%d, want=0", got)
	}
	if got := evt.SamplesPerChannel(0); got != 0 {
		t.Fatalf("invalid samples: got=%d, want=0", got)
	}
	if !evt.BoardFail() {
		t.Fatalf("invalid board-fail flag")
	}
	if got := evt.ChannelData(0, 0, make([]uint16, 4)); got != 0 {
		t.Fatalf("invalid channel data: got=%d, want=0", got)
	}
}

func TestDecodeMalformed(t *testing.T) {
	valid := encode(t, newRecord(0x3, 8, false))

	patch := func(i int, v uint32) []byte {
		raw := append([]byte(nil), valid...)
		binary.LittleEndian.PutUint32(raw[4*i:], v)
		return raw
	}
	word := func(i int) uint32 {
		return binary.LittleEndian.Uint32(valid[4*i:])
	}

	for _, tc := range []struct {
		name string
		raw  []byte
	}{
		{
			name: "empty",
			raw:  nil,
		},
		{
			name: "short",
			raw:  valid[:12],
		},
		{
			name: "unaligned",
			raw:  valid[:len(valid)-1],
		},
		{
			name: "no-marker",
			raw:  patch(0, word(0)&0x0fffffff),
		},
		{
			name: "size-mismatch",
			raw:  patch(0, word(0)+1),
		},
		{
			name: "truncated",
			raw: func() []byte {
				raw := append([]byte(nil), valid[:len(valid)-4]...)
				binary.LittleEndian.PutUint32(raw, 0xa<<28|uint32(len(raw)/4))
				return raw
			}(),
		},
		{
			name: "extra-words",
			raw: func() []byte {
				raw := append(append([]byte(nil), valid...), 0, 0, 0, 0)
				binary.LittleEndian.PutUint32(raw, 0xa<<28|uint32(len(raw)/4))
				return raw
			}(),
		},
		{
			name: "no-groups",
			raw:  patch(1, word(1)&^0xf),
		},
		{
			name: "invalid-group-size",
			raw:  patch(4, word(4)+1),
		},
		{
			name: "zero-group-size",
			raw:  patch(4, word(4)&^0xfff),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var evt Event
			err := Decode(tc.raw, &evt)
			if !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("invalid error: got=%+v, want=%v", err, ErrMalformedRecord)
			}
			if evt.Valid() {
				t.Fatalf("malformed event should be invalid")
			}
		})
	}
}

func TestPack12(t *testing.T) {
	vs := []uint16{0x123, 0x456, 0x789, 0xabc, 0xdef, 0x012, 0x345, 0xfff}
	var blk [3]uint32
	pack12(&blk, vs)

	raw := make([]byte, 12)
	for i, w := range blk {
		binary.LittleEndian.PutUint32(raw[4*i:], w)
	}

	for ch, want := range vs {
		if got := unpack12(raw, 0, ch); got != want {
			t.Fatalf("ch %d: invalid sample: got=0x%x, want=0x%x", ch, got, want)
		}
	}
}
