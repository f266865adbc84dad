// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
)

const (
	frMagic   = 0x46584556 // frame header marker ("VEXF")
	maxBlocks = 1 << 16    // maximum number of blocks per frame
	maxLen    = 1 << 24    // maximum length of a block or string
)

// Encoder writes frames to an output stream.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
}

// NewEncoder returns a new Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, buf: make([]byte, 4)}
}

// Encode writes the frame to the stream.
// Tags are written in sorted key order.
func (enc *Encoder) Encode(f *Frame) error {
	if f == nil {
		return nil
	}

	enc.writeU32(frMagic)
	if enc.err != nil {
		return fmt.Errorf("frame: could not write frame header marker: %w", enc.err)
	}

	enc.writeStr(f.Type)
	enc.writeU32(f.Run)
	enc.writeU32(f.Event)
	enc.writeU32(f.Trigger)
	enc.writeBool(f.BORE)

	keys := make([]string, 0, len(f.Tags))
	for k := range f.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	enc.writeU32(uint32(len(keys)))
	for _, k := range keys {
		enc.writeStr(k)
		enc.writeStr(f.Tags[k])
	}

	enc.writeU32(uint32(len(f.Blocks)))
	for _, blk := range f.Blocks {
		enc.writeU32(uint32(len(blk)))
		enc.write(blk)
	}

	if enc.err != nil {
		return fmt.Errorf("frame: could not encode frame (run=%d, evt=%d): %w", f.Run, f.Event, enc.err)
	}
	return nil
}

func (enc *Encoder) write(p []byte) {
	if enc.err != nil {
		return
	}
	_, enc.err = enc.w.Write(p)
}

func (enc *Encoder) writeBool(v bool) {
	if enc.err != nil {
		return
	}
	enc.buf[0] = 0
	if v {
		enc.buf[0] = 1
	}
	_, enc.err = enc.w.Write(enc.buf[:1])
}

func (enc *Encoder) writeU32(v uint32) {
	if enc.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(enc.buf[:4], v)
	_, enc.err = enc.w.Write(enc.buf[:4])
}

func (enc *Encoder) writeStr(s string) {
	enc.writeU32(uint32(len(s)))
	if enc.err != nil {
		return
	}
	_, enc.err = io.WriteString(enc.w, s)
}

// Decoder reads frames from an input stream.
type Decoder struct {
	r   io.Reader
	buf []byte
	err error
}

// NewDecoder returns a new Decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, buf: make([]byte, 4)}
}

// Decode reads the next frame from the stream.
// Decode returns io.EOF when the stream ends cleanly, between two frames.
func (dec *Decoder) Decode(f *Frame) error {
	v := dec.readU32()
	if dec.err != nil {
		if errors.Is(dec.err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("frame: could not read frame header marker: %w", dec.err)
	}
	if v != frMagic {
		return fmt.Errorf("frame: invalid frame header marker (got=0x%x)", v)
	}

	f.Type = dec.readStr()
	f.Run = dec.readU32()
	f.Event = dec.readU32()
	f.Trigger = dec.readU32()
	f.BORE = dec.readBool()

	ntags := dec.readLen(maxBlocks)
	f.Tags = nil
	if ntags > 0 {
		f.Tags = make(map[string]string, ntags)
	}
	for i := 0; i < ntags && dec.err == nil; i++ {
		k := dec.readStr()
		f.Tags[k] = dec.readStr()
	}

	nblks := dec.readLen(maxBlocks)
	f.Blocks = f.Blocks[:0]
	if f.Blocks == nil && nblks > 0 {
		f.Blocks = make([][]byte, 0, nblks)
	}
	for i := 0; i < nblks && dec.err == nil; i++ {
		n := dec.readLen(maxLen)
		blk := make([]byte, n)
		dec.read(blk)
		f.Blocks = append(f.Blocks, blk)
	}

	if dec.err != nil {
		return fmt.Errorf("frame: could not decode frame: %w", noEOF(dec.err))
	}
	return nil
}

// noEOF converts io.EOF into io.ErrUnexpectedEOF: a stream must not end
// in the middle of a frame.
func noEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func (dec *Decoder) read(p []byte) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, p)
}

func (dec *Decoder) readBool() bool {
	dec.read(dec.buf[:1])
	return dec.buf[0] == 1
}

func (dec *Decoder) readU32() uint32 {
	dec.read(dec.buf[:4])
	if dec.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(dec.buf[:4])
}

func (dec *Decoder) readLen(max int) int {
	n := dec.readU32()
	if dec.err != nil {
		return 0
	}
	if int64(n) > int64(max) {
		dec.err = fmt.Errorf("frame: invalid length %d (max=%d)", n, max)
		return 0
	}
	return int(n)
}

func (dec *Decoder) readStr() string {
	n := dec.readLen(maxLen)
	if dec.err != nil || n == 0 {
		return ""
	}
	p := make([]byte, n)
	dec.read(p)
	return string(p)
}
