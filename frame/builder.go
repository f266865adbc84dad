// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package frame

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/go-lpc/vx1742/digitizer"
)

// Builder converts decoded event records into frames.
//
// Payload buffers are drawn from a pool sized to the configured number of
// samples per channel. Frames handed over to the transport may be given
// back with Release once encoded.
//
// Build is not safe for concurrent use. Release is.
type Builder struct {
	samples int  // configured samples per channel
	all     bool // frame all enabled groups

	pool sync.Pool
	scr  []uint16
}

// NewBuilder returns a frame builder for boards configured with cfg.
func NewBuilder(cfg digitizer.Config) *Builder {
	b := &Builder{
		samples: cfg.Samples(),
		all:     cfg.AllGroups,
	}
	b.pool.New = func() any {
		buf := make([]byte, 2*b.samples)
		return &buf
	}
	b.scr = make([]uint16, b.samples)
	return b
}

// Build builds the frame of the valid event evt, for the run run and the
// event sequence number seq.
//
// Records with a size of exactly 4 words carry no channel data: the frame
// then holds 8 zero-filled payload blocks. Records smaller than 4 words are
// rejected.
func (b *Builder) Build(evt *digitizer.Event, run, seq uint32) (Frame, error) {
	if evt == nil || !evt.Valid() {
		return Frame{}, fmt.Errorf("frame: invalid event: %w", digitizer.ErrMalformedRecord)
	}

	f := Frame{
		Type:    EventType,
		Run:     run,
		Event:   seq,
		Trigger: evt.Counter(),
	}

	switch size := evt.Size(); {
	case size > 4:
		b.buildData(&f, evt)
	case size == 4:
		b.buildEmpty(&f, evt)
	default:
		return Frame{}, fmt.Errorf(
			"frame: invalid event size %d: %w",
			size, digitizer.ErrMalformedRecord,
		)
	}

	return f, nil
}

func (b *Builder) groups(evt *digitizer.Event) []int {
	if !b.all {
		return []int{0}
	}
	grps := make([]int, 0, digitizer.NumGroups)
	for i := 0; i < digitizer.NumGroups; i++ {
		if evt.Channels(i) > 0 {
			grps = append(grps, i)
		}
	}
	return grps
}

func (b *Builder) buildData(f *Frame, evt *digitizer.Event) {
	var (
		grps = b.groups(evt)
		nblk = 0
		ns   = 0
	)
	for _, g := range grps {
		nblk += evt.Channels(g)
	}
	if len(grps) > 0 {
		ns = evt.SamplesPerChannel(grps[0])
	}

	f.Blocks = make([][]byte, NumMeta, NumMeta+nblk)
	b.meta(f, evt, uint32(nblk), uint32(ns))

	for _, g := range grps {
		n := evt.SamplesPerChannel(g)
		if cap(b.scr) < n {
			b.scr = make([]uint16, n)
		}
		scr := b.scr[:n]
		for ch := 0; ch < evt.Channels(g); ch++ {
			evt.ChannelData(g, ch, scr)
			blk := b.get(2 * n)
			for i, v := range scr {
				binary.LittleEndian.PutUint16(blk[2*i:], v)
			}
			f.Blocks = append(f.Blocks, blk)
		}
	}
}

func (b *Builder) buildEmpty(f *Frame, evt *digitizer.Event) {
	const nblk = digitizer.NumChannels

	ns := evt.SamplesPerChannel(0)
	if ns == 0 {
		ns = b.samples
	}

	f.Blocks = make([][]byte, NumMeta, NumMeta+nblk)
	b.meta(f, evt, nblk, uint32(ns))

	for i := 0; i < nblk; i++ {
		blk := b.get(2 * ns)
		for j := range blk {
			blk[j] = 0
		}
		f.Blocks = append(f.Blocks, blk)
	}
}

func (b *Builder) meta(f *Frame, evt *digitizer.Event, nblk, ns uint32) {
	buf := make([]byte, 4*NumMeta)
	for i, v := range [NumMeta]uint32{
		BlkSize:    uint32(evt.Size()),
		BlkMask:    evt.GroupMask(),
		BlkChans:   nblk,
		BlkSamples: ns,
		BlkTimeTag: evt.TriggerTimeTag(),
	} {
		blk := buf[4*i : 4*i+4 : 4*i+4]
		binary.LittleEndian.PutUint32(blk, v)
		f.Blocks[i] = blk
	}
}

func (b *Builder) get(n int) []byte {
	p := b.pool.Get().(*[]byte)
	if cap(*p) < n {
		*p = make([]byte, n)
	}
	return (*p)[:n]
}

// Release gives the payload buffers of f back to the builder.
// f must not be used afterwards.
func (b *Builder) Release(f Frame) {
	if f.BORE || len(f.Blocks) <= NumMeta {
		return
	}
	for _, blk := range f.Blocks[NumMeta:] {
		blk := blk
		b.pool.Put(&blk)
	}
}
