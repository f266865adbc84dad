// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xcnv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"

	"go-hep.org/x/hep/lcio"

	"github.com/go-lpc/vx1742/frame"
)

// LCIO2Frames converts the LCIO events read from r into event frames.
// A begin-of-run frame is emitted before the first event of each run
// described by a VX1742 run header.
func LCIO2Frames(enc *frame.Encoder, r *lcio.Reader, freq int, msg *log.Logger) error {
	if freq <= 0 {
		freq = 100
	}

	var (
		i    = 0
		bore = false
		run  int32
	)
	for r.Next() {
		if i%freq == 0 {
			msg.Printf("processing evt %d...", i)
		}

		rhdr := r.RunHeader()
		if rhdr.Detector == detector && (!bore || rhdr.RunNumber != run) {
			f := boreFrom(&rhdr)
			err := enc.Encode(&f)
			if err != nil {
				return fmt.Errorf("could not encode BORE frame of run %d: %w", rhdr.RunNumber, err)
			}
			bore = true
			run = rhdr.RunNumber
		}

		evt := r.Event()
		raw, ok := evt.Get(collName).(*lcio.GenericObject)
		if !ok || raw == nil || len(raw.Data) == 0 {
			return fmt.Errorf("could not find %q collection in event %d", collName, evt.EventNumber)
		}

		f, err := frameFrom(&evt, raw.Data)
		if err != nil {
			return fmt.Errorf("could not convert event %d: %w", evt.EventNumber, err)
		}

		err = enc.Encode(&f)
		if err != nil {
			return fmt.Errorf("could not encode frame %d: %w", evt.EventNumber, err)
		}
		i++
	}

	err := r.Err()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("could not read LCIO events: %w", err)
	}

	return nil
}

func boreFrom(rhdr *lcio.RunHeader) frame.Frame {
	f := frame.Frame{
		Type: rhdr.Descr,
		Run:  uint32(rhdr.RunNumber),
		BORE: true,
	}
	if len(rhdr.Params.Strings) > 0 {
		f.Tags = make(map[string]string, len(rhdr.Params.Strings))
		for k, v := range rhdr.Params.Strings {
			if len(v) > 0 {
				f.Tags[k] = v[0]
			}
		}
	}
	return f
}

func frameFrom(evt *lcio.Event, data []lcio.GenericObjectData) (frame.Frame, error) {
	meta := data[0].I32s
	if len(meta) != frame.NumMeta+1 {
		return frame.Frame{}, fmt.Errorf("invalid metadata size %d", len(meta))
	}

	f := frame.Frame{
		Type:    frame.EventType,
		Run:     uint32(evt.RunNumber),
		Event:   uint32(evt.EventNumber),
		Trigger: uint32(meta[frame.NumMeta]),
		Blocks:  make([][]byte, 0, frame.NumMeta+len(data)-1),
	}
	for _, v := range meta[:frame.NumMeta] {
		blk := make([]byte, 4)
		binary.LittleEndian.PutUint32(blk, uint32(v))
		f.Blocks = append(f.Blocks, blk)
	}
	for _, d := range data[1:] {
		blk := make([]byte, 2*len(d.I32s))
		for i, v := range d.I32s {
			binary.LittleEndian.PutUint16(blk[2*i:], uint16(v))
		}
		f.Blocks = append(f.Blocks, blk)
	}
	return f, nil
}
