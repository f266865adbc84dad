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

// Frames2LCIO converts the frames read from dec into LCIO events.
// Begin-of-run frames are converted into LCIO run headers.
func Frames2LCIO(w *lcio.Writer, dec *frame.Decoder, freq int, msg *log.Logger) error {
	if freq <= 0 {
		freq = 100
	}

	var (
		raw lcio.GenericObject
		f   frame.Frame
		n   = 0
	)

loop:
	for i := 0; ; i++ {
		err := dec.Decode(&f)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode frame %d: %w", i, err)
		}

		if f.BORE {
			err = w.WriteRunHeader(runHeader(&f))
			if err != nil {
				return fmt.Errorf("could not write run header for run %d: %w", f.Run, err)
			}
			continue
		}

		if n%freq == 0 {
			msg.Printf("processing evt %d...", n)
		}
		n++

		ttag, err := f.Meta(frame.BlkTimeTag)
		if err != nil {
			return fmt.Errorf("could not read time tag of event %d: %w", f.Event, err)
		}

		evt := lcio.Event{
			RunNumber:   int32(f.Run),
			EventNumber: int32(f.Event),
			TimeStamp:   int64(ttag),
			Detector:    detector,
		}
		raw.Data = genericData(raw.Data[:0], &f)
		evt.Add(collName, &raw)

		err = w.WriteEvent(&evt)
		if err != nil {
			return fmt.Errorf("could not write event %d: %w", f.Event, err)
		}
	}

	return nil
}

func runHeader(f *frame.Frame) *lcio.RunHeader {
	strs := make(map[string][]string, len(f.Tags))
	for k, v := range f.Tags {
		strs[k] = []string{v}
	}
	return &lcio.RunHeader{
		RunNumber: int32(f.Run),
		Detector:  detector,
		Descr:     f.Type,
		Params: lcio.Params{
			Strings: strs,
		},
	}
}

// genericData converts the frame blocks into generic objects: the first
// one holds the metadata blocks followed by the hardware event counter,
// the next ones hold the samples of each payload block.
func genericData(dst []lcio.GenericObjectData, f *frame.Frame) []lcio.GenericObjectData {
	meta := make([]int32, 0, frame.NumMeta+1)
	for i := 0; i < frame.NumMeta && i < len(f.Blocks); i++ {
		meta = append(meta, int32(binary.LittleEndian.Uint32(f.Blocks[i])))
	}
	meta = append(meta, int32(f.Trigger))
	dst = append(dst, lcio.GenericObjectData{I32s: meta})

	for i := frame.NumMeta; i < len(f.Blocks); i++ {
		blk := f.Blocks[i]
		vs := make([]int32, len(blk)/2)
		for j := range vs {
			vs[j] = int32(binary.LittleEndian.Uint16(blk[2*j:]))
		}
		dst = append(dst, lcio.GenericObjectData{I32s: vs})
	}
	return dst
}
