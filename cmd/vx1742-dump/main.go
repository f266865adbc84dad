// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// vx1742-dump decodes and displays VX1742 frame stream files.
//
// Usage: vx1742-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> vx1742-dump -p ./run-042.frames
//	=== BORE run=42 type=VX1742 ===
//	  firmware_version: sim-4.22
//	  serial_number:    SIM-0001
//	  timestamp:        17606916000000000
//	=== event 0 run=42 trigger=1 ===
//	size:            1566
//	mask:               1
//	blocks:             8
//	samples:          520
//	ttag:        12504883
//	  blk[0]: [2048 2047 2049 ...]
//	[...]
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/go-lpc/vx1742/frame"
)

func main() {
	log.SetPrefix("vx1742-dump: ")
	log.SetFlags(0)

	payload := flag.Bool("p", false, "display payload blocks")

	flag.Usage = func() {
		fmt.Printf(`vx1742-dump decodes and displays VX1742 frame stream files.

Usage: vx1742-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> vx1742-dump -p ./run-042.frames

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input frame stream file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname, *payload)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

var metaNames = [frame.NumMeta]string{
	frame.BlkSize:    "size",
	frame.BlkMask:    "mask",
	frame.BlkChans:   "blocks",
	frame.BlkSamples: "samples",
	frame.BlkTimeTag: "ttag",
}

func process(w io.Writer, fname string, payload bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	var (
		dec = frame.NewDecoder(bufio.NewReader(f))
		fr  frame.Frame
		vs  []uint16
	)
loop:
	for {
		err := dec.Decode(&fr)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode frame: %w", err)
		}

		if fr.BORE {
			fmt.Fprintf(wbuf, "=== BORE run=%d type=%s ===\n", fr.Run, fr.Type)
			keys := make([]string, 0, len(fr.Tags))
			for k := range fr.Tags {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(wbuf, "  %-18s%s\n", k+":", fr.Tags[k])
			}
			continue
		}

		fmt.Fprintf(wbuf, "=== event %d run=%d trigger=%d ===\n", fr.Event, fr.Run, fr.Trigger)
		for i, name := range metaNames {
			v, err := fr.Meta(i)
			if err != nil {
				return fmt.Errorf("could not read metadata of event %d: %w", fr.Event, err)
			}
			fmt.Fprintf(wbuf, "%-9s%10d\n", name+":", v)
		}

		if !payload {
			continue
		}
		for i := 0; i < fr.NumPayloads(); i++ {
			vs, err = fr.Payload(vs[:0], i)
			if err != nil {
				return fmt.Errorf("could not read payload of event %d: %w", fr.Event, err)
			}
			fmt.Fprintf(wbuf, "  blk[%d]: %v\n", i, vs)
		}
	}

	return nil
}
