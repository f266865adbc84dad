// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command lcio2vx converts a LCIO file into a VX1742 frame stream file.
package main // import "github.com/go-lpc/vx1742/cmd/lcio2vx"

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"go-hep.org/x/hep/lcio"

	"github.com/go-lpc/vx1742/frame"
	"github.com/go-lpc/vx1742/internal/xcnv"
)

func main() {
	log.SetPrefix("lcio2vx: ")
	log.SetFlags(0)

	var (
		oname = flag.String("o", "out.frames", "path to output frame stream file")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: lcio2vx [OPTIONS] file.lcio

ex:
 $> lcio2vx -o out.frames ./input.lcio

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing input LCIO file")
	}

	if *oname == "" {
		flag.Usage()
		log.Fatalf("invalid output frame stream file name")
	}

	n, err := numEvents(flag.Arg(0))
	if err != nil {
		log.Fatalf("could not assess number of events: %+v", err)
	}
	log.Printf("input:  %s", flag.Arg(0))
	log.Printf("events: %d", n)

	err = process(*oname, flag.Arg(0), int(n/10))
	if err != nil {
		log.Fatalf("could not convert LCIO file: %+v", err)
	}
}

func numEvents(fname string) (int64, error) {
	r, err := lcio.Open(fname)
	if err != nil {
		return 0, fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer r.Close()

	var n int64
	for r.Next() {
		n++
	}

	err = r.Err()
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("could not assess number of events in %q: %w", fname, err)
	}

	return n, nil
}

func process(oname, fname string, freq int) error {
	r, err := lcio.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open LCIO file: %w", err)
	}
	defer r.Close()

	f, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output frame stream file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	err = xcnv.LCIO2Frames(frame.NewEncoder(w), r, freq, log.Default())
	if err != nil {
		return fmt.Errorf("could not convert LCIO to frames: %w", err)
	}

	err = w.Flush()
	if err != nil {
		return fmt.Errorf("could not flush output frame stream file: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close output frame stream file: %w", err)
	}
	return nil
}
