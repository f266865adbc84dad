// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vx2lcio converts a VX1742 frame stream file to an LCIO one.
package main // import "github.com/go-lpc/vx1742/cmd/vx2lcio"

import (
	"bufio"
	"compress/flate"
	"flag"
	"fmt"
	"log"
	"os"

	"go-hep.org/x/hep/lcio"

	"github.com/go-lpc/vx1742/frame"
	"github.com/go-lpc/vx1742/internal/xcnv"
)

var (
	msg = log.New(os.Stdout, "vx2lcio: ", 0)
)

func main() {
	var (
		oname = flag.String("o", "out.lcio", "path to output LCIO file")
		compr = flag.Int("lvl", flate.DefaultCompression, "compression level for output LCIO file")
		freq  = flag.Int("freq", 100, "event progress report frequency")
	)

	flag.Usage = func() {
		fmt.Printf(`Usage: vx2lcio [OPTIONS] file.frames

ex:
 $> vx2lcio -o out.lcio -lvl=9 ./run-042.frames

options:
`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		msg.Fatalf("missing input frame stream file")
	}

	if *oname == "" {
		flag.Usage()
		msg.Fatalf("invalid output LCIO file name")
	}

	err := process(*oname, *compr, *freq, flag.Arg(0))
	if err != nil {
		msg.Fatalf("could not convert frame stream file: %+v", err)
	}
}

func process(oname string, lvl, freq int, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open frame stream file: %w", err)
	}
	defer f.Close()

	w, err := lcio.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output LCIO file: %w", err)
	}
	defer w.Close()

	w.SetCompressionLevel(lvl)

	dec := frame.NewDecoder(bufio.NewReader(f))
	err = xcnv.Frames2LCIO(w, dec, freq, msg)
	if err != nil {
		return fmt.Errorf("could not convert frames to LCIO: %w", err)
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close output LCIO file: %w", err)
	}

	return nil
}
