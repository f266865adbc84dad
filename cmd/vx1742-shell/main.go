// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vx1742-shell drives a VX1742 producer from an interactive shell,
// without run-control, and stores the emitted frames into a file.
//
// Usage: vx1742-shell [OPTIONS]
//
// Example:
//
//	$> vx1742-shell -cfg ./vx1742.yaml -o run.frames
//	vx1742> configure beam
//	vx1742> start 42
//	vx1742> status
//	state=running run=42 level=OK status=Running
//	vx1742> stop
//	vx1742> quit
package main // import "github.com/go-lpc/vx1742/cmd/vx1742-shell"

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/peterh/liner"
	"golang.org/x/sync/errgroup"

	"github.com/go-lpc/vx1742/digitizer"
	"github.com/go-lpc/vx1742/frame"
	"github.com/go-lpc/vx1742/producer"
)

func main() {
	log.SetPrefix("vx1742-shell: ")
	log.SetFlags(0)

	var (
		cfgFile = flag.String("cfg", "", "path to a YAML file of digitizer configurations")
		devName = flag.String("dev", "sim", "digitizer device (sim|replay:<file>)")
		oname   = flag.String("o", "out.frames", "path to output frame stream file")
		verbose = flag.Bool("v", false, "enable verbose per-poll and per-event diagnostics")
	)

	flag.Parse()

	if *cfgFile == "" {
		flag.Usage()
		log.Fatalf("missing digitizer configuration file")
	}

	err := xmain(*cfgFile, *devName, *oname, *verbose)
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

func xmain(cfgFile, devName, oname string, verbose bool) error {
	cfgs, err := loadConfigs(cfgFile)
	if err != nil {
		return err
	}

	o, err := os.Create(oname)
	if err != nil {
		return fmt.Errorf("could not create output file: %w", err)
	}
	defer o.Close()

	lvl := tlog.LvlInfo
	if verbose {
		lvl = tlog.LvlDebug
	}

	p := producer.New(
		func() (digitizer.Device, error) { return openDevice(devName) },
		producer.WithMsgStream(tlog.NewMsgStream("vx1742", lvl, os.Stdout)),
		producer.WithVerbose(verbose),
	)

	var (
		grp  errgroup.Group
		wbuf = bufio.NewWriter(o)
	)
	grp.Go(func() error {
		return p.Run(context.Background())
	})
	grp.Go(func() error {
		n, err := write(wbuf, p)
		log.Printf("frames written: %d", n)
		return err
	})

	sh := newShell(p, cfgs, os.Stdout)
	sh.loop()

	err = p.Terminate()
	if err != nil {
		log.Printf("could not terminate producer: %+v", err)
	}

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not run producer: %w", err)
	}

	err = wbuf.Flush()
	if err != nil {
		return fmt.Errorf("could not flush output file: %w", err)
	}

	err = o.Close()
	if err != nil {
		return fmt.Errorf("could not close output file: %w", err)
	}
	return nil
}

func loadConfigs(fname string) (digitizer.ConfigSet, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("could not open configuration file: %w", err)
	}
	defer f.Close()

	set, err := digitizer.LoadConfigs(f)
	if err != nil {
		return nil, fmt.Errorf("could not load configuration file %q: %w", fname, err)
	}
	return set, nil
}

func openDevice(name string) (digitizer.Device, error) {
	switch {
	case name == "sim":
		return digitizer.NewSim(), nil
	case strings.HasPrefix(name, "replay:"):
		return digitizer.OpenReplay(strings.TrimPrefix(name, "replay:"))
	default:
		return nil, fmt.Errorf("unknown digitizer device %q", name)
	}
}

// write encodes all the frames emitted by p into w, until the producer
// is terminated.
// write keeps draining frames after an encoding error, so the producer
// never blocks.
func write(w io.Writer, p *producer.Producer) (int, error) {
	var (
		enc = frame.NewEncoder(w)
		n   = 0
		err error
	)
	for f := range p.Frames() {
		if err == nil {
			err = enc.Encode(&f)
			if err == nil {
				n++
			}
		}
		p.Release(f)
	}
	if err != nil {
		return n, fmt.Errorf("could not write frame: %w", err)
	}
	return n, nil
}

var cmds = []string{"configs", "configure", "help", "quit", "start", "status", "stop"}

type shell struct {
	p    *producer.Producer
	cfgs digitizer.ConfigSet
	w    io.Writer
}

func newShell(p *producer.Producer, cfgs digitizer.ConfigSet, w io.Writer) *shell {
	return &shell{p: p, cfgs: cfgs, w: w}
}

func (sh *shell) loop() {
	ln := liner.NewLiner()
	defer ln.Close()

	ln.SetCtrlCAborts(true)
	ln.SetCompleter(func(line string) []string {
		var o []string
		for _, c := range cmds {
			if strings.HasPrefix(c, line) {
				o = append(o, c)
			}
		}
		return o
	})

	for {
		line, err := ln.Prompt("vx1742> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				log.Printf("could not read command: %+v", err)
			}
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			fmt.Fprintf(sh.w, "error: %+v\n", err)
		}
		if quit {
			return
		}
	}
}

// exec executes a single shell command line.
func (sh *shell) exec(line string) (quit bool, err error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false, nil
	}

	switch cmd, args := toks[0], toks[1:]; cmd {
	case "help":
		fmt.Fprintf(sh.w, `commands:
  configs            list digitizer configurations
  configure NAME     configure the digitizer
  start [RUN]        start a new run
  stop               stop the current run
  status             display the producer status
  quit               terminate the producer and exit
`)

	case "configs":
		for _, name := range sh.cfgs.Names() {
			fmt.Fprintf(sh.w, "%s\n", name)
		}

	case "configure", "config":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: configure NAME")
		}
		cfg, err := sh.cfgs.DigitizerConfig(context.Background(), args[0])
		if err != nil {
			return false, err
		}
		return false, sh.p.Configure(cfg)

	case "start":
		run := sh.p.RunNumber() + 1
		switch len(args) {
		case 0:
		case 1:
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return false, fmt.Errorf("invalid run number %q: %w", args[0], err)
			}
			run = uint32(v)
		default:
			return false, fmt.Errorf("usage: start [RUN]")
		}
		return false, sh.p.StartRun(run)

	case "stop":
		return false, sh.p.StopRun()

	case "status":
		st := sh.p.Status()
		fmt.Fprintf(sh.w, "state=%v run=%d level=%v status=%s\n",
			sh.p.State(), sh.p.RunNumber(), st.Level, st.Msg,
		)

	case "quit", "exit":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}

	return false, nil
}
