// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command vx1742-producer starts a TDAQ producer reading out a VX1742 digitizer.
//
// Usage: vx1742-producer [OPTIONS]
//
// Example:
//
//	$> vx1742-producer -id vx1742 -rc-addr :44000 -cfg ./vx1742.yaml -cfg-name default
//	$> vx1742-producer -id vx1742 -db vx1742 -dev replay:./run-042.raw -metrics-addr :9091
package main // import "github.com/go-lpc/vx1742/cmd/vx1742-producer"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/config"
	"github.com/go-daq/tdaq/flags"
	tlog "github.com/go-daq/tdaq/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"

	"github.com/go-lpc/vx1742"
	"github.com/go-lpc/vx1742/conddb"
	"github.com/go-lpc/vx1742/digitizer"
	"github.com/go-lpc/vx1742/producer"
)

func main() {
	log.SetPrefix("vx1742-producer: ")
	log.SetFlags(0)

	var (
		verbose = flag.Bool("v", false, "enable verbose per-poll and per-event diagnostics")
		cfgFile = flag.String("cfg", "", "path to a YAML file of digitizer configurations")
		cfgName = flag.String("cfg-name", "", "default digitizer configuration name")
		dbName  = flag.String("db", "", "name of the conditions database")
		devName = flag.String("dev", "sim", "digitizer device (sim|replay:<file>)")
		maddr   = flag.String("metrics-addr", "", "[ip]:port to serve /metrics and /status on")
		alerts  = flag.Int("alerts", 0, "send a mail alert after N consecutive readout errors (0: disabled)")
		doMon   = flag.Bool("pmon", false, "enable pmon monitoring")
		monFreq = flag.Duration("pmon-freq", 1*time.Second, "pmon frequency")
	)

	cmd := flags.New()

	if v, _ := vx1742.Version(); v != "" {
		log.Printf("version: %s", v)
	}

	if *doMon {
		err := monitor(cmd.Name, *monFreq)
		if err != nil {
			log.Fatalf("could not start pmon: %+v", err)
		}
	}

	err := run(cmd, opts{
		verbose: *verbose,
		cfgFile: *cfgFile,
		cfgName: *cfgName,
		dbName:  *dbName,
		devName: *devName,
		maddr:   *maddr,
		alerts:  *alerts,
	})
	if err != nil {
		log.Fatalf("error: %+v", err)
	}
}

type opts struct {
	verbose bool
	cfgFile string
	cfgName string
	dbName  string
	devName string
	maddr   string
	alerts  int
}

func run(cmd config.Process, o opts) error {
	var (
		db  *conddb.DB
		err error
	)

	if o.dbName != "" {
		db, err = conddb.Open(o.dbName)
		if err != nil {
			return fmt.Errorf("could not open conditions database: %w", err)
		}
		defer db.Close()
	}

	cfgs, def, err := configSource(context.Background(), o.cfgFile, o.cfgName, db)
	if err != nil {
		return err
	}

	var (
		reg  = prometheus.NewRegistry()
		popt = []producer.Option{
			producer.WithMsgStream(tlog.NewMsgStream(cmd.Name, cmd.Level, os.Stdout)),
			producer.WithMetrics(producer.NewMetrics(reg)),
			producer.WithVerbose(o.verbose),
		}
	)
	if db != nil {
		popt = append(popt, producer.WithRunRecorder(db))
	}
	if o.alerts > 0 {
		ma, err := producer.MailAlerterFromEnv()
		if err != nil {
			return fmt.Errorf("could not setup mail alerts: %w", err)
		}
		popt = append(popt, producer.WithAlerter(ma, o.alerts))
	}

	p := producer.New(func() (digitizer.Device, error) {
		return openDevice(o.devName)
	}, popt...)
	defer p.Terminate()

	srv := tdaq.New(cmd, os.Stdout)
	rc := producer.NewServer(p, cfgs, def)
	srv.CmdHandle("/config", rc.OnConfig)
	srv.CmdHandle("/init", rc.OnInit)
	srv.CmdHandle("/reset", rc.OnReset)
	srv.CmdHandle("/start", rc.OnStart)
	srv.CmdHandle("/stop", rc.OnStop)
	srv.CmdHandle("/quit", rc.OnQuit)

	srv.OutputHandle("/vx1742", rc.Output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		defer cancel()
		return srv.Run(ctx)
	})
	grp.Go(func() error {
		err := p.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if o.maddr != "" {
		grp.Go(func() error {
			return serveHTTP(ctx, o.maddr, reg, p)
		})
	}

	return grp.Wait()
}

// configSource returns the source of digitizer configurations and the
// default configuration name.
// Configurations are read from the YAML file fname when provided, from
// the conditions database otherwise.
func configSource(ctx context.Context, fname, name string, db *conddb.DB) (producer.ConfigSource, string, error) {
	switch {
	case fname != "":
		f, err := os.Open(fname)
		if err != nil {
			return nil, "", fmt.Errorf("could not open configuration file: %w", err)
		}
		defer f.Close()

		set, err := digitizer.LoadConfigs(f)
		if err != nil {
			return nil, "", fmt.Errorf("could not load configuration file %q: %w", fname, err)
		}
		if name == "" {
			names := set.Names()
			if len(names) == 0 {
				return nil, "", fmt.Errorf("no digitizer configuration in %q", fname)
			}
			name = names[0]
		}
		return set, name, nil

	case db != nil:
		if name == "" {
			var err error
			name, err = db.LastConfigName(ctx)
			if err != nil {
				return nil, "", fmt.Errorf("could not find default configuration: %w", err)
			}
		}
		return db, name, nil
	}

	return nil, "", fmt.Errorf("no digitizer configuration source (use -cfg or -db)")
}

// openDevice opens the digitizer device described by name.
func openDevice(name string) (digitizer.Device, error) {
	switch {
	case name == "sim":
		return digitizer.NewSim(), nil
	case strings.HasPrefix(name, "replay:"):
		fname := strings.TrimPrefix(name, "replay:")
		return digitizer.OpenReplay(fname)
	default:
		return nil, fmt.Errorf("unknown digitizer device %q", name)
	}
}

func monitor(name string, freq time.Duration) error {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return fmt.Errorf("could not start monitoring: %w", err)
	}
	f, err := os.Create(name + "-pmon.log")
	if err != nil {
		return fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		defer f.Close()
		log.Printf("run pmon...")
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()
	return nil
}
