// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package producer implements the VX1742 data acquisition producer:
// the run-control state machine driving a digitizer board and the polling
// loop converting the records read out from the board into frames.
package producer // import "github.com/go-lpc/vx1742/producer"

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-lpc/vx1742/conddb"
	"github.com/go-lpc/vx1742/digitizer"
	"github.com/go-lpc/vx1742/frame"
)

// Producer drives a digitizer board through the run-control transitions
// and emits frames for the records read out during a run.
//
// Transitions (Configure, StartRun, StopRun, Terminate) are serialized
// by a transition lock, held for their whole duration.
// Run polls the board while a run is ongoing.
// Stopping a run or terminating the producer never waits on a consumer
// of Frames: frames that could not be delivered are dropped and counted.
type Producer struct {
	cfg config
	msg msgstream

	tmu sync.Mutex // serializes transitions

	mu    sync.Mutex
	cond  *sync.Cond
	state State
	busy  bool // a readout iteration is in flight
	conf  bool // configured at least once

	dev    digitizer.Device
	dcfg   digitizer.Config
	bld    *frame.Builder
	status Status

	run uint32 // current run number
	seq uint32 // event sequence number
	ts  uint64 // last run timestamp, in 100ns ticks since the Unix epoch

	nerrs int // number of consecutive readout errors

	halt chan struct{} // closed when the current run is stopped
	bore *frame.Frame  // begin-of-run frame not yet delivered

	frames chan frame.Frame
	quit   chan struct{}
	once   sync.Once

	buf []byte
	evt digitizer.Event
}

// New creates a new producer and opens its digitizer board with open.
//
// A failure to open the board is reported through the producer status:
// the returned producer is then unable to leave the Idle state.
func New(open func() (digitizer.Device, error), opts ...Option) *Producer {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.msg == nil {
		cfg.msg = defaultMsgStream()
	}
	if cfg.metrics == nil {
		cfg.metrics = defaultMetrics()
	}

	p := &Producer{
		cfg:    cfg,
		msg:    cfg.msg,
		state:  Idle,
		frames: make(chan frame.Frame, cfg.queue),
		quit:   make(chan struct{}),
		buf:    make([]byte, 0, 4*1024),
	}
	p.cond = sync.NewCond(&p.mu)
	p.setState(Idle)

	dev, err := open()
	if err != nil || dev == nil {
		if err == nil {
			err = fmt.Errorf("no device")
		}
		p.setStatus(LvlError, "could not open digitizer: %+v", err)
		return p
	}
	p.dev = dev
	p.setStatus(LvlOK, "Initialized")

	return p
}

// Frames returns the channel of frames emitted by the producer.
// The channel is closed by Terminate.
func (p *Producer) Frames() <-chan frame.Frame {
	return p.frames
}

// State returns the current state of the producer.
func (p *Producer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Status returns the last status reported by the producer.
func (p *Producer) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// RunNumber returns the current (or last) run number.
func (p *Producer) RunNumber() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run
}

// Release gives back the payload buffers of a frame read from Frames,
// once the frame has been forwarded.
func (p *Producer) Release(f frame.Frame) {
	p.mu.Lock()
	bld := p.bld
	p.mu.Unlock()
	if bld == nil {
		return
	}
	bld.Release(f)
}

func (p *Producer) setState(s State) {
	p.state = s
	p.cfg.metrics.state.Set(float64(s))
	p.cond.Broadcast()
}

// Configure applies the configuration to the digitizer board.
//
// An ongoing run is stopped first. The board is reset before the
// configuration is pushed. On failure, the producer state is unchanged.
func (p *Producer) Configure(cfg digitizer.Config) error {
	p.tmu.Lock()
	defer p.tmu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.state == Terminated:
		return fmt.Errorf("%w: configure from %v", ErrState, p.state)
	case p.dev == nil:
		p.setStatus(LvlError, "Error in the VX1742 configuration procedure: no device")
		return fmt.Errorf("%w: no device", ErrInitialization)
	}

	err := cfg.Validate()
	if err != nil {
		p.setStatus(LvlError, "Error in the VX1742 configuration procedure: %v", err)
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	p.msg.Infof("configure VX1742 board with %q...", cfg.Name)

	if p.state == Running {
		p.stop()
	}

	err = p.configure(cfg)
	if err != nil {
		p.setStatus(LvlError, "Error in the VX1742 configuration procedure: %v", err)
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	p.dcfg = cfg
	p.bld = frame.NewBuilder(cfg)
	p.conf = true
	p.setState(Configured)
	p.setStatus(LvlOK, "Configured VX1742 (%s)", cfg.Name)

	return nil
}

func (p *Producer) configure(cfg digitizer.Config) error {
	acq, err := p.dev.IsAcquiring()
	if err != nil {
		return fmt.Errorf("could not query acquisition status: %w", err)
	}
	if acq {
		err = p.dev.StopAcquisition()
		if err != nil {
			return fmt.Errorf("could not stop acquisition: %w", err)
		}
	}

	err = p.dev.Reset()
	if err != nil {
		return fmt.Errorf("could not reset board: %w", err)
	}

	p.sleep(p.cfg.settle)

	err = p.dev.Configure(cfg)
	if err != nil {
		return fmt.Errorf("could not configure board: %w", err)
	}

	err = p.dev.ArmBusySignal()
	if err != nil {
		return fmt.Errorf("could not send busy to TRG-OUT: %w", err)
	}

	err = p.dev.EnableRawTriggerCounting()
	if err != nil {
		return fmt.Errorf("could not enable raw trigger counting: %w", err)
	}

	return nil
}

// sleep waits for d or until the producer is terminated.
func (p *Producer) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	tck := time.NewTimer(d)
	defer tck.Stop()
	select {
	case <-tck.C:
	case <-p.quit:
	}
}

// StartRun starts the data acquisition for run.
//
// A begin-of-run frame is emitted before any event frame of the run.
// When the frames queue is full, the begin-of-run frame is handed over to
// Run and emitted ahead of the first readout iteration.
func (p *Producer) StartRun(run uint32) error {
	p.tmu.Lock()
	defer p.tmu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.dev == nil:
		p.setStatus(LvlError, "Error in the VX1742 OnStartRun procedure: no device")
		return fmt.Errorf("%w: no device", ErrInitialization)
	case p.state != Configured || !p.conf:
		p.setStatus(LvlError, "Error in the VX1742 OnStartRun procedure: producer is %v", p.state)
		return fmt.Errorf("%w: start-run from %v", ErrState, p.state)
	}

	var (
		now = p.cfg.now()
		ts  = p.timestamp(now)
	)
	p.msg.Infof("create %s BORE for run %d @time: %d", frame.EventType, run, ts)

	bore, err := p.startRun(run, ts)
	if err != nil {
		p.setStatus(LvlError, "Error in the VX1742 OnStartRun procedure: %v", err)
		return fmt.Errorf("%w: %w", ErrStartRun, err)
	}

	p.run = run
	p.seq = 0
	p.nerrs = 0
	p.halt = make(chan struct{})
	p.cfg.metrics.run.Set(float64(run))

	select {
	case p.frames <- bore:
		p.cfg.metrics.bores.Inc()
	default:
		p.msg.Warnf("frames queue full: deferring BORE of run %d", run)
		p.bore = &bore
	}

	if p.cfg.runs != nil {
		err = p.cfg.runs.RecordRun(context.Background(), conddb.Run{
			Number:    run,
			Timestamp: ts,
			Serial:    bore.Tag(frame.TagSerial),
			Firmware:  bore.Tag(frame.TagFirmware),
			Config:    p.dcfg.Name,
			Start:     now,
		})
		if err != nil {
			p.msg.Warnf("could not record run %d: %+v", run, err)
		}
	}

	p.setState(Running)
	p.setStatus(LvlOK, "Running")
	return nil
}

func (p *Producer) startRun(run uint32, ts uint64) (frame.Frame, error) {
	serial, err := p.dev.SerialNumber()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("could not read serial number: %w", err)
	}

	fwver, err := p.dev.FirmwareVersion()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("could not read firmware version: %w", err)
	}

	err = p.dev.ClearBuffers()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("could not clear buffers: %w", err)
	}

	err = p.dev.StartAcquisition()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("could not start acquisition: %w", err)
	}

	return frame.BeginOfRun(run, ts, serial, fwver), nil
}

// timestamp returns the run timestamp in 100ns ticks since the Unix epoch,
// never smaller than the one of the previous run.
func (p *Producer) timestamp(now time.Time) uint64 {
	var ts uint64
	if ns := now.UnixNano(); ns > 0 {
		ts = uint64(ns) / 100
	}
	if ts < p.ts {
		ts = p.ts
	}
	p.ts = ts
	return ts
}

// StopRun stops the data acquisition.
// StopRun waits for the in-flight readout iteration to complete. A frame
// of that iteration still waiting for room in the frames queue is dropped.
func (p *Producer) StopRun() error {
	p.tmu.Lock()
	defer p.tmu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Running {
		p.msg.Warnf("stop-run from %v state", p.state)
		return nil
	}

	p.stop()
	p.setStatus(LvlOK, "Stopped (run %d, events %d)", p.run, p.seq)
	return nil
}

// stop leaves the Running state.
// stop must be called with p.tmu and p.mu held.
func (p *Producer) stop() {
	p.setState(Stopping)
	close(p.halt)
	for p.busy {
		p.cond.Wait()
	}
	if p.bore != nil {
		p.lost(*p.bore)
		p.bore = nil
	}

	err := p.dev.StopAcquisition()
	if err != nil {
		p.msg.Errorf("could not stop acquisition: %+v", err)
	}
	p.msg.Infof("VX1742 run %d stopped.", p.run)
	p.setState(Configured)
}

// Terminate stops the producer and closes the digitizer board.
// Terminate is idempotent.
func (p *Producer) Terminate() error {
	p.once.Do(func() { close(p.quit) })

	p.tmu.Lock()
	defer p.tmu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Terminated {
		return nil
	}

	running := p.state == Running
	p.setState(Terminated)
	for p.busy {
		p.cond.Wait()
	}
	if p.bore != nil {
		p.lost(*p.bore)
		p.bore = nil
	}

	var err error
	if p.dev != nil {
		if running {
			if err := p.dev.StopAcquisition(); err != nil {
				p.msg.Errorf("could not stop acquisition: %+v", err)
			}
		}
		err = p.dev.Close()
		p.dev = nil
	}
	close(p.frames)

	if err != nil {
		p.setStatus(LvlError, "could not close digitizer: %+v", err)
		return fmt.Errorf("%w: could not close device: %w", ErrDevice, err)
	}
	p.setStatus(LvlOK, "Terminated")
	return nil
}

// emit sends the frame downstream, unless the run is stopped or the
// producer is terminated before the frame could be queued.
func (p *Producer) emit(f frame.Frame, halt <-chan struct{}) bool {
	select {
	case p.frames <- f:
		return true
	case <-halt:
	case <-p.quit:
	}
	p.lost(f)
	return false
}

// lost accounts for a frame that could not be delivered.
func (p *Producer) lost(f frame.Frame) {
	p.cfg.metrics.lost.Inc()
	if p.bld != nil {
		p.bld.Release(f)
	}
}
