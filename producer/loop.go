// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-lpc/vx1742/digitizer"
)

// Run polls the digitizer board for records while a run is ongoing,
// until the producer is terminated or ctx is canceled.
//
// Errors during a readout iteration are reported and do not stop the
// polling. Run must be called once.
func (p *Producer) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cond.Broadcast()
	})
	defer stop()

	for {
		p.mu.Lock()
		for p.state != Running && p.state != Terminated && ctx.Err() == nil {
			p.cond.Wait()
		}
		switch {
		case p.state == Terminated:
			p.mu.Unlock()
			return nil
		case ctx.Err() != nil:
			p.mu.Unlock()
			return ctx.Err()
		}
		p.mu.Unlock()

		p.sleep(p.cfg.poll)

		p.mu.Lock()
		if p.state != Running {
			p.mu.Unlock()
			continue
		}
		p.busy = true
		var (
			dev  = p.dev
			run  = p.run
			halt = p.halt
			bore = p.bore
		)
		p.bore = nil
		p.mu.Unlock()

		ok := true
		if bore != nil {
			ok = p.emit(*bore, halt)
			if ok {
				p.cfg.metrics.bores.Inc()
			}
		}

		var err error
		if ok {
			beg := time.Now()
			err = p.readout(dev, run, halt)
			p.cfg.metrics.readout.Observe(time.Since(beg).Seconds())
		}

		p.mu.Lock()
		p.busy = false
		p.cond.Broadcast()
		if err != nil {
			p.readoutError(err)
		} else {
			p.nerrs = 0
		}
		p.mu.Unlock()
	}
}

// readout runs one readout iteration: it fetches, decodes and frames the
// next record, if any.
// Emission of the frame is abandoned once halt is closed.
func (p *Producer) readout(dev digitizer.Device, run uint32, halt <-chan struct{}) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("%w: panic during readout: %v", ErrDevice, e)
		}
	}()

	if p.cfg.verbose {
		n, err := dev.RecordsStored()
		if err != nil {
			return fmt.Errorf("%w: could not get number of stored records: %w", ErrDevice, err)
		}
		sz, err := dev.NextRecordSize()
		if err != nil {
			return fmt.Errorf("%w: could not get next record size: %w", ErrDevice, err)
		}
		p.msg.Debugf("records stored: %d, size of next record: %d", n, sz)
	}

	ok, err := dev.RecordReady()
	if err != nil {
		return fmt.Errorf("%w: could not check for ready record: %w", ErrDevice, err)
	}
	if !ok {
		return nil
	}

	p.buf, err = dev.FetchNextRecord(p.buf[:0])
	if err != nil {
		return fmt.Errorf("%w: could not fetch record: %w", ErrDevice, err)
	}

	err = digitizer.Decode(p.buf, &p.evt)
	if err != nil {
		p.cfg.metrics.dropped.Inc()
		p.msg.Warnf("dropping record: %+v", err)
		return nil
	}

	evt := &p.evt
	if p.cfg.verbose {
		p.msg.Debugf(
			"event: counter=%d, size=%d, mask=0x%x, channels(0)=%d, time-tag=%d",
			evt.Counter(), evt.Size(), evt.GroupMask(), evt.Channels(0), evt.TriggerTimeTag(),
		)
	}

	f, err := p.bld.Build(evt, run, p.seq)
	if err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			p.cfg.metrics.dropped.Inc()
			p.msg.Warnf("dropping record: %+v", err)
			return nil
		}
		return fmt.Errorf("could not build frame: %w", err)
	}
	p.seq++

	if p.emit(f, halt) {
		p.cfg.metrics.frames.Inc()
	}
	return nil
}

// readoutError reports a readout error. readoutError must be called with
// p.mu held.
func (p *Producer) readoutError(err error) {
	p.cfg.metrics.errors.Inc()
	p.nerrs++
	p.setStatus(LvlError, "Readout error: %v", err)

	a := p.cfg.alert.a
	if a == nil || p.nerrs != p.cfg.alert.n {
		return
	}

	p.cfg.metrics.alerts.Inc()
	var (
		subject = fmt.Sprintf("readout errors in run %d", p.run)
		body    = fmt.Sprintf(
			"run:    %d\nerrors: %d consecutive readout errors\nlast:   %+v\n",
			p.run, p.nerrs, err,
		)
	)
	go func() {
		err := a.Alert(subject, body)
		if err != nil {
			p.msg.Errorf("could not send alert: %+v", err)
		}
	}()
}
