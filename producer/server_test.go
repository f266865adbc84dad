// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/go-daq/tdaq"

	"github.com/go-lpc/vx1742/digitizer"
	"github.com/go-lpc/vx1742/frame"
)

func TestServer(t *testing.T) {
	var (
		dev  = newFakeDevice()
		p    = newTestProducer(t, dev)
		cfgs = digitizer.ConfigSet{
			"beam":    beamCfg,
			"cosmics": {Groups: [digitizer.NumGroups]bool{true}},
		}
		srv = NewServer(p, cfgs, "beam")
		ctx = tdaq.Context{
			Ctx: context.Background(),
			Msg: newTestMsg(t),
		}
		resp tdaq.Frame
	)

	err := srv.OnInit(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /init: %+v", err)
	}

	err = srv.OnConfig(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /config: %+v", err)
	}
	if got, want := p.Status().Msg, "Configured VX1742 (beam)"; got != want {
		t.Fatalf("invalid status: got=%q, want=%q", got, want)
	}

	req := new(bytes.Buffer)
	enc := tdaq.NewEncoder(req)
	enc.WriteStr("cosmics")
	err = srv.OnConfig(ctx, &resp, tdaq.Frame{Body: req.Bytes()})
	if err != nil {
		t.Fatalf("could not /config cosmics: %+v", err)
	}
	if got, want := p.Status().Msg, "Configured VX1742 (cosmics)"; got != want {
		t.Fatalf("invalid status: got=%q, want=%q", got, want)
	}

	req.Reset()
	enc.WriteStr("calib")
	err = srv.OnConfig(ctx, &resp, tdaq.Frame{Body: req.Bytes()})
	if err == nil {
		t.Fatalf("expected an error configuring with an unknown configuration")
	}

	req.Reset()
	enc.WriteU32(42)
	err = srv.OnStart(ctx, &resp, tdaq.Frame{Body: req.Bytes()})
	if err != nil {
		t.Fatalf("could not /start: %+v", err)
	}

	var out tdaq.Frame
	err = srv.Output(ctx, &out)
	if err != nil {
		t.Fatalf("could not output frame: %+v", err)
	}

	var bore frame.Frame
	err = frame.NewDecoder(bytes.NewReader(out.Body)).Decode(&bore)
	if err != nil {
		t.Fatalf("could not decode output frame: %+v", err)
	}
	if !bore.BORE || bore.Run != 42 || bore.Tag(frame.TagSerial) != "SN123" {
		t.Fatalf("invalid BORE frame: %+v", bore)
	}

	err = srv.OnStop(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /stop: %+v", err)
	}

	err = srv.OnStart(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /start: %+v", err)
	}
	if got, want := p.RunNumber(), uint32(43); got != want {
		t.Fatalf("invalid run number: got=%d, want=%d", got, want)
	}

	err = srv.OnReset(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /reset: %+v", err)
	}
	if got, want := p.State(), Configured; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	err = srv.OnQuit(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not /quit: %+v", err)
	}
	if got, want := p.State(), Terminated; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	// drain the remaining BORE of run 43, then the closed queue.
	ctx2, cancel := context.WithCancel(context.Background())
	cancel()
	out = tdaq.Frame{}
	err = srv.Output(tdaq.Context{Ctx: ctx2, Msg: ctx.Msg}, &out)
	if err != nil {
		t.Fatalf("could not output frame: %+v", err)
	}
}

func TestServerInitError(t *testing.T) {
	p := New(
		func() (digitizer.Device, error) { return nil, errDevice("open") },
		WithMsgStream(newTestMsg(t)),
	)
	srv := NewServer(p, digitizer.ConfigSet{}, "beam")
	ctx := tdaq.Context{Ctx: context.Background(), Msg: newTestMsg(t)}

	err := srv.OnInit(ctx, nil, tdaq.Frame{})
	if !errors.Is(err, ErrInitialization) {
		t.Fatalf("invalid error: %+v", err)
	}
}
