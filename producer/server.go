// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-daq/tdaq"

	"github.com/go-lpc/vx1742/digitizer"
	"github.com/go-lpc/vx1742/frame"
)

// ConfigSource provides named digitizer configurations.
type ConfigSource interface {
	DigitizerConfig(ctx context.Context, name string) (digitizer.Config, error)
}

// Server exposes a producer to the run-control through tdaq command
// and output handlers.
type Server struct {
	p    *Producer
	cfgs ConfigSource
	def  string // default configuration name

	buf bytes.Buffer
}

// NewServer returns a run-control server for p, fetching digitizer
// configurations from cfgs. def is the configuration used when /config
// does not name one.
func NewServer(p *Producer, cfgs ConfigSource, def string) *Server {
	return &Server{p: p, cfgs: cfgs, def: def}
}

// Producer returns the producer driven by the server.
func (srv *Server) Producer() *Producer { return srv.p }

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	name := srv.def
	if len(req.Body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		if v := dec.ReadStr(); v != "" {
			name = v
		}
	}

	cfg, err := srv.cfgs.DigitizerConfig(ctx.Ctx, name)
	if err != nil {
		ctx.Msg.Errorf("could not retrieve digitizer configuration %q: %+v", name, err)
		return fmt.Errorf("could not retrieve digitizer configuration %q: %w", name, err)
	}
	cfg.Name = name

	err = srv.p.Configure(cfg)
	if err != nil {
		ctx.Msg.Errorf("could not configure digitizer: %+v", err)
		return fmt.Errorf("could not configure digitizer: %w", err)
	}

	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	srv.p.mu.Lock()
	ok := srv.p.dev != nil
	st := srv.p.status
	srv.p.mu.Unlock()

	if !ok {
		ctx.Msg.Errorf("digitizer not initialized: %v", st)
		return fmt.Errorf("%w: %s", ErrInitialization, st.Msg)
	}
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return srv.p.StopRun()
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	run := srv.p.RunNumber() + 1
	if len(req.Body) >= 4 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		run = dec.ReadU32()
	}
	ctx.Msg.Debugf("received /start command... (run=%d)", run)

	err := srv.p.StartRun(run)
	if err != nil {
		ctx.Msg.Errorf("could not start run %d: %+v", run, err)
		return fmt.Errorf("could not start run %d: %w", run, err)
	}
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	return srv.p.StopRun()
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	err := srv.p.Terminate()
	if err != nil {
		ctx.Msg.Errorf("could not terminate producer: %+v", err)
		return fmt.Errorf("could not terminate producer: %w", err)
	}
	return nil
}

// Output sends the next frame emitted by the producer, encoded with
// frame.Encoder.
func (srv *Server) Output(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case f, ok := <-srv.p.Frames():
		if !ok {
			<-ctx.Ctx.Done()
			dst.Body = nil
			return nil
		}
		srv.buf.Reset()
		err := frame.NewEncoder(&srv.buf).Encode(&f)
		srv.p.Release(f)
		if err != nil {
			ctx.Msg.Errorf("could not encode frame: %+v", err)
			return fmt.Errorf("could not encode frame: %w", err)
		}
		dst.Body = append([]byte(nil), srv.buf.Bytes()...)
	}
	return nil
}
