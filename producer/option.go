// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"context"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-lpc/vx1742/conddb"
)

// msgstream is the leveled logger of a producer.
type msgstream interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// RunRecorder registers the runs started by a producer.
type RunRecorder interface {
	RecordRun(ctx context.Context, run conddb.Run) error
}

type config struct {
	msg     msgstream
	metrics *Metrics
	verbose bool

	poll   time.Duration // polling interval
	settle time.Duration // reset settle time
	queue  int           // size of the frames queue

	alert struct {
		a Alerter
		n int // number of consecutive readout errors before an alert
	}
	runs RunRecorder

	now func() time.Time
}

func newConfig() config {
	return config{
		poll:   50 * time.Microsecond,
		settle: time.Second,
		queue:  1024,
		now:    time.Now,
	}
}

// Option configures a producer.
type Option func(*config)

// WithMsgStream sets the message stream used for logging.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithMetrics sets the metrics updated by the producer.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}

// WithVerbose enables per-poll and per-event diagnostics.
func WithVerbose(v bool) Option {
	return func(cfg *config) {
		cfg.verbose = v
	}
}

// WithPollInterval sets the delay between two readout iterations.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.poll = d
	}
}

// WithSettle sets the time waited for the board to settle after a reset.
func WithSettle(d time.Duration) Option {
	return func(cfg *config) {
		cfg.settle = d
	}
}

// WithQueue sets the capacity of the frames queue.
func WithQueue(n int) Option {
	return func(cfg *config) {
		if n < 0 {
			n = 0
		}
		cfg.queue = n
	}
}

// WithAlerter raises an alert after n consecutive readout errors.
func WithAlerter(a Alerter, n int) Option {
	return func(cfg *config) {
		if n <= 0 {
			n = 1
		}
		cfg.alert.a = a
		cfg.alert.n = n
	}
}

// WithRunRecorder registers each started run with rr.
func WithRunRecorder(rr RunRecorder) Option {
	return func(cfg *config) {
		cfg.runs = rr
	}
}

func withClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}

func defaultMsgStream() msgstream {
	return log.NewMsgStream("vx1742", log.LvlInfo, os.Stdout)
}

func defaultMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
