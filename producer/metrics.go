// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the producer instrumentation.
type Metrics struct {
	frames  prometheus.Counter
	bores   prometheus.Counter
	dropped prometheus.Counter
	lost    prometheus.Counter
	errors  prometheus.Counter
	alerts  prometheus.Counter
	run     prometheus.Gauge
	state   prometheus.Gauge
	readout prometheus.Histogram
}

// NewMetrics creates the producer metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		frames: f.NewCounter(prometheus.CounterOpts{
			Name: "vx1742_frames_emitted_total",
			Help: "Total number of event frames emitted",
		}),
		bores: f.NewCounter(prometheus.CounterOpts{
			Name: "vx1742_bore_emitted_total",
			Help: "Total number of begin-of-run frames emitted",
		}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "vx1742_records_dropped_total",
			Help: "Total number of malformed records dropped",
		}),
		lost: f.NewCounter(prometheus.CounterOpts{
			Name: "vx1742_frames_lost_total",
			Help: "Total number of frames not delivered before a run stop or termination",
		}),
		errors: f.NewCounter(prometheus.CounterOpts{
			Name: "vx1742_readout_errors_total",
			Help: "Total number of readout errors",
		}),
		alerts: f.NewCounter(prometheus.CounterOpts{
			Name: "vx1742_alerts_total",
			Help: "Total number of alerts raised",
		}),
		run: f.NewGauge(prometheus.GaugeOpts{
			Name: "vx1742_run_number",
			Help: "Current run number",
		}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Name: "vx1742_state",
			Help: "Current producer state (0:idle, 1:configured, 2:running, 3:stopping, 4:terminated)",
		}),
		readout: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vx1742_readout_duration_seconds",
			Help:    "Duration of record readout iterations",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
}
