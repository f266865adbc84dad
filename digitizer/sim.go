// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"bytes"
	"fmt"
	"math"
	"sync"
	"time"
)

// Sim is a simulated digitizer board.
//
// While acquiring, Sim produces one record per trigger period. The first
// Empty records after each acquisition start only carry the event header,
// as the hardware does.
type Sim struct {
	Serial   string
	Firmware string
	BoardID  uint32
	Empty    int           // number of header-only records after start
	Period   time.Duration // trigger period (0: a record is always ready)

	mu   sync.Mutex
	now  func() time.Time
	cfg  Config
	acq  bool
	done bool
	nevt int       // number of records emitted since start
	cnt  uint32    // hardware event counter
	last time.Time // time of the last trigger
	rec  *Record   // pending record
	buf  bytes.Buffer
}

// NewSim returns a new simulated board.
func NewSim() *Sim {
	return &Sim{
		Serial:   "SIM-0001",
		Firmware: "sim-4.22",
		Empty:    2,
		now:      time.Now,
	}
}

var _ Device = (*Sim)(nil)

func (s *Sim) check() error {
	if s.done {
		return ErrClosed
	}
	return nil
}

func (s *Sim) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.cfg = Config{}
	s.acq = false
	s.rec = nil
	s.cnt = 0
	return nil
}

func (s *Sim) Configure(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("digitizer: could not configure simulated board: %w", err)
	}
	s.cfg = cfg
	return nil
}

func (s *Sim) ArmBusySignal() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check()
}

func (s *Sim) EnableRawTriggerCounting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check()
}

func (s *Sim) IsAcquiring() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acq, s.check()
}

func (s *Sim) StartAcquisition() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.acq = true
	s.nevt = 0
	s.rec = nil
	s.last = s.clock()
	return nil
}

func (s *Sim) StopAcquisition() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.acq = false
	return nil
}

func (s *Sim) ClearBuffers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.rec = nil
	return nil
}

func (s *Sim) SerialNumber() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Serial, s.check()
}

func (s *Sim) FirmwareVersion() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Firmware, s.check()
}

func (s *Sim) RecordsStored() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	if s.pending() == nil {
		return 0, nil
	}
	return 1, nil
}

func (s *Sim) NextRecordSize() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	rec := s.pending()
	if rec == nil {
		return 0, nil
	}
	return rec.Size(), nil
}

func (s *Sim) RecordReady() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return false, err
	}
	return s.pending() != nil, nil
}

func (s *Sim) FetchNextRecord(dst []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return dst[:0], err
	}
	rec := s.pending()
	if rec == nil {
		return dst[:0], fmt.Errorf("digitizer: no record ready")
	}

	s.buf.Reset()
	err := NewEncoder(&s.buf).Encode(rec)
	if err != nil {
		return dst[:0], fmt.Errorf("digitizer: could not encode simulated record: %w", err)
	}
	s.rec = nil

	dst = grow(dst, s.buf.Len())
	copy(dst, s.buf.Bytes())
	return dst, nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.acq = false
	s.rec = nil
	return nil
}

// pending returns the next record to be read out, triggering a new one
// when the trigger period elapsed.
func (s *Sim) pending() *Record {
	if s.rec != nil || !s.acq {
		return s.rec
	}
	now := s.clock()
	if s.Period > 0 && now.Sub(s.last) < s.Period {
		return nil
	}
	s.last = now
	s.rec = s.trigger(now)
	return s.rec
}

func (s *Sim) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Sim) trigger(now time.Time) *Record {
	rec := &Record{
		BoardID: s.BoardID,
		Counter: s.cnt & 0x3fffff,
		TimeTag: uint32(now.UnixNano() / 8), // 125 MHz clock
		Mask:    s.cfg.GroupMask(),
	}
	s.cnt++
	s.nevt++

	if s.nevt <= s.Empty {
		rec.HeaderOnly = true
		return rec
	}

	ns := s.cfg.Samples()
	for i := range rec.Groups {
		if (rec.Mask>>i)&1 == 0 {
			continue
		}
		g := &rec.Groups[i]
		g.Freq = uint32(s.cfg.SamplingFrequency)
		g.StartCell = uint32(s.nevt*7) % MaxSamples
		g.TimeTag = rec.TimeTag & 0x3fffffff
		for ch := range g.Samples {
			g.Samples[ch] = pulse(ns, i*NumChannels+ch, s.cfg.PostTriggerSamples)
		}
	}
	return rec
}

// pulse returns a negative pulse of ns samples on top of a baseline,
// peaking at a channel-dependent position.
func pulse(ns, ch, post int) []uint16 {
	const (
		base  = 3500
		amp   = 1200
		width = 6.0
	)
	peak := float64(ns-ns*post/MaxSamples) * 0.5
	peak += float64(ch % NumChannels)
	vs := make([]uint16, ns)
	for i := range vs {
		x := (float64(i) - peak) / width
		vs[i] = uint16(base - amp*math.Exp(-0.5*x*x))
	}
	return vs
}
