// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/go-lpc/vx1742/internal/mmap"
)

// Replay is a digitizer board replaying the raw records of a file.
//
// The file holds concatenated raw records. Records are served in order
// while the acquisition is running: RecordReady reports false once the
// end of file is reached.
type Replay struct {
	Serial   string
	Firmware string

	mu  sync.Mutex
	h   *mmap.Handle
	cfg Config
	acq bool
	pos int // offset of the next record
}

// OpenReplay memory-maps the named file of raw records.
func OpenReplay(fname string) (*Replay, error) {
	h, err := mmap.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("digitizer: could not open replay file: %w", err)
	}
	return &Replay{
		Serial:   "REPLAY",
		Firmware: "replay",
		h:        h,
	}, nil
}

var _ Device = (*Replay)(nil)

func (r *Replay) check() error {
	if r.h == nil {
		return ErrClosed
	}
	return nil
}

func (r *Replay) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	r.acq = false
	r.pos = 0
	r.cfg = Config{}
	return nil
}

func (r *Replay) Configure(cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	r.cfg = cfg
	return nil
}

func (r *Replay) ArmBusySignal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.check()
}

func (r *Replay) EnableRawTriggerCounting() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.check()
}

func (r *Replay) IsAcquiring() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acq, r.check()
}

func (r *Replay) StartAcquisition() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	r.acq = true
	return nil
}

func (r *Replay) StopAcquisition() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return err
	}
	r.acq = false
	return nil
}

func (r *Replay) ClearBuffers() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.check()
}

func (r *Replay) SerialNumber() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Serial, r.check()
}

func (r *Replay) FirmwareVersion() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Firmware, r.check()
}

func (r *Replay) RecordsStored() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return 0, err
	}
	n := 0
	for pos := r.pos; pos < r.h.Len(); n++ {
		pos += r.sizeAt(pos)
	}
	return n, nil
}

func (r *Replay) NextRecordSize() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return 0, err
	}
	if r.pos >= r.h.Len() {
		return 0, nil
	}
	return r.sizeAt(r.pos) / 4, nil
}

func (r *Replay) RecordReady() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return false, err
	}
	return r.acq && r.pos < r.h.Len(), nil
}

func (r *Replay) FetchNextRecord(dst []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(); err != nil {
		return dst[:0], err
	}
	if r.pos >= r.h.Len() {
		return dst[:0], io.EOF
	}

	n := r.sizeAt(r.pos)
	raw, err := r.h.Slice(r.pos, r.pos+n)
	if err != nil {
		return dst[:0], fmt.Errorf("digitizer: could not read record at %d: %w", r.pos, err)
	}
	r.pos += n

	dst = grow(dst, n)
	copy(dst, raw)
	return dst, nil
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.h == nil {
		return nil
	}
	err := r.h.Close()
	r.h = nil
	r.acq = false
	if err != nil {
		return fmt.Errorf("digitizer: could not close replay file: %w", err)
	}
	return nil
}

// sizeAt returns the size in bytes of the record starting at pos.
// A corrupted header swallows the rest of the file.
func (r *Replay) sizeAt(pos int) int {
	rem := r.h.Len() - pos
	if rem < 4 {
		return rem
	}
	var buf [4]byte
	_, _ = r.h.ReadAt(buf[:], int64(pos))
	w0 := binary.LittleEndian.Uint32(buf[:])
	n := 4 * int(w0&0x0fffffff)
	if w0>>28 != hdrMarker || n == 0 || n > rem {
		return rem
	}
	return n
}
