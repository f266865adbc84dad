// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/go-daq/tdaq/log"

	"github.com/go-lpc/vx1742/digitizer"
)

// fakeDevice is a digitizer recording the sequence of calls it receives.
type fakeDevice struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	acq   bool
	recs  [][]byte
	cfg   digitizer.Config
	nclos int
	gates map[string]*gate

	serial string
	fwver  string
}

func newFakeDevice(recs ...[]byte) *fakeDevice {
	return &fakeDevice{
		fail:   make(map[string]error),
		gates:  make(map[string]*gate),
		recs:   recs,
		serial: "SN123",
		fwver:  "4.22",
	}
}

var _ digitizer.Device = (*fakeDevice)(nil)

// gate holds the next call to a device method until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
}

func (dev *fakeDevice) call(name string) error {
	dev.mu.Lock()
	dev.calls = append(dev.calls, name)
	err := dev.fail[name]
	g := dev.gates[name]
	delete(dev.gates, name)
	dev.mu.Unlock()

	if g != nil {
		close(g.entered)
		<-g.release
	}
	return err
}

// hold makes the next call to name block until the returned gate is
// released.
func (dev *fakeDevice) hold(name string) *gate {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	g := &gate{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	dev.gates[name] = g
	return g
}

// stored returns the number of records not yet fetched.
func (dev *fakeDevice) stored() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return len(dev.recs)
}

func (dev *fakeDevice) setFail(name string, err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.fail[name] = err
}

func (dev *fakeDevice) push(recs ...[]byte) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.recs = append(dev.recs, recs...)
}

// history returns the recorded calls, excluding polling calls.
func (dev *fakeDevice) history() []string {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	var out []string
	for _, name := range dev.calls {
		switch name {
		case "RecordReady", "FetchNextRecord", "RecordsStored", "NextRecordSize":
			continue
		}
		out = append(out, name)
	}
	return out
}

func (dev *fakeDevice) Reset() error {
	if err := dev.call("Reset"); err != nil {
		return err
	}
	dev.mu.Lock()
	dev.acq = false
	dev.mu.Unlock()
	return nil
}

func (dev *fakeDevice) Configure(cfg digitizer.Config) error {
	if err := dev.call("Configure"); err != nil {
		return err
	}
	dev.mu.Lock()
	dev.cfg = cfg
	dev.mu.Unlock()
	return nil
}

func (dev *fakeDevice) ArmBusySignal() error { return dev.call("ArmBusySignal") }

func (dev *fakeDevice) EnableRawTriggerCounting() error {
	return dev.call("EnableRawTriggerCounting")
}

func (dev *fakeDevice) IsAcquiring() (bool, error) {
	err := dev.call("IsAcquiring")
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.acq, err
}

func (dev *fakeDevice) StartAcquisition() error {
	if err := dev.call("StartAcquisition"); err != nil {
		return err
	}
	dev.mu.Lock()
	dev.acq = true
	dev.mu.Unlock()
	return nil
}

func (dev *fakeDevice) StopAcquisition() error {
	err := dev.call("StopAcquisition")
	dev.mu.Lock()
	dev.acq = false
	dev.mu.Unlock()
	return err
}

func (dev *fakeDevice) ClearBuffers() error { return dev.call("ClearBuffers") }

func (dev *fakeDevice) SerialNumber() (string, error) {
	return dev.serial, dev.call("SerialNumber")
}

func (dev *fakeDevice) FirmwareVersion() (string, error) {
	return dev.fwver, dev.call("FirmwareVersion")
}

func (dev *fakeDevice) RecordsStored() (int, error) {
	err := dev.call("RecordsStored")
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return len(dev.recs), err
}

func (dev *fakeDevice) NextRecordSize() (int, error) {
	err := dev.call("NextRecordSize")
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if len(dev.recs) == 0 {
		return 0, err
	}
	return len(dev.recs[0]) / 4, err
}

func (dev *fakeDevice) RecordReady() (bool, error) {
	err := dev.call("RecordReady")
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.acq && len(dev.recs) > 0, err
}

func (dev *fakeDevice) FetchNextRecord(dst []byte) ([]byte, error) {
	if err := dev.call("FetchNextRecord"); err != nil {
		return dst[:0], err
	}
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if len(dev.recs) == 0 {
		return dst[:0], io.EOF
	}
	rec := dev.recs[0]
	dev.recs = dev.recs[1:]
	return append(dst[:0], rec...), nil
}

func (dev *fakeDevice) Close() error {
	err := dev.call("Close")
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.nclos++
	return err
}

func (dev *fakeDevice) closed() int {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.nclos
}

// rawRecord returns a raw record with group 0 enabled, ns samples per
// channel and the provided hardware counter.
// A record with ns == 0 is a header-only record.
func rawRecord(t *testing.T, cnt uint32, ns int) []byte {
	t.Helper()

	rec := digitizer.Record{
		Counter:    cnt,
		TimeTag:    1000 + cnt,
		Mask:       0x1,
		HeaderOnly: ns == 0,
	}
	if ns > 0 {
		for ch := range rec.Groups[0].Samples {
			vs := make([]uint16, ns)
			for i := range vs {
				vs[i] = uint16(ch*100 + i)
			}
			rec.Groups[0].Samples[ch] = vs
		}
	}

	buf := new(bytes.Buffer)
	err := digitizer.NewEncoder(buf).Encode(&rec)
	if err != nil {
		t.Fatalf("could not encode raw record: %+v", err)
	}
	return buf.Bytes()
}

func newTestMsg(t *testing.T) log.MsgStream {
	return log.NewMsgStream(t.Name(), log.LvlDebug, io.Discard)
}

func errDevice(name string) error {
	return fmt.Errorf("fake device: %s failed", name)
}
