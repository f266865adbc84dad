// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReplay(t *testing.T) {
	var (
		rec1 = newRecord(0x1, 8, false)
		rec2 = newRecord(0x1, 16, true)
		hdr  = newRecord(0x1, 8, false)
	)
	hdr.HeaderOnly = true
	rec2.Counter = 43

	var raw []byte
	for _, rec := range []Record{hdr, rec1, rec2} {
		raw = append(raw, encode(t, rec)...)
	}

	fname := filepath.Join(t.TempDir(), "records.raw")
	err := os.WriteFile(fname, raw, 0644)
	if err != nil {
		t.Fatalf("could not create replay file: %+v", err)
	}

	dev, err := OpenReplay(fname)
	if err != nil {
		t.Fatalf("could not open replay file: %+v", err)
	}
	defer dev.Close()

	ready, err := dev.RecordReady()
	if err != nil || ready {
		t.Fatalf("record should not be ready before start: %v (err=%v)", ready, err)
	}

	n, err := dev.RecordsStored()
	if err != nil {
		t.Fatalf("could not count records: %+v", err)
	}
	if got, want := n, 3; got != want {
		t.Fatalf("invalid number of records: got=%d, want=%d", got, want)
	}

	err = dev.StartAcquisition()
	if err != nil {
		t.Fatalf("could not start acquisition: %+v", err)
	}

	var (
		buf   []byte
		evt   Event
		sizes []int
	)
	for {
		ready, err := dev.RecordReady()
		if err != nil {
			t.Fatalf("could not check record: %+v", err)
		}
		if !ready {
			break
		}
		buf, err = dev.FetchNextRecord(buf)
		if err != nil {
			t.Fatalf("could not fetch record: %+v", err)
		}
		err = Decode(buf, &evt)
		if err != nil {
			t.Fatalf("could not decode record: %+v", err)
		}
		sizes = append(sizes, evt.Size())
	}

	want := []int{hdr.Size(), rec1.Size(), rec2.Size()}
	if len(sizes) != len(want) {
		t.Fatalf("invalid number of replayed records: got=%d, want=%d", len(sizes), len(want))
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("record %d: invalid size: got=%d, want=%d", i, sizes[i], want[i])
		}
	}
	if got, want := evt.Counter(), uint32(43); got != want {
		t.Fatalf("invalid last counter: got=%d, want=%d", got, want)
	}

	err = dev.Reset()
	if err != nil {
		t.Fatalf("could not reset replay: %+v", err)
	}
	n, _ = dev.NextRecordSize()
	if got, want := n, hdr.Size(); got != want {
		t.Fatalf("invalid next record size after reset: got=%d, want=%d", got, want)
	}

	err = dev.Close()
	if err != nil {
		t.Fatalf("could not close replay: %+v", err)
	}
	_, err = dev.RecordReady()
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("invalid error after close: %+v", err)
	}
}
