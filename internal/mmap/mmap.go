// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides read-only memory-mapped access to files.
package mmap // import "github.com/go-lpc/vx1742/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a read-only memory-mapped file.
type Handle struct {
	data  []byte
	unmap func([]byte) error
}

// Open memory-maps the named file for reading.
func Open(fname string) (*Handle, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: could not stat %q: %w", fname, err)
	}

	size := fi.Size()
	switch {
	case size == 0:
		return handleFrom([]byte{}, nil), nil
	case size < 0 || size != int64(int(size)):
		return nil, fmt.Errorf("mmap: file %q has invalid size %d", fname, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not mmap %q: %w", fname, err)
	}

	return handleFrom(data, unix.Munmap), nil
}

// HandleFrom wraps a byte slice into a handle.
func HandleFrom(data []byte) *Handle {
	return handleFrom(data, nil)
}

func handleFrom(data []byte, unmap func([]byte) error) *Handle {
	h := &Handle{data: data, unmap: unmap}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close closes the mmap handle.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	if h.unmap == nil {
		return nil
	}
	return h.unmap(data)
}

// Len returns the length of the underlying memory-mapped file.
func (h *Handle) Len() int {
	return len(h.data)
}

// At returns the byte at index i.
func (h *Handle) At(i int) byte {
	return h.data[i]
}

// Slice returns the memory-mapped bytes in [beg, end).
// The returned slice is invalidated by Close.
func (h *Handle) Slice(beg, end int) ([]byte, error) {
	if h == nil {
		return nil, os.ErrInvalid
	}
	if h.data == nil {
		return nil, errClosed
	}
	if beg < 0 || end < beg || len(h.data) < end {
		return nil, fmt.Errorf("mmap: invalid slice [%d:%d] (len=%d)", beg, end, len(h.data))
	}
	return h.data[beg:end:end], nil
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
