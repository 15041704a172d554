// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap memory-maps a card's register BAR (or a UIO device's
// register window) into the process address space and exposes it as an
// io.ReaderAt/io.WriterAt pair suitable for backing a regio.Window.
package mmap // import "github.com/ess-dmsc/mrf-core/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var errClosed = errors.New("mmap: closed")

// Handle is a memory-mapped register window backed by a file descriptor
// that the bus-discovery layer has already opened (a UIO device node or
// /dev/mem with the appropriate offset).
type Handle struct {
	data []byte
}

// Open mmaps length bytes of fd starting at offset. offset and length
// must already be page-granular; the caller (bus-discovery layer) owns
// that alignment decision, this package only wraps the syscall.
func Open(fd uintptr, offset int64, length int) (*Handle, error) {
	data, err := unix.Mmap(int(fd), offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map fd=%d off=0x%x len=%d: %w", fd, offset, length, err)
	}
	return HandleFrom(data), nil
}

// HandleFrom wraps an already-mapped byte slice, taking ownership of it.
func HandleFrom(data []byte) *Handle {
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Close unmaps the underlying region.
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

	return unix.Munmap(data)
}

// Len returns the length of the underlying mapped region.
func (h *Handle) Len() int {
	return len(h.data)
}

// At returns the byte at index i. Out-of-range i panics: the register
// window above this handle treats out-of-range field access as a fatal
// programming error, not a recoverable condition.
func (h *Handle) At(i int) byte {
	return h.data[i]
}

// ReadAt implements io.ReaderAt.
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

// WriteAt implements io.WriterAt.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}
	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
