// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regio

import (
	"fmt"
	"sync"
)

// Memory is an in-process RW backed by a plain byte slice. It is used by
// this module's own tests in place of a real mmap'd BAR; it is not a
// link or card simulator, only a stand-in register bank.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory allocates a zeroed Memory of the given size.
func NewMemory(size int) *Memory {
	return &Memory{data: make([]byte, size)}
}

// ReadAt implements io.ReaderAt.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || int(off)+len(p) > len(m.data) {
		return 0, fmt.Errorf("regio: memory read out of range at 0x%x", off)
	}
	return copy(p, m.data[off:]), nil
}

// WriteAt implements io.WriterAt.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off < 0 || int(off)+len(p) > len(m.data) {
		return 0, fmt.Errorf("regio: memory write out of range at 0x%x", off)
	}
	return copy(m.data[off:], p), nil
}

var _ RW = (*Memory)(nil)
