// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package irqdisp

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ess-dmsc/mrf-core/regio"
)

// UIOInterruptSource is the Linux UIO transport for a card's interrupt
// line (supplemented feature 1, grounded on mrmShared/linux/uio_mrf.c): a
// blocking 4-byte read of the UIO device node's interrupt-count file
// returns once an IRQ has been delivered, and writing that same count back
// re-arms the interrupt at the kernel level. It embeds a WindowSource for
// the register-level IRQFlag/IRQEnable access the dispatcher also needs,
// so a *UIOInterruptSource satisfies IRQSource directly.
type UIOInterruptSource struct {
	*WindowSource
	file *os.File
}

// OpenUIO opens the UIO device node at path (typically /dev/uioN) and
// pairs it with win's IRQFlag/IRQEnable registers at the given offsets.
func OpenUIO(path string, win *regio.Window, flagOffset, enableOffset int64) (*UIOInterruptSource, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("irqdisp: could not open %s: %w", path, err)
	}
	return &UIOInterruptSource{
		WindowSource: &WindowSource{Win: win, FlagOffset: flagOffset, EnableOffset: enableOffset},
		file:         f,
	}, nil
}

// WaitIRQ blocks until the kernel delivers an interrupt, returning the
// cumulative interrupt count UIO reports.
func (s *UIOInterruptSource) WaitIRQ() (uint32, error) {
	var buf [4]byte
	n, err := s.file.Read(buf[:])
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, io.ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// AckIRQ re-arms the interrupt at the kernel level by writing count back.
func (s *UIOInterruptSource) AckIRQ(count uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], count)
	_, err := s.file.Write(buf[:])
	return err
}

// Close releases the UIO device node.
func (s *UIOInterruptSource) Close() error { return s.file.Close() }

// RunLoop drives d off of s until ctx is cancelled: wait for a kernel IRQ,
// run the top-half, re-arm at the kernel level, repeat. It is the
// UIO-backed analogue of evr/evg's own goroutine loops, kept in irqdisp
// since the wait/ack pairing is specific to this IRQSource, not to any
// one card type.
func (s *UIOInterruptSource) RunLoop(ctx context.Context, d *Dispatcher) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		count, err := s.WaitIRQ()
		if err != nil {
			return fmt.Errorf("irqdisp: uio wait: %w", err)
		}
		if err := d.Dispatch(); err != nil {
			d.log.Printf("dispatch error: %+v", err)
		}
		if err := s.AckIRQ(count); err != nil {
			return fmt.Errorf("irqdisp: uio ack: %w", err)
		}
	}
}
