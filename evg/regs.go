// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import "github.com/ess-dmsc/mrf-core/regio"

// Register byte offsets, following the same card register map as evr:
// Control, Status, IRQFlag, IRQEnable are shared shapes; the software
// event and sequence RAM blocks are EVG-specific.
const (
	offControl   int64 = 0x000
	offStatus    int64 = 0x004
	offIRQFlag   int64 = 0x008
	offIRQEnable int64 = 0x00C

	offFracDiv   int64 = 0x010
	offUSecDiv   int64 = 0x014

	// FPGAVersion: vendor nibble, board-kind nibble, 16-bit firmware
	// version, decoded by regio.Identify at attach.
	offFPGAVersion int64 = 0x018

	offSwEventControl int64 = 0x048
	offSwEventCode    int64 = 0x04C

	offMuxCounterBase int64 = 0x100 // 8 mux counters x 8 bytes (prescaler, trig-enable)
	offDbusBase       int64 = 0x180 // per-bit dbus source-select, 8 bits x 2 bytes

	offFrontPanelBase int64 = 0x1C0 // per-input source-select and control

	// Distributed data buffer: DBCR control word followed by a 2 KB
	// staging window, shared shape with evr's receive side (see dbuf).
	offDataBufBase int64 = 0x800

	// Sequence RAM: numSeqRAMs slots, each seqRAMRowBytes*seqRAMMaxRows
	// bytes of (event_code:u8 in low byte, timestamp:u32 in next word)
	// rows, plus an 8-byte per-RAM control block (run mode, trigger
	// source, trigger enable) at its head.
	offSeqRAMBase int64 = 0x4000
)

const (
	numSeqRAMs      = 2
	seqRAMMaxRows   = 2048
	seqRAMRowBytes  = 8 // 1 code byte (padded to 4) + 4 timestamp bytes
	seqRAMCtrlBytes = 8
	seqRAMStride    = seqRAMCtrlBytes + seqRAMMaxRows*seqRAMRowBytes

	numMuxCounters = 8
	numDbusBits    = 8
	numFrontPanel  = 8

	terminatorCode = 0x7F
)

// Control register bits.
const (
	ctrlEnable uint32 = 1 << 31
)

// IRQFlag / IRQEnable bits.
const (
	irqRXErr     uint32 = 1 << 0
	irqHeartbeat uint32 = 1 << 2
	irqStop      uint32 = 1 << 7 // per-sequence-RAM "stop" cause, OR'd across RAMs
	irqEnableAll uint32 = 1 << 31
)

// SwEventControl bits.
const (
	swEvtEnable uint32 = 1 << 31
	swEvtPend   uint32 = 1 << 0
)

// seqRAM control-block field offsets, relative to a RAM's base.
const (
	seqCtrlRunMode int64 = 0x0
	seqCtrlTrigSrc int64 = 0x1
	seqCtrlEnable  int64 = 0x2
)

func seqRAMBase(slot int) int64 { return offSeqRAMBase + int64(slot)*seqRAMStride }
func seqRAMRowOffset(slot, row int) int64 {
	return seqRAMBase(slot) + seqRAMCtrlBytes + int64(row)*seqRAMRowBytes
}

// regs bundles the typed field accessors bound to one card's window.
type regs struct {
	win *regio.Window

	control   regio.Field32
	status    regio.Field32
	irqFlag   regio.Field32
	irqEnable regio.Field32

	fracDiv regio.Field32
	usecDiv regio.Field16

	swEventControl regio.Field32
	swEventCode    regio.Field32
}

func newRegs(win *regio.Window) *regs {
	return &regs{
		win:            win,
		control:        regio.NewField32(win, offControl),
		status:         regio.NewField32(win, offStatus),
		irqFlag:        regio.NewField32(win, offIRQFlag),
		irqEnable:      regio.NewField32(win, offIRQEnable),
		fracDiv:        regio.NewField32(win, offFracDiv),
		usecDiv:        regio.NewField16(win, offUSecDiv),
		swEventControl: regio.NewField32(win, offSwEventControl),
		swEventCode:    regio.NewField32(win, offSwEventCode),
	}
}
