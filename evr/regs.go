// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import "github.com/ess-dmsc/mrf-core/regio"

// Register byte offsets, host-side view after the window's byte reversal.
// Names follow the card register map: Control, Status, IRQFlag, IRQEnable,
// the fractional synth pair, the timestamp block, the FIFO read port, the
// mapping RAM and the data-buffer block.
const (
	offControl   int64 = 0x000
	offStatus    int64 = 0x004
	offIRQFlag   int64 = 0x008
	offIRQEnable int64 = 0x00C

	offFracDiv   int64 = 0x010
	offUSecDiv   int64 = 0x014
	offCounterPS int64 = 0x018
	offClkCtrl   int64 = 0x01C

	offTSSec       int64 = 0x020
	offTSEvt       int64 = 0x024
	offTSSecLatch  int64 = 0x028
	offTSEvtLatch  int64 = 0x02C

	offEvtFIFOCode int64 = 0x030
	offEvtFIFOSec  int64 = 0x034
	offEvtFIFOEvt  int64 = 0x038

	// FPGAVersion: vendor nibble, board-kind nibble, 16-bit firmware
	// version, decoded by regio.Identify at attach.
	offFPGAVersion int64 = 0x03C

	// MappingRam[code][word], 256 rows of 4 32-bit words: Internal, Trigger,
	// Set, Reset. Base chosen well past the fixed register block.
	offMappingRamBase int64 = 0x2000
)

const (
	mappingRows  = 256
	mappingWords = 4

	wordInternal = 0
	wordTrigger  = 1
	wordSet      = 2
	wordReset    = 3
)

// Control register bits.
const (
	ctrlEnable  uint32 = 1 << 31
	ctrlMapEna  uint32 = 1 << 30
	ctrlTSLtch  uint32 = 1 << 5
	ctrlTSDBus  uint32 = 1 << 4
	ctrlFIFORst uint32 = 1 << 3
)

// IRQFlag / IRQEnable bits, shared layout (W1C on IRQFlag).
const (
	irqRXErr     uint32 = 1 << 0
	irqFIFOFull  uint32 = 1 << 1
	irqHeartbeat uint32 = 1 << 2
	irqEvent     uint32 = 1 << 3
	irqHWMapped  uint32 = 1 << 4
	irqBufFull   uint32 = 1 << 5
	irqLinkChg   uint32 = 1 << 6
	irqEnableAll uint32 = 1 << 31
)

// Action is a logical mapping-RAM action number in 0..127: bits 0..31 map
// onto the Internal word, 32..63 onto Trigger, 64..95 onto Set, 96..127
// onto Reset. Action 126 is reserved and map_action always rejects it.
type Action uint8

// Named actions the FIFO drain and re-arm logic reference directly; all
// three live in the Internal word.
const (
	ActionFIFOSave            Action = 0
	ActionLatchTS             Action = 1
	ActionResetSecondsCounter Action = 2
)

// reservedAction is the one logical action bit (of the 4 words x 32 bits =
// 128-bit row) that map_action must always reject.
const reservedAction Action = 126

// actionWordBit splits a 0..127 logical action number into the mapping RAM
// word it lives in and its bit within that word.
func actionWordBit(a Action) (word int, mask uint32) {
	return int(a) / 32, 1 << uint(int(a)%32)
}

// mappingOffset returns the byte offset of MappingRam[code][word].
func mappingOffset(code uint8, word int) int64 {
	return offMappingRamBase + int64(code)*int64(mappingWords)*4 + int64(word)*4
}

// regs bundles the typed field accessors bound to one card's window.
type regs struct {
	win *regio.Window

	control   regio.Field32
	status    regio.Field32
	irqFlag   regio.Field32
	irqEnable regio.Field32

	fracDiv   regio.Field32
	usecDiv   regio.Field16
	counterPS regio.Field16
	clkCtrl   regio.Field32

	tsSec      regio.Field32
	tsEvt      regio.Field32
	tsSecLatch regio.Field32
	tsEvtLatch regio.Field32

	evtFIFOCode regio.Field32
	evtFIFOSec  regio.Field32
	evtFIFOEvt  regio.Field32
}

func newRegs(win *regio.Window) *regs {
	return &regs{
		win:       win,
		control:   regio.NewField32(win, offControl),
		status:    regio.NewField32(win, offStatus),
		irqFlag:   regio.NewField32(win, offIRQFlag),
		irqEnable: regio.NewField32(win, offIRQEnable),

		fracDiv:   regio.NewField32(win, offFracDiv),
		usecDiv:   regio.NewField16(win, offUSecDiv),
		counterPS: regio.NewField16(win, offCounterPS),
		clkCtrl:   regio.NewField32(win, offClkCtrl),

		tsSec:      regio.NewField32(win, offTSSec),
		tsEvt:      regio.NewField32(win, offTSEvt),
		tsSecLatch: regio.NewField32(win, offTSSecLatch),
		tsEvtLatch: regio.NewField32(win, offTSEvtLatch),

		evtFIFOCode: regio.NewField32(win, offEvtFIFOCode),
		evtFIFOSec:  regio.NewField32(win, offEvtFIFOSec),
		evtFIFOEvt:  regio.NewField32(win, offEvtFIFOEvt),
	}
}
