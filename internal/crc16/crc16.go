// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package crc16 implements the CRC-16/CCITT-FALSE checksum used to guard
// distributed-data-buffer frames against corruption.
package crc16 // import "github.com/ess-dmsc/mrf-core/internal/crc16"

import (
	"encoding/binary"
	"hash"
)

// Hash16 is the 16-bit analogue of hash.Hash32/hash.Hash64 from the
// standard library, which does not define one.
type Hash16 interface {
	hash.Hash
	Sum16() uint16
}

// Table is a precomputed CRC-16 lookup table. The zero Table is invalid;
// use CCITTFalse or build one with MakeTable.
type Table struct {
	entries [256]uint16
	poly    uint16
	init    uint16
}

// CCITTFalse is the CRC-16/CCITT-FALSE table: polynomial 0x1021,
// initial value 0xFFFF, no input/output reflection.
var CCITTFalse = MakeTable(0x1021, 0xFFFF)

// MakeTable builds a non-reflected CRC-16 table for the given polynomial
// and initial register value.
func MakeTable(poly, init uint16) *Table {
	t := &Table{poly: poly, init: init}
	for i := 0; i < 256; i++ {
		reg := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if reg&0x8000 != 0 {
				reg = (reg << 1) ^ poly
			} else {
				reg <<= 1
			}
		}
		t.entries[i] = reg
	}
	return t
}

type digest struct {
	tab *Table
	crc uint16
}

// New returns a new Hash16 computing the CRC-16 checksum using tab. A
// nil tab defaults to CCITTFalse, the variant used throughout this
// module.
func New(tab *Table) Hash16 {
	if tab == nil {
		tab = CCITTFalse
	}
	d := &digest{tab: tab}
	d.Reset()
	return d
}

func (d *digest) Reset() { d.crc = d.tab.init }

func (d *digest) Size() int { return 2 }

func (d *digest) BlockSize() int { return 1 }

func (d *digest) Write(p []byte) (int, error) {
	crc := d.crc
	for _, b := range p {
		crc = (crc << 8) ^ d.tab.entries[byte(crc>>8)^b]
	}
	d.crc = crc
	return len(p), nil
}

func (d *digest) Sum16() uint16 { return d.crc }

func (d *digest) Sum(b []byte) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, d.crc)
	return append(b, buf...)
}

var _ Hash16 = (*digest)(nil)
