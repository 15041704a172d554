// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regio

// Signature decodes an FPGAVersion-style identification register: an 8-bit
// vendor/board type nibble pair packed above a 16-bit firmware version, the
// layout every card family in this system's register map shares at attach
// time.
type Signature struct {
	Vendor  uint8
	Kind    uint8
	Version uint16
}

// Identify reads and decodes the identification register at off. Callers
// compare the result against a minimum version or a Kind constant themselves and
// wrap a mismatch in *errs.BadDevice; this package has no notion of which
// vendor/kind values are acceptable for a given caller.
func Identify(win *Window, off int64) (Signature, error) {
	raw, err := win.ReadU32(off)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		Vendor:  uint8(raw >> 28 & 0xF),
		Kind:    uint8(raw >> 24 & 0xF),
		Version: uint16(raw & 0xFFFF),
	}, nil
}
