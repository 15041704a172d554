// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import "github.com/ess-dmsc/mrf-core/regio"

// windowSlice presents a base-offset window of a card's register window as
// its own regio.RW, so the distributed data buffer (which owns its own
// offset-0 control register and offset-0x800 data window) can be handed a
// *regio.Window of its own rather than reaching into the card's layout.
type windowSlice struct {
	win  *regio.Window
	base int64
}

func (s *windowSlice) ReadAt(p []byte, off int64) (int, error) {
	if err := s.win.ReadRaw(s.base+off, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *windowSlice) WriteAt(p []byte, off int64) (int, error) {
	if err := s.win.WriteRaw(s.base+off, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
