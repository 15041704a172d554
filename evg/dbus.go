// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evg

import (
	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// DBus is one bit of the card's distributed bus: an 8-bit backplane signal
// that can be sourced from an event mapping and fanned out to every card
// on the same backplane. Grounded on evgDbus's (id, register) shape from
// the original driver, generalized from a raw pointer to a bound Field16.
type DBus struct {
	id  uint32
	sel regio.Field16
}

func newDBus(win *regio.Window, id uint32) *DBus {
	return &DBus{id: id, sel: regio.NewField16(win, offDbusBase+int64(id)*2)}
}

// SetSource maps event code to drive this dbus bit whenever it is
// delivered; the original driver's setDbusMap took only the map value, we
// additionally validate the range.
func (d *DBus) SetSource(eventCode uint8) error {
	if d.id >= numDbusBits {
		return &errs.RangeError{Field: "dbus.id", Value: d.id, Msg: "dbus bit must be 0..7"}
	}
	return d.sel.Set(uint16(eventCode))
}
