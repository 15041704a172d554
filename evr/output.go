// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evr

import (
	"github.com/ess-dmsc/mrf-core/errs"
	"github.com/ess-dmsc/mrf-core/regio"
)

// OutputSource enumerates the signals a front-panel or backplane output
// can be routed from: a pulser, a distributed-bus bit or a fixed level.
type OutputSource int

// Source kinds accepted by OutputMux.SetSource, per the front-panel
// output-mux register's source-select field.
const (
	SourcePulser OutputSource = iota
	SourceDBus
	SourceForceHigh
	SourceForceLow
)

// OutputMux binds one physical output pin to a source.
type OutputMux struct {
	id  int
	sel regio.Field8
}

func newOutputMux(win *regio.Window, id int, off int64) *OutputMux {
	return &OutputMux{id: id, sel: regio.NewField8(win, off)}
}

// SetSource routes the output from src; index selects a pulser number
// when src is SourcePulser, or a dbus bit when src is SourceDBus.
func (o *OutputMux) SetSource(src OutputSource, index uint8) error {
	switch src {
	case SourcePulser:
		if index >= maxPulsers {
			return &errs.RangeError{Field: "output.pulser", Value: index, Msg: "no such pulser"}
		}
		return o.sel.Set(index)
	case SourceDBus:
		if index >= 8 {
			return &errs.RangeError{Field: "output.dbus", Value: index, Msg: "dbus bit must be 0..7"}
		}
		return o.sel.Set(0x20 | index)
	case SourceForceHigh:
		return o.sel.Set(0x3E)
	case SourceForceLow:
		return o.sel.Set(0x3F)
	default:
		return &errs.RangeError{Field: "output.source", Value: src, Msg: "unknown source kind"}
	}
}

// Describe returns the raw select value currently programmed.
func (o *OutputMux) Describe() (uint8, error) { return o.sel.Get() }
