// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serve implements mrfctl's read-only HTTP introspection
// endpoint: the set of cards currently registered, a card's raw register
// state, and its interrupt-dispatcher cause counters.
package serve

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	"github.com/ess-dmsc/mrf-core/cmd/mrfctl/device"
	"github.com/ess-dmsc/mrf-core/irqdisp"
)

const (
	AddrOptionName = "addr"
)

// NewCommand builds "mrfctl serve".
func NewCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a read-only HTTP introspection server over registered cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := &http.Server{Addr: addr, Handler: newRouter()}
			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, AddrOptionName, ":8080", "address to listen on")
	return cmd
}

func newRouter() *mux.Router {
	r := mux.NewRouter()
	sub := r.PathPrefix("/api").Subrouter()
	sub.HandleFunc("/cards", handleListCards).Methods("GET")
	sub.HandleFunc("/cards/{id:[0-9]+}/irq", handleCardIRQ).Methods("GET")
	sub.HandleFunc("/cards/{id:[0-9]+}/reg/{offset:0x[0-9a-fA-F]+}", handleCardReg).Methods("GET")
	return r
}

func handleListCards(w http.ResponseWriter, r *http.Request) {
	ids := device.Reg.Ids()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		card, err := device.Reg.Lookup(id)
		if err != nil {
			continue
		}
		names = append(names, fmt.Sprintf("%d: %s", id, card))
	}
	writeJSON(w, names)
}

// regReader is the subset of evr.Card/evg.Card's diagnostic surface this
// endpoint needs; both card types implement it, but registry.Card itself
// only promises String and Close.
type regReader interface {
	ReadRegister(off int64) (uint32, error)
}

func handleCardReg(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, _ := strconv.Atoi(vars["id"])
	card, err := device.Reg.Lookup(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	rr, ok := card.(regReader)
	if !ok {
		http.Error(w, fmt.Sprintf("card %d does not support register introspection", id), http.StatusNotImplemented)
		return
	}
	off, err := strconv.ParseInt(vars["offset"], 0, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := rr.ReadRegister(off)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]string{"offset": vars["offset"], "value": fmt.Sprintf("0x%08x", v)})
}

func handleCardIRQ(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, _ := strconv.Atoi(vars["id"])
	d := device.Dispatcher(id)
	if d == nil {
		http.Error(w, fmt.Sprintf("no interrupt dispatcher for card %d", id), http.StatusNotFound)
		return
	}
	counts := map[string]uint64{}
	for _, cause := range []irqdisp.Cause{irqdisp.RXErr, irqdisp.FIFOFull, irqdisp.Heartbeat, irqdisp.Event, irqdisp.HWMapped, irqdisp.BufFull} {
		counts[cause.String()] = d.Count(cause)
	}
	writeJSON(w, counts)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
