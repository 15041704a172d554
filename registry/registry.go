// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package registry is the process-wide integer-id-to-card map. It
// replaces the original driver's module-level global map with an
// explicit, testable registry object; every lookup is fallible and
// returns an error instead of a null sentinel.
package registry // import "github.com/ess-dmsc/mrf-core/registry"

import (
	"fmt"
	"sync"

	"github.com/ess-dmsc/mrf-core/errs"
)

// Card is the minimal contract a registered object must satisfy: a
// name for diagnostics and a Close used at process teardown. EVR and EVG
// cards both implement it.
type Card interface {
	fmt.Stringer
	Close() error
}

// Registry maps small integer card ids to cards. The zero value is not
// usable; use New.
type Registry struct {
	mu    sync.RWMutex
	cards map[int]Card
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{cards: make(map[int]Card)}
}

// Register binds id to card. It fails with a *errs.ProgrammerError if id
// is already taken — duplicate registration is a configuration bug, not
// a recoverable runtime condition.
func (r *Registry) Register(id int, card Card) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.cards[id]; dup {
		return &errs.ProgrammerError{
			Op:  "registry.Register",
			Msg: fmt.Sprintf("card id %d already registered (%s)", id, r.cards[id]),
		}
	}
	r.cards[id] = card
	return nil
}

// Lookup returns the card registered under id, or an error if none is.
func (r *Registry) Lookup(id int) (Card, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	card, ok := r.cards[id]
	if !ok {
		return nil, fmt.Errorf("registry: no card registered under id %d", id)
	}
	return card, nil
}

// Unregister removes id from the registry without closing the card;
// callers that also own the card's lifetime should Close it themselves.
func (r *Registry) Unregister(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cards, id)
}

// Ids returns the currently registered card ids, in no particular
// order.
func (r *Registry) Ids() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.cards))
	for id := range r.cards {
		ids = append(ids, id)
	}
	return ids
}

// CloseAll closes every registered card and empties the registry,
// collecting (not stopping at) the first error. It is meant to run once
// at process teardown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, card := range r.cards {
		if err := card.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("registry: could not close card %d (%s): %w", id, card, err)
		}
		delete(r.cards, id)
	}
	return firstErr
}
