// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seqstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// ExportYAML writes p to path in YAML form, for offline inspection or
// handing a playlist to another shift without a database round trip.
func ExportYAML(path string, p Playlist) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("seqstore: could not marshal playlist %q: %w", p.Name, err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("seqstore: could not write %s: %w", path, err)
	}
	return nil
}

// ImportYAML reads a playlist previously written by ExportYAML.
func ImportYAML(path string) (Playlist, error) {
	var p Playlist
	b, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("seqstore: could not read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("seqstore: could not unmarshal %s: %w", path, err)
	}
	return p, nil
}
