// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seqstore persists and retrieves EVG soft-sequence playlists: the
// (event_code, timestamp) row lists that evg.SoftSequence.SetEvents/Commit
// consume, kept outside the card so an operator can recall a named
// playlist across restarts or hand one to another shift.
package seqstore // import "github.com/ess-dmsc/mrf-core/seqstore"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host    = "localhost"
	drvName = "mysql"
)

var (
	usr = "username"
	pwd = "s3cr3t"
)

// Row is one (event_code, timestamp) pair of a playlist, in the same
// units evg.SoftSequence.SetEvents accepts.
type Row struct {
	Code      uint8  `yaml:"code"`
	Timestamp uint64 `yaml:"timestamp"`
}

// Playlist is a named, storable soft-sequence definition.
type Playlist struct {
	Name      string    `yaml:"name"`
	RunMode   string    `yaml:"run_mode"`
	TrigSrc   int       `yaml:"trigger_source"`
	Unit      string    `yaml:"unit"`
	Rows      []Row     `yaml:"rows"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// DB is a connection to the playlist database.
type DB struct {
	db   *sql.DB
	name string
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

// Open opens a connection to the named playlist database.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("seqstore: could not open %q db: %w", dbname, err)
	}
	if err := ping(db, dbname); err != nil {
		return nil, err
	}
	return &DB{db: db, name: dbname}, nil
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("seqstore: could not ping %q db: %w", dbname, err)
	}
	return nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

// Save inserts or replaces p, keyed by its Name.
func (db *DB) Save(ctx context.Context, p Playlist) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seqstore: could not begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`REPLACE INTO playlists (name, run_mode, trigger_source, unit, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.Name, p.RunMode, p.TrigSrc, p.Unit, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("seqstore: could not upsert playlist %q: %w", p.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_rows WHERE playlist=?`, p.Name); err != nil {
		return fmt.Errorf("seqstore: could not clear rows for %q: %w", p.Name, err)
	}
	for i, row := range p.Rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_rows (playlist, seq, code, timestamp) VALUES (?, ?, ?, ?)`,
			p.Name, i, row.Code, row.Timestamp,
		); err != nil {
			return fmt.Errorf("seqstore: could not insert row %d for %q: %w", i, p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seqstore: could not commit playlist %q: %w", p.Name, err)
	}
	return nil
}

// Load retrieves the playlist named name.
func (db *DB) Load(ctx context.Context, name string) (Playlist, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p Playlist
	p.Name = name

	row := db.db.QueryRowContext(ctx,
		`SELECT run_mode, trigger_source, unit, updated_at FROM playlists WHERE name=?`, name)
	if err := row.Scan(&p.RunMode, &p.TrigSrc, &p.Unit, &p.UpdatedAt); err != nil {
		return p, fmt.Errorf("seqstore: could not load playlist %q: %w", name, err)
	}

	rows, err := db.db.QueryContext(ctx,
		`SELECT code, timestamp FROM playlist_rows WHERE playlist=? ORDER BY seq ASC`, name)
	if err != nil {
		return p, fmt.Errorf("seqstore: could not query rows for %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Code, &r.Timestamp); err != nil {
			return p, fmt.Errorf("seqstore: could not scan row for %q: %w", name, err)
		}
		p.Rows = append(p.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return p, fmt.Errorf("seqstore: could not scan rows for %q: %w", name, err)
	}
	return p, nil
}

// List reports the names of every stored playlist.
func (db *DB) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := db.db.QueryContext(ctx, `SELECT name FROM playlists ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("seqstore: could not list playlists: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("seqstore: could not scan playlist name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
