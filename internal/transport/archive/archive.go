// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package archive is a downstream SQLite sink for delivered readings and
// memory usage reports.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relabs-tech/sensor_node/internal/wire"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
  id       INTEGER PRIMARY KEY AUTOINCREMENT,
  channel  TEXT    NOT NULL,
  seq      INTEGER NOT NULL,
  value    REAL    NOT NULL,
  unit     TEXT    NOT NULL DEFAULT '',
  ts       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_readings_channel_ts ON readings(channel, ts);

CREATE TABLE IF NOT EXISTS memory_usage (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  ts        TEXT    NOT NULL,
  percent   REAL    NOT NULL,
  channels  TEXT    NOT NULL
);
`

const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Archive stores telemetry in SQLite.
type Archive struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Archive, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive open: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive ping: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	dir := filepath.Dir(strings.TrimPrefix(path, "file:"))
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	params := []string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}

func (a *Archive) Name() string { return "archive" }

// PublishReading inserts r.
func (a *Archive) PublishReading(r wire.Reading) error {
	_, err := a.db.Exec(
		`INSERT INTO readings (channel, seq, value, unit, ts) VALUES (?, ?, ?, ?, ?)`,
		r.Channel, int64(r.Seq), float64(r.Value), r.Unit, r.Timestamp.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("archive insert reading: %w", err)
	}
	return nil
}

// PublishUsage inserts u with its per-channel figures as JSON.
func (a *Archive) PublishUsage(u wire.Usage) error {
	channels, err := marshalChannels(u.Channels)
	if err != nil {
		return err
	}
	_, err = a.db.Exec(
		`INSERT INTO memory_usage (ts, percent, channels) VALUES (?, ?, ?)`,
		u.Timestamp.UTC().Format(tsLayout), u.Percent, channels,
	)
	if err != nil {
		return fmt.Errorf("archive insert usage: %w", err)
	}
	return nil
}

// Recent returns up to limit readings of channel, newest first.
func (a *Archive) Recent(channel string, limit int) ([]wire.Reading, error) {
	rows, err := a.db.Query(
		`SELECT channel, seq, value, unit, ts FROM readings WHERE channel = ? ORDER BY id DESC LIMIT ?`,
		channel, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive query: %w", err)
	}
	defer rows.Close()

	var out []wire.Reading
	for rows.Next() {
		var (
			r   wire.Reading
			seq int64
			val float64
			ts  string
		)
		if err := rows.Scan(&r.Channel, &seq, &val, &r.Unit, &ts); err != nil {
			return nil, fmt.Errorf("archive scan: %w", err)
		}
		r.Seq = uint64(seq)
		r.Value = float32(val)
		if r.Timestamp, err = time.Parse(tsLayout, ts); err != nil {
			return nil, fmt.Errorf("archive ts %q: %w", ts, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestUsage returns the most recent usage report, or sql.ErrNoRows.
func (a *Archive) LatestUsage() (wire.Usage, error) {
	var (
		u        wire.Usage
		ts       string
		channels string
	)
	err := a.db.QueryRow(
		`SELECT ts, percent, channels FROM memory_usage ORDER BY id DESC LIMIT 1`,
	).Scan(&ts, &u.Percent, &channels)
	if err != nil {
		return u, err
	}
	if u.Timestamp, err = time.Parse(tsLayout, ts); err != nil {
		return u, fmt.Errorf("archive ts %q: %w", ts, err)
	}
	if u.Channels, err = unmarshalChannels(channels); err != nil {
		return u, err
	}
	return u, nil
}

// Count returns the number of stored readings of channel.
func (a *Archive) Count(channel string) (int, error) {
	var n int
	err := a.db.QueryRow(`SELECT COUNT(*) FROM readings WHERE channel = ?`, channel).Scan(&n)
	return n, err
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
