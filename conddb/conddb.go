// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the configuration and run
// registry database of the VX1742 digitizers.
package conddb // import "github.com/go-lpc/vx1742/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-lpc/vx1742/digitizer"
)

var (
	host = getenv("VX1742_DB_HOST", "localhost")
	usr  = getenv("VX1742_DB_USER", "username")
	pwd  = getenv("VX1742_DB_PASSWORD", "s3cr3t")

	drvName = "mysql"
)

const timeout = 5 * time.Second

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// DB exposes convenience methods to retrieve digitizer configurations
// and to register runs.
type DB struct {
	db   *sql.DB
	name string // name of the database
}

// Open opens a connection to the database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// LastConfigName returns the name of the most recent digitizer configuration.
func (db *DB) LastConfigName(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM digitizers ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return name, fmt.Errorf("conddb: could not query last configuration: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&name)
		if err != nil {
			return name, fmt.Errorf("conddb: could not get configuration name: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return name, fmt.Errorf("conddb: could not scan db for last configuration: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return name, fmt.Errorf("conddb: context error while retrieving last configuration: %w", err)
	}

	if name == "" {
		return name, fmt.Errorf("conddb: no digitizer configuration")
	}

	return name, nil
}

// DigitizerConfig returns the digitizer configuration named name.
func (db *DB) DigitizerConfig(ctx context.Context, name string) (digitizer.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cfg digitizer.Config
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT
	sampling_frequency, post_trigger_samples, trigger_source,
	group0, group1, group2, group3,
	custom_size, frame_all_groups
FROM digitizers
WHERE name=?
ORDER BY datetime DESC LIMIT 1
`,
		name,
	)
	if err != nil {
		return cfg, fmt.Errorf("conddb: could not run digitizer cfg query: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var grps [digitizer.NumGroups]int
		err = rows.Scan(
			&cfg.SamplingFrequency, &cfg.PostTriggerSamples, &cfg.TriggerSource,
			&grps[0], &grps[1], &grps[2], &grps[3],
			&cfg.CustomSize, &cfg.AllGroups,
		)
		if err != nil {
			return cfg, fmt.Errorf("conddb: could not scan digitizer cfg %q: %w", name, err)
		}
		for i, v := range grps {
			cfg.Groups[i] = v != 0
		}
		n++
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: could not scan db for digitizer cfg: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: context error while retrieving digitizer cfg: %w", err)
	}

	if n == 0 {
		return cfg, fmt.Errorf("conddb: no digitizer configuration %q", name)
	}

	cfg.Name = name
	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("conddb: invalid digitizer configuration %q: %w", name, err)
	}

	return cfg, nil
}

// Run describes a data taking run.
type Run struct {
	Number    uint32
	Timestamp uint64 // run start, in 100ns ticks since the Unix epoch
	Serial    string // digitizer serial number
	Firmware  string // digitizer firmware version
	Config    string // name of the digitizer configuration
	Start     time.Time
}

// RecordRun registers the run in the database.
func (db *DB) RecordRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		`
INSERT INTO runs (run, timestamp, serial, firmware, config, datetime)
VALUES (?, ?, ?, ?, ?, ?)
`,
		int64(run.Number), int64(run.Timestamp),
		run.Serial, run.Firmware, run.Config,
		run.Start.UTC(),
	)
	if err != nil {
		return fmt.Errorf("conddb: could not record run %d: %w", run.Number, err)
	}

	return nil
}
