// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bench measures filter latency and keeps the history in a local
// SQLite database, with an HTML report renderer for browsing it.
package bench

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Result is one recorded benchmark run of a filter operation.
type Result struct {
	// ID is assigned on insert when empty.
	ID      string
	Started time.Time

	// Op names the operation: "self", "cross", "rgb" or "box".
	Op string

	// Backend is "cpu" or "gpu".
	Backend string

	Width  int
	Height int
	Radius int

	// Iters is the number of timed iterations behind the statistics.
	Iters int

	Min  time.Duration
	Mean time.Duration
	Max  time.Duration
}

// Stage is one profiled pipeline segment of a run, in submission order.
type Stage struct {
	RunID string
	Seq   int

	// Lane is the queue lane the segment ran on.
	Lane int

	// Passes lists the pipeline passes of the segment, comma separated.
	Passes string

	Elapsed time.Duration
}

// Store is the benchmark history database.
type Store struct {
	*sql.DB
}

// timeLayout is fixed width so the TEXT column sorts chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started TIMESTAMP NOT NULL,
			op TEXT NOT NULL,
			backend TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			radius INTEGER NOT NULL,
			iters INTEGER NOT NULL,
			min_ns INTEGER NOT NULL,
			mean_ns INTEGER NOT NULL,
			max_ns INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS stages (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			lane INTEGER NOT NULL,
			passes TEXT NOT NULL,
			elapsed_ns INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db}, nil
}

// InsertResult records a run, assigning r.ID and r.Started when unset.
// Timestamps are stored as RFC 3339 text.
func (s *Store) InsertResult(r *Result) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Started.IsZero() {
		r.Started = time.Now()
	}
	_, err := s.Exec(
		`INSERT INTO runs (run_id, started, op, backend, width, height, radius, iters, min_ns, mean_ns, max_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Started.UTC().Format(timeLayout), r.Op, r.Backend,
		r.Width, r.Height, r.Radius, r.Iters,
		r.Min.Nanoseconds(), r.Mean.Nanoseconds(), r.Max.Nanoseconds())
	return err
}

// InsertStages records the profiled segments of a run.
func (s *Store) InsertStages(runID string, stages []Stage) error {
	for i, st := range stages {
		_, err := s.Exec(
			`INSERT INTO stages (run_id, seq, lane, passes, elapsed_ns) VALUES (?, ?, ?, ?, ?)`,
			runID, i, st.Lane, st.Passes, st.Elapsed.Nanoseconds())
		if err != nil {
			return fmt.Errorf("bench: insert stage %d: %w", i, err)
		}
	}
	return nil
}

// Results returns recorded runs, newest first. op filters to one
// operation when non-empty; limit caps the row count when positive.
func (s *Store) Results(op string, limit int) ([]Result, error) {
	query := `SELECT run_id, started, op, backend, width, height, radius, iters, min_ns, mean_ns, max_ns
		FROM runs`
	args := []any{}
	if op != "" {
		query += ` WHERE op = ?`
		args = append(args, op)
	}
	query += ` ORDER BY started DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var started string
		var minNS, meanNS, maxNS int64
		if err := rows.Scan(&r.ID, &started, &r.Op, &r.Backend,
			&r.Width, &r.Height, &r.Radius, &r.Iters, &minNS, &meanNS, &maxNS); err != nil {
			return nil, err
		}
		r.Started, err = time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("bench: run %s: bad timestamp %q: %w", r.ID, started, err)
		}
		r.Min = time.Duration(minNS)
		r.Mean = time.Duration(meanNS)
		r.Max = time.Duration(maxNS)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Stages returns the profiled segments of a run in submission order.
func (s *Store) Stages(runID string) ([]Stage, error) {
	rows, err := s.Query(
		`SELECT run_id, seq, lane, passes, elapsed_ns FROM stages WHERE run_id = ? ORDER BY seq`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stages []Stage
	for rows.Next() {
		var st Stage
		var elapsedNS int64
		if err := rows.Scan(&st.RunID, &st.Seq, &st.Lane, &st.Passes, &elapsedNS); err != nil {
			return nil, err
		}
		st.Elapsed = time.Duration(elapsedNS)
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stages, nil
}
