// Package store persists speed events to SQLite so runs can be reported on
// after the video has been processed.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/swdee/go-speedcam/logging"
	"github.com/swdee/go-speedcam/speed"
	"github.com/swdee/go-speedcam/tracker"
)

// Store is a SQLite backed event store, safe for concurrent use
type Store struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// Run describes one processing run of a video source
type Run struct {
	ID        string       `json:"run_id"`
	Source    string       `json:"source"`
	StartedAt time.Time    `json:"started_at"`
	Config    speed.Config `json:"config"`
}

// Filter selects events for ListEvents, zero fields do not filter
type Filter struct {
	RunID     string
	Direction *speed.Direction
	Since     time.Time
	Until     time.Time
	// Limit caps the number of events returned, 0 is unlimited
	Limit int
}

// Open opens or creates the database at path and migrates it to the latest
// schema
func Open(path string, log logrus.FieldLogger) (*Store, error) {

	if log == nil {
		log = logging.Discard()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection serialises writers and keeps :memory: databases
	// shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db, log: log}

	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records the start of a run and returns it with a new run ID
func (s *Store) StartRun(ctx context.Context, source string, cfg speed.Config, now time.Time) (Run, error) {

	run := Run{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: now,
		Config:    cfg,
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
		(run_id, source, started_at, line_a, line_b, band_offset, distance_m, policy)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, source, now.UnixNano(), cfg.LineA, cfg.LineB, cfg.Offset,
		cfg.DistanceM, cfg.Policy.String())

	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}

	s.log.WithFields(logrus.Fields{"run_id": run.ID, "source": source}).Info("Started run")

	return run, nil
}

// Runs returns all runs, newest first
func (s *Store) Runs(ctx context.Context) ([]Run, error) {

	rows, err := s.db.QueryContext(ctx, `SELECT run_id, source, started_at, line_a,
		line_b, band_offset, distance_m, policy FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			run     Run
			started int64
			policy  string
		)

		if err := rows.Scan(&run.ID, &run.Source, &started, &run.Config.LineA,
			&run.Config.LineB, &run.Config.Offset, &run.Config.DistanceM, &policy); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt = time.Unix(0, started).UTC()

		if run.Config.Policy, err = speed.ParsePolicy(policy); err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// InsertEvent stores a speed event of the run
func (s *Store) InsertEvent(ctx context.Context, runID string, ev speed.Event) error {
	return s.InsertEvents(ctx, runID, []speed.Event{ev})
}

// InsertEvents stores the events of the run in a single transaction
func (s *Store) InsertEvents(ctx context.Context, runID string, events []speed.Event) error {

	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO speed_events
		(run_id, track_id, direction, kmh, elapsed_nanos, at_unix_nanos, frame,
		 cx, cy, x1, y1, x2, y2, exceeded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		var kmh sql.NullFloat64
		if ev.Speed.Available {
			kmh = sql.NullFloat64{Float64: ev.Speed.KMH, Valid: true}
		}

		_, err := stmt.ExecContext(ctx, runID, ev.ID, ev.Direction.String(), kmh,
			int64(ev.Elapsed), ev.At.UnixNano(), int64(ev.Frame),
			ev.Centroid.X, ev.Centroid.Y, ev.Box.X1, ev.Box.Y1, ev.Box.X2, ev.Box.Y2,
			ev.Exceeded)

		if err != nil {
			return fmt.Errorf("failed to insert event for id %d: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}

// ListEvents returns the events matching f ordered by time of emission
func (s *Store) ListEvents(ctx context.Context, f Filter) ([]speed.Event, error) {

	var (
		where []string
		args  []interface{}
	)

	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}

	if f.Direction != nil {
		where = append(where, "direction = ?")
		args = append(args, f.Direction.String())
	}

	if !f.Since.IsZero() {
		where = append(where, "at_unix_nanos >= ?")
		args = append(args, f.Since.UnixNano())
	}

	if !f.Until.IsZero() {
		where = append(where, "at_unix_nanos < ?")
		args = append(args, f.Until.UnixNano())
	}

	query := `SELECT track_id, direction, kmh, elapsed_nanos, at_unix_nanos, frame,
		cx, cy, x1, y1, x2, y2, exceeded FROM speed_events`

	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY at_unix_nanos, event_id"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []speed.Event

	for rows.Next() {
		var (
			ev       speed.Event
			dir      string
			kmh      sql.NullFloat64
			elapsed  int64
			at       int64
			frame    int64
			centroid tracker.Point
			box      tracker.Box
		)

		if err := rows.Scan(&ev.ID, &dir, &kmh, &elapsed, &at, &frame,
			&centroid.X, &centroid.Y, &box.X1, &box.Y1, &box.X2, &box.Y2,
			&ev.Exceeded); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if err := ev.Direction.UnmarshalText([]byte(dir)); err != nil {
			return nil, err
		}

		if kmh.Valid {
			ev.Speed = speed.Speed{KMH: kmh.Float64, Available: true}
		}

		ev.Elapsed = time.Duration(elapsed)
		ev.At = time.Unix(0, at).UTC()
		ev.Frame = uint64(frame)
		ev.Centroid = centroid
		ev.Box = box

		events = append(events, ev)
	}

	return events, rows.Err()
}

// Counts returns the distinct vehicles recorded per direction for the run
func (s *Store) Counts(ctx context.Context, runID string) (speed.Counts, error) {

	var counts speed.Counts

	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(DISTINCT CASE WHEN direction = 'down' THEN track_id END),
		COUNT(DISTINCT CASE WHEN direction = 'up' THEN track_id END)
		FROM speed_events WHERE run_id = ?`, runID).Scan(&counts.Down, &counts.Up)

	if err != nil {
		return counts, fmt.Errorf("failed to count events: %w", err)
	}

	return counts, nil
}

// Summary returns the speed statistics of the run
func (s *Store) Summary(ctx context.Context, runID string) (speed.Summary, error) {

	events, err := s.ListEvents(ctx, Filter{RunID: runID})
	if err != nil {
		return speed.Summary{}, err
	}

	return speed.Summarize(events), nil
}
