// Package diagstore persists tiling diagnostics (clipping records and
// inheritance weight traces) to SQLite so a run can be inspected after the
// fact. A Store is a tiling.DiagnosticsSink.
package diagstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/velocity.piv/internal/monitoring"
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"github.com/banshee-data/velocity.piv/internal/timeutil"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store writes the diagnostics of one run. Every Open starts a new run; runs
// of earlier processes stay readable by their ID.
type Store struct {
	db       *sql.DB
	runID    string
	clock    timeutil.Clock
	failures atomic.Int64
}

// Open opens (creating if needed) the database at path, migrates it and
// registers a new run. configJSON is stored with the run and may be empty.
func Open(path string, configJSON []byte, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open diagnostics database %s: %w", path, err)
	}
	// One connection serialises writers from concurrent frame workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure diagnostics database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, runID: uuid.NewString(), clock: clock}
	var cfg interface{}
	if len(configJSON) > 0 {
		cfg = string(configJSON)
	}
	if _, err := db.Exec(`INSERT INTO runs (run_id, started_at, config_json) VALUES (?, ?, ?)`,
		s.runID, clock.Now().UnixNano(), cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}
	return s, nil
}

// RunID identifies the run this store records.
func (s *Store) RunID() string { return s.runID }

// Failures returns the number of records that could not be written.
func (s *Store) Failures() int64 { return s.failures.Load() }

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	v, dirty, err := schemaVersion(s.db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordClipping implements tiling.DiagnosticsSink. Write failures are
// logged and counted, never returned to the tiling core.
func (s *Store) RecordClipping(ev tiling.ClippingEvent) {
	_, err := s.db.Exec(`
		INSERT INTO clipping_events (
			run_id, recorded_at, image_order, level, tile_i, tile_j,
			left_px, top_px, u, v, du, dv
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, s.clock.Now().UnixNano(), ev.Order.String(), ev.Level, ev.I, ev.J,
		ev.LeftPixel, ev.TopPixel, ev.U, ev.V, ev.DU, ev.DV)
	if err != nil {
		s.fail("clipping event", err)
	}
}

// RecordInheritance implements tiling.DiagnosticsSink.
func (s *Store) RecordInheritance(tr tiling.InheritanceTrace) {
	contributions := tr.Contributions
	if contributions == nil {
		contributions = []tiling.WeightContribution{}
	}
	b, err := json.Marshal(contributions)
	if err != nil {
		s.fail("inheritance trace", err)
		return
	}
	_, err = s.db.Exec(`
		INSERT INTO inheritance_traces (
			run_id, recorded_at, image_order, level, tile_i, tile_j,
			method, contributions_json, u, v
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, s.clock.Now().UnixNano(), tr.Order.String(), tr.Level, tr.I, tr.J,
		tr.Method, string(b), tr.U, tr.V)
	if err != nil {
		s.fail("inheritance trace", err)
	}
}

func (s *Store) fail(what string, err error) {
	s.failures.Add(1)
	monitoring.Logf("[diagstore] failed to record %s for run %s: %v", what, s.runID, err)
}

// ClippingEvents returns the clipping records of runID in insertion order.
func (s *Store) ClippingEvents(runID string) ([]tiling.ClippingEvent, error) {
	rows, err := s.db.Query(`
		SELECT image_order, level, tile_i, tile_j, left_px, top_px, u, v, du, dv
		FROM clipping_events WHERE run_id = ? ORDER BY event_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query clipping events: %w", err)
	}
	defer rows.Close()

	var out []tiling.ClippingEvent
	for rows.Next() {
		var (
			ev    tiling.ClippingEvent
			order string
		)
		if err := rows.Scan(&order, &ev.Level, &ev.I, &ev.J, &ev.LeftPixel, &ev.TopPixel,
			&ev.U, &ev.V, &ev.DU, &ev.DV); err != nil {
			return nil, fmt.Errorf("scan clipping event: %w", err)
		}
		if ev.Order, err = parseOrder(order); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// InheritanceTraces returns the inheritance traces of runID in insertion
// order.
func (s *Store) InheritanceTraces(runID string) ([]tiling.InheritanceTrace, error) {
	rows, err := s.db.Query(`
		SELECT image_order, level, tile_i, tile_j, method, contributions_json, u, v
		FROM inheritance_traces WHERE run_id = ? ORDER BY trace_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query inheritance traces: %w", err)
	}
	defer rows.Close()

	var out []tiling.InheritanceTrace
	for rows.Next() {
		var (
			tr             tiling.InheritanceTrace
			order, weights string
		)
		if err := rows.Scan(&order, &tr.Level, &tr.I, &tr.J, &tr.Method, &weights, &tr.U, &tr.V); err != nil {
			return nil, fmt.Errorf("scan inheritance trace: %w", err)
		}
		if tr.Order, err = parseOrder(order); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &tr.Contributions); err != nil {
			return nil, fmt.Errorf("decode contributions of trace (%d,%d): %w", tr.I, tr.J, err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Runs returns the IDs of all recorded runs, oldest first.
func (s *Store) Runs() ([]string, error) {
	rows, err := s.db.Query(`SELECT run_id FROM runs ORDER BY started_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func parseOrder(name string) (tiling.ImageOrder, error) {
	for _, o := range []tiling.ImageOrder{tiling.FirstImage, tiling.SecondImage} {
		if o.String() == name {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown image order %q", name)
}
