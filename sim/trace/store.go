package trace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

// ErrRunNotFound is returned by Load when no run with the given id is stored.
var ErrRunNotFound = errors.New("trace run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	level      TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS deliveries (
	run_id  TEXT NOT NULL REFERENCES runs(run_id),
	seq     INTEGER NOT NULL,
	clock   INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	source  TEXT NOT NULL,
	target  TEXT NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS updates (
	run_id   TEXT NOT NULL REFERENCES runs(run_id),
	seq      INTEGER NOT NULL,
	clock    INTEGER NOT NULL,
	model    TEXT NOT NULL,
	variable TEXT NOT NULL,
	value    TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// Store persists simulation traces in a SQLite database, one row set per run.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the SQLite trace database at path.
// Use ":memory:" for a throwaway store.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trace: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive across calls and
	// serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("trace: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes st under st.RunID in one transaction.
func (s *Store) Save(ctx context.Context, st *SimulationTrace) (err error) {
	if st == nil {
		return errors.New("trace: save nil trace")
	}
	if st.RunID == "" {
		return errors.New("trace: save trace without run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("trace: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, level, created_at) VALUES (?, ?, ?)`,
		st.RunID, string(st.Config.Level), time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("trace: insert run %s: %w", st.RunID, err)
	}
	for i, d := range st.Deliveries {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO deliveries (run_id, seq, clock, kind, source, target, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			st.RunID, i, int64(d.Clock), d.Kind, d.Source, d.Target, d.Payload); err != nil {
			return fmt.Errorf("trace: insert delivery %d: %w", i, err)
		}
	}
	for i, u := range st.Updates {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO updates (run_id, seq, clock, model, variable, value) VALUES (?, ?, ?, ?, ?, ?)`,
			st.RunID, i, int64(u.Clock), u.Model, u.Variable, u.Value); err != nil {
			return fmt.Errorf("trace: insert update %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("trace: commit: %w", err)
	}
	return nil
}

// Load reads back the trace stored under runID.
func (s *Store) Load(ctx context.Context, runID string) (*SimulationTrace, error) {
	var level string
	err := s.db.QueryRowContext(ctx, `SELECT level FROM runs WHERE run_id = ?`, runID).Scan(&level)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("trace: load run %s: %w", runID, err)
	}
	st := NewSimulationTrace(TraceConfig{Level: TraceLevel(level)})
	st.RunID = runID

	rows, err := s.db.QueryContext(ctx,
		`SELECT clock, kind, source, target, payload FROM deliveries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: load deliveries: %w", err)
	}
	for rows.Next() {
		var d DeliveryRecord
		var clock int64
		if err := rows.Scan(&clock, &d.Kind, &d.Source, &d.Target, &d.Payload); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("trace: scan delivery: %w", err)
		}
		d.Clock = time.Duration(clock)
		st.Deliveries = append(st.Deliveries, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT clock, model, variable, value FROM updates WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: load updates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u VariableRecord
		var clock int64
		if err := rows.Scan(&clock, &u.Model, &u.Variable, &u.Value); err != nil {
			return nil, fmt.Errorf("trace: scan update: %w", err)
		}
		u.Clock = time.Duration(clock)
		st.Updates = append(st.Updates, u)
	}
	return st, rows.Err()
}

// RunIDs lists stored runs, oldest first.
func (s *Store) RunIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY created_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("trace: list runs: %w", err)
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
