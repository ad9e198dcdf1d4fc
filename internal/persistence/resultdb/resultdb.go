// Package resultdb indexes finished runs in sqlite. One row per run,
// holding exactly the exported result contract plus lookup keys.
package resultdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"econbench.ai/internal/protocol"
)

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			benchmark TEXT NOT NULL,
			model TEXT NOT NULL,
			seed INTEGER NOT NULL,
			final_step INTEGER NOT NULL,
			score REAL NOT NULL,
			terminated INTEGER NOT NULL,
			termination_reason TEXT,
			interrupted INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			elapsed_seconds REAL NOT NULL,
			period_log_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_benchmark_model ON runs(benchmark, model);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Row is one stored run: the result contract keyed by run identity.
type Row struct {
	RunID     string
	Benchmark string
	Seed      int64
	Result    protocol.RunResult
}

func (d *DB) Insert(ctx context.Context, r Row) error {
	plog, err := json.Marshal(r.Result.PeriodLog)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, benchmark, model, seed,
			final_step, score, terminated, termination_reason, interrupted,
			started_at, ended_at, elapsed_seconds, period_log_json
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.RunID, r.Benchmark, r.Result.Model, r.Seed,
		r.Result.FinalStep, r.Result.Score, boolInt(r.Result.Terminated),
		r.Result.TerminationReason, boolInt(r.Result.Interrupted),
		r.Result.StartedAt, r.Result.EndedAt, r.Result.ElapsedSeconds, string(plog),
	)
	return err
}

func (d *DB) Get(ctx context.Context, runID string) (Row, error) {
	var (
		r                       Row
		terminated, interrupted int
		plog                    string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT run_id, benchmark, model, seed,
			final_step, score, terminated, termination_reason, interrupted,
			started_at, ended_at, elapsed_seconds, period_log_json
		FROM runs WHERE run_id = ?`, runID).Scan(
		&r.RunID, &r.Benchmark, &r.Result.Model, &r.Seed,
		&r.Result.FinalStep, &r.Result.Score, &terminated,
		&r.Result.TerminationReason, &interrupted,
		&r.Result.StartedAt, &r.Result.EndedAt, &r.Result.ElapsedSeconds, &plog,
	)
	if err != nil {
		return r, err
	}
	r.Result.Terminated = terminated != 0
	r.Result.Interrupted = interrupted != 0
	if err := json.Unmarshal([]byte(plog), &r.Result.PeriodLog); err != nil {
		return r, fmt.Errorf("period log for %s: %w", runID, err)
	}
	return r, nil
}

// List returns stored runs for a benchmark, best score first.
func (d *DB) List(ctx context.Context, benchmark string) ([]Row, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT run_id FROM runs WHERE benchmark = ? ORDER BY score DESC`, benchmark)
	if err != nil {
		return nil, err
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		r, err := d.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *DB) Close() error { return d.db.Close() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
