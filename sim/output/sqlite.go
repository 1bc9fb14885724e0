package output

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    rows INTEGER NOT NULL,
    columns INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS output (
    run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
    timestep INTEGER NOT NULL,
    column_name TEXT NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (run_id, timestep, column_name)
);
CREATE INDEX IF NOT EXISTS idx_output_column ON output(run_id, column_name);
`

// SQLiteSink stores finished tables in long format, one row per
// (run, timestep, column).
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) a database at path. Use ":memory:"
// for an in-process database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error { return s.db.Close() }

// Write stores t under runID, replacing any earlier run with that id.
func (s *SQLiteSink) Write(ctx context.Context, runID string, t *Table) error {
	ts, ok := t.index[TimestepColumn]
	if !ok {
		return fmt.Errorf("table has no %s column", TimestepColumn)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM output WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear run %s: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, rows, columns) VALUES (?, ?, ?)`,
		runID, t.Rows(), len(t.columns)); err != nil {
		return fmt.Errorf("failed to record run %s: %w", runID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO output (run_id, timestep, column_name, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range t.rows {
		step := int64(r[ts])
		for j, c := range t.columns {
			if j == ts {
				continue
			}
			if _, err := stmt.ExecContext(ctx, runID, step, c, r[j]); err != nil {
				return fmt.Errorf("failed to insert %s at t=%d: %w", c, step, err)
			}
		}
	}
	return tx.Commit()
}

// Series reads back one column of a stored run in timestep order.
func (s *SQLiteSink) Series(ctx context.Context, runID, column string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM output WHERE run_id = ? AND column_name = ? ORDER BY timestep`, runID, column)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", column, err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Runs lists stored run ids.
func (s *SQLiteSink) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id FROM runs ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
