package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLitePersister is a SQLite-backed Persister: a single-file database
// suitable for local development and single-host deployments without a
// networked database.
//
// Schema:
//   - checkpoints(pid TEXT, tag TEXT, bundle TEXT, updated_at TIMESTAMP,
//     PRIMARY KEY(pid, tag))
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens (and migrates) a SQLite-backed persister at
// path. Use ":memory:" for an ephemeral database suitable for tests.
func NewSQLitePersister(path string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening sqlite: %w", err)
	}

	// SQLite supports exactly one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: enabling WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: setting busy timeout: %w", err)
	}

	p := &SQLitePersister{db: db}
	if err := p.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *SQLitePersister) createTables(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			pid TEXT NOT NULL,
			tag TEXT NOT NULL,
			bundle TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (pid, tag)
		)
	`)
	return err
}

// Close releases the underlying database connection.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

func (p *SQLitePersister) SaveCheckpoint(ctx context.Context, id CheckpointID, bundle *Bundle) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO checkpoints (pid, tag, bundle, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(pid, tag) DO UPDATE SET bundle = excluded.bundle, updated_at = excluded.updated_at
	`, id.PID, id.Tag, string(bundle.Bytes()))
	return err
}

func (p *SQLitePersister) LoadCheckpoint(ctx context.Context, id CheckpointID) (*Bundle, error) {
	row := p.db.QueryRowContext(ctx, `SELECT bundle FROM checkpoints WHERE pid = ? AND tag = ?`, id.PID, id.Tag)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCheckpointNotFound
		}
		return nil, err
	}
	return ParseBundle([]byte(raw))
}

func (p *SQLitePersister) GetCheckpoints(ctx context.Context) ([]CheckpointID, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT pid, tag FROM checkpoints`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCheckpointIDs(rows)
}

func (p *SQLitePersister) GetProcessCheckpoints(ctx context.Context, pid string) ([]CheckpointID, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT pid, tag FROM checkpoints WHERE pid = ?`, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCheckpointIDs(rows)
}

func (p *SQLitePersister) DeleteCheckpoint(ctx context.Context, id CheckpointID) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE pid = ? AND tag = ?`, id.PID, id.Tag)
	return err
}

func (p *SQLitePersister) DeleteProcessCheckpoints(ctx context.Context, pid string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE pid = ?`, pid)
	return err
}

func scanCheckpointIDs(rows *sql.Rows) ([]CheckpointID, error) {
	var ids []CheckpointID
	for rows.Next() {
		var id CheckpointID
		if err := rows.Scan(&id.PID, &id.Tag); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
