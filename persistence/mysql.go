package persistence

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLPersister is a MySQL-backed Persister for fleet deployments where
// several launcher hosts share one checkpoint store.
//
// Schema:
//   - checkpoints(pid VARCHAR(64), tag VARCHAR(255), bundle LONGTEXT,
//     updated_at TIMESTAMP, PRIMARY KEY(pid, tag))
type MySQLPersister struct {
	db *sql.DB
}

// NewMySQLPersister opens (and migrates) a MySQL-backed persister using
// a go-sql-driver/mysql DSN, e.g. "user:pass@tcp(host:3306)/dbname".
func NewMySQLPersister(dsn string) (*MySQLPersister, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening mysql: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: connecting to mysql: %w", err)
	}

	p := &MySQLPersister{db: db}
	if err := p.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *MySQLPersister) createTables(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS checkpoints (
			pid VARCHAR(64) NOT NULL,
			tag VARCHAR(255) NOT NULL,
			bundle LONGTEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (pid, tag)
		)
	`)
	return err
}

// Close releases the underlying connection pool.
func (p *MySQLPersister) Close() error {
	return p.db.Close()
}

func (p *MySQLPersister) SaveCheckpoint(ctx context.Context, id CheckpointID, bundle *Bundle) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO checkpoints (pid, tag, bundle)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE bundle = VALUES(bundle)
	`, id.PID, id.Tag, string(bundle.Bytes()))
	return err
}

func (p *MySQLPersister) LoadCheckpoint(ctx context.Context, id CheckpointID) (*Bundle, error) {
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

func (p *MySQLPersister) GetCheckpoints(ctx context.Context) ([]CheckpointID, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT pid, tag FROM checkpoints`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCheckpointIDs(rows)
}

func (p *MySQLPersister) GetProcessCheckpoints(ctx context.Context, pid string) ([]CheckpointID, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT pid, tag FROM checkpoints WHERE pid = ?`, pid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCheckpointIDs(rows)
}

func (p *MySQLPersister) DeleteCheckpoint(ctx context.Context, id CheckpointID) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE pid = ? AND tag = ?`, id.PID, id.Tag)
	return err
}

func (p *MySQLPersister) DeleteProcessCheckpoints(ctx context.Context, pid string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE pid = ?`, pid)
	return err
}
