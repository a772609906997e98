package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MySQLBlobRepo keeps the schedule blob as one row of the schedule_blobs
// table.  The row is keyed by name so several deployments may share a
// database without clashing.
type MySQLBlobRepo struct {
	db   *sql.DB
	name string
}

// NewMySQLBlobRepo returns a MySQLBlobRepo storing its blob under name.
func NewMySQLBlobRepo(db *sql.DB, name string) *MySQLBlobRepo {
	return &MySQLBlobRepo{db: db, name: name}
}

// EnsureSchema creates the schedule_blobs table when it does not exist yet.
func (r *MySQLBlobRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS schedule_blobs (
		name       VARCHAR(64) NOT NULL PRIMARY KEY,
		payload    LONGTEXT    NOT NULL,
		updated_at TIMESTAMP   NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) CHARACTER SET utf8mb4`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schedule_blobs: %w", err)
	}
	return nil
}

// Read returns the stored payload or ErrBlobNotFound when the row is absent.
func (r *MySQLBlobRepo) Read(ctx context.Context) ([]byte, error) {
	const q = `SELECT payload FROM schedule_blobs WHERE name = ?`
	var payload string
	if err := r.db.QueryRowContext(ctx, q, r.name).Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("select schedule blob: %w", err)
	}
	return []byte(payload), nil
}

// Write upserts the payload.  The last writer wins.
func (r *MySQLBlobRepo) Write(ctx context.Context, data []byte) error {
	const q = `INSERT INTO schedule_blobs (name, payload) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload)`
	if _, err := r.db.ExecContext(ctx, q, r.name, string(data)); err != nil {
		return fmt.Errorf("upsert schedule blob: %w", err)
	}
	return nil
}
