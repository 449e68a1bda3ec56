// Package store persists downloaded reference data in SQLite so department
// files survive restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/dpe-search/internal/refdata"
)

// SQLiteStore caches department payloads using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Times are unix seconds so expiry checks compare integers.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS department_cache (
	code       TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_department_cache_expires_at ON department_cache(expires_at);
`

// Migrate creates the cache table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetDepartment returns an unexpired cached department, or nil on a miss.
func (s *SQLiteStore) GetDepartment(ctx context.Context, code string) (*refdata.Department, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM department_cache WHERE code = ? AND expires_at > ?`,
		code, s.now().Unix(),
	)

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get department %s", code)
	}

	var d refdata.Department
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal department %s", code)
	}
	return &d, nil
}

// PutDepartment stores d for ttl, replacing any previous entry.
func (s *SQLiteStore) PutDepartment(ctx context.Context, d *refdata.Department, ttl time.Duration) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal department")
	}

	now := s.now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO department_cache (code, payload, fetched_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at`,
		d.Code, string(payload), now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "sqlite: put department %s", d.Code)
}

// Purge deletes expired entries and returns how many were removed.
func (s *SQLiteStore) Purge(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM department_cache WHERE expires_at <= ?`,
		s.now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge departments")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// Stats summarises the cache contents.
type Stats struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
}

// Stats counts cached and expired entries.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) FROM department_cache`,
		s.now().Unix(),
	).Scan(&st.Total, &st.Expired)
	if err != nil {
		return Stats{}, eris.Wrap(err, "sqlite: stats")
	}
	return st, nil
}
