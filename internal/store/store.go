// Package store is the record store adapter: one table of JSON envelopes
// keyed by CID, reachable through SQLite or Postgres.
//
// A Store holds at most one live database handle. It is opened lazily on
// first use and reused; Reset discards it so the next call reconnects.
// Every statement binds its values as parameters.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mesh-intelligence/intake/pkg/types"
)

var sqlOpen = sql.Open

// Store implements the exists, fetch, insert, and update primitives over a
// single table.
type Store struct {
	mu      sync.Mutex
	cfg     types.Config
	dialect dialect
	db      *sql.DB
	now     func() time.Time
}

// New validates cfg and returns a Store. No connection is made until the
// first call that needs one.
func New(cfg types.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()
	d, err := newDialect(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{cfg: cfg, dialect: d, now: time.Now}, nil
}

// Table returns the name of the backing table.
func (s *Store) Table() string { return s.cfg.Table }

// conn returns the cached handle, opening it on first use.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if s.dialect.name == dialectSQLite && s.cfg.DSN == "" {
		if err := os.MkdirAll(filepath.Dir(s.dialect.dsn), 0o755); err != nil {
			return nil, &types.StoreError{Op: "open", Err: err}
		}
	}

	db, err := sqlOpen(s.dialect.driver, s.dialect.dsn)
	if err != nil {
		return nil, &types.StoreError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &types.StoreError{Op: "open", Err: err}
	}
	s.db = db
	return db, nil
}

// Reset discards the cached handle. The next call opens a new one.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

// Close releases the handle. Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Init creates the table if it does not exist and adds columns missing
// from tables created by earlier versions.
func (s *Store) Init(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, s.dialect.createTable(s.cfg.Table)); err != nil {
		return &types.StoreError{Op: "init", Err: err}
	}

	missing, err := s.missingColumns(ctx, db)
	if err != nil {
		return &types.StoreError{Op: "init", Err: err}
	}
	for _, c := range missing {
		if _, err := db.ExecContext(ctx, s.dialect.addColumn(s.cfg.Table, c)); err != nil {
			return &types.StoreError{Op: "init", Err: fmt.Errorf("adding column %s: %w", c.name, err)}
		}
	}
	return nil
}

func (s *Store) missingColumns(ctx context.Context, db *sql.DB) ([]column, error) {
	if s.dialect.name == dialectPostgres {
		// ADD COLUMN IF NOT EXISTS makes every statement safe to repeat.
		return lateColumns, nil
	}
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", s.cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		have[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []column
	for _, c := range lateColumns {
		if !have[c.name] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

// Exists reports whether an envelope is stored for cid.
func (s *Store) Exists(ctx context.Context, cid string) (bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	var one int
	err = db.QueryRowContext(ctx,
		s.dialect.rebind("SELECT 1 FROM "+s.cfg.Table+" WHERE cid = ?"), cid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, &types.StoreError{Op: "exists", CID: cid, Err: err}
	}
	return true, nil
}

// Fetch returns the envelope for cid, or types.ErrNotFound.
func (s *Store) Fetch(ctx context.Context, cid string) (*types.Envelope, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT cid, data, last_updated, created_at, phase FROM "+s.cfg.Table+" WHERE cid = ?"), cid)
	env, err := scanEnvelope(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.StoreError{Op: "fetch", CID: cid, Err: err}
	}
	return env, nil
}

// Insert stores a new envelope. created_at and last_updated are set to now.
func (s *Store) Insert(ctx context.Context, cid, data string, phase *int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	now := s.dialect.timeArg(s.now())
	_, err = db.ExecContext(ctx, s.dialect.rebind(
		"INSERT INTO "+s.cfg.Table+" (cid, data, phase, created_at, last_updated) VALUES (?, ?, ?, ?, ?)"),
		cid, data, nullablePhase(phase), now, now)
	if err != nil {
		return &types.StoreError{Op: "insert", CID: cid, Err: err}
	}
	return nil
}

// Update replaces the data of an existing envelope and refreshes
// last_updated. phase is written only when non-nil. Returns an error
// wrapping types.ErrNotFound when no row matches.
func (s *Store) Update(ctx context.Context, cid, data string, phase *int64) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	now := s.dialect.timeArg(s.now())

	var res sql.Result
	if phase != nil {
		res, err = db.ExecContext(ctx, s.dialect.rebind(
			"UPDATE "+s.cfg.Table+" SET data = ?, phase = ?, last_updated = ? WHERE cid = ?"),
			data, *phase, now, cid)
	} else {
		res, err = db.ExecContext(ctx, s.dialect.rebind(
			"UPDATE "+s.cfg.Table+" SET data = ?, last_updated = ? WHERE cid = ?"),
			data, now, cid)
	}
	if err != nil {
		return &types.StoreError{Op: "update", CID: cid, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &types.StoreError{Op: "update", CID: cid, Err: err}
	}
	if n == 0 {
		return &types.StoreError{Op: "update", CID: cid, Err: types.ErrNotFound}
	}
	return nil
}

// List returns every envelope ordered by CID.
func (s *Store) List(ctx context.Context) ([]types.Envelope, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		"SELECT cid, data, last_updated, created_at, phase FROM "+s.cfg.Table+" ORDER BY cid")
	if err != nil {
		return nil, &types.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	var out []types.Envelope
	for rows.Next() {
		env, err := scanEnvelope(rows)
		if err != nil {
			return nil, &types.StoreError{Op: "list", Err: err}
		}
		out = append(out, *env)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StoreError{Op: "list", Err: err}
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row scanner) (*types.Envelope, error) {
	var (
		env                  types.Envelope
		data                 sql.NullString
		lastUpdated, created any
		phase                sql.NullInt64
	)
	if err := row.Scan(&env.CID, &data, &lastUpdated, &created, &phase); err != nil {
		return nil, err
	}
	env.Data = data.String

	var err error
	if env.LastUpdated, err = scanTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("last_updated: %w", err)
	}
	if env.CreatedAt, err = scanTime(created); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if phase.Valid {
		p := phase.Int64
		env.Phase = &p
	}
	return &env, nil
}

func nullablePhase(phase *int64) sql.NullInt64 {
	if phase == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *phase, Valid: true}
}
