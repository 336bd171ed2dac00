package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"requestbin/internal/bin"
)

const (
	secureFileMode = 0o600
	secureDirMode  = 0o700
)

const schema = `
CREATE TABLE IF NOT EXISTS bins (
	name    TEXT PRIMARY KEY,
	created REAL NOT NULL,
	data    BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bins_created ON bins(created);
CREATE TABLE IF NOT EXISTS stats (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	requests   INTEGER NOT NULL DEFAULT 0,
	total_size INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO stats (id, requests, total_size) VALUES (1, 0, 0);
`

// SQLite stores bin snapshots in a single table. The pool is limited to one
// connection, so captures to the same bin never interleave.
type SQLite struct {
	db   *sql.DB
	opts Options
}

func NewSQLite(path string, opts Options) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, secureDirMode); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	if err := ensureSecureFile(path); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLite{db: db, opts: opts}, nil
}

// ensureSecureFile creates the database file owner-only before sqlite opens it.
func ensureSecureFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, secureFileMode)
		if err != nil {
			return fmt.Errorf("failed to create secure file: %w", err)
		}
		return f.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.Mode().Perm() != secureFileMode {
		if err := os.Chmod(path, secureFileMode); err != nil {
			return fmt.Errorf("failed to set secure permissions: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CreateBin(private bool, customName string) (*bin.Bin, error) {
	for attempt := 0; attempt < createAttempts; attempt++ {
		b, err := bin.New(s.opts.Policy, private, customName)
		if err != nil {
			return nil, err
		}
		ok, err := s.insert(b)
		if err != nil {
			return nil, err
		}
		if ok {
			return b, nil
		}
		if customName != "" {
			return nil, ErrBinExists
		}
	}
	return nil, ErrBinExists
}

// insert stores b unless a live bin already holds its name. An expired bin
// still waiting for the janitor is replaced.
func (s *SQLite) insert(b *bin.Bin) (bool, error) {
	data, err := b.Dump()
	if err != nil {
		return false, fmt.Errorf("dump bin %s: %w", b.Name, err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if s.opts.BinTTL > 0 {
		if _, err := tx.Exec(
			"DELETE FROM bins WHERE name = ? AND created < ?",
			b.Name, unixSeconds(time.Now().Add(-s.opts.BinTTL)),
		); err != nil {
			return false, fmt.Errorf("replace expired bin: %w", err)
		}
	}
	res, err := tx.Exec(
		"INSERT OR IGNORE INTO bins (name, created, data) VALUES (?, ?, ?)",
		b.Name, b.Created, data,
	)
	if err != nil {
		return false, fmt.Errorf("insert bin: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return false, nil
	}
	return true, tx.Commit()
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *SQLite) load(q querier, name string) (*bin.Bin, error) {
	var data []byte
	err := q.QueryRow("SELECT data FROM bins WHERE name = ?", name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBinNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select bin %s: %w", name, err)
	}
	b, err := bin.Load(data, s.opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("load bin %s: %w", name, err)
	}
	if expired(b, s.opts.BinTTL, time.Now()) {
		return nil, ErrBinNotFound
	}
	return b, nil
}

func (s *SQLite) LookupBin(name string) (*bin.Bin, error) {
	return s.load(s.db, name)
}

func (s *SQLite) CreateRequest(name string, in bin.Input) (*bin.Request, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := s.load(tx, name)
	if err != nil {
		return nil, err
	}
	r := b.Add(in)
	data, err := b.Dump()
	if err != nil {
		return nil, fmt.Errorf("dump bin %s: %w", name, err)
	}
	if _, err := tx.Exec("UPDATE bins SET data = ? WHERE name = ?", data, name); err != nil {
		return nil, fmt.Errorf("update bin %s: %w", name, err)
	}
	if _, err := tx.Exec(
		"UPDATE stats SET requests = requests + 1, total_size = total_size + ? WHERE id = 1",
		r.ContentLength,
	); err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLite) CountBins() (int, error) {
	var n int
	if s.opts.BinTTL <= 0 {
		err := s.db.QueryRow("SELECT COUNT(*) FROM bins").Scan(&n)
		return n, err
	}
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM bins WHERE created >= ?",
		unixSeconds(time.Now().Add(-s.opts.BinTTL)),
	).Scan(&n)
	return n, err
}

func (s *SQLite) CountRequests() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT requests FROM stats WHERE id = 1").Scan(&n)
	return n, err
}

func (s *SQLite) AvgRequestSize() (int, error) {
	var requests, total uint64
	if err := s.db.QueryRow("SELECT requests, total_size FROM stats WHERE id = 1").Scan(&requests, &total); err != nil {
		return 0, err
	}
	return average(total, requests), nil
}

func (s *SQLite) Expire(now time.Time) (int, error) {
	if s.opts.BinTTL <= 0 {
		return 0, nil
	}
	res, err := s.db.Exec("DELETE FROM bins WHERE created < ?", unixSeconds(now.Add(-s.opts.BinTTL)))
	if err != nil {
		return 0, fmt.Errorf("expire bins: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
