// Package cache stores compiled LVM programs in SQLite, keyed by the
// content hash of the source they were compiled from.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/lya/pkg/bytecode"
)

var log = commonlog.GetLogger("lya.cache")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("cache closed")

// Key identifies a compiled program.
type Key [32]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Entry describes one cached program.
type Entry struct {
	Key      Key
	Name     string
	Size     int
	Created  time.Time
	LastUsed time.Time
}

// Store is a compile cache backed by a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
	mu   sync.Mutex
}

const schema = `CREATE TABLE IF NOT EXISTS programs (
	key       TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	program   BLOB NOT NULL,
	created   INTEGER NOT NULL,
	last_used INTEGER NOT NULL
)`

// Open opens or creates the cache database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Debugf("opened cache %s", path)
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
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

func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Get returns the program cached under key. The second result is false
// on a miss. An entry that no longer decodes counts as a miss and is
// removed.
func (s *Store) Get(ctx context.Context, key Key) (*bytecode.Program, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}

	var data []byte
	err = db.QueryRowContext(ctx, `SELECT program FROM programs WHERE key = ?`, key.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", key, err)
	}

	prog, err := bytecode.UnmarshalProgram(data)
	if err != nil {
		log.Warningf("dropping unreadable entry %s: %s", key, err)
		if _, err := db.ExecContext(ctx, `DELETE FROM programs WHERE key = ?`, key.String()); err != nil {
			return nil, false, fmt.Errorf("deleting %s: %w", key, err)
		}
		return nil, false, nil
	}

	if _, err := db.ExecContext(ctx, `UPDATE programs SET last_used = ? WHERE key = ?`,
		s.now().UnixNano(), key.String()); err != nil {
		return nil, false, fmt.Errorf("touching %s: %w", key, err)
	}
	return prog, true, nil
}

// Put stores prog under key, replacing any previous entry. Name is the
// source file the program came from and is informational only.
func (s *Store) Put(ctx context.Context, key Key, name string, prog *bytecode.Program) error {
	data, err := bytecode.MarshalProgram(prog)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return err
	}
	now := s.now().UnixNano()
	_, err = db.ExecContext(ctx, `INSERT INTO programs (key, name, program, created, last_used)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET name = excluded.name, program = excluded.program, last_used = excluded.last_used`,
		key.String(), name, data, now, now)
	if err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	log.Debugf("cached %s (%s, %d bytes)", key, name, len(data))
	return nil
}

// Prune removes every entry not used since before cutoff and returns how
// many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM programs WHERE last_used < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning: %w", err)
	}
	if n > 0 {
		log.Infof("pruned %d cached program(s)", n)
	}
	return int(n), nil
}

// Entries lists the cached programs, most recently used first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT key, name, length(program), created, last_used FROM programs ORDER BY last_used DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("listing: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			hexKey          string
			e               Entry
			created, usedAt int64
		)
		if err := rows.Scan(&hexKey, &e.Name, &e.Size, &created, &usedAt); err != nil {
			return nil, fmt.Errorf("listing: %w", err)
		}
		raw, err := hex.DecodeString(hexKey)
		if err != nil || len(raw) != len(e.Key) {
			return nil, fmt.Errorf("listing: bad key %q", hexKey)
		}
		copy(e.Key[:], raw)
		e.Created = time.Unix(0, created)
		e.LastUsed = time.Unix(0, usedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
