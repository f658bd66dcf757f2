// Package db is the reference Db adapter: a SQLite-backed local package
// database, migrated with goose, guarded by an exclusive advisory file
// lock (gofrs/flock, the maintained successor of theckman/go-flock).
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/opkgtool/opkg/internal/jobs"
)

const lockPollInterval = 100 * time.Millisecond

// Store is the concrete Db implementation used by the CLI.
type Store struct {
	dir  string
	conn *sql.DB
	lock *flock.Flock
}

// Open opens (creating if necessary) the SQLite database rooted at dir,
// running pending goose migrations.
func Open(ctx context.Context, dir string) (*Store, error) {
	conn, err := sql.Open("sqlite", filepath.Join(dir, "local.sqlite"))
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging local database: %w", err)
	}
	if err := migrate(ctx, conn); err != nil {
		return nil, err
	}
	return &Store{
		dir:  dir,
		conn: conn,
		lock: flock.New(filepath.Join(dir, ".opkg.lock")),
	}, nil
}

func (s *Store) Close() error { return s.conn.Close() }

// Lock acquires the session-wide exclusive advisory lock (spec §5).
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	ok, err := s.lock.TryLockContext(ctx, lockPollInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring database lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("database is locked by another process")
	}
	return func() error { return s.lock.Unlock() }, nil
}

var _ jobs.Db = (*Store)(nil)
