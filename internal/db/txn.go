package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opkgtool/opkg/internal/jobs"
)

// transaction implements jobs.Txn over a single *sql.Tx with named
// savepoints, per spec §4.7/§5's repeating-savepoint transaction model.
type transaction struct {
	tx *sql.Tx
}

// Begin opens the top-level transaction and its first named savepoint.
func (s *Store) Begin(ctx context.Context, savepoint string) (jobs.Txn, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	t := &transaction{tx: tx}
	if err := t.Savepoint(ctx, savepoint); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return t, nil
}

func (t *transaction) Savepoint(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("SAVEPOINT %s", name))
	return err
}

// Release commits the named savepoint; if reopen is true (the normal
// per-cluster-boundary case of spec §4.7 step 3) it immediately reopens a
// savepoint of the same name so the outer transaction keeps accumulating.
func (t *transaction) Release(ctx context.Context, name string, reopen bool) error {
	if _, err := t.tx.ExecContext(ctx, fmt.Sprintf("RELEASE SAVEPOINT %s", name)); err != nil {
		return err
	}
	if reopen {
		return t.Savepoint(ctx, name)
	}
	return nil
}

func (t *transaction) Rollback(ctx context.Context, name string) error {
	_, err := t.tx.ExecContext(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", name))
	if err != nil {
		return err
	}
	return t.tx.Rollback()
}

func (t *transaction) Commit(ctx context.Context) error {
	return t.tx.Commit()
}
