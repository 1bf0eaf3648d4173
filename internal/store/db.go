package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/mesh-intelligence/tagall/pkg/types"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn in a transaction on db, committing when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return types.Internal("beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return types.Internal("committing transaction", err)
	}
	return nil
}

// inTx runs fn in a transaction on the guard's current connection.
func inTx(ctx context.Context, g *Guard, fn func(tx *sql.Tx) error) error {
	return g.Do(ctx, func(c *Conn) error {
		return withTx(ctx, c.DB, fn)
	})
}

// requireAffected returns a NotFound error built from format when res touched
// no row.
func requireAffected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return types.Internal("reading affected rows", err)
	}
	if n == 0 {
		return types.NotFound(format, args...)
	}
	return nil
}

// renumberTx reads (key, position) rows with sel, in the order that should
// become 0..n-1, and rewrites each position that differs through set. All
// rows are read before any write.
func renumberTx(ctx context.Context, q queryer, sel string, selArgs []any, set func(key int64, pos int) error) error {
	rows, err := q.QueryContext(ctx, sel, selArgs...)
	if err != nil {
		return types.Internal("reading positions", err)
	}
	type slot struct {
		key int64
		pos int
	}
	var slots []slot
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.key, &s.pos); err != nil {
			rows.Close()
			return types.Internal("scanning positions", err)
		}
		slots = append(slots, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.Internal("reading positions", err)
	}

	for i, s := range slots {
		if s.pos == i {
			continue
		}
		if err := set(s.key, i); err != nil {
			return types.Internal("renumbering positions", err)
		}
	}
	return nil
}

func nullInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
