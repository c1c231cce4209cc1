package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/vbp1/pgdbcopy/internal/pgtool"
)

// Conn is the subset of *pgxpool.Pool used for administrative work.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Dialer opens an administrative session to database.
type Dialer func(ctx context.Context, p pgtool.ConnParams, database string) (Conn, error)

// Admin runs administrative queries through a session on the maintenance
// database, never on the database being inspected.
type Admin struct {
	MaintenanceDB string
	Defaults      pgtool.ConnParams
	Dial          Dialer
}

// NewAdmin returns an Admin backed by a single-connection pgx pool.
func NewAdmin(maintenanceDB string, defaults pgtool.ConnParams) *Admin {
	return &Admin{
		MaintenanceDB: maintenanceDB,
		Defaults:      defaults,
		Dial: func(ctx context.Context, p pgtool.ConnParams, database string) (Conn, error) {
			return Connect(ctx, p, database, 1)
		},
	}
}

func (a *Admin) open(ctx context.Context, p pgtool.ConnParams) (Conn, error) {
	db := a.MaintenanceDB
	if db == "" {
		db = "postgres"
	}
	conn, err := a.Dial(ctx, p.Merge(a.Defaults), db)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", db, err)
	}
	return conn, nil
}

// DatabaseExists reports whether a database called name exists.
func (a *Admin) DatabaseExists(ctx context.Context, name string, p pgtool.ConnParams) (bool, error) {
	conn, err := a.open(ctx, p)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("query pg_database: %w", err)
	}
	return exists, nil
}

const listSessionsSQL = `SELECT pid FROM pg_stat_activity
                          WHERE datname = $1 AND pid <> pg_backend_pid()`

// Terminate ends every session connected to database, except our own.
// Each backend gets pg_cancel_backend followed by pg_terminate_backend; the
// first failing signal aborts the loop. There is no retry here, the caller
// decides what to do next.
func (a *Admin) Terminate(ctx context.Context, database string, p pgtool.ConnParams) error {
	conn, err := a.open(ctx, p)
	if err != nil {
		return err
	}
	defer conn.Close()

	pids, err := ListSessions(ctx, conn, database)
	if err != nil {
		return err
	}
	slog.Info("terminating sessions", "db", database, "count", len(pids))

	for _, pid := range pids {
		var ok bool
		if err := conn.QueryRow(ctx, `SELECT pg_cancel_backend($1)`, pid).Scan(&ok); err != nil {
			return fmt.Errorf("pg_cancel_backend(%d): %w", pid, err)
		}
		if err := conn.QueryRow(ctx, `SELECT pg_terminate_backend($1)`, pid).Scan(&ok); err != nil {
			return fmt.Errorf("pg_terminate_backend(%d): %w", pid, err)
		}
		slog.Debug("session terminated", "db", database, "pid", pid, "signalled", ok)
	}
	return nil
}

// ListSessions returns backend pids connected to database, excluding the
// session running the query.
func ListSessions(ctx context.Context, q Queryer, database string) ([]int32, error) {
	var pids []int32
	err := StreamRows(ctx, q, listSessionsSQL, []any{database}, 1, func(data []any) error {
		switch v := data[0].(type) {
		case int32:
			pids = append(pids, v)
		case int64:
			pids = append(pids, int32(v))
		case int:
			pids = append(pids, int32(v))
		default:
			return fmt.Errorf("unexpected pid type %T", data[0])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions of %s: %w", database, err)
	}
	return pids, nil
}
