package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RowHandler is called for every row; data holds the column values.
// A handler error stops reading and is returned to the caller.
type RowHandler func(data []any) error

// Queryer minimal subset of pgxpool.Pool needed for streaming.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// StreamRows runs sql and feeds each row to handler.
// Rows are not buffered in memory.
// colsExpected is the expected column count; 0 disables the check, a
// mismatch stops reading.
func StreamRows(ctx context.Context, q Queryer, sql string, args []any, colsExpected int, handler RowHandler) error {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		if colsExpected > 0 && len(vals) != colsExpected {
			return fmt.Errorf("stream: got %d columns, want %d", len(vals), colsExpected)
		}
		if err := handler(vals); err != nil {
			return err
		}
	}
	return rows.Err()
}
