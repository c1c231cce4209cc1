package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vbp1/pgdbcopy/internal/pgtool"
)

// Connect establishes a pgx pool to database. Parameters absent from p are
// taken from the libpq-compatible environment (PGHOST, PGPORT, PGUSER,
// PGPASSWORD, ~/.pgpass) exactly like the command line tools do.
// maxConns=0 uses pgx default.
func Connect(ctx context.Context, p pgtool.ConnParams, database string, maxConns int32) (*pgxpool.Pool, error) {
	if p.Port < 0 || p.Port > 65535 {
		return nil, fmt.Errorf("port out of range: %d", p.Port)
	}
	cfg, err := pgxpool.ParseConfig("")
	if err != nil {
		return nil, err
	}
	cc := cfg.ConnConfig
	if p.Host != "" {
		cc.Host = p.Host
	}
	if p.Port != 0 {
		cc.Port = uint16(p.Port)
	}
	if p.Username != "" {
		cc.User = p.Username
	}
	if p.Password != "" {
		cc.Password = p.Password
	}
	if database != "" {
		cc.Database = database
	}
	cc.RuntimeParams["application_name"] = "pgdbcopy"

	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// ping
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PrettyBytes converts bytes to human-readable IEC units similar to pg_size_pretty.
func PrettyBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d bytes", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(b) / float64(div)
	suffix := []string{"kB", "MB", "GB", "TB", "PB", "EB"}[exp]
	return fmt.Sprintf("%.2f %s", value, suffix)
}
