//go:build integration

package integration

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vbp1/pgdbcopy/integration/util"
)

const seed = `
CREATE TABLE ir_cron (id serial PRIMARY KEY, name text, active boolean NOT NULL);
INSERT INTO ir_cron (name, active) VALUES ('mail queue', true), ('backup', true);
CREATE TABLE orders (id int PRIMARY KEY, total numeric);
INSERT INTO orders SELECT g, g * 1.5 FROM generate_series(1, 1000) g;
`

func pgdbcopy(ctx context.Context, container string, args ...string) ([]byte, error) {
	base := []string{"exec", "-u", "postgres", "-e", "PGDBCOPY_SOURCE_PASSWORD=postgres", "-e", "PGDBCOPY_TARGET_PASSWORD=postgres",
		container, "pgdbcopy", "--host", "localhost", "--username", "postgres",
		"--notify-from", "ops@example.com", "--user", "alice", "--progress", "plain", "--verbose"}
	return exec.CommandContext(ctx, "docker", append(base, args...)...).CombinedOutput()
}

func TestCloneTwice(t *testing.T) {
	require := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	project := "pgdbcopy"
	teardown, err := util.StartCompose(ctx, filepath.Join("compose.yml"), project)
	require.NoError(err)
	defer teardown()

	pg := fmt.Sprintf("%s-pg-1", project)
	require.NoError(util.WaitPostgresReady(ctx, pg, time.Minute))
	repoRoot, err := filepath.Abs("..")
	require.NoError(err)
	require.NoError(util.InstallBinary(ctx, repoRoot, pg))

	_, err = util.Psql(ctx, pg, "postgres", "CREATE DATABASE shop")
	require.NoError(err)
	_, err = util.Psql(ctx, pg, "shop", seed)
	require.NoError(err)

	// first run: target absent
	out, err := pgdbcopy(ctx, pg, "--source", "shop")
	require.NoErrorf(err, "pgdbcopy failed: %s", out)
	require.Contains(string(out), "Success(shop -> shop_test)")

	n, err := util.Psql(ctx, pg, "shop_test", "SELECT count(*) FROM orders")
	require.NoError(err)
	require.Equal("1000", n)
	active, err := util.Psql(ctx, pg, "shop_test", "SELECT count(*) FROM ir_cron WHERE active")
	require.NoError(err)
	require.Equal("0", active)
	active, err = util.Psql(ctx, pg, "shop", "SELECT count(*) FROM ir_cron WHERE active")
	require.NoError(err)
	require.Equal("2", active, "source must stay untouched")

	// second run with a session holding the target open
	hold := exec.CommandContext(ctx, "docker", "exec", "-u", "postgres", pg, "psql", "-d", "shop_test", "-c", "SELECT pg_sleep(600)")
	require.NoError(hold.Start())
	defer func() { _ = hold.Process.Kill() }()
	time.Sleep(2 * time.Second)

	out, err = pgdbcopy(ctx, pg, "--source", "shop", "--target", "shop_test")
	require.NoErrorf(err, "second pgdbcopy failed: %s", out)
	require.Contains(string(out), "Success(shop -> shop_test)")

	// unsafe target never reaches the server
	out, err = pgdbcopy(ctx, pg, "--source", "shop", "--target", "shop")
	require.Error(err)
	require.Contains(string(out), "preflight rejected")
	n, err = util.Psql(ctx, pg, "shop", "SELECT count(*) FROM orders")
	require.NoError(err)
	require.Equal("1000", n)
}
