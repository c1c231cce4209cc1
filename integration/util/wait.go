//go:build integration

package util

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// WaitPostgresReady polls pg_isready inside container until it returns 0.
func WaitPostgresReady(ctx context.Context, container string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ready := exec.CommandContext(ctx, "docker", "exec", container, "pg_isready", "-U", "postgres")
		if err := ready.Run(); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s did not become ready", container)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// Psql runs one statement as postgres in container and returns trimmed
// unaligned output.
func Psql(ctx context.Context, container, database, sql string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", "exec", "-u", "postgres", container,
		"psql", "-X", "-A", "-t", "-v", "ON_ERROR_STOP=1", "-d", database, "-c", sql)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("psql %q: %w\n%s", sql, err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}
