//go:build integration

package util

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// StartCompose brings up the docker compose stack and returns a teardown func.
// projectName becomes docker compose -p <name>.
func StartCompose(ctx context.Context, composeFile, projectName string) (func() error, error) {
	absCompose, err := filepath.Abs(composeFile)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}

	up := exec.CommandContext(ctx, "docker", "compose", "-f", absCompose, "-p", projectName, "up", "-d")
	if out, err := up.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("docker compose up: %w\n%s", err, string(out))
	}

	teardown := func() error {
		downCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return exec.CommandContext(downCtx, "docker", "compose", "-f", absCompose, "-p", projectName, "down", "-v").Run()
	}
	return teardown, nil
}

// InstallBinary cross-compiles ./cmd/pgdbcopy and copies it into container
// as /usr/local/bin/pgdbcopy.
func InstallBinary(ctx context.Context, repoRoot, container string) error {
	bin := filepath.Join(repoRoot, "integration", "pgdbcopy.linux")
	build := exec.CommandContext(ctx, "go", "build", "-o", bin, "./cmd/pgdbcopy")
	build.Dir = repoRoot
	build.Env = append(build.Environ(), "CGO_ENABLED=0", "GOOS=linux")
	if out, err := build.CombinedOutput(); err != nil {
		return fmt.Errorf("go build: %w\n%s", err, string(out))
	}
	cp := exec.CommandContext(ctx, "docker", "cp", bin, container+":/usr/local/bin/pgdbcopy")
	if out, err := cp.CombinedOutput(); err != nil {
		return fmt.Errorf("docker cp: %w\n%s", err, string(out))
	}
	return nil
}
