package process

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Spec describes one external process invocation.
// Env entries are appended to the current environment (KEY=VALUE).
type Spec struct {
	Bin  string
	Args []string
	Env  []string
}

// Result содержит данные о выполненной команде.
type Result struct {
	Cmd      string
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	Err      error
}

// Run executes the process described by s, logging start/end and collecting
// stdout and stderr separately. It always waits for the process to exit.
// The child runs in its own process group.
func Run(ctx context.Context, s Spec) Result {
	cmd := exec.CommandContext(ctx, s.Bin, s.Args...)
	// own process group: a terminal Ctrl-C must not reach pg_dump or psql
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	slog.Info("exec start", "cmd", s.Bin, "args", s.Args)
	start := time.Now()

	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	slog.Info("exec done", "cmd", s.Bin, "code", exitCode, "dur", duration, "err", err)

	return Result{
		Cmd:      s.Bin,
		Args:     s.Args,
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
		Err:      err,
	}
}
