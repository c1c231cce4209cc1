// Package pgtool runs PostgreSQL client tools (dropdb, createdb, pg_dump,
// psql) and turns their output into typed results.
//
// The tools have no structured status contract we rely on: any text on
// stderr means the invocation failed. That rule is applied here and nowhere
// else; callers only see Output.Err.
package pgtool

import (
	"context"
	"fmt"
	"strings"

	"github.com/vbp1/pgdbcopy/internal/process"
)

// Executor runs one external process. process.Run is the production value.
type Executor func(ctx context.Context, s process.Spec) process.Result

// ToolError reports a failed tool invocation with its diagnostic text.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	switch {
	case e.Stderr != "":
		return e.Stderr
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	default:
		return e.Tool + ": failed"
	}
}

func (e *ToolError) Unwrap() error { return e.Err }

// Output is the captured result of one tool invocation.
type Output struct {
	Stdout string
	Stderr string
	err    error
}

// Err returns nil on success or a *ToolError.
func (o Output) Err() error { return o.err }

// Runner builds the execution environment for tool invocations.
type Runner struct {
	// Defaults fill connection parameters absent from a call.
	Defaults ConnParams
	// Exec defaults to process.Run.
	Exec Executor
}

// NewRunner returns a Runner using process.Run.
func NewRunner(defaults ConnParams) *Runner {
	return &Runner{Defaults: defaults, Exec: process.Run}
}

// Run executes c with connection parameters p merged over r.Defaults.
// The password travels in PGPASSWORD, never on the command line.
// Exactly one process is spawned; there are no retries at this layer.
func (r *Runner) Run(ctx context.Context, c Command, p ConnParams) Output {
	p = p.Merge(r.Defaults)
	args := append(p.Flags(), c.Args...)

	run := r.Exec
	if run == nil {
		run = process.Run
	}
	res := run(ctx, process.Spec{Bin: c.Bin, Args: args, Env: p.Env()})

	out := Output{
		Stdout: string(res.Stdout),
		Stderr: strings.TrimSpace(string(res.Stderr)),
	}
	if out.Stderr != "" || res.Err != nil {
		out.err = &ToolError{Tool: c.Name(), Stderr: out.Stderr, Err: res.Err}
	}
	return out
}
