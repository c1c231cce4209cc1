// Package supervisor accepts clone requests, validates them synchronously
// and runs them in the background.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/vbp1/pgdbcopy/internal/clone"
	"github.com/vbp1/pgdbcopy/internal/pgtool"
	"github.com/vbp1/pgdbcopy/internal/util/disk"
)

// Runner executes one clone to its outcome; *clone.Orchestrator in production.
type Runner interface {
	Run(ctx context.Context, req clone.Request) clone.Outcome
}

// AddressResolver finds where the outcome of a user's clone will be sent.
type AddressResolver interface {
	Resolve(user string) (from string, to []string, err error)
}

// Config holds preflight and pool settings.
type Config struct {
	Rules clone.Rules

	// MaxConcurrent bounds clones running at the same time; 0 means 1.
	MaxConcurrent int64

	// Tools must be resolvable by LookPath (exec.LookPath when nil).
	Tools    []string
	LookPath pgtool.LookPathFunc

	// MinFreeBytes required where the dump will be written.
	MinFreeBytes uint64

	// Notifier receives the outcome of a run that panicked before it could
	// notify on its own. Optional.
	Notifier clone.Notifier

	// OnFinish, if set, is called with every outcome after its notification.
	OnFinish func(Ticket, clone.Outcome)
}

// Ticket acknowledges an accepted request. It is not a handle to wait on.
type Ticket struct {
	ID          string
	Source      string
	Target      string
	SubmittedAt time.Time
}

// Supervisor launches accepted requests on a bounded pool of goroutines.
type Supervisor struct {
	cfg      Config
	runner   Runner
	resolver AddressResolver

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// New returns a Supervisor.
func New(cfg Config, runner Runner, resolver AddressResolver) *Supervisor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Supervisor{
		cfg:      cfg,
		runner:   runner,
		resolver: resolver,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// Preflight validates req without side effects. Every failure is a
// *clone.PreflightError.
func (s *Supervisor) Preflight(req clone.Request) error {
	if err := s.cfg.Rules.Validate(req); err != nil {
		return err
	}
	if s.resolver != nil {
		if _, _, err := s.resolver.Resolve(req.RequestingUser); err != nil {
			return clone.Rejectf("%v", err)
		}
	}
	if len(s.cfg.Tools) > 0 {
		if err := pgtool.Require(s.cfg.LookPath, s.cfg.Tools...); err != nil {
			return clone.Rejectf("%v", err)
		}
	}
	if s.cfg.MinFreeBytes > 0 {
		dir := req.Dump.Dir
		if req.Dump.Temporary() {
			dir = os.TempDir()
		}
		if err := disk.EnsureSpace(map[string]uint64{dir: s.cfg.MinFreeBytes}); err != nil {
			return clone.Rejectf("%v", err)
		}
	}
	return nil
}

// Submit runs preflight and, if it passes, starts the clone in the
// background and returns at once. The run does not inherit any caller
// context: it outlives the request that triggered it.
func (s *Supervisor) Submit(req clone.Request) (Ticket, error) {
	if err := s.Preflight(req); err != nil {
		slog.Warn("clone request rejected", "source", req.SourceDatabase, "target", req.TargetDatabase, "err", err)
		return Ticket{}, err
	}

	t := Ticket{
		ID:          uuid.NewString(),
		Source:      req.SourceDatabase,
		Target:      req.TargetDatabase,
		SubmittedAt: time.Now(),
	}
	slog.Info("clone request accepted", "ticket", t.ID, "source", t.Source, "target", t.Target, "dump", req.Dump)

	s.wg.Add(1)
	go s.work(t, req)
	return t, nil
}

func (s *Supervisor) work(t Ticket, req clone.Request) {
	defer s.wg.Done()
	ctx := context.Background()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		slog.Error("clone run panicked", "ticket", t.ID, "panic", r, "stack", string(debug.Stack()))
		out := clone.Outcome{
			Source:  req.SourceDatabase,
			Target:  req.TargetDatabase,
			Stage:   clone.StageAborted,
			Detail:  fmt.Sprintf("panic: %v", r),
			Elapsed: time.Since(t.SubmittedAt),
		}
		if s.cfg.Notifier != nil {
			s.cfg.Notifier.Notify(ctx, req.RequestingUser, out)
		}
		s.finish(t, out)
	}()

	// cannot fail with a background context
	_ = s.sem.Acquire(ctx, 1)
	defer s.sem.Release(1)

	s.finish(t, s.runner.Run(ctx, req))
}

func (s *Supervisor) finish(t Ticket, out clone.Outcome) {
	slog.Info("clone finished", "ticket", t.ID, "outcome", out.String(), "elapsed", out.Elapsed)
	if s.cfg.OnFinish != nil {
		s.cfg.OnFinish(t, out)
	}
}

// Wait blocks until every accepted clone has finished. It exists for
// process shutdown only.
func (s *Supervisor) Wait() { s.wg.Wait() }
