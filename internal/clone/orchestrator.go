package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbp1/pgdbcopy/internal/debug"
	"github.com/vbp1/pgdbcopy/internal/dumpfile"
	"github.com/vbp1/pgdbcopy/internal/pgtool"
	"github.com/vbp1/pgdbcopy/internal/postgres"
)

// CommandRunner executes one administrative tool invocation.
type CommandRunner interface {
	Run(ctx context.Context, c pgtool.Command, p pgtool.ConnParams) pgtool.Output
}

// Catalog answers whether a database exists.
type Catalog interface {
	DatabaseExists(ctx context.Context, name string, p pgtool.ConnParams) (bool, error)
}

// SessionTerminator ends open sessions on a database so it can be dropped.
type SessionTerminator interface {
	Terminate(ctx context.Context, database string, p pgtool.ConnParams) error
}

// Notifier delivers the outcome. Delivery problems are its own business.
type Notifier interface {
	Notify(ctx context.Context, user string, o Outcome)
}

// Orchestrator sequences drop, create, dump, restore and post-processing
// for one clone request at a time per Run call.
type Orchestrator struct {
	cfg *Config

	runner     CommandRunner
	catalog    Catalog
	terminator SessionTerminator
	notifier   Notifier

	observe Observer
	now     func() time.Time
}

// New wires an Orchestrator. observe may be nil.
func New(cfg *Config, runner CommandRunner, catalog Catalog, terminator SessionTerminator, notifier Notifier, observe Observer) *Orchestrator {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	return &Orchestrator{
		cfg:        cfg,
		runner:     runner,
		catalog:    catalog,
		terminator: terminator,
		notifier:   notifier,
		observe:    observe,
		now:        time.Now,
	}
}

// errSkipped marks a stage that had nothing to do.
var errSkipped = errors.New("skipped")

// run keeps state across the steps of one clone.
type run struct {
	o   *Orchestrator
	req Request
	log *slog.Logger

	dump *dumpfile.File
}

// Close releases the temporary dump; safe to call multiple times.
func (r *run) Close() error {
	if err := r.dump.Remove(); err != nil {
		return fmt.Errorf("remove dump %s: %w", r.dump.Path, err)
	}
	return nil
}

// Run executes the full clone pipeline and returns its outcome. The
// notification for that outcome has been handed to the Notifier exactly once
// when Run returns. Run is not cancellable: ctx cancellation is ignored so
// that no stage is cut short.
func (o *Orchestrator) Run(ctx context.Context, req Request) Outcome {
	ctx = context.WithoutCancel(ctx)
	start := o.now()
	r := &run{
		o:   o,
		req: req,
		log: slog.With("source", req.SourceDatabase, "target", req.TargetDatabase),
	}

	out := r.execute(ctx)

	// Runs on every path; a cleanup error is only logged.
	_ = o.stage(r.log, StageCleanup, r.cleanup)
	out.Elapsed = o.now().Sub(start)

	if out.Succeeded() {
		r.log.Info("clone completed", "elapsed", out.Elapsed)
	} else {
		r.log.Warn("clone failed", "stage", out.Stage, "detail", out.Detail)
	}

	_ = o.stage(r.log, StageNotify, func() error {
		if o.notifier != nil {
			o.notifier.Notify(ctx, req.RequestingUser, out)
		}
		return nil
	})
	return out
}

// cleanup removes a temporary dump, or prunes old durable dumps when a
// retention limit is configured.
func (r *run) cleanup() error {
	if r.dump != nil && r.dump.Temporary() {
		return r.Close()
	}
	if r.req.Dump.Temporary() || r.req.Dump.Keep <= 0 {
		return errSkipped
	}
	var errs []error
	for _, db := range []string{r.req.SourceDatabase, r.req.TargetDatabase} {
		removed, err := dumpfile.Prune(r.req.Dump, db)
		if len(removed) > 0 {
			r.log.Info("old dumps pruned", "db", db, "files", removed)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *run) execute(ctx context.Context) Outcome {
	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageDropTarget, r.stepDropTarget},
		{StageCreateTarget, r.stepCreateTarget},
		{StageDumpSource, r.stepDumpSource},
		{StageRestoreTarget, r.stepRestoreTarget},
		{StagePostProcess, r.stepPostProcess},
	}
	for _, s := range steps {
		debug.StopIf(string(s.stage))
		if err := r.o.stage(r.log, s.stage, func() error { return s.fn(ctx) }); err != nil {
			return Outcome{
				Source: r.req.SourceDatabase,
				Target: r.req.TargetDatabase,
				Stage:  s.stage,
				Detail: err.Error(),
			}
		}
	}
	return Outcome{Source: r.req.SourceDatabase, Target: r.req.TargetDatabase}
}

// stage runs fn as stage s, logging and reporting to the observer.
// A skipped stage counts as success.
func (o *Orchestrator) stage(log *slog.Logger, s Stage, fn func() error) error {
	o.emit(Event{Stage: s, State: StateRunning})
	log.Info("stage start", "stage", s)

	err := guard(fn)
	switch {
	case errors.Is(err, errSkipped):
		log.Info("stage skipped", "stage", s)
		o.emit(Event{Stage: s, State: StateSkipped})
		return nil
	case err != nil:
		log.Error("stage failed", "stage", s, "err", err)
		o.emit(Event{Stage: s, State: StateFailed, Err: err})
		return err
	}
	log.Info("stage done", "stage", s)
	o.emit(Event{Stage: s, State: StateDone})
	return nil
}

// guard turns a panic in fn into an error so the run still reaches its
// outcome and notification.
func guard(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func (o *Orchestrator) emit(e Event) {
	if o.observe != nil {
		o.observe(e)
	}
}

// stepDropTarget removes an existing target. A busy target gets its sessions
// terminated and exactly one more drop attempt.
func (r *run) stepDropTarget(ctx context.Context) error {
	target, creds := r.req.TargetDatabase, r.req.TargetCredentials

	exists, err := r.o.catalog.DatabaseExists(ctx, target, creds)
	if err != nil {
		return fmt.Errorf("check target exists: %w", err)
	}
	if !exists {
		return errSkipped
	}

	if !r.req.Dump.Temporary() {
		if err := r.backupTarget(ctx); err != nil {
			return err
		}
	}

	err = r.o.runner.Run(ctx, pgtool.DropDB(target), creds).Err()
	if err == nil {
		return nil
	}
	r.log.Warn("drop failed, terminating sessions", "err", err)

	if terr := r.o.terminator.Terminate(ctx, target, creds); terr != nil {
		return fmt.Errorf("%v\nterminate sessions: %w", err, terr)
	}
	return r.o.runner.Run(ctx, pgtool.DropDB(target), creds).Err()
}

// backupTarget keeps a dump of the target as it was before the drop.
func (r *run) backupTarget(ctx context.Context) error {
	f, err := dumpfile.New(r.req.Dump, r.req.TargetDatabase, r.o.now())
	if err != nil {
		return err
	}
	if err := r.o.runner.Run(ctx, pgtool.Dump(r.req.TargetDatabase, f.Path), r.req.TargetCredentials).Err(); err != nil {
		r.discard(f)
		return fmt.Errorf("backup target before drop: %w", err)
	}
	r.log.Info("target backed up", "file", f.Path, "size", postgres.PrettyBytes(f.Size()))
	return nil
}

// discard removes an incomplete dump; a failure is only logged.
func (r *run) discard(f *dumpfile.File) {
	if err := f.Discard(); err != nil {
		r.log.Warn("remove incomplete dump", "file", f.Path, "err", err)
	}
}

// stepCreateTarget creates an empty target from the blank template.
func (r *run) stepCreateTarget(ctx context.Context) error {
	c := pgtool.CreateDB(r.req.TargetDatabase, r.req.TargetCredentials.Username, r.o.cfg.Template)
	return r.o.runner.Run(ctx, c, r.req.TargetCredentials).Err()
}

// stepDumpSource writes a full logical dump of the source.
func (r *run) stepDumpSource(ctx context.Context) error {
	f, err := dumpfile.New(r.req.Dump, r.req.SourceDatabase, r.o.now())
	if err != nil {
		return err
	}
	r.dump = f
	if err := r.o.runner.Run(ctx, pgtool.Dump(r.req.SourceDatabase, f.Path), r.req.SourceCredentials).Err(); err != nil {
		if !f.Temporary() {
			r.discard(f)
		}
		return err
	}
	r.log.Info("source dumped", "file", f.Path, "size", postgres.PrettyBytes(f.Size()), "policy", r.req.Dump)
	return nil
}

// stepRestoreTarget replays the dump into the target.
func (r *run) stepRestoreTarget(ctx context.Context) error {
	return r.o.runner.Run(ctx, pgtool.Restore(r.req.TargetDatabase, r.dump.Path), r.req.TargetCredentials).Err()
}

// stepPostProcess deactivates scheduled jobs in the clone. The data is
// already complete at this point; a failure only flags manual follow-up.
func (r *run) stepPostProcess(ctx context.Context) error {
	if len(r.o.cfg.PostProcess) == 0 {
		return errSkipped
	}
	for _, sql := range r.o.cfg.PostProcess {
		if err := r.o.runner.Run(ctx, pgtool.Statement(r.req.TargetDatabase, sql), r.req.TargetCredentials).Err(); err != nil {
			return err
		}
	}
	return nil
}
