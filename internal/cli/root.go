package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vbp1/pgdbcopy/internal/clone"
	"github.com/vbp1/pgdbcopy/internal/config"
	"github.com/vbp1/pgdbcopy/internal/dumpfile"
	"github.com/vbp1/pgdbcopy/internal/lock"
	"github.com/vbp1/pgdbcopy/internal/log"
	"github.com/vbp1/pgdbcopy/internal/notify"
	"github.com/vbp1/pgdbcopy/internal/pgtool"
	"github.com/vbp1/pgdbcopy/internal/postgres"
	"github.com/vbp1/pgdbcopy/internal/progress"
	"github.com/vbp1/pgdbcopy/internal/supervisor"
	"github.com/vbp1/pgdbcopy/internal/util/signalctx"
)

// Env vars holding per-side passwords; never passed as flags.
const (
	EnvSourcePassword = "PGDBCOPY_SOURCE_PASSWORD"
	EnvTargetPassword = "PGDBCOPY_TARGET_PASSWORD"
)

// Flags holds values of CLI flags.
type Flags struct {
	ConfigPath string

	Source string
	Target string
	User   string

	Host     string
	Port     int
	Username string

	SourceHost     string
	SourcePort     int
	SourceUsername string
	TargetHost     string
	TargetPort     int
	TargetUsername string

	DumpDir    string
	Keep       int
	NotifyFrom string

	Debug    bool
	Verbose  bool
	LogJSON  bool
	Progress string
}

// ErrCloneFailed is returned when an accepted clone ends in Failed.
var ErrCloneFailed = errors.New("clone failed")

// NewRootCmd builds the pgdbcopy command.
func NewRootCmd() *cobra.Command {
	fl := &Flags{}
	cmd := &cobra.Command{
		Use:   "pgdbcopy --source DB [--target DB]",
		Short: "Copy a PostgreSQL database into a disposable test database",
		Long: "pgdbcopy drops the target database, recreates it and fills it with a dump of the source.\n" +
			"The target must carry the configured marker and may never be the live database.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, fl)
		},
	}

	f := cmd.Flags()
	f.StringVar(&fl.ConfigPath, "config", "", "YAML configuration file")
	f.StringVar(&fl.Source, "source", "", "Source database (required)")
	f.StringVar(&fl.Target, "target", "", "Target database (default: source + target marker)")
	f.StringVar(&fl.User, "user", "", "Requesting user, selects the notification address (default: current OS user)")
	f.StringVar(&fl.Host, "host", "", "Default server host")
	f.IntVar(&fl.Port, "port", 0, "Default server port")
	f.StringVar(&fl.Username, "username", "", "Default role")
	f.StringVar(&fl.SourceHost, "source-host", "", "Host for source operations")
	f.IntVar(&fl.SourcePort, "source-port", 0, "Port for source operations")
	f.StringVar(&fl.SourceUsername, "source-username", "", "Role for source operations")
	f.StringVar(&fl.TargetHost, "target-host", "", "Host for target operations")
	f.IntVar(&fl.TargetPort, "target-port", 0, "Port for target operations")
	f.StringVar(&fl.TargetUsername, "target-username", "", "Role for target operations; owns the new database")
	f.StringVar(&fl.DumpDir, "dump-dir", "", "Keep dumps in this directory instead of a temporary one")
	f.IntVar(&fl.Keep, "keep", 0, "Durable dumps retained per database (0 = all)")
	f.StringVar(&fl.NotifyFrom, "notify-from", "", "Sender and fallback recipient of the outcome mail")
	f.BoolVar(&fl.Debug, "debug", false, "Enable debug trace output")
	f.BoolVar(&fl.Verbose, "verbose", false, "Verbose output")
	f.BoolVar(&fl.LogJSON, "log-json", false, "Log as JSON")
	f.StringVar(&fl.Progress, "progress", "auto", "Progress display mode: auto|bar|plain|none")

	_ = cmd.MarkFlagRequired("source")
	return cmd
}

// Execute parses flags and runs the root command.
func Execute() error { return NewRootCmd().Execute() }

// loadConfig reads the config file and applies explicitly set flags over it.
func loadConfig(cmd *cobra.Command, fl *Flags) (*config.Config, error) {
	cfg, err := config.Load(fl.ConfigPath)
	if err != nil {
		return nil, err
	}
	set := cmd.Flags().Changed
	if set("host") {
		cfg.Connection.Host = fl.Host
	}
	if set("port") {
		cfg.Connection.Port = fl.Port
	}
	if set("username") {
		cfg.Connection.Username = fl.Username
	}
	if set("dump-dir") {
		cfg.Dump.Dir = fl.DumpDir
	}
	if set("keep") {
		cfg.Dump.Keep = fl.Keep
	}
	if set("notify-from") {
		cfg.Notify.From = fl.NotifyFrom
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildRequest resolves defaults for target, user and credentials.
func buildRequest(cfg *config.Config, fl *Flags) (clone.Request, error) {
	req := clone.Request{
		SourceDatabase: fl.Source,
		TargetDatabase: fl.Target,
		RequestingUser: fl.User,
		SourceCredentials: pgtool.ConnParams{
			Host: fl.SourceHost, Port: fl.SourcePort, Username: fl.SourceUsername,
			Password: os.Getenv(EnvSourcePassword),
		},
		TargetCredentials: pgtool.ConnParams{
			Host: fl.TargetHost, Port: fl.TargetPort, Username: fl.TargetUsername,
			Password: os.Getenv(EnvTargetPassword),
		},
		Dump: dumpfile.Policy{Dir: cfg.Dump.Dir, Keep: cfg.Dump.Keep},
	}
	for _, pf := range []struct {
		flag string
		port int
	}{{"source-port", fl.SourcePort}, {"target-port", fl.TargetPort}} {
		if err := checkPort(pf.flag, pf.port); err != nil {
			return clone.Request{}, err
		}
	}
	if req.TargetDatabase == "" {
		req.TargetDatabase = cfg.Rules().DefaultTarget(req.SourceDatabase)
	}
	if req.RequestingUser == "" {
		u, err := user.Current()
		if err != nil {
			return clone.Request{}, fmt.Errorf("resolve requesting user: %w", err)
		}
		req.RequestingUser = u.Username
	}
	return req, nil
}

// checkPort accepts 0 (unset) or a valid TCP port.
func checkPort(flag string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("--%s out of range: %d", flag, port)
	}
	return nil
}

func newMailer(s config.SMTP) notify.Mailer {
	if s.Host == "" {
		return notify.LogMailer{}
	}
	return &notify.SMTPMailer{Host: s.Host, Port: s.Port, Username: s.Username, Password: s.Password}
}

func run(cmd *cobra.Command, fl *Flags) error {
	log.Setup(log.Options{Debug: fl.Debug, Verbose: fl.Verbose, JSON: fl.LogJSON, Out: cmd.ErrOrStderr()})

	mode, err := progress.ParseMode(fl.Progress)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, fl)
	if err != nil {
		return err
	}
	req, err := buildRequest(cfg, fl)
	if err != nil {
		return err
	}

	tp := req.TargetCredentials.Merge(cfg.Connection)
	lk := lock.ForTarget(tp.Host, tp.Port, req.TargetDatabase)
	ok, err := lk.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", lk.Path(), err)
	}
	if !ok {
		return fmt.Errorf("another pgdbcopy is already cloning into %s (lock %s)", req.TargetDatabase, lk.Path())
	}
	defer func() { _ = lk.Unlock() }()

	display := progress.New(mode, cmd.ErrOrStderr(), req.TargetDatabase)
	admin := postgres.NewAdmin(cfg.MaintenanceDatabase, cfg.Connection)
	notifier := notify.New(
		notify.Config{From: cfg.Notify.From, OpsMailbox: cfg.Notify.OpsMailbox},
		notify.Users(cfg.Notify.Users),
		newMailer(cfg.Notify.SMTP),
	)
	orch := clone.New(
		&clone.Config{Template: cfg.Template, PostProcess: cfg.PostProcess},
		pgtool.NewRunner(cfg.Connection), admin, admin, notifier, display.Observe,
	)

	var (
		mu       sync.Mutex
		outcome  clone.Outcome
		finished bool
	)
	sup := supervisor.New(supervisor.Config{
		Rules:         cfg.Rules(),
		MaxConcurrent: cfg.MaxConcurrent,
		Tools:         pgtool.Tools(),
		MinFreeBytes:  cfg.MinFreeBytes(),
		Notifier:      notifier,
		OnFinish: func(_ supervisor.Ticket, o clone.Outcome) {
			mu.Lock()
			outcome, finished = o, true
			mu.Unlock()
		},
	}, orch, notifier)

	ticket, err := sup.Submit(req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "accepted %s: %s -> %s\n", ticket.ID, ticket.Source, ticket.Target)

	ctx, cancel, sigCh := signalctx.WithSignals(cmd.Context())
	defer cancel()
	go waitNotice(ctx, cmd, sigCh)

	sup.Wait()
	display.Wait()

	mu.Lock()
	defer mu.Unlock()
	return report(cmd, outcome, finished)
}

// report prints the outcome and turns anything but success into an error.
func report(cmd *cobra.Command, outcome clone.Outcome, finished bool) error {
	if !finished {
		return fmt.Errorf("%w: run ended without an outcome", ErrCloneFailed)
	}
	fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
	if !outcome.Succeeded() {
		return fmt.Errorf("%w at %s", ErrCloneFailed, outcome.Stage)
	}
	return nil
}

// waitNotice tells the operator that a started clone runs to completion.
func waitNotice(ctx context.Context, cmd *cobra.Command, sigCh <-chan os.Signal) {
	select {
	case s := <-sigCh:
		fmt.Fprintf(cmd.ErrOrStderr(), "received %s: a started clone cannot be interrupted, waiting for it to finish\n", s)
	case <-ctx.Done():
	}
}
