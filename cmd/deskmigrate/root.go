package main

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/mirajehossain/deskmigrate/internal/config"
	"github.com/mirajehossain/deskmigrate/internal/db"
	"github.com/mirajehossain/deskmigrate/internal/dialect"
	"github.com/mirajehossain/deskmigrate/internal/lock"
	"github.com/mirajehossain/deskmigrate/internal/logger"
	"github.com/mirajehossain/deskmigrate/internal/migrations"
	"github.com/mirajehossain/deskmigrate/internal/migrator"
)

type flags struct {
	driver      string
	dsn         string
	dir         string
	json        bool
	dryRun      bool
	lockTimeout int
	table       string
	configPath  string
	envFile     string
	appliedBy   string
	verbose     bool
}

type app struct {
	flags  flags
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	log    *logger.Logger
	// registry defaults to migrations.Registry.
	registry *migrator.Registry
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, registry: migrations.Registry}

	root := &cobra.Command{
		Use:   "deskmigrate",
		Short: "Apply and revert the helpdesk schema descriptors",
		Long: `deskmigrate applies the compiled-in schema descriptors in version order,
recording each one in a history table so it runs exactly once.

Examples:

  deskmigrate up --driver mysql --dsn "$DB_DSN"
  deskmigrate down 1 --dsn "$DB_DSN"
  deskmigrate status --json
  deskmigrate plan --driver postgres --dsn "$DB_DSN"
  deskmigrate create add-column-queueId-to-Tickets
  deskmigrate force 20210109192515 --fake`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.driver, "driver", "", "Database driver: mysql, postgres or sqlite (or DB_DRIVER)")
	pf.StringVar(&a.flags.dsn, "dsn", "", "Database DSN (or DB_DSN)")
	pf.StringVar(&a.flags.dir, "dir", "", "Descriptor source directory (or MIGRATIONS_DIR)")
	pf.BoolVar(&a.flags.json, "json", false, "JSON logs")
	pf.BoolVar(&a.flags.dryRun, "dry-run", false, "Plan only; do not execute")
	pf.IntVar(&a.flags.lockTimeout, "lock-timeout", 30, "Lock timeout seconds (or LOCK_TIMEOUT_SEC)")
	pf.StringVar(&a.flags.table, "table", "", "Migrations table name (or MIGRATIONS_TABLE)")
	pf.StringVar(&a.flags.configPath, "config", "", "Optional YAML config path")
	pf.StringVar(&a.flags.envFile, "env-file", ".env", "Optional dotenv file")
	pf.StringVar(&a.flags.appliedBy, "applied-by", "", "Override applied_by value")
	pf.BoolVar(&a.flags.verbose, "verbose", false, "Verbose per-migration logs")

	root.AddCommand(
		a.upCmd(),
		a.downCmd(),
		a.statusCmd(),
		a.planCmd(),
		a.createCmd(),
		a.repairCmd(),
		a.forceCmd(),
	)
	return root
}

// loadConfig layers defaults, YAML, dotenv/environment and explicit flags,
// in increasing precedence.
func (a *app) loadConfig(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.flags.envFile); err != nil {
		return fail(exitPlanError, "load env file: %w", err)
	}
	cfg, err := config.LoadYAML(a.flags.configPath)
	if err != nil {
		return fail(exitPlanError, "load config: %w", err)
	}
	cfg = config.MergeEnv(cfg)

	set := cmd.Flags().Changed
	if set("driver") {
		cfg.Driver = a.flags.driver
	}
	if set("dsn") {
		cfg.DSN = a.flags.dsn
	}
	if set("dir") {
		cfg.Dir = a.flags.dir
	}
	if set("json") {
		cfg.JSON = a.flags.json
	}
	if set("dry-run") {
		cfg.DryRun = a.flags.dryRun
	}
	if set("lock-timeout") {
		cfg.LockTimeoutSec = a.flags.lockTimeout
	}
	if set("table") {
		cfg.MigrationsTable = a.flags.table
	}
	if set("applied-by") {
		cfg.AppliedBy = a.flags.appliedBy
	}
	if set("verbose") {
		cfg.Verbose = a.flags.verbose
	}
	a.cfg = cfg
	a.log = logger.NewWithWriter(a.stdout, cfg.JSON).Verbose(cfg.Verbose)
	return nil
}

// session is an open, locked database with a computed plan.
type session struct {
	db      *sql.DB
	dialect dialect.Dialect
	runner  *migrator.Runner
	locker  lock.Locker
	plan    *migrator.Plan
}

// open connects, ensures the history table, takes the advisory lock and
// plans. With allowDrift the plan is returned even when checksums drifted.
func (a *app) open(ctx context.Context, allowDrift bool) (*session, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fail(exitPlanError, "%w", err)
	}
	database, d, err := db.Open(a.cfg.Driver, a.cfg.DSN)
	if err != nil {
		a.log.Error("db open failed", map[string]any{"error": err.Error()})
		return nil, fail(exitFail, "db open: %w", err)
	}
	s := &session{db: database, dialect: d}

	s.runner = migrator.NewRunner(database, d, a.cfg.MigrationsTable, a.cfg.AppliedBy)
	s.runner.Log = a.log
	if err := s.runner.Ensure(ctx); err != nil {
		database.Close()
		a.log.Error("ensure table failed", map[string]any{"error": err.Error()})
		return nil, fail(exitFail, "ensure table: %w", err)
	}

	key := lock.KeyFor(db.DatabaseName(a.cfg.Driver, a.cfg.DSN), a.cfg.MigrationsTable)
	s.locker = lock.New(d.Name(), database, key)
	if err := s.locker.Acquire(ctx, a.cfg.LockTimeout()); err != nil {
		database.Close()
		a.log.Error("failed to acquire lock", map[string]any{"error": err.Error(), "key": key})
		return nil, fail(exitLocked, "lock %s: %w", key, err)
	}

	s.plan, err = migrator.DiscoverAndPlan(ctx, a.registry, s.runner.Storage)
	if err != nil {
		if errors.Is(err, migrator.ErrDrift) {
			if allowDrift && s.plan != nil {
				a.log.Warn("drift detected", map[string]any{"error": err.Error()})
				return s, nil
			}
			s.Close(ctx)
			a.log.Error("drift detected", map[string]any{"error": err.Error()})
			return nil, fail(exitDrift, "%w", err)
		}
		s.Close(ctx)
		a.log.Error("plan failed", map[string]any{"error": err.Error()})
		return nil, fail(exitPlanError, "plan: %w", err)
	}
	return s, nil
}

func (s *session) Close(ctx context.Context) {
	_ = s.locker.Release(ctx)
	_ = s.db.Close()
}

// progress logs per-migration stages when --verbose is on.
func (a *app) progress(prefix string) migrator.ProgressFunc {
	return func(stage string, m migrator.Migration, row *migrator.Row, err error) {
		fields := map[string]any{"id": m.Descriptor.ID}
		if row != nil {
			fields["order"] = row.ExecutionOrder
			if stage == "success" && row.DurationMS > 0 {
				fields["duration_ms"] = row.DurationMS
			}
		}
		if err != nil {
			fields["error"] = err.Error()
			a.log.Error(prefix+".error", fields)
			return
		}
		a.log.Debug(prefix+"."+stage, fields)
	}
}
