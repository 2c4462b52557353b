package main

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirajehossain/deskmigrate/internal/fsutil"
	"github.com/mirajehossain/deskmigrate/internal/migrator"
)

func (a *app) upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if len(s.plan.Pending) == 0 {
				a.log.Info("no pending migrations", nil)
				return nil
			}
			for _, m := range s.plan.Pending {
				a.log.Debug("plan.apply", map[string]any{"id": m.Descriptor.ID, "checksum": m.Checksum})
			}
			applied, err := s.runner.ApplyUp(ctx, s.plan.Pending, a.cfg.DryRun, a.progress("migrate"))
			if err != nil {
				a.log.Error("up failed", map[string]any{"error": err.Error(), "applied": len(applied)})
				return fail(exitFail, "%w", err)
			}
			a.log.Info("up complete", map[string]any{"applied": len(applied), "dry_run": a.cfg.DryRun})
			return nil
		},
	}
}

func (a *app) downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down <n|all>",
		Short: "Revert the last n applied descriptors, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := math.MaxInt32
			if !strings.EqualFold(args[0], "all") {
				var err error
				n, err = strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					a.log.Error("invalid N for down", map[string]any{"arg": args[0]})
					return fail(exitPlanError, "down: want a positive number or 'all', got %q", args[0])
				}
			}

			ctx := cmd.Context()
			s, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			rows, err := s.runner.LastApplied(ctx, n)
			if err != nil {
				a.log.Error("down query failed", map[string]any{"error": err.Error()})
				return fail(exitFail, "%w", err)
			}
			if len(rows) == 0 {
				a.log.Info("nothing to roll back", nil)
				return nil
			}
			for _, r := range rows {
				a.log.Debug("plan.rollback", map[string]any{"version": r.Version, "name": r.Name, "order": r.ExecutionOrder})
			}
			if err := s.runner.ApplyDown(ctx, rows, s.plan.Lookup(), a.cfg.DryRun, a.progress("migrate.down")); err != nil {
				a.log.Error("down failed", map[string]any{"error": err.Error()})
				return fail(exitFail, "%w", err)
			}
			a.log.Info("down complete", map[string]any{"reverted": len(rows), "dry_run": a.cfg.DryRun})
			return nil
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied, failed and pending descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			a.warnUnregistered(s.plan)
			return printStatus(a.stdout, s.plan, a.cfg.JSON)
		},
	}
}

// warnUnregistered flags descriptor files in the source directory that this
// binary was built without.
func (a *app) warnUnregistered(plan *migrator.Plan) {
	sources, err := fsutil.ScanDir(a.cfg.Dir)
	if err != nil {
		return // no source tree next to the binary
	}
	known := map[string]bool{}
	for _, m := range plan.All {
		known[m.Version] = true
	}
	for _, src := range sources {
		if !known[src.Version] {
			a.log.Warn("descriptor file not compiled in; rebuild deskmigrate", map[string]any{"path": src.Path})
		}
	}
}

func (a *app) planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the DDL pending descriptors would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			if len(s.plan.Pending) == 0 {
				a.log.Info("no pending migrations", nil)
				return nil
			}
			if err := printPlan(ctx, a.stdout, s.plan.Pending, s.dialect, a.cfg.JSON); err != nil {
				return fail(exitPlanError, "%w", err)
			}
			return nil
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Scaffold <version>_<name>.go and its test in --dir",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			src, err := fsutil.Scaffold(a.cfg.Dir, args[0], time.Now())
			if err != nil {
				a.log.Error("create failed", map[string]any{"error": err.Error()})
				return fail(exitFail, "%w", err)
			}
			a.log.Info("created descriptor", map[string]any{"path": src.Path, "version": src.Version})
			return nil
		},
	}
}

func (a *app) repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Update stored checksums to the current descriptors (after intentional edits)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, true)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			changed, err := s.runner.Repair(ctx, s.plan, a.cfg.DryRun)
			if err != nil {
				a.log.Error("repair failed", map[string]any{"error": err.Error()})
				return fail(exitFail, "%w", err)
			}
			a.log.Info("repair complete", map[string]any{"updated": changed, "dry_run": a.cfg.DryRun})
			return nil
		},
	}
}

func (a *app) forceCmd() *cobra.Command {
	var fake bool
	cmd := &cobra.Command{
		Use:   "force <version>",
		Short: "Mark every descriptor up to <version> as applied (baseline)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			applied, err := s.runner.ForceBaseline(ctx, s.plan, args[0], fake)
			if err != nil {
				a.log.Error("force failed", map[string]any{"error": err.Error()})
				return fail(exitFail, "%w", err)
			}
			a.log.Info("force complete", map[string]any{"count": len(applied), "fake": fake})
			return nil
		},
	}
	cmd.Flags().BoolVar(&fake, "fake", false, "Record without running the descriptors")
	return cmd
}
