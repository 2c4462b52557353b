package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/user"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mirajehossain/deskmigrate/internal/db"
	"github.com/mirajehossain/deskmigrate/internal/dialect"
	"github.com/mirajehossain/deskmigrate/internal/logger"
	"github.com/mirajehossain/deskmigrate/internal/schema"
)

// ProgressFunc is told about each migration as it starts, succeeds or fails.
type ProgressFunc func(stage string, m Migration, row *Row, err error)

// Runner applies and reverts descriptors one at a time, each in its own
// transaction together with its history row.
type Runner struct {
	DB        *sql.DB
	Storage   *Storage
	Dialect   dialect.Dialect
	AppliedBy string
	RunID     string
	Log       *logger.Logger
}

func NewRunner(database *sql.DB, d dialect.Dialect, table string, appliedBy string) *Runner {
	return &Runner{
		DB:        database,
		Storage:   &Storage{DB: database, Table: table, Dialect: d},
		Dialect:   d,
		AppliedBy: appliedBy,
	}
}

func defaultAppliedBy() string {
	u, err := user.Current()
	if err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

// Ensure creates the history table and fills in AppliedBy and RunID.
func (r *Runner) Ensure(ctx context.Context) error {
	if err := db.EnsureTable(ctx, r.DB, r.Dialect, r.Storage.Table); err != nil {
		return err
	}
	if strings.TrimSpace(r.AppliedBy) == "" {
		r.AppliedBy = defaultAppliedBy()
	}
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	return nil
}

func emit(progress ProgressFunc, stage string, m Migration, row *Row, err error) {
	if progress != nil {
		progress(stage, m, row, err)
	}
}

// execute runs fn and record in one transaction and returns the DDL that ran.
func (r *Runner) execute(ctx context.Context, fn MigrateFunc, record func(st *Storage) error) ([]string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	q := schema.NewSQLInterface(tx, r.Dialect)
	if err := fn(ctx, q); err != nil {
		_ = tx.Rollback()
		return q.Executed, err
	}
	if err := record(r.Storage.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return q.Executed, err
	}
	return q.Executed, tx.Commit()
}

// ApplyUp applies pending in order and stops at the first failure, which is
// recorded as a failed row so the next run retries it.
func (r *Runner) ApplyUp(ctx context.Context, pending []Migration, dryRun bool, progress ProgressFunc) ([]Row, error) {
	applied := make([]Row, 0, len(pending))
	maxOrder, err := r.Storage.MaxExecutionOrder(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range pending {
		maxOrder++
		row := Row{
			Version:        m.Version,
			Name:           m.Name,
			Checksum:       m.Checksum,
			AppliedAt:      time.Now().UTC(),
			AppliedBy:      r.AppliedBy,
			Status:         StatusSuccess,
			ExecutionOrder: maxOrder,
			RunID:          r.RunID,
		}
		emit(progress, "start", m, &row, nil)

		if dryRun {
			up, _, err := Record(ctx, m.Descriptor, r.Dialect)
			if err != nil {
				emit(progress, "error", m, &row, err)
				return applied, err
			}
			r.Log.Debug("plan.ddl", map[string]any{"id": m.Descriptor.ID, "statements": up.Statements})
			emit(progress, "success", m, &row, nil)
			applied = append(applied, row)
			continue
		}

		start := time.Now()
		executed, err := r.execute(ctx, m.Descriptor.Up, func(st *Storage) error {
			row.DurationMS = time.Since(start).Milliseconds()
			return st.Upsert(ctx, row)
		})
		if err != nil {
			row.Status = StatusFailed
			row.DurationMS = time.Since(start).Milliseconds()
			if uerr := r.Storage.Upsert(ctx, row); uerr != nil {
				r.Log.Warn("failed to record failed migration", map[string]any{"id": m.Descriptor.ID, "error": uerr.Error()})
			}
			emit(progress, "error", m, &row, err)
			return applied, fmt.Errorf("migration %s failed: %w", m.Descriptor.ID, err)
		}
		r.Log.Debug("migrate.ddl", map[string]any{"id": m.Descriptor.ID, "statements": executed})
		emit(progress, "success", m, &row, nil)
		applied = append(applied, row)
	}
	return applied, nil
}

// ApplyDown reverts toRevert newest first. Each row needs its descriptor in lookup.
func (r *Runner) ApplyDown(ctx context.Context, toRevert []Row, lookup map[string]Migration, dryRun bool, progress ProgressFunc) error {
	rows := append([]Row(nil), toRevert...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].ExecutionOrder > rows[j].ExecutionOrder })
	for _, row := range rows {
		m, ok := lookup[row.Key()]
		if !ok {
			return fmt.Errorf("no registered descriptor for %s:%s", row.Version, row.Name)
		}
		emit(progress, "start", m, &row, nil)
		if dryRun {
			_, down, err := Record(ctx, m.Descriptor, r.Dialect)
			if err != nil {
				emit(progress, "error", m, &row, err)
				return err
			}
			r.Log.Debug("plan.ddl", map[string]any{"id": m.Descriptor.ID, "statements": down.Statements})
			emit(progress, "success", m, &row, nil)
			continue
		}
		executed, err := r.execute(ctx, m.Descriptor.Down, func(st *Storage) error {
			// Remove record to indicate "not applied"
			return st.Delete(ctx, row.Version, row.Name)
		})
		if err != nil {
			emit(progress, "error", m, &row, err)
			return fmt.Errorf("down migration %s failed: %w", m.Descriptor.ID, err)
		}
		r.Log.Debug("migrate.down.ddl", map[string]any{"id": m.Descriptor.ID, "statements": executed})
		emit(progress, "success", m, &row, nil)
	}
	return nil
}

func (r *Runner) LastApplied(ctx context.Context, n int) ([]Row, error) {
	return r.Storage.LastApplied(ctx, n)
}

var ErrNoSuchVersion = errors.New("no such version")

// ForceBaseline marks every migration up to and including version as
// applied. Unless fake, each one's up runs first. Already applied ones are skipped.
func (r *Runner) ForceBaseline(ctx context.Context, plan *Plan, version string, fake bool) ([]Row, error) {
	found := false
	for _, m := range plan.All {
		if m.Version == version {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchVersion, version)
	}

	applied := make([]Row, 0)
	maxOrder, err := r.Storage.MaxExecutionOrder(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range plan.All {
		if m.Version > version {
			continue
		}
		if row, ok := plan.Applied[Key(m.Version, m.Name)]; ok && row.Status == StatusSuccess {
			continue
		}
		maxOrder++
		row := Row{
			Version: m.Version, Name: m.Name, Checksum: m.Checksum,
			AppliedAt: time.Now().UTC(), AppliedBy: r.AppliedBy, DurationMS: 0,
			Status: StatusSuccess, ExecutionOrder: maxOrder, RunID: r.RunID,
		}
		fn := m.Descriptor.Up
		if fake {
			fn = func(context.Context, schema.QueryInterface) error { return nil }
		}
		if _, err := r.execute(ctx, fn, func(st *Storage) error { return st.Upsert(ctx, row) }); err != nil {
			return applied, fmt.Errorf("force %s: %w", m.Descriptor.ID, err)
		}
		applied = append(applied, row)
	}
	return applied, nil
}

// Repair rewrites stored checksums to the current descriptor checksums.
// Use it after an intentional edit to an applied descriptor.
func (r *Runner) Repair(ctx context.Context, plan *Plan, dryRun bool) (int, error) {
	changed := 0
	for _, m := range plan.All {
		row, ok := plan.Applied[Key(m.Version, m.Name)]
		if !ok {
			continue // pending; nothing to repair
		}
		if strings.EqualFold(row.Checksum, m.Checksum) {
			continue
		}
		row.Checksum = m.Checksum
		row.AppliedAt = time.Now().UTC()
		if dryRun {
			changed++
			continue
		}
		if err := r.Storage.Upsert(ctx, row); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
