package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"
)

var ErrLockTimeout = errors.New("advisory lock wait timeout")

// Locker serializes migration runs against one database.
type Locker interface {
	Acquire(ctx context.Context, timeout time.Duration) error
	Release(ctx context.Context) error
	Key() string
}

// New picks the advisory lock matching the dialect name.
func New(dialectName string, db *sql.DB, key string) Locker {
	switch dialectName {
	case "mysql":
		return NewMySQL(db, key)
	case "postgres":
		return NewPostgres(db, key)
	default:
		return NewLocal(key)
	}
}

func KeyFor(database, table string) string {
	return fmt.Sprintf("deskmigrate:%s:%s", database, table)
}

// MySQL advisory lock using GET_LOCK/RELEASE_LOCK on a dedicated connection.
type MySQL struct {
	db   *sql.DB
	conn *sql.Conn
	key  string
	held bool
}

func NewMySQL(db *sql.DB, key string) *MySQL {
	return &MySQL{db: db, key: key}
}

func (m *MySQL) Acquire(ctx context.Context, timeout time.Duration) error {
	if m.held {
		return nil
	}
	var err error
	m.conn, err = m.db.Conn(ctx)
	if err != nil {
		return err
	}
	// GET_LOCK(name, timeout_seconds)
	row := m.conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", m.key, int(timeout.Seconds()))
	var got sql.NullInt64
	if err := row.Scan(&got); err != nil {
		_ = m.conn.Close()
		return err
	}
	if !got.Valid || got.Int64 != 1 {
		_ = m.conn.Close()
		return fmt.Errorf("%w: %s", ErrLockTimeout, m.key)
	}
	m.held = true
	return nil
}

func (m *MySQL) Release(ctx context.Context) error {
	if !m.held || m.conn == nil {
		return nil
	}
	row := m.conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", m.key)
	var rel sql.NullInt64
	_ = row.Scan(&rel) // do not fail on release
	m.held = false
	return m.conn.Close()
}

func (m *MySQL) Key() string { return m.key }

// Postgres session-level advisory lock, polled with pg_try_advisory_lock
// until the timeout so a stuck holder cannot block forever.
type Postgres struct {
	db   *sql.DB
	conn *sql.Conn
	key  string
	held bool
	// PollInterval defaults to 250ms.
	PollInterval time.Duration
}

func NewPostgres(db *sql.DB, key string) *Postgres {
	return &Postgres{db: db, key: key, PollInterval: 250 * time.Millisecond}
}

// HashKey maps key onto the int64 space pg_advisory_lock takes.
func HashKey(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF) //nolint:gosec // truncation intended
}

func (p *Postgres) Acquire(ctx context.Context, timeout time.Duration) error {
	if p.held {
		return nil
	}
	var err error
	p.conn, err = p.db.Conn(ctx)
	if err != nil {
		return err
	}
	id := HashKey(p.key)
	deadline := time.Now().Add(timeout)
	for {
		var got bool
		if err := p.conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&got); err != nil {
			_ = p.conn.Close()
			return err
		}
		if got {
			p.held = true
			return nil
		}
		if !time.Now().Before(deadline) {
			_ = p.conn.Close()
			return fmt.Errorf("%w: %s", ErrLockTimeout, p.key)
		}
		select {
		case <-ctx.Done():
			_ = p.conn.Close()
			return ctx.Err()
		case <-time.After(p.PollInterval):
		}
	}
}

func (p *Postgres) Release(ctx context.Context) error {
	if !p.held || p.conn == nil {
		return nil
	}
	var rel bool
	_ = p.conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", HashKey(p.key)).Scan(&rel) // do not fail on release
	p.held = false
	return p.conn.Close()
}

func (p *Postgres) Key() string { return p.key }

// Local is an in-process lock for SQLite, which has no advisory locks and
// already serializes writers through its file lock.
type Local struct {
	key string
	sem chan struct{}
}

func NewLocal(key string) *Local {
	return &Local{key: key, sem: make(chan struct{}, 1)}
}

func (l *Local) Acquire(ctx context.Context, timeout time.Duration) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-t.C:
		return fmt.Errorf("%w: %s", ErrLockTimeout, l.key)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Local) Release(context.Context) error {
	select {
	case <-l.sem:
	default:
	}
	return nil
}

func (l *Local) Key() string { return l.key }
