package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mirajehossain/deskmigrate/internal/dialect"
)

// Open opens a pool for driver (mysql, postgres or sqlite) and returns it
// with the matching dialect.
func Open(driver, dsn string) (*sql.DB, dialect.Dialect, error) {
	d, err := dialect.New(driver)
	if err != nil {
		return nil, nil, err
	}
	var db *sql.DB
	switch d.Name() {
	case "mysql":
		db, err = OpenMySQL(dsn)
	case "postgres":
		db, err = OpenPostgres(dsn)
	case "sqlite":
		db, err = OpenSQLite(dsn)
	}
	if err != nil {
		return nil, nil, err
	}
	return db, d, nil
}

func OpenMySQL(dsn string) (*sql.DB, error) {
	// Ensure parseTime is on so applied_at scans into time.Time
	if !strings.Contains(strings.ToLower(dsn), "parsetime=") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	pool(db)
	return db, nil
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pool(db)
	return db, nil
}

// OpenSQLite opens a single-connection pool with foreign keys enforced.
// ":memory:" databases live as long as that one connection.
func OpenSQLite(dsn string) (*sql.DB, error) {
	memory := dsn == ":memory:"
	if !memory && !strings.Contains(dsn, "foreign_keys") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if memory {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return db, nil
}

func pool(db *sql.DB) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
}

// EnsureTable creates the migration history table when missing.
func EnsureTable(ctx context.Context, db *sql.DB, d dialect.Dialect, table string) error {
	_, err := db.ExecContext(ctx, d.HistoryTableDDL(table))
	return err
}

// DatabaseName extracts the database (schema) name from dsn. It is only
// used to build lock keys, so unknown shapes fall back to "db".
func DatabaseName(driver, dsn string) string {
	d, err := dialect.New(driver)
	if err != nil {
		return "db"
	}
	switch d.Name() {
	case "mysql":
		if cfg, err := mysql.ParseDSN(dsn); err == nil && cfg.DBName != "" {
			return cfg.DBName
		}
	case "postgres":
		if cfg, err := pgx.ParseConfig(dsn); err == nil && cfg.Database != "" {
			return cfg.Database
		}
	case "sqlite":
		path := dsn
		if i := strings.Index(path, "?"); i != -1 {
			path = path[:i]
		}
		if u, err := url.Parse(path); err == nil && u.Path != "" {
			path = u.Path
		}
		if path != "" {
			return path
		}
	}
	return "db"
}
