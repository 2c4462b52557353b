package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirajehossain/deskmigrate/internal/db"
	"github.com/mirajehossain/deskmigrate/internal/testdb"
)

// helpdesk creates a SQLite file holding the pre-migration tables.
func helpdesk(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desk.db")
	conn, _, err := db.Open("sqlite", path)
	require.NoError(t, err)
	testdb.Exec(t, conn, testdb.Helpdesk...)
	require.NoError(t, conn.Close())
	return path
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	args = append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env"))
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String() + errOut.String()
}

func TestUpStatusDown(t *testing.T) {
	dsn := helpdesk(t)
	common := []string{"--driver", "sqlite", "--dsn", dsn, "--dir", t.TempDir()}

	code, out := runCLI(t, append([]string{"up"}, common...)...)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "up complete")

	code, out = runCLI(t, append([]string{"up"}, common...)...)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "no pending migrations")

	var out2 bytes.Buffer
	code = run(context.Background(), append([]string{"status", "--json"}, common...), &out2, &out2)
	require.Equal(t, exitOK, code, out2.String())
	var items []statusItem
	require.NoError(t, json.Unmarshal(out2.Bytes(), &items))
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, "success", it.Status)
	}

	code, out = runCLI(t, append([]string{"down", "1"}, common...)...)
	require.Equal(t, exitOK, code, out)

	code, out = runCLI(t, append([]string{"status"}, common...)...)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "add-column-whatsappId-to-Contacts")
	assert.Contains(t, out, "pending")

	code, out = runCLI(t, append([]string{"down", "all"}, common...)...)
	require.Equal(t, exitOK, code, out)
	code, out = runCLI(t, append([]string{"down", "all"}, common...)...)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "nothing to roll back")
}

func TestPlanPrintsDDL(t *testing.T) {
	dsn := helpdesk(t)
	code, out := runCLI(t, "plan", "--driver", "sqlite", "--dsn", dsn)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "-- 20210109192515-add-column-companyId-to-Settings-table")
	assert.Contains(t, out, `ALTER TABLE "Settings" ADD COLUMN "companyId" INTEGER`)
}

func TestDriftExitCode(t *testing.T) {
	dsn := helpdesk(t)
	code, out := runCLI(t, "up", "--driver", "sqlite", "--dsn", dsn)
	require.Equal(t, exitOK, code, out)

	conn, _, err := db.Open("sqlite", dsn)
	require.NoError(t, err)
	testdb.Exec(t, conn, `UPDATE "schema_migrations" SET checksum = 'tampered' WHERE version = '20210109192515'`)
	require.NoError(t, conn.Close())

	code, out = runCLI(t, "status", "--driver", "sqlite", "--dsn", dsn)
	assert.Equal(t, exitDrift, code, out)

	code, out = runCLI(t, "repair", "--driver", "sqlite", "--dsn", dsn)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "repair complete")

	code, out = runCLI(t, "status", "--driver", "sqlite", "--dsn", dsn)
	assert.Equal(t, exitOK, code, out)
}

func TestFailedUpExitCode(t *testing.T) {
	dsn := helpdesk(t)
	conn, _, err := db.Open("sqlite", dsn)
	require.NoError(t, err)
	testdb.Exec(t, conn, `DROP TABLE "Whatsapps"`)
	require.NoError(t, conn.Close())

	code, out := runCLI(t, "up", "--driver", "sqlite", "--dsn", dsn)
	assert.Equal(t, exitFail, code, out)
	assert.Contains(t, out, "20231220223517-add-column-whatsappId-to-Contacts")
}

func TestForceFake(t *testing.T) {
	dsn := helpdesk(t)
	code, out := runCLI(t, "force", "20231220223517", "--fake", "--driver", "sqlite", "--dsn", dsn)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "force complete")

	code, out = runCLI(t, "up", "--driver", "sqlite", "--dsn", dsn)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, "no pending migrations")
}

func TestUsageErrors(t *testing.T) {
	dsn := helpdesk(t)
	cases := [][]string{
		{"down", "zero", "--driver", "sqlite", "--dsn", dsn},
		{"down"},
		{"bogus"},
		{"up", "--driver", "oracle", "--dsn", "x"},
		{"up", "--driver", "sqlite"},
	}
	for _, args := range cases {
		t.Run(strings.Join(args[:1], " "), func(t *testing.T) {
			t.Setenv("DB_DSN", "")
			code, out := runCLI(t, args...)
			assert.Equal(t, exitPlanError, code, out)
		})
	}
}

func TestConfigErrorsAreReported(t *testing.T) {
	t.Setenv("DB_DSN", "")
	cases := map[string][]string{
		"missing dsn":    {"status", "--driver", "sqlite"},
		"unknown driver": {"status", "--driver", "oracle", "--dsn", "x"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			args = append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env"))
			code := run(context.Background(), args, &out, &errOut)
			assert.Equal(t, exitPlanError, code)
			assert.Contains(t, errOut.String(), "error:")
		})
	}
	var errOut bytes.Buffer
	run(context.Background(), []string{"status", "--driver", "sqlite", "--env-file", filepath.Join(t.TempDir(), "missing.env")}, &bytes.Buffer{}, &errOut)
	assert.Contains(t, errOut.String(), "--dsn or DB_DSN is required")
}

func TestCreateScaffolds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	code, out := runCLI(t, "create", "add-column-queueId-to-Tickets", "--dir", dir)
	require.Equal(t, exitOK, code, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_add_column_queue_id_to_tickets.go"))
}
