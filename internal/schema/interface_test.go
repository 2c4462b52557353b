package schema_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirajehossain/deskmigrate/internal/dialect"
	"github.com/mirajehossain/deskmigrate/internal/schema"
	"github.com/mirajehossain/deskmigrate/internal/testdb"
)

var companyID = schema.ColumnSpec{
	Type:       schema.Integer,
	References: &schema.Reference{Model: "Companies", Key: "id"},
	OnUpdate:   schema.Cascade,
	OnDelete:   schema.SetNull,
}

// inTx runs fn against a SQLInterface and commits when fn succeeds.
func inTx(t *testing.T, conn *sql.DB, d schema.Dialect, fn func(q *schema.SQLInterface) error) error {
	t.Helper()
	tx, err := conn.Begin()
	require.NoError(t, err)
	if err := fn(schema.NewSQLInterface(tx, d)); err != nil {
		require.NoError(t, tx.Rollback())
		return err
	}
	return tx.Commit()
}

func inspect(t *testing.T, conn *sql.DB, d schema.Dialect, table string) schema.Table {
	t.Helper()
	tbl, ok, err := schema.Inspect(context.Background(), conn, d, table)
	require.NoError(t, err)
	require.True(t, ok, "table %s missing", table)
	return tbl
}

func TestSQLiteAddColumnWithReference(t *testing.T) {
	conn, d := testdb.HelpdeskSQLite(t)
	ctx := context.Background()

	err := inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.AddColumn(ctx, "Settings", "companyId", companyID)
	})
	require.NoError(t, err)

	tbl := inspect(t, conn, d, "Settings")
	col, ok := tbl.Column("companyId")
	require.True(t, ok)
	assert.True(t, col.Nullable)
	assert.Equal(t, "INTEGER", col.Type)

	fks := tbl.ForeignKeysOn("companyId")
	require.Len(t, fks, 1)
	assert.Equal(t, schema.ForeignKey{
		Name: "fk_settings_companyid", Column: "companyId", RefTable: "Companies", RefColumn: "id",
		OnUpdate: schema.Cascade, OnDelete: schema.SetNull,
	}, fks[0])
}

func TestSQLiteAddColumnTwiceConflicts(t *testing.T) {
	conn, d := testdb.HelpdeskSQLite(t)
	ctx := context.Background()

	require.NoError(t, inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.AddColumn(ctx, "Settings", "companyId", companyID)
	}))
	err := inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.AddColumn(ctx, "Settings", "companyId", companyID)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrSchemaConflict))
}

func TestSQLiteRemoveMissingColumnConflicts(t *testing.T) {
	conn, d := testdb.HelpdeskSQLite(t)
	err := inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.RemoveColumn(context.Background(), "Settings", "companyId")
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrSchemaConflict))
}

func TestSQLiteMissingTableConflicts(t *testing.T) {
	conn, d := testdb.SQLite(t)
	err := inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.AddColumn(context.Background(), "Settings", "companyId", companyID)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrSchemaConflict))
}

func TestSQLiteMissingReferenceTarget(t *testing.T) {
	conn, d := testdb.SQLite(t)
	testdb.Exec(t, conn, `CREATE TABLE "Settings" ("id" INTEGER PRIMARY KEY)`)
	ctx := context.Background()

	err := inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.AddColumn(ctx, "Settings", "companyId", companyID)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrReferentialIntegrity))

	testdb.Exec(t, conn, `CREATE TABLE "Companies" ("uuid" TEXT PRIMARY KEY)`)
	err = inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.AddColumn(ctx, "Settings", "companyId", companyID)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrReferentialIntegrity))

	_, hasCol := inspect(t, conn, d, "Settings").Column("companyId")
	assert.False(t, hasCol)
}

func TestSQLiteRemoveColumnRestoresShape(t *testing.T) {
	conn, d := testdb.HelpdeskSQLite(t)
	ctx := context.Background()
	before := inspect(t, conn, d, "Settings")

	q := func(fn func(q *schema.SQLInterface) error) { require.NoError(t, inTx(t, conn, d, fn)) }
	q(func(q *schema.SQLInterface) error { return q.AddColumn(ctx, "Settings", "companyId", companyID) })
	q(func(q *schema.SQLInterface) error { return q.RemoveColumn(ctx, "Settings", "companyId") })

	assert.Equal(t, before, inspect(t, conn, d, "Settings"))
}

func TestSQLInterfaceRecordsExecutedStatements(t *testing.T) {
	conn, d := testdb.HelpdeskSQLite(t)
	tx, err := conn.Begin()
	require.NoError(t, err)
	defer tx.Rollback() //nolint:errcheck

	q := schema.NewSQLInterface(tx, d)
	require.NoError(t, q.AddColumn(context.Background(), "Settings", "companyId", companyID))
	require.Len(t, q.Executed, 1)
	assert.Contains(t, q.Executed[0], `REFERENCES "Companies" ("id") ON UPDATE CASCADE ON DELETE SET NULL`)
}

func TestSQLiteAddColumnNormalizesActions(t *testing.T) {
	conn, d := testdb.HelpdeskSQLite(t)
	spec := companyID
	spec.OnUpdate, spec.OnDelete = "cascade", "set  null"
	require.NoError(t, inTx(t, conn, d, func(q *schema.SQLInterface) error {
		return q.AddColumn(context.Background(), "Settings", "companyId", spec)
	}))
	fks := inspect(t, conn, d, "Settings").ForeignKeysOn("companyId")
	require.Len(t, fks, 1)
	assert.Equal(t, schema.SetNull, fks[0].OnDelete)
	assert.Equal(t, schema.Cascade, fks[0].OnUpdate)
}

func TestRecorderPredictsForeignKeyDrop(t *testing.T) {
	ctx := context.Background()
	up := schema.NewRecorder(dialect.MySQL{})
	require.NoError(t, up.AddColumn(ctx, "Settings", "companyId", companyID))

	down := schema.NewRecorder(dialect.MySQL{}).Predict(up.Ops)
	require.NoError(t, down.RemoveColumn(ctx, "Settings", "companyId"))
	assert.Equal(t, []string{
		"ALTER TABLE `Settings` DROP FOREIGN KEY `fk_settings_companyid`",
		"ALTER TABLE `Settings` DROP COLUMN `companyId`",
	}, down.Statements)

	plain := schema.NewRecorder(dialect.MySQL{})
	require.NoError(t, plain.RemoveColumn(ctx, "Settings", "companyId"))
	assert.Equal(t, []string{"ALTER TABLE `Settings` DROP COLUMN `companyId`"}, plain.Statements)

	lite := schema.NewRecorder(dialect.SQLite{}).Predict(up.Ops)
	require.NoError(t, lite.RemoveColumn(ctx, "Settings", "companyId"))
	assert.Equal(t, []string{`ALTER TABLE "Settings" DROP COLUMN "companyId"`}, lite.Statements)
}

func TestMySQLRemoveColumnDropsForeignKeyFirst(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("information_schema.TABLES").WithArgs("Settings").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("information_schema.COLUMNS").WithArgs("Settings").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "nullable", "primary_key"}).
			AddRow("id", "int", false, true).
			AddRow("companyId", "int", true, false))
	mock.ExpectQuery("information_schema.KEY_COLUMN_USAGE").WithArgs("Settings").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "column_name", "ref_table", "ref_column", "update_rule", "delete_rule"}).
			AddRow("fk_settings_companyid", "companyId", "Companies", "id", "CASCADE", "SET NULL"))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `Settings` DROP FOREIGN KEY `fk_settings_companyid`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ALTER TABLE `Settings` DROP COLUMN `companyId`")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := conn.Begin()
	require.NoError(t, err)
	require.NoError(t, schema.NewSQLInterface(tx, dialect.MySQL{}).RemoveColumn(context.Background(), "Settings", "companyId"))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder(t *testing.T) {
	rec := schema.NewRecorder(dialect.Postgres{})
	ctx := context.Background()
	require.NoError(t, rec.AddColumn(ctx, "Settings", "companyId", companyID))
	require.NoError(t, rec.RemoveColumn(ctx, "Settings", "companyId"))

	assert.Equal(t, []string{
		"addColumn Settings.companyId INTEGER NULL REFERENCES Companies(id) ON UPDATE CASCADE ON DELETE SET NULL",
		"removeColumn Settings.companyId",
	}, rec.Lines())
	assert.Equal(t, []string{
		`ALTER TABLE "Settings" ADD COLUMN "companyId" integer CONSTRAINT "fk_settings_companyid" REFERENCES "Companies" ("id") ON UPDATE CASCADE ON DELETE SET NULL`,
		`ALTER TABLE "Settings" DROP CONSTRAINT "fk_settings_companyid"`,
		`ALTER TABLE "Settings" DROP COLUMN "companyId"`,
	}, rec.Statements)

	rec = schema.NewRecorder(dialect.Postgres{})
	require.NoError(t, rec.AddColumn(ctx, "Settings", "companyId", schema.ColumnSpec{
		Type: schema.Integer, References: &schema.Reference{Model: "Companies", Key: "id"}, OnDelete: "set null",
	}))
	assert.Contains(t, rec.Statements[0], "ON DELETE SET NULL")

	err := rec.AddColumn(ctx, "Settings", "bad", schema.ColumnSpec{})
	assert.True(t, errors.Is(err, schema.ErrSchemaConflict))
}
