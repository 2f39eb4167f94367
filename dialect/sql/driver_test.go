package sql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/celer/dialect"
	"github.com/syssam/celer/model"
	"github.com/syssam/celer/qualifier"
)

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)
	defer drv.Close()

	mock.ExpectQuery(`SELECT BASE."id" FROM "company" AS BASE WHERE BASE."name" = \$1`).
		WithArgs("Zealandia").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	company := companyEntity(t)
	expr, err := Compile(company, &model.FetchSpecification{
		Qualifier:  qualifier.EQ("name", "Zealandia"),
		Attributes: []string{"id"},
	}, drv.Features())
	require.NoError(t, err)

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), expr.Statement, expr.Args(), rows))
	require.True(t, rows.Next())
	var id int64
	require.NoError(t, rows.Scan(&id))
	assert.Equal(t, int64(7), id)
	require.NoError(t, rows.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.MySQL, db)

	mock.ExpectExec("UPDATE `company` SET `age` = 42 WHERE `id` = 5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	company := companyEntity(t)
	expr, err := CompileUpdate(company,
		[]ChangedValue{Changed("age", 42)},
		qualifier.EQ("id", 5),
		drv.Features())
	require.NoError(t, err)

	var res Result
	require.NoError(t, drv.Exec(context.Background(), expr.Statement, expr.Args(), &res))
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "company" WHERE "id" = 1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), `DELETE FROM "company" WHERE "id" = 1`, []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverArgTypes(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.SQLite, db)

	// args must be a []any, and v a *Rows / *Result.
	err = drv.Exec(context.Background(), "SELECT 1", "not-a-slice", nil)
	assert.ErrorContains(t, err, "expect []any for args")
	err = drv.Query(context.Background(), "SELECT 1", []any{}, &sql.Rows{})
	assert.ErrorContains(t, err, "invalid type")
}

// TestSQLiteRoundTrip compiles against a real database: schema, insert,
// select and delete all run through compiled expressions.
func TestSQLiteRoundTrip(t *testing.T) {
	drv, err := Open("sqlite", "file:celer?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	defer drv.Close()
	ctx := context.Background()
	feats := drv.Features()

	require.NoError(t, drv.Exec(ctx, `CREATE TABLE "company" ("id" integer PRIMARY KEY, "age" integer, "name" text)`, []any{}, nil))

	company := companyEntity(t)
	ins, err := CompileInsert(company, []ChangedValue{
		Changed("id", 1),
		Changed("age", 13),
		Changed("name", "Zealandia"),
	}, feats)
	require.NoError(t, err)
	require.NoError(t, drv.Exec(ctx, ins.Statement, ins.Args(), nil))

	sel, err := Compile(company, &model.FetchSpecification{
		Qualifier:  qualifier.And(qualifier.GT("age", 12), qualifier.Like("name", "Zea*")),
		Attributes: []string{"id", "name"},
	}, feats)
	require.NoError(t, err)
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, sel.Statement, sel.Args(), rows))
	require.True(t, rows.Next())
	var (
		id   int64
		name string
	)
	require.NoError(t, rows.Scan(&id, &name))
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "Zealandia", name)
	require.NoError(t, rows.Close())

	del, err := CompileDelete(company, qualifier.EQ("id", 1), feats)
	require.NoError(t, err)
	var res Result
	require.NoError(t, drv.Exec(ctx, del.Statement, del.Args(), &res))
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
