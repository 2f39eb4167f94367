package sql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/celer/dialect"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE FROM t").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())
	require.NoError(t, drv.Exec(ctx, "DELETE FROM t", []any{}, nil))

	// A failing statement counts as an error.
	require.Error(t, drv.Exec(ctx, "BROKEN", "bad-args", nil))

	snap := drv.QueryStats().Snapshot()
	assert.EqualValues(t, 1, snap.TotalQueries)
	assert.EqualValues(t, 2, snap.TotalExecs)
	assert.EqualValues(t, 1, snap.Errors)
	assert.EqualValues(t, 3, snap.SlowQueries)
	assert.Len(t, slow, 3)
	assert.Contains(t, snap.String(), "queries=1")
	require.NoError(t, mock.ExpectationsWereMet())
}
