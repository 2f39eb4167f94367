package dialect

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturesFor(t *testing.T) {
	f := FeaturesFor(Postgres)
	assert.Equal(t, `"name"`, f.Quote("name"))
	assert.Equal(t, "$1", f.Placeholder(1))
	assert.Equal(t, "$3", f.Placeholder(3))
	assert.True(t, f.SupportsILike)

	f = FeaturesFor(MySQL)
	assert.Equal(t, "`name`", f.Quote("name"))
	assert.Equal(t, "?", f.Placeholder(1))
	assert.False(t, f.SupportsILike)
	assert.True(t, f.SupportsForUpdate)

	f = FeaturesFor(SQLite)
	assert.False(t, f.SupportsForUpdate)
	assert.False(t, f.ColumnDeletion)
	assert.True(t, f.ColumnInsertion)

	// Unknown dialects get a conservative descriptor.
	f = FeaturesFor("frontbase")
	assert.Equal(t, "frontbase", f.Name)
	assert.False(t, f.SupportsForUpdate)
	assert.Equal(t, "?", f.Placeholder(1))
}

type execQuerier struct {
	queries []string
}

func (e *execQuerier) Exec(_ context.Context, query string, _, _ any) error {
	e.queries = append(e.queries, query)
	return nil
}

func (e *execQuerier) Query(_ context.Context, query string, _, _ any) error {
	e.queries = append(e.queries, query)
	return nil
}

type driver struct {
	execQuerier
}

func (d *driver) Tx(context.Context) (Tx, error) { return NopTx(d), nil }
func (d *driver) Close() error                   { return nil }
func (d *driver) Dialect() string                { return SQLite }

func TestDebugDriver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	var d driver
	drv := Debug(&d, logger)

	ctx := context.Background()
	require.NoError(t, drv.Exec(ctx, "DELETE FROM pets", []any{}, nil))
	require.NoError(t, drv.Query(ctx, "SELECT * FROM pets", []any{}, nil))
	assert.Equal(t, []string{"DELETE FROM pets", "SELECT * FROM pets"}, d.queries)
	assert.Contains(t, buf.String(), "driver.Exec")
	assert.Contains(t, buf.String(), "driver.Query")

	tx, err := drv.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Exec(ctx, "UPDATE pets SET name = ?", []any{"a"}, nil))
	assert.Contains(t, buf.String(), "tx.Exec")
	require.NoError(t, tx.Commit())
}
