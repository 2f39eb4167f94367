package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/celer"
	"github.com/syssam/celer/dialect"
	"github.com/syssam/celer/qualifier"
)

func TestCompileInsert(t *testing.T) {
	company := companyEntity(t)
	feats := dialect.FeaturesFor(dialect.SQLite)

	expr, err := CompileInsert(company, []ChangedValue{
		Changed("age", 42),
		Changed("name", "Zealandia"),
	}, feats)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "company" ("age", "name") VALUES (42, ?)`, expr.Statement)
	require.Len(t, expr.Binds, 1)
	assert.Equal(t, "Zealandia", expr.Binds[0].Value.TextValue())

	// Caller order is preserved.
	expr, err = CompileInsert(company, []ChangedValue{
		Changed("name", "a"),
		Changed("age", 1),
	}, feats)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "company" ("name", "age") VALUES (?, 1)`, expr.Statement)

	_, err = CompileInsert(company, []ChangedValue{Changed("nope", 1)}, feats)
	assert.True(t, celer.IsUnresolvedPath(err))
}

func TestCompileUpdate(t *testing.T) {
	company := companyEntity(t)
	feats := dialect.FeaturesFor(dialect.SQLite)

	// Integers inline safely, so this statement carries zero binds.
	expr, err := CompileUpdate(company,
		[]ChangedValue{Changed("age", 42)},
		qualifier.EQ("id", 5),
		feats)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "company" SET "age" = 42 WHERE "id" = 5`, expr.Statement)
	assert.Empty(t, expr.Binds)

	// String values bind, in SET-before-WHERE order.
	expr, err = CompileUpdate(company,
		[]ChangedValue{Changed("name", "ACME"), Changed("age", 1)},
		qualifier.EQ("name", "Zealandia"),
		feats)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "company" SET "name" = ?, "age" = 1 WHERE "name" = ?`, expr.Statement)
	assert.Equal(t, []any{"ACME", "Zealandia"}, expr.Args())
}

func TestCompileDelete(t *testing.T) {
	company := companyEntity(t)
	feats := dialect.FeaturesFor(dialect.SQLite)

	expr, err := CompileDelete(company, qualifier.In("id", 1, 2), feats)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "company" WHERE "id" IN (1, 2)`, expr.Statement)
}

func TestMutationRequiresQualifier(t *testing.T) {
	company := companyEntity(t)
	feats := dialect.FeaturesFor(dialect.SQLite)

	_, err := CompileUpdate(company, []ChangedValue{Changed("age", 1)}, nil, feats)
	assert.ErrorIs(t, err, celer.ErrMissingQualifier)

	_, err = CompileDelete(company, nil, feats)
	assert.ErrorIs(t, err, celer.ErrMissingQualifier)

	// An empty conjunction would compile to no WHERE clause at all, so
	// it is rejected the same way.
	_, err = CompileDelete(company, qualifier.And(), feats)
	assert.ErrorIs(t, err, celer.ErrMissingQualifier)
}

func TestMutationRejectsRelationshipPaths(t *testing.T) {
	person := personEntity(t)
	feats := dialect.FeaturesFor(dialect.SQLite)

	_, err := CompileDelete(person, qualifier.EQ("addresses.city", "X"), feats)
	assert.ErrorContains(t, err, "may not traverse relationship path")
}

func TestOptimisticLock(t *testing.T) {
	company := companyEntity(t)
	feats := dialect.FeaturesFor(dialect.SQLite)

	q := OptimisticLock(qualifier.EQ("id", 5), map[string]any{
		"age":  41,
		"name": nil,
	}, "age", "name")
	expr, err := CompileUpdate(company, []ChangedValue{Changed("age", 42)}, q, feats)
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "company" SET "age" = 42 WHERE "id" = 5 AND "age" = 41 AND "name" IS NULL`,
		expr.Statement)
}
