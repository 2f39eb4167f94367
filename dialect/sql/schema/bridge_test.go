package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/celer"
	"github.com/syssam/celer/dialect"
	"github.com/syssam/celer/model"
)

func personModel(t testing.TB) *model.Model {
	t.Helper()
	m, err := model.New(
		&model.Entity{
			Name:       "Person",
			PrimaryKey: []string{"id"},
			Attributes: []*model.Attribute{
				{Name: "id", Type: celer.KindInt},
				{Name: "name", Type: celer.KindText, Nullable: true},
			},
			Relationships: []*model.Relationship{
				{Name: "addresses", ToMany: true, Destination: "Address", Joins: []model.Join{{Source: "id", Dest: "personID"}}},
			},
		},
		&model.Entity{
			Name:       "Address",
			PrimaryKey: []string{"id"},
			Attributes: []*model.Attribute{
				{Name: "id", Type: celer.KindInt},
				{Name: "street", Type: celer.KindText, Nullable: true},
				{Name: "personID", Column: "person_id", Type: celer.KindInt, Nullable: true},
			},
			Relationships: []*model.Relationship{
				{Name: "owner", Destination: "Person", Joins: []model.Join{{Source: "personID", Dest: "id"}}},
			},
		},
	)
	require.NoError(t, err)
	return m
}

func TestTables(t *testing.T) {
	tables, err := Tables(personModel(t))
	require.NoError(t, err)
	require.Len(t, tables, 2)

	people, addresses := tables[0], tables[1]
	assert.Equal(t, "people", people.Name)
	assert.Equal(t, "addresses", addresses.Name)
	require.Len(t, people.PrimaryKey, 1)
	assert.Equal(t, "id", people.PrimaryKey[0].Name)
	// The to-many side carries no constraint; its inverse does.
	assert.Empty(t, people.ForeignKeys)

	require.Len(t, addresses.ForeignKeys, 1)
	fk := addresses.ForeignKeys[0]
	assert.Equal(t, "addresses_owner", fk.Symbol)
	require.Len(t, fk.Columns, 1)
	assert.Equal(t, "person_id", fk.Columns[0].Name)
	assert.Equal(t, people, fk.RefTable)
	assert.Equal(t, "id", fk.RefColumns[0].Name)
	assert.Equal(t, SetNull, fk.OnDelete)
}

func TestTablesCreateAll(t *testing.T) {
	tables, err := Tables(personModel(t))
	require.NoError(t, err)
	stmts, err := CreateAll(tables, dialect.PostgresFeatures)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0].Cmd, `CREATE TABLE "people"`)
	assert.Contains(t, stmts[1].Cmd, `CREATE TABLE "addresses"`)
	assert.Contains(t, stmts[1].Cmd, `CONSTRAINT "addresses_owner"`)
}

func TestTablesRequiredRelation(t *testing.T) {
	m, err := model.New(
		&model.Entity{
			Name:       "User",
			PrimaryKey: []string{"id"},
			Attributes: []*model.Attribute{{Name: "id", Type: celer.KindInt}},
		},
		&model.Entity{
			Name:       "Card",
			PrimaryKey: []string{"id"},
			Attributes: []*model.Attribute{
				{Name: "id", Type: celer.KindInt},
				{Name: "ownerID", Column: "owner_id", Type: celer.KindInt},
			},
			Relationships: []*model.Relationship{
				{Name: "owner", Destination: "User", Joins: []model.Join{{Source: "ownerID", Dest: "id"}}},
			},
		},
	)
	require.NoError(t, err)
	tables, err := Tables(m)
	require.NoError(t, err)
	fk := tables[1].ForeignKeys[0]
	assert.Equal(t, NoAction, fk.OnDelete, "non-nullable columns cannot be set to null on delete")
}
