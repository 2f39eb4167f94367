package model

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/celer"
)

func personModel(t *testing.T) *Model {
	t.Helper()
	m, err := New(
		&Entity{
			Name:  "Person",
			Table: "person",
			Attributes: []*Attribute{
				{Name: "id", Type: celer.KindInt},
				{Name: "name", Type: celer.KindText},
				{Name: "homeId", Column: "home_id", Type: celer.KindInt, Nullable: true},
			},
			PrimaryKey: []string{"id"},
			Relationships: []*Relationship{
				{Name: "addresses", ToMany: true, Destination: "Address", Joins: []Join{{Source: "id", Dest: "personId"}}},
				{Name: "home", Destination: "Address", Joins: []Join{{Source: "homeId", Dest: "id"}}},
			},
		},
		&Entity{
			Name:  "Address",
			Table: "address",
			Attributes: []*Attribute{
				{Name: "id", Type: celer.KindInt},
				{Name: "personId", Column: "person_id", Type: celer.KindInt},
				{Name: "city", Type: celer.KindText, Nullable: true},
			},
			PrimaryKey: []string{"id"},
			Relationships: []*Relationship{
				{Name: "owner", Destination: "Person", Joins: []Join{{Source: "personId", Dest: "id"}}},
			},
		},
	)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	m := personModel(t)
	person, ok := m.Entity("Person")
	require.True(t, ok)
	addr, ok := m.Entity("Address")
	require.True(t, ok)

	rel, ok := person.Relationship("addresses")
	require.True(t, ok)
	assert.Same(t, addr, rel.Dest())
	assert.True(t, rel.ToMany)

	// Column defaults to the attribute name.
	a, ok := person.Attribute("name")
	require.True(t, ok)
	assert.Equal(t, "name", a.Column)
	a, ok = person.Attribute("homeId")
	require.True(t, ok)
	assert.Equal(t, "home_id", a.Column)
}

func TestNewErrors(t *testing.T) {
	_, err := New(
		&Entity{Name: "A", Attributes: []*Attribute{{Name: "id", Type: celer.KindInt}}},
		&Entity{Name: "A", Attributes: []*Attribute{{Name: "id", Type: celer.KindInt}}},
	)
	assert.ErrorContains(t, err, "duplicate entity")

	_, err = New(&Entity{
		Name:          "A",
		Attributes:    []*Attribute{{Name: "id", Type: celer.KindInt}},
		Relationships: []*Relationship{{Name: "b", Destination: "B", Joins: []Join{{Source: "id", Dest: "id"}}}},
	})
	assert.ErrorContains(t, err, "unknown entity")

	_, err = New(&Entity{
		Name:       "A",
		Attributes: []*Attribute{{Name: "id", Type: celer.KindInt}},
		PrimaryKey: []string{"uid"},
	})
	assert.ErrorContains(t, err, "unknown attribute")

	_, err = New(
		&Entity{
			Name:          "A",
			Attributes:    []*Attribute{{Name: "id", Type: celer.KindInt}},
			Relationships: []*Relationship{{Name: "b", Destination: "B"}},
		},
		&Entity{Name: "B", Attributes: []*Attribute{{Name: "id", Type: celer.KindInt}}},
	)
	assert.ErrorContains(t, err, "no joins")
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "people", TableName("Person"))
	assert.Equal(t, "user_groups", TableName("UserGroup"))
	assert.Equal(t, "addresses", TableName("Address"))
}

func TestPath(t *testing.T) {
	m := personModel(t)
	person, _ := m.Entity("Person")

	p, err := person.Path("name")
	require.NoError(t, err)
	assert.False(t, p.Relationship())
	assert.Equal(t, "name", p.Attr.Name)
	assert.Equal(t, "", p.RelKey())

	p, err = person.Path("addresses.city")
	require.NoError(t, err)
	require.Len(t, p.Rels, 1)
	assert.Equal(t, "addresses", p.RelKey())
	assert.Equal(t, "city", p.Attr.Name)

	// Paths may chain hops across entities.
	p, err = person.Path("home.owner.name")
	require.NoError(t, err)
	require.Len(t, p.Rels, 2)
	assert.Equal(t, "home.owner", p.RelKey())
	assert.Equal(t, "name", p.Attr.Name)

	_, err = person.Path("nope")
	require.Error(t, err)
	assert.True(t, celer.IsUnresolvedPath(err))
	var perr *celer.PathError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Person", perr.Entity)
	assert.Equal(t, "nope", perr.Name)

	_, err = person.Path("addresses.nope")
	require.Error(t, err)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Address", perr.Entity)
	assert.Equal(t, "addresses.nope", perr.Key)

	// A relationship name in attribute position does not resolve.
	_, err = person.Path("addresses")
	assert.True(t, celer.IsUnresolvedPath(err))
}

const personYAML = `
entities:
  - name: Person
    table: person
    primaryKey: [id]
    attributes:
      - {name: id, type: int}
      - {name: name, type: text}
    relationships:
      - name: addresses
        toMany: true
        destination: Address
        joins:
          - {source: id, dest: personId}
`

const addressYAML = `
entities:
  - name: Address
    table: address
    primaryKey: [id]
    attributes:
      - {name: id, type: int}
      - {name: personId, column: person_id, type: int}
      - {name: city, type: text, nullable: true}
`

func TestLoad(t *testing.T) {
	doc := personYAML + strings.TrimPrefix(addressYAML, "\nentities:\n")
	m, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	person, ok := m.Entity("Person")
	require.True(t, ok)
	rel, ok := person.Relationship("addresses")
	require.True(t, ok)
	require.NotNil(t, rel.Dest())
	assert.Equal(t, "address", rel.Dest().Table)
	city, ok := rel.Dest().Attribute("city")
	require.True(t, ok)
	assert.Equal(t, celer.KindText, city.Type)
	assert.True(t, city.Nullable)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader("entities:\n  - name: A\n    attributes:\n      - {name: id, type: complex128}\n"))
	assert.ErrorContains(t, err, "unknown type")

	// Unknown document fields are rejected.
	_, err = Load(strings.NewReader("entitys:\n  - name: A\n"))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "person.yaml"), []byte(personYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "address.yml"), []byte(addressYAML), 0o644))

	m, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, m.Entities, 2)
	person, ok := m.Entity("Person")
	require.True(t, ok)
	rel, _ := person.Relationship("addresses")
	require.NotNil(t, rel.Dest())

	p, err := person.Path("addresses.city")
	require.NoError(t, err)
	assert.Equal(t, "city", p.Attr.Column)
}
