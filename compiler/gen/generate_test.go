package gen

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/celer"
	"github.com/syssam/celer/model"
)

func testModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New(
		&model.Entity{
			Name:       "Person",
			PrimaryKey: []string{"id"},
			Attributes: []*model.Attribute{
				{Name: "id", Type: celer.KindInt},
				{Name: "name", Type: celer.KindText, Nullable: true},
				{Name: "createdAt", Column: "created_at", Type: celer.KindTime},
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
				{Name: "city", Type: celer.KindText, Nullable: true},
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

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	g := New(testModel(t), dir).WithPackage("blog")
	require.NoError(t, g.Generate(context.Background()))

	buf, err := os.ReadFile(filepath.Join(dir, "person.go"))
	require.NoError(t, err)
	src := string(buf)
	assert.Contains(t, src, "// Code generated by celer. DO NOT EDIT.")
	assert.Contains(t, src, "package blog")
	assert.Contains(t, src, `PersonTable = "people"`)
	assert.Regexp(t, `PersonKeyID\s+= "id"`, src)
	assert.Regexp(t, `PersonKeyCreatedAt\s+= "createdAt"`, src)
	assert.Contains(t, src, "type Person struct {")
	assert.Regexp(t, `ID\s+int64`, src)
	assert.Regexp(t, `Name\s+\*string`, src)
	assert.Regexp(t, `CreatedAt\s+time\.Time`, src)
	assert.Regexp(t, `Addresses\s+\[\]\*Address`, src)
	assert.Contains(t, src, "func (m *Person) ValueForKey(key string) (any, bool)")

	buf, err = os.ReadFile(filepath.Join(dir, "address.go"))
	require.NoError(t, err)
	src = string(buf)
	assert.Regexp(t, `PersonID\s+\*int64`, src)
	assert.Regexp(t, `Owner\s+\*Person`, src)
	assert.Contains(t, src, `case "owner":`)
	assert.Contains(t, src, "return m.Owner, true")
}

func TestPascal(t *testing.T) {
	for i, tt := range []struct {
		in, out string
	}{
		{"id", "ID"},
		{"person_id", "PersonID"},
		{"personID", "PersonID"},
		{"createdAt", "CreatedAt"},
		{"name", "Name"},
		{"avatar_url", "AvatarURL"},
	} {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tt.out, pascal(tt.in))
		})
	}
}
