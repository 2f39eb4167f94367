// Package schema computes the DDL needed to move a database toward a
// desired entity model. Tables are compared structurally, changes are
// gated by the dialect's capability flags, and the resulting statements
// are ordered so that every table exists before anything references it.
package schema

import (
	"github.com/syssam/celer"
)

// ReferenceOption for foreign-key actions (ON DELETE / ON UPDATE).
type ReferenceOption string

// Reference options.
const (
	NoAction   ReferenceOption = "NO ACTION"
	Restrict   ReferenceOption = "RESTRICT"
	Cascade    ReferenceOption = "CASCADE"
	SetNull    ReferenceOption = "SET NULL"
	SetDefault ReferenceOption = "SET DEFAULT"
)

// Table schema definition.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  []*Column
	Indexes     []*Index
	ForeignKeys []*ForeignKey

	columns map[string]*Column
}

// NewTable returns a new table with the given name.
func NewTable(name string) *Table {
	return &Table{
		Name:    name,
		columns: make(map[string]*Column),
	}
}

// AddColumn adds a new column to the table.
func (t *Table) AddColumn(c *Column) *Table {
	if t.columns == nil {
		t.columns = make(map[string]*Column)
	}
	t.columns[c.Name] = c
	t.Columns = append(t.Columns, c)
	return t
}

// AddPrimary adds a new primary-key column to the table.
func (t *Table) AddPrimary(c *Column) *Table {
	if !t.HasColumn(c.Name) {
		t.AddColumn(c)
	}
	t.PrimaryKey = append(t.PrimaryKey, c)
	return t
}

// AddIndex adds an index on the given column names. It fails silently
// for columns the table does not have; ValidateTable reports those.
func (t *Table) AddIndex(name string, unique bool, columns []string) *Table {
	idx := &Index{
		Name:    name,
		Unique:  unique,
		columns: columns,
	}
	for _, name := range columns {
		if c, ok := t.columns[name]; ok {
			idx.Columns = append(idx.Columns, c)
		}
	}
	t.Indexes = append(t.Indexes, idx)
	return t
}

// AddForeignKey adds a foreign key to the table.
func (t *Table) AddForeignKey(fk *ForeignKey) *Table {
	t.ForeignKeys = append(t.ForeignKeys, fk)
	return t
}

// HasColumn reports if the table contains a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Column returns the column with the given name. It builds the lookup
// map lazily so that literal Table values work too.
func (t *Table) Column(name string) (*Column, bool) {
	if t.columns == nil {
		t.columns = make(map[string]*Column, len(t.Columns))
		for _, c := range t.Columns {
			t.columns[c.Name] = c
		}
	}
	c, ok := t.columns[name]
	return c, ok
}

// fk returns the foreign key carrying the given symbol.
func (t *Table) fk(symbol string) (*ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Symbol == symbol {
			return fk, true
		}
	}
	return nil, false
}

// Column schema definition.
type Column struct {
	Name     string     // column name.
	Type     celer.Kind // column value kind, mapped to a dialect type on render.
	Nullable bool       // null or not null attribute.
	Default  any        // default value, rendered literally.
	Size     int64      // max size for text columns. Zero means dialect default.
	Unique   bool       // unique constraint.
}

// Index definition.
type Index struct {
	Name    string
	Unique  bool
	Columns []*Column

	columns []string
}

// columnNames returns the index column names in order.
func (i *Index) columnNames() []string {
	if len(i.columns) > 0 {
		return i.columns
	}
	names := make([]string, len(i.Columns))
	for j, c := range i.Columns {
		names[j] = c.Name
	}
	return names
}

// ForeignKey definition.
type ForeignKey struct {
	Symbol     string          // constraint name.
	Columns    []*Column       // referencing columns.
	RefTable   *Table          // referenced table.
	RefColumns []*Column       // referenced columns.
	OnUpdate   ReferenceOption // action on update.
	OnDelete   ReferenceOption // action on delete.
}
