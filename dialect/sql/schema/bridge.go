package schema

import (
	"fmt"

	"github.com/syssam/celer/model"
)

// Tables converts a resolved entity model into table definitions. Each
// to-one relationship whose source attributes are not the primary key of
// the destination becomes a foreign key on the owning table; to-many
// relationships are expected to be declared as the inverse to-one on the
// destination entity and produce no constraint here.
func Tables(m *model.Model) ([]*Table, error) {
	tables := make([]*Table, 0, len(m.Entities))
	byEntity := make(map[string]*Table, len(m.Entities))
	for _, e := range m.Entities {
		t := NewTable(e.Table)
		for _, a := range e.Attributes {
			t.AddColumn(&Column{
				Name:     a.Column,
				Type:     a.Type,
				Nullable: a.Nullable,
			})
		}
		for _, name := range e.PrimaryKey {
			a, ok := e.Attribute(name)
			if !ok {
				return nil, fmt.Errorf("schema: entity %q: unknown primary key attribute %q", e.Name, name)
			}
			c, _ := t.Column(a.Column)
			t.PrimaryKey = append(t.PrimaryKey, c)
		}
		byEntity[e.Name] = t
		tables = append(tables, t)
	}
	for _, e := range m.Entities {
		t := byEntity[e.Name]
		for _, r := range e.Relationships {
			if r.ToMany {
				continue
			}
			ref, ok := byEntity[r.Destination]
			if !ok {
				return nil, fmt.Errorf("schema: entity %q: relationship %q targets unknown entity %q", e.Name, r.Name, r.Destination)
			}
			fk := &ForeignKey{
				Symbol:   fmt.Sprintf("%s_%s", t.Name, r.Name),
				RefTable: ref,
				OnUpdate: NoAction,
				OnDelete: NoAction,
			}
			nullable := true
			dest := r.Dest()
			for _, j := range r.Joins {
				sa, ok := e.Attribute(j.Source)
				if !ok {
					return nil, fmt.Errorf("schema: entity %q: relationship %q joins unknown attribute %q", e.Name, r.Name, j.Source)
				}
				da, ok := dest.Attribute(j.Dest)
				if !ok {
					return nil, fmt.Errorf("schema: entity %q: relationship %q joins unknown destination attribute %q", e.Name, r.Name, j.Dest)
				}
				sc, _ := t.Column(sa.Column)
				dc, _ := ref.Column(da.Column)
				fk.Columns = append(fk.Columns, sc)
				fk.RefColumns = append(fk.RefColumns, dc)
				if !sc.Nullable {
					nullable = false
				}
			}
			if nullable {
				fk.OnDelete = SetNull
			}
			t.AddForeignKey(fk)
		}
	}
	return tables, nil
}
