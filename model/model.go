// Package model describes entities, their attributes and their
// relationships. The structures are plain data: they are populated by
// hand, by the YAML loader in this package, or by any other frontend,
// and are read-only to the qualifier compiler and the schema engine.
package model

import (
	"fmt"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/celer"
)

// Entity maps a named type to a database table.
type Entity struct {
	// Name is the entity name used in qualifiers and relationships.
	Name string
	// Table is the external table name. Empty means derived from Name
	// (pluralized snake case).
	Table string
	// Attributes in declaration order. The order is meaningful: a fetch
	// without an explicit projection selects all attributes in this
	// order.
	Attributes []*Attribute
	// PrimaryKey lists the attribute names forming the primary key.
	PrimaryKey []string
	// Relationships declared on this entity.
	Relationships []*Relationship
}

// Attribute maps a property name to a column.
type Attribute struct {
	Name     string
	Column   string // defaults to Name
	Type     celer.Kind
	Nullable bool
}

// Relationship connects two entities over one or more attribute pairs.
// Compound joins are ANDed into a single ON clause by the compiler.
type Relationship struct {
	Name        string
	ToMany      bool
	Destination string // destination entity name
	Joins       []Join

	dest *Entity // resolved by New
}

// Dest returns the resolved destination entity. It is nil until the
// relationship's model has been built with New.
func (r *Relationship) Dest() *Entity { return r.dest }

// Join pairs a source attribute with a destination attribute.
type Join struct {
	Source string
	Dest   string
}

// Model is a resolved set of entities.
type Model struct {
	Entities []*Entity

	byName map[string]*Entity
}

// New builds a model from entities, filling name defaults and resolving
// every relationship destination. Unresolvable destinations, joins over
// unknown attributes and dangling primary keys are errors; a model that
// New accepts needs no further validation at compile time, except for
// the qualifier paths themselves.
func New(entities ...*Entity) (*Model, error) {
	m := &Model{Entities: entities, byName: make(map[string]*Entity, len(entities))}
	for _, e := range entities {
		if e.Name == "" {
			return nil, fmt.Errorf("model: entity without a name")
		}
		if _, ok := m.byName[e.Name]; ok {
			return nil, fmt.Errorf("model: duplicate entity %q", e.Name)
		}
		if e.Table == "" {
			e.Table = TableName(e.Name)
		}
		for _, a := range e.Attributes {
			if a.Column == "" {
				a.Column = a.Name
			}
		}
		for _, pk := range e.PrimaryKey {
			if _, ok := e.Attribute(pk); !ok {
				return nil, fmt.Errorf("model: entity %q primary key references unknown attribute %q", e.Name, pk)
			}
		}
		m.byName[e.Name] = e
	}
	for _, e := range entities {
		for _, r := range e.Relationships {
			dest, ok := m.byName[r.Destination]
			if !ok {
				return nil, fmt.Errorf("model: relationship %s.%s references unknown entity %q", e.Name, r.Name, r.Destination)
			}
			r.dest = dest
			if len(r.Joins) == 0 {
				return nil, fmt.Errorf("model: relationship %s.%s has no joins", e.Name, r.Name)
			}
			for _, j := range r.Joins {
				if _, ok := e.Attribute(j.Source); !ok {
					return nil, fmt.Errorf("model: relationship %s.%s joins unknown source attribute %q", e.Name, r.Name, j.Source)
				}
				if _, ok := dest.Attribute(j.Dest); !ok {
					return nil, fmt.Errorf("model: relationship %s.%s joins unknown destination attribute %q", e.Name, r.Name, j.Dest)
				}
			}
		}
	}
	return m, nil
}

// Entity returns the entity with the given name.
func (m *Model) Entity(name string) (*Entity, bool) {
	e, ok := m.byName[name]
	return e, ok
}

// TableName derives the default table name for an entity name:
// pluralized snake case, e.g. UserGroup becomes user_groups. The name
// is underscored first; inflect's irregular-noun table is keyed on
// lowercase words, so Person only becomes people that way around.
func TableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// Attribute returns the attribute with the given property name.
func (e *Entity) Attribute(name string) (*Attribute, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Relationship returns the relationship with the given name.
func (e *Entity) Relationship(name string) (*Relationship, bool) {
	for _, r := range e.Relationships {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Path is a resolved dotted key: zero or more relationship hops ending
// in an attribute on the final hop's destination.
type Path struct {
	Key  string
	Rels []*Relationship
	Attr *Attribute
}

// Relationship reports whether the path traverses at least one hop.
func (p *Path) Relationship() bool { return len(p.Rels) > 0 }

// RelKey returns the dotted relationship prefix of the path, without the
// trailing attribute. It identifies the join target: two paths with the
// same RelKey share one table alias.
func (p *Path) RelKey() string {
	names := make([]string, len(p.Rels))
	for i, r := range p.Rels {
		names[i] = r.Name
	}
	return strings.Join(names, ".")
}

// Path resolves a dotted key against the entity. Every segment but the
// last must name a relationship; the last must name an attribute on the
// entity the hops arrive at. Unresolvable segments fail with a
// *celer.PathError, which the compiler surfaces unchanged.
func (e *Entity) Path(key string) (*Path, error) {
	p := &Path{Key: key}
	cur := e
	segs := strings.Split(key, ".")
	for i, seg := range segs {
		if i == len(segs)-1 {
			a, ok := cur.Attribute(seg)
			if !ok {
				return nil, &celer.PathError{Entity: cur.Name, Key: key, Name: seg}
			}
			p.Attr = a
			return p, nil
		}
		r, ok := cur.Relationship(seg)
		if !ok || r.dest == nil {
			return nil, &celer.PathError{Entity: cur.Name, Key: key, Name: seg}
		}
		p.Rels = append(p.Rels, r)
		cur = r.dest
	}
	return nil, &celer.PathError{Entity: e.Name, Key: key, Name: key}
}
