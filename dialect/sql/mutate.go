package sql

import (
	"strings"

	"github.com/syssam/celer"
	"github.com/syssam/celer/dialect"
	"github.com/syssam/celer/model"
	"github.com/syssam/celer/qualifier"
)

// ChangedValue is one column assignment of an INSERT or UPDATE. The
// slice order is the caller's and is preserved in the statement, so
// compiled mutations are deterministic.
type ChangedValue struct {
	Name  string
	Value any
}

// Changed is a convenience constructor for a ChangedValue.
func Changed(name string, v any) ChangedValue {
	return ChangedValue{Name: name, Value: v}
}

// resolve maps a changed value to its attribute and literal.
func (c *compiler) resolve(cv ChangedValue) (*model.Attribute, celer.Value, error) {
	attr, ok := c.entity.Attribute(cv.Name)
	if !ok {
		return nil, celer.Value{}, &celer.PathError{Entity: c.entity.Name, Key: cv.Name, Name: cv.Name}
	}
	v, err := celer.ValueOf(cv.Value)
	if err != nil {
		return nil, celer.Value{}, err
	}
	return attr, v, nil
}

// CompileInsert builds an INSERT statement from the changed values, in
// the given order.
func CompileInsert(e *model.Entity, values []ChangedValue, feats dialect.Features) (*Expression, error) {
	c := newCompiler(e, feats)
	c.bare = true
	cols := make([]string, len(values))
	terms := make([]string, len(values))
	for i, cv := range values {
		attr, v, err := c.resolve(cv)
		if err != nil {
			return nil, err
		}
		cols[i] = feats.Quote(attr.Column)
		if terms[i], err = c.term(v, attr); err != nil {
			return nil, err
		}
	}
	stmt := "INSERT INTO " + feats.Quote(e.Table) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(terms, ", ") + ")"
	return &Expression{Statement: stmt, Binds: c.binds}, nil
}

// CompileUpdate builds an UPDATE statement. The qualifier is required:
// compiling without one fails with celer.ErrMissingQualifier instead of
// emitting a statement that would touch every row. Qualifier keys may
// not traverse relationships.
func CompileUpdate(e *model.Entity, values []ChangedValue, q qualifier.Qualifier, feats dialect.Features) (*Expression, error) {
	c := newCompiler(e, feats)
	c.bare = true
	sets := make([]string, len(values))
	for i, cv := range values {
		attr, v, err := c.resolve(cv)
		if err != nil {
			return nil, err
		}
		t, err := c.term(v, attr)
		if err != nil {
			return nil, err
		}
		sets[i] = feats.Quote(attr.Column) + " = " + t
	}
	where, err := c.mutationWhere(q)
	if err != nil {
		return nil, err
	}
	stmt := "UPDATE " + feats.Quote(e.Table) + " SET " + strings.Join(sets, ", ") + " WHERE " + where
	return &Expression{Statement: stmt, Binds: c.binds}, nil
}

// CompileDelete builds a DELETE statement. As with UPDATE, an absent or
// empty qualifier is an error, never an unqualified delete.
func CompileDelete(e *model.Entity, q qualifier.Qualifier, feats dialect.Features) (*Expression, error) {
	c := newCompiler(e, feats)
	c.bare = true
	where, err := c.mutationWhere(q)
	if err != nil {
		return nil, err
	}
	stmt := "DELETE FROM " + feats.Quote(e.Table) + " WHERE " + where
	return &Expression{Statement: stmt, Binds: c.binds}, nil
}

func (c *compiler) mutationWhere(q qualifier.Qualifier) (string, error) {
	if q == nil {
		return "", celer.ErrMissingQualifier
	}
	where, err := c.where(q)
	if err != nil {
		return "", err
	}
	if where == "" {
		return "", celer.ErrMissingQualifier
	}
	return where, nil
}

// OptimisticLock merges a row-identifying qualifier with equality
// checks over snapshot values, so a concurrent update of any checked
// attribute makes the mutation match zero rows. Attributes are checked
// in the given order; a snapshot value that is absent or nil compiles
// to an IS NULL check.
func OptimisticLock(pk qualifier.Qualifier, snapshot map[string]any, attrs ...string) qualifier.Qualifier {
	quals := make([]qualifier.Qualifier, 0, len(attrs)+1)
	if pk != nil {
		quals = append(quals, pk)
	}
	for _, name := range attrs {
		quals = append(quals, qualifier.EQ(name, snapshot[name]))
	}
	return qualifier.And(quals...)
}
