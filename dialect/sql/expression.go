package sql

import (
	"github.com/syssam/celer"
	"github.com/syssam/celer/model"
)

// BindVariable is a single ? (or $n) slot of a compiled statement. Attr
// is the originating attribute when the compiler knows it, so a driver
// can coerce the value to the column's type.
type BindVariable struct {
	Value celer.Value
	Attr  *model.Attribute
}

// Expression is a compiled statement: the text plus its bind variables
// in placeholder order. It is self-contained — executing it never needs
// the compiler again — and immutable once returned.
type Expression struct {
	Statement string
	Binds     []BindVariable

	// revive holds bind attribute names between UnmarshalBinary and
	// reviveAttrs.
	revive []string
}

// Args returns the bind values in driver form, for passing to
// dialect.ExecQuerier.
func (e *Expression) Args() []any {
	args := make([]any, len(e.Binds))
	for i := range e.Binds {
		args[i] = e.Binds[i].Value.Interface()
	}
	return args
}
