package model

import (
	"github.com/syssam/celer/qualifier"
)

// HintCustomQuery keys a raw-SQL pattern in a fetch specification's hint
// map. When present, the compiler substitutes its %(key)s placeholders
// with the assembled statement fragments and uses the result as the
// statement text instead of the assembled one.
const HintCustomQuery = "CustomQueryExpressionHint"

// SortOrdering orders a fetch by a key, which may traverse
// relationships just like a qualifier key.
type SortOrdering struct {
	Key        string
	Descending bool
}

// Asc returns an ascending ordering over key.
func Asc(key string) SortOrdering { return SortOrdering{Key: key} }

// Desc returns a descending ordering over key.
func Desc(key string) SortOrdering { return SortOrdering{Key: key, Descending: true} }

// FetchSpecification describes a select: which entity, which rows,
// in what order, and how much of it. The zero value of every optional
// field means "unset": no qualifier selects all rows, no attribute list
// projects every attribute in declaration order, zero limit and offset
// apply no window.
type FetchSpecification struct {
	// Entity is the name of the root entity.
	Entity string
	// Qualifier restricts the fetched rows. Optional.
	Qualifier qualifier.Qualifier
	// SortOrderings apply in order.
	SortOrderings []SortOrdering
	// Limit and Offset window the result. Zero means unset.
	Limit  int
	Offset int
	// Attributes restricts the projection to the named attributes,
	// in the given order. Empty means all attributes.
	Attributes []string
	// Prefetch names relationships to fetch alongside the root rows.
	// It does not affect the compiled statement and is passed through
	// to the execution layer.
	Prefetch []string
	// Distinct adds DISTINCT to the projection.
	Distinct bool
	// Locks requests FOR UPDATE row locking where the dialect has it.
	Locks bool
	// Hints carries raw-SQL patterns and other execution hints.
	Hints map[string]string
}

// Hint returns the named hint.
func (f *FetchSpecification) Hint(key string) (string, bool) {
	v, ok := f.Hints[key]
	return v, ok
}

// SetHint sets a hint, allocating the map on first use.
func (f *FetchSpecification) SetHint(key, value string) {
	if f.Hints == nil {
		f.Hints = make(map[string]string)
	}
	f.Hints[key] = value
}
