package qualifier

import (
	"strings"

	"github.com/syssam/celer"
)

// Valuer resolves a single key segment to a value on an object. Returning
// false marks the key as missing, which is distinct from a present nil.
// Both are treated as NULL by the comparison rules below.
type Valuer interface {
	ValueForKey(name string) (any, bool)
}

// MapValuer adapts a plain map to the Valuer interface. Nested maps (or
// nested Valuers) serve dotted key paths.
type MapValuer map[string]any

// ValueForKey implements Valuer.
func (m MapValuer) ValueForKey(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// Evaluate applies the qualifier to an object in memory. The comparison
// rules follow SQL-ish three-valued logic collapsed to bool: NULL equals
// only NULL, a missing operand sorts lowest under ordering operators,
// and cross-kind comparisons are false rather than an error. Raw
// qualifiers have no in-memory semantics and evaluate to false.
func Evaluate(q Qualifier, obj Valuer) bool {
	switch q := q.(type) {
	case *KeyValue:
		return compare(lookup(obj, q.Key), q.Op, q.Value)
	case *KeyComparison:
		return compare(lookup(obj, q.Left), q.Op, lookup(obj, q.Right))
	case *Compound:
		if q.Conj == ConjOr {
			for _, c := range q.Quals {
				if Evaluate(c, obj) {
					return true
				}
			}
			return false
		}
		for _, c := range q.Quals {
			if !Evaluate(c, obj) {
				return false
			}
		}
		return true
	case *Negation:
		return !Evaluate(q.Qual, obj)
	case *Raw:
		return false
	}
	return false
}

// lookup walks a dotted key path. A missing segment, a nil intermediate,
// or an unconvertible runtime value all collapse to NULL.
func lookup(obj Valuer, key string) celer.Value {
	cur := obj
	segs := strings.Split(key, ".")
	for i, seg := range segs {
		if cur == nil {
			return celer.Null()
		}
		v, ok := cur.ValueForKey(seg)
		if !ok {
			return celer.Null()
		}
		if i == len(segs)-1 {
			cv, err := celer.ValueOf(v)
			if err != nil {
				return celer.Null()
			}
			return cv
		}
		switch v := v.(type) {
		case Valuer:
			cur = v
		case map[string]any:
			cur = MapValuer(v)
		default:
			return celer.Null()
		}
	}
	return celer.Null()
}

func compare(l celer.Value, op Op, r celer.Value) bool {
	switch op {
	case OpEQ:
		return celer.Equal(l, r)
	case OpNEQ:
		return !celer.Equal(l, r)
	case OpLT, OpLTE, OpGT, OpGTE:
		return ordered(l, op, r)
	case OpLike:
		return like(l, r, false)
	case OpILike:
		return like(l, r, true)
	case OpIn:
		return contains(l, r)
	}
	return false
}

func ordered(l celer.Value, op Op, r celer.Value) bool {
	// Both NULL: no ordering. One NULL: the NULL side sorts lowest.
	switch {
	case l.IsNull() && r.IsNull():
		return false
	case l.IsNull():
		return op == OpLT || op == OpLTE
	case r.IsNull():
		return op == OpGT || op == OpGTE
	}
	cmp, ok := celer.Compare(l, r)
	if !ok {
		return false
	}
	switch op {
	case OpLT:
		return cmp < 0
	case OpLTE:
		return cmp <= 0
	case OpGT:
		return cmp > 0
	case OpGTE:
		return cmp >= 0
	}
	return false
}

// like matches the three supported * shapes: prefix*, *suffix and
// *contains*. Any other pattern degrades to exact equality.
func like(l, r celer.Value, fold bool) bool {
	if l.Kind() != celer.KindText || r.Kind() != celer.KindText {
		return false
	}
	s, pat := l.TextValue(), r.TextValue()
	if fold {
		s, pat = strings.ToLower(s), strings.ToLower(pat)
	}
	head := strings.HasPrefix(pat, "*")
	tail := strings.HasSuffix(pat, "*")
	switch {
	case head && tail && len(pat) >= 2:
		return strings.Contains(s, pat[1:len(pat)-1])
	case tail:
		return strings.HasPrefix(s, pat[:len(pat)-1])
	case head:
		return strings.HasSuffix(s, pat[1:])
	}
	return s == pat
}

// contains implements IN: list membership against a list literal, or
// substring containment against a string literal.
func contains(l, r celer.Value) bool {
	switch r.Kind() {
	case celer.KindList:
		for _, v := range r.ListValues() {
			if celer.Equal(l, v) {
				return true
			}
		}
		return false
	case celer.KindText:
		if l.Kind() != celer.KindText {
			return false
		}
		return strings.Contains(r.TextValue(), l.TextValue())
	}
	return false
}
