package qualifier

import "github.com/syssam/celer"

// CompactOr rewrites an OR compound so that equality children sharing a
// key collapse into a single IN over their values, e.g.
//
//	a = 10 OR a = 10 OR a = 11 OR b = 'hello'
//
// becomes a IN (10, 10, 11) OR b = 'hello'. Values keep their encounter
// order and duplicates are preserved; children that are not simple
// equalities are left untouched. Any other qualifier is returned as is.
// Compacting keeps the SQL for large ID lists to a single bindable IN.
func CompactOr(q Qualifier) Qualifier {
	or, ok := q.(*Compound)
	if !ok || or.Conj != ConjOr {
		return q
	}
	type group struct {
		pos    int // index of the first occurrence
		values []celer.Value
	}
	var (
		groups = make(map[string]*group)
		rest   = make([]Qualifier, 0, len(or.Quals))
		merged bool
	)
	for _, c := range or.Quals {
		kv, ok := c.(*KeyValue)
		if !ok || kv.Op != OpEQ {
			rest = append(rest, c)
			continue
		}
		g, ok := groups[kv.Key]
		if !ok {
			g = &group{pos: len(rest)}
			groups[kv.Key] = g
			rest = append(rest, nil) // placeholder, filled below
		} else {
			merged = true
		}
		g.values = append(g.values, kv.Value)
	}
	if !merged {
		return q
	}
	for key, g := range groups {
		if len(g.values) == 1 {
			rest[g.pos] = &KeyValue{Key: key, Op: OpEQ, Value: g.values[0]}
			continue
		}
		rest[g.pos] = &KeyValue{Key: key, Op: OpIn, Value: celer.List(g.values...)}
	}
	return &Compound{Conj: ConjOr, Quals: rest}
}
