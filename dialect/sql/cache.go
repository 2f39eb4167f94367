package sql

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/celer"
	"github.com/syssam/celer/dialect"
	"github.com/syssam/celer/model"
	"github.com/syssam/celer/qualifier"
)

type exprPayload struct {
	Statement string        `msgpack:"s"`
	Binds     []bindPayload `msgpack:"b"`
}

type bindPayload struct {
	Value any    `msgpack:"v"`
	Kind  uint8  `msgpack:"k"`
	Attr  string `msgpack:"a,omitempty"`
}

// MarshalBinary encodes the expression for cache storage.
func (e *Expression) MarshalBinary() ([]byte, error) {
	p := exprPayload{Statement: e.Statement, Binds: make([]bindPayload, len(e.Binds))}
	for i, b := range e.Binds {
		p.Binds[i] = bindPayload{Value: b.Value.Interface(), Kind: uint8(b.Value.Kind())}
		if b.Attr != nil {
			p.Binds[i].Attr = b.Attr.Name
		}
	}
	return msgpack.Marshal(p)
}

// UnmarshalBinary decodes a cached expression. Bind attributes come
// back nil; reviveAttrs restores them against an entity.
func (e *Expression) UnmarshalBinary(data []byte) error {
	var p exprPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return err
	}
	e.Statement = p.Statement
	e.Binds = make([]BindVariable, len(p.Binds))
	for i, b := range p.Binds {
		v, err := reviveValue(celer.Kind(b.Kind), b.Value)
		if err != nil {
			return err
		}
		e.Binds[i] = BindVariable{Value: v}
	}
	e.attrNames(p.Binds)
	return nil
}

// attrNames stashes the attribute names until reviveAttrs runs.
func (e *Expression) attrNames(binds []bindPayload) {
	e.revive = make([]string, len(binds))
	for i, b := range binds {
		e.revive[i] = b.Attr
	}
}

// reviveAttrs restores bind attribute pointers after UnmarshalBinary.
func (e *Expression) reviveAttrs(ent *model.Entity) {
	for i, name := range e.revive {
		if name == "" {
			continue
		}
		if attr, ok := ent.Attribute(name); ok {
			e.Binds[i].Attr = attr
		}
	}
	e.revive = nil
}

func reviveValue(kind celer.Kind, v any) (celer.Value, error) {
	switch kind {
	case celer.KindNull:
		return celer.Null(), nil
	case celer.KindUUID:
		s, ok := v.(string)
		if !ok {
			return celer.Value{}, fmt.Errorf("sql: cached uuid bind is %T", v)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return celer.Value{}, err
		}
		return celer.UUID(u), nil
	case celer.KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return celer.Value{}, fmt.Errorf("sql: cached time bind is %T", v)
		}
		return celer.Time(t), nil
	}
	cv, err := celer.ValueOf(v)
	if err != nil {
		return celer.Value{}, err
	}
	if cv.Kind() != kind {
		return celer.Value{}, fmt.Errorf("sql: cached bind kind mismatch: %s decoded as %s", kind, cv.Kind())
	}
	return cv, nil
}

type fetchFingerprint struct {
	Dialect    string   `msgpack:"d"`
	Entity     string   `msgpack:"e"`
	Qualifier  string   `msgpack:"q,omitempty"`
	Orderings  []string `msgpack:"o,omitempty"`
	Limit      int      `msgpack:"l,omitempty"`
	Offset     int      `msgpack:"f,omitempty"`
	Attributes []string `msgpack:"a,omitempty"`
	Distinct   bool     `msgpack:"x,omitempty"`
	Locks      bool     `msgpack:"k,omitempty"`
	Hints      []string `msgpack:"h,omitempty"`
	RawBinds   []string `msgpack:"r,omitempty"`
}

// rawBinds collects the bound raw-variable values of a qualifier tree.
// Raw values are inlined into the statement text while Qualifier.String
// renders the $name reference, so the values themselves are part of the
// cache identity.
func rawBinds(q qualifier.Qualifier, out []string) []string {
	switch q := q.(type) {
	case *qualifier.Compound:
		for _, child := range q.Quals {
			out = rawBinds(child, out)
		}
	case *qualifier.Negation:
		out = rawBinds(q.Qual, out)
	case *qualifier.Raw:
		for _, p := range q.Parts {
			if p.Var != "" && p.Bound {
				out = append(out, p.Var+"="+p.Value.String())
			}
		}
	}
	return out
}

// Fingerprint returns a stable cache key for compiling a fetch
// specification against an entity and dialect. Two specifications with
// the same fingerprint compile to the same expression.
func Fingerprint(e *model.Entity, fetch *model.FetchSpecification, feats dialect.Features) (string, error) {
	fp := fetchFingerprint{
		Dialect:    feats.Name,
		Entity:     e.Name,
		Limit:      fetch.Limit,
		Offset:     fetch.Offset,
		Attributes: fetch.Attributes,
		Distinct:   fetch.Distinct,
		Locks:      fetch.Locks,
	}
	if fetch.Qualifier != nil {
		fp.Qualifier = fetch.Qualifier.String()
		fp.RawBinds = rawBinds(fetch.Qualifier, nil)
	}
	for _, so := range fetch.SortOrderings {
		s := so.Key
		if so.Descending {
			s += " DESC"
		}
		fp.Orderings = append(fp.Orderings, s)
	}
	keys := make([]string, 0, len(fetch.Hints))
	for k := range fetch.Hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fp.Hints = append(fp.Hints, k+"="+fetch.Hints[k])
	}
	data, err := msgpack.Marshal(fp)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	h.Write(data)
	return "sql:" + e.Name + ":" + strconv.FormatUint(h.Sum64(), 16), nil
}

// CachedCompile compiles through a cache. A hit decodes the stored
// expression instead of re-running the compiler; a miss compiles,
// stores and returns. Cache failures degrade to plain compilation.
func CachedCompile(ctx context.Context, cache celer.Cache, ttl time.Duration, e *model.Entity, fetch *model.FetchSpecification, feats dialect.Features) (*Expression, error) {
	key, err := Fingerprint(e, fetch, feats)
	if err != nil {
		return nil, err
	}
	if data, err := cache.Get(ctx, key); err == nil && data != nil {
		expr := &Expression{}
		if err := expr.UnmarshalBinary(data); err == nil {
			expr.reviveAttrs(e)
			return expr, nil
		}
	}
	expr, err := Compile(e, fetch, feats)
	if err != nil {
		return nil, err
	}
	if data, err := expr.MarshalBinary(); err == nil {
		_ = cache.Set(ctx, key, data, ttl)
	}
	return expr, nil
}
