// Package qualifier defines the predicate language used to restrict
// fetches and mutations: a closed sum type over key/value comparisons,
// key/key comparisons, logical combinations, negation, and raw SQL
// fragments, together with a textual grammar, an in-memory evaluator,
// and rewrite utilities.
//
// Qualifiers are value types: once constructed they are never mutated,
// so they can be shared freely across goroutines and compared with
// Equal. Dotted keys such as "address.city" traverse relationships; the
// joins they imply are computed by the SQL compiler, not stored here.
package qualifier

import (
	"strconv"
	"strings"
	"time"

	"github.com/syssam/celer"
)

// Op is a comparison operator of the qualifier grammar.
type Op uint8

// The supported comparison operators.
const (
	OpEQ Op = iota
	OpNEQ
	OpLT
	OpLTE
	OpGT
	OpGTE
	OpLike
	OpILike
	OpIn
)

var opNames = [...]string{
	OpEQ:    "=",
	OpNEQ:   "!=",
	OpLT:    "<",
	OpLTE:   "<=",
	OpGT:    ">",
	OpGTE:   ">=",
	OpLike:  "LIKE",
	OpILike: "ILIKE",
	OpIn:    "IN",
}

// String returns the grammar form of the operator.
func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "<invalid>"
}

// OperatorOf maps a grammar token to its operator. Word operators are
// matched case-insensitively and "==" and "<>" are accepted as aliases.
func OperatorOf(s string) (Op, bool) {
	switch strings.ToUpper(s) {
	case "=", "==":
		return OpEQ, true
	case "!=", "<>":
		return OpNEQ, true
	case "<":
		return OpLT, true
	case "<=":
		return OpLTE, true
	case ">":
		return OpGT, true
	case ">=":
		return OpGTE, true
	case "LIKE":
		return OpLike, true
	case "ILIKE":
		return OpILike, true
	case "IN":
		return OpIn, true
	}
	return 0, false
}

// Conj is the logical connective of a Compound qualifier.
type Conj uint8

// The two connectives.
const (
	ConjAnd Conj = iota
	ConjOr
)

// String returns "AND" or "OR".
func (c Conj) String() string {
	if c == ConjOr {
		return "OR"
	}
	return "AND"
}

// Qualifier is a boolean predicate over keyed values. The concrete types
// are KeyValue, KeyComparison, Compound, Negation and Raw; the set is
// closed so consumers can match it exhaustively.
type Qualifier interface {
	// String returns the qualifier in its textual grammar form.
	String() string
	qualifier()
}

// KeyValue compares a key path against a literal value.
type KeyValue struct {
	Key   string
	Op    Op
	Value celer.Value
}

// KeyComparison compares two key paths of the same object.
type KeyComparison struct {
	Left  string
	Op    Op
	Right string
}

// Compound combines child qualifiers with AND or OR. An empty AND is
// true, an empty OR is false.
type Compound struct {
	Conj  Conj
	Quals []Qualifier
}

// Negation inverts its child qualifier.
type Negation struct {
	Qual Qualifier
}

// Raw embeds a hand-written SQL fragment in an otherwise structured
// qualifier. Its parts are literal text interleaved with named bind
// variables resolved by Bind before compilation. The literal text is
// caller-trusted: the compiler does not escape or re-quote it. Bound
// variable values are rendered as SQL literals by the compiler.
type Raw struct {
	Parts []RawPart
}

// RawPart is one segment of a Raw qualifier: literal text when Var is
// empty, otherwise a $name variable reference. Bound reports whether
// Bind has resolved the variable into Value.
type RawPart struct {
	Text  string
	Var   string
	Value celer.Value
	Bound bool
}

func (*KeyValue) qualifier()      {}
func (*KeyComparison) qualifier() {}
func (*Compound) qualifier()      {}
func (*Negation) qualifier()      {}
func (*Raw) qualifier()           {}

// value builds a celer.Value, mapping conversion failures to the invalid
// kind so that construction stays fluent; the compiler rejects invalid
// values with a proper error.
func value(v any) celer.Value {
	cv, err := celer.ValueOf(v)
	if err != nil {
		return celer.Value{}
	}
	return cv
}

// Cmp returns a key/value comparison with an explicit operator.
func Cmp(key string, op Op, v any) *KeyValue {
	return &KeyValue{Key: key, Op: op, Value: value(v)}
}

// EQ returns the qualifier key = v.
func EQ(key string, v any) *KeyValue { return Cmp(key, OpEQ, v) }

// NEQ returns the qualifier key != v.
func NEQ(key string, v any) *KeyValue { return Cmp(key, OpNEQ, v) }

// LT returns the qualifier key < v.
func LT(key string, v any) *KeyValue { return Cmp(key, OpLT, v) }

// LTE returns the qualifier key <= v.
func LTE(key string, v any) *KeyValue { return Cmp(key, OpLTE, v) }

// GT returns the qualifier key > v.
func GT(key string, v any) *KeyValue { return Cmp(key, OpGT, v) }

// GTE returns the qualifier key >= v.
func GTE(key string, v any) *KeyValue { return Cmp(key, OpGTE, v) }

// Like returns the qualifier key LIKE pattern. Patterns use * as the
// only wildcard.
func Like(key, pattern string) *KeyValue { return Cmp(key, OpLike, pattern) }

// ILike returns the case-insensitive variant of Like.
func ILike(key, pattern string) *KeyValue { return Cmp(key, OpILike, pattern) }

// In returns the qualifier key IN (vs...).
func In(key string, vs ...any) *KeyValue {
	list := make([]celer.Value, len(vs))
	for i := range vs {
		list[i] = value(vs[i])
	}
	return &KeyValue{Key: key, Op: OpIn, Value: celer.List(list...)}
}

// KeyCmp returns a comparison of two keys of the same object.
func KeyCmp(left string, op Op, right string) *KeyComparison {
	return &KeyComparison{Left: left, Op: op, Right: right}
}

// KeyEQ returns the qualifier left = right over two keys.
func KeyEQ(left, right string) *KeyComparison { return KeyCmp(left, OpEQ, right) }

// And combines qualifiers conjunctively. And() is true.
func And(qs ...Qualifier) *Compound {
	return &Compound{Conj: ConjAnd, Quals: qs}
}

// Or combines qualifiers disjunctively. Or() is false.
func Or(qs ...Qualifier) *Compound {
	return &Compound{Conj: ConjOr, Quals: qs}
}

// Not negates a qualifier.
func Not(q Qualifier) *Negation { return &Negation{Qual: q} }

// RawText returns a literal raw-SQL segment.
func RawText(s string) RawPart { return RawPart{Text: s} }

// RawVar returns a $name bind-variable segment.
func RawVar(name string) RawPart { return RawPart{Var: name} }

// NewRaw builds a raw-SQL qualifier from its segments.
func NewRaw(parts ...RawPart) *Raw { return &Raw{Parts: parts} }

// String renders the comparison in grammar form, e.g. `age > 13`.
func (q *KeyValue) String() string {
	return q.Key + " " + q.Op.String() + " " + literal(q.Value)
}

// String renders the comparison in grammar form, e.g. `begin < end`.
func (q *KeyComparison) String() string {
	return q.Left + " " + q.Op.String() + " " + q.Right
}

// String renders children joined by the connective, parenthesizing
// nested compounds and negations.
func (q *Compound) String() string {
	parts := make([]string, len(q.Quals))
	for i, c := range q.Quals {
		parts[i] = childString(c)
	}
	return strings.Join(parts, " "+q.Conj.String()+" ")
}

// String renders `NOT (child)`.
func (q *Negation) String() string {
	return "NOT (" + q.Qual.String() + ")"
}

// String renders the raw fragment as a SQL[ ... ] block.
func (q *Raw) String() string {
	var b strings.Builder
	b.WriteString("SQL[")
	for _, p := range q.Parts {
		if p.Var != "" {
			b.WriteByte('$')
			b.WriteString(p.Var)
			continue
		}
		b.WriteString(p.Text)
	}
	b.WriteByte(']')
	return b.String()
}

func childString(q Qualifier) string {
	switch q.(type) {
	case *Compound, *Negation:
		return "(" + q.String() + ")"
	}
	return q.String()
}

// literal renders a value in the grammar's literal syntax. Strings are
// single-quoted with embedded quotes doubled; the form parses back where
// the grammar has a literal syntax for the kind.
func literal(v celer.Value) string {
	switch v.Kind() {
	case celer.KindNull:
		return "null"
	case celer.KindBool:
		return strconv.FormatBool(v.BoolValue())
	case celer.KindInt:
		return strconv.FormatInt(v.IntValue(), 10)
	case celer.KindFloat:
		return strconv.FormatFloat(v.FloatValue(), 'f', -1, 64)
	case celer.KindText:
		return quote(v.TextValue())
	case celer.KindTime:
		t, _ := v.Interface().(time.Time)
		return quote(t.Format(time.RFC3339Nano))
	case celer.KindUUID:
		s, _ := v.Interface().(string)
		return quote(s)
	case celer.KindList:
		vs := v.ListValues()
		parts := make([]string, len(vs))
		for i := range vs {
			parts[i] = literal(vs[i])
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
	return v.String()
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Equal reports structural equality of two qualifiers.
func Equal(a, b Qualifier) bool {
	switch a := a.(type) {
	case *KeyValue:
		b, ok := b.(*KeyValue)
		return ok && a.Key == b.Key && a.Op == b.Op && celer.Equal(a.Value, b.Value) && a.Value.Kind() == b.Value.Kind()
	case *KeyComparison:
		b, ok := b.(*KeyComparison)
		return ok && a.Left == b.Left && a.Op == b.Op && a.Right == b.Right
	case *Compound:
		b, ok := b.(*Compound)
		if !ok || a.Conj != b.Conj || len(a.Quals) != len(b.Quals) {
			return false
		}
		for i := range a.Quals {
			if !Equal(a.Quals[i], b.Quals[i]) {
				return false
			}
		}
		return true
	case *Negation:
		b, ok := b.(*Negation)
		return ok && Equal(a.Qual, b.Qual)
	case *Raw:
		b, ok := b.(*Raw)
		if !ok || len(a.Parts) != len(b.Parts) {
			return false
		}
		for i := range a.Parts {
			ap, bp := a.Parts[i], b.Parts[i]
			if ap.Text != bp.Text || ap.Var != bp.Var || ap.Bound != bp.Bound {
				return false
			}
			if ap.Bound && !celer.Equal(ap.Value, bp.Value) {
				return false
			}
		}
		return true
	}
	return a == nil && b == nil
}

// UnboundVariableError reports a Raw variable that Bind could not
// resolve against the caller-supplied mapping.
type UnboundVariableError struct {
	Name string
}

// Error returns the error string.
func (e *UnboundVariableError) Error() string {
	return "qualifier: unbound variable $" + e.Name
}

// Bind resolves the $name variables of every Raw segment against vals
// and returns a new qualifier; the receiver is left untouched. Binding a
// name absent from vals is an error. Bind must run before SQL
// compilation of qualifiers containing Raw segments.
func Bind(q Qualifier, vals map[string]any) (Qualifier, error) {
	switch q := q.(type) {
	case *KeyValue, *KeyComparison:
		return q, nil
	case *Compound:
		kids := make([]Qualifier, len(q.Quals))
		for i := range q.Quals {
			k, err := Bind(q.Quals[i], vals)
			if err != nil {
				return nil, err
			}
			kids[i] = k
		}
		return &Compound{Conj: q.Conj, Quals: kids}, nil
	case *Negation:
		k, err := Bind(q.Qual, vals)
		if err != nil {
			return nil, err
		}
		return &Negation{Qual: k}, nil
	case *Raw:
		parts := make([]RawPart, len(q.Parts))
		for i, p := range q.Parts {
			if p.Var == "" || p.Bound {
				parts[i] = p
				continue
			}
			v, ok := vals[p.Var]
			if !ok {
				return nil, &UnboundVariableError{Name: p.Var}
			}
			cv, err := celer.ValueOf(v)
			if err != nil {
				return nil, err
			}
			parts[i] = RawPart{Var: p.Var, Value: cv, Bound: true}
		}
		return &Raw{Parts: parts}, nil
	}
	return q, nil
}
