package celer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the closed set of literal value kinds understood by the
// qualifier evaluator and the SQL compiler. Keeping the set closed means
// every consumer can match it exhaustively instead of casting at runtime.
type Kind uint8

// The supported value kinds.
const (
	KindInvalid Kind = iota
	KindNull
	KindBool
	KindInt
	KindFloat
	KindText
	KindBytes
	KindTime
	KindUUID
	KindList
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindNull:    "null",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindText:    "text",
	KindBytes:   "bytes",
	KindTime:    "time",
	KindUUID:    "uuid",
	KindList:    "list",
}

// String returns the lower-cased name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// KindOf maps a type name used in model files to its Kind. It reports
// false for unknown names.
func KindOf(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "bool", "boolean":
		return KindBool, true
	case "int", "integer", "int64":
		return KindInt, true
	case "float", "float64", "double":
		return KindFloat, true
	case "text", "string", "varchar":
		return KindText, true
	case "bytes", "blob", "binary":
		return KindBytes, true
	case "time", "timestamp", "datetime":
		return KindTime, true
	case "uuid":
		return KindUUID, true
	}
	return KindInvalid, false
}

// Value is an immutable literal used in qualifiers and bind variables.
// The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	bs   []byte
	t    time.Time
	u    uuid.UUID
	list []Value
}

// Null returns the SQL NULL literal.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean literal.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer literal.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point literal.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Text returns a string literal.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Bytes returns a binary literal.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bs: b} }

// Time returns a timestamp literal.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// UUID returns a uuid literal. It binds as text on backends without a
// native uuid type.
func UUID(u uuid.UUID) Value { return Value{kind: KindUUID, u: u} }

// List returns a list literal, used as the right-hand side of IN.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// ValueOf converts a native Go value into a Value. Unsupported types
// return an error rather than being coerced through fmt.
func ValueOf(v any) (Value, error) {
	switch v := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return v, nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(int64(v)), nil
	case int8:
		return Int(int64(v)), nil
	case int16:
		return Int(int64(v)), nil
	case int32:
		return Int(int64(v)), nil
	case int64:
		return Int(v), nil
	case uint:
		return Int(int64(v)), nil
	case uint8:
		return Int(int64(v)), nil
	case uint16:
		return Int(int64(v)), nil
	case uint32:
		return Int(int64(v)), nil
	case uint64:
		return Int(int64(v)), nil
	case float32:
		return Float(float64(v)), nil
	case float64:
		return Float(v), nil
	case string:
		return Text(v), nil
	case []byte:
		return Bytes(v), nil
	case time.Time:
		return Time(v), nil
	case uuid.UUID:
		return UUID(v), nil
	case []any:
		vs := make([]Value, len(v))
		for i := range v {
			cv, err := ValueOf(v[i])
			if err != nil {
				return Value{}, err
			}
			vs[i] = cv
		}
		return List(vs...), nil
	}
	return Value{}, fmt.Errorf("celer: unsupported literal type %T", v)
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the NULL literal.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsValid reports whether the value carries a supported kind.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// BoolValue returns the boolean payload. It is only meaningful for KindBool.
func (v Value) BoolValue() bool { return v.b }

// IntValue returns the integer payload. It is only meaningful for KindInt.
func (v Value) IntValue() int64 { return v.i }

// FloatValue returns the float payload. It is only meaningful for KindFloat.
func (v Value) FloatValue() float64 { return v.f }

// TextValue returns the string payload. It is only meaningful for KindText.
func (v Value) TextValue() string { return v.s }

// ListValues returns the element values of a KindList value.
func (v Value) ListValues() []Value { return v.list }

// Interface returns the native Go representation of the value, suitable
// for passing to database/sql.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBytes:
		return v.bs
	case KindTime:
		return v.t
	case KindUUID:
		// Drivers without uuid support expect the textual form.
		return v.u.String()
	case KindList:
		vs := make([]any, len(v.list))
		for i := range v.list {
			vs[i] = v.list[i].Interface()
		}
		return vs
	}
	return nil
}

// String returns a debug representation of the value. It is not SQL and
// must never be embedded in a statement.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindText:
		return strconv.Quote(v.s)
	case KindBytes:
		return fmt.Sprintf("0x%x", v.bs)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindUUID:
		return v.u.String()
	case KindList:
		parts := make([]string, len(v.list))
		for i := range v.list {
			parts[i] = v.list[i].String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "<invalid>"
}

// numeric reports the value as a float64 when it is numeric.
func (v Value) numeric() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Equal reports whether two values are equal. NULL equals only NULL,
// integers and floats compare numerically, and any other cross-kind
// comparison is false, never an error.
func Equal(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == b.kind
	}
	if an, ok := a.numeric(); ok {
		bn, bok := b.numeric()
		return bok && an == bn
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindText:
		return a.s == b.s
	case KindBytes:
		return string(a.bs) == string(b.bs)
	case KindTime:
		return a.t.Equal(b.t)
	case KindUUID:
		return a.u == b.u
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Compare orders two values. It reports ok=false when the values have no
// defined ordering (NULL operands, cross-kind comparisons, booleans).
func Compare(a, b Value) (cmp int, ok bool) {
	if an, aok := a.numeric(); aok {
		if bn, bok := b.numeric(); bok {
			switch {
			case an < bn:
				return -1, true
			case an > bn:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if a.kind != b.kind {
		return 0, false
	}
	switch a.kind {
	case KindText:
		return strings.Compare(a.s, b.s), true
	case KindBytes:
		return strings.Compare(string(a.bs), string(b.bs)), true
	case KindTime:
		switch {
		case a.t.Before(b.t):
			return -1, true
		case a.t.After(b.t):
			return 1, true
		}
		return 0, true
	case KindUUID:
		return strings.Compare(a.u.String(), b.u.String()), true
	}
	return 0, false
}
