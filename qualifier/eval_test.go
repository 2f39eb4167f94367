package qualifier

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	owner map[string]any
}

func (a account) ValueForKey(name string) (any, bool) {
	switch name {
	case "owner":
		return MapValuer(a.owner), true
	case "balance":
		return 100.0, true
	}
	return nil, false
}

func TestEvaluate(t *testing.T) {
	duck := MapValuer{
		"name":    "Donald Duck",
		"age":     92,
		"active":  true,
		"balance": 12.5,
		"city":    nil,
		"owner":   map[string]any{"name": "Scrooge", "age": 120},
	}
	tests := []struct {
		q    Qualifier
		want bool
	}{
		{EQ("name", "Donald Duck"), true},
		{EQ("name", "Dagobert"), false},
		{NEQ("name", "Dagobert"), true},
		{GT("age", 13), true},
		{GT("age", 92), false},
		{GTE("age", 92), true},
		{LT("balance", 13), true},
		{GT("balance", 12), true},

		// Integer and float values compare numerically.
		{EQ("age", 92.0), true},
		{EQ("balance", 12.5), true},

		// Bare booleans.
		{EQ("active", true), true},
		{EQ("active", false), false},

		// NULL: equal only to NULL, sorts below everything.
		{Cmp("city", OpEQ, nil), true},
		{Cmp("name", OpEQ, nil), false},
		{Cmp("city", OpNEQ, nil), false},
		{LT("city", 0), true},
		{GT("city", 0), false},
		{Cmp("missing", OpEQ, nil), true},

		// Key paths traverse nested objects.
		{EQ("owner.name", "Scrooge"), true},
		{GT("owner.age", 100), true},
		{Cmp("owner.missing", OpEQ, nil), true},
		{Cmp("city.name", OpEQ, nil), true},

		// Key comparisons evaluate both sides.
		{KeyCmp("age", OpLT, "owner.age"), true},
		{KeyEQ("name", "owner.name"), false},

		// LIKE patterns: prefix, suffix, contains, exact.
		{Like("name", "Donald*"), true},
		{Like("name", "*Duck"), true},
		{Like("name", "*nald D*"), true},
		{Like("name", "Donald Duck"), true},
		{Like("name", "Duck*"), false},
		{Like("age", "9*"), false}, // non-text never matches
		{ILike("name", "donald*"), true},
		{ILike("name", "*DUCK"), true},
		{Like("name", "donald*"), false},

		// IN: list membership or substring containment.
		{In("age", 13, 92, 120), true},
		{In("age", 13, 14), false},
		{Cmp("name", OpIn, "Donald Duck was here"), true},
		{Cmp("name", OpIn, "elsewhere"), false},

		// Compounds and negation.
		{And(GT("age", 13), EQ("active", true)), true},
		{And(GT("age", 13), EQ("active", false)), false},
		{Or(EQ("name", "Dagobert"), GT("age", 13)), true},
		{Or(EQ("name", "Dagobert"), LT("age", 13)), false},
		{Not(EQ("active", true)), false},
		{Not(EQ("active", false)), true},
		{And(), true}, // empty conjunction
		{Or(), false}, // empty disjunction

		// Raw fragments cannot be evaluated in memory.
		{NewRaw(RawText("1 = 1")), false},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.q, duck), "qualifier: %s", tt.q)
		})
	}
}

func TestEvaluateValuer(t *testing.T) {
	obj := account{owner: map[string]any{"name": "Scrooge"}}
	assert.True(t, Evaluate(EQ("owner.name", "Scrooge"), obj))
	assert.True(t, Evaluate(GT("balance", 50), obj))
	assert.True(t, Evaluate(Cmp("missing", OpEQ, nil), obj))
}

func TestCompactOr(t *testing.T) {
	q := Or(
		EQ("a", 10),
		EQ("a", 10),
		EQ("a", 11),
		EQ("b", "hello"),
	)
	got := CompactOr(q)
	want := Or(
		In("a", 10, 10, 11),
		EQ("b", "hello"),
	)
	assert.True(t, Equal(want, got), "got: %s", got)

	// Nothing to merge: the qualifier comes back unchanged.
	q = Or(EQ("a", 1), EQ("b", 2))
	assert.Same(t, Qualifier(q), CompactOr(q))

	// Only disjunctions are compacted.
	and := And(EQ("a", 1), EQ("a", 2))
	assert.Same(t, Qualifier(and), CompactOr(and))
	kv := EQ("a", 1)
	assert.Same(t, Qualifier(kv), CompactOr(kv))

	// Non-equality children are left in place.
	q = Or(EQ("a", 1), GT("a", 5), EQ("a", 2))
	got = CompactOr(q)
	want = Or(In("a", 1, 2), GT("a", 5))
	assert.True(t, Equal(want, got), "got: %s", got)
}

func TestBind(t *testing.T) {
	q := And(
		EQ("active", true),
		NewRaw(RawText("balance > ABS("), RawVar("limit"), RawText(")")),
	)
	bound, err := Bind(q, map[string]any{"limit": 100})
	require.NoError(t, err)

	raw, ok := bound.(*Compound).Quals[1].(*Raw)
	require.True(t, ok)
	require.Len(t, raw.Parts, 3)
	assert.True(t, raw.Parts[1].Bound)
	assert.EqualValues(t, 100, raw.Parts[1].Value.Interface())

	// The original is left untouched.
	orig := q.Quals[1].(*Raw)
	assert.False(t, orig.Parts[1].Bound)

	// Missing variables are an error.
	_, err = Bind(q, map[string]any{})
	var uerr *UnboundVariableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "limit", uerr.Name)
}

func TestQualifierString(t *testing.T) {
	tests := []struct {
		q    Qualifier
		want string
	}{
		{EQ("name", "Duck"), "name = 'Duck'"},
		{NEQ("name", "O'Brien"), "name != 'O''Brien'"},
		{GT("age", 13), "age > 13"},
		{Cmp("city", OpEQ, nil), "city = null"},
		{EQ("active", true), "active = true"},
		{In("id", 1, 2, 3), "id IN (1, 2, 3)"},
		{KeyCmp("startDate", OpLT, "endDate"), "startDate < endDate"},
		{And(EQ("a", 1), EQ("b", 2)), "a = 1 AND b = 2"},
		{
			Or(And(EQ("a", 1), EQ("b", 2)), EQ("c", 3)),
			"(a = 1 AND b = 2) OR c = 3",
		},
		{Not(EQ("a", 1)), "NOT (a = 1)"},
		{Not(And(EQ("a", 1), EQ("b", 2))), "NOT (a = 1 AND b = 2)"},
		{
			NewRaw(RawText("balance > ABS("), RawVar("limit"), RawText(")")),
			"SQL[balance > ABS($limit)]",
		},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.q.String())
		})
	}
}

func TestQualifierEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(EQ("a", 1), nil))
	assert.True(t, Equal(EQ("a", 1), EQ("a", 1)))
	assert.False(t, Equal(EQ("a", 1), EQ("a", 2)))
	assert.False(t, Equal(EQ("a", 1), GT("a", 1)))
	assert.False(t, Equal(EQ("a", 1), KeyEQ("a", "b")))
	assert.True(t, Equal(And(EQ("a", 1)), And(EQ("a", 1))))
	assert.False(t, Equal(And(EQ("a", 1)), Or(EQ("a", 1))))
	assert.True(t, Equal(Not(EQ("a", 1)), Not(EQ("a", 1))))
}

func TestOperatorOf(t *testing.T) {
	for s, want := range map[string]Op{
		"=":     OpEQ,
		"==":    OpEQ,
		"!=":    OpNEQ,
		"<>":    OpNEQ,
		"<":     OpLT,
		"<=":    OpLTE,
		">":     OpGT,
		">=":    OpGTE,
		"LIKE":  OpLike,
		"like":  OpLike,
		"ILIKE": OpILike,
		"in":    OpIn,
	} {
		op, ok := OperatorOf(s)
		require.True(t, ok, s)
		assert.Equal(t, want, op, s)
	}
	_, ok := OperatorOf("~")
	assert.False(t, ok)
}
