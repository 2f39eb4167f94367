package qualifier

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/celer"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		args  []any
		want  Qualifier
	}{
		{
			input: "name = 'Duck'",
			want:  EQ("name", "Duck"),
		},
		{
			input: "age > 13",
			want:  GT("age", 13),
		},
		{
			input: "balance >= -10.5",
			want:  GTE("balance", -10.5),
		},
		{
			input: "name != 'O''Brien'",
			want:  NEQ("name", "O'Brien"),
		},
		{
			input: "archived", // bare key sugar
			want:  EQ("archived", true),
		},
		{
			input: "deletedAt = null",
			want:  Cmp("deletedAt", OpEQ, nil),
		},
		{
			input: "startDate < endDate",
			want:  KeyCmp("startDate", OpLT, "endDate"),
		},
		{
			input: "owner.company.name like 'A*'",
			want:  Like("owner.company.name", "A*"),
		},
		{
			input: "name ILIKE 'duck*'",
			want:  ILike("name", "duck*"),
		},
		{
			input: "id IN (1, 2, 3)",
			want:  In("id", 1, 2, 3),
		},
		{
			input: "id in [1, 2]",
			want:  In("id", 1, 2),
		},
		{
			input: "id IN ()",
			want:  &KeyValue{Key: "id", Op: OpIn, Value: celer.List()},
		},
		{
			input: "name IN 'Duckling'", // substring containment
			want:  Cmp("name", OpIn, "Duckling"),
		},
		{
			input: "a = 1 AND b = 2",
			want:  And(EQ("a", 1), EQ("b", 2)),
		},
		{
			input: "a = 1 AND b = 2 OR c = 3 AND f = 4",
			want: Or(
				And(EQ("a", 1), EQ("b", 2)),
				And(EQ("c", 3), EQ("f", 4)),
			),
		},
		{
			input: "a = 1 AND (b = 2 OR c = 3)",
			want:  And(EQ("a", 1), Or(EQ("b", 2), EQ("c", 3))),
		},
		{
			input: "NOT a = 1",
			want:  Not(EQ("a", 1)),
		},
		{
			input: "NOT NOT a = 1",
			want:  Not(Not(EQ("a", 1))),
		},
		{
			input: "not (a = 1 or b = 2)",
			want:  Not(Or(EQ("a", 1), EQ("b", 2))),
		},
		{
			input: "age = %@",
			args:  []any{42},
			want:  EQ("age", 42),
		},
		{
			input: "%K = %@",
			args:  []any{"age", 42},
			want:  EQ("age", 42),
		},
		{
			input: "%K = %K",
			args:  []any{"startDate", "endDate"},
			want:  KeyEQ("startDate", "endDate"),
		},
		{
			input: "age > %i AND name = %s",
			args:  []any{21, "Donald"},
			want:  And(GT("age", 21), EQ("name", "Donald")),
		},
		{
			input: "id IN %@",
			args:  []any{[]any{1, 2, 3}},
			want:  In("id", 1, 2, 3),
		},
		{
			input: "SQL[ balance > ABS($limit) ]",
			want: NewRaw(
				RawText(" balance > ABS("),
				RawVar("limit"),
				RawText(") "),
			),
		},
		{
			input: "active AND SQL[LENGTH(name) > $n]",
			want: And(
				EQ("active", true),
				NewRaw(RawText("LENGTH(name) > "), RawVar("n")),
			),
		},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			got, err := Parse(tt.input, tt.args...)
			require.NoError(t, err, "input: %s", tt.input)
			assert.True(t, Equal(tt.want, got), "input: %s\nwant: %s\ngot:  %s", tt.input, tt.want, got)
		})
	}
}

func TestParsePrecedence(t *testing.T) {
	// AND binds tighter than OR: the top level is an OR of two ANDs.
	q, err := Parse("a = 1 AND b = 2 OR c = 3 AND f = 4")
	require.NoError(t, err)
	or, ok := q.(*Compound)
	require.True(t, ok)
	require.Equal(t, ConjOr, or.Conj)
	require.Len(t, or.Quals, 2)
	for _, kid := range or.Quals {
		and, ok := kid.(*Compound)
		require.True(t, ok)
		assert.Equal(t, ConjAnd, and.Conj)
		assert.Len(t, and.Quals, 2)
	}
}

func TestParseRoundTrip(t *testing.T) {
	// String() output parses back to a structurally equal qualifier.
	inputs := []string{
		"name = 'Duck'",
		"a = 1 AND b = 2 OR c = 3 AND f = 4",
		"NOT (age > 13 AND name LIKE 'D*')",
		"id IN (1, 2, 3)",
		"startDate < endDate",
		"SQL[balance > ABS($limit)]",
	}
	for i, input := range inputs {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			q, err := Parse(input)
			require.NoError(t, err)
			back, err := Parse(q.String())
			require.NoError(t, err)
			assert.True(t, Equal(q, back), "input: %s\nrendered: %s", input, q)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		input  string
		args   []any
		offset int
	}{
		{input: "", offset: 0},
		{input: "a =", offset: 3},
		{input: "a = 1 AND", offset: 9},
		{input: "(a = 1", offset: 6},
		{input: "a = 1 b = 2", offset: 6},
		{input: "a = 'unterminated", offset: 4},
		{input: "a ~ 1", offset: 2},
		{input: "a = %@", args: nil, offset: 4},
		{input: "a = %i", args: []any{"nope"}, offset: 4},
		{input: "a = %s", args: []any{42}, offset: 4},
		{input: "%K = 1", args: []any{42}, offset: 0},
		{input: "a = 1", args: []any{1, 2}, offset: 5},
		{input: "id IN (1, 2", offset: 11},
		{input: "id IN (1 2)", offset: 9},
		{input: "id IN (a)", offset: 7},
		{input: "SQL[ x > $v", offset: 0},
	}
	for i, tt := range tests {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			_, err := Parse(tt.input, tt.args...)
			require.Error(t, err, "input: %s", tt.input)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "input: %s, err: %v", tt.input, err)
			assert.Equal(t, tt.offset, perr.Offset, "input: %s, err: %v", tt.input, err)
		})
	}
}
