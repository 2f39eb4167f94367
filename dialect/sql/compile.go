package sql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/celer"
	"github.com/syssam/celer/dialect"
	"github.com/syssam/celer/model"
	"github.com/syssam/celer/qualifier"
)

// compiler accumulates one statement: alias assignments, join clauses
// and bind variables. Its state is local to a single Compile call and
// never reused.
type compiler struct {
	entity *model.Entity
	feats  dialect.Features
	// bare addresses columns without table aliases; mutation statements
	// use it, and their qualifiers may not traverse relationships.
	bare bool

	aliases map[string]string // relationship path -> table alias
	used    map[string]string // table alias -> relationship path
	joins   []string          // join clauses in alias assignment order
	nalias  int
	binds   []BindVariable
}

func newCompiler(e *model.Entity, feats dialect.Features) *compiler {
	return &compiler{
		entity:  e,
		feats:   feats,
		aliases: make(map[string]string),
		used:    make(map[string]string),
	}
}

// aliasName returns the n-th join alias: A..Z, then J26, J27, ...
func aliasName(n int) string {
	if n < 26 {
		return string(rune('A' + n))
	}
	return "J" + strconv.Itoa(n)
}

// alias resolves the table alias for a path, synthesizing LEFT JOIN
// clauses for hops seen for the first time. An identical relationship
// path always maps to the same alias within one statement.
func (c *compiler) alias(p *model.Path) (string, error) {
	alias := "BASE"
	src := c.entity
	key := ""
	for _, r := range p.Rels {
		if key == "" {
			key = r.Name
		} else {
			key += "." + r.Name
		}
		next, ok := c.aliases[key]
		if !ok {
			next = aliasName(c.nalias)
			c.nalias++
			if prev, clash := c.used[next]; clash {
				return "", celer.Internalf("join alias %s assigned to both %q and %q", next, prev, key)
			}
			c.aliases[key] = next
			c.used[next] = key
			on := make([]string, len(r.Joins))
			for i, j := range r.Joins {
				sa, _ := src.Attribute(j.Source)
				da, _ := r.Dest().Attribute(j.Dest)
				on[i] = next + "." + c.feats.Quote(da.Column) + " = " + alias + "." + c.feats.Quote(sa.Column)
			}
			c.joins = append(c.joins, "LEFT JOIN "+c.feats.Quote(r.Dest().Table)+" AS "+next+" ON "+strings.Join(on, " AND "))
		}
		alias = next
		src = r.Dest()
	}
	return alias, nil
}

// column renders the column reference for a dotted key.
func (c *compiler) column(key string) (string, error) {
	p, err := c.entity.Path(key)
	if err != nil {
		return "", err
	}
	if c.bare {
		if p.Relationship() {
			return "", fmt.Errorf("sql: mutation qualifier may not traverse relationship path %q", key)
		}
		return c.feats.Quote(p.Attr.Column), nil
	}
	alias, err := c.alias(p)
	if err != nil {
		return "", err
	}
	return alias + "." + c.feats.Quote(p.Attr.Column), nil
}

// bind appends a bind variable and returns its placeholder.
func (c *compiler) bind(v celer.Value, attr *model.Attribute) string {
	c.binds = append(c.binds, BindVariable{Value: v, Attr: attr})
	return c.feats.Placeholder(len(c.binds))
}

// term renders a literal-or-bind for a value. Integers, floats and
// booleans are inlined; everything else becomes a bind variable.
func (c *compiler) term(v celer.Value, attr *model.Attribute) (string, error) {
	switch v.Kind() {
	case celer.KindNull:
		return "NULL", nil
	case celer.KindBool:
		if v.BoolValue() {
			return "TRUE", nil
		}
		return "FALSE", nil
	case celer.KindInt:
		return strconv.FormatInt(v.IntValue(), 10), nil
	case celer.KindFloat:
		return strconv.FormatFloat(v.FloatValue(), 'f', -1, 64), nil
	case celer.KindText, celer.KindBytes, celer.KindTime, celer.KindUUID:
		return c.bind(v, attr), nil
	}
	return "", fmt.Errorf("sql: cannot render %s literal", v.Kind())
}

// likePattern rewrites the qualifier wildcard * to the SQL wildcard %.
func likePattern(s string) string {
	return strings.ReplaceAll(s, "*", "%")
}

// where renders the top-level qualifier. An absent qualifier or an
// empty conjunction renders as the empty string, meaning no WHERE
// clause at all.
func (c *compiler) where(q qualifier.Qualifier) (string, error) {
	if q == nil {
		return "", nil
	}
	if cq, ok := q.(*qualifier.Compound); ok && len(cq.Quals) == 0 && cq.Conj == qualifier.ConjAnd {
		return "", nil
	}
	return c.render(q)
}

func (c *compiler) render(q qualifier.Qualifier) (string, error) {
	switch q := q.(type) {
	case *qualifier.KeyValue:
		return c.keyValue(q)
	case *qualifier.KeyComparison:
		left, err := c.column(q.Left)
		if err != nil {
			return "", err
		}
		right, err := c.column(q.Right)
		if err != nil {
			return "", err
		}
		return left + " " + q.Op.String() + " " + right, nil
	case *qualifier.Compound:
		if len(q.Quals) == 0 {
			// Nested empty compounds keep their truth value; only the
			// top level omits the clause.
			if q.Conj == qualifier.ConjAnd {
				return "1 = 1", nil
			}
			return "1 = 0", nil
		}
		parts := make([]string, len(q.Quals))
		for i, child := range q.Quals {
			s, err := c.render(child)
			if err != nil {
				return "", err
			}
			switch child.(type) {
			case *qualifier.Compound, *qualifier.Negation:
				s = "(" + s + ")"
			}
			parts[i] = s
		}
		return strings.Join(parts, " "+q.Conj.String()+" "), nil
	case *qualifier.Negation:
		s, err := c.render(q.Qual)
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil
	case *qualifier.Raw:
		return c.raw(q)
	}
	return "", celer.Internalf("unknown qualifier type %T", q)
}

func (c *compiler) keyValue(q *qualifier.KeyValue) (string, error) {
	col, err := c.column(q.Key)
	if err != nil {
		return "", err
	}
	p, _ := c.entity.Path(q.Key)
	attr := p.Attr
	v := q.Value
	if !v.IsValid() {
		return "", fmt.Errorf("sql: invalid literal for key %q", q.Key)
	}
	switch q.Op {
	case qualifier.OpEQ, qualifier.OpNEQ:
		if v.IsNull() {
			if q.Op == qualifier.OpEQ {
				return col + " IS NULL", nil
			}
			return col + " IS NOT NULL", nil
		}
	case qualifier.OpLike, qualifier.OpILike:
		if v.Kind() != celer.KindText {
			return "", fmt.Errorf("sql: %s needs a string pattern for key %q", q.Op, q.Key)
		}
		lhs := col
		if c.feats.CoalesceLike {
			lhs = "COALESCE(" + col + ", '')"
		}
		pattern := celer.Text(likePattern(v.TextValue()))
		if q.Op == qualifier.OpILike && !c.feats.SupportsILike {
			return "LOWER(" + lhs + ") LIKE LOWER(" + c.bind(pattern, attr) + ")", nil
		}
		kw := "LIKE"
		if q.Op == qualifier.OpILike {
			kw = "ILIKE"
		}
		return lhs + " " + kw + " " + c.bind(pattern, attr), nil
	case qualifier.OpIn:
		switch v.Kind() {
		case celer.KindList:
			vs := v.ListValues()
			if len(vs) == 0 {
				return "1 = 0", nil
			}
			items := make([]string, len(vs))
			for i := range vs {
				if items[i], err = c.term(vs[i], attr); err != nil {
					return "", err
				}
			}
			return col + " IN (" + strings.Join(items, ", ") + ")", nil
		case celer.KindText:
			// Substring containment, mirroring the in-memory semantics.
			return col + " LIKE " + c.bind(celer.Text("%"+v.TextValue()+"%"), attr), nil
		}
		return "", fmt.Errorf("sql: IN needs a list or string for key %q", q.Key)
	}
	t, err := c.term(v, attr)
	if err != nil {
		return "", err
	}
	return col + " " + q.Op.String() + " " + t, nil
}

// raw renders a SQL[ ... ] fragment. Variables must have been resolved
// with qualifier.Bind; resolved values are rendered as SQL literals
// directly into the text. The literal fragments themselves are
// caller-trusted and unescaped.
func (c *compiler) raw(q *qualifier.Raw) (string, error) {
	var b strings.Builder
	for _, p := range q.Parts {
		if p.Var == "" {
			b.WriteString(p.Text)
			continue
		}
		if !p.Bound {
			return "", fmt.Errorf("sql: unbound variable $%s: resolve with qualifier.Bind before compiling", p.Var)
		}
		lit, err := rawLiteral(p.Value)
		if err != nil {
			return "", err
		}
		b.WriteString(lit)
	}
	return b.String(), nil
}

// rawLiteral renders a bound variable as a SQL literal. Raw fragments
// bypass the bind list, so the value must be embedded in the statement
// text itself: strings are single-quoted with embedded quotes doubled,
// numerics keep their native form.
func rawLiteral(v celer.Value) (string, error) {
	switch v.Kind() {
	case celer.KindNull:
		return "NULL", nil
	case celer.KindBool:
		if v.BoolValue() {
			return "TRUE", nil
		}
		return "FALSE", nil
	case celer.KindInt:
		return strconv.FormatInt(v.IntValue(), 10), nil
	case celer.KindFloat:
		return strconv.FormatFloat(v.FloatValue(), 'f', -1, 64), nil
	case celer.KindText:
		return "'" + strings.ReplaceAll(v.TextValue(), "'", "''") + "'", nil
	case celer.KindTime:
		t, _ := v.Interface().(time.Time)
		return "'" + t.Format(time.RFC3339Nano) + "'", nil
	case celer.KindUUID:
		s, _ := v.Interface().(string)
		return "'" + s + "'", nil
	case celer.KindBytes:
		bs, _ := v.Interface().([]byte)
		return fmt.Sprintf("X'%x'", bs), nil
	case celer.KindList:
		vs := v.ListValues()
		parts := make([]string, len(vs))
		for i := range vs {
			lit, err := rawLiteral(vs[i])
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}
	return "", fmt.Errorf("sql: cannot render %s literal in a raw fragment", v.Kind())
}

// Compile builds the SELECT statement for a fetch specification. The
// returned expression is self-contained; the compiler state used to
// build it is discarded.
func Compile(e *model.Entity, fetch *model.FetchSpecification, feats dialect.Features) (*Expression, error) {
	c := newCompiler(e, feats)

	names := fetch.Attributes
	if len(names) == 0 {
		names = make([]string, len(e.Attributes))
		for i, a := range e.Attributes {
			names[i] = a.Name
		}
	}
	cols := make([]string, len(names))
	for i, name := range names {
		col, err := c.column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	columns := strings.Join(cols, ", ")

	// The qualifier is walked before the sort orderings, so its paths
	// claim aliases first.
	where, err := c.where(fetch.Qualifier)
	if err != nil {
		return nil, err
	}

	orderings := make([]string, len(fetch.SortOrderings))
	for i, so := range fetch.SortOrderings {
		col, err := c.column(so.Key)
		if err != nil {
			return nil, err
		}
		if so.Descending {
			col += " DESC"
		}
		orderings[i] = col
	}
	orderBy := strings.Join(orderings, ", ")

	var window strings.Builder
	switch {
	case fetch.Limit > 0:
		window.WriteString("LIMIT " + strconv.Itoa(fetch.Limit))
	case fetch.Offset > 0 && feats.OffsetWithoutLimit != "":
		window.WriteString("LIMIT " + feats.OffsetWithoutLimit)
	}
	if fetch.Offset > 0 {
		if window.Len() > 0 {
			window.WriteByte(' ')
		}
		window.WriteString("OFFSET " + strconv.Itoa(fetch.Offset))
	}

	lock := ""
	if fetch.Locks && feats.SupportsForUpdate {
		lock = "FOR UPDATE"
	}

	baseTable := feats.Quote(e.Table)
	tables := baseTable + " AS BASE"
	joins := strings.Join(c.joins, " ")

	var b strings.Builder
	b.WriteString("SELECT ")
	if fetch.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(columns)
	b.WriteString(" FROM ")
	b.WriteString(tables)
	for _, part := range []struct{ prefix, s string }{
		{"", joins},
		{"WHERE ", where},
		{"ORDER BY ", orderBy},
		{"", window.String()},
		{"", lock},
	} {
		if part.s == "" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(part.prefix)
		b.WriteString(part.s)
	}
	stmt := b.String()

	if pattern, ok := fetch.Hint(model.HintCustomQuery); ok {
		andQual, orQual := "", ""
		if where != "" {
			andQual = "AND (" + where + ")"
			orQual = "OR (" + where + ")"
		}
		stmt, err = substituteHint(pattern, map[string]string{
			"select":       stmt,
			"columns":      columns,
			"tables":       tables,
			"basetable":    baseTable,
			"qualifier":    where,
			"where":        where,
			"andQualifier": andQual,
			"orQualifier":  orQual,
			"orderings":    orderBy,
			"orderby":      orderBy,
			"limit":        window.String(),
			"lock":         lock,
			"joins":        joins,
		})
		if err != nil {
			return nil, err
		}
	}
	return &Expression{Statement: stmt, Binds: c.binds}, nil
}

// substituteHint runs the single-pass %(key)s substitution over a raw
// SQL hint pattern. A literal percent is written %%; it always
// collapses, even directly before a (key)s sequence.
func substituteHint(pattern string, frags map[string]string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		ch := pattern[i]
		if ch != '%' {
			b.WriteByte(ch)
			i++
			continue
		}
		if i+1 < len(pattern) && pattern[i+1] == '%' {
			b.WriteByte('%')
			i += 2
			continue
		}
		if i+1 >= len(pattern) || pattern[i+1] != '(' {
			return "", fmt.Errorf("sql: malformed hint pattern at byte %d: lone %%", i)
		}
		end := strings.IndexByte(pattern[i+2:], ')')
		if end < 0 {
			return "", fmt.Errorf("sql: malformed hint pattern at byte %d: unterminated %%(key)s", i)
		}
		key := pattern[i+2 : i+2+end]
		rest := i + 2 + end + 1
		if rest >= len(pattern) || pattern[rest] != 's' {
			return "", fmt.Errorf("sql: malformed hint pattern at byte %d: expected %%(%s)s", i, key)
		}
		v, ok := frags[key]
		if !ok {
			return "", fmt.Errorf("sql: unknown hint key %q", key)
		}
		b.WriteString(v)
		i = rest + 1
	}
	return b.String(), nil
}
