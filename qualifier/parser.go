package qualifier

import (
	"strconv"
	"strings"

	"github.com/syssam/celer"
)

// Parse turns qualifier text into its AST. The grammar, lowest to
// highest precedence, is OR < AND < NOT < comparison < primary, with
// AND binding tighter than OR and both left-associative. Primaries are
// `key op literal`, `key op key`, a parenthesized sub-expression, a bare
// key (shorthand for key = true), or a SQL[ ... ] raw block.
//
// The placeholders %@, %K, %i, %d and %s consume the next positional
// argument in order; %K forces the argument to be read as a key rather
// than a literal. A surplus or shortage of arguments is a parse error,
// as is any malformed input; errors are always *ParseError values
// carrying a byte offset, and the parser never panics.
func Parse(text string, args ...any) (Qualifier, error) {
	p := &parser{lex: lexer{src: text}, args: args}
	if err := p.advance(); err != nil {
		return nil, err
	}
	q, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.cur.kind != tokEOF {
		return nil, &ParseError{Offset: p.cur.off, Msg: "unexpected " + p.cur.kind.String(), Expect: "AND, OR or end of input"}
	}
	if p.argi < len(p.args) {
		return nil, &ParseError{Offset: len(text), Msg: strconv.Itoa(len(p.args)-p.argi) + " unconsumed positional argument(s)"}
	}
	return q, nil
}

type parser struct {
	lex  lexer
	cur  token
	args []any
	argi int
}

func (p *parser) advance() *ParseError {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) keyword(kw string) bool {
	return p.cur.kind == tokIdent && strings.EqualFold(p.cur.text, kw)
}

func (p *parser) or() (Qualifier, *ParseError) {
	q, err := p.and()
	if err != nil {
		return nil, err
	}
	kids := []Qualifier{q}
	for p.keyword("OR") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		k, err := p.and()
		if err != nil {
			return nil, err
		}
		kids = append(kids, k)
	}
	if len(kids) == 1 {
		return q, nil
	}
	return &Compound{Conj: ConjOr, Quals: kids}, nil
}

func (p *parser) and() (Qualifier, *ParseError) {
	q, err := p.not()
	if err != nil {
		return nil, err
	}
	kids := []Qualifier{q}
	for p.keyword("AND") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		k, err := p.not()
		if err != nil {
			return nil, err
		}
		kids = append(kids, k)
	}
	if len(kids) == 1 {
		return q, nil
	}
	return &Compound{Conj: ConjAnd, Quals: kids}, nil
}

func (p *parser) not() (Qualifier, *ParseError) {
	if p.keyword("NOT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		q, err := p.not()
		if err != nil {
			return nil, err
		}
		return &Negation{Qual: q}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Qualifier, *ParseError) {
	switch p.cur.kind {
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		q, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.cur.kind != tokRParen {
			return nil, &ParseError{Offset: p.cur.off, Msg: "unbalanced parentheses", Expect: "')'"}
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return q, nil
	case tokRaw:
		q := &Raw{Parts: rawParts(p.cur.text)}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return q, nil
	}
	key, err := p.key()
	if err != nil {
		return nil, err
	}
	op, hasOp, err := p.operator()
	if err != nil {
		return nil, err
	}
	if !hasOp {
		// Bare key: shorthand for a boolean equality against true.
		return &KeyValue{Key: key, Op: OpEQ, Value: celer.Bool(true)}, nil
	}
	return p.rhs(key, op)
}

// key consumes the left-hand side of a comparison: an identifier, or a
// %K placeholder forcing the next argument to be read as a key.
func (p *parser) key() (string, *ParseError) {
	switch {
	case p.cur.kind == tokIdent:
		key := p.cur.text
		if err := p.advance(); err != nil {
			return "", err
		}
		return key, nil
	case p.cur.kind == tokPlaceholder && p.cur.text == "%K":
		off := p.cur.off
		v, perr := p.nextArg(off)
		if perr != nil {
			return "", perr
		}
		key, ok := v.(string)
		if !ok {
			return "", &ParseError{Offset: off, Msg: "%K argument is not a string key"}
		}
		if err := p.advance(); err != nil {
			return "", err
		}
		return key, nil
	}
	return "", &ParseError{Offset: p.cur.off, Msg: "unexpected " + p.cur.kind.String(), Expect: "key, '(', NOT or SQL["}
}

// operator consumes a comparison operator if one follows.
func (p *parser) operator() (Op, bool, *ParseError) {
	switch {
	case p.cur.kind == tokOp:
		op, ok := OperatorOf(p.cur.text)
		if !ok {
			return 0, false, &ParseError{Offset: p.cur.off, Msg: "unknown operator " + strconv.Quote(p.cur.text)}
		}
		if err := p.advance(); err != nil {
			return 0, false, err
		}
		return op, true, nil
	case p.keyword("LIKE"), p.keyword("ILIKE"), p.keyword("IN"):
		op, _ := OperatorOf(p.cur.text)
		if err := p.advance(); err != nil {
			return 0, false, err
		}
		return op, true, nil
	}
	return 0, false, nil
}

// rhs consumes the right-hand side of a comparison and produces either a
// KeyValue or, when the side is a key, a KeyComparison.
func (p *parser) rhs(key string, op Op) (Qualifier, *ParseError) {
	off := p.cur.off
	if op == OpIn {
		v, err := p.inOperand()
		if err != nil {
			return nil, err
		}
		return &KeyValue{Key: key, Op: op, Value: v}, nil
	}
	switch p.cur.kind {
	case tokNumber:
		v, err := number(p.cur.text, off)
		if err != nil {
			return nil, err
		}
		if aerr := p.advance(); aerr != nil {
			return nil, aerr
		}
		return &KeyValue{Key: key, Op: op, Value: v}, nil
	case tokString:
		v := celer.Text(p.cur.text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &KeyValue{Key: key, Op: op, Value: v}, nil
	case tokIdent:
		text := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch strings.ToLower(text) {
		case "true":
			return &KeyValue{Key: key, Op: op, Value: celer.Bool(true)}, nil
		case "false":
			return &KeyValue{Key: key, Op: op, Value: celer.Bool(false)}, nil
		case "null", "nil":
			return &KeyValue{Key: key, Op: op, Value: celer.Null()}, nil
		}
		return &KeyComparison{Left: key, Op: op, Right: text}, nil
	case tokPlaceholder:
		text := p.cur.text
		v, perr := p.nextArg(off)
		if perr != nil {
			return nil, perr
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if text == "%K" {
			right, ok := v.(string)
			if !ok {
				return nil, &ParseError{Offset: off, Msg: "%K argument is not a string key"}
			}
			return &KeyComparison{Left: key, Op: op, Right: right}, nil
		}
		cv, perr := coerce(text, v, off)
		if perr != nil {
			return nil, perr
		}
		return &KeyValue{Key: key, Op: op, Value: cv}, nil
	}
	return nil, &ParseError{Offset: off, Msg: "missing operand", Expect: "literal, key or placeholder"}
}

// inOperand consumes the right-hand side of IN: a parenthesized or
// bracketed literal list, a string literal, or a value placeholder.
func (p *parser) inOperand() (celer.Value, *ParseError) {
	off := p.cur.off
	switch p.cur.kind {
	case tokLParen, tokLBracket:
		closing := tokRParen
		if p.cur.kind == tokLBracket {
			closing = tokRBracket
		}
		if err := p.advance(); err != nil {
			return celer.Value{}, err
		}
		var vs []celer.Value
		for p.cur.kind != closing {
			if len(vs) > 0 {
				if p.cur.kind != tokComma {
					return celer.Value{}, &ParseError{Offset: p.cur.off, Msg: "malformed list", Expect: "',' or closing bracket"}
				}
				if err := p.advance(); err != nil {
					return celer.Value{}, err
				}
			}
			v, err := p.listElement()
			if err != nil {
				return celer.Value{}, err
			}
			vs = append(vs, v)
		}
		if err := p.advance(); err != nil {
			return celer.Value{}, err
		}
		return celer.List(vs...), nil
	case tokString:
		v := celer.Text(p.cur.text)
		if err := p.advance(); err != nil {
			return celer.Value{}, err
		}
		return v, nil
	case tokPlaceholder:
		text := p.cur.text
		v, perr := p.nextArg(off)
		if perr != nil {
			return celer.Value{}, perr
		}
		if err := p.advance(); err != nil {
			return celer.Value{}, err
		}
		cv, perr := coerce(text, v, off)
		if perr != nil {
			return celer.Value{}, perr
		}
		if k := cv.Kind(); k != celer.KindList && k != celer.KindText {
			return celer.Value{}, &ParseError{Offset: off, Msg: "IN argument is not a list or string"}
		}
		return cv, nil
	}
	return celer.Value{}, &ParseError{Offset: off, Msg: "missing operand", Expect: "list, string or placeholder"}
}

func (p *parser) listElement() (celer.Value, *ParseError) {
	off := p.cur.off
	switch p.cur.kind {
	case tokNumber:
		v, err := number(p.cur.text, off)
		if err != nil {
			return celer.Value{}, err
		}
		if aerr := p.advance(); aerr != nil {
			return celer.Value{}, aerr
		}
		return v, nil
	case tokString:
		v := celer.Text(p.cur.text)
		if err := p.advance(); err != nil {
			return celer.Value{}, err
		}
		return v, nil
	case tokIdent:
		text := strings.ToLower(p.cur.text)
		if err := p.advance(); err != nil {
			return celer.Value{}, err
		}
		switch text {
		case "true":
			return celer.Bool(true), nil
		case "false":
			return celer.Bool(false), nil
		case "null", "nil":
			return celer.Null(), nil
		}
		return celer.Value{}, &ParseError{Offset: off, Msg: "keys are not allowed in literal lists"}
	case tokPlaceholder:
		text := p.cur.text
		v, perr := p.nextArg(off)
		if perr != nil {
			return celer.Value{}, perr
		}
		if err := p.advance(); err != nil {
			return celer.Value{}, err
		}
		return coerce(text, v, off)
	}
	return celer.Value{}, &ParseError{Offset: off, Msg: "malformed list element", Expect: "literal or placeholder"}
}

// nextArg consumes the next positional argument.
func (p *parser) nextArg(off int) (any, *ParseError) {
	if p.argi >= len(p.args) {
		return nil, &ParseError{Offset: off, Msg: "not enough positional arguments"}
	}
	v := p.args[p.argi]
	p.argi++
	return v, nil
}

// coerce converts a positional argument according to its placeholder.
func coerce(placeholder string, v any, off int) (celer.Value, *ParseError) {
	switch placeholder {
	case "%@":
		cv, err := celer.ValueOf(v)
		if err != nil {
			return celer.Value{}, &ParseError{Offset: off, Msg: err.Error()}
		}
		return cv, nil
	case "%i", "%d":
		cv, err := celer.ValueOf(v)
		if err != nil || cv.Kind() != celer.KindInt {
			return celer.Value{}, &ParseError{Offset: off, Msg: placeholder + " argument is not an integer"}
		}
		return cv, nil
	case "%s":
		s, ok := v.(string)
		if !ok {
			return celer.Value{}, &ParseError{Offset: off, Msg: "%s argument is not a string"}
		}
		return celer.Text(s), nil
	}
	return celer.Value{}, &ParseError{Offset: off, Msg: "unknown placeholder " + placeholder}
}

func number(text string, off int) (celer.Value, *ParseError) {
	if strings.ContainsRune(text, '.') {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return celer.Value{}, &ParseError{Offset: off, Msg: "malformed number " + strconv.Quote(text)}
		}
		return celer.Float(f), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return celer.Value{}, &ParseError{Offset: off, Msg: "malformed number " + strconv.Quote(text)}
	}
	return celer.Int(i), nil
}

// rawParts splits a SQL[ ... ] body into literal and $variable segments.
func rawParts(body string) []RawPart {
	var (
		parts []RawPart
		lit   strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, RawPart{Text: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(body); {
		if body[i] == '$' && i+1 < len(body) && isIdentStart(body[i+1]) {
			j := i + 1
			for j < len(body) && (isIdentStart(body[j]) || isDigit(body[j])) {
				j++
			}
			flush()
			parts = append(parts, RawPart{Var: body[i+1 : j]})
			i = j
			continue
		}
		lit.WriteByte(body[i])
		i++
	}
	flush()
	return parts
}
