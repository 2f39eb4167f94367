package qualifier

import (
	"fmt"
	"strings"
)

// ParseError reports malformed qualifier text. Offset is the byte offset
// of the offending input; Expect describes the expected token when known.
type ParseError struct {
	Offset int
	Msg    string
	Expect string
}

// Error returns the error string.
func (e *ParseError) Error() string {
	if e.Expect != "" {
		return fmt.Sprintf("qualifier: parse error at offset %d: %s (expected %s)", e.Offset, e.Msg, e.Expect)
	}
	return fmt.Sprintf("qualifier: parse error at offset %d: %s", e.Offset, e.Msg)
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp          // =, !=, <, <=, >, >=, <>, ==
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokPlaceholder // %@ %K %i %d %s
	tokRaw         // body of a SQL[ ... ] block
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokOp:
		return "operator"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokComma:
		return "','"
	case tokPlaceholder:
		return "placeholder"
	case tokRaw:
		return "raw SQL block"
	}
	return "token"
}

type token struct {
	kind tokenKind
	text string
	off  int
}

type lexer struct {
	src string
	pos int
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '.' || c >= '0' && c <= '9'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// next scans the next token. The returned error is always a *ParseError.
func (l *lexer) next() (token, *ParseError) {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n' || l.src[l.pos] == '\r') {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, off: l.pos}, nil
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		// A SQL[ ... ] block is lexed as one raw token up to the
		// matching bracket; nested brackets are allowed.
		if text == "SQL" && l.pos < len(l.src) && l.src[l.pos] == '[' {
			return l.rawBlock(start)
		}
		return token{kind: tokIdent, text: text, off: start}, nil
	case isDigit(c), c == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]):
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], off: start}, nil
	case c == '\'' || c == '"':
		return l.quoted(c)
	}
	switch c {
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", off: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", off: start}, nil
	case '[':
		l.pos++
		return token{kind: tokLBracket, text: "[", off: start}, nil
	case ']':
		l.pos++
		return token{kind: tokRBracket, text: "]", off: start}, nil
	case ',':
		l.pos++
		return token{kind: tokComma, text: ",", off: start}, nil
	case '=':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
		}
		return token{kind: tokOp, text: "=", off: start}, nil
	case '!':
		if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokOp, text: "!=", off: start}, nil
		}
		return token{}, &ParseError{Offset: start, Msg: "unexpected '!'", Expect: "'!='"}
	case '<':
		l.pos++
		if l.pos < len(l.src) {
			switch l.src[l.pos] {
			case '=':
				l.pos++
				return token{kind: tokOp, text: "<=", off: start}, nil
			case '>':
				l.pos++
				return token{kind: tokOp, text: "!=", off: start}, nil
			}
		}
		return token{kind: tokOp, text: "<", off: start}, nil
	case '>':
		l.pos++
		if l.pos < len(l.src) && l.src[l.pos] == '=' {
			l.pos++
			return token{kind: tokOp, text: ">=", off: start}, nil
		}
		return token{kind: tokOp, text: ">", off: start}, nil
	case '%':
		if l.pos+1 < len(l.src) && strings.IndexByte("@Kids", l.src[l.pos+1]) >= 0 {
			l.pos += 2
			return token{kind: tokPlaceholder, text: l.src[start:l.pos], off: start}, nil
		}
		return token{}, &ParseError{Offset: start, Msg: "unexpected '%'", Expect: "%@, %K, %i, %d or %s"}
	}
	return token{}, &ParseError{Offset: start, Msg: fmt.Sprintf("unexpected character %q", c)}
}

// quoted scans a string literal. Doubling the quote escapes it.
func (l *lexer) quoted(q byte) (token, *ParseError) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == q {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == q {
				b.WriteByte(q)
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokString, text: b.String(), off: start}, nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, &ParseError{Offset: start, Msg: "unterminated string literal", Expect: string(q)}
}

// rawBlock scans the body of SQL[ ... ], counting nested brackets. The
// opening bracket has already been seen at l.pos.
func (l *lexer) rawBlock(start int) (token, *ParseError) {
	l.pos++ // consume '['
	depth := 1
	body := l.pos
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				t := token{kind: tokRaw, text: l.src[body:l.pos], off: body}
				l.pos++
				return t, nil
			}
		}
		l.pos++
	}
	return token{}, &ParseError{Offset: start, Msg: "unterminated SQL[ block", Expect: "']'"}
}
