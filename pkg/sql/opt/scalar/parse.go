// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// volatileFuncs lists the functions whose results may differ between
// evaluations with the same arguments.
var volatileFuncs = map[string]bool{
	"random":          true,
	"rand":            true,
	"gen_random_uuid": true,
	"nextval":         true,
}

// Parse parses the textual form of a scalar expression, as produced by
// String. For example:
//
//	$0 > 5
//	($0 = $2) AND ($1 IS NOT NULL)
//	lower($3) = 'abc'
//	t#0.$1 < ?1
func Parse(s string) (Expr, error) {
	p := parser{s: s}
	p.next()
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %q", p.tok.text)
	}
	return e, nil
}

// MustParse is like Parse but panics on error. It is intended for tests and
// static initialization.
func MustParse(s string) Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokColumn
	tokPlaceholder
	tokInt
	tokFloat
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokHash
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

type parser struct {
	s   string
	pos int
	tok token
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return errors.Wrapf(errors.Newf(format, args...), "parsing %q at offset %d", p.s, p.tok.pos)
}

// next advances to the next token.
func (p *parser) next() {
	for p.pos < len(p.s) && unicode.IsSpace(rune(p.s[p.pos])) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.s) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}
	ch := p.s[p.pos]
	switch {
	case ch == '$' || ch == '?':
		p.pos++
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
		kind := tokColumn
		if ch == '?' {
			kind = tokPlaceholder
		}
		p.tok = token{kind: kind, text: p.s[start:p.pos], pos: start}

	case isDigit(ch):
		kind := tokInt
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
		if p.pos+1 < len(p.s) && p.s[p.pos] == '.' && isDigit(p.s[p.pos+1]) {
			kind = tokFloat
			p.pos++
			for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
				p.pos++
			}
		}
		if p.pos < len(p.s) && (p.s[p.pos] == 'e' || p.s[p.pos] == 'E') {
			kind = tokFloat
			p.pos++
			if p.pos < len(p.s) && (p.s[p.pos] == '+' || p.s[p.pos] == '-') {
				p.pos++
			}
			for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
				p.pos++
			}
		}
		p.tok = token{kind: kind, text: p.s[start:p.pos], pos: start}

	case ch == '\'':
		var buf strings.Builder
		p.pos++
		for {
			if p.pos >= len(p.s) {
				p.tok = token{kind: tokOp, text: "unterminated string", pos: start}
				return
			}
			if p.s[p.pos] == '\'' {
				if p.pos+1 < len(p.s) && p.s[p.pos+1] == '\'' {
					buf.WriteByte('\'')
					p.pos += 2
					continue
				}
				p.pos++
				break
			}
			buf.WriteByte(p.s[p.pos])
			p.pos++
		}
		p.tok = token{kind: tokString, text: buf.String(), pos: start}

	case isIdentStart(ch):
		for p.pos < len(p.s) && isIdentChar(p.s[p.pos]) {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: p.s[start:p.pos], pos: start}

	case ch == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case ch == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case ch == ',':
		p.pos++
		p.tok = token{kind: tokComma, text: ",", pos: start}
	case ch == '#':
		p.pos++
		p.tok = token{kind: tokHash, text: "#", pos: start}
	case ch == '.':
		p.pos++
		p.tok = token{kind: tokDot, text: ".", pos: start}

	default:
		for _, op := range []string{"<>", "!=", "<=", ">=", "=", "<", ">", "+", "-", "*", "/"} {
			if strings.HasPrefix(p.s[p.pos:], op) {
				p.pos += len(op)
				p.tok = token{kind: tokOp, text: op, pos: start}
				return
			}
		}
		p.pos++
		p.tok = token{kind: tokOp, text: string(ch), pos: start}
	}
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokIdent && strings.EqualFold(p.tok.text, kw)
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return p.errorf("expected %s", kw)
	}
	p.next()
	return nil
}

func (p *parser) parseOr() (Expr, error) {
	return p.parseNary(OrOp, "OR", p.parseAnd)
}

func (p *parser) parseAnd() (Expr, error) {
	return p.parseNary(AndOp, "AND", p.parseNot)
}

func (p *parser) parseNary(op Operator, kw string, sub func() (Expr, error)) (Expr, error) {
	first, err := sub()
	if err != nil {
		return nil, err
	}
	args := []Expr{first}
	for p.isKeyword(kw) {
		p.next()
		e, err := sub()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	if len(args) == 1 {
		return first, nil
	}
	return &Call{Operator: op, Args: args}, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("NOT") {
		p.next()
		e, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not(e), nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]Operator{
	"=":  EqOp,
	"<>": NeOp,
	"!=": NeOp,
	"<":  LtOp,
	"<=": LeOp,
	">":  GtOp,
	">=": GeOp,
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.tok.kind == tokOp {
		if op, ok := comparisonOps[p.tok.text]; ok {
			p.next()
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return NewCall(op, left, right), nil
		}
	}
	if !p.isKeyword("IS") {
		return left, nil
	}
	p.next()
	negated := false
	if p.isKeyword("NOT") {
		negated = true
		p.next()
	}
	if p.isKeyword("NULL") {
		p.next()
		if negated {
			return IsNotNull(left), nil
		}
		return IsNull(left), nil
	}
	if err := p.expectKeyword("DISTINCT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if negated {
		return NewCall(IsNotDistinctFromOp, left, right), nil
	}
	return NewCall(IsDistinctFromOp, left, right), nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := PlusOp
		if p.tok.text == "-" {
			op = MinusOp
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = NewCall(op, left, right)
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := MultOp
		if p.tok.text == "/" {
			op = DivOp
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = NewCall(op, left, right)
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if c, ok := e.(*Const); ok {
			switch v := c.Value.(type) {
			case int64:
				return Int(-v), nil
			case float64:
				return Float(-v), nil
			}
		}
		return NewCall(UnaryMinusOp, e), nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.tok
	switch tok.kind {
	case tokColumn, tokPlaceholder:
		idx, err := strconv.Atoi(tok.text[1:])
		if err != nil {
			return nil, p.errorf("invalid reference %q", tok.text)
		}
		p.next()
		if tok.kind == tokPlaceholder {
			return &Placeholder{Index: idx}, nil
		}
		return Col(idx), nil

	case tokInt:
		v, err := strconv.ParseInt(tok.text, 10, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %q", tok.text)
		}
		p.next()
		return Int(v), nil

	case tokFloat:
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, p.errorf("invalid float %q", tok.text)
		}
		p.next()
		return Float(v), nil

	case tokString:
		p.next()
		return Str(tok.text), nil

	case tokLParen:
		p.next()
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.errorf("expected )")
		}
		p.next()
		return e, nil

	case tokIdent:
		switch {
		case strings.EqualFold(tok.text, "TRUE"):
			p.next()
			return True, nil
		case strings.EqualFold(tok.text, "FALSE"):
			p.next()
			return False, nil
		case strings.EqualFold(tok.text, "NULL"):
			p.next()
			return Null, nil
		}
		p.next()
		switch p.tok.kind {
		case tokLParen:
			return p.parseFuncArgs(tok.text)
		case tokHash:
			return p.parseTableColumn(tok.text)
		}
		return nil, p.errorf("unexpected identifier %q", tok.text)
	}
	if tok.kind == tokEOF {
		return nil, p.errorf("unexpected end of expression")
	}
	return nil, p.errorf("unexpected %q", tok.text)
}

func (p *parser) parseFuncArgs(name string) (Expr, error) {
	p.next()
	var args []Expr
	if p.tok.kind != tokRParen {
		for {
			e, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
			if p.tok.kind != tokComma {
				break
			}
			p.next()
		}
	}
	if p.tok.kind != tokRParen {
		return nil, p.errorf("expected ) after arguments of %s", name)
	}
	p.next()
	name = strings.ToLower(name)
	if volatileFuncs[name] {
		return VolatileFunc(name, args...), nil
	}
	return Func(name, args...), nil
}

// parseTableColumn parses the remainder of name#entity.$index.
func (p *parser) parseTableColumn(name string) (Expr, error) {
	p.next()
	if p.tok.kind != tokInt {
		return nil, p.errorf("expected table entity number")
	}
	entity, _ := strconv.Atoi(p.tok.text)
	p.next()
	if p.tok.kind != tokDot {
		return nil, p.errorf("expected . after table reference")
	}
	p.next()
	if p.tok.kind != tokColumn {
		return nil, p.errorf("expected column after table reference")
	}
	idx, err := strconv.Atoi(p.tok.text[1:])
	if err != nil {
		return nil, p.errorf("invalid column %q", p.tok.text)
	}
	p.next()
	return &TableColumnRef{Table: TableRef{Name: name, Entity: entity}, Index: idx}, nil
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool { return isIdentStart(ch) || isDigit(ch) }
