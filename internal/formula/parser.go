package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp     // + - * / // % ^
	tokLParen // (
	tokRParen // )
	tokComma  // ,
)

type token struct {
	kind tokenKind
	text string
}

// lex splits a normalized expression into tokens. Anything outside numbers,
// identifiers, arithmetic operators, parentheses, and commas is rejected
// here, before the parser runs.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(src) && (src[j] >= '0' && src[j] <= '9' || src[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case c == '_' || unicode.IsLetter(rune(c)):
			j := i
			for j < len(src) && (src[j] == '_' || src[j] >= '0' && src[j] <= '9' || unicode.IsLetter(rune(src[j]))) {
				j++
			}
			toks = append(toks, token{tokIdent, strings.ToLower(src[i:j])})
			i = j
		case c == '/':
			if i+1 < len(src) && src[i+1] == '/' {
				toks = append(toks, token{tokOp, "//"})
				i += 2
			} else {
				toks = append(toks, token{tokOp, "/"})
				i++
			}
		case c == '+' || c == '-' || c == '*' || c == '%' || c == '^':
			toks = append(toks, token{tokOp, string(c)})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		default:
			return nil, fmt.Errorf("disallowed character %q", c)
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	return toks, nil
}

// parser implements a recursive-descent grammar:
//
//	expr    := term (("+"|"-") term)*
//	term    := power (("*"|"/"|"//"|"%") power)*
//	power   := unary ("^" power)?          (right associative)
//	unary   := ("+"|"-")* primary
//	primary := number | ident | ident "(" args ")" | "(" expr ")"
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binary{op: t.text, left: left, right: right}
	}
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "*" && t.text != "/" && t.text != "//" && t.text != "%") {
			return left, nil
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		left = binary{op: t.text, left: left, right: right}
	}
}

func (p *parser) parsePower() (Node, error) {
	base, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if t, ok := p.peek(); ok && t.kind == tokOp && t.text == "^" {
		p.pos++
		exp, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return binary{op: "^", left: base, right: exp}, nil
	}
	return base, nil
}

func (p *parser) parseUnary() (Node, error) {
	if t, ok := p.peek(); ok && t.kind == tokOp && (t.text == "+" || t.text == "-") {
		p.pos++
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unary{op: t.text[0], child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch t.kind {
	case tokNumber:
		p.pos++
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return literal{value: v}, nil
	case tokIdent:
		p.pos++
		next, ok := p.peek()
		if ok && next.kind == tokLParen {
			return p.parseCall(t.text)
		}
		return variable{name: t.text}, nil
	case tokLParen:
		p.pos++
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if t, ok := p.peek(); !ok || t.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected %q", t.text)
}

func (p *parser) parseCall(name string) (Node, error) {
	if canon, ok := funcSynonyms[name]; ok {
		name = canon
	}
	bounds, ok := arity[name]
	if !ok {
		return nil, fmt.Errorf("function %q is not allowed", name)
	}
	p.pos++ // consume "("
	var args []Node
	if t, ok := p.peek(); ok && t.kind == tokRParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			t, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("missing closing parenthesis in %s()", name)
			}
			if t.kind == tokComma {
				p.pos++
				continue
			}
			if t.kind == tokRParen {
				p.pos++
				break
			}
			return nil, fmt.Errorf("unexpected %q in %s()", t.text, name)
		}
	}
	if len(args) < bounds[0] {
		return nil, fmt.Errorf("%s() requires at least %d argument(s)", name, bounds[0])
	}
	if bounds[1] >= 0 && len(args) > bounds[1] {
		return nil, fmt.Errorf("%s() accepts at most %d argument(s)", name, bounds[1])
	}
	return call{fn: name, args: args}, nil
}
