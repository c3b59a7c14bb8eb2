// Package callexpr parses the CLI's call-expression argument (§6): a
// single named-function call whose arguments and keyword arguments are
// literal expressions only, e.g. `fibonacci_sequence(10)` or
// `render("alice", count=3, ratio=-1.5)`. Nothing here evaluates arbitrary
// Go — it is a small hand-rolled lexer/recursive-descent parser, in the
// same style as core/tagquery's grammar.
package callexpr

import (
	"strconv"
	"strings"

	"github.com/xunhq/xun/core/xerrors"
)

// Call is a parsed call-expression: the callee's name plus its literal
// positional and keyword arguments.
type Call struct {
	Name   string
	Args   []any
	Kwargs map[string]any
}

// Parse parses expr into a Call, failing InvalidProcedure on any syntax
// error or if expr is not a single named-function call.
func Parse(expr string) (Call, error) {
	toks, err := lex(expr)
	if err != nil {
		return Call{}, err
	}
	p := &parser{toks: toks}
	c, err := p.parseCall()
	if err != nil {
		return Call{}, err
	}
	if p.pos != len(p.toks) {
		return Call{}, xerrors.New(xerrors.InvalidProcedure, "unexpected trailing input at token %d", p.pos)
	}
	return c, nil
}

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokComma
	tokEq
	tokName
	tokString
	tokNumber
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	n := len(input)
	for i < n {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
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
		case c == '=':
			toks = append(toks, token{tokEq, "="})
			i++
		case c == '"':
			j := i + 1
			for j < n && input[j] != '"' {
				if input[j] == '\\' && j+1 < n {
					j++
				}
				j++
			}
			if j >= n {
				return nil, xerrors.New(xerrors.InvalidProcedure, "unterminated string literal at position %d", i)
			}
			unquoted, err := strconv.Unquote(input[i : j+1])
			if err != nil {
				return nil, xerrors.Wrap(xerrors.InvalidProcedure, err, "invalid string literal at position %d", i)
			}
			toks = append(toks, token{tokString, unquoted})
			i = j + 1
		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < n && (isDigit(input[j]) || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j]})
			i = j
		case isNameStart(c):
			j := i + 1
			for j < n && isNamePart(input[j]) {
				j++
			}
			toks = append(toks, token{tokName, input[i:j]})
			i = j
		default:
			return nil, xerrors.New(xerrors.InvalidProcedure, "unexpected character %q at position %d", c, i)
		}
	}
	return toks, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

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

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t, ok := p.peek()
	if !ok || t.kind != kind {
		return token{}, xerrors.New(xerrors.InvalidProcedure, "expected %s at token %d", what, p.pos)
	}
	p.pos++
	return t, nil
}

func (p *parser) parseCall() (Call, error) {
	nameTok, err := p.expect(tokName, "function name")
	if err != nil {
		return Call{}, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return Call{}, err
	}

	c := Call{Name: nameTok.text, Kwargs: map[string]any{}}

	if t, ok := p.peek(); ok && t.kind == tokRParen {
		p.pos++
		return c, nil
	}

	for {
		if err := p.parseArgument(&c); err != nil {
			return Call{}, err
		}
		t, ok := p.peek()
		if !ok {
			return Call{}, xerrors.New(xerrors.InvalidProcedure, "unterminated call expression")
		}
		if t.kind == tokComma {
			p.pos++
			continue
		}
		break
	}

	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return Call{}, err
	}
	return c, nil
}

// parseArgument consumes one positional or keyword argument. A keyword
// argument is `NAME '=' literal`; anything else is a positional literal.
func (p *parser) parseArgument(c *Call) error {
	if t, ok := p.peek(); ok && t.kind == tokName {
		if next, ok := p.peekAt(p.pos + 1); ok && next.kind == tokEq {
			key := t.text
			p.pos += 2
			v, err := p.parseLiteral()
			if err != nil {
				return err
			}
			c.Kwargs[key] = v
			return nil
		}
	}
	v, err := p.parseLiteral()
	if err != nil {
		return err
	}
	if len(c.Kwargs) > 0 {
		return xerrors.New(xerrors.InvalidProcedure, "positional argument after keyword argument")
	}
	c.Args = append(c.Args, v)
	return nil
}

func (p *parser) peekAt(i int) (token, bool) {
	if i >= len(p.toks) {
		return token{}, false
	}
	return p.toks[i], true
}

func (p *parser) parseLiteral() (any, error) {
	t, ok := p.peek()
	if !ok {
		return nil, xerrors.New(xerrors.InvalidProcedure, "expected a literal argument at token %d", p.pos)
	}
	switch t.kind {
	case tokString:
		p.pos++
		return t.text, nil
	case tokNumber:
		p.pos++
		return parseNumber(t.text)
	case tokName:
		switch t.text {
		case "true":
			p.pos++
			return true, nil
		case "false":
			p.pos++
			return false, nil
		}
		return nil, xerrors.New(xerrors.InvalidProcedure, "argument %q is not a literal expression", t.text)
	default:
		return nil, xerrors.New(xerrors.InvalidProcedure, "expected a literal argument at token %d", p.pos)
	}
}

func parseNumber(text string) (any, error) {
	if strings.ContainsRune(text, '.') {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.InvalidProcedure, err, "invalid numeric literal %q", text)
		}
		return f, nil
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.InvalidProcedure, err, "invalid numeric literal %q", text)
	}
	return n, nil
}
