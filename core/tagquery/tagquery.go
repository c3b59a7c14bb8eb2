// Package tagquery implements the §6 tag-query grammar used by the mount
// command and Store.Query:
//
//	query      := '(' tag* ')' '=>' hierarchy
//	tag        := NAME (OP VALUE)?
//	OP         := '=' | '>' | '>=' | '<' | '<='
//	hierarchy  := '...' | ( NAME '{' hierarchy '}' )+
//	VALUE      := quoted string literal
//
// Parse and Unparse are each other's inverse for every well-formed query
// (spec §8's round-trip property), which the lexer/parser below preserves
// by recording exactly the operator and quoting style a caller would
// expect to see again.
package tagquery

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xunhq/xun/core/xerrors"
)

// Op is a tag comparison operator.
type Op string

const (
	OpNone Op = "" // tag named with no value constraint
	OpEq   Op = "="
	OpGt   Op = ">"
	OpGte  Op = ">="
	OpLt   Op = "<"
	OpLte  Op = "<="
)

// Tag is one predicate inside the query's parenthesized tag list.
type Tag struct {
	Name  string
	Op    Op
	Value string // zero value when Op == OpNone
}

// Hierarchy is either a leaf ('...', "materialize the matching keys here")
// or one or more named branches, each with its own nested Hierarchy.
type Hierarchy struct {
	Leaf     bool
	Branches []Branch
}

// Branch is one "NAME { hierarchy }" arm of a non-leaf Hierarchy.
type Branch struct {
	Name  string
	Child Hierarchy
}

// Query is a full parsed tag-query.
type Query struct {
	Tags      []Tag
	Hierarchy Hierarchy
}

// Parse parses a tag-query string into a Query, failing InvalidProcedure
// on any syntax error.
func Parse(input string) (Query, error) {
	toks, err := lex(input)
	if err != nil {
		return Query{}, err
	}
	p := &parser{toks: toks}
	q, err := p.parseQuery()
	if err != nil {
		return Query{}, err
	}
	if p.pos != len(p.toks) {
		return Query{}, xerrors.New(xerrors.InvalidProcedure, "unexpected trailing input at token %d", p.pos)
	}
	return q, nil
}

// Unparse renders q back into its canonical textual form. Parse(Unparse(q))
// always equals q for a Query produced by Parse (spec §8).
func Unparse(q Query) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, t := range q.Tags {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t.Name)
		if t.Op != OpNone {
			b.WriteString(string(t.Op))
			b.WriteString(strconv.Quote(t.Value))
		}
	}
	b.WriteByte(')')
	b.WriteString(" => ")
	writeHierarchy(&b, q.Hierarchy)
	return b.String()
}

func writeHierarchy(b *strings.Builder, h Hierarchy) {
	if h.Leaf {
		b.WriteString("...")
		return
	}
	for i, br := range h.Branches {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(br.Name)
		b.WriteByte('{')
		writeHierarchy(b, br.Child)
		b.WriteByte('}')
	}
}

// --- lexer ---

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokLBrace
	tokRBrace
	tokArrow // =>
	tokEllipsis
	tokOp // = > >= < <=
	tokName
	tokString
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
		case c == '{':
			toks = append(toks, token{tokLBrace, "{"})
			i++
		case c == '}':
			toks = append(toks, token{tokRBrace, "}"})
			i++
		case strings.HasPrefix(input[i:], "..."):
			toks = append(toks, token{tokEllipsis, "..."})
			i += 3
		case strings.HasPrefix(input[i:], "=>"):
			toks = append(toks, token{tokArrow, "=>"})
			i += 2
		case strings.HasPrefix(input[i:], ">="):
			toks = append(toks, token{tokOp, ">="})
			i += 2
		case strings.HasPrefix(input[i:], "<="):
			toks = append(toks, token{tokOp, "<="})
			i += 2
		case c == '=' || c == '>' || c == '<':
			toks = append(toks, token{tokOp, string(c)})
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

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNamePart(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '-'
}

// --- parser ---

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

func (p *parser) parseQuery() (Query, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return Query{}, err
	}
	var tags []Tag
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokName {
			break
		}
		tag, err := p.parseTag()
		if err != nil {
			return Query{}, err
		}
		tags = append(tags, tag)
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return Query{}, err
	}
	if _, err := p.expect(tokArrow, "'=>'"); err != nil {
		return Query{}, err
	}
	h, err := p.parseHierarchy()
	if err != nil {
		return Query{}, err
	}
	return Query{Tags: tags, Hierarchy: h}, nil
}

func (p *parser) parseTag() (Tag, error) {
	name, err := p.expect(tokName, "tag name")
	if err != nil {
		return Tag{}, err
	}
	t, ok := p.peek()
	if !ok || t.kind != tokOp {
		return Tag{Name: name.text}, nil
	}
	p.pos++
	op := Op(t.text)
	val, err := p.expect(tokString, "quoted value")
	if err != nil {
		return Tag{}, err
	}
	return Tag{Name: name.text, Op: op, Value: val.text}, nil
}

func (p *parser) parseHierarchy() (Hierarchy, error) {
	t, ok := p.peek()
	if !ok {
		return Hierarchy{}, xerrors.New(xerrors.InvalidProcedure, "expected hierarchy, got end of input")
	}
	if t.kind == tokEllipsis {
		p.pos++
		return Hierarchy{Leaf: true}, nil
	}
	var branches []Branch
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokName {
			break
		}
		name, _ := p.expect(tokName, "branch name")
		if _, err := p.expect(tokLBrace, "'{'"); err != nil {
			return Hierarchy{}, err
		}
		child, err := p.parseHierarchy()
		if err != nil {
			return Hierarchy{}, err
		}
		if _, err := p.expect(tokRBrace, "'}'"); err != nil {
			return Hierarchy{}, err
		}
		branches = append(branches, Branch{Name: name.text, Child: child})
	}
	if len(branches) == 0 {
		return Hierarchy{}, xerrors.New(xerrors.InvalidProcedure, "hierarchy must be '...' or at least one named branch, got %v", t)
	}
	return Hierarchy{Branches: branches}, nil
}

func (t token) String() string {
	return fmt.Sprintf("%q", t.text)
}
