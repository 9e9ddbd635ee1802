package logic

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrEmpty is returned when the expression contains no tokens.
var ErrEmpty = errors.New("empty expression")

// tokenKind enumerates lexer token categories.
type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNot
	tokAnd
	tokOr
	tokImplies
	tokLParen
	tokRParen
	tokEOF
)

func (k tokenKind) String() string {
	switch k {
	case tokIdent:
		return "identifier"
	case tokNot:
		return "NOT"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokImplies:
		return "IMPLIES"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "end of expression"
	}
}

// token is a single lexed unit with its byte offset for error reporting.
type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits the expression into tokens. Identifiers are runs of letters,
// digits and underscores; names are matched whole, so a predicate that is a
// prefix or suffix of another can never be captured partially.
func lex(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := rune(expr[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case isIdentRune(c):
			start := i
			for i < len(expr) && isIdentRune(rune(expr[i])) {
				i++
			}
			word := expr[start:i]
			tokens = append(tokens, token{kind: wordKind(word), text: word, pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(expr)})
	return tokens, nil
}

func isIdentRune(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func wordKind(word string) tokenKind {
	switch word {
	case "NOT":
		return tokNot
	case "AND":
		return tokAnd
	case "OR":
		return tokOr
	case "IMPLIES":
		return tokImplies
	default:
		return tokIdent
	}
}

// parser is a recursive-descent parser over the token stream.
type parser struct {
	tokens []token
	pos    int
}

// Parse parses a propositional expression into its tree form.
//
// Precedence, loosest to tightest: IMPLIES, OR, AND, NOT. IMPLIES is
// right-associative, so A IMPLIES B IMPLIES C splits on the first IMPLIES
// and recurses right. AND and OR associate left.
func Parse(expr string) (Node, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, ErrEmpty
	}
	tokens, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %s %q at offset %d", tok.kind, tok.text, tok.pos)
	}
	return node, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseImplies() (Node, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokImplies {
		p.next()
		right, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		return Implies{Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokNot {
		p.next()
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Expr: expr}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokIdent:
		return Ident{Name: tok.text}, nil
	case tokLParen:
		node, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("expected ')' at offset %d, found %s", closing.pos, closing.kind)
		}
		return node, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression at offset %d", tok.pos)
	default:
		return nil, fmt.Errorf("unexpected %s %q at offset %d", tok.kind, tok.text, tok.pos)
	}
}
