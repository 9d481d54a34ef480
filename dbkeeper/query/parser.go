package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nonibytes/dbkeeper/dbkeeper/filter"
)

var objectIDRe = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Parse turns a where expression into a filter tree rooted at ROOT.
//
//	name:bob age:42 active:true      implicit AND
//	name:bob OR name:alice           OR group
//	!status:closed                   negated predicate
//	name~"^bo"                       regex
//	_id:507f1f77bcf86cd799439011     object id
//
// An empty expression yields an empty ROOT.
func Parse(input string) (filter.Element, error) {
	tokens, err := Lex(input)
	if err != nil {
		return filter.Element{}, err
	}

	p := &parser{tokens: tokens}
	if p.match(TokEOF) {
		return filter.Root(), nil
	}
	el, err := p.parseExpr()
	if err != nil {
		return filter.Element{}, err
	}
	if !p.match(TokEOF) {
		return filter.Element{}, fmt.Errorf("unexpected %v at %d", p.current(), p.current().Pos)
	}
	return filter.Root().Push(el), nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) parseExpr() (filter.Element, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (filter.Element, error) {
	first, err := p.parseAnd()
	if err != nil {
		return filter.Element{}, err
	}
	operands := []filter.Element{first}

	for p.match(TokOr) {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return filter.Element{}, err
		}
		operands = append(operands, next)
	}
	return group(operands, filter.Or), nil
}

func (p *parser) parseAnd() (filter.Element, error) {
	first, err := p.parseNot()
	if err != nil {
		return filter.Element{}, err
	}
	operands := []filter.Element{first}

	for {
		if p.match(TokAnd) {
			p.advance()
		} else if !p.startsOperand() {
			break
		}
		next, err := p.parseNot()
		if err != nil {
			return filter.Element{}, err
		}
		operands = append(operands, next)
	}
	return group(operands, filter.And), nil
}

func (p *parser) parseNot() (filter.Element, error) {
	if !p.match(TokNot) {
		return p.parsePrimary()
	}
	pos := p.current().Pos
	p.advance()

	inner, err := p.parseNot()
	if err != nil {
		return filter.Element{}, err
	}
	if inner.Category().IsStructural() {
		return filter.Element{}, fmt.Errorf("NOT applies to single predicates only (at %d)", pos)
	}
	if inner.Negated {
		return inner.Affirmate(), nil
	}
	return inner.Negate(), nil
}

func (p *parser) parsePrimary() (filter.Element, error) {
	if p.match(TokLParen) {
		p.advance()
		el, err := p.parseExpr()
		if err != nil {
			return filter.Element{}, err
		}
		if !p.match(TokRParen) {
			return filter.Element{}, fmt.Errorf("expected ')', got %v", p.current())
		}
		p.advance()
		return el, nil
	}
	return p.parsePredicate()
}

func (p *parser) parsePredicate() (filter.Element, error) {
	var field string
	switch p.current().Kind {
	case TokIdent, TokString:
		field = p.current().Value
	case TokEOF:
		return filter.Element{}, fmt.Errorf("unexpected end of expression")
	default:
		return filter.Element{}, fmt.Errorf("expected field, got %v", p.current())
	}
	p.advance()

	switch {
	case p.match(TokColon):
		p.advance()
		return p.parseEquality(field)
	case p.match(TokTilde):
		p.advance()
		pattern, err := p.expectLiteral()
		if err != nil {
			return filter.Element{}, err
		}
		if isIdentifierField(field) {
			return filter.IDString(field, pattern, filter.Regex()), nil
		}
		return filter.String(field, pattern, filter.Regex()), nil
	default:
		return filter.Element{}, fmt.Errorf("expected ':' or '~' after %q", field)
	}
}

func (p *parser) parseEquality(field string) (filter.Element, error) {
	tok := p.current()
	switch tok.Kind {
	case TokString:
		p.advance()
		if isIdentifierField(field) {
			return filter.IDString(field, tok.Value), nil
		}
		return filter.String(field, tok.Value), nil

	case TokNumber:
		p.advance()
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return filter.Element{}, fmt.Errorf("invalid number %q for %q", tok.Value, field)
		}
		return filter.Int64(field, n), nil

	case TokIdent:
		p.advance()
		if isIdentifierField(field) {
			if objectIDRe.MatchString(tok.Value) {
				return filter.IDString(field, tok.Value, filter.OID()), nil
			}
			return filter.IDString(field, tok.Value), nil
		}
		switch strings.ToLower(tok.Value) {
		case "true":
			return filter.Bool(field, true), nil
		case "false":
			return filter.Bool(field, false), nil
		}
		return filter.String(field, tok.Value), nil

	default:
		return filter.Element{}, fmt.Errorf("expected value after '%s:'", field)
	}
}

func (p *parser) expectLiteral() (string, error) {
	switch p.current().Kind {
	case TokString, TokIdent, TokNumber:
		v := p.current().Value
		p.advance()
		return v, nil
	}
	return "", fmt.Errorf("expected pattern, got %v", p.current())
}

func (p *parser) startsOperand() bool {
	switch p.current().Kind {
	case TokIdent, TokString, TokNot, TokLParen:
		return true
	}
	return false
}

func (p *parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Kind: TokEOF}
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *parser) match(kind TokenKind) bool {
	return p.current().Kind == kind
}

// group bundles operands into one COLLECTION whose children carry dir.
func group(operands []filter.Element, dir filter.Direction) filter.Element {
	if len(operands) == 1 {
		return operands[0]
	}
	children := make([]filter.Element, len(operands))
	for i, op := range operands {
		if dir == filter.Or {
			children[i] = op.AsOr()
		} else {
			children[i] = op.AsAnd()
		}
	}
	return filter.Element{Value: filter.Value{Category: filter.CategoryCollection, Children: children}}
}

func isIdentifierField(field string) bool {
	return field == "_id"
}
