package query

import (
	"fmt"
	"strings"
	"unicode"
)

// Token represents a lexical token
type Token struct {
	Kind  TokenKind
	Value string
	Pos   int
}

// TokenKind is the type of token
type TokenKind int

const (
	TokIdent TokenKind = iota
	TokString
	TokNumber
	TokColon
	TokTilde
	TokAnd
	TokOr
	TokNot
	TokLParen
	TokRParen
	TokEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokIdent:
		return "Ident"
	case TokString:
		return "String"
	case TokNumber:
		return "Number"
	case TokColon:
		return "Colon"
	case TokTilde:
		return "Tilde"
	case TokAnd:
		return "And"
	case TokOr:
		return "Or"
	case TokNot:
		return "Not"
	case TokLParen:
		return "LParen"
	case TokRParen:
		return "RParen"
	case TokEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

func (t Token) String() string {
	if t.Value == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
}

// Lexer tokenizes a where expression
type Lexer struct {
	input []rune
	pos   int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Lex tokenizes the entire input
func Lex(input string) ([]Token, error) {
	lexer := NewLexer(input)
	var tokens []Token
	for {
		tok, err := lexer.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	start := l.pos
	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: start}, nil
	}

	ch := l.input[l.pos]
	switch ch {
	case ':':
		l.pos++
		return Token{Kind: TokColon, Pos: start}, nil
	case '~':
		l.pos++
		return Token{Kind: TokTilde, Pos: start}, nil
	case '(':
		l.pos++
		return Token{Kind: TokLParen, Pos: start}, nil
	case ')':
		l.pos++
		return Token{Kind: TokRParen, Pos: start}, nil
	case '&':
		l.pos++
		return Token{Kind: TokAnd, Pos: start}, nil
	case '|':
		l.pos++
		return Token{Kind: TokOr, Pos: start}, nil
	case '!':
		l.pos++
		return Token{Kind: TokNot, Pos: start}, nil
	case '"', '\'':
		return l.scanString(ch)
	}

	if unicode.IsDigit(ch) || (ch == '-' && unicode.IsDigit(l.peek(1))) {
		return l.scanNumber()
	}
	if isIdentChar(ch) {
		return l.scanIdent()
	}
	return Token{}, fmt.Errorf("unexpected character %q at %d", ch, start)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos < len(l.input) {
		return l.input[pos]
	}
	return 0
}

func (l *Lexer) scanString(quote rune) (Token, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == quote {
			l.pos++
			return Token{Kind: TokString, Value: sb.String(), Pos: start}, nil
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			switch l.input[l.pos] {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(l.input[l.pos])
			}
			l.pos++
			continue
		}
		sb.WriteRune(ch)
		l.pos++
	}
	return Token{}, fmt.Errorf("unterminated string at %d", start)
}

// scanNumber reads an integer. Anything glued to the digits (hex ids, dates)
// turns the token into an identifier instead.
func (l *Lexer) scanNumber() (Token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && unicode.IsDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos = start
		return l.scanIdent()
	}
	return Token{Kind: TokNumber, Value: string(l.input[start:l.pos]), Pos: start}, nil
}

func (l *Lexer) scanIdent() (Token, error) {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	value := string(l.input[start:l.pos])

	switch strings.ToUpper(value) {
	case "AND":
		return Token{Kind: TokAnd, Pos: start}, nil
	case "OR":
		return Token{Kind: TokOr, Pos: start}, nil
	case "NOT":
		return Token{Kind: TokNot, Pos: start}, nil
	}
	return Token{Kind: TokIdent, Value: value, Pos: start}, nil
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) ||
		ch == '_' || ch == '.' || ch == '-' || ch == '$' || ch == '*' || ch == '^' || ch == '/' || ch == '@'
}
