package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestLexOperators(t *testing.T) {
	tokens, err := Lex(`a:1 & b~"x" | !(c:d) and e:f OR not g:h`)
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{
		TokIdent, TokColon, TokNumber, TokAnd,
		TokIdent, TokTilde, TokString, TokOr,
		TokNot, TokLParen, TokIdent, TokColon, TokIdent, TokRParen, TokAnd,
		TokIdent, TokColon, TokIdent, TokOr,
		TokNot, TokIdent, TokColon, TokIdent, TokEOF,
	}, kinds(tokens))
}

func TestLexNumbersVersusIdentifiers(t *testing.T) {
	tokens, err := Lex("42 -7 507f1f77bcf86cd799439011 2024-01-01 3.5")
	require.NoError(t, err)
	require.Len(t, tokens, 6)
	assert.Equal(t, Token{Kind: TokNumber, Value: "42", Pos: 0}, tokens[0])
	assert.Equal(t, TokNumber, tokens[1].Kind)
	assert.Equal(t, "-7", tokens[1].Value)
	assert.Equal(t, TokIdent, tokens[2].Kind)
	assert.Equal(t, "507f1f77bcf86cd799439011", tokens[2].Value)
	assert.Equal(t, TokIdent, tokens[3].Kind)
	assert.Equal(t, "2024-01-01", tokens[3].Value)
	assert.Equal(t, TokIdent, tokens[4].Kind)
}

func TestLexStrings(t *testing.T) {
	tokens, err := Lex(`"a \"b\"" 'c d'`)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	assert.Equal(t, `a "b"`, tokens[0].Value)
	assert.Equal(t, "c d", tokens[1].Value)

	_, err = Lex(`"open`)
	assert.Error(t, err)
}

func TestLexRejectsUnknownCharacters(t *testing.T) {
	_, err := Lex("a:1 = b")
	assert.Error(t, err)
}
