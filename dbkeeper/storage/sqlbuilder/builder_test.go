package sqlbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgQuestion(t *testing.T) {
	b := New(PlaceholderQuestion)
	assert.Equal(t, "?", b.Arg(1))
	assert.Equal(t, "?", b.Arg("a"))
	assert.Equal(t, []any{1, "a"}, b.Args())
	assert.Equal(t, 2, b.Len())
}

func TestArgDollar(t *testing.T) {
	b := New(PlaceholderDollar)
	assert.Equal(t, "$1", b.Arg(1))
	assert.Equal(t, "($2, $3)", b.List([]any{"x", "y"}))
	for i := 0; i < 8; i++ {
		b.Arg(i)
	}
	assert.Equal(t, "$12", b.Arg("last"))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
	assert.Equal(t, `'it''s'`, QuoteLiteral("it's"))
}
