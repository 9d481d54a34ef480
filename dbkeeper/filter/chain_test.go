package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromIDChain(t *testing.T) {
	group := FromIDChain("a=1#b=2")
	assert.Equal(t, CategoryCollection, group.Category())
	assert.False(t, group.IsOr())

	children := group.Children()
	require.Len(t, children, 2)
	for i, want := range [][2]string{{"a", "1"}, {"b", "2"}} {
		assert.Equal(t, CategoryIDString, children[i].Category())
		assert.Equal(t, want[0], children[i].Key)
		assert.Equal(t, want[1], children[i].Value.Literal)
	}
}

func TestFromIDChainSkipsMalformedFragments(t *testing.T) {
	children := FromIDChain("a=1#broken##c=x=y").Children()
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Key)
	assert.Equal(t, "c", children[1].Key)
	assert.Equal(t, "x=y", children[1].Value.Literal)

	assert.Empty(t, FromIDChain("").Children())
}

func TestFromIDChainCollection(t *testing.T) {
	root := FromIDChainCollection([]string{"a=1#b=2", "c=3"})
	require.True(t, root.IsRoot())

	groups := root.Children()
	require.Len(t, groups, 2)
	for _, g := range groups {
		assert.Equal(t, CategoryCollection, g.Category())
		assert.True(t, g.IsOr())
	}
	assert.Len(t, groups[0].Children(), 2)
	assert.Len(t, groups[1].Children(), 1)
}

func TestIDChainRoundTrip(t *testing.T) {
	chain := IDChain([2]string{"a", "1"}, [2]string{"b", "2"})
	assert.Equal(t, "a=1#b=2", chain)
	assert.Len(t, FromIDChain(chain).Children(), 2)
}
