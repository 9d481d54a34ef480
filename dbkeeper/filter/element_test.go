package filter

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootIsEmpty(t *testing.T) {
	root := Root()
	assert.True(t, root.IsRoot())
	assert.Empty(t, root.Key)
	assert.Empty(t, root.Children())
}

func TestLeafConstructors(t *testing.T) {
	cases := []struct {
		name     string
		el       Element
		category Category
		literal  string
	}{
		{"id string", IDString("_id", "abc"), CategoryIDString, "abc"},
		{"id numeric", IDNumeric("code", "12"), CategoryIDNumeric, "12"},
		{"string", String("name", "bob"), CategoryString, "bob"},
		{"bool", Bool("active", true), CategoryBoolean, "true"},
		{"int8", Int8("n", -8), CategoryNumeric, "-8"},
		{"int16", Int16("n", 16), CategoryNumeric, "16"},
		{"int32", Int32("n", -32), CategoryNumeric, "-32"},
		{"int64", Int64("n", 64), CategoryNumeric, "64"},
		{"uint", Numeric("n", uint64(18446744073709551615)), CategoryNumeric, "18446744073709551615"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.category, tc.el.Category())
			assert.Equal(t, tc.literal, tc.el.Value.Literal)
			assert.Empty(t, tc.el.Value.Children)
		})
	}
}

func TestBigInt(t *testing.T) {
	v, ok := new(big.Int).SetString("-170141183460469231731687303715884105728", 10)
	require.True(t, ok)
	el := BigInt("n", v)
	assert.Equal(t, CategoryNumeric, el.Category())
	assert.Equal(t, "-170141183460469231731687303715884105728", el.Value.Literal)
	assert.Equal(t, "0", BigInt("n", nil).Value.Literal)
}

func TestAttributesAreCopied(t *testing.T) {
	attrs := []Attribute{OID()}
	el := IDString("_id", "x", attrs...)
	attrs[0].Value = "false"
	assert.True(t, el.Value.HasAttribute(AttrOID))
	assert.False(t, el.Value.HasAttribute(AttrRegex))

	off := IDString("_id", "x", NewAttribute(AttrRegex, "nope"))
	assert.False(t, off.Value.HasAttribute(AttrRegex))
}

func TestPushOntoRootAppends(t *testing.T) {
	a := IDString("a", "1")
	b := Bool("b", true)
	root := Root().Push(a).Push(b)

	require.True(t, root.IsRoot())
	children := root.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "a", children[0].Key)
	assert.Equal(t, "b", children[1].Key)
}

func TestPushUnwrapsRoot(t *testing.T) {
	inner := Root().Push(String("x", "1")).Push(String("y", "2"))
	root := Root().Push(String("w", "0")).Push(inner)

	children := root.Children()
	require.Len(t, children, 3)
	assert.Equal(t, []string{"w", "x", "y"}, []string{children[0].Key, children[1].Key, children[2].Key})
}

func TestPushOntoLeafBuildsCollection(t *testing.T) {
	a := String("a", "1")
	b := String("b", "2").AsOr().Negate()
	merged := a.Push(b)

	assert.Equal(t, CategoryCollection, merged.Category())
	assert.Equal(t, "a", merged.Key)
	children := merged.Children()
	require.Len(t, children, 2)
	assert.Equal(t, "b", children[0].Key)
	assert.Equal(t, "a", children[1].Key)
	// placement only: pushed element keeps its flags
	assert.True(t, children[0].IsOr())
	assert.True(t, children[0].Negated)
}

func TestPushRootOntoLeaf(t *testing.T) {
	group := Root().Push(String("x", "1")).AsOr()
	merged := String("a", "1").Push(group)

	children := merged.Children()
	require.Len(t, children, 2)
	assert.Equal(t, CategoryCollection, children[0].Category())
	assert.True(t, children[0].IsOr())
	require.Len(t, children[0].Children(), 1)
}

func TestBuildersDoNotMutateReceiver(t *testing.T) {
	root := Root().Push(String("a", "1"))
	_ = root.Push(String("b", "2"))
	assert.Len(t, root.Children(), 1)

	leaf := String("a", "1")
	negated := leaf.Negate()
	assert.False(t, leaf.Negated)
	assert.True(t, negated.Negated)
	assert.False(t, negated.Affirmate().Negated)

	or := leaf.AsOr()
	assert.False(t, leaf.IsOr())
	assert.True(t, or.IsOr())
	assert.False(t, or.AsAnd().IsOr())
}

func TestElementJSONUsesCategoryNames(t *testing.T) {
	raw, err := json.Marshal(IDString("_id", "1", OID()).AsOr())
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"_id","value":{"category":"ID_STRING","value":"1","attributes":[{"key":"OID","value":"true"}]},"direction":"OR"}`, string(raw))

	var back Element
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, CategoryIDString, back.Category())
	assert.True(t, back.IsOr())
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("COLLECTION")
	require.NoError(t, err)
	assert.Equal(t, CategoryCollection, c)
	assert.True(t, c.IsStructural())

	_, err = ParseCategory("TREE")
	assert.Error(t, err)
}
