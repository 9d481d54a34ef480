package planner

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/filter"
)

func match(d bson.D) bson.D {
	return bson.D{{Key: StageMatch, Value: d}}
}

func cond(field string, value any) bson.D {
	return bson.D{{Key: field, Value: value}}
}

func mustCompile(t *testing.T, el filter.Element) []bson.D {
	t.Helper()
	stages, err := Compile(el)
	require.NoError(t, err)
	return stages
}

func TestCompileEmptyRoot(t *testing.T) {
	assert.Empty(t, mustCompile(t, filter.Root()))
}

func TestCompileIsDeterministic(t *testing.T) {
	tree := filter.Root().
		Push(filter.IDString("_id", "0001", filter.Regex())).
		Push(filter.String("name", "bob").AsOr()).
		Push(filter.Query(`{"$sort": {"name": 1}}`))

	first, err := StagesJSON(mustCompile(t, tree))
	require.NoError(t, err)
	second, err := StagesJSON(mustCompile(t, tree))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompileAndOfPushedLeaves(t *testing.T) {
	tree := filter.Root().Push(filter.IDString("a", "1")).Push(filter.Bool("b", true))

	want := []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{cond("a", "1"), cond("b", true)}}}),
	}
	assert.Equal(t, want, mustCompile(t, tree))
}

func TestCompileOrLeaves(t *testing.T) {
	tree := filter.Root().
		Push(filter.String("a", "1").AsOr()).
		Push(filter.String("b", "2").AsOr()).
		Push(filter.Int32("c", 3))

	want := []bson.D{
		match(bson.D{
			{Key: OpAnd, Value: bson.A{cond("c", int64(3))}},
			{Key: OpOr, Value: bson.A{cond("a", "1"), cond("b", "2")}},
		}),
	}
	assert.Equal(t, want, mustCompile(t, tree))
}

func TestCompileCollectionAsOr(t *testing.T) {
	group := filter.String("a", "1").Push(filter.String("b", "2"))

	asAnd := mustCompile(t, filter.Root().Push(group))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{
			bson.D{{Key: OpAnd, Value: bson.A{cond("b", "2"), cond("a", "1")}}},
		}}}),
	}, asAnd)

	asOr := mustCompile(t, filter.Root().Push(group.AsOr()))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpOr, Value: bson.A{
			bson.D{{Key: OpAnd, Value: bson.A{cond("b", "2"), cond("a", "1")}}},
		}}}),
	}, asOr)
}

func TestCompileNegation(t *testing.T) {
	leaf := filter.String("a", "1").Negate()
	stages := mustCompile(t, filter.Root().Push(leaf))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{
			cond("a", bson.D{{Key: OpNot, Value: bson.D{{Key: OpEq, Value: "1"}}}}),
		}}}),
	}, stages)

	stages = mustCompile(t, filter.Root().Push(leaf.Affirmate()))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{cond("a", "1")}}}),
	}, stages)
}

func TestCompileNegatedRegexUsesNotRegex(t *testing.T) {
	leaf := filter.String("name", "^bo", filter.Regex()).Negate()
	stages := mustCompile(t, filter.Root().Push(leaf))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{
			cond("name", bson.D{{Key: OpNot, Value: bson.D{{Key: OpRegex, Value: "^bo"}}}}),
		}}}),
	}, stages)
}

func TestCompileObjectID(t *testing.T) {
	const hex = "507f1f77bcf86cd799439011"
	oid, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)

	stages := mustCompile(t, filter.Root().Push(filter.IDString("_id", hex, filter.OID())))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{cond("_id", oid)}}}),
	}, stages)

	stages = mustCompile(t, filter.Root().Push(filter.IDString("_id", "legacy-key", filter.OID())))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{cond("_id", "legacy-key")}}}),
	}, stages)
}

func TestCompileIdentifierRegexAddsDerivedField(t *testing.T) {
	stages := mustCompile(t, filter.Root().Push(filter.IDString("_id", "0001", filter.Regex(), filter.OID())))

	want := []bson.D{
		{{Key: StageAddFields, Value: bson.D{{Key: "_id_str", Value: bson.D{{Key: OpToString, Value: "$_id"}}}}}},
		match(bson.D{{Key: OpAnd, Value: bson.A{cond("_id_str", bson.D{{Key: OpRegex, Value: "0001"}})}}}),
		{{Key: StageProject, Value: bson.D{{Key: "_id_str", Value: 0}}}},
	}
	assert.Equal(t, want, stages)
}

func TestCompileDerivedFieldsAreDeduplicated(t *testing.T) {
	tree := filter.Root().
		Push(filter.IDNumeric("code", "^1", filter.Regex())).
		Push(filter.IDNumeric("code", "9$", filter.Regex()).AsOr())

	stages := mustCompile(t, tree)
	require.Len(t, stages, 3)
	assert.Equal(t, StageAddFields, StageName(stages[0]))
	assert.Len(t, stages[0][0].Value.(bson.D), 1)
	assert.Equal(t, bson.D{{Key: "code_str", Value: 0}}, stages[2][0].Value)
}

func TestCompileRawQueryGoesLast(t *testing.T) {
	raw := filter.Query(`{"$sort": {"name": 1}}`).AsOr().Negate()
	tree := filter.Root().Push(raw).Push(filter.IDString("_id", "x", filter.Regex()))

	stages := mustCompile(t, tree)
	require.Len(t, stages, 4)
	assert.Equal(t, []string{StageAddFields, StageMatch, StageProject, "$sort"},
		[]string{StageName(stages[0]), StageName(stages[1]), StageName(stages[2]), StageName(stages[3])})

	rendered, err := StagesJSON(stages[3:])
	require.NoError(t, err)
	assert.JSONEq(t, `{"$sort": {"name": 1}}`, rendered[0])
}

func TestCompileIDChainCollection(t *testing.T) {
	stages := mustCompile(t, filter.FromIDChainCollection([]string{"a=1#b=2", "c=3"}))

	want := []bson.D{
		match(bson.D{{Key: OpOr, Value: bson.A{
			bson.D{{Key: OpAnd, Value: bson.A{cond("a", "1"), cond("b", "2")}}},
			bson.D{{Key: OpAnd, Value: bson.A{cond("c", "3")}}},
		}}}),
	}
	assert.Equal(t, want, stages)
}

func TestCompileIDChain(t *testing.T) {
	stages := mustCompile(t, filter.Root().Push(filter.FromIDChain("a=1#b=2")))
	want := []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{
			bson.D{{Key: OpAnd, Value: bson.A{cond("a", "1"), cond("b", "2")}}},
		}}}),
	}
	assert.Equal(t, want, stages)

	assert.Empty(t, mustCompile(t, filter.Root().Push(filter.FromIDChain("broken"))))
}

func TestCompileIgnoresUnknownAttributes(t *testing.T) {
	stages := mustCompile(t, filter.Root().Push(filter.String("a", "1", filter.NewAttribute("COLLATE", "en"))))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{cond("a", "1")}}}),
	}, stages)
}

func TestCompileMalformedQuery(t *testing.T) {
	_, err := Compile(filter.Root().Push(filter.Query("{not json")))
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrCompile))
	assert.Contains(t, err.Error(), "compile: invalid raw query stage: ")
}

func TestCompileLiteralParseFailures(t *testing.T) {
	badBool := filter.Element{Key: "flag", Value: filter.Value{Category: filter.CategoryBoolean, Literal: "maybe"}}
	_, err := Compile(filter.Root().Push(badBool))
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrCompile))

	huge, ok := new(big.Int).SetString("170141183460469231731687303715884105727", 10)
	require.True(t, ok)
	_, err = Compile(filter.Root().Push(filter.BigInt("n", huge)))
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrCompile))

	_, err = Compile(filter.Root().Push(filter.IDNumeric("code", "12a")))
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrCompile))
}

func TestCompileNumericIdentifier(t *testing.T) {
	stages := mustCompile(t, filter.Root().Push(filter.IDNumeric("code", "42")))
	assert.Equal(t, []bson.D{
		match(bson.D{{Key: OpAnd, Value: bson.A{cond("code", int64(42))}}}),
	}, stages)
}

func TestCompileExplainSteps(t *testing.T) {
	out, err := CompileExplain(filter.FromIDChainCollection([]string{"a=1"}))
	require.NoError(t, err)
	assert.Len(t, out.ExplainSteps, 2)
}
