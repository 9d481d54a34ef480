package sqldoc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/filter"
	"github.com/nonibytes/dbkeeper/dbkeeper/planner"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlbuilder"
)

// fakeDialect renders readable expressions so plans can be compared as text.
type fakeDialect struct {
	style sqlbuilder.PlaceholderStyle
}

func (fakeDialect) Backend() storage.Backend { return "fake" }

func (f fakeDialect) Style() sqlbuilder.PlaceholderStyle { return f.style }

func (fakeDialect) Extract(path []string) string { return "x(" + strings.Join(path, ".") + ")" }

func (fakeDialect) ExtractText(path []string) string { return "t(" + strings.Join(path, ".") + ")" }

func (fakeDialect) TypeCheck(path []string, kind JSONKind) string {
	return "is(" + strings.Join(path, ".") + ", " + string(kind) + ")"
}

func (fakeDialect) Literal(b *sqlbuilder.Builder, v any) string { return b.Arg(v) }

func (fakeDialect) Regex(b *sqlbuilder.Builder, subject, pattern string, insensitive bool) string {
	return fmt.Sprintf("re(%s, %s, %t)", subject, b.Arg(pattern), insensitive)
}

func (fakeDialect) Page(limit, offset *int64) string { return PageClause(limit, offset, false) }

func (fakeDialect) DocumentType() string { return "TEXT" }

func (fakeDialect) DocumentParam(b *sqlbuilder.Builder, doc string) string { return b.Arg(doc) }

func (fakeDialect) DocumentColumn() string { return "doc" }

func (fakeDialect) Table(dataBase, collection string) string {
	return sqlbuilder.QuoteIdent(dataBase) + "." + sqlbuilder.QuoteIdent(collection)
}

func (fakeDialect) Index(dataBase, name string) string { return sqlbuilder.QuoteIdent(name) }

func (fakeDialect) DB(context.Context, string) (*sql.DB, error) { return nil, nil }

func (fakeDialect) DataBases(context.Context) ([]string, error) { return nil, nil }

func (fakeDialect) CreateDataBase(context.Context, string) error { return nil }

func (fakeDialect) DropDataBase(context.Context, string) error { return nil }

func (fakeDialect) Tables(context.Context, string) ([]string, error) { return nil, nil }

func (fakeDialect) Indexes(context.Context, string, string) ([]IndexInfo, error) { return nil, nil }

func (fakeDialect) TableSize(context.Context, string, string) (int64, error) { return 0, nil }

func (fakeDialect) Server(context.Context) ([]storage.TableDataGroup, error) { return nil, nil }

func (fakeDialect) Close() error { return nil }

func translate(t *testing.T, stages ...bson.D) (*Plan, []any) {
	t.Helper()
	b := sqlbuilder.New(sqlbuilder.PlaceholderQuestion)
	plan, err := Translate(fakeDialect{}, b, stages)
	require.NoError(t, err)
	return plan, b.Args()
}

func stage(key string, value any) bson.D {
	return bson.D{{Key: key, Value: value}}
}

func TestTranslateEquality(t *testing.T) {
	plan, args := translate(t, stage(planner.StageMatch, bson.D{{Key: "a.b", Value: "x"}}))
	assert.Equal(t, " WHERE x(a.b) = ?", plan.WhereClause())
	assert.Equal(t, []any{"x"}, args)
}

func TestTranslateNormalisesScalars(t *testing.T) {
	oid := primitive.NewObjectID()
	_, args := translate(t, stage(planner.StageMatch, bson.D{
		{Key: "n", Value: int32(7)},
		{Key: "o", Value: oid},
		{Key: "b", Value: true},
	}))
	assert.Equal(t, []any{int64(7), oid.Hex(), true}, args)
}

func TestTranslateDerivedRegex(t *testing.T) {
	plan, args := translate(t,
		stage(planner.StageAddFields, bson.D{{Key: "_id_str", Value: bson.D{{Key: planner.OpToString, Value: "$_id"}}}}),
		stage(planner.StageMatch, bson.D{{Key: "_id_str", Value: bson.D{{Key: "$regex", Value: "^ab"}, {Key: "$options", Value: "i"}}}}),
		stage(planner.StageProject, bson.D{{Key: "_id_str", Value: 0}}),
	)
	assert.Equal(t, []string{"re(id, ?, true)"}, plan.Where)
	assert.Equal(t, []any{"^ab"}, args)
}

func TestTranslateDerivedEqualityBindsText(t *testing.T) {
	plan, args := translate(t,
		stage(planner.StageAddFields, bson.D{{Key: "n_str", Value: bson.D{{Key: planner.OpToString, Value: "$n"}}}}),
		stage(planner.StageMatch, bson.D{{Key: "n_str", Value: int64(12)}}),
	)
	assert.Equal(t, []string{"t(n) = ?"}, plan.Where)
	assert.Equal(t, []any{"12"}, args)
}

func TestTranslateIdentifierUsesIDColumn(t *testing.T) {
	oid := primitive.NewObjectID()
	plan, args := translate(t, stage(planner.StageMatch, bson.D{
		{Key: planner.OpOr, Value: bson.A{
			bson.D{{Key: "_id", Value: oid}},
			bson.D{{Key: "_id", Value: int64(42)}},
		}},
	}))
	assert.Equal(t, []string{"(id = ? OR id = ?)"}, plan.Where)
	assert.Equal(t, []any{oid.Hex(), "42"}, args)
}

func TestTranslateNegatedRegex(t *testing.T) {
	plan, _ := translate(t, stage(planner.StageMatch, bson.D{
		{Key: "name", Value: bson.D{{Key: planner.OpNot, Value: bson.D{{Key: planner.OpRegex, Value: "bo"}}}}},
	}))
	assert.Equal(t, []string{"NOT COALESCE((is(name, string) AND re(t(name), ?, false)), FALSE)"}, plan.Where)
}

func TestTranslateLogical(t *testing.T) {
	plan, args := translate(t, stage(planner.StageMatch, bson.D{
		{Key: planner.OpOr, Value: bson.A{
			bson.D{{Key: "a", Value: int64(1)}},
			bson.D{{Key: "b", Value: true}},
		}},
		{Key: "c", Value: bson.D{{Key: "$ne", Value: "z"}}},
	}))
	assert.Equal(t, []string{"(((is(a, number) AND x(a) = ?) OR (is(b, boolean) AND x(b) = ?)) AND (x(c) IS NULL OR x(c) <> ?))"}, plan.Where)
	assert.Equal(t, []any{int64(1), true, "z"}, args)
}

func TestTranslateChecksStoredType(t *testing.T) {
	plan, args := translate(t, stage(planner.StageMatch, bson.D{
		{Key: "admin", Value: bson.D{{Key: "$ne", Value: true}}},
		{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(3)}}},
		{Key: "code", Value: primitive.Regex{Pattern: "^1"}},
	}))
	assert.Equal(t, []string{"((x(admin) IS NULL OR NOT (is(admin, boolean)) OR x(admin) <> ?) AND " +
		"(is(age, number) AND x(age) > ?) AND " +
		"(is(code, string) AND re(t(code), ?, false)))"}, plan.Where)
	assert.Equal(t, []any{true, int64(3), "^1"}, args)
}

func TestTranslateInGroupsByKind(t *testing.T) {
	plan, args := translate(t, stage(planner.StageMatch, bson.D{
		{Key: "a", Value: bson.D{{Key: "$in", Value: bson.A{"x", int64(1), "y", true}}}},
		{Key: "b", Value: bson.D{{Key: "$nin", Value: bson.A{int64(2)}}}},
		{Key: "_id", Value: bson.D{{Key: "$in", Value: bson.A{"k", int64(3)}}}},
	}))
	assert.Equal(t, []string{"((x(a) IN (?, ?) OR (is(a, number) AND x(a) IN (?)) OR (is(a, boolean) AND x(a) IN (?))) AND " +
		"NOT COALESCE((is(b, number) AND x(b) IN (?)), FALSE) AND " +
		"id IN (?, ?))"}, plan.Where)
	assert.Equal(t, []any{"x", "y", int64(1), true, int64(2), "k", "3"}, args)
}

func TestTranslateNor(t *testing.T) {
	plan, _ := translate(t, stage(planner.StageMatch, bson.D{
		{Key: "$nor", Value: bson.A{bson.D{{Key: "a", Value: "x"}}}},
	}))
	assert.Equal(t, []string{"NOT COALESCE((x(a) = ?), FALSE)"}, plan.Where)
}

func TestTranslateIn(t *testing.T) {
	plan, args := translate(t, stage(planner.StageMatch, bson.D{
		{Key: "a", Value: bson.D{{Key: "$in", Value: bson.A{"x", "y"}}}},
		{Key: "b", Value: bson.D{{Key: "$in", Value: bson.A{}}}},
	}))
	assert.Equal(t, []string{"(x(a) IN (?, ?) AND FALSE)"}, plan.Where)
	assert.Equal(t, []any{"x", "y"}, args)
}

func TestTranslateNullAndExists(t *testing.T) {
	plan, args := translate(t, stage(planner.StageMatch, bson.D{
		{Key: "a", Value: nil},
		{Key: "b", Value: bson.D{{Key: "$exists", Value: true}}},
	}))
	assert.Equal(t, []string{"(x(a) IS NULL AND x(b) IS NOT NULL)"}, plan.Where)
	assert.Empty(t, args)
}

func TestTranslateSort(t *testing.T) {
	plan, _ := translate(t, stage("$sort", bson.D{{Key: "a", Value: int32(1)}, {Key: "b", Value: int32(-1)}}))
	assert.Equal(t, " ORDER BY x(a) ASC, x(b) DESC", plan.OrderClause())
}

func TestTranslatePaging(t *testing.T) {
	plan, _ := translate(t, stage(planner.StageSkip, int64(5)), stage(planner.StageLimit, int64(10)))
	require.NotNil(t, plan.Limit)
	require.NotNil(t, plan.Offset)
	assert.Equal(t, int64(10), *plan.Limit)
	assert.Equal(t, int64(5), *plan.Offset)

	plan, _ = translate(t, stage(planner.StageLimit, int64(10)), stage(planner.StageSkip, int64(3)))
	assert.Equal(t, int64(7), *plan.Limit)
	assert.Equal(t, int64(3), *plan.Offset)
}

func TestTranslateRejects(t *testing.T) {
	cases := map[string][]bson.D{
		"match after limit": {stage(planner.StageLimit, int64(1)), stage(planner.StageMatch, bson.D{{Key: "a", Value: "x"}})},
		"unknown stage":     {stage("$group", bson.D{})},
		"regex option":      {stage(planner.StageMatch, bson.D{{Key: "a", Value: primitive.Regex{Pattern: "x", Options: "m"}}})},
		"query operator":    {stage(planner.StageMatch, bson.D{{Key: "$where", Value: "1"}})},
		"negative skip":     {stage(planner.StageSkip, int64(-1))},
		"project include":   {stage(planner.StageProject, bson.D{{Key: "a", Value: 1}})},
		"two operators":     {bson.D{{Key: planner.StageSkip, Value: 1}, {Key: planner.StageLimit, Value: 1}}},
	}
	for name, stages := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Translate(fakeDialect{}, sqlbuilder.New(sqlbuilder.PlaceholderQuestion), stages)
			require.Error(t, err)
			assert.True(t, dkerrors.IsKind(err, dkerrors.ErrUnsupported))
		})
	}
}

func TestTranslateCompiledFilter(t *testing.T) {
	tree := filter.Root().
		Push(filter.IDString("_id", "ab", filter.Regex())).
		Push(filter.String("name", "bob"))
	q := storage.NewDocumentQuery("db", "users").WithFilter(tree).WithPage(2, 5)
	stages, err := storage.BuildPipeline(q)
	require.NoError(t, err)

	b := sqlbuilder.New(sqlbuilder.PlaceholderDollar)
	plan, err := Translate(fakeDialect{style: sqlbuilder.PlaceholderDollar}, b, stages)
	require.NoError(t, err)
	assert.Contains(t, plan.WhereClause(), "re(id, $1, false)")
	assert.Contains(t, plan.WhereClause(), "x(name) = $2")
	assert.Equal(t, []any{"ab", "bob"}, b.Args())
	assert.Equal(t, " LIMIT 5 OFFSET 2", fakeDialect{}.Page(plan.Limit, plan.Offset))
}

func TestPageClause(t *testing.T) {
	five, two := int64(5), int64(2)
	assert.Equal(t, "", PageClause(nil, nil, true))
	assert.Equal(t, " LIMIT 5", PageClause(&five, nil, true))
	assert.Equal(t, " LIMIT -1 OFFSET 2", PageClause(nil, &two, true))
	assert.Equal(t, " OFFSET 2", PageClause(nil, &two, false))
}

func TestIndexStatement(t *testing.T) {
	q := storage.CollectionQuery{DataBase: "db", Collection: "users"}

	stmt, ok := IndexStatement(fakeDialect{}, q, storage.IndexRequest{
		Keys:   []storage.IndexKey{{Field: "profile.name", Direction: -1}},
		Unique: true,
	})
	require.True(t, ok)
	assert.Equal(t, `CREATE UNIQUE INDEX "users_profile_name_-1" ON "db"."users" ((x(profile.name)) DESC)`, stmt)

	_, ok = IndexStatement(fakeDialect{}, q, storage.IndexRequest{Keys: []storage.IndexKey{{Field: "_id", Direction: 1}}})
	assert.False(t, ok)

	stmt, ok = IndexStatement(fakeDialect{}, q, storage.IndexRequest{
		Name: "by_id_age",
		Keys: []storage.IndexKey{{Field: "_id", Direction: 1}, {Field: "age", Direction: 1}},
	})
	require.True(t, ok)
	assert.Equal(t, `CREATE INDEX "by_id_age" ON "db"."users" (id ASC, (x(age)) ASC)`, stmt)
}
