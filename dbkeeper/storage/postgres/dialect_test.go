package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/planner"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqldoc"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlbuilder"
)

func TestExpressions(t *testing.T) {
	d := &Dialect{}
	assert.Equal(t, "jsonb_extract_path(doc, 'a', 'b''c')", d.Extract([]string{"a", "b'c"}))
	assert.Equal(t, "jsonb_extract_path_text(doc, 'a')", d.ExtractText([]string{"a"}))
	assert.Equal(t, `"shop"."users"`, d.Table("shop", "users"))
	assert.Equal(t, `"shop"."by_age"`, d.Index("shop", "by_age"))

	assert.Equal(t, "jsonb_typeof(jsonb_extract_path(doc, 'a')) = 'boolean'", d.TypeCheck([]string{"a"}, sqldoc.KindBoolean))

	b := sqlbuilder.New(d.Style())
	assert.Equal(t, "$1::jsonb", d.Literal(b, true))
	assert.Equal(t, "$2::jsonb", d.Literal(b, "x"))
	assert.Equal(t, "id ~* $3::text", d.Regex(b, "id", "^a", true))
	assert.Equal(t, []any{"true", `"x"`, "^a"}, b.Args())
}

func TestTranslatePlan(t *testing.T) {
	d := &Dialect{}
	b := sqlbuilder.New(d.Style())
	plan, err := sqldoc.Translate(d, b, []bson.D{
		{{Key: planner.StageMatch, Value: bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: int64(18)}}}}}},
		{{Key: planner.StageSkip, Value: int64(10)}},
	})
	require.NoError(t, err)
	assert.Equal(t, " WHERE (jsonb_typeof(jsonb_extract_path(doc, 'age')) = 'number' AND jsonb_extract_path(doc, 'age') >= $1::jsonb)",
		plan.WhereClause())
	assert.Equal(t, " OFFSET 10", d.Page(plan.Limit, plan.Offset))
	assert.Equal(t, []any{"18"}, b.Args())
}

func TestIndexStatement(t *testing.T) {
	stmt, ok := sqldoc.IndexStatement(&Dialect{}, storage.CollectionQuery{DataBase: "shop", Collection: "users"},
		storage.IndexRequest{Keys: []storage.IndexKey{{Field: "email", Direction: 1}}, Unique: true})
	require.True(t, ok)
	assert.Equal(t, `CREATE UNIQUE INDEX "users_email_1" ON "shop"."users" ((jsonb_extract_path(doc, 'email')) ASC)`, stmt)
}

func TestSchemaNames(t *testing.T) {
	d := &Dialect{}
	for _, bad := range []string{"", "1shop", "sh-op", `a"b`} {
		_, err := d.DB(t.Context(), bad)
		assert.True(t, dkerrors.IsKind(err, dkerrors.ErrValidation), bad)
	}
	_, err := d.DB(t.Context(), "shop_2")
	assert.NoError(t, err)
}
