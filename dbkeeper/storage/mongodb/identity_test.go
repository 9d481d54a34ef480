package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/filter"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

func marshal(t *testing.T, d bson.D) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(d)
	require.NoError(t, err)
	return raw
}

func TestDocumentKeysObjectID(t *testing.T) {
	oid, err := primitive.ObjectIDFromHex("65f0a1b2c3d4e5f601234567")
	require.NoError(t, err)

	keys, err := documentKeys(marshal(t, bson.D{{Key: "_id", Value: oid}, {Key: "name", Value: "bob"}}))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "_id", keys[0].Name)
	assert.Equal(t, "65f0a1b2c3d4e5f601234567", keys[0].Value)
	assert.Equal(t, storage.JSONString, keys[0].Type)
	assert.Equal(t, []storage.KeyAttribute{{Key: "$oid", Value: "true"}}, keys[0].Attributes)

	// the key addresses the document again through the OID attribute
	assert.True(t, keys[0].Filter().Value.HasAttribute(filter.AttrOID))
}

func TestDocumentKeysString(t *testing.T) {
	keys, err := documentKeys(marshal(t, bson.D{{Key: "_id", Value: "user-1"}}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", keys[0].Value)
	assert.Empty(t, keys[0].Attributes)
}

func TestDocumentKeysMissingOrUnsupported(t *testing.T) {
	_, err := documentKeys(marshal(t, bson.D{{Key: "name", Value: "bob"}}))
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrConnect))
	assert.Contains(t, err.Error(), msgIdentifierNotFound)

	_, err = documentKeys(marshal(t, bson.D{{Key: "_id", Value: int32(7)}}))
	assert.Error(t, err)
}

func TestDocumentData(t *testing.T) {
	data, err := documentData("db", "users", marshal(t, bson.D{{Key: "_id", Value: "u1"}, {Key: "age", Value: int32(3)}}))
	require.NoError(t, err)
	assert.Equal(t, "db", data.DataBase)
	assert.Equal(t, "users", data.Collection)
	require.NotNil(t, data.BaseKey)
	assert.Equal(t, "u1", data.BaseKey.Value)
	assert.JSONEq(t, `{"_id":"u1","age":3}`, data.Document)
}

func TestParseDocument(t *testing.T) {
	doc, err := parseDocument(`{"_id": {"$oid": "65f0a1b2c3d4e5f601234567"}, "n": 1}`)
	require.NoError(t, err)
	require.Len(t, doc, 2)
	_, isOID := doc[0].Value.(primitive.ObjectID)
	assert.True(t, isOID)

	_, err = parseDocument(`{"broken"`)
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrInvalidJSON))
}

func TestWithIdentifier(t *testing.T) {
	doc := withIdentifier(bson.D{{Key: "name", Value: "bob"}}, "x")
	assert.Equal(t, bson.D{{Key: "_id", Value: "x"}, {Key: "name", Value: "bob"}}, doc)

	doc = withIdentifier(bson.D{{Key: "name", Value: "bob"}, {Key: "_id", Value: "old"}}, "new")
	assert.Equal(t, bson.D{{Key: "name", Value: "bob"}, {Key: "_id", Value: "new"}}, doc)
}
