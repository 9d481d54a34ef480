package sqldoc

import (
	"strconv"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

const msgIdentifierNotFound = "Identifier not found."

func parseDocument(text string) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &doc); err != nil {
		return nil, dkerrors.InvalidJSON(err)
	}
	return doc, nil
}

func lookupIdentifier(doc bson.D) (any, bool) {
	for _, e := range doc {
		if e.Key == storage.IdentifierField {
			return e.Value, true
		}
	}
	return nil, false
}

// ensureIdentifier returns doc with an _id, taking fallback or a fresh
// UUID when the document has none.
func ensureIdentifier(doc bson.D, fallback any) bson.D {
	if _, ok := lookupIdentifier(doc); ok {
		return doc
	}
	if fallback == nil {
		fallback = uuid.NewString()
	}
	return append(bson.D{{Key: storage.IdentifierField, Value: fallback}}, doc...)
}

// identifierText renders an _id value for the id column.
func identifierText(v any) (string, storage.JSONType, error) {
	switch x := v.(type) {
	case string:
		return x, storage.JSONString, nil
	case int32:
		return strconv.FormatInt(int64(x), 10), storage.JSONNumeric, nil
	case int64:
		return strconv.FormatInt(x, 10), storage.JSONNumeric, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), storage.JSONNumeric, nil
	case primitive.ObjectID:
		return x.Hex(), storage.JSONString, nil
	default:
		return "", "", dkerrors.ConnectError(msgIdentifierNotFound)
	}
}

// storedDocument is a parsed document ready for the id and doc columns.
type storedDocument struct {
	doc  bson.D
	id   string
	body string
}

func prepare(doc bson.D, fallbackID any) (storedDocument, error) {
	doc = ensureIdentifier(doc, fallbackID)
	idValue, _ := lookupIdentifier(doc)
	id, _, err := identifierText(idValue)
	if err != nil {
		return storedDocument{}, err
	}
	body, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return storedDocument{}, dkerrors.InvalidJSON(err)
	}
	return storedDocument{doc: doc, id: id, body: string(body)}, nil
}

func documentData(dataBase, collection string, doc bson.D, body string) (storage.DocumentData, error) {
	idValue, ok := lookupIdentifier(doc)
	if !ok {
		return storage.DocumentData{}, dkerrors.ConnectError(msgIdentifierNotFound)
	}
	id, jtype, err := identifierText(idValue)
	if err != nil {
		return storage.DocumentData{}, err
	}
	key := storage.DocumentKey{Name: storage.IdentifierField, Value: id, Type: jtype}
	return storage.DocumentData{
		DataBase:   dataBase,
		Collection: collection,
		BaseKey:    &key,
		Keys:       []storage.DocumentKey{key},
		Document:   body,
	}, nil
}
