package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

const (
	msgIdentifierNotFound = "Identifier not found."
	oidAttribute          = "$oid"
)

// documentKeys extracts the identity of a stored document. ObjectId and
// string identifiers are supported.
func documentKeys(doc bson.Raw) ([]storage.DocumentKey, error) {
	v, err := doc.LookupErr(storage.IdentifierField)
	if err != nil {
		return nil, dkerrors.ConnectError(msgIdentifierNotFound)
	}
	if oid, ok := v.ObjectIDOK(); ok {
		return []storage.DocumentKey{{
			Name:       storage.IdentifierField,
			Value:      oid.Hex(),
			Type:       storage.JSONString,
			Attributes: []storage.KeyAttribute{{Key: oidAttribute, Value: "true"}},
		}}, nil
	}
	if s, ok := v.StringValueOK(); ok {
		return []storage.DocumentKey{{
			Name:  storage.IdentifierField,
			Value: s,
			Type:  storage.JSONString,
		}}, nil
	}
	return nil, dkerrors.ConnectError(msgIdentifierNotFound)
}

func documentData(dataBase, collection string, doc bson.Raw) (storage.DocumentData, error) {
	keys, err := documentKeys(doc)
	if err != nil {
		return storage.DocumentData{}, err
	}
	body, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return storage.DocumentData{}, dkerrors.Connect(err)
	}
	base := keys[0]
	return storage.DocumentData{
		DataBase:   dataBase,
		Collection: collection,
		BaseKey:    &base,
		Keys:       keys,
		Document:   string(body),
	}, nil
}

// parseDocument reads relaxed or canonical Extended JSON.
func parseDocument(value string) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(value), false, &doc); err != nil {
		return nil, dkerrors.InvalidJSON(err)
	}
	return doc, nil
}

// withIdentifier sets _id on doc, replacing an existing value.
func withIdentifier(doc bson.D, id any) bson.D {
	for i := range doc {
		if doc[i].Key == storage.IdentifierField {
			doc[i].Value = id
			return doc
		}
	}
	return append(bson.D{{Key: storage.IdentifierField, Value: id}}, doc...)
}
