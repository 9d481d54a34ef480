package storage

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
)

const IdentifierField = "_id"

type IndexKey struct {
	Field     string
	Direction int
}

// IndexRequest is a backend-neutral index description.
type IndexRequest struct {
	Keys   []IndexKey
	Name   string
	Unique bool
}

// IndexFromField converts a collection field into an index request. Only
// INDEXED fields are accepted; DIRECTION defaults to 1 and UNIQUE to true,
// except on the identifier field which is never marked unique.
func IndexFromField(f FieldData) (IndexRequest, error) {
	if f.Code != FieldIndexed {
		return IndexRequest{}, dkerrors.Unsupported(MsgFieldNotSupported)
	}

	direction := 1
	if v, ok := f.Attribute(FieldDirection); ok {
		direction = parseDirection(v)
	}
	unique := true
	if v, ok := f.Attribute(FieldUnique); ok {
		unique = parseBoolDefault(v, true)
	}
	if f.Value == IdentifierField {
		unique = false
	}
	return IndexRequest{
		Keys:   []IndexKey{{Field: f.Value, Direction: direction}},
		Unique: unique,
	}, nil
}

func IndexesFromFields(fields []FieldData) ([]IndexRequest, error) {
	out := make([]IndexRequest, 0, len(fields))
	for _, f := range fields {
		req, err := IndexFromField(f)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// ParseIndexRequest reads the FIELDS and ATTRIBUTES forms of an INDEXES_NEW
// action. Rows without a FIELD are skipped.
func ParseIndexRequest(a Action) (IndexRequest, error) {
	fields, ok := a.FindForm(FormFields)
	if !ok {
		return IndexRequest{}, dkerrors.ActionError(MsgFormDataNotFound)
	}

	var req IndexRequest
	for _, row := range fields.Fields {
		var key IndexKey
		found := false
		key.Direction = 1
		for _, f := range row {
			switch f.Code {
			case FieldField:
				key.Field = f.Value
				found = true
			case FieldDirection:
				key.Direction = parseDirection(f.Value)
			}
		}
		if found {
			req.Keys = append(req.Keys, key)
		}
	}

	req.Unique = true
	if attrs, ok := a.FindForm(FormAttributes); ok {
		if names := attrs.FindFields(FieldName); len(names) > 0 {
			req.Name = names[0].Value
		}
		if uniques := attrs.FindFields(FieldUnique); len(uniques) > 0 {
			req.Unique = parseBoolDefault(uniques[0].Value, true)
		}
	}
	return req, nil
}

// ParseIndexDrop returns the index names selected in an INDEXES_DELETE action.
func ParseIndexDrop(a Action) ([]string, error) {
	form, ok := a.FindForm(FormIndexed)
	if !ok {
		return nil, dkerrors.ActionError(MsgFormDataNotFound)
	}
	fields := form.FindFields(FieldIndexedName)
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Value)
	}
	return names, nil
}

// DropMessage summarises an index drop run the way callers display it.
// failed holds one error per index that could not be dropped.
func DropMessage(requested int, failed *multierror.Error) string {
	if failed != nil && len(failed.Errors) > 0 {
		lines := make([]string, 0, len(failed.Errors))
		for _, err := range failed.Errors {
			lines = append(lines, err.Error())
		}
		return MsgIndexesPartial + strings.Join(lines, "\n")
	}
	if requested > 0 {
		return MsgIndexesRemoved
	}
	return MsgNoIndexesRemoved
}

func parseDirection(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 1
	}
	return n
}

func parseBoolDefault(v string, def bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
