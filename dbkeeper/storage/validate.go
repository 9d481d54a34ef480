package storage

import (
	"strings"

	"github.com/xeipuuv/gojsonschema"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
)

// FieldsSchema derives a JSON Schema document that accepts exactly the
// field lists allowed by def: one of the defined codes per item, and for
// each code only its attribute codes with their listed values.
func FieldsSchema(def CollectionDefinition) map[string]any {
	variants := make([]any, 0, len(def.Definition))
	for _, fd := range def.Definition {
		attrs := make([]any, 0, len(fd.Attributes))
		for _, a := range fd.Attributes {
			value := map[string]any{"type": "string"}
			if len(a.Values) > 0 {
				enum := make([]any, 0, len(a.Values))
				for _, v := range a.Values {
					enum = append(enum, v.Value)
				}
				value["enum"] = enum
			}
			attrs = append(attrs, map[string]any{
				"type":     "object",
				"required": []any{"key"},
				"properties": map[string]any{
					"key":   map[string]any{"const": a.Code},
					"value": value,
				},
			})
		}

		attributes := map[string]any{"type": []any{"array", "null"}}
		if len(attrs) > 0 {
			attributes["items"] = map[string]any{"anyOf": attrs}
		} else {
			attributes["maxItems"] = 0
		}

		variants = append(variants, map[string]any{
			"type":     "object",
			"required": []any{"code", "value"},
			"properties": map[string]any{
				"code":       map[string]any{"const": string(fd.Code)},
				"value":      map[string]any{"type": "string", "minLength": 1},
				"attributes": attributes,
			},
		})
	}

	items := map[string]any{"anyOf": variants}
	if len(variants) == 0 {
		items = map[string]any{"not": map[string]any{}}
	}
	return map[string]any{
		"type":  "array",
		"items": items,
	}
}

// ValidateFields checks caller supplied fields against the accepted
// collection definition of a backend.
func ValidateFields(def CollectionDefinition, fields []FieldData) error {
	if fields == nil {
		fields = []FieldData{}
	}
	schema := gojsonschema.NewGoLoader(FieldsSchema(def))
	doc := gojsonschema.NewGoLoader(fields)

	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		return dkerrors.Wrap(dkerrors.ErrValidation, "cannot validate fields", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return dkerrors.New(dkerrors.ErrValidation, strings.Join(msgs, "; "))
}
