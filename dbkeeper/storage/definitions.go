package storage

import "github.com/nonibytes/dbkeeper/dbkeeper/filter"

// IndexedCollectionDefinition is the collection shape shared by backends
// whose only creation-time field is an index: code INDEXED with UNIQUE and
// DIRECTION attributes, and an index on the identifier by default.
func IndexedCollectionDefinition() CollectionDefinition {
	return CollectionDefinition{
		Relational: false,
		Definition: []FieldDefinition{{
			Order:    0,
			Name:     "Index",
			Code:     FieldIndexed,
			Multiple: true,
			Attributes: []FieldAttributeDefinition{
				{
					Name:   "Unique",
					Code:   FieldUnique,
					Values: []AttributeOption{{Key: "True", Value: "true"}, {Key: "False", Value: "false"}},
				},
				{
					Name:   "Direction",
					Code:   FieldDirection,
					Values: []AttributeOption{{Key: "ASC", Value: "1"}, {Key: "DESC", Value: "-1"}},
				},
			},
		}},
		Defaults: []FieldData{{
			Order: 0,
			Code:  FieldIndexed,
			Value: IdentifierField,
			Attributes: []FieldAttribute{
				{Key: FieldUnique, Value: "true"},
				{Key: FieldDirection, Value: "1"},
			},
		}},
	}
}

func oidAttributeDefinition() FilterAttributeDefinition {
	return FilterAttributeDefinition{
		Code:        filter.AttrOID,
		Name:        "ObjectId",
		Description: "Compare identifiers as native ObjectIds when the value is a valid hex id.",
		Values: []FilterAttributeOption{
			{Key: "True", Value: "true", Default: false},
			{Key: "False", Value: "false", Default: true},
		},
		Applies: []filter.Category{filter.CategoryIDString, filter.CategoryIDNumeric},
	}
}

func regexAttributeDefinition() FilterAttributeDefinition {
	return FilterAttributeDefinition{
		Code:        filter.AttrRegex,
		Name:        "Regex",
		Description: "Match the value as a regular expression.",
		Values: []FilterAttributeOption{
			{Key: "True", Value: "true", Default: false},
			{Key: "False", Value: "false", Default: true},
		},
		Applies: []filter.Category{filter.CategoryIDString, filter.CategoryIDNumeric, filter.CategoryString},
	}
}

// FilterDefinitionFor lists the leaf attributes a backend honours. Only
// backends with native object identifiers understand OID.
func FilterDefinitionFor(objectIDs bool) FilterDefinition {
	var def FilterDefinition
	if objectIDs {
		def.Attributes = append(def.Attributes, oidAttributeDefinition())
	}
	def.Attributes = append(def.Attributes, regexAttributeDefinition())
	return def
}
