package storage

import (
	"github.com/nonibytes/dbkeeper/dbkeeper/filter"
)

type Backend string

const (
	BackendMongoDB  Backend = "mongodb"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// JSONType tags the JSON kind of an extracted value.
type JSONType string

const (
	JSONString  JSONType = "STRING"
	JSONBoolean JSONType = "BOOLEAN"
	JSONNumeric JSONType = "NUMERIC"
)

type KeyAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DocumentKey is one identity component of a stored document.
type DocumentKey struct {
	Name       string         `json:"name"`
	Value      string         `json:"value"`
	Type       JSONType       `json:"jtype"`
	Attributes []KeyAttribute `json:"attributes,omitempty"`
}

// Filter returns the identifier leaf that addresses this key again.
func (k DocumentKey) Filter() filter.Element {
	var attrs []filter.Attribute
	for _, a := range k.Attributes {
		if a.Key == "$oid" {
			attrs = append(attrs, filter.NewAttribute(filter.AttrOID, a.Value))
		}
	}
	if k.Type == JSONNumeric {
		return filter.IDNumeric(k.Name, k.Value, attrs...)
	}
	return filter.IDString(k.Name, k.Value, attrs...)
}

type DocumentData struct {
	DataBase   string        `json:"data_base"`
	Collection string        `json:"collection"`
	BaseKey    *DocumentKey  `json:"base_key,omitempty"`
	Keys       []DocumentKey `json:"keys"`
	Document   string        `json:"document,omitempty"`
}

// Lite drops the document body and keeps the identity.
func (d DocumentData) Lite() DocumentData {
	d.Document = ""
	return d
}

// Chain renders the document keys as an identifier chain.
func (d DocumentData) Chain() string {
	pairs := make([][2]string, 0, len(d.Keys))
	for _, k := range d.Keys {
		pairs = append(pairs, [2]string{k.Name, k.Value})
	}
	return filter.IDChain(pairs...)
}

// Filter addresses this exact document.
func (d DocumentData) Filter() filter.Element {
	root := filter.Root()
	for _, k := range d.Keys {
		root = root.Push(k.Filter())
	}
	return root
}

type CollectionData struct {
	Total     uint64         `json:"total"`
	Limit     *uint64        `json:"limit,omitempty"`
	Offset    *uint64        `json:"offset,omitempty"`
	Documents []DocumentData `json:"documents"`
}

func (c CollectionData) Lite() CollectionData {
	docs := make([]DocumentData, len(c.Documents))
	for i, d := range c.Documents {
		docs[i] = d.Lite()
	}
	c.Documents = docs
	return c
}

type DocumentSchema struct {
	Comments []string    `json:"comments"`
	Fields   []FieldData `json:"fields"`
}

type FieldCode string

const FieldIndexed FieldCode = "INDEXED"

type FieldAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FieldData describes one field requested at collection creation.
type FieldData struct {
	Order      int              `json:"order"`
	Code       FieldCode        `json:"code"`
	Value      string           `json:"value"`
	Sizable    bool             `json:"swsize"`
	Size       int              `json:"size"`
	Mutable    bool             `json:"mutable"`
	Attributes []FieldAttribute `json:"attributes"`
}

func (f FieldData) Attribute(key string) (string, bool) {
	for _, a := range f.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

type AttributeOption struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type FieldAttributeDefinition struct {
	Name   string            `json:"name"`
	Code   string            `json:"code"`
	Values []AttributeOption `json:"values"`
}

type FieldDefinition struct {
	Order      int                        `json:"order"`
	Name       string                     `json:"name"`
	Code       FieldCode                  `json:"code"`
	Sizable    bool                       `json:"swsize"`
	Multiple   bool                       `json:"multiple"`
	Attributes []FieldAttributeDefinition `json:"attributes"`
}

// CollectionDefinition is the shape callers must satisfy to create a collection.
type CollectionDefinition struct {
	Relational bool              `json:"swrelational"`
	Definition []FieldDefinition `json:"definition"`
	Defaults   []FieldData       `json:"defaults"`
}

type TableDataField struct {
	Order int      `json:"order"`
	Name  string   `json:"name"`
	Value string   `json:"value"`
	Type  JSONType `json:"json_type"`
}

// TableDataGroup is a named list of metadata values.
type TableDataGroup struct {
	Order  int              `json:"order"`
	Name   string           `json:"name"`
	Fields []TableDataField `json:"fields"`
}

func NewTableDataGroup(order int, name string) *TableDataGroup {
	return &TableDataGroup{Order: order, Name: name}
}

func (g *TableDataGroup) Push(name, value string) {
	g.PushTyped(name, value, JSONString)
}

func (g *TableDataGroup) PushTyped(name, value string, jtype JSONType) {
	g.Fields = append(g.Fields, TableDataField{
		Order: len(g.Fields),
		Name:  name,
		Value: value,
		Type:  jtype,
	})
}

// Get returns the value of the named field.
func (g TableDataGroup) Get(name string) (string, bool) {
	for _, f := range g.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

type TableFieldDefinition struct {
	Data  string `json:"data"`
	Title bool   `json:"sw_title"`
}

type TableRowDefinition struct {
	Fields []TableFieldDefinition `json:"fields"`
}

func (r *TableRowDefinition) PushTitle(data string) {
	r.Fields = append(r.Fields, TableFieldDefinition{Data: data, Title: true})
}

func (r *TableRowDefinition) Push(data string) {
	r.Fields = append(r.Fields, TableFieldDefinition{Data: data})
}

type TableDefinition struct {
	Title string               `json:"title"`
	Rows  []TableRowDefinition `json:"rows"`
}

type FilterAttributeOption struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Default bool   `json:"default"`
}

type FilterAttributeDefinition struct {
	Code        string                  `json:"code"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Values      []FilterAttributeOption `json:"values"`
	Applies     []filter.Category       `json:"applies"`
}

// FilterDefinition lists the leaf attributes a backend understands.
type FilterDefinition struct {
	Attributes []FilterAttributeDefinition `json:"attributes"`
}
