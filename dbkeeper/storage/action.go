package storage

// Action codes, form codes and field codes shared by the backends that
// expose index maintenance.
const (
	ActionIndexesNew    = "INDEXES_NEW"
	FormFields          = "FIELDS"
	FieldField          = "FIELD"
	FieldDirection      = "DIRECTION"
	FormAttributes      = "ATTRIBUTES"
	FieldName           = "NAME"
	FieldUnique         = "UNIQUE"
	ActionIndexesDelete = "INDEXES_DELETE"
	FormIndexed         = "INDEXED"
	FieldIndexedName    = "INDEXED"
)

// Messages returned by action execution.
const (
	MsgIndexesCreated    = "Indexes created successfully."
	MsgIndexesRemoved    = "All indexes removed."
	MsgIndexesPartial    = "Some indexes cannot be removed: \n"
	MsgNoIndexesRemoved  = "No indexes removed."
	MsgActionUnknown     = "Action not recognized."
	MsgFormDataNotFound  = "Form data not found."
	MsgFieldNotSupported = "Field type not supported."
)

type FormDefault struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type FormFieldDefinition struct {
	Order  int           `json:"order"`
	Code   string        `json:"code"`
	Name   string        `json:"name"`
	Key    bool          `json:"sw_key"`
	Values []FormDefault `json:"values"`
}

type ActionFormDefinition struct {
	Code   string                `json:"code"`
	Title  string                `json:"title,omitempty"`
	Vector bool                  `json:"sw_vector"`
	Fields []FormFieldDefinition `json:"fields"`
}

type ActionFormCollection struct {
	Query bool                   `json:"sw_query"`
	Forms []ActionFormDefinition `json:"forms"`
}

// ActionDefinition describes a backend-specific maintenance operation and
// the forms its caller fills in.
type ActionDefinition struct {
	Action string                `json:"action"`
	Title  string                `json:"title"`
	Data   string                `json:"data,omitempty"`
	Form   *ActionFormCollection `json:"form,omitempty"`
}

type FormField struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// ActionForm is one filled form. Vector forms carry several rows.
type ActionForm struct {
	Code   string        `json:"code"`
	Fields [][]FormField `json:"fields"`
}

// FindFields returns every field with the given code across all rows.
func (f ActionForm) FindFields(code string) []FormField {
	var out []FormField
	for _, row := range f.Fields {
		for _, field := range row {
			if field.Code == code {
				out = append(out, field)
			}
		}
	}
	return out
}

// Action is a filled action request.
type Action struct {
	Action string       `json:"action"`
	Forms  []ActionForm `json:"form"`
}

func (a Action) FindForm(code string) (ActionForm, bool) {
	for _, f := range a.Forms {
		if f.Code == code {
			return f, true
		}
	}
	return ActionForm{}, false
}

// FindAction picks a definition by code.
func FindAction(defs []ActionDefinition, code string) *ActionDefinition {
	for i := range defs {
		if defs[i].Action == code {
			d := defs[i]
			return &d
		}
	}
	return nil
}

// IndexActionDefinitions returns the INDEXES_NEW definition plus an
// INDEXES_DELETE definition offering the given index names.
func IndexActionDefinitions(indexNames []string) []ActionDefinition {
	directions := []FormDefault{{Key: "ASC", Value: "1"}, {Key: "DESC", Value: "-1"}}
	booleans := []FormDefault{{Key: "True", Value: "true"}, {Key: "False", Value: "false"}}

	create := ActionDefinition{
		Action: ActionIndexesNew,
		Title:  "New index",
		Form: &ActionFormCollection{
			Forms: []ActionFormDefinition{
				{
					Code:   FormFields,
					Title:  "Fields",
					Vector: true,
					Fields: []FormFieldDefinition{
						{Order: 0, Code: FieldField, Name: "Field"},
						{Order: 1, Code: FieldDirection, Name: "Direction", Values: directions},
					},
				},
				{
					Code:  FormAttributes,
					Title: "Attributes",
					Fields: []FormFieldDefinition{
						{Order: 0, Code: FieldName, Name: "Name"},
						{Order: 1, Code: FieldUnique, Name: "Unique", Values: booleans},
					},
				},
			},
		},
	}

	keys := make([]FormDefault, 0, len(indexNames))
	for _, name := range indexNames {
		keys = append(keys, FormDefault{Key: name, Value: name})
	}
	drop := ActionDefinition{
		Action: ActionIndexesDelete,
		Title:  "Delete indexes",
		Form: &ActionFormCollection{
			Forms: []ActionFormDefinition{{
				Code:   FormIndexed,
				Vector: true,
				Fields: []FormFieldDefinition{
					{Order: 1, Code: FieldIndexedName, Name: "Indexed", Key: true, Values: keys},
				},
			}},
		},
	}
	return []ActionDefinition{create, drop}
}
