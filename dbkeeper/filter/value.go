package filter

// Value is the category-tagged payload of an Element. Leaves keep their
// literal text, QUERY keeps the raw stage JSON and the structural categories
// keep child elements.
type Value struct {
	Category   Category    `json:"category"`
	Literal    string      `json:"value,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	Children   []Element   `json:"children,omitempty"`
}

func leafValue(category Category, literal string, attrs []Attribute) Value {
	return Value{
		Category:   category,
		Literal:    literal,
		Attributes: cloneAttributes(attrs),
	}
}

func structuralValue(category Category, children []Element) Value {
	return Value{Category: category, Children: children}
}

// Attribute returns the first attribute with the given key.
func (v Value) Attribute(key string) (Attribute, bool) {
	for _, a := range v.Attributes {
		if a.Key == key {
			return a, true
		}
	}
	return Attribute{}, false
}

// HasAttribute reports whether the attribute is present and enabled.
func (v Value) HasAttribute(key string) bool {
	a, ok := v.Attribute(key)
	return ok && a.Enabled()
}

func (v Value) clone() Value {
	out := Value{
		Category:   v.Category,
		Literal:    v.Literal,
		Attributes: cloneAttributes(v.Attributes),
	}
	if len(v.Children) > 0 {
		out.Children = make([]Element, len(v.Children))
		for i, c := range v.Children {
			out.Children[i] = c.clone()
		}
	}
	return out
}

func cloneAttributes(attrs []Attribute) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out
}
