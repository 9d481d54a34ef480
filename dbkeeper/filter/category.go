package filter

import "fmt"

// Category tags the payload carried by a Value.
type Category int

const (
	CategoryIDString Category = iota
	CategoryIDNumeric
	CategoryQuery
	CategoryString
	CategoryBoolean
	CategoryNumeric
	CategoryCollection
	CategoryRoot
)

var categoryNames = map[Category]string{
	CategoryIDString:   "ID_STRING",
	CategoryIDNumeric:  "ID_NUMERIC",
	CategoryQuery:      "QUERY",
	CategoryString:     "STRING",
	CategoryBoolean:    "BOOLEAN",
	CategoryNumeric:    "NUMERIC",
	CategoryCollection: "COLLECTION",
	CategoryRoot:       "ROOT",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// IsStructural reports whether the category holds children instead of a literal.
func (c Category) IsStructural() bool {
	return c == CategoryRoot || c == CategoryCollection
}

// IsIdentifier reports whether the category addresses a document identifier.
func (c Category) IsIdentifier() bool {
	return c == CategoryIDString || c == CategoryIDNumeric
}

func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if name == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown filter category: %q", s)
}

func (c Category) MarshalText() ([]byte, error) {
	name, ok := categoryNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown filter category: %d", int(c))
	}
	return []byte(name), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
