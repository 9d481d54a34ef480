package filter

import "strconv"

// Recognised attribute keys. Backends may define more; the compiler ignores
// keys it does not know.
const (
	AttrOID   = "OID"
	AttrRegex = "REGEX"
)

// Attribute is a key/value modifier attached to a leaf value.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewAttribute(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// OID marks an identifier literal as a native object id.
func OID() Attribute {
	return Attribute{Key: AttrOID, Value: "true"}
}

// Regex marks a literal as a pattern.
func Regex() Attribute {
	return Attribute{Key: AttrRegex, Value: "true"}
}

// Enabled reports whether the attribute value reads as boolean true.
func (a Attribute) Enabled() bool {
	on, err := strconv.ParseBool(a.Value)
	return err == nil && on
}
