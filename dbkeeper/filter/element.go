package filter

import (
	"math/big"
	"strconv"

	"golang.org/x/exp/constraints"
)

// Direction decides which bucket of the parent a resolved condition joins.
type Direction int

const (
	And Direction = iota
	Or
)

func (d Direction) String() string {
	if d == Or {
		return "OR"
	}
	return "AND"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	if string(b) == "OR" {
		*d = Or
	} else {
		*d = And
	}
	return nil
}

// Element is one named condition of a filter tree.
//
// Elements are values: every builder method returns a new Element and leaves
// the receiver untouched, so a tree can be shared once built.
type Element struct {
	Key       string    `json:"key,omitempty"`
	Value     Value     `json:"value"`
	Direction Direction `json:"direction"`
	Negated   bool      `json:"negation,omitempty"`
}

// Root returns the empty accumulator callers push conditions onto.
func Root() Element {
	return Element{Value: structuralValue(CategoryRoot, nil)}
}

// IDString builds an identifier leaf compared as text, or as an ObjectId
// when the OID attribute is set.
func IDString(key, value string, attrs ...Attribute) Element {
	return Element{Key: key, Value: leafValue(CategoryIDString, value, attrs)}
}

// IDNumeric builds an identifier leaf holding an integer literal.
func IDNumeric(key, value string, attrs ...Attribute) Element {
	return Element{Key: key, Value: leafValue(CategoryIDNumeric, value, attrs)}
}

// String builds a text leaf; with Regex the value is a pattern.
func String(key, value string, attrs ...Attribute) Element {
	return Element{Key: key, Value: leafValue(CategoryString, value, attrs)}
}

// Bool builds a BOOLEAN leaf.
func Bool(key string, value bool, attrs ...Attribute) Element {
	return Element{Key: key, Value: leafValue(CategoryBoolean, strconv.FormatBool(value), attrs)}
}

// Numeric builds a NUMERIC leaf from any integer type.
func Numeric[T constraints.Integer](key string, value T, attrs ...Attribute) Element {
	var literal string
	if value < 0 {
		literal = strconv.FormatInt(int64(value), 10)
	} else {
		literal = strconv.FormatUint(uint64(value), 10)
	}
	return Element{Key: key, Value: leafValue(CategoryNumeric, literal, attrs)}
}

// Int8 builds a NUMERIC leaf.
func Int8(key string, value int8, attrs ...Attribute) Element {
	return Numeric(key, value, attrs...)
}

// Int16 builds a NUMERIC leaf.
func Int16(key string, value int16, attrs ...Attribute) Element {
	return Numeric(key, value, attrs...)
}

// Int32 builds a NUMERIC leaf.
func Int32(key string, value int32, attrs ...Attribute) Element {
	return Numeric(key, value, attrs...)
}

// Int64 builds a NUMERIC leaf.
func Int64(key string, value int64, attrs ...Attribute) Element {
	return Numeric(key, value, attrs...)
}

// BigInt covers literals wider than 64 bits. The compiler still requires the
// value to fit in an int64.
func BigInt(key string, value *big.Int, attrs ...Attribute) Element {
	literal := "0"
	if value != nil {
		literal = value.String()
	}
	return Element{Key: key, Value: leafValue(CategoryNumeric, literal, attrs)}
}

// Query wraps a raw pipeline stage. The text is only validated when compiled.
func Query(raw string, attrs ...Attribute) Element {
	return Element{Value: leafValue(CategoryQuery, raw, attrs)}
}

func (e Element) Category() Category { return e.Value.Category }

func (e Element) IsRoot() bool { return e.Value.Category == CategoryRoot }

func (e Element) IsOr() bool { return e.Direction == Or }

// Children returns a copy of the structural children.
func (e Element) Children() []Element {
	return e.clone().Value.Children
}

// Push merges other into the receiver.
//
// A ROOT other is unwrapped into its children. A ROOT receiver stays ROOT and
// appends the incoming children after its own. Any other receiver becomes the
// second child of a new COLLECTION keyed like the receiver.
func (e Element) Push(other Element) Element {
	if e.IsRoot() {
		children := e.clone().Value.Children
		children = append(children, other.unwrap()...)
		return Element{
			Value:     structuralValue(CategoryRoot, children),
			Direction: e.Direction,
			Negated:   e.Negated,
		}
	}

	first := other.clone()
	if other.IsRoot() {
		first = Element{
			Value:     structuralValue(CategoryCollection, other.unwrap()),
			Direction: other.Direction,
			Negated:   other.Negated,
		}
	}
	return Element{
		Key:   e.Key,
		Value: structuralValue(CategoryCollection, []Element{first, e.clone()}),
	}
}

func (e Element) AsAnd() Element {
	out := e.clone()
	out.Direction = And
	return out
}

func (e Element) AsOr() Element {
	out := e.clone()
	out.Direction = Or
	return out
}

func (e Element) Negate() Element {
	out := e.clone()
	out.Negated = true
	return out
}

func (e Element) Affirmate() Element {
	out := e.clone()
	out.Negated = false
	return out
}

func (e Element) unwrap() []Element {
	if e.IsRoot() {
		return e.clone().Value.Children
	}
	return []Element{e.clone()}
}

func (e Element) clone() Element {
	return Element{
		Key:       e.Key,
		Value:     e.Value.clone(),
		Direction: e.Direction,
		Negated:   e.Negated,
	}
}
