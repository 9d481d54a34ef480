package planner

import (
	"fmt"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/filter"
)

// Pipeline stage and operator names emitted by the compiler.
const (
	StageAddFields = "$addFields"
	StageMatch     = "$match"
	StageProject   = "$project"
	StageSkip      = "$skip"
	StageLimit     = "$limit"

	OpAnd      = "$and"
	OpOr       = "$or"
	OpNot      = "$not"
	OpEq       = "$eq"
	OpRegex    = "$regex"
	OpToString = "$toString"

	derivedSuffix = "_str"
)

// buckets collects resolved conditions of one grouping level.
type buckets struct {
	and bson.A
	or  bson.A
}

func (b *buckets) add(dir filter.Direction, cond any) {
	if dir == filter.Or {
		b.or = append(b.or, cond)
	} else {
		b.and = append(b.and, cond)
	}
}

func (b *buckets) empty() bool {
	return len(b.and) == 0 && len(b.or) == 0
}

// doc renders the non-empty buckets as {"$and": [...], "$or": [...]}.
func (b *buckets) doc() bson.D {
	var d bson.D
	if len(b.and) > 0 {
		d = append(d, bson.E{Key: OpAnd, Value: b.and})
	}
	if len(b.or) > 0 {
		d = append(d, bson.E{Key: OpOr, Value: b.or})
	}
	return d
}

// Compiler walks one filter tree. It is not reused between trees.
type Compiler struct {
	raw          []bson.D
	derived      bson.D
	derivedSeen  map[string]bool
	explainSteps []string
}

// Compile lowers a filter tree into an ordered list of aggregation stages:
// $addFields, $match, $project and then every raw QUERY stage in encounter
// order. An empty tree yields no stages.
func Compile(root filter.Element) ([]bson.D, error) {
	out, err := CompileExplain(root)
	if err != nil {
		return nil, err
	}
	return out.Stages, nil
}

// CompileOutput is the result of compiling a filter tree.
type CompileOutput struct {
	Stages       []bson.D
	ExplainSteps []string
}

// CompileExplain is Compile plus a readable trace of every resolved node.
func CompileExplain(root filter.Element) (*CompileOutput, error) {
	c := &Compiler{derivedSeen: make(map[string]bool)}

	top := &buckets{}
	if err := c.compileElement(root, top); err != nil {
		return nil, err
	}

	var stages []bson.D
	if len(c.derived) > 0 {
		stages = append(stages, bson.D{{Key: StageAddFields, Value: c.derived}})
	}
	if !top.empty() {
		stages = append(stages, bson.D{{Key: StageMatch, Value: top.doc()}})
	}
	if len(c.derived) > 0 {
		hidden := make(bson.D, 0, len(c.derived))
		for _, f := range c.derived {
			hidden = append(hidden, bson.E{Key: f.Key, Value: 0})
		}
		stages = append(stages, bson.D{{Key: StageProject, Value: hidden}})
	}
	stages = append(stages, c.raw...)

	return &CompileOutput{Stages: stages, ExplainSteps: c.explainSteps}, nil
}

func (c *Compiler) compileElement(el filter.Element, into *buckets) error {
	switch el.Value.Category {
	case filter.CategoryRoot:
		for _, child := range el.Value.Children {
			if err := c.compileElement(child, into); err != nil {
				return err
			}
		}
		return nil

	case filter.CategoryCollection:
		inner := &buckets{}
		for _, child := range el.Value.Children {
			if err := c.compileElement(child, inner); err != nil {
				return err
			}
		}
		if inner.empty() {
			return nil
		}
		into.add(el.Direction, inner.doc())
		c.explainSteps = append(c.explainSteps, fmt.Sprintf("GROUP %s (%d and, %d or)", el.Direction, len(inner.and), len(inner.or)))
		return nil

	case filter.CategoryQuery:
		var stage bson.D
		if err := bson.UnmarshalExtJSON([]byte(el.Value.Literal), false, &stage); err != nil {
			return dkerrors.Wrap(dkerrors.ErrCompile, "invalid raw query stage", err)
		}
		c.raw = append(c.raw, stage)
		c.explainSteps = append(c.explainSteps, "RAW "+el.Value.Literal)
		return nil

	case filter.CategoryIDString, filter.CategoryIDNumeric, filter.CategoryString,
		filter.CategoryBoolean, filter.CategoryNumeric:
		field, value, err := c.resolveLeaf(el)
		if err != nil {
			return err
		}
		if el.Negated {
			value = negate(value)
		}
		into.add(el.Direction, bson.D{{Key: field, Value: value}})
		c.explainSteps = append(c.explainSteps, fmt.Sprintf("%s %s %s=%q negated=%t", el.Direction, el.Value.Category, field, el.Value.Literal, el.Negated))
		return nil

	default:
		return dkerrors.CompileError(el.Key, fmt.Sprintf("unknown filter category: %s", el.Value.Category))
	}
}

// resolveLeaf turns a leaf literal into the condition field and its native value.
func (c *Compiler) resolveLeaf(el filter.Element) (string, any, error) {
	field := el.Key
	literal := el.Value.Literal

	switch el.Value.Category {
	case filter.CategoryIDString, filter.CategoryIDNumeric:
		if el.Value.HasAttribute(filter.AttrRegex) {
			derived := c.registerDerived(field)
			return derived, regex(literal), nil
		}
		if el.Value.HasAttribute(filter.AttrOID) {
			if oid, err := primitive.ObjectIDFromHex(literal); err == nil {
				return field, oid, nil
			}
			return field, literal, nil
		}
		if el.Value.Category == filter.CategoryIDNumeric {
			n, err := parseInt(field, literal)
			if err != nil {
				return "", nil, err
			}
			return field, n, nil
		}
		return field, literal, nil

	case filter.CategoryString:
		if el.Value.HasAttribute(filter.AttrRegex) {
			return field, regex(literal), nil
		}
		return field, literal, nil

	case filter.CategoryBoolean:
		b, err := strconv.ParseBool(literal)
		if err != nil {
			return "", nil, dkerrors.CompileError(field, fmt.Sprintf("invalid boolean literal %q", literal))
		}
		return field, b, nil

	case filter.CategoryNumeric:
		n, err := parseInt(field, literal)
		if err != nil {
			return "", nil, err
		}
		return field, n, nil
	}
	return "", nil, dkerrors.CompileError(field, fmt.Sprintf("category %s is not a leaf", el.Value.Category))
}

// registerDerived adds "<field>_str" as a stringified copy of field and
// returns its name. Registering the same field twice is a no-op.
func (c *Compiler) registerDerived(field string) string {
	name := field + derivedSuffix
	if !c.derivedSeen[name] {
		c.derivedSeen[name] = true
		c.derived = append(c.derived, bson.E{Key: name, Value: bson.D{{Key: OpToString, Value: "$" + field}}})
	}
	return name
}

func parseInt(field, literal string) (int64, error) {
	n, err := strconv.ParseInt(literal, 10, 64)
	if err != nil {
		return 0, dkerrors.CompileError(field, fmt.Sprintf("invalid numeric literal %q", literal))
	}
	return n, nil
}

func regex(pattern string) bson.D {
	return bson.D{{Key: OpRegex, Value: pattern}}
}

func negate(value any) any {
	if d, ok := value.(bson.D); ok && len(d) == 1 && d[0].Key == OpRegex {
		return bson.D{{Key: OpNot, Value: d}}
	}
	return bson.D{{Key: OpNot, Value: bson.D{{Key: OpEq, Value: value}}}}
}
