package sqldoc

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/planner"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage/sqlbuilder"
)

// Plan is the SQL rendering of a stage list over the doc column of one
// table. Where conditions hold placeholders bound in the builder passed to
// Translate.
type Plan struct {
	Where   []string
	OrderBy []string
	Limit   *int64
	Offset  *int64
}

// WhereClause returns " WHERE ..." or an empty string.
func (p *Plan) WhereClause() string {
	if len(p.Where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.Where, " AND ")
}

func (p *Plan) OrderClause() string {
	if len(p.OrderBy) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(p.OrderBy, ", ")
}

const idColumn = "id"

type translator struct {
	d       Dialect
	b       *sqlbuilder.Builder
	derived map[string][]string
	paged   bool
	plan    Plan
}

// fieldExpr is a condition operand. path is set for values extracted from
// the document and drives type checks.
type fieldExpr struct {
	expr string
	text bool
	path []string
}

func unsupported(format string, args ...any) error {
	return dkerrors.Unsupported(fmt.Sprintf(format, args...))
}

// Translate renders stages in order. Filtering or sorting after $skip or
// $limit cannot be expressed in one SELECT and is rejected, as is every
// stage or operator outside the supported subset.
func Translate(d Dialect, b *sqlbuilder.Builder, stages []bson.D) (*Plan, error) {
	t := &translator{d: d, b: b, derived: make(map[string][]string)}
	for _, stage := range stages {
		if len(stage) != 1 {
			return nil, unsupported("stage must hold exactly one operator, got %d", len(stage))
		}
		if err := t.stage(stage[0]); err != nil {
			return nil, err
		}
	}
	return &t.plan, nil
}

func (t *translator) stage(e bson.E) error {
	switch e.Key {
	case planner.StageAddFields:
		return t.addFields(e.Value)
	case planner.StageMatch:
		if t.paged {
			return unsupported("%s after paging", e.Key)
		}
		doc, ok := e.Value.(bson.D)
		if !ok {
			return unsupported("%s expects a document", e.Key)
		}
		cond, err := t.match(doc)
		if err != nil {
			return err
		}
		if cond != "" {
			t.plan.Where = append(t.plan.Where, cond)
		}
		return nil
	case planner.StageProject:
		return t.project(e.Value)
	case "$sort":
		if t.paged {
			return unsupported("%s after paging", e.Key)
		}
		return t.sort(e.Value)
	case planner.StageSkip:
		n, err := count(e.Key, e.Value)
		if err != nil {
			return err
		}
		if t.plan.Limit != nil {
			rest := max(*t.plan.Limit-n, 0)
			t.plan.Limit = &rest
		}
		offset := n
		if t.plan.Offset != nil {
			offset += *t.plan.Offset
		}
		t.plan.Offset = &offset
		t.paged = true
		return nil
	case planner.StageLimit:
		n, err := count(e.Key, e.Value)
		if err != nil {
			return err
		}
		if t.plan.Limit == nil || n < *t.plan.Limit {
			t.plan.Limit = &n
		}
		t.paged = true
		return nil
	default:
		return unsupported("stage %s", e.Key)
	}
}

// addFields accepts only {name: {$toString: "$path"}} entries.
func (t *translator) addFields(v any) error {
	doc, ok := v.(bson.D)
	if !ok {
		return unsupported("%s expects a document", planner.StageAddFields)
	}
	for _, f := range doc {
		expr, ok := f.Value.(bson.D)
		if !ok || len(expr) != 1 || expr[0].Key != planner.OpToString {
			return unsupported("%s supports only %s", planner.StageAddFields, planner.OpToString)
		}
		ref, ok := expr[0].Value.(string)
		if !ok || !strings.HasPrefix(ref, "$") {
			return unsupported("%s expects a field reference", planner.OpToString)
		}
		t.derived[f.Key] = strings.Split(strings.TrimPrefix(ref, "$"), ".")
	}
	return nil
}

// project accepts only exclusions of derived fields.
func (t *translator) project(v any) error {
	doc, ok := v.(bson.D)
	if !ok {
		return unsupported("%s expects a document", planner.StageProject)
	}
	for _, f := range doc {
		if _, ok := t.derived[f.Key]; !ok || truthy(f.Value) {
			return unsupported("%s supports only exclusion of added fields", planner.StageProject)
		}
	}
	return nil
}

func (t *translator) sort(v any) error {
	doc, ok := v.(bson.D)
	if !ok {
		return unsupported("$sort expects a document")
	}
	for _, f := range doc {
		n, ok := integer(f.Value)
		if !ok || (n != 1 && n != -1) {
			return unsupported("$sort direction for %s", f.Key)
		}
		dir := "ASC"
		if n < 0 {
			dir = "DESC"
		}
		t.plan.OrderBy = append(t.plan.OrderBy, t.field(f.Key).expr+" "+dir)
	}
	return nil
}

// field resolves a condition field. The identifier lives in the id column
// as text, whatever its JSON type.
func (t *translator) field(name string) fieldExpr {
	if path, ok := t.derived[name]; ok {
		return fieldExpr{expr: t.text(path), text: true}
	}
	if name == storage.IdentifierField {
		return fieldExpr{expr: idColumn, text: true}
	}
	path := strings.Split(name, ".")
	return fieldExpr{expr: t.d.Extract(path), path: path}
}

func (t *translator) textField(name string) string {
	if path, ok := t.derived[name]; ok {
		return t.text(path)
	}
	return t.text(strings.Split(name, "."))
}

func (t *translator) text(path []string) string {
	if len(path) == 1 && path[0] == storage.IdentifierField {
		return idColumn
	}
	return t.d.ExtractText(path)
}

func (t *translator) match(doc bson.D) (string, error) {
	parts := make([]string, 0, len(doc))
	for _, e := range doc {
		var (
			cond string
			err  error
		)
		switch e.Key {
		case planner.OpAnd:
			cond, err = t.logical(e.Key, e.Value, " AND ")
		case planner.OpOr:
			cond, err = t.logical(e.Key, e.Value, " OR ")
		case "$nor":
			cond, err = t.logical(e.Key, e.Value, " OR ")
			cond = negation(cond)
		default:
			if strings.HasPrefix(e.Key, "$") {
				return "", unsupported("query operator %s", e.Key)
			}
			cond, err = t.condition(e.Key, e.Value)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], nil
	default:
		return "(" + strings.Join(parts, " AND ") + ")", nil
	}
}

func (t *translator) logical(op string, v any, sep string) (string, error) {
	arr, ok := v.(bson.A)
	if !ok || len(arr) == 0 {
		return "", unsupported("%s expects a non-empty array", op)
	}
	parts := make([]string, 0, len(arr))
	for _, item := range arr {
		doc, ok := item.(bson.D)
		if !ok {
			return "", unsupported("%s expects documents", op)
		}
		cond, err := t.match(doc)
		if err != nil {
			return "", err
		}
		if cond == "" {
			cond = "TRUE"
		}
		parts = append(parts, cond)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (t *translator) condition(field string, v any) (string, error) {
	if doc, ok := v.(bson.D); ok && isOperatorDoc(doc) {
		return t.operators(field, doc)
	}
	if re, ok := v.(primitive.Regex); ok {
		return t.regex(field, re.Pattern, re.Options)
	}
	return t.compare(field, planner.OpEq, v)
}

func (t *translator) operators(field string, doc bson.D) (string, error) {
	options := ""
	for _, op := range doc {
		if op.Key == "$options" {
			s, ok := op.Value.(string)
			if !ok {
				return "", unsupported("$options expects a string")
			}
			options = s
		}
	}

	parts := make([]string, 0, len(doc))
	for _, op := range doc {
		var (
			cond string
			err  error
		)
		switch op.Key {
		case planner.OpEq, "$ne", "$gt", "$gte", "$lt", "$lte":
			cond, err = t.compare(field, op.Key, op.Value)
		case "$in", "$nin":
			cond, err = t.in(field, op.Key, op.Value)
		case "$exists":
			if truthy(op.Value) {
				cond = t.field(field).expr + " IS NOT NULL"
			} else {
				cond = t.field(field).expr + " IS NULL"
			}
		case planner.OpRegex:
			switch p := op.Value.(type) {
			case string:
				cond, err = t.regex(field, p, options)
			case primitive.Regex:
				cond, err = t.regex(field, p.Pattern, p.Options+options)
			default:
				err = unsupported("%s expects a string", planner.OpRegex)
			}
		case "$options":
			continue
		case planner.OpNot:
			cond, err = t.not(field, op.Value)
		default:
			err = unsupported("query operator %s", op.Key)
		}
		if err != nil {
			return "", err
		}
		parts = append(parts, cond)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " AND ") + ")", nil
}

func (t *translator) not(field string, v any) (string, error) {
	var (
		cond string
		err  error
	)
	switch inner := v.(type) {
	case bson.D:
		if !isOperatorDoc(inner) {
			return "", unsupported("%s expects an operator document", planner.OpNot)
		}
		cond, err = t.operators(field, inner)
	case primitive.Regex:
		cond, err = t.regex(field, inner.Pattern, inner.Options)
	default:
		err = unsupported("%s expects an operator document", planner.OpNot)
	}
	if err != nil {
		return "", err
	}
	return negation(cond), nil
}

// negation keeps rows where cond is unknown, as a missing field does not
// match the negated predicate.
func negation(cond string) string {
	return "NOT COALESCE(" + cond + ", FALSE)"
}

var comparators = map[string]string{
	planner.OpEq: "=",
	"$ne":        "<>",
	"$gt":        ">",
	"$gte":       ">=",
	"$lt":        "<",
	"$lte":       "<=",
}

func (t *translator) compare(field, op string, v any) (string, error) {
	f := t.field(field)
	if v == nil {
		switch op {
		case planner.OpEq:
			return f.expr + " IS NULL", nil
		case "$ne":
			return f.expr + " IS NOT NULL", nil
		default:
			return "", unsupported("%s against null", op)
		}
	}
	s, err := scalar(v)
	if err != nil {
		return "", err
	}
	lit, err := t.literal(f, s)
	if err != nil {
		return "", err
	}
	guard := t.guard(f, kindOf(s))
	if op == "$ne" {
		if guard != "" {
			return "(" + f.expr + " IS NULL OR NOT (" + guard + ") OR " + f.expr + " <> " + lit + ")", nil
		}
		return "(" + f.expr + " IS NULL OR " + f.expr + " <> " + lit + ")", nil
	}
	cond := f.expr + " " + comparators[op] + " " + lit
	if guard != "" {
		return "(" + guard + " AND " + cond + ")", nil
	}
	return cond, nil
}

// in groups the values by JSON kind so each group is checked against the
// stored type once.
func (t *translator) in(field, op string, v any) (string, error) {
	arr, ok := v.(bson.A)
	if !ok {
		return "", unsupported("%s expects an array", op)
	}
	if len(arr) == 0 {
		if op == "$in" {
			return "FALSE", nil
		}
		return "TRUE", nil
	}
	f := t.field(field)
	var kinds []JSONKind
	groups := make(map[JSONKind][]any)
	for _, item := range arr {
		s, err := scalar(item)
		if err != nil {
			return "", err
		}
		k := kindOf(s)
		if f.path == nil {
			k = KindString
		}
		if _, ok := groups[k]; !ok {
			kinds = append(kinds, k)
		}
		groups[k] = append(groups[k], s)
	}

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		lits := make([]string, 0, len(groups[k]))
		for _, s := range groups[k] {
			lit, err := t.literal(f, s)
			if err != nil {
				return "", err
			}
			lits = append(lits, lit)
		}
		list := "(" + strings.Join(lits, ", ") + ")"
		if op == "$nin" && len(kinds) == 1 && t.guard(f, k) == "" {
			return "(" + f.expr + " IS NULL OR " + f.expr + " NOT IN " + list + ")", nil
		}
		cond := f.expr + " IN " + list
		if guard := t.guard(f, k); guard != "" {
			cond = "(" + guard + " AND " + cond + ")"
		}
		parts = append(parts, cond)
	}
	cond := parts[0]
	if len(parts) > 1 {
		cond = "(" + strings.Join(parts, " OR ") + ")"
	}
	if op == "$nin" {
		return negation(cond), nil
	}
	return cond, nil
}

// guard checks the stored JSON type before comparing numbers or booleans,
// which SQL would otherwise compare across types.
func (t *translator) guard(f fieldExpr, kind JSONKind) string {
	if f.path == nil || kind == KindString {
		return ""
	}
	return t.d.TypeCheck(f.path, kind)
}

func kindOf(s any) JSONKind {
	switch s.(type) {
	case bool:
		return KindBoolean
	case int64, float64:
		return KindNumber
	default:
		return KindString
	}
}

func (t *translator) regex(field, pattern, options string) (string, error) {
	insensitive := false
	for _, o := range options {
		if o != 'i' {
			return "", unsupported("regex option %q", o)
		}
		insensitive = true
	}
	cond := t.d.Regex(t.b, t.textField(field), pattern, insensitive)
	if f := t.field(field); f.path != nil {
		// Only strings match a pattern.
		cond = "(" + t.d.TypeCheck(f.path, KindString) + " AND " + cond + ")"
	}
	return cond, nil
}

func (t *translator) literal(f fieldExpr, v any) (string, error) {
	s, err := scalar(v)
	if err != nil {
		return "", err
	}
	if f.text {
		return t.b.Arg(fmt.Sprint(s)), nil
	}
	return t.d.Literal(t.b, s), nil
}

// scalar normalises a BSON value to string, int64, float64 or bool.
func scalar(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int64, float64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case primitive.ObjectID:
		return x.Hex(), nil
	default:
		return nil, unsupported("value of type %T", v)
	}
}

func isOperatorDoc(d bson.D) bool {
	return len(d) > 0 && strings.HasPrefix(d[0].Key, "$")
}

func integer(v any) (int64, bool) {
	switch x := v.(type) {
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	}
	return 0, false
}

func count(stage string, v any) (int64, error) {
	n, ok := integer(v)
	if !ok || n < 0 {
		return 0, unsupported("%s expects a non-negative integer", stage)
	}
	return n, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case nil:
		return false
	case string:
		return x != ""
	}
	if n, ok := integer(v); ok {
		return n != 0
	}
	return true
}

// PageClause renders LIMIT and OFFSET as integers; they never carry user text.
func PageClause(limit, offset *int64, offsetNeedsLimit bool) string {
	var sb strings.Builder
	if limit != nil {
		sb.WriteString(" LIMIT " + strconv.FormatInt(*limit, 10))
	} else if offset != nil && offsetNeedsLimit {
		sb.WriteString(" LIMIT -1")
	}
	if offset != nil {
		sb.WriteString(" OFFSET " + strconv.FormatInt(*offset, 10))
	}
	return sb.String()
}
