package querydoc

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/query"
)

// Entities resolves entity names; *mapping.YAMLResolver implements it.
type Entities interface {
	Entity(name string) (*core.EntityMapping, error)
}

// builder carries the first error raised inside query callbacks, which
// cannot return one themselves.
type builder struct {
	entities Entities
	params   map[string]string
	err      error
}

func (b *builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build turns d into a node tree. Values written as $name are taken from
// params.
func (d *Document) Build(entities Entities, params map[string]string) (core.Node, error) {
	b := &builder{entities: entities, params: params}
	n, err := b.build(d)
	if b.err != nil {
		return nil, b.err
	}
	return n, err
}

func (b *builder) build(d *Document) (core.Node, error) {
	m, err := b.entities.Entity(d.From)
	if err != nil {
		return nil, err
	}
	q := query.From(m)

	if d.Join != nil {
		if q, err = b.join(q, d.From, d.Join); err != nil {
			return nil, err
		}
	}
	for _, c := range d.Where {
		q = q.Where(func(r query.Row) core.Node { return b.condition(r, c) })
	}
	if d.GroupBy != nil {
		if q, err = b.group(q, d.GroupBy); err != nil {
			return nil, err
		}
	}
	if len(d.Select) > 0 {
		if q, err = b.selectFields(q, d.Select); err != nil {
			return nil, err
		}
	}
	for i, o := range d.OrderBy {
		path, desc := parseOrder(o)
		key := func(r query.Row) core.Node { return field(r, path) }
		switch {
		case i == 0 && desc:
			q = q.OrderByDesc(key)
		case i == 0:
			q = q.OrderBy(key)
		case desc:
			q = q.ThenByDesc(key)
		default:
			q = q.ThenBy(key)
		}
	}
	if d.Distinct {
		q = q.Distinct()
	}
	if d.Skip != nil {
		q = q.Skip(*d.Skip)
	}
	if d.Take != nil {
		q = q.Take(*d.Take)
	}
	if b.err != nil {
		return nil, b.err
	}
	return b.result(q, d)
}

func (b *builder) result(q *query.Query, d *Document) (core.Node, error) {
	agg := func() (func(query.Row) core.Node, error) {
		if d.Field == "" {
			return nil, fmt.Errorf("result %s needs a field", d.Result)
		}
		return func(r query.Row) core.Node { return field(r, d.Field) }, nil
	}
	switch strings.ToLower(d.Result) {
	case "", "list":
		return q.Node()
	case "count":
		return q.Count()
	case "first":
		return q.First()
	case "first_or_default":
		return q.FirstOrDefault()
	case "single":
		return q.Single()
	case "single_or_default":
		return q.SingleOrDefault()
	case "any":
		return q.Any()
	case "sum", "min", "max", "avg":
		f, err := agg()
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(d.Result) {
		case "sum":
			return q.Sum(f)
		case "min":
			return q.Min(f)
		case "max":
			return q.Max(f)
		}
		return q.Avg(f)
	}
	return nil, fmt.Errorf("unknown result %q", d.Result)
}

func (b *builder) join(q *query.Query, outerName string, j *Join) (*query.Query, error) {
	m, err := b.entities.Entity(j.Entity)
	if err != nil {
		return nil, err
	}
	innerName := j.As
	if innerName == "" {
		innerName = j.Entity
	}
	outerName, innerName = exported(outerName), exported(innerName)
	if outerName == innerName {
		return nil, fmt.Errorf("join: both sides are named %s; set join.as", outerName)
	}
	result := func(o, i query.Row) core.Node {
		t := reflect.StructOf([]reflect.StructField{
			{Name: outerName, Type: o.Node().Type(), Tag: jsonTag(outerName)},
			{Name: innerName, Type: i.Node().Type(), Tag: jsonTag(innerName)},
		})
		return core.NewNew(t,
			core.MemberBinding{Name: outerName, Expr: o.Node()},
			core.MemberBinding{Name: innerName, Expr: i.Node()})
	}
	inner := query.From(m)
	if j.Cross {
		return q.CrossJoin(inner, result), nil
	}
	if j.Outer == "" || j.Inner == "" {
		return nil, fmt.Errorf("join: outer and inner keys are required unless cross is set")
	}
	outerKey := func(r query.Row) core.Node { return field(r, j.Outer) }
	innerKey := func(r query.Row) core.Node { return field(r, j.Inner) }
	if j.Left {
		return q.LeftJoin(inner, outerKey, innerKey, result), nil
	}
	return q.Join(inner, outerKey, innerKey, result), nil
}

func (b *builder) group(q *query.Query, g *GroupBy) (*query.Query, error) {
	if len(g.Keys) == 0 {
		return nil, fmt.Errorf("group_by: keys are required")
	}
	names := make([]string, len(g.Keys))
	for i, k := range g.Keys {
		names[i] = lastSegment(k)
	}
	key := func(r query.Row) core.Node {
		if len(g.Keys) == 1 {
			return field(r, g.Keys[0])
		}
		bindings := make([]core.MemberBinding, len(g.Keys))
		for i, k := range g.Keys {
			bindings[i] = core.MemberBinding{Name: names[i], Expr: field(r, k)}
		}
		return newStruct(bindings)
	}
	grouped := q.GroupBy(key)
	return grouped.Select(func(grp query.Group) core.Node {
		var bindings []core.MemberBinding
		if len(g.Keys) == 1 {
			bindings = append(bindings, core.MemberBinding{Name: names[0], Expr: grp.Key()})
		} else {
			for _, n := range names {
				bindings = append(bindings, core.MemberBinding{Name: n, Expr: grp.KeyField(n)})
			}
		}
		for _, a := range g.Aggregates {
			n, err := b.aggregate(grp, a)
			if err != nil {
				b.fail(err)
				return query.Local(nil)
			}
			bindings = append(bindings, core.MemberBinding{Name: exported(a.As), Expr: n})
		}
		if err := uniqueNames(bindings); err != nil {
			b.fail(fmt.Errorf("group_by: %w", err))
			return query.Local(nil)
		}
		return newStruct(bindings)
	}), nil
}

func (b *builder) aggregate(g query.Group, a Aggregate) (core.Node, error) {
	if a.As == "" {
		return nil, fmt.Errorf("group_by: aggregate %s needs a name (as)", a.Func)
	}
	fn := strings.ToLower(a.Func)
	if fn == "count" {
		return g.Count(), nil
	}
	if a.Field == "" {
		return nil, fmt.Errorf("group_by: aggregate %s needs a field", a.As)
	}
	arg := func(r query.Row) core.Node { return field(r, a.Field) }
	switch fn {
	case "sum":
		return g.Sum(arg), nil
	case "min":
		return g.Min(arg), nil
	case "max":
		return g.Max(arg), nil
	case "avg":
		return g.Avg(arg), nil
	}
	return nil, fmt.Errorf("group_by: unknown aggregate %q", a.Func)
}

func (b *builder) selectFields(q *query.Query, fields []string) (*query.Query, error) {
	return q.Select(func(r query.Row) core.Node {
		bindings := make([]core.MemberBinding, len(fields))
		for i, f := range fields {
			path, name := f, lastSegment(f)
			if p, as, ok := strings.Cut(f, " as "); ok {
				path, name = strings.TrimSpace(p), strings.TrimSpace(as)
			}
			bindings[i] = core.MemberBinding{Name: exported(name), Expr: field(r, path)}
		}
		if err := uniqueNames(bindings); err != nil {
			b.fail(fmt.Errorf("select: %w", err))
			return query.Local(nil)
		}
		return newStruct(bindings)
	}), nil
}

func (b *builder) condition(r query.Row, c Condition) core.Node {
	if len(c.Any) > 0 {
		terms := make([]core.Node, len(c.Any))
		for i, alt := range c.Any {
			terms[i] = b.condition(r, alt)
		}
		return query.Or(terms...)
	}
	if c.Field == "" {
		b.fail(fmt.Errorf("where: condition without a field"))
		return query.Local(true)
	}
	f := field(r, c.Field)
	operand := func() core.Node {
		if c.Other != "" {
			return field(r, c.Other)
		}
		return query.Local(b.value(c.Value, f.Type(), c.Field))
	}
	switch strings.ToLower(c.Op) {
	case "", "eq":
		return query.Eq(f, operand())
	case "ne":
		return query.Ne(f, operand())
	case "lt":
		return query.Lt(f, operand())
	case "le":
		return query.Le(f, operand())
	case "gt":
		return query.Gt(f, operand())
	case "ge":
		return query.Ge(f, operand())
	case "is_null":
		return query.IsNull(f)
	case "not_null":
		return query.Not(query.IsNull(f))
	case "in", "not_in":
		in := query.Contains(b.slice(c.Values, f.Type(), c.Field), f)
		if strings.EqualFold(c.Op, "not_in") {
			return query.Not(in)
		}
		return in
	case "between":
		if len(c.Values) != 2 {
			b.fail(fmt.Errorf("where: between on %s needs two values", c.Field))
			return query.Local(true)
		}
		lo := query.Local(b.value(c.Values[0], f.Type(), c.Field))
		hi := query.Local(b.value(c.Values[1], f.Type(), c.Field))
		return query.Between(f, lo, hi)
	}
	b.fail(fmt.Errorf("where: unknown op %q", c.Op))
	return query.Local(true)
}

// value resolves $params and converts v to the field type t.
func (b *builder) value(v any, t reflect.Type, name string) any {
	if s, ok := v.(string); ok && strings.HasPrefix(s, "$") {
		p, ok := b.params[s[1:]]
		if !ok {
			b.fail(fmt.Errorf("where: parameter %s is not set", s))
			return nil
		}
		v = p
	}
	out, err := coerce(v, t)
	if err != nil {
		b.fail(fmt.Errorf("where: %s: %w", name, err))
		return nil
	}
	return out
}

func (b *builder) slice(values []any, t reflect.Type, name string) any {
	et := t
	for et != nil && et.Kind() == reflect.Pointer {
		et = et.Elem()
	}
	if et == nil {
		et = core.AnyType
	}
	s := reflect.MakeSlice(reflect.SliceOf(et), 0, len(values))
	for _, v := range values {
		x := b.value(v, et, name)
		if x == nil {
			s = reflect.Append(s, reflect.Zero(et))
			continue
		}
		s = reflect.Append(s, reflect.ValueOf(x))
	}
	return s.Interface()
}

// coerce converts a YAML scalar to t. Strings are parsed for numeric,
// boolean and time fields.
func coerce(v any, t reflect.Type) (any, error) {
	if v == nil || t == nil {
		return v, nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Interface {
		return v, nil
	}
	if s, ok := v.(string); ok {
		switch {
		case t == reflect.TypeOf(time.Time{}):
			for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", time.DateOnly} {
				if ts, err := time.Parse(layout, s); err == nil {
					return ts, nil
				}
			}
			return nil, fmt.Errorf("%q is not a time", s)
		case isInt(t.Kind()):
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", s)
			}
			return reflect.ValueOf(n).Convert(t).Interface(), nil
		case t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not a number", s)
			}
			return reflect.ValueOf(f).Convert(t).Interface(), nil
		case t.Kind() == reflect.Bool:
			bv, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("%q is not a boolean", s)
			}
			return bv, nil
		}
	}
	rv := reflect.ValueOf(v)
	if t.Kind() == reflect.String && rv.Kind() != reflect.String {
		return nil, fmt.Errorf("%v is not a string", v)
	}
	if rv.Kind() == reflect.String && t.Kind() != reflect.String {
		return nil, fmt.Errorf("%q does not fit %s", v, t)
	}
	if !rv.CanConvert(t) {
		return nil, fmt.Errorf("%v does not fit %s", v, t)
	}
	return rv.Convert(t).Interface(), nil
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// field reads a dotted path such as Customer.Name.
func field(r query.Row, path string) core.Node {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		r = r.Sub(strings.TrimSpace(p))
	}
	return r.Field(strings.TrimSpace(parts[len(parts)-1]))
}

func parseOrder(s string) (path string, desc bool) {
	fields := strings.Fields(s)
	if len(fields) == 2 {
		switch strings.ToLower(fields[1]) {
		case "desc":
			return fields[0], true
		case "asc":
			return fields[0], false
		}
	}
	return strings.TrimSpace(s), false
}

func newStruct(bindings []core.MemberBinding) core.Node {
	fields := make([]reflect.StructField, len(bindings))
	for i, b := range bindings {
		fields[i] = reflect.StructField{Name: b.Name, Type: b.Expr.Type(), Tag: jsonTag(b.Name)}
	}
	return core.NewNew(reflect.StructOf(fields), bindings...)
}

func uniqueNames(bindings []core.MemberBinding) error {
	seen := map[string]bool{}
	for _, b := range bindings {
		if seen[b.Name] {
			return fmt.Errorf("%s appears twice", b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return strings.TrimSpace(path[i+1:])
	}
	return strings.TrimSpace(path)
}

// exported makes name usable as a struct field.
func exported(name string) string {
	var sb strings.Builder
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	s := sb.String()
	if s == "" || !unicode.IsLetter([]rune(s)[0]) {
		s = "F" + s
	}
	return s
}

func jsonTag(name string) reflect.StructTag {
	return reflect.StructTag(fmt.Sprintf(`json:%q`, name))
}
