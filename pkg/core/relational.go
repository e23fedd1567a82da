package core

import (
	"reflect"
	"strconv"
)

// Aliased is implemented by row-producing sources that carry an alias.
type Aliased interface {
	Node
	SourceAlias() *Alias
}

// Table is a mapped table source.
type Table struct {
	Alias   *Alias
	Mapping *EntityMapping
	Name    string
	Schema  string
}

// NewTable creates a table source for a mapping.
func NewTable(alias *Alias, m *EntityMapping) *Table {
	return &Table{Alias: alias, Mapping: m, Name: m.Table, Schema: m.Schema}
}

// Kind implements Node.
func (t *Table) Kind() Kind { return KindTable }

// Type returns the mapped entity type.
func (t *Table) Type() reflect.Type {
	if t.Mapping != nil && t.Mapping.Type != nil {
		return t.Mapping.Type
	}
	return SequenceType
}

// SourceAlias implements Aliased.
func (t *Table) SourceAlias() *Alias { return t.Alias }

// Column references a named column produced by an alias.
type Column struct {
	Alias   *Alias
	Name    string
	SQLType SQLType
	typ     reflect.Type
}

// NewColumn creates a column reference.
func NewColumn(t reflect.Type, sqlType SQLType, alias *Alias, name string) *Column {
	return &Column{Alias: alias, Name: name, SQLType: sqlType, typ: t}
}

// Kind implements Node.
func (c *Column) Kind() Kind { return KindColumn }

// Type implements Node.
func (c *Column) Type() reflect.Type { return c.typ }

// ColumnKey identifies a column by alias and name.
type ColumnKey struct {
	Alias *Alias
	Name  string
}

// Key returns the column's alias/name key.
func (c *Column) Key() ColumnKey { return ColumnKey{Alias: c.Alias, Name: c.Name} }

// ColumnDeclaration names one projected column of a select.
type ColumnDeclaration struct {
	Name    string
	Expr    Node
	SQLType SQLType
}

// OrderType is a sort direction.
type OrderType int

// Sort directions.
const (
	Ascending OrderType = iota
	Descending
)

// OrderExpression is one ORDER BY term.
type OrderExpression struct {
	Order OrderType
	Expr  Node
}

// Select is the central relational node.
type Select struct {
	Alias    *Alias
	Columns  []ColumnDeclaration
	From     Node
	Where    Node
	OrderBy  []OrderExpression
	GroupBy  []Node
	Distinct bool
	Skip     Node
	Take     Node
	Reverse  bool
}

// NewSelect creates a select with no ordering, grouping or paging.
func NewSelect(alias *Alias, columns []ColumnDeclaration, from, where Node) *Select {
	return &Select{Alias: alias, Columns: columns, From: from, Where: where}
}

// Kind implements Node.
func (s *Select) Kind() Kind { return KindSelect }

// Type implements Node.
func (s *Select) Type() reflect.Type { return SequenceType }

// SourceAlias implements Aliased.
func (s *Select) SourceAlias() *Alias { return s.Alias }

// Update returns s if every child is unchanged.
func (s *Select) Update(columns []ColumnDeclaration, from, where Node, orderBy []OrderExpression, groupBy []Node, skip, take Node) *Select {
	if from == s.From && where == s.Where && skip == s.Skip && take == s.Take &&
		SameColumns(columns, s.Columns) && SameOrderings(orderBy, s.OrderBy) && sameNodes(groupBy, s.GroupBy) {
		return s
	}
	c := *s
	c.Columns, c.From, c.Where, c.OrderBy, c.GroupBy, c.Skip, c.Take = columns, from, where, orderBy, groupBy, skip, take
	return &c
}

func (s *Select) clone() *Select {
	c := *s
	return &c
}

// SetColumns returns a copy with columns replaced.
func (s *Select) SetColumns(columns []ColumnDeclaration) *Select {
	c := s.clone()
	c.Columns = columns
	return c
}

// SetFrom returns a copy with the source replaced.
func (s *Select) SetFrom(from Node) *Select {
	c := s.clone()
	c.From = from
	return c
}

// SetWhere returns a copy with the predicate replaced.
func (s *Select) SetWhere(where Node) *Select {
	c := s.clone()
	c.Where = where
	return c
}

// SetOrderBy returns a copy with the ordering replaced.
func (s *Select) SetOrderBy(orderBy []OrderExpression) *Select {
	c := s.clone()
	c.OrderBy = orderBy
	return c
}

// SetGroupBy returns a copy with the grouping replaced.
func (s *Select) SetGroupBy(groupBy []Node) *Select {
	c := s.clone()
	c.GroupBy = groupBy
	return c
}

// SetSkip returns a copy with the skip bound replaced.
func (s *Select) SetSkip(skip Node) *Select {
	c := s.clone()
	c.Skip = skip
	return c
}

// SetTake returns a copy with the take bound replaced.
func (s *Select) SetTake(take Node) *Select {
	c := s.clone()
	c.Take = take
	return c
}

// SetDistinct returns a copy with the distinct flag replaced.
func (s *Select) SetDistinct(distinct bool) *Select {
	c := s.clone()
	c.Distinct = distinct
	return c
}

// SetReverse returns a copy with the reverse flag replaced.
func (s *Select) SetReverse(reverse bool) *Select {
	c := s.clone()
	c.Reverse = reverse
	return c
}

// AddColumn returns a copy with one more column declaration.
func (s *Select) AddColumn(decl ColumnDeclaration) *Select {
	cols := make([]ColumnDeclaration, 0, len(s.Columns)+1)
	cols = append(cols, s.Columns...)
	return s.SetColumns(append(cols, decl))
}

// RemoveColumn returns a copy without the named column.
func (s *Select) RemoveColumn(name string) *Select {
	cols := make([]ColumnDeclaration, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name != name {
			cols = append(cols, c)
		}
	}
	return s.SetColumns(cols)
}

// Column returns the declaration with the given name.
func (s *Select) Column(name string) (ColumnDeclaration, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDeclaration{}, false
}

// HasOrderBy reports whether the select declares an ordering.
func (s *Select) HasOrderBy() bool { return len(s.OrderBy) > 0 }

// HasGroupBy reports whether the select declares a grouping.
func (s *Select) HasGroupBy() bool { return len(s.GroupBy) > 0 }

// AddRedundantSelect pushes s down one level: the returned select keeps the
// original alias and projects every column of s through a new alias.
func (s *Select) AddRedundantSelect(ts TypeSystem, newAlias *Alias) *Select {
	cols := make([]ColumnDeclaration, len(s.Columns))
	for i, d := range s.Columns {
		qt := d.SQLType
		if c, ok := d.Expr.(*Column); ok {
			qt = c.SQLType
		} else if qt.IsZero() && ts != nil {
			qt = ts.ColumnType(d.Expr.Type())
		}
		cols[i] = ColumnDeclaration{Name: d.Name, Expr: NewColumn(d.Expr.Type(), qt, newAlias, d.Name), SQLType: qt}
	}
	inner := s.clone()
	inner.Alias = newAlias
	return &Select{Alias: s.Alias, Columns: cols, From: inner}
}

// AvailableColumnName returns base, or base followed by the lowest number
// that does not collide with an existing declaration.
func AvailableColumnName(columns []ColumnDeclaration, base string) string {
	taken := func(n string) bool {
		for _, c := range columns {
			if c.Name == n {
				return true
			}
		}
		return false
	}
	name := base
	for n := 1; taken(name); n++ {
		name = base + strconv.Itoa(n)
	}
	return name
}

// JoinType is the join operator.
type JoinType int

// Join operators.
const (
	CrossJoin JoinType = iota
	InnerJoin
	CrossApply
	OuterApply
	LeftOuter
	SingletonLeftOuter
)

var joinTypeNames = [...]string{"CROSS JOIN", "INNER JOIN", "CROSS APPLY", "OUTER APPLY", "LEFT OUTER JOIN", "LEFT OUTER JOIN"}

// String returns the SQL spelling of the join operator.
func (j JoinType) String() string {
	if int(j) < len(joinTypeNames) {
		return joinTypeNames[j]
	}
	return "JOIN"
}

// Join combines two sources.
type Join struct {
	JoinType  JoinType
	Left      Node
	Right     Node
	Condition Node
}

// NewJoin creates a join.
func NewJoin(jt JoinType, left, right, condition Node) *Join {
	return &Join{JoinType: jt, Left: left, Right: right, Condition: condition}
}

// Kind implements Node.
func (j *Join) Kind() Kind { return KindJoin }

// Type implements Node.
func (j *Join) Type() reflect.Type { return SequenceType }

// Update returns j if the join type and children are unchanged.
func (j *Join) Update(jt JoinType, left, right, condition Node) *Join {
	if jt == j.JoinType && left == j.Left && right == j.Right && condition == j.Condition {
		return j
	}
	return &Join{JoinType: jt, Left: left, Right: right, Condition: condition}
}

// Projection pairs a select with a row-shaping projector and an optional
// sequence aggregator.
type Projection struct {
	Select     *Select
	Projector  Node
	Aggregator *Lambda
}

// NewProjection creates a projection.
func NewProjection(sel *Select, projector Node, aggregator *Lambda) *Projection {
	return &Projection{Select: sel, Projector: projector, Aggregator: aggregator}
}

// Kind implements Node.
func (p *Projection) Kind() Kind { return KindProjection }

// Type returns the aggregator result type, or a slice of the projector type.
func (p *Projection) Type() reflect.Type {
	if p.Aggregator != nil {
		return p.Aggregator.Type()
	}
	return reflect.SliceOf(p.Projector.Type())
}

// IsSingleton reports whether the aggregator reduces the sequence to one
// projected row.
func (p *Projection) IsSingleton() bool {
	return p.Aggregator != nil && p.Aggregator.Type() == p.Projector.Type()
}

// Update returns p if every part is unchanged.
func (p *Projection) Update(sel *Select, projector Node, aggregator *Lambda) *Projection {
	if sel == p.Select && projector == p.Projector && aggregator == p.Aggregator {
		return p
	}
	return &Projection{Select: sel, Projector: projector, Aggregator: aggregator}
}

// AggregateFunc is a SQL aggregate function.
type AggregateFunc int

// Aggregate functions.
const (
	AggCount AggregateFunc = iota
	AggSum
	AggMin
	AggMax
	AggAvg
)

var aggregateNames = [...]string{"COUNT", "SUM", "MIN", "MAX", "AVG"}

// String returns the SQL function name.
func (a AggregateFunc) String() string {
	if int(a) < len(aggregateNames) {
		return aggregateNames[a]
	}
	return "AGG"
}

// Aggregate is an aggregate function call. A COUNT with nil Argument is COUNT(*).
type Aggregate struct {
	Func     AggregateFunc
	Argument Node
	Distinct bool
	typ      reflect.Type
}

// NewAggregate creates an aggregate.
func NewAggregate(t reflect.Type, fn AggregateFunc, arg Node, distinct bool) *Aggregate {
	return &Aggregate{Func: fn, Argument: arg, Distinct: distinct, typ: t}
}

// Kind implements Node.
func (a *Aggregate) Kind() Kind { return KindAggregate }

// Type implements Node.
func (a *Aggregate) Type() reflect.Type { return a.typ }

// IsCountStar reports whether a is COUNT(*).
func (a *Aggregate) IsCountStar() bool { return a.Func == AggCount && a.Argument == nil }

// Update returns a if the argument is unchanged.
func (a *Aggregate) Update(arg Node) *Aggregate {
	if arg == a.Argument {
		return a
	}
	return &Aggregate{Func: a.Func, Argument: arg, Distinct: a.Distinct, typ: a.typ}
}

// AggregateSubquery is an aggregate over a group that can either be
// computed in the group-by select (AggregateInGroupSelect) or as a
// correlated scalar subquery.
type AggregateSubquery struct {
	GroupByAlias           *Alias
	AggregateInGroupSelect Node
	Subquery               *Scalar
}

// NewAggregateSubquery creates an aggregate subquery.
func NewAggregateSubquery(groupByAlias *Alias, inGroup Node, subquery *Scalar) *AggregateSubquery {
	return &AggregateSubquery{GroupByAlias: groupByAlias, AggregateInGroupSelect: inGroup, Subquery: subquery}
}

// Kind implements Node.
func (a *AggregateSubquery) Kind() Kind { return KindAggregateSubquery }

// Type implements Node.
func (a *AggregateSubquery) Type() reflect.Type { return a.Subquery.Type() }

// Update returns a if both forms are unchanged.
func (a *AggregateSubquery) Update(inGroup Node, subquery *Scalar) *AggregateSubquery {
	if inGroup == a.AggregateInGroupSelect && subquery == a.Subquery {
		return a
	}
	return &AggregateSubquery{GroupByAlias: a.GroupByAlias, AggregateInGroupSelect: inGroup, Subquery: subquery}
}

// Scalar is a single-column, single-row subquery.
type Scalar struct {
	Select *Select
	typ    reflect.Type
}

// NewScalar creates a scalar subquery.
func NewScalar(t reflect.Type, sel *Select) *Scalar {
	return &Scalar{Select: sel, typ: t}
}

// Kind implements Node.
func (s *Scalar) Kind() Kind { return KindScalar }

// Type implements Node.
func (s *Scalar) Type() reflect.Type { return s.typ }

// Update returns s if the select is unchanged.
func (s *Scalar) Update(sel *Select) *Scalar {
	if sel == s.Select {
		return s
	}
	return &Scalar{Select: sel, typ: s.typ}
}

// Exists tests whether a subquery yields any row.
type Exists struct {
	Select *Select
}

// NewExists creates an EXISTS test.
func NewExists(sel *Select) *Exists { return &Exists{Select: sel} }

// Kind implements Node.
func (e *Exists) Kind() Kind { return KindExists }

// Type implements Node.
func (e *Exists) Type() reflect.Type { return BoolType }

// Update returns e if the select is unchanged.
func (e *Exists) Update(sel *Select) *Exists {
	if sel == e.Select {
		return e
	}
	return &Exists{Select: sel}
}

// In tests membership against a subquery or a list of values. Exactly one
// of Select and Values is set.
type In struct {
	Expr   Node
	Select *Select
	Values []Node
}

// NewInSelect creates an IN test against a single-column subquery.
func NewInSelect(expr Node, sel *Select) *In { return &In{Expr: expr, Select: sel} }

// NewInValues creates an IN test against a value list.
func NewInValues(expr Node, values []Node) *In { return &In{Expr: expr, Values: values} }

// Kind implements Node.
func (i *In) Kind() Kind { return KindIn }

// Type implements Node.
func (i *In) Type() reflect.Type { return BoolType }

// Update returns i if every part is unchanged.
func (i *In) Update(expr Node, sel *Select, values []Node) *In {
	if expr == i.Expr && sel == i.Select && sameNodes(values, i.Values) {
		return i
	}
	return &In{Expr: expr, Select: sel, Values: values}
}

// Grouping is one group of a GroupBy result: its key plus the element
// sequence (normally a correlated Projection).
type Grouping struct {
	Key      Node
	Elements Node
	typ      reflect.Type
}

// NewGrouping creates a grouping of result type t.
func NewGrouping(t reflect.Type, key, elements Node) *Grouping {
	return &Grouping{Key: key, Elements: elements, typ: t}
}

// Kind implements Node.
func (g *Grouping) Kind() Kind { return KindGrouping }

// Type implements Node.
func (g *Grouping) Type() reflect.Type { return g.typ }

// Update returns g if key and elements are unchanged.
func (g *Grouping) Update(key, elements Node) *Grouping {
	if key == g.Key && elements == g.Elements {
		return g
	}
	return &Grouping{Key: key, Elements: elements, typ: g.typ}
}

// IsNull tests an expression against NULL.
type IsNull struct {
	Expr Node
}

// NewIsNull creates an IS NULL test.
func NewIsNull(expr Node) *IsNull { return &IsNull{Expr: expr} }

// Kind implements Node.
func (n *IsNull) Kind() Kind { return KindIsNull }

// Type implements Node.
func (n *IsNull) Type() reflect.Type { return BoolType }

// Update returns n if expr is unchanged.
func (n *IsNull) Update(expr Node) *IsNull {
	if expr == n.Expr {
		return n
	}
	return &IsNull{Expr: expr}
}

// Between is an inclusive range test.
type Between struct {
	Expr  Node
	Lower Node
	Upper Node
}

// NewBetween creates a BETWEEN test.
func NewBetween(expr, lower, upper Node) *Between {
	return &Between{Expr: expr, Lower: lower, Upper: upper}
}

// Kind implements Node.
func (b *Between) Kind() Kind { return KindBetween }

// Type implements Node.
func (b *Between) Type() reflect.Type { return BoolType }

// Update returns b if every part is unchanged.
func (b *Between) Update(expr, lower, upper Node) *Between {
	if expr == b.Expr && lower == b.Lower && upper == b.Upper {
		return b
	}
	return &Between{Expr: expr, Lower: lower, Upper: upper}
}

// RowNumber is ROW_NUMBER() OVER (ORDER BY ...).
type RowNumber struct {
	OrderBy []OrderExpression
}

// NewRowNumber creates a row-number window.
func NewRowNumber(orderBy []OrderExpression) *RowNumber { return &RowNumber{OrderBy: orderBy} }

// Kind implements Node.
func (r *RowNumber) Kind() Kind { return KindRowNumber }

// Type implements Node.
func (r *RowNumber) Type() reflect.Type { return Int64Type }

// Update returns r if the ordering is unchanged.
func (r *RowNumber) Update(orderBy []OrderExpression) *RowNumber {
	if SameOrderings(orderBy, r.OrderBy) {
		return r
	}
	return &RowNumber{OrderBy: orderBy}
}

// NamedValue is a parameter placeholder. Value is evaluated when the command
// is bound: a Constant for literals, or a Column of an outer row for
// correlated sub-plans.
type NamedValue struct {
	Name    string
	SQLType SQLType
	Value   Node
}

// NewNamedValue creates a named value.
func NewNamedValue(name string, sqlType SQLType, value Node) *NamedValue {
	return &NamedValue{Name: name, SQLType: sqlType, Value: value}
}

// Kind implements Node.
func (n *NamedValue) Kind() Kind { return KindNamedValue }

// Type implements Node.
func (n *NamedValue) Type() reflect.Type { return n.Value.Type() }

// Update returns n if the value is unchanged.
func (n *NamedValue) Update(value Node) *NamedValue {
	if value == n.Value {
		return n
	}
	return &NamedValue{Name: n.Name, SQLType: n.SQLType, Value: value}
}

// OuterJoined marks the right side of an outer join. Test is NULL exactly
// when no row matched.
type OuterJoined struct {
	Test Node
	Expr Node
}

// NewOuterJoined creates an outer-joined marker.
func NewOuterJoined(test, expr Node) *OuterJoined {
	return &OuterJoined{Test: test, Expr: expr}
}

// Kind implements Node.
func (o *OuterJoined) Kind() Kind { return KindOuterJoined }

// Type implements Node.
func (o *OuterJoined) Type() reflect.Type { return o.Expr.Type() }

// Update returns o if both parts are unchanged.
func (o *OuterJoined) Update(test, expr Node) *OuterJoined {
	if test == o.Test && expr == o.Expr {
		return o
	}
	return &OuterJoined{Test: test, Expr: expr}
}

// Batch runs Operation once per element of Input.
type Batch struct {
	Input     Node
	Operation *Lambda
	BatchSize Node
	Stream    Node
}

// NewBatch creates a batch.
func NewBatch(input Node, op *Lambda, batchSize, stream Node) *Batch {
	return &Batch{Input: input, Operation: op, BatchSize: batchSize, Stream: stream}
}

// Kind implements Node.
func (b *Batch) Kind() Kind { return KindBatch }

// Type returns a slice of the operation result type.
func (b *Batch) Type() reflect.Type { return reflect.SliceOf(b.Operation.Type()) }

// Update returns b if every part is unchanged.
func (b *Batch) Update(input Node, op *Lambda, batchSize, stream Node) *Batch {
	if input == b.Input && op == b.Operation && batchSize == b.BatchSize && stream == b.Stream {
		return b
	}
	return &Batch{Input: input, Operation: op, BatchSize: batchSize, Stream: stream}
}

// Function is a raw SQL function call emitted verbatim by name.
type Function struct {
	Name string
	Args []Node
	typ  reflect.Type
}

// NewFunction creates a SQL function call.
func NewFunction(t reflect.Type, name string, args ...Node) *Function {
	return &Function{Name: name, Args: args, typ: t}
}

// Kind implements Node.
func (f *Function) Kind() Kind { return KindFunction }

// Type implements Node.
func (f *Function) Type() reflect.Type { return f.typ }

// Update returns f if args are unchanged.
func (f *Function) Update(args []Node) *Function {
	if sameNodes(args, f.Args) {
		return f
	}
	return &Function{Name: f.Name, Args: args, typ: f.typ}
}

// Entity wraps the construction of a mapped entity so comparisons can use
// its primary key.
type Entity struct {
	Mapping *EntityMapping
	Expr    Node
}

// NewEntity creates an entity marker.
func NewEntity(m *EntityMapping, expr Node) *Entity {
	return &Entity{Mapping: m, Expr: expr}
}

// Kind implements Node.
func (e *Entity) Kind() Kind { return KindEntity }

// Type implements Node.
func (e *Entity) Type() reflect.Type { return e.Expr.Type() }

// Update returns e if expr is unchanged.
func (e *Entity) Update(expr Node) *Entity {
	if expr == e.Expr {
		return e
	}
	return &Entity{Mapping: e.Mapping, Expr: expr}
}

// SameColumns reports whether two declaration lists are element-wise identical.
func SameColumns(a, b []ColumnDeclaration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Expr != b[i].Expr || a[i].SQLType != b[i].SQLType {
			return false
		}
	}
	return true
}

// SameOrderings reports whether two ordering lists are element-wise identical.
func SameOrderings(a, b []OrderExpression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Order != b[i].Order || a[i].Expr != b[i].Expr {
			return false
		}
	}
	return true
}
