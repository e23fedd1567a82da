package core

// AliasSet is a set of aliases.
type AliasSet map[*Alias]struct{}

// Has reports whether a is in the set.
func (s AliasSet) Has(a *Alias) bool {
	_, ok := s[a]
	return ok
}

// Intersects reports whether s and o share an alias.
func (s AliasSet) Intersects(o AliasSet) bool {
	for a := range s {
		if o.Has(a) {
			return true
		}
	}
	return false
}

// SubsetOf reports whether every alias of s is in o.
func (s AliasSet) SubsetOf(o AliasSet) bool {
	for a := range s {
		if !o.Has(a) {
			return false
		}
	}
	return true
}

// DeclaredAliases returns the aliases a source declares: its own alias for
// a table or select, both sides for a join. Nested selects are not entered.
func DeclaredAliases(source Node) AliasSet {
	set := AliasSet{}
	collectDeclared(source, func(a *Alias) { set[a] = struct{}{} })
	return set
}

// DeclaredAliasList is DeclaredAliases in left-to-right declaration order.
func DeclaredAliasList(source Node) []*Alias {
	var list []*Alias
	collectDeclared(source, func(a *Alias) { list = append(list, a) })
	return list
}

func collectDeclared(source Node, add func(*Alias)) {
	switch x := source.(type) {
	case *Select:
		add(x.Alias)
	case *Table:
		add(x.Alias)
	case *Join:
		collectDeclared(x.Left, add)
		collectDeclared(x.Right, add)
	}
}

// ReferencedAliases returns every alias referenced by a column anywhere in n.
func ReferencedAliases(n Node) AliasSet {
	set := AliasSet{}
	Inspect(n, func(e Node) bool {
		if c, ok := e.(*Column); ok {
			set[c.Alias] = struct{}{}
		}
		return true
	})
	return set
}

// HasAggregates reports whether s computes aggregates at its own level
// (nested subqueries are not entered).
func HasAggregates(s *Select) bool {
	found := false
	check := func(n Node) {
		Inspect(n, func(e Node) bool {
			if found {
				return false
			}
			switch e.(type) {
			case *Aggregate:
				found = true
				return false
			case *Select, *Scalar, *Exists, *In, *Projection, *AggregateSubquery:
				return false
			}
			return true
		})
	}
	for _, c := range s.Columns {
		check(c.Expr)
	}
	check(s.Where)
	for _, o := range s.OrderBy {
		check(o.Expr)
	}
	return found
}

// SplitConjunction flattens a tree of AND operations into its terms.
func SplitConjunction(n Node) []Node {
	if n == nil {
		return nil
	}
	if b, ok := n.(*Binary); ok && b.Op == OpAnd {
		return append(SplitConjunction(b.Left), SplitConjunction(b.Right)...)
	}
	return []Node{n}
}

// JoinConjunction combines terms with AND, left-associated. It returns nil
// for an empty list.
func JoinConjunction(terms []Node) Node {
	var out Node
	for _, t := range terms {
		if out == nil {
			out = t
		} else {
			out = NewBinary(OpAnd, out, t)
		}
	}
	return out
}

// And combines two optional predicates.
func And(a, b Node) Node {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return NewBinary(OpAnd, a, b)
	}
}
