// Package ansi provides the base ANSI SQL dialect.
//
// It spells paging as OFFSET ... FETCH and apply operators as LATERAL joins,
// and is the reference output for tests that do not target a database.
package ansi

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(ANSI)
}

// Config is the ANSI dialect configuration.
var Config = &core.DialectConfig{
	Name:        "ansi",
	Placeholder: core.PlaceholderQuestion,
	Paging:      core.PagingOffsetFetch,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormCaseSensitive,
	},
	SupportsBooleanValues: true,
	SupportsLateral:       true,
	ConcatOperator:        "||",
	ReservedWords:         ReservedWords,
}

// ReservedWords are the SQL:2008 reserved words most likely to collide with
// mapped column names.
var ReservedWords = []string{
	"all", "and", "any", "as", "asc", "between", "by", "case", "cast", "check",
	"column", "constraint", "create", "cross", "current", "date", "default",
	"delete", "desc", "distinct", "else", "end", "exists", "false", "fetch",
	"for", "foreign", "from", "full", "grant", "group", "having", "in", "inner",
	"insert", "intersect", "into", "is", "join", "key", "lateral", "left", "like",
	"not", "null", "of", "offset", "on", "or", "order", "outer", "primary",
	"references", "right", "row", "rows", "select", "table", "then", "time",
	"to", "true", "union", "unique", "update", "user", "using", "value",
	"values", "when", "where", "with", "year",
}

// ANSI is the base ANSI SQL dialect.
var ANSI = dialect.New(Config).
	Calls(dialect.StringCalls, dialect.MathCalls, map[string]dialect.CallHandler{
		"len":       dialect.Func("CHAR_LENGTH"),
		"math.Ceil": dialect.Func("CEILING"),
	}).
	Members(dialect.ExtractMembers).
	Build()
