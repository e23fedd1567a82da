// Package duckdb provides the DuckDB SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package duckdb

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// Config is the DuckDB dialect configuration.
var Config = &core.DialectConfig{
	Name:          "duckdb",
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
	Paging:        core.PagingLimitOffset,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormCaseInsensitive,
	},

	// Framework Features (auto-wired by Builder)
	SupportsBooleanValues: true,
	SupportsLateral:       true,
	// Columnar engine: computed projections are cheaper server-side.
	ProjectExpressions: true,
	ConcatOperator:     "||",

	ReservedWords: duckdbReservedWords,
	TypeNames: map[core.SQLTypeKind]string{
		core.SQLFloat64: "DOUBLE",
		core.SQLBytes:   "BLOB",
		core.SQLUUID:    "UUID",
	},
}

var duckdbReservedWords = []string{
	"all", "analyse", "analyze", "and", "any", "array", "as", "asc", "asymmetric",
	"both", "case", "cast", "check", "collate", "column", "constraint", "create",
	"default", "deferrable", "desc", "describe", "distinct", "do", "else", "end",
	"except", "false", "fetch", "for", "foreign", "from", "grant", "group",
	"having", "in", "initially", "intersect", "into", "lateral", "leading",
	"limit", "not", "null", "offset", "on", "only", "or", "order", "pivot",
	"placing", "primary", "qualify", "references", "returning", "select",
	"show", "some", "summarize", "symmetric", "table", "then", "to", "trailing",
	"true", "union", "unique", "unpivot", "using", "variadic", "when", "where",
	"window", "with",
}

// DuckDB is the DuckDB dialect.
var DuckDB = dialect.New(Config).
	Calls(dialect.StringCalls, dialect.MathCalls, map[string]dialect.CallHandler{
		"strings.Contains":  dialect.PredicateFunc("contains"),
		"strings.HasPrefix": dialect.PredicateFunc("starts_with"),
		"strings.HasSuffix": dialect.PredicateFunc("ends_with"),
	}).
	Members(dialect.ExtractMembers).
	Build()
