// Package snowflake provides the Snowflake SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package snowflake

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(Snowflake)
}

// Config is the Snowflake dialect configuration.
var Config = &core.DialectConfig{
	Name:          "snowflake",
	DefaultSchema: "PUBLIC",
	Placeholder:   core.PlaceholderQuestion,
	Paging:        core.PagingLimitOffset,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormUppercase, // Snowflake normalizes to uppercase
	},
	SupportsBooleanValues: true,
	SupportsLateral:       true,
	ConcatOperator:        "||",
	ReservedWords: []string{
		"account", "all", "alter", "and", "any", "as", "between", "by", "case",
		"cast", "check", "column", "connect", "create", "cross", "current",
		"delete", "distinct", "drop", "else", "exists", "false", "following",
		"for", "from", "full", "grant", "group", "having", "ilike", "in",
		"increment", "inner", "insert", "intersect", "into", "is", "join",
		"lateral", "left", "like", "localtime", "minus", "natural", "not",
		"null", "of", "on", "or", "order", "qualify", "regexp", "revoke",
		"right", "rlike", "row", "rows", "sample", "select", "set", "some",
		"start", "table", "tablesample", "then", "to", "trigger", "true",
		"try_cast", "union", "unique", "update", "using", "values", "when",
		"whenever", "where", "with",
	},
	TypeNames: map[core.SQLTypeKind]string{
		core.SQLFloat64: "FLOAT",
		core.SQLDecimal: "NUMBER",
		core.SQLBytes:   "BINARY",
		core.SQLUUID:    "VARCHAR(36)",
	},
}

// Snowflake is the Snowflake SQL dialect.
var Snowflake = dialect.New(Config).
	Calls(dialect.StringCalls, dialect.MathCalls, map[string]dialect.CallHandler{
		"strings.Contains": dialect.PredicateFunc("CONTAINS"),
	}).
	Members(dialect.ExtractMembers).
	Build()
