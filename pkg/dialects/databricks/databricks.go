// Package databricks provides the Databricks SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package databricks

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(Databricks)
}

// Config is the Databricks dialect configuration.
var Config = &core.DialectConfig{
	Name:          "databricks",
	DefaultSchema: "default",
	Placeholder:   core.PlaceholderQuestion,
	Paging:        core.PagingLimitOffset,
	Identifiers: core.IdentifierConfig{
		Quote:         "`",
		QuoteEnd:      "`",
		Escape:        "``",
		Normalization: core.NormCaseInsensitive,
	},
	SupportsBooleanValues: true,
	SupportsLateral:       true,
	ProjectExpressions:    true,
	ConcatOperator:        "||",
	ReservedWords: []string{
		"all", "and", "anti", "any", "as", "between", "both", "by", "case",
		"cast", "check", "collate", "column", "constraint", "create", "cross",
		"cube", "current", "distinct", "div", "else", "end", "except", "exists",
		"false", "fetch", "for", "foreign", "from", "full", "grant", "group",
		"having", "in", "inner", "intersect", "interval", "into", "is", "join",
		"lateral", "leading", "left", "like", "limit", "minus", "natural", "not",
		"null", "of", "offset", "on", "or", "order", "outer", "primary",
		"qualify", "references", "right", "rlike", "rollup", "select", "semi",
		"some", "table", "then", "to", "trailing", "true", "union", "unique",
		"user", "using", "when", "where", "window", "with",
	},
	TypeNames: map[core.SQLTypeKind]string{
		core.SQLInt32:   "INT",
		core.SQLFloat32: "FLOAT",
		core.SQLFloat64: "DOUBLE",
		core.SQLString:  "STRING",
		core.SQLBytes:   "BINARY",
		core.SQLUUID:    "STRING",
	},
}

// Databricks is the Databricks SQL dialect.
var Databricks = dialect.New(Config).
	Calls(dialect.StringCalls, dialect.MathCalls, map[string]dialect.CallHandler{
		"strings.HasPrefix": dialect.PredicateFunc("startswith"),
		"strings.HasSuffix": dialect.PredicateFunc("endswith"),
	}).
	Members(dialect.ExtractMembers).
	Build()
