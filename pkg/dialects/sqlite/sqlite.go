// Package sqlite provides the SQLite SQL dialect definition.
package sqlite

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(SQLite)
}

// Config is the SQLite dialect configuration.
var Config = &core.DialectConfig{
	Name:          "sqlite",
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
	Paging:        core.PagingLimitOffset,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormCaseInsensitive,
	},
	SupportsBooleanValues: true, // TRUE/FALSE keywords since 3.23
	ConcatOperator:        "||",
	// SQLite has no bare OFFSET clause.
	OffsetWithoutLimit: "-1",

	ReservedWords: []string{
		"abort", "action", "all", "and", "as", "asc", "between", "by", "case",
		"check", "collate", "column", "commit", "constraint", "create", "cross",
		"default", "delete", "desc", "distinct", "drop", "else", "end", "escape",
		"except", "exists", "from", "full", "glob", "group", "having", "in",
		"index", "inner", "insert", "intersect", "into", "is", "join", "key",
		"left", "like", "limit", "match", "natural", "not", "null", "of",
		"offset", "on", "or", "order", "outer", "primary", "references",
		"regexp", "right", "select", "set", "table", "then", "to", "union",
		"unique", "update", "using", "values", "when", "where", "with",
	},
	TypeNames: map[core.SQLTypeKind]string{
		core.SQLBool:      "INTEGER",
		core.SQLInt16:     "INTEGER",
		core.SQLInt32:     "INTEGER",
		core.SQLInt64:     "INTEGER",
		core.SQLFloat32:   "REAL",
		core.SQLFloat64:   "REAL",
		core.SQLDecimal:   "NUMERIC",
		core.SQLString:    "TEXT",
		core.SQLBytes:     "BLOB",
		core.SQLTimestamp: "TEXT",
		core.SQLDate:      "TEXT",
		core.SQLUUID:      "TEXT",
	},
}

// SQLite is the SQLite dialect. Apply operators have no spelling.
var SQLite = dialect.New(Config).
	Calls(dialect.StringCalls, dialect.MathCalls, map[string]dialect.CallHandler{
		"math.Ceil": dialect.Func("CEILING"),
	}).
	Members(map[string]dialect.MemberHandler{
		"time.Time.Year":   dialect.Strftime("%Y"),
		"time.Time.Month":  dialect.Strftime("%m"),
		"time.Time.Day":    dialect.Strftime("%d"),
		"time.Time.Hour":   dialect.Strftime("%H"),
		"time.Time.Minute": dialect.Strftime("%M"),
		"time.Time.Second": dialect.Strftime("%S"),
	}).
	Build()
