// Package tsql provides the Microsoft SQL Server dialect definition.
//
// T-SQL has no boolean values, binds parameters by name and pages with
// ROW_NUMBER() windows, so it exercises the formatter paths the other
// dialects do not.
package tsql

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
	"github.com/leapstack-labs/leapquery/pkg/dialect"
)

func init() {
	dialect.Register(TSQL)
}

// Config is the T-SQL dialect configuration.
var Config = &core.DialectConfig{
	Name:          "tsql",
	DefaultSchema: "dbo",
	Placeholder:   core.PlaceholderNamed,
	Paging:        core.PagingRowNumber,
	Identifiers: core.IdentifierConfig{
		Quote:         "[",
		QuoteEnd:      "]",
		Escape:        "]]",
		Normalization: core.NormCaseInsensitive,
	},
	SupportsMultiCommands: true,
	SupportsApply:         true,
	ConcatOperator:        "+",

	ReservedWords: []string{
		"add", "all", "and", "any", "as", "asc", "between", "by", "case",
		"check", "column", "constraint", "create", "cross", "current", "database",
		"default", "delete", "desc", "distinct", "else", "end", "exists",
		"file", "for", "foreign", "from", "full", "function", "group", "having",
		"identity", "in", "index", "inner", "insert", "into", "is", "join", "key",
		"left", "like", "not", "null", "of", "on", "or", "order", "outer", "over",
		"percent", "primary", "procedure", "public", "references", "right",
		"rowcount", "schema", "select", "set", "table", "then", "to", "top",
		"tran", "union", "unique", "update", "user", "values", "view", "when",
		"where", "with",
	},
	TypeNames: map[core.SQLTypeKind]string{
		core.SQLBool:      "BIT",
		core.SQLInt32:     "INT",
		core.SQLFloat64:   "FLOAT",
		core.SQLString:    "NVARCHAR(MAX)",
		core.SQLBytes:     "VARBINARY(MAX)",
		core.SQLTimestamp: "DATETIME2",
		core.SQLUUID:      "UNIQUEIDENTIFIER",
	},
}

// TSQL is the SQL Server dialect.
var TSQL = dialect.New(Config).
	Calls(dialect.StringCalls, dialect.MathCalls, map[string]dialect.CallHandler{
		"len":       dialect.Func("LEN"),
		"math.Ceil": dialect.Func("CEILING"),
	}).
	Members(map[string]dialect.MemberHandler{
		"time.Time.Year":   dialect.DatePart("year"),
		"time.Time.Month":  dialect.DatePart("month"),
		"time.Time.Day":    dialect.DatePart("day"),
		"time.Time.Hour":   dialect.DatePart("hour"),
		"time.Time.Minute": dialect.DatePart("minute"),
		"time.Time.Second": dialect.DatePart("second"),
	}).
	Build()
