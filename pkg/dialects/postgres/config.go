// Package postgres provides the PostgreSQL SQL dialect definition.
// This package is pure Go with no database driver dependencies.
package postgres

import "github.com/leapstack-labs/leapquery/pkg/core"

// Config is the PostgreSQL dialect configuration.
// This is pure data - accessible by both the executor and the formatter.
// The Builder reads feature flags and auto-wires standard capabilities.
var Config = &core.DialectConfig{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Paging:        core.PagingLimitOffset,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormLowercase, // Postgres normalizes unquoted to lowercase
	},

	// Framework Features (auto-wired by Builder)
	SupportsBooleanValues:   true,
	SupportsArrayParameters: true, // x = ANY($1)
	SupportsLateral:         true,
	ConcatOperator:          "||",
	// PostgreSQL does NOT support these:
	// - CROSS/OUTER APPLY spelling
	// - IF/DECLARE batches outside plpgsql

	ReservedWords: postgresReservedWords,
	TypeNames: map[core.SQLTypeKind]string{
		core.SQLString:  "TEXT",
		core.SQLBytes:   "BYTEA",
		core.SQLUUID:    "UUID",
		core.SQLDecimal: "NUMERIC",
	},
}
