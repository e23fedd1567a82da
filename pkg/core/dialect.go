package core

import "reflect"

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly (MySQL, ClickHouse).
	NormCaseSensitive
	// NormCaseInsensitive normalizes to lowercase for comparison (SQL Server, DuckDB).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
	// PlaceholderNamed uses @name for parameters (SQL Server).
	PlaceholderNamed
)

func (p PlaceholderStyle) String() string {
	switch p {
	case PlaceholderQuestion:
		return "?"
	case PlaceholderDollar:
		return "$n"
	case PlaceholderNamed:
		return "@name"
	}
	return "unknown"
}

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}

// PagingStyle defines how skip/take bounds are expressed.
type PagingStyle int

const (
	// PagingLimitOffset emits LIMIT n OFFSET m.
	PagingLimitOffset PagingStyle = iota
	// PagingOffsetFetch emits OFFSET m ROWS FETCH NEXT n ROWS ONLY.
	PagingOffsetFetch
	// PagingRowNumber rewrites skip into a ROW_NUMBER() window and take into TOP.
	PagingRowNumber
)

func (p PagingStyle) String() string {
	switch p {
	case PagingLimitOffset:
		return "limit/offset"
	case PagingOffsetFetch:
		return "offset/fetch"
	case PagingRowNumber:
		return "row_number"
	}
	return "unknown"
}

// SQLTypeKind is the native column type family.
type SQLTypeKind int

// Native column type families.
const (
	SQLUnknown SQLTypeKind = iota
	SQLBool
	SQLInt16
	SQLInt32
	SQLInt64
	SQLFloat32
	SQLFloat64
	SQLDecimal
	SQLString
	SQLBytes
	SQLTimestamp
	SQLDate
	SQLUUID
)

// SQLType is a declared column type.
type SQLType struct {
	Kind      SQLTypeKind
	Length    int
	Precision int
	Scale     int
	NotNull   bool
}

// IsZero reports whether the type is undeclared.
func (t SQLType) IsZero() bool {
	return t == SQLType{}
}

// TypeSystem maps host types to native column types.
type TypeSystem interface {
	ColumnType(t reflect.Type) SQLType
}

// Language is the part of a dialect the core needs during translation.
type Language interface {
	TypeSystem
	// DialectName returns the registry name of the dialect.
	DialectName() string
}

// DialectConfig is the pure-data description of a SQL dialect. The dialect
// builder reads its feature flags and wires the matching formatting rules.
type DialectConfig struct {
	Name          string
	Identifiers   IdentifierConfig
	DefaultSchema string
	Placeholder   PlaceholderStyle
	Paging        PagingStyle

	// Feature flags
	SupportsBooleanValues   bool // TRUE/FALSE are first-class values
	SupportsArrayParameters bool // an IN list may bind as one array argument
	SupportsMultiCommands   bool // IF/BEGIN/DECLARE batches in one command
	SupportsLateral         bool // CROSS/OUTER APPLY spelled as LATERAL joins
	SupportsApply           bool // CROSS/OUTER APPLY spelled natively
	ProjectExpressions      bool // computed projector expressions run server-side

	ConcatOperator string // "||" or "+"
	// OffsetWithoutLimit is the LIMIT value emitted when only OFFSET is
	// wanted and the dialect cannot express that alone ("" means not needed).
	OffsetWithoutLimit string

	ReservedWords []string
	TypeNames     map[SQLTypeKind]string
}
