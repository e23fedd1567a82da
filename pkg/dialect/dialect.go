// Package dialect provides SQL dialect configuration for the formatter and
// the type system used during translation.
//
// This package contains the public contract for dialect definitions. Concrete
// dialect implementations are registered from pkg/dialects/*/ packages.
package dialect

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters
	Paging        core.PagingStyle      // How skip/take are expressed

	booleanValues      bool
	arrayParameters    bool
	multiCommands      bool
	projectExpressions bool
	concatOperator     string
	offsetWithoutLimit string

	reservedWords map[string]struct{}
	typeNames     map[core.SQLTypeKind]string
	joinKeywords  map[core.JoinType]string
	calls         map[string]CallHandler
	members       map[string]MemberHandler
}

var _ core.Language = (*Dialect)(nil)

// DialectName implements core.Language.
func (d *Dialect) DialectName() string {
	return d.Name
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return cases.Upper(language.Und).String(name)
	case core.NormLowercase:
		return cases.Lower(language.Und).String(name)
	case core.NormCaseInsensitive:
		return cases.Fold().String(name)
	default: // NormCaseSensitive
		return name
	}
}

// SupportsBooleanValues reports whether TRUE/FALSE can appear as values.
func (d *Dialect) SupportsBooleanValues() bool { return d.booleanValues }

// SupportsArrayParameters reports whether an IN list binds as one array.
func (d *Dialect) SupportsArrayParameters() bool { return d.arrayParameters }

// SupportsMultiCommands reports whether IF/BEGIN/DECLARE batches run as one command.
func (d *Dialect) SupportsMultiCommands() bool { return d.multiCommands }

// ConcatOperator returns the string concatenation operator.
func (d *Dialect) ConcatOperator() string { return d.concatOperator }

// OffsetWithoutLimit returns the LIMIT value required in front of a bare
// OFFSET, or "" when OFFSET may stand alone.
func (d *Dialect) OffsetWithoutLimit() string { return d.offsetWithoutLimit }

// JoinKeyword returns the spelling of a join operator, or false when the
// dialect cannot express it.
func (d *Dialect) JoinKeyword(jt core.JoinType) (string, bool) {
	kw, ok := d.joinKeywords[jt]
	return kw, ok
}

// FormatPlaceholder returns the placeholder for a parameter. index is the
// 1-based position among distinct parameters.
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar
// style and "@name" for PlaceholderNamed.
func (d *Dialect) FormatPlaceholder(index int, name string) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case core.PlaceholderNamed:
		return "@" + name
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[d.NormalizeName(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it is a reserved word
// or is not a plain lowercase-safe name.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) || !isPlainIdentifier(name) || d.NormalizeName(name) != name {
		return d.QuoteIdentifier(name)
	}
	return name
}

func isPlainIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// CallHandler returns the handler for a method or function call.
func (d *Dialect) CallHandler(method string) (CallHandler, bool) {
	h, ok := d.calls[method]
	return h, ok
}

// MemberHandler returns the handler for a member access on a value of type t.
func (d *Dialect) MemberHandler(t reflect.Type, member string) (MemberHandler, bool) {
	if t == nil {
		return MemberHandler{}, false
	}
	h, ok := d.members[MemberKey(t, member)]
	return h, ok
}

// MemberKey is the lookup key for a member handler, e.g. "time.Time.Year".
func MemberKey(t reflect.Type, member string) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String() + "." + member
}

// CanBeColumn reports whether a projector subexpression may be computed by
// the server. Work is pushed to the client unless the dialect opts in.
func (d *Dialect) CanBeColumn(n core.Node) bool {
	if !d.projectExpressions {
		return false
	}
	switch x := n.(type) {
	case *core.Binary, *core.Conditional, *core.IsNull, *core.Between:
		return true
	case *core.Unary:
		return x.Op != core.OpConvert
	case *core.Call:
		_, ok := d.calls[x.Method]
		return ok
	case *core.Member:
		if x.Expr == nil {
			return false
		}
		_, ok := d.MemberHandler(x.Expr.Type(), x.Name)
		return ok
	}
	return false
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
	config  *core.DialectConfig // Optional config for auto-wiring features
}

// NewDialect creates a new dialect builder with the given name and ANSI defaults.
func NewDialect(name string) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name: name,
			Identifiers: core.IdentifierConfig{
				Quote:         `"`,
				QuoteEnd:      `"`,
				Escape:        `""`,
				Normalization: core.NormLowercase,
			},
			Paging:         core.PagingOffsetFetch,
			booleanValues:  true,
			concatOperator: "||",
			reservedWords:  make(map[string]struct{}),
			typeNames:      cloneTypeNames(ANSITypeNames),
			joinKeywords:   cloneJoins(ANSIJoins),
			calls:          make(map[string]CallHandler),
			members:        make(map[string]MemberHandler),
		},
	}
}

// New creates a dialect builder from a DialectConfig.
// The builder will auto-wire features based on config flags when Build() is called.
// This is the preferred constructor for dialects that use feature flags.
func New(cfg *core.DialectConfig) *Builder {
	b := NewDialect(cfg.Name)
	b.config = cfg
	b.dialect.Identifiers = cfg.Identifiers
	b.dialect.DefaultSchema = cfg.DefaultSchema
	b.dialect.Placeholder = cfg.Placeholder
	b.dialect.Paging = cfg.Paging
	return b
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// PagingStyle sets how skip/take are expressed.
func (b *Builder) PagingStyle(style core.PagingStyle) *Builder {
	b.dialect.Paging = style
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[b.dialect.NormalizeName(w)] = struct{}{}
	}
	return b
}

// TypeNames overrides native type spellings.
func (b *Builder) TypeNames(names map[core.SQLTypeKind]string) *Builder {
	for k, v := range names {
		b.dialect.typeNames[k] = v
	}
	return b
}

// JoinKeywords adds or overrides join spellings in bulk.
func (b *Builder) JoinKeywords(sets ...map[core.JoinType]string) *Builder {
	for _, set := range sets {
		for jt, kw := range set {
			b.dialect.joinKeywords[jt] = kw
		}
	}
	return b
}

// Calls registers call handlers in bulk. Later sets override earlier ones.
func (b *Builder) Calls(sets ...map[string]CallHandler) *Builder {
	for _, set := range sets {
		for name, h := range set {
			b.dialect.calls[name] = h
		}
	}
	return b
}

// Members registers member handlers in bulk. Later sets override earlier ones.
func (b *Builder) Members(sets ...map[string]MemberHandler) *Builder {
	for _, set := range sets {
		for name, h := range set {
			b.dialect.members[name] = h
		}
	}
	return b
}

// Build returns the constructed dialect.
// If the builder was created with New(cfg), this auto-wires features based on config flags.
func (b *Builder) Build() *Dialect {
	cfg := b.config
	if cfg == nil {
		return b.dialect
	}

	d := b.dialect
	d.booleanValues = cfg.SupportsBooleanValues
	d.arrayParameters = cfg.SupportsArrayParameters
	d.multiCommands = cfg.SupportsMultiCommands
	d.projectExpressions = cfg.ProjectExpressions
	d.offsetWithoutLimit = cfg.OffsetWithoutLimit
	if cfg.ConcatOperator != "" {
		d.concatOperator = cfg.ConcatOperator
	}

	b.WithReservedWords(cfg.ReservedWords...)
	b.TypeNames(cfg.TypeNames)

	// ===== Auto-wire join extensions =====

	if cfg.SupportsLateral {
		b.JoinKeywords(LateralJoins)
	}
	if cfg.SupportsApply {
		b.JoinKeywords(ApplyJoins)
	}

	return d
}
