// Package mapping supplies entity mappings from struct tags or from a YAML
// description of the schema.
package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// TagName is the struct tag TagResolver reads.
const TagName = "db"

// Tabler lets an entity type name its table.
type Tabler interface {
	TableName() string
}

// MappingError reports a type that cannot be mapped.
type MappingError struct {
	Type   string
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("mapping %s.%s: %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("mapping %s: %s", e.Type, e.Reason)
}

// TagResolver maps struct types through `db:"column,pk"` tags.
// Untagged exported fields map to their snake_case name; `db:"-"` skips a
// field. Mappings are computed once per type.
type TagResolver struct {
	cache sync.Map // reflect.Type -> *core.EntityMapping
}

// NewTagResolver creates a tag resolver.
func NewTagResolver() *TagResolver { return &TagResolver{} }

// Mapping implements core.MappingResolver.
func (r *TagResolver) Mapping(t reflect.Type) (*core.EntityMapping, error) {
	if t == nil {
		return nil, &MappingError{Type: "<nil>", Reason: "no type"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if m, ok := r.cache.Load(t); ok {
		return m.(*core.EntityMapping), nil
	}
	m, err := fromTags(t)
	if err != nil {
		return nil, err
	}
	actual, _ := r.cache.LoadOrStore(t, m)
	return actual.(*core.EntityMapping), nil
}

func fromTags(t reflect.Type) (*core.EntityMapping, error) {
	if t.Kind() != reflect.Struct {
		return nil, &MappingError{Type: t.String(), Reason: "not a struct"}
	}
	m := &core.EntityMapping{Type: t, Table: snakeCase(t.Name())}
	if tb, ok := reflect.Zero(t).Interface().(Tabler); ok {
		m.Table = tb.TableName()
	}
	if schema, table, ok := strings.Cut(m.Table, "."); ok {
		m.Schema, m.Table = schema, table
	}

	seen := map[string]string{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get(TagName)
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = snakeCase(f.Name)
		}
		if prev, dup := seen[name]; dup {
			return nil, &MappingError{Type: t.String(), Field: f.Name, Reason: fmt.Sprintf("column %q already mapped by %s", name, prev)}
		}
		seen[name] = f.Name
		mm := core.MemberMapping{Field: f.Name, Column: name, Type: f.Type}
		for _, opt := range strings.Split(opts, ",") {
			switch strings.TrimSpace(opt) {
			case "":
			case "pk":
				mm.PrimaryKey = true
			default:
				return nil, &MappingError{Type: t.String(), Field: f.Name, Reason: fmt.Sprintf("unknown tag option %q", opt)}
			}
		}
		m.Members = append(m.Members, mm)
	}
	if len(m.Members) == 0 {
		return nil, &MappingError{Type: t.String(), Reason: "no mapped fields"}
	}
	return m, nil
}

// snakeCase turns CustomerID into customer_id.
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
