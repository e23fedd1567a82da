package mapping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/leapstack-labs/leapquery/pkg/core"
	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a schema description.
//
//	entities:
//	  - name: Customer
//	    table: customers
//	    columns:
//	      - {field: ID, column: id, type: int, pk: true}
//	      - {field: Notes, column: notes, type: string, nullable: true}
type Document struct {
	Entities []EntityDoc `yaml:"entities"`
}

// EntityDoc describes one entity.
type EntityDoc struct {
	Name    string      `yaml:"name"`
	Table   string      `yaml:"table"`
	Schema  string      `yaml:"schema"`
	Columns []ColumnDoc `yaml:"columns"`
}

// ColumnDoc describes one mapped column.
type ColumnDoc struct {
	Field    string `yaml:"field"`
	Column   string `yaml:"column"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
	PK       bool   `yaml:"pk"`
}

// ParseError reports an invalid mapping document.
type ParseError struct {
	File    string
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// ErrUnknownEntity is returned for an entity name or type the document
// does not describe.
var ErrUnknownEntity = errors.New("unknown entity")

var columnTypes = map[string]reflect.Type{
	"bool":      reflect.TypeOf(false),
	"int":       reflect.TypeOf(int(0)),
	"int16":     reflect.TypeOf(int16(0)),
	"int32":     reflect.TypeOf(int32(0)),
	"int64":     reflect.TypeOf(int64(0)),
	"float32":   reflect.TypeOf(float32(0)),
	"float64":   reflect.TypeOf(float64(0)),
	"string":    reflect.TypeOf(""),
	"bytes":     reflect.TypeOf([]byte(nil)),
	"timestamp": reflect.TypeOf(time.Time{}),
}

// ColumnTypes lists the type names a document may use.
func ColumnTypes() []string {
	names := make([]string, 0, len(columnTypes))
	for n := range columnTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// YAMLResolver serves mappings described by a Document. Each entity gets a
// struct type built at load time, so rows can be read without compiled Go
// types.
type YAMLResolver struct {
	byName map[string]*core.EntityMapping
	byType map[reflect.Type]*core.EntityMapping
	names  []string
}

// LoadFile reads a mapping document from path.
func LoadFile(path string) (*YAMLResolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mappings: %w", err)
	}
	r, err := Load(bytes.NewReader(data))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return nil, err
	}
	return r, nil
}

// Load reads a mapping document. Unknown keys are rejected.
func Load(in io.Reader) (*YAMLResolver, error) {
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return FromDocument(&doc)
}

// FromDocument builds a resolver from a decoded document.
func FromDocument(doc *Document) (*YAMLResolver, error) {
	r := &YAMLResolver{
		byName: make(map[string]*core.EntityMapping),
		byType: make(map[reflect.Type]*core.EntityMapping),
	}
	for _, e := range doc.Entities {
		m, err := buildEntity(e)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(e.Name)
		if _, dup := r.byName[key]; dup {
			return nil, &ParseError{Message: fmt.Sprintf("entity %q defined twice", e.Name)}
		}
		r.byName[key] = m
		if _, taken := r.byType[m.Type]; !taken {
			r.byType[m.Type] = m
		}
		r.names = append(r.names, e.Name)
	}
	return r, nil
}

func buildEntity(e EntityDoc) (*core.EntityMapping, error) {
	if e.Name == "" {
		return nil, &ParseError{Message: "entity without a name"}
	}
	if len(e.Columns) == 0 {
		return nil, &ParseError{Message: fmt.Sprintf("entity %q has no columns", e.Name)}
	}
	m := &core.EntityMapping{Table: e.Table, Schema: e.Schema}
	if m.Table == "" {
		m.Table = snakeCase(e.Name)
	}
	fields := make([]reflect.StructField, 0, len(e.Columns))
	seen := map[string]bool{}
	for _, c := range e.Columns {
		if c.Field == "" && c.Column == "" {
			return nil, &ParseError{Message: fmt.Sprintf("entity %q: column without field or name", e.Name)}
		}
		field := c.Field
		if field == "" {
			field = exportedName(c.Column)
		}
		column := c.Column
		if column == "" {
			column = snakeCase(field)
		}
		if !isExported(field) {
			return nil, &ParseError{Message: fmt.Sprintf("entity %q: field %q must be an identifier starting with an upper-case letter", e.Name, field)}
		}
		if seen[field] {
			return nil, &ParseError{Message: fmt.Sprintf("entity %q: field %q defined twice", e.Name, field)}
		}
		seen[field] = true
		typeName := c.Type
		if typeName == "" {
			typeName = "string"
		}
		t, ok := columnTypes[typeName]
		if !ok {
			return nil, &ParseError{Message: fmt.Sprintf("entity %q: column %q has unknown type %q (want one of %s)",
				e.Name, column, c.Type, strings.Join(ColumnTypes(), ", "))}
		}
		if c.Nullable {
			t = reflect.PointerTo(t)
		}
		fields = append(fields, reflect.StructField{
			Name: field,
			Type: t,
			Tag:  reflect.StructTag(fmt.Sprintf(`db:%q json:%q`, column, column)),
		})
		m.Members = append(m.Members, core.MemberMapping{
			Field: field, Column: column, Type: t, PrimaryKey: c.PK,
		})
	}
	m.Type = reflect.StructOf(fields)
	return m, nil
}

// Entity returns the mapping of the named entity. Names match without
// regard to case.
func (r *YAMLResolver) Entity(name string) (*core.EntityMapping, error) {
	if m, ok := r.byName[strings.ToLower(name)]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownEntity, name)
}

// Names lists the entities in document order.
func (r *YAMLResolver) Names() []string { return append([]string(nil), r.names...) }

// Mapping implements core.MappingResolver for the generated entity types.
// Entities with identical columns share a type; the first one wins.
func (r *YAMLResolver) Mapping(t reflect.Type) (*core.EntityMapping, error) {
	if m, ok := r.byType[t]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w type %v", ErrUnknownEntity, t)
}

func exportedName(column string) string {
	var b strings.Builder
	upper := true
	for _, r := range column {
		if r == '_' || r == '-' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isExported(name string) bool {
	for i, r := range name {
		switch {
		case i == 0 && !unicode.IsUpper(r):
			return false
		case !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_':
			return false
		}
	}
	return name != ""
}
