// Package querydoc reads query documents: YAML descriptions of a query
// over mapped entities, built into node trees with pkg/query.
//
//	from: Customer
//	where:
//	  - {field: Name, op: eq, value: $name}
//	order_by: [ID, "Name desc"]
//	skip: 10
//	take: 5
package querydoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is one query.
type Document struct {
	From     string      `yaml:"from"`
	Join     *Join       `yaml:"join"`
	Where    []Condition `yaml:"where"`
	GroupBy  *GroupBy    `yaml:"group_by"`
	Select   []string    `yaml:"select"`
	OrderBy  []string    `yaml:"order_by"`
	Distinct bool        `yaml:"distinct"`
	Skip     *int        `yaml:"skip"`
	Take     *int        `yaml:"take"`
	// Result is list (the default), count, first, first_or_default,
	// single, single_or_default, any, sum, min, max or avg.
	Result string `yaml:"result"`
	// Field is the aggregated field for sum, min, max and avg.
	Field string `yaml:"field"`
}

// Join pairs every row with the rows of another entity. After a join,
// fields are addressed as Entity.Field.
type Join struct {
	Entity string `yaml:"entity"`
	// As names the joined side; the entity name by default.
	As    string `yaml:"as"`
	Outer string `yaml:"outer"`
	Inner string `yaml:"inner"`
	Left  bool   `yaml:"left"`
	// Cross joins without a condition.
	Cross bool `yaml:"cross"`
}

// GroupBy partitions rows by key fields and computes aggregates per group.
type GroupBy struct {
	Keys       []string    `yaml:"keys"`
	Aggregates []Aggregate `yaml:"aggregates"`
}

// Aggregate is one computed group column.
type Aggregate struct {
	As    string `yaml:"as"`
	Func  string `yaml:"func"`
	Field string `yaml:"field"`
}

// Condition is a predicate. Any holds alternatives joined with OR; the
// other fields describe a single comparison.
type Condition struct {
	Field string `yaml:"field"`
	// Op is eq, ne, lt, le, gt, ge, in, not_in, between, is_null or not_null.
	Op     string      `yaml:"op"`
	Value  any         `yaml:"value"`
	Values []any       `yaml:"values"`
	Other  string      `yaml:"other"`
	Any    []Condition `yaml:"any"`
}

// ParseError reports an invalid document.
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

// Load decodes a document. Unknown keys are rejected.
func Load(in io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(in)
	dec.KnownFields(true)
	var d Document
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Message: "empty query document"}
		}
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if d.From == "" {
		return nil, &ParseError{Message: "from is required"}
	}
	return &d, nil
}

// LoadFile reads a document from path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}
	d, err := Load(bytes.NewReader(data))
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.File = path
		}
		return nil, err
	}
	return d, nil
}
