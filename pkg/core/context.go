package core

import (
	"reflect"
	"strconv"
)

// ParameterEntry is one row of the context's parameter table.
type ParameterEntry struct {
	Name    string
	Value   any
	Type    reflect.Type
	SQLType SQLType
}

// VariableEntry is one row of the context's variable table.
type VariableEntry struct {
	Name   string
	Values []any
	Array  any
	Type   reflect.Type
}

type valueKey struct {
	typ   reflect.Type
	value any
}

// CompilationContext is the per-translation state: the target language, an
// insertion-ordered parameter table and a variable table. It is discarded
// once the command is built.
type CompilationContext struct {
	Language Language

	params     []ParameterEntry
	paramIndex map[valueKey]int
	vars       []VariableEntry
}

// NewCompilationContext creates a context for one translation.
func NewCompilationContext(lang Language) *CompilationContext {
	return &CompilationContext{Language: lang, paramIndex: make(map[valueKey]int)}
}

// AddParameter records value and returns its entry. Equal comparable values
// of the same type share one entry.
func (c *CompilationContext) AddParameter(value any, t reflect.Type) ParameterEntry {
	shared := value == nil || reflect.ValueOf(value).Comparable()
	if shared {
		if i, ok := c.paramIndex[valueKey{typ: t, value: value}]; ok {
			return c.params[i]
		}
	}
	var st SQLType
	if c.Language != nil {
		st = c.Language.ColumnType(t)
	}
	e := ParameterEntry{Name: "p" + strconv.Itoa(len(c.params)), Value: value, Type: t, SQLType: st}
	if shared {
		c.paramIndex[valueKey{typ: t, value: value}] = len(c.params)
	}
	c.params = append(c.params, e)
	return e
}

// AddVariable records a multi-value literal taken from a slice or array.
func (c *CompilationContext) AddVariable(slice any) VariableEntry {
	rv := reflect.ValueOf(slice)
	values := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		values = append(values, rv.Index(i).Interface())
	}
	e := VariableEntry{Name: "v" + strconv.Itoa(len(c.vars)), Values: values, Array: slice, Type: rv.Type()}
	c.vars = append(c.vars, e)
	return e
}

// Parameters returns the parameter table in insertion order.
func (c *CompilationContext) Parameters() []ParameterEntry {
	return append([]ParameterEntry(nil), c.params...)
}

// Variables returns the variable table in insertion order.
func (c *CompilationContext) Variables() []VariableEntry {
	return append([]VariableEntry(nil), c.vars...)
}

// Variable returns the variable with the given name.
func (c *CompilationContext) Variable(name string) (VariableEntry, bool) {
	for _, v := range c.vars {
		if v.Name == name {
			return v, true
		}
	}
	return VariableEntry{}, false
}
