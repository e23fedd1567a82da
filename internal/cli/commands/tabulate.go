package commands

import (
	"reflect"
	"time"

	"github.com/leapstack-labs/leapquery/internal/cli/output"
)

var timeType = reflect.TypeOf(time.Time{})

// tabulate flattens a query result into table rows. Sequences give one row
// per element; nested structs, such as the sides of a join, become
// Outer.Field columns. A scalar result is a single "value" cell.
func tabulate(v any) (headers []string, rows [][]any) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return []string{"value"}, [][]any{{"NULL"}}
	}
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		h, row := flatten(rv)
		return h, [][]any{row}
	}
	for i := 0; i < rv.Len(); i++ {
		h, row := flatten(rv.Index(i))
		if headers == nil {
			headers = h
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func flatten(v reflect.Value) ([]string, []any) {
	var headers []string
	var cells []any
	var walk func(prefix string, v reflect.Value)
	walk = func(prefix string, v reflect.Value) {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				headers = append(headers, label(prefix))
				cells = append(cells, "NULL")
				return
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct || v.Type() == timeType {
			headers = append(headers, label(prefix))
			cells = append(cells, output.FormatValue(v.Interface()))
			return
		}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			name := t.Field(i).Name
			if prefix != "" {
				name = prefix + "." + name
			}
			walk(name, v.Field(i))
		}
	}
	walk("", v)
	return headers, cells
}

func label(prefix string) string {
	if prefix == "" {
		return "value"
	}
	return prefix
}
