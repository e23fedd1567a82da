package dialect

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
	uuidType  = reflect.TypeOf([16]byte{})
)

// ANSITypeNames are the SQL:2008 spellings of the native type families.
var ANSITypeNames = map[core.SQLTypeKind]string{
	core.SQLBool:      "BOOLEAN",
	core.SQLInt16:     "SMALLINT",
	core.SQLInt32:     "INTEGER",
	core.SQLInt64:     "BIGINT",
	core.SQLFloat32:   "REAL",
	core.SQLFloat64:   "DOUBLE PRECISION",
	core.SQLDecimal:   "DECIMAL",
	core.SQLString:    "VARCHAR",
	core.SQLBytes:     "VARBINARY",
	core.SQLTimestamp: "TIMESTAMP",
	core.SQLDate:      "DATE",
	core.SQLUUID:      "CHAR(36)",
}

func cloneTypeNames(m map[core.SQLTypeKind]string) map[core.SQLTypeKind]string {
	out := make(map[core.SQLTypeKind]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ColumnType implements core.TypeSystem. Non-pointer scalar types are
// declared NOT NULL; pointer types are nullable.
func (d *Dialect) ColumnType(t reflect.Type) core.SQLType {
	if t == nil {
		return core.SQLType{}
	}
	notNull := true
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		notNull = false
	}
	st := core.SQLType{Kind: kindOf(t), NotNull: notNull}
	switch st.Kind {
	case core.SQLUnknown:
		st.NotNull = false
	case core.SQLBytes:
		st.NotNull = false
	}
	return st
}

func kindOf(t reflect.Type) core.SQLTypeKind {
	switch t {
	case timeType:
		return core.SQLTimestamp
	case bytesType:
		return core.SQLBytes
	case uuidType:
		return core.SQLUUID
	}
	switch t.Kind() {
	case reflect.Bool:
		return core.SQLBool
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return core.SQLInt16
	case reflect.Int32, reflect.Uint16:
		return core.SQLInt32
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return core.SQLInt64
	case reflect.Float32:
		return core.SQLFloat32
	case reflect.Float64:
		return core.SQLFloat64
	case reflect.String:
		return core.SQLString
	}
	return core.SQLUnknown
}

// TypeName returns the native spelling of a declared type, including its
// length or precision when set.
func (d *Dialect) TypeName(st core.SQLType) string {
	name, ok := d.typeNames[st.Kind]
	if !ok {
		return "VARCHAR"
	}
	switch {
	case st.Kind == core.SQLDecimal && st.Precision > 0:
		return name + "(" + strconv.Itoa(st.Precision) + "," + strconv.Itoa(st.Scale) + ")"
	case (st.Kind == core.SQLString || st.Kind == core.SQLBytes) && st.Length > 0:
		// NVARCHAR(MAX) and friends carry a default size that a declared length replaces.
		if i := strings.IndexByte(name, '('); i >= 0 {
			name = name[:i]
		}
		return name + "(" + strconv.Itoa(st.Length) + ")"
	}
	return name
}
