package core

import "reflect"

// MemberMapping maps one entity field to a column.
type MemberMapping struct {
	Field      string
	Column     string
	Type       reflect.Type
	PrimaryKey bool
}

// EntityMapping maps an entity type to a table.
type EntityMapping struct {
	Type    reflect.Type
	Table   string
	Schema  string
	Members []MemberMapping
}

// Member returns the mapping for a field.
func (m *EntityMapping) Member(field string) (MemberMapping, bool) {
	for _, mm := range m.Members {
		if mm.Field == field {
			return mm, true
		}
	}
	return MemberMapping{}, false
}

// PrimaryKeys returns the primary-key members in declaration order.
func (m *EntityMapping) PrimaryKeys() []MemberMapping {
	var keys []MemberMapping
	for _, mm := range m.Members {
		if mm.PrimaryKey {
			keys = append(keys, mm)
		}
	}
	return keys
}

// MappingResolver supplies entity mappings. Implementations live outside
// the core (see pkg/mapping).
type MappingResolver interface {
	Mapping(entityType reflect.Type) (*EntityMapping, error)
}
