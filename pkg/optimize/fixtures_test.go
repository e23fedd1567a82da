package optimize

import (
	"reflect"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

type customer struct {
	ID    int
	Name  string
	Notes string
}

type orderLine struct {
	OrderID int
	Line    int
	Sku     string
}

var customers = &core.EntityMapping{
	Type:  reflect.TypeOf(customer{}),
	Table: "customers",
	Members: []core.MemberMapping{
		{Field: "ID", Column: "id", Type: core.IntType, PrimaryKey: true},
		{Field: "Name", Column: "name", Type: core.StringType},
		{Field: "Notes", Column: "notes", Type: core.StringType},
	},
}

var orderLines = &core.EntityMapping{
	Type:  reflect.TypeOf(orderLine{}),
	Table: "order_lines",
	Members: []core.MemberMapping{
		{Field: "OrderID", Column: "order_id", Type: core.IntType, PrimaryKey: true},
		{Field: "Line", Column: "line", Type: core.IntType, PrimaryKey: true},
		{Field: "Sku", Column: "sku", Type: core.StringType},
	},
}

func intCol(a *core.Alias, name string) *core.Column {
	return core.NewColumn(core.IntType, core.SQLType{}, a, name)
}

func strCol(a *core.Alias, name string) *core.Column {
	return core.NewColumn(core.StringType, core.SQLType{}, a, name)
}

func decl(c *core.Column) core.ColumnDeclaration {
	return core.ColumnDeclaration{Name: c.Name, Expr: c}
}

// customerSelect selects id, name and notes from a fresh customers table.
func customerSelect(sa, ta *core.Alias) *core.Select {
	return core.NewSelect(sa, []core.ColumnDeclaration{
		decl(intCol(ta, "id")),
		decl(strCol(ta, "name")),
		decl(strCol(ta, "notes")),
	}, core.NewTable(ta, customers), nil)
}

func columnNames(cols []core.ColumnDeclaration) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
