package core

import "reflect"

// Block is a sequence of commands. Its result is the result of the last one.
type Block struct {
	Commands []Node
}

// NewBlock creates a command block.
func NewBlock(commands ...Node) *Block { return &Block{Commands: commands} }

// Kind implements Node.
func (b *Block) Kind() Kind { return KindBlock }

// Type implements Node.
func (b *Block) Type() reflect.Type {
	if len(b.Commands) == 0 {
		return VoidType
	}
	return b.Commands[len(b.Commands)-1].Type()
}

// Update returns b if every command is unchanged.
func (b *Block) Update(commands []Node) *Block {
	if sameNodes(commands, b.Commands) {
		return b
	}
	return &Block{Commands: commands}
}

// If runs IfTrue when Check holds and IfFalse (optional) otherwise.
type If struct {
	Check   Node
	IfTrue  Node
	IfFalse Node
}

// NewIf creates a conditional command.
func NewIf(check, ifTrue, ifFalse Node) *If {
	return &If{Check: check, IfTrue: ifTrue, IfFalse: ifFalse}
}

// Kind implements Node.
func (i *If) Kind() Kind { return KindIf }

// Type implements Node.
func (i *If) Type() reflect.Type { return i.IfTrue.Type() }

// Update returns i if every part is unchanged.
func (i *If) Update(check, ifTrue, ifFalse Node) *If {
	if check == i.Check && ifTrue == i.IfTrue && ifFalse == i.IfFalse {
		return i
	}
	return &If{Check: check, IfTrue: ifTrue, IfFalse: ifFalse}
}

// VariableDeclaration declares one variable, initialised from a column of
// the declaration's source select.
type VariableDeclaration struct {
	Name    string
	SQLType SQLType
	Expr    Node
}

// Declaration declares variables. When Source is set, each variable takes
// the value of the matching expression evaluated over the first row of Source.
type Declaration struct {
	Variables []VariableDeclaration
	Source    *Select
}

// NewDeclaration creates a variable declaration.
func NewDeclaration(vars []VariableDeclaration, source *Select) *Declaration {
	return &Declaration{Variables: vars, Source: source}
}

// Kind implements Node.
func (d *Declaration) Kind() Kind { return KindDeclaration }

// Type implements Node.
func (d *Declaration) Type() reflect.Type { return VoidType }

// Update returns d if the variables and source are unchanged.
func (d *Declaration) Update(vars []VariableDeclaration, source *Select) *Declaration {
	if source == d.Source && len(vars) == len(d.Variables) {
		same := true
		for i := range vars {
			if vars[i] != d.Variables[i] {
				same = false
				break
			}
		}
		if same {
			return d
		}
	}
	return &Declaration{Variables: vars, Source: source}
}

// Variable references a declared variable.
type Variable struct {
	Name    string
	SQLType SQLType
	typ     reflect.Type
}

// NewVariable creates a variable reference.
func NewVariable(t reflect.Type, sqlType SQLType, name string) *Variable {
	return &Variable{Name: name, SQLType: sqlType, typ: t}
}

// Kind implements Node.
func (v *Variable) Kind() Kind { return KindVariable }

// Type implements Node.
func (v *Variable) Type() reflect.Type { return v.typ }
