package dialect

import "github.com/leapstack-labs/leapquery/pkg/core"

// Operator precedence levels, higher binds tighter.
const (
	PrecedenceNone = iota
	PrecedenceOr
	PrecedenceAnd
	PrecedenceNot
	PrecedenceComparison
	PrecedenceAddition
	PrecedenceMultiply
	PrecedenceUnary
)

// OperatorDef is the SQL spelling and precedence of a binary operator.
type OperatorDef struct {
	Symbol     string
	Precedence int
}

// ANSIOperators contains standard SQL operators with their precedence.
// OpCoalesce has no infix spelling and is written as COALESCE(a, b).
var ANSIOperators = map[core.BinaryOp]OperatorDef{
	// Logical operators (lowest precedence)
	core.OpOr:  {"OR", PrecedenceOr},
	core.OpAnd: {"AND", PrecedenceAnd},

	// Comparison operators
	core.OpEq: {"=", PrecedenceComparison},
	core.OpNe: {"<>", PrecedenceComparison},
	core.OpLt: {"<", PrecedenceComparison},
	core.OpLe: {"<=", PrecedenceComparison},
	core.OpGt: {">", PrecedenceComparison},
	core.OpGe: {">=", PrecedenceComparison},

	// Arithmetic operators
	core.OpAdd: {"+", PrecedenceAddition},
	core.OpSub: {"-", PrecedenceAddition},

	// Multiplicative operators (highest precedence for binary ops)
	core.OpMul: {"*", PrecedenceMultiply},
	core.OpDiv: {"/", PrecedenceMultiply},
	core.OpMod: {"%", PrecedenceMultiply},
}

// Operator returns the definition of a binary operator.
func (d *Dialect) Operator(op core.BinaryOp) (OperatorDef, bool) {
	def, ok := ANSIOperators[op]
	return def, ok
}
