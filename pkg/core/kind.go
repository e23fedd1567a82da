package core

import "strconv"

// Kind tags every node in the model.
type Kind int

// Host-level kinds. These appear in the tree handed over by the binder and are
// either translated or evaluated locally before formatting.
const (
	KindConstant Kind = iota
	KindParameter
	KindLambda
	KindMember
	KindCall
	KindInvoke
	KindBinary
	KindUnary
	KindConditional
	KindNew
)

// Relational kinds.
const (
	KindTable Kind = iota + 100
	KindColumn
	KindSelect
	KindProjection
	KindJoin
	KindAggregate
	KindAggregateSubquery
	KindScalar
	KindExists
	KindIn
	KindGrouping
	KindIsNull
	KindBetween
	KindRowNumber
	KindNamedValue
	KindOuterJoined
	KindBatch
	KindFunction
	KindEntity
)

// Command kinds.
const (
	KindBlock Kind = iota + 200
	KindIf
	KindDeclaration
	KindVariable
)

var kindNames = map[Kind]string{
	KindConstant:          "Constant",
	KindParameter:         "Parameter",
	KindLambda:            "Lambda",
	KindMember:            "Member",
	KindCall:              "Call",
	KindInvoke:            "Invoke",
	KindBinary:            "Binary",
	KindUnary:             "Unary",
	KindConditional:       "Conditional",
	KindNew:               "New",
	KindTable:             "Table",
	KindColumn:            "Column",
	KindSelect:            "Select",
	KindProjection:        "Projection",
	KindJoin:              "Join",
	KindAggregate:         "Aggregate",
	KindAggregateSubquery: "AggregateSubquery",
	KindScalar:            "Scalar",
	KindExists:            "Exists",
	KindIn:                "In",
	KindGrouping:          "Grouping",
	KindIsNull:            "IsNull",
	KindBetween:           "Between",
	KindRowNumber:         "RowNumber",
	KindNamedValue:        "NamedValue",
	KindOuterJoined:       "OuterJoined",
	KindBatch:             "Batch",
	KindFunction:          "Function",
	KindEntity:            "Entity",
	KindBlock:             "Block",
	KindIf:                "If",
	KindDeclaration:       "Declaration",
	KindVariable:          "Variable",
}

// String returns the kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsRelational reports whether k is a relational (database) kind.
func (k Kind) IsRelational() bool {
	return k >= KindTable && k < KindBlock
}

// IsCommand reports whether k is a command kind.
func (k Kind) IsCommand() bool {
	return k >= KindBlock
}
