package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTranslation is the sentinel wrapped by every translation error.
var ErrTranslation = errors.New("translation failed")

// UnsupportedError is returned when a node kind, member or method has no
// translation rule.
type UnsupportedError struct {
	Kind   Kind
	Name   string // Go type, member or method name
	Reason string
}

func (e *UnsupportedError) Error() string {
	var b strings.Builder
	b.WriteString("unsupported ")
	b.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

// Unwrap returns ErrTranslation.
func (e *UnsupportedError) Unwrap() error { return ErrTranslation }

// Unsupported builds an UnsupportedError for n.
func Unsupported(n Node, reason string) *UnsupportedError {
	if n == nil {
		return &UnsupportedError{Name: "<nil>", Reason: reason}
	}
	return &UnsupportedError{Kind: n.Kind(), Name: fmt.Sprintf("%T", n), Reason: reason}
}

// AmbiguousComparisonError is returned when two constructed operands expose
// different member sets.
type AmbiguousComparisonError struct {
	Left  []string
	Right []string
}

func (e *AmbiguousComparisonError) Error() string {
	return fmt.Sprintf("cannot compare constructed values with different members: [%s] vs [%s]",
		strings.Join(e.Left, ", "), strings.Join(e.Right, ", "))
}

// Unwrap returns ErrTranslation.
func (e *AmbiguousComparisonError) Unwrap() error { return ErrTranslation }

// UndefinedColumnError is returned when a rewrite finds a column reference
// that its substituted source does not declare.
type UndefinedColumnError struct {
	Alias  *Alias
	Column string
}

func (e *UndefinedColumnError) Error() string {
	return fmt.Sprintf("reference to undefined column %s.%s", e.Alias, e.Column)
}

// Unwrap returns ErrTranslation.
func (e *UndefinedColumnError) Unwrap() error { return ErrTranslation }

// InvariantError signals a defect: a step observed a state it must never see.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("internal invariant violated in %s: %s", e.Op, e.Detail)
}

// Unwrap returns ErrTranslation.
func (e *InvariantError) Unwrap() error { return ErrTranslation }
