package dialect

import (
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Writer is the formatter surface that handlers write through.
type Writer interface {
	// Write appends raw command text.
	Write(s string)
	// WriteExpr formats a value expression, parenthesized when compound.
	WriteExpr(n core.Node) error
	// Dialect returns the dialect being formatted.
	Dialect() *Dialect
}

// CallHandler translates a well-known method or function call. For method
// calls the receiver is passed as the first argument.
type CallHandler struct {
	// Predicate marks handlers that produce a boolean condition rather than
	// a value.
	Predicate bool
	Format    func(w Writer, args []core.Node) error
}

// MemberHandler translates a well-known member access.
type MemberHandler struct {
	Format func(w Writer, expr core.Node) error
}

// ---------- Handler Toolbox ----------

// Func returns a handler that writes NAME(arg, ...).
func Func(name string) CallHandler {
	return CallHandler{Format: func(w Writer, args []core.Node) error {
		w.Write(name + "(")
		for i, a := range args {
			if i > 0 {
				w.Write(", ")
			}
			if err := w.WriteExpr(a); err != nil {
				return err
			}
		}
		w.Write(")")
		return nil
	}}
}

// PredicateFunc is Func for functions that return a boolean condition.
func PredicateFunc(name string) CallHandler {
	h := Func(name)
	h.Predicate = true
	return h
}

// Like returns a predicate handler that matches args[0] against args[1]
// surrounded by the given wildcards.
func Like(prefix, suffix bool) CallHandler {
	return CallHandler{Predicate: true, Format: func(w Writer, args []core.Node) error {
		concat := " " + w.Dialect().ConcatOperator() + " "
		if err := w.WriteExpr(args[0]); err != nil {
			return err
		}
		w.Write(" LIKE ")
		if prefix {
			w.Write("'%'" + concat)
		}
		if err := w.WriteExpr(args[1]); err != nil {
			return err
		}
		if suffix {
			w.Write(concat + "'%'")
		}
		return nil
	}}
}

// Extract returns a member handler that writes EXTRACT(PART FROM expr).
func Extract(part string) MemberHandler {
	return MemberHandler{Format: func(w Writer, expr core.Node) error {
		w.Write("EXTRACT(" + part + " FROM ")
		if err := w.WriteExpr(expr); err != nil {
			return err
		}
		w.Write(")")
		return nil
	}}
}

// DatePart returns a member handler that writes DATEPART(part, expr).
func DatePart(part string) MemberHandler {
	return MemberHandler{Format: func(w Writer, expr core.Node) error {
		w.Write("DATEPART(" + part + ", ")
		if err := w.WriteExpr(expr); err != nil {
			return err
		}
		w.Write(")")
		return nil
	}}
}

// Strftime returns a member handler that writes CAST(strftime(f, expr) AS INTEGER).
func Strftime(format string) MemberHandler {
	return MemberHandler{Format: func(w Writer, expr core.Node) error {
		w.Write("CAST(strftime('" + format + "', ")
		if err := w.WriteExpr(expr); err != nil {
			return err
		}
		w.Write(") AS INTEGER)")
		return nil
	}}
}

// ---------- Standard Handler Sets ----------

// StringCalls covers the strings package and len.
var StringCalls = map[string]CallHandler{
	"strings.ToUpper":   Func("UPPER"),
	"strings.ToLower":   Func("LOWER"),
	"strings.TrimSpace": Func("TRIM"),
	"strings.Contains":  Like(true, true),
	"strings.HasPrefix": Like(false, true),
	"strings.HasSuffix": Like(true, false),
	"len":               Func("LENGTH"),
}

// MathCalls covers the math package.
var MathCalls = map[string]CallHandler{
	"math.Abs":   Func("ABS"),
	"math.Floor": Func("FLOOR"),
	"math.Ceil":  Func("CEIL"),
	"math.Round": Func("ROUND"),
	"math.Sqrt":  Func("SQRT"),
	"math.Pow":   Func("POWER"),
}

// ExtractMembers covers time.Time date parts via EXTRACT.
var ExtractMembers = map[string]MemberHandler{
	"time.Time.Year":   Extract("YEAR"),
	"time.Time.Month":  Extract("MONTH"),
	"time.Time.Day":    Extract("DAY"),
	"time.Time.Hour":   Extract("HOUR"),
	"time.Time.Minute": Extract("MINUTE"),
	"time.Time.Second": Extract("SECOND"),
}
