package eval

import (
	"math"
	"strings"
	"sync"
)

var (
	funcsMu sync.RWMutex
	funcs   = map[string]any{
		"strings.ToUpper":    strings.ToUpper,
		"strings.ToLower":    strings.ToLower,
		"strings.TrimSpace":  strings.TrimSpace,
		"strings.Contains":   strings.Contains,
		"strings.HasPrefix":  strings.HasPrefix,
		"strings.HasSuffix":  strings.HasSuffix,
		"strings.ReplaceAll": strings.ReplaceAll,
		"strings.Index":      strings.Index,
		"math.Abs":           math.Abs,
		"math.Floor":         math.Floor,
		"math.Ceil":          math.Ceil,
		"math.Round":         math.Round,
		"math.Sqrt":          math.Sqrt,
		"math.Pow":           math.Pow,
		"len":                nil, // handled by the interpreter
	}
)

// RegisterFunc makes a Go function available to local evaluation of Call
// nodes with the given method name.
func RegisterFunc(method string, fn any) {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	funcs[method] = fn
}

func lookupFunc(method string) (any, bool) {
	funcsMu.RLock()
	defer funcsMu.RUnlock()
	fn, ok := funcs[method]
	return fn, ok
}
