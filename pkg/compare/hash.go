package compare

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/dchest/siphash"
	"github.com/leapstack-labs/leapquery/pkg/core"
)

// fixed keys so hashes are stable across processes
const (
	k0 = 0x6c65617071756572
	k1 = 0x79736861706568a5
)

// Hash returns a structural hash of n. Aliases and lambda parameters are
// numbered by first appearance, so trees that are Equal hash equally.
// With IgnoreValues, named values contribute their name only.
func Hash(n core.Node, opts ...Option) uint64 {
	c := &comparer{}
	for _, o := range opts {
		o(c)
	}
	h := &hasher{
		ignoreValues: c.ignoreValues,
		aliases:      make(map[*core.Alias]uint64),
		params:       make(map[*core.Parameter]uint64),
	}
	core.Inspect(n, h.node)
	return siphash.Hash(k0, k1, h.buf)
}

type hasher struct {
	buf          []byte
	ignoreValues bool
	aliases      map[*core.Alias]uint64
	params       map[*core.Parameter]uint64
}

func (h *hasher) u64(v uint64) {
	h.buf = binary.LittleEndian.AppendUint64(h.buf, v)
}

func (h *hasher) str(s string) {
	h.u64(uint64(len(s)))
	h.buf = append(h.buf, s...)
}

func (h *hasher) flag(b bool) {
	if b {
		h.buf = append(h.buf, 1)
	} else {
		h.buf = append(h.buf, 0)
	}
}

func (h *hasher) alias(a *core.Alias) {
	id, ok := h.aliases[a]
	if !ok {
		id = uint64(len(h.aliases) + 1)
		h.aliases[a] = id
	}
	h.u64(id)
}

func (h *hasher) param(p *core.Parameter) {
	id, ok := h.params[p]
	if !ok {
		id = uint64(len(h.params) + 1)
		h.params[p] = id
	}
	h.u64(id)
}

func (h *hasher) value(v any) {
	switch x := v.(type) {
	case nil:
		h.u64(0)
	case string:
		h.str(x)
	case bool:
		h.flag(x)
	case int:
		h.u64(uint64(x))
	case int64:
		h.u64(uint64(x))
	case float64:
		h.u64(math.Float64bits(x))
	default:
		h.str(fmt.Sprintf("%T:%v", v, v))
	}
}

func (h *hasher) node(n core.Node) bool {
	h.u64(uint64(n.Kind()))
	if t := n.Type(); t != nil {
		h.str(t.String())
	}
	switch x := n.(type) {
	case *core.Constant:
		h.value(x.Value)
	case *core.Parameter:
		h.param(x)
	case *core.Lambda:
		h.u64(uint64(len(x.Params)))
		for _, p := range x.Params {
			h.param(p)
		}
	case *core.Member:
		h.str(x.Name)
	case *core.Call:
		h.str(x.Method)
		h.u64(uint64(len(x.Args)))
	case *core.Invoke:
		h.u64(uint64(reflect.ValueOf(x.Fn).Pointer()))
	case *core.Binary:
		h.u64(uint64(x.Op))
	case *core.Unary:
		h.u64(uint64(x.Op))
	case *core.New:
		for _, b := range x.Bindings {
			h.str(b.Name)
		}
	case *core.Table:
		h.alias(x.Alias)
		h.str(x.Schema)
		h.str(x.Name)
	case *core.Column:
		h.alias(x.Alias)
		h.str(x.Name)
	case *core.Select:
		h.alias(x.Alias)
		h.flag(x.Distinct)
		h.flag(x.Reverse)
		h.u64(uint64(len(x.Columns)))
		for _, c := range x.Columns {
			h.str(c.Name)
		}
		h.u64(uint64(len(x.OrderBy)))
		for _, o := range x.OrderBy {
			h.u64(uint64(o.Order))
		}
		h.u64(uint64(len(x.GroupBy)))
		h.flag(x.Where != nil)
		h.flag(x.Skip != nil)
		h.flag(x.Take != nil)
	case *core.Join:
		h.u64(uint64(x.JoinType))
		h.flag(x.Condition != nil)
	case *core.Projection:
		h.flag(x.Aggregator != nil)
	case *core.Aggregate:
		h.u64(uint64(x.Func))
		h.flag(x.Distinct)
		h.flag(x.Argument != nil)
	case *core.AggregateSubquery:
		h.alias(x.GroupByAlias)
	case *core.In:
		h.flag(x.Select != nil)
		h.u64(uint64(len(x.Values)))
	case *core.RowNumber:
		for _, o := range x.OrderBy {
			h.u64(uint64(o.Order))
		}
	case *core.NamedValue:
		h.str(x.Name)
		// the value subtree is not entered when values are ignored
		return !h.ignoreValues
	case *core.Function:
		h.str(x.Name)
		h.u64(uint64(len(x.Args)))
	case *core.Entity:
		if x.Mapping != nil {
			h.str(x.Mapping.Table)
		}
	case *core.If:
		h.flag(x.IfFalse != nil)
	case *core.Declaration:
		for _, v := range x.Variables {
			h.str(v.Name)
		}
	case *core.Variable:
		h.str(x.Name)
	}
	return true
}
