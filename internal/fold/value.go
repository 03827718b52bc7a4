package fold

import (
	"go.starlark.net/starlark"

	"github.com/fmeum/unbox/internal/box"
)

// ToStarlark converts a box value to a Starlark value. Integral numbers
// become Ints. Undefined, maps, conditionals and unresolvable values have
// no counterpart.
func ToStarlark(v box.Value) (starlark.Value, bool) {
	switch v := v.(type) {
	case *box.Literal:
		switch v.Type() {
		case box.StringType:
			s, _ := v.Str()
			return starlark.String(s), true
		case box.NumberType:
			f, _ := v.Num()
			return num(f), true
		case box.BooleanType:
			return starlark.Bool(v.Value().(bool)), true
		case box.NullType:
			return starlark.None, true
		}
	case *box.List:
		items := make([]starlark.Value, v.Len())
		for i, it := range v.Items() {
			sv, ok := ToStarlark(it)
			if !ok {
				return nil, false
			}
			items[i] = sv
		}
		return starlark.NewList(items), true
	case *box.Object:
		d := starlark.NewDict(v.Len())
		for _, e := range v.Entries() {
			sv, ok := ToStarlark(e.Value)
			if !ok {
				return nil, false
			}
			if err := d.SetKey(starlark.String(e.Key), sv); err != nil {
				return nil, false
			}
		}
		return d, true
	}
	return nil, false
}

// FromStarlark converts a Starlark value to raw input for box.Cast. Dicts
// must have string keys and keep their insertion order.
func FromStarlark(v starlark.Value) (any, bool) {
	switch v := v.(type) {
	case starlark.NoneType:
		return box.Null, true
	case starlark.Bool:
		return bool(v), true
	case starlark.String:
		return string(v), true
	case starlark.Int:
		i, ok := v.Int64()
		if !ok {
			return nil, false
		}
		return float64(i), true
	case starlark.Float:
		return float64(v), true
	case *starlark.List:
		return fromSequence(v)
	case starlark.Tuple:
		return fromSequence(v)
	case *starlark.Dict:
		entries := make([]box.RawEntry, 0, v.Len())
		for _, kv := range v.Items() {
			k, ok := kv[0].(starlark.String)
			if !ok {
				return nil, false
			}
			raw, ok := FromStarlark(kv[1])
			if !ok {
				return nil, false
			}
			entries = append(entries, box.RawEntry{Key: string(k), Value: raw})
		}
		return entries, true
	}
	return nil, false
}

func fromSequence(s starlark.Indexable) (any, bool) {
	out := make([]any, s.Len())
	for i := range out {
		raw, ok := FromStarlark(s.Index(i))
		if !ok {
			return nil, false
		}
		out[i] = raw
	}
	return out, true
}
