package box

import (
	"sort"

	"github.com/fmeum/unbox/internal/ast"
)

type jsNull struct{}
type jsUndefined struct{}

// Null and Undefined stand for the JavaScript values in raw input to Cast
// and NewLiteral. A plain Go nil means "no value".
var (
	Null      any = jsNull{}
	Undefined any = jsUndefined{}
)

// RawEntry is one key of an ordered raw object.
type RawEntry struct {
	Key   string
	Value any
}

// Cast wraps an already interpreted raw value, such as the result of the
// safe-evaluation hook:
//
//   - strings, numbers, bools, Null and Undefined become literals,
//   - []any becomes a list,
//   - map[string]any becomes an object with sorted keys,
//   - []RawEntry becomes an object in entry order,
//   - a Value is returned unchanged.
//
// Items that cannot be cast become Unresolvable. Cast returns nil for nil or
// unrecognized input.
func Cast(raw any, node ast.Node, stack []ast.Node) Value {
	switch raw := raw.(type) {
	case nil:
		return nil
	case Value:
		return raw
	case []any:
		items := make([]Value, len(raw))
		for i, it := range raw {
			items[i] = castItem(it, node, stack)
		}
		return NewList(items, node, stack)
	case map[string]any:
		keys := make([]string, 0, len(raw))
		for k := range raw {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entries := make([]Entry, len(keys))
		for i, k := range keys {
			entries[i] = Entry{Key: k, Value: castItem(raw[k], node, stack)}
		}
		return NewObject(entries, node, stack)
	case []RawEntry:
		entries := make([]Entry, len(raw))
		for i, e := range raw {
			entries[i] = Entry{Key: e.Key, Value: castItem(e.Value, node, stack)}
		}
		return NewObject(entries, node, stack)
	}
	if l := NewLiteral(raw, node, stack); l != nil {
		return l
	}
	return nil
}

func castItem(raw any, node ast.Node, stack []ast.Node) Value {
	if v := Cast(raw, node, stack); v != nil {
		return v
	}
	return NewUnresolvable(node, stack)
}
