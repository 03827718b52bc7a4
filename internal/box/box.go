// Package box defines the values the evaluator produces for expressions.
//
// A Value is one of a closed set of variants. Every value remembers the
// syntax node it was produced for and the stack of nodes that were
// traversed to reach it. Values are immutable: payloads are only reachable
// through accessors that return copies.
package box

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/fmeum/unbox/internal/ast"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	LiteralKind Kind = iota
	ListKind
	ObjectKind
	MapKind
	ConditionalKind
	UnresolvableKind
	EmptyInitializerKind
)

func (k Kind) String() string {
	switch k {
	case LiteralKind:
		return "literal"
	case ListKind:
		return "list"
	case ObjectKind:
		return "object"
	case MapKind:
		return "map"
	case ConditionalKind:
		return "conditional"
	case UnresolvableKind:
		return "unresolvable"
	case EmptyInitializerKind:
		return "empty-initializer"
	}
	return "invalid"
}

// Value is the statically known result of an expression.
type Value interface {
	Kind() Kind
	// Node is the syntax node the value was produced for.
	Node() ast.Node
	// Stack is the chain of nodes traversed to produce the value, outermost
	// first.
	Stack() []ast.Node
	String() string

	value()
}

type origin struct {
	node  ast.Node
	stack []ast.Node
}

func newOrigin(node ast.Node, stack []ast.Node) origin {
	return origin{node: node, stack: slices.Clone(stack)}
}

func (o origin) Node() ast.Node    { return o.node }
func (o origin) Stack() []ast.Node { return slices.Clone(o.stack) }

// LiteralType is the primitive type of a Literal.
type LiteralType uint8

const (
	StringType LiteralType = iota
	NumberType
	BooleanType
	NullType
	UndefinedType
)

func (t LiteralType) String() string {
	switch t {
	case StringType:
		return "string"
	case NumberType:
		return "number"
	case BooleanType:
		return "boolean"
	case NullType:
		return "null"
	case UndefinedType:
		return "undefined"
	}
	return "invalid"
}

type Literal struct {
	origin
	typ LiteralType
	v   any
}

// NewLiteral returns a literal for a string, number, bool, Null or
// Undefined. Any other integer or float type is converted to a number.
// It returns nil for anything else.
func NewLiteral(v any, node ast.Node, stack []ast.Node) *Literal {
	l := &Literal{origin: newOrigin(node, stack)}
	switch v := v.(type) {
	case string:
		l.typ, l.v = StringType, v
	case bool:
		l.typ, l.v = BooleanType, v
	case float64:
		l.typ, l.v = NumberType, v
	case float32:
		l.typ, l.v = NumberType, float64(v)
	case int:
		l.typ, l.v = NumberType, float64(v)
	case int64:
		l.typ, l.v = NumberType, float64(v)
	case int32:
		l.typ, l.v = NumberType, float64(v)
	case uint:
		l.typ, l.v = NumberType, float64(v)
	case uint64:
		l.typ, l.v = NumberType, float64(v)
	case uint32:
		l.typ, l.v = NumberType, float64(v)
	case jsNull:
		l.typ = NullType
	case jsUndefined:
		l.typ = UndefinedType
	default:
		return nil
	}
	return l
}

func (*Literal) Kind() Kind { return LiteralKind }
func (*Literal) value()     {}

func (l *Literal) Type() LiteralType { return l.typ }

// Value returns the payload: a string, float64, bool or nil.
func (l *Literal) Value() any { return l.v }

func (l *Literal) Str() (string, bool) {
	s, ok := l.v.(string)
	return s, ok && l.typ == StringType
}

func (l *Literal) Num() (float64, bool) {
	f, ok := l.v.(float64)
	return f, ok && l.typ == NumberType
}

// Key is a canonical rendering that distinguishes types, so that "1" and 1
// are different keys.
func (l *Literal) Key() string {
	switch l.typ {
	case StringType:
		return "s:" + l.v.(string)
	case NumberType:
		return "n:" + ast.FormatNumber(l.v.(float64))
	case BooleanType:
		return "b:" + strconv.FormatBool(l.v.(bool))
	}
	return l.typ.String()
}

// JSString converts l to a string the way JavaScript's String() does.
func (l *Literal) JSString() string {
	switch l.typ {
	case StringType:
		return l.v.(string)
	case NumberType:
		return ast.FormatNumber(l.v.(float64))
	case BooleanType:
		return strconv.FormatBool(l.v.(bool))
	}
	return l.typ.String()
}

func (l *Literal) String() string {
	if l.typ == StringType {
		return strconv.Quote(l.v.(string))
	}
	return l.JSString()
}

// Truthy reports JavaScript truthiness.
func Truthy(l *Literal) bool {
	switch l.typ {
	case StringType:
		return l.v.(string) != ""
	case NumberType:
		f := l.v.(float64)
		return f != 0 && !math.IsNaN(f)
	case BooleanType:
		return l.v.(bool)
	}
	return false
}

// IsNullish reports whether l is null or undefined.
func IsNullish(l *Literal) bool { return l.typ == NullType || l.typ == UndefinedType }

type List struct {
	origin
	items []Value
}

func NewList(items []Value, node ast.Node, stack []ast.Node) *List {
	return &List{origin: newOrigin(node, stack), items: slices.Clone(items)}
}

func (*List) Kind() Kind { return ListKind }
func (*List) value()     {}

func (l *List) Items() []Value { return slices.Clone(l.items) }
func (l *List) Len() int       { return len(l.items) }

// At returns the i-th item.
func (l *List) At(i int) (Value, bool) {
	if i < 0 || i >= len(l.items) {
		return nil, false
	}
	return l.items[i], true
}

func (l *List) String() string {
	parts := make([]string, len(l.items))
	for i, it := range l.items {
		parts[i] = str(it)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Entry is a key of an Object.
type Entry struct {
	Key   string
	Value Value
}

// Object is the value of a directly authored object literal: one value per
// key, in insertion order.
type Object struct {
	origin
	keys []string
	m    map[string]Value
}

// NewObject builds an object from entries. A repeated key keeps its first
// position and takes the last value, as in JavaScript.
func NewObject(entries []Entry, node ast.Node, stack []ast.Node) *Object {
	o := &Object{origin: newOrigin(node, stack), m: make(map[string]Value, len(entries))}
	for _, e := range entries {
		if _, ok := o.m[e.Key]; !ok {
			o.keys = append(o.keys, e.Key)
		}
		o.m[e.Key] = e.Value
	}
	return o
}

func (*Object) Kind() Kind { return ObjectKind }
func (*Object) value()     {}

func (o *Object) Keys() []string { return slices.Clone(o.keys) }
func (o *Object) Len() int       { return len(o.keys) }

func (o *Object) Get(key string) (Value, bool) {
	v, ok := o.m[key]
	return v, ok
}

func (o *Object) Entries() []Entry {
	out := make([]Entry, len(o.keys))
	for i, k := range o.keys {
		out[i] = Entry{Key: k, Value: o.m[k]}
	}
	return out
}

func (o *Object) String() string {
	parts := make([]string, len(o.keys))
	for i, k := range o.keys {
		parts[i] = k + ": " + str(o.m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MapEntry is a key of a Map with all of its alternative values.
type MapEntry struct {
	Key    string
	Values []Value
}

// Map holds several alternative values per key. It results from merging
// objects that may or may not apply, like both branches of a conditional.
type Map struct {
	origin
	keys []string
	m    map[string][]Value
}

// NewMap builds a map from entries. Values of a repeated key are
// concatenated.
func NewMap(entries []MapEntry, node ast.Node, stack []ast.Node) *Map {
	m := &Map{origin: newOrigin(node, stack), m: make(map[string][]Value, len(entries))}
	for _, e := range entries {
		if _, ok := m.m[e.Key]; !ok {
			m.keys = append(m.keys, e.Key)
		}
		m.m[e.Key] = append(m.m[e.Key], e.Values...)
	}
	return m
}

func (*Map) Kind() Kind { return MapKind }
func (*Map) value()     {}

func (m *Map) Keys() []string { return slices.Clone(m.keys) }
func (m *Map) Len() int       { return len(m.keys) }

func (m *Map) Get(key string) ([]Value, bool) {
	vs, ok := m.m[key]
	return slices.Clone(vs), ok
}

func (m *Map) Entries() []MapEntry {
	out := make([]MapEntry, len(m.keys))
	for i, k := range m.keys {
		out[i] = MapEntry{Key: k, Values: slices.Clone(m.m[k])}
	}
	return out
}

func (m *Map) String() string {
	parts := make([]string, len(m.keys))
	for i, k := range m.keys {
		vs := make([]string, len(m.m[k]))
		for j, v := range m.m[k] {
			vs[j] = str(v)
		}
		parts[i] = k + ": " + strings.Join(vs, " | ")
	}
	return "map{" + strings.Join(parts, ", ") + "}"
}

// CondKind is the syntactic origin of a Conditional.
type CondKind uint8

const (
	Ternary CondKind = iota
	And
	Or
	Nullish
)

func (k CondKind) String() string {
	switch k {
	case Ternary:
		return "?:"
	case And:
		return "&&"
	case Or:
		return "||"
	case Nullish:
		return "??"
	}
	return "invalid"
}

// Conditional is a value that is one of two alternatives depending on a
// condition that could not be decided statically.
type Conditional struct {
	origin
	kind      CondKind
	whenTrue  Value
	whenFalse Value
}

func NewConditional(kind CondKind, whenTrue, whenFalse Value, node ast.Node, stack []ast.Node) *Conditional {
	return &Conditional{origin: newOrigin(node, stack), kind: kind, whenTrue: whenTrue, whenFalse: whenFalse}
}

func (*Conditional) Kind() Kind { return ConditionalKind }
func (*Conditional) value()     {}

func (c *Conditional) CondKind() CondKind { return c.kind }
func (c *Conditional) WhenTrue() Value    { return c.whenTrue }
func (c *Conditional) WhenFalse() Value   { return c.whenFalse }

func (c *Conditional) String() string {
	return "(" + str(c.whenTrue) + " " + c.kind.String() + " " + str(c.whenFalse) + ")"
}

// Unresolvable marks a value that cannot be proven static.
type Unresolvable struct {
	origin
}

func NewUnresolvable(node ast.Node, stack []ast.Node) *Unresolvable {
	return &Unresolvable{origin: newOrigin(node, stack)}
}

func (*Unresolvable) Kind() Kind     { return UnresolvableKind }
func (*Unresolvable) value()         {}
func (*Unresolvable) String() string { return "<unresolvable>" }

// EmptyInitializer is a syntactically present entry that contributes no
// value, such as a JSX attribute written without `=`.
type EmptyInitializer struct {
	origin
}

func NewEmptyInitializer(node ast.Node, stack []ast.Node) *EmptyInitializer {
	return &EmptyInitializer{origin: newOrigin(node, stack)}
}

func (*EmptyInitializer) Kind() Kind     { return EmptyInitializerKind }
func (*EmptyInitializer) value()         {}
func (*EmptyInitializer) String() string { return "<empty>" }

func str(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}

func IsLiteral(v Value) bool          { return v != nil && v.Kind() == LiteralKind }
func IsList(v Value) bool             { return v != nil && v.Kind() == ListKind }
func IsObject(v Value) bool           { return v != nil && v.Kind() == ObjectKind }
func IsMap(v Value) bool              { return v != nil && v.Kind() == MapKind }
func IsConditional(v Value) bool      { return v != nil && v.Kind() == ConditionalKind }
func IsUnresolvable(v Value) bool     { return v != nil && v.Kind() == UnresolvableKind }
func IsEmptyInitializer(v Value) bool { return v != nil && v.Kind() == EmptyInitializerKind }

// Literals returns every literal v can evaluate to: v itself, the items of
// a list, or the literals of either branch of a conditional. Objects and
// maps contribute nothing.
func Literals(v Value) []*Literal {
	var out []*Literal
	var walk func(Value)
	walk = func(v Value) {
		switch v := v.(type) {
		case *Literal:
			out = append(out, v)
		case *List:
			for _, it := range v.items {
				walk(it)
			}
		case *Conditional:
			walk(v.whenTrue)
			walk(v.whenFalse)
		}
	}
	walk(v)
	return out
}

// SameLiteral reports whether a and b are literals with equal values.
func SameLiteral(a, b Value) bool {
	la, ok := a.(*Literal)
	if !ok {
		return false
	}
	lb, ok := b.(*Literal)
	return ok && la.Key() == lb.Key()
}
