package report

import (
	"fmt"
	"math"
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/fold"
)

// layout hands out positions for synthetic nodes. convertast derives line
// breaks from positions: a dict whose braces are on different lines is
// printed on multiple lines, and a keyword value starting on the line of
// its name stays there.
type layout struct {
	file string
	line int32
}

func newLayout() *layout {
	return &layout{file: "<report>", line: 1}
}

func (l *layout) pos() syntax.Position {
	return syntax.MakePosition(&l.file, l.line, 1)
}

func (l *layout) next() syntax.Position {
	l.line++
	return l.pos()
}

func (l *layout) ident(name string) *syntax.Ident {
	return &syntax.Ident{Name: name, NamePos: l.pos()}
}

// kwarg starts a new line with name = x, where x is built after the name
// is placed.
func (l *layout) kwarg(name string, x func() syntax.Expr) syntax.Expr {
	at := l.next()
	return &syntax.BinaryExpr{Op: syntax.EQ, OpPos: at, X: &syntax.Ident{Name: name, NamePos: at}, Y: x()}
}

// call builds fn(args...) with one argument per line.
func (l *layout) call(fn string, args func() []syntax.Expr) *syntax.CallExpr {
	start := l.pos()
	list := args()
	return &syntax.CallExpr{Fn: &syntax.Ident{Name: fn, NamePos: start}, Lparen: start, Args: list, Rparen: l.next()}
}

// inlineCall builds fn(args...) starting at at. The arguments must have
// been built after at was taken.
func (l *layout) inlineCall(fn string, at syntax.Position, args []syntax.Expr) *syntax.CallExpr {
	return &syntax.CallExpr{Fn: &syntax.Ident{Name: fn, NamePos: at}, Lparen: at, Args: args, Rparen: l.pos()}
}

// dict builds a multi-line dict with one entry per line.
func (l *layout) dict(keys []string, value func(i int) syntax.Expr) *syntax.DictExpr {
	d := &syntax.DictExpr{Lbrace: l.pos()}
	for i, k := range keys {
		key := &syntax.Literal{Token: syntax.STRING, Raw: strconv.Quote(k), Value: k, TokenPos: l.next()}
		d.List = append(d.List, &syntax.DictEntry{Key: key, Colon: key.TokenPos, Value: value(i)})
	}
	d.Rbrace = l.next()
	return d
}

// valueToSyntaxExpr converts a Starlark value to a syntax expression.
// Returns nil if the value cannot be represented. Non-finite floats become
// float() calls. Lists and tuples stay on
// the current line, dicts span one line per entry.
func valueToSyntaxExpr(v starlark.Value, l *layout) syntax.Expr {
	if v == nil {
		return nil
	}
	at := l.pos()
	switch val := v.(type) {
	case starlark.NoneType:
		return &syntax.Ident{Name: "None", NamePos: at}

	case starlark.Bool:
		if val {
			return &syntax.Ident{Name: "True", NamePos: at}
		}
		return &syntax.Ident{Name: "False", NamePos: at}

	case starlark.String:
		s := string(val)
		return &syntax.Literal{Token: syntax.STRING, Raw: strconv.Quote(s), Value: s, TokenPos: at}

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return nil
		}
		if i64 >= 0 {
			return &syntax.Literal{Token: syntax.INT, Raw: fmt.Sprintf("%d", i64), Value: i64, TokenPos: at}
		}
		lit := &syntax.Literal{Token: syntax.INT, Raw: fmt.Sprintf("%d", -i64), Value: -i64, TokenPos: at}
		return &syntax.UnaryExpr{Op: syntax.MINUS, OpPos: at, X: lit}

	case starlark.Float:
		f := float64(val)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nonFinite(f, l)
		}
		if f >= 0 {
			return &syntax.Literal{Token: syntax.FLOAT, Raw: formatFloat(f), Value: f, TokenPos: at}
		}
		lit := &syntax.Literal{Token: syntax.FLOAT, Raw: formatFloat(-f), Value: -f, TokenPos: at}
		return &syntax.UnaryExpr{Op: syntax.MINUS, OpPos: at, X: lit}

	case *starlark.List:
		items := make([]syntax.Expr, val.Len())
		for i := 0; i < val.Len(); i++ {
			s := valueToSyntaxExpr(val.Index(i), l)
			if s == nil {
				return nil
			}
			items[i] = s
		}
		return &syntax.ListExpr{List: items, Lbrack: at, Rbrack: at}

	case starlark.Tuple:
		items := make([]syntax.Expr, val.Len())
		for i := 0; i < val.Len(); i++ {
			s := valueToSyntaxExpr(val[i], l)
			if s == nil {
				return nil
			}
			items[i] = s
		}
		return &syntax.TupleExpr{List: items, Lparen: at, Rparen: at}

	case *starlark.Dict:
		items := val.Items()
		keys := make([]string, len(items))
		for i, kv := range items {
			k, ok := kv[0].(starlark.String)
			if !ok {
				return nil
			}
			keys[i] = string(k)
		}
		var failed bool
		d := l.dict(keys, func(i int) syntax.Expr {
			s := valueToSyntaxExpr(items[i][1], l)
			if s == nil {
				failed = true
			}
			return s
		})
		if failed {
			return nil
		}
		return d

	default:
		return nil
	}
}

// nonFinite renders NaN and the infinities as float("NaN"),
// float("Infinity") and float("-Infinity").
func nonFinite(f float64, l *layout) syntax.Expr {
	s := "NaN"
	switch {
	case math.IsInf(f, 1):
		s = "Infinity"
	case math.IsInf(f, -1):
		s = "-Infinity"
	}
	at := l.pos()
	return l.inlineCall("float", at, []syntax.Expr{
		&syntax.Literal{Token: syntax.STRING, Raw: strconv.Quote(s), Value: s, TokenPos: at},
	})
}

// formatFloat formats a float for use as a Starlark literal.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for _, c := range s {
		if c == '.' || c == 'e' || c == 'E' {
			return s
		}
	}
	return s + ".0"
}

// boxToSyntaxExpr renders a box value. Values that are not plain data are
// rendered as calls: one_of(...) for alternatives and unresolved() for
// values that could not be computed. A valueless JSX attribute is True.
func boxToSyntaxExpr(v box.Value, l *layout) syntax.Expr {
	switch v := v.(type) {
	case *box.Literal:
		if sv, ok := fold.ToStarlark(v); ok {
			if e := valueToSyntaxExpr(sv, l); e != nil {
				return e
			}
		}
		return l.ident("undefined")
	case *box.List:
		at := l.pos()
		items := v.Items()
		list := &syntax.ListExpr{Lbrack: at}
		for _, it := range items {
			list.List = append(list.List, boxToSyntaxExpr(it, l))
		}
		list.Rbrack = l.pos()
		return list
	case *box.Object:
		entries := v.Entries()
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		return l.dict(keys, func(i int) syntax.Expr { return boxToSyntaxExpr(entries[i].Value, l) })
	case *box.Map:
		entries := v.Entries()
		keys := make([]string, len(entries))
		for i, e := range entries {
			keys[i] = e.Key
		}
		return l.dict(keys, func(i int) syntax.Expr { return alternatives(entries[i].Values, l) })
	case *box.Conditional:
		return alternatives(flatten(v, nil), l)
	case *box.EmptyInitializer:
		return l.ident("True")
	}
	return l.inlineCall("unresolved", l.pos(), nil)
}

func alternatives(vs []box.Value, l *layout) syntax.Expr {
	if len(vs) == 1 {
		return boxToSyntaxExpr(vs[0], l)
	}
	at := l.pos()
	args := make([]syntax.Expr, len(vs))
	for i, v := range vs {
		args[i] = boxToSyntaxExpr(v, l)
	}
	return l.inlineCall("one_of", at, args)
}

// flatten lists the branches of nested conditionals.
func flatten(v box.Value, dst []box.Value) []box.Value {
	if c, ok := v.(*box.Conditional); ok {
		dst = flatten(c.WhenTrue(), dst)
		return flatten(c.WhenFalse(), dst)
	}
	return append(dst, v)
}
