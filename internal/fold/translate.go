package fold

import (
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/box"
)

// syntheticFile is used for creating valid positions for synthetic nodes.
var syntheticFile = "<fold>"

var validPos = syntax.MakePosition(&syntheticFile, 1, 1)

// binaryBuiltins implement JavaScript operators. Starlark operators of the
// same spelling differ on mixed operand types, so none is used directly.
var binaryBuiltins = map[string]string{
	"+":   "js_add",
	"-":   "js_sub",
	"*":   "js_mul",
	"/":   "js_div",
	"%":   "js_rem",
	"**":  "math_pow",
	"<":   "js_lt",
	"<=":  "js_le",
	">":   "js_gt",
	">=":  "js_ge",
	"===": "js_strict_eq",
	"!==": "js_strict_ne",
}

var unaryBuiltins = map[string]string{
	"!":      "js_not",
	"typeof": "js_typeof",
}

var globalFuncs = map[string]string{
	"String": "js_string",
	"Number": "js_number",
}

var mathFuncs = map[string]string{
	"max":   "math_max",
	"min":   "math_min",
	"abs":   "math_abs",
	"ceil":  "math_ceil",
	"floor": "math_floor",
	"round": "math_round",
	"pow":   "math_pow",
	"sqrt":  "math_sqrt",
}

// stringMethods map JavaScript string methods to Starlark string methods
// taking the same arguments.
var stringMethods = map[string]string{
	"toUpperCase": "upper",
	"toLowerCase": "lower",
	"trim":        "strip",
	"trimStart":   "lstrip",
	"trimEnd":     "rstrip",
	"startsWith":  "startswith",
	"endsWith":    "endswith",
	"replaceAll":  "replace",
}

// methodBuiltins are methods implemented as builtins taking the receiver
// as their first argument.
var methodBuiltins = map[string]string{
	"toFixed":  "js_to_fixed",
	"join":     "js_join",
	"includes": "js_includes",
	"replace":  "js_replace",
}

// translator turns one expression into Starlark syntax. Sub-expressions
// are never translated structurally: they are evaluated through lookup and
// bound as variables, so that each fold handles a single level.
type translator struct {
	helpers map[string]bool
	lookup  func(ast.Expr) box.Value
	vars    starlark.StringDict
}

func (t *translator) bind(v starlark.Value) syntax.Expr {
	name := "_v" + strconv.Itoa(len(t.vars))
	t.vars[name] = v
	return ident(name)
}

func ident(name string) *syntax.Ident {
	return &syntax.Ident{Name: name, NamePos: validPos}
}

func call(fn syntax.Expr, args ...syntax.Expr) *syntax.CallExpr {
	return &syntax.CallExpr{Fn: fn, Lparen: validPos, Args: args, Rparen: validPos}
}

func (t *translator) expr(e ast.Expr, top bool) (syntax.Expr, bool) {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return t.expr(x.X, top)
	case *ast.AssertExpr:
		return t.expr(x.X, top)
	}
	if !top {
		return t.operand(e)
	}
	switch x := e.(type) {
	case *ast.BinaryExpr:
		return t.binary(x)
	case *ast.UnaryExpr:
		return t.unary(x)
	case *ast.CallExpr:
		return t.call(x)
	case *ast.TemplateLit:
		return t.template(x)
	}
	return nil, false
}

// operand binds the value the evaluator computes for e.
func (t *translator) operand(e ast.Expr) (syntax.Expr, bool) {
	v, ok := ToStarlark(t.lookup(e))
	if !ok {
		return nil, false
	}
	return t.bind(v), true
}

func (t *translator) operands(es ...ast.Expr) ([]syntax.Expr, bool) {
	out := make([]syntax.Expr, len(es))
	for i, e := range es {
		if _, spread := e.(*ast.SpreadElem); spread {
			return nil, false
		}
		x, ok := t.expr(e, false)
		if !ok {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

func (t *translator) binary(e *ast.BinaryExpr) (syntax.Expr, bool) {
	xs, ok := t.operands(e.X, e.Y)
	if !ok {
		return nil, false
	}
	fn, ok := binaryBuiltins[e.Op]
	if !ok {
		return nil, false
	}
	return call(ident(fn), xs...), true
}

func (t *translator) unary(e *ast.UnaryExpr) (syntax.Expr, bool) {
	xs, ok := t.operands(e.X)
	if !ok {
		return nil, false
	}
	switch e.Op {
	case "-":
		return call(ident("js_neg"), xs[0]), true
	case "+":
		return call(ident("js_number"), xs[0]), true
	}
	if fn, ok := unaryBuiltins[e.Op]; ok {
		return call(ident(fn), xs[0]), true
	}
	return nil, false
}

func (t *translator) call(e *ast.CallExpr) (syntax.Expr, bool) {
	fn, recv, ok := t.callee(e.Fn)
	if !ok {
		return nil, false
	}
	args, ok := t.operands(e.Args...)
	if !ok {
		return nil, false
	}
	if recv != nil {
		args = append([]syntax.Expr{recv}, args...)
	}
	return call(fn, args...), true
}

// callee translates the function of a call. For methods implemented as
// builtins, recv is the receiver to pass as first argument.
func (t *translator) callee(fn ast.Expr) (callee, recv syntax.Expr, ok bool) {
	switch f := ast.Unparen(fn).(type) {
	case *ast.Ident:
		if t.helpers[f.Name] {
			return ident(f.Name), nil, true
		}
		if name, ok := globalFuncs[f.Name]; ok && !isBound(f) {
			return ident(name), nil, true
		}
	case *ast.DotExpr:
		if f.Optional {
			return nil, nil, false
		}
		if id, ok := f.X.(*ast.Ident); ok && id.Name == "Math" && !isBound(id) {
			if name, ok := mathFuncs[f.Name]; ok {
				return ident(name), nil, true
			}
			return nil, nil, false
		}
		if name, ok := stringMethods[f.Name]; ok {
			x, ok := t.operand(f.X)
			if !ok {
				return nil, nil, false
			}
			return &syntax.DotExpr{X: x, Dot: validPos, NamePos: validPos, Name: ident(name)}, nil, true
		}
		if name, ok := methodBuiltins[f.Name]; ok {
			x, ok := t.operand(f.X)
			if !ok {
				return nil, nil, false
			}
			return ident(name), x, true
		}
		// utils.rem(4) where utils is a namespace import of helpers.
		if t.helpers[f.Name] {
			return ident(f.Name), nil, true
		}
	}
	return nil, nil, false
}

func isBound(id *ast.Ident) bool {
	return id.Scope != nil && id.Scope.Lookup(id.Name) != nil
}

func (t *translator) template(e *ast.TemplateLit) (syntax.Expr, bool) {
	var out syntax.Expr = t.bind(starlark.String(e.Quasis[0]))
	for i, x := range e.Exprs {
		sx, ok := t.expr(x, false)
		if !ok {
			return nil, false
		}
		out = &syntax.BinaryExpr{OpPos: validPos, Op: syntax.PLUS, X: out, Y: call(ident("js_string"), sx)}
		out = &syntax.BinaryExpr{OpPos: validPos, Op: syntax.PLUS, X: out, Y: t.bind(starlark.String(e.Quasis[i+1]))}
	}
	return out, true
}
