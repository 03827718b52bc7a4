// Package eval statically evaluates expressions to box values.
//
// An Evaluator serves one pass over one file. It follows identifiers
// through a resolve.Resolver, descends access chains syntactically and
// hands whatever it cannot reduce itself to an optional Folder. Results are
// cached per syntax node for the lifetime of the Evaluator.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/logging"
	"github.com/fmeum/unbox/internal/resolve"
)

// A Folder computes values of expressions the evaluator has no rule for,
// such as calls. It must not have side effects. lookup evaluates a
// sub-expression with the calling evaluator.
//
// Fold returns a raw value as accepted by box.Cast, and false if the
// expression is not statically known.
type Folder interface {
	Fold(expr ast.Expr, lookup func(ast.Expr) box.Value) (any, bool)
}

// Stats counts evaluator work.
type Stats struct {
	// Evals counts Eval calls, CacheHits the ones answered from the cache.
	Evals     int
	CacheHits int
	// Folds counts successful Folder calls.
	Folds int
	// Cycles counts nodes re-entered while being evaluated.
	Cycles int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger for cycle and evaluation traces.
func WithLogger(l *slog.Logger) Option {
	return func(ev *Evaluator) { ev.logger = l }
}

// WithFolder sets the hook asked for expressions the evaluator cannot
// reduce itself.
func WithFolder(f Folder) Option {
	return func(ev *Evaluator) { ev.folder = f }
}

// Evaluator reduces expressions to box values. It memoizes per node and
// is not safe for concurrent use.
type Evaluator struct {
	res    *resolve.Resolver
	folder Folder
	logger *slog.Logger

	values  map[ast.Node]box.Value
	objects map[ast.Node]box.Value
	paths   map[pathKey]pathResult
	active  map[any]bool
	stats   Stats
}

// New returns an Evaluator resolving identifiers through res, which may be
// nil.
func New(res *resolve.Resolver, opts ...Option) *Evaluator {
	ev := &Evaluator{
		res:     res,
		values:  make(map[ast.Node]box.Value),
		objects: make(map[ast.Node]box.Value),
		paths:   make(map[pathKey]pathResult),
		active:  make(map[any]bool),
	}
	for _, opt := range opts {
		opt(ev)
	}
	ev.logger = logging.Scoped(ev.logger, "eval")
	return ev
}

func (ev *Evaluator) Resolver() *resolve.Resolver { return ev.res }

func (ev *Evaluator) Stats() Stats { return ev.stats }

// push returns stack with n appended, never sharing the backing array with
// other extensions of stack.
func push(stack []ast.Node, n ast.Node) []ast.Node {
	return append(stack[:len(stack):len(stack)], n)
}

type evalKey struct{ n ast.Node }
type objectKey struct{ n ast.Node }

// Eval returns the value of expr, or nil if expr has no value at all.
// Expressions whose value cannot be proven static yield Unresolvable.
func (ev *Evaluator) Eval(expr ast.Expr, stack []ast.Node) box.Value {
	if expr == nil {
		return nil
	}
	ev.stats.Evals++
	if v, ok := ev.values[expr]; ok {
		ev.stats.CacheHits++
		return v
	}
	key := evalKey{expr}
	if ev.active[key] {
		ev.stats.Cycles++
		ev.logger.Debug("cycle", "node", describe(expr))
		return box.NewUnresolvable(expr, stack)
	}
	ev.active[key] = true
	v := ev.eval(expr, push(stack, expr))
	delete(ev.active, key)
	ev.values[expr] = v
	if ev.logger.Enabled(context.Background(), slog.LevelDebug) {
		ev.logger.Debug("eval", "node", describe(expr), "value", fmt.Sprint(v))
	}
	return v
}

func (ev *Evaluator) eval(expr ast.Expr, stack []ast.Node) box.Value {
	switch e := expr.(type) {
	case *ast.Literal:
		return literal(e, stack)
	case *ast.TemplateLit:
		return ev.template(e, stack)
	case *ast.ArrayExpr:
		return ev.array(e, stack)
	case *ast.ObjectExpr:
		return ev.EvalObject(e, stack)
	case *ast.DotExpr, *ast.IndexExpr:
		return ev.access(e, stack)
	case *ast.CondExpr:
		return ev.conditional(e, stack)
	case *ast.BinaryExpr:
		switch e.Op {
		case "&&", "||", "??":
			return ev.logical(e, stack)
		case "+":
			return ev.plus(e, stack)
		}
		return ev.foldOr(e, stack, box.NewUnresolvable(e, stack))
	case *ast.CallExpr:
		return ev.foldOr(e, stack, box.NewUnresolvable(e, stack))
	case *ast.Ident:
		return ev.ident(e, stack)
	case *ast.UnaryExpr:
		if lit, ok := ast.Unparen(e.X).(*ast.Literal); ok && lit.Kind == ast.NumberLit {
			switch e.Op {
			case "-":
				return box.NewLiteral(-lit.Value.(float64), e, stack)
			case "+":
				return box.NewLiteral(lit.Value.(float64), e, stack)
			}
		}
		return ev.foldOr(e, stack, box.NewUnresolvable(e, stack))
	case *ast.ParenExpr:
		return ev.Eval(e.X, stack)
	case *ast.AssertExpr:
		return ev.Eval(e.X, stack)
	}
	return ev.foldOr(expr, stack, nil)
}

func literal(e *ast.Literal, stack []ast.Node) box.Value {
	switch e.Kind {
	case ast.NullLit:
		return box.NewLiteral(box.Null, e, stack)
	case ast.UndefinedLit:
		return box.NewLiteral(box.Undefined, e, stack)
	}
	return box.NewLiteral(e.Value, e, stack)
}

// foldOr asks the folder for the value of e and returns dflt if it cannot
// help.
func (ev *Evaluator) foldOr(e ast.Expr, stack []ast.Node, dflt box.Value) box.Value {
	if ev.folder == nil {
		return dflt
	}
	raw, ok := ev.folder.Fold(e, func(x ast.Expr) box.Value { return ev.Eval(x, stack) })
	if !ok {
		return dflt
	}
	v := box.Cast(raw, e, stack)
	if v == nil {
		return dflt
	}
	ev.stats.Folds++
	return v
}

func (ev *Evaluator) template(e *ast.TemplateLit, stack []ast.Node) box.Value {
	if len(e.Exprs) == 0 {
		return box.NewLiteral(e.Quasis[0], e, stack)
	}
	s := e.Quasis[0]
	for i, x := range e.Exprs {
		lit, ok := ev.Eval(x, stack).(*box.Literal)
		if !ok || (lit.Type() != box.StringType && lit.Type() != box.NumberType) {
			return ev.foldOr(e, stack, box.NewUnresolvable(e, stack))
		}
		s += lit.JSString() + e.Quasis[i+1]
	}
	return box.NewLiteral(s, e, stack)
}

func (ev *Evaluator) array(e *ast.ArrayExpr, stack []ast.Node) box.Value {
	var items []box.Value
	for _, el := range e.Elems {
		if el == nil {
			items = append(items, box.NewLiteral(box.Undefined, e, stack))
			continue
		}
		if sp, ok := el.(*ast.SpreadElem); ok {
			if l, ok := ev.Eval(sp.X, stack).(*box.List); ok {
				items = append(items, l.Items()...)
			} else {
				items = append(items, box.NewUnresolvable(sp, stack))
			}
			continue
		}
		v := ev.Eval(el, stack)
		if v == nil {
			v = box.NewUnresolvable(el, stack)
		}
		items = append(items, v)
	}
	return box.NewList(items, e, stack)
}

// conditional decides `c ? a : b` when c is a literal, and otherwise keeps
// both branches.
func (ev *Evaluator) conditional(e *ast.CondExpr, stack []ast.Node) box.Value {
	if lit, ok := ev.Eval(e.Cond, stack).(*box.Literal); ok {
		if box.Truthy(lit) {
			return ev.Eval(e.True, stack)
		}
		return ev.Eval(e.False, stack)
	}
	return combine(box.Ternary, ev.Eval(e.True, stack), ev.Eval(e.False, stack), e, stack)
}

func (ev *Evaluator) logical(e *ast.BinaryExpr, stack []ast.Node) box.Value {
	left := ev.Eval(e.X, stack)
	if lit, ok := left.(*box.Literal); ok {
		switch e.Op {
		case "&&":
			if box.Truthy(lit) {
				return ev.Eval(e.Y, stack)
			}
			return left
		case "||":
			if box.Truthy(lit) {
				return left
			}
			return ev.Eval(e.Y, stack)
		case "??":
			if box.IsNullish(lit) {
				return ev.Eval(e.Y, stack)
			}
			return left
		}
	}
	right := ev.Eval(e.Y, stack)
	switch e.Op {
	case "&&":
		if right != nil && !box.IsUnresolvable(right) {
			return right
		}
		return combine(box.And, right, left, e, stack)
	case "||":
		if left != nil && !box.IsUnresolvable(left) {
			return left
		}
		return combine(box.Or, left, right, e, stack)
	default:
		if left != nil && !box.IsUnresolvable(left) {
			return left
		}
		return combine(box.Nullish, left, right, e, stack)
	}
}

// combine joins two alternatives. Equal literals collapse and a missing
// alternative yields the other one.
func combine(kind box.CondKind, whenTrue, whenFalse box.Value, node ast.Node, stack []ast.Node) box.Value {
	switch {
	case whenTrue == nil:
		return whenFalse
	case whenFalse == nil:
		return whenTrue
	case box.SameLiteral(whenTrue, whenFalse):
		return whenTrue
	}
	return box.NewConditional(kind, whenTrue, whenFalse, node, stack)
}

// plus applies JavaScript `+` to string and number literals.
func (ev *Evaluator) plus(e *ast.BinaryExpr, stack []ast.Node) box.Value {
	l, lok := ev.Eval(e.X, stack).(*box.Literal)
	r, rok := ev.Eval(e.Y, stack).(*box.Literal)
	if lok && rok && concatenable(l) && concatenable(r) {
		if ln, ok := l.Num(); ok {
			if rn, ok := r.Num(); ok {
				return box.NewLiteral(ln+rn, e, stack)
			}
		}
		return box.NewLiteral(l.JSString()+r.JSString(), e, stack)
	}
	return ev.foldOr(e, stack, box.NewUnresolvable(e, stack))
}

func concatenable(l *box.Literal) bool {
	if n, ok := l.Num(); ok {
		return !math.IsNaN(n)
	}
	return l.Type() == box.StringType
}

func (ev *Evaluator) ident(e *ast.Ident, stack []ast.Node) box.Value {
	if e.Name == "undefined" && (e.Scope == nil || e.Scope.Lookup("undefined") == nil) {
		return box.NewLiteral(box.Undefined, e, stack)
	}
	if ev.res == nil {
		return box.NewUnresolvable(e, stack)
	}
	d, ok := ev.res.Resolve(e)
	if !ok {
		return box.NewUnresolvable(e, stack)
	}
	v, ok := ev.declValue(d, nil, stack)
	if !ok || v == nil {
		return box.NewUnresolvable(e, stack)
	}
	return v
}

func describe(n ast.Node) string {
	start, _ := n.Span()
	return fmt.Sprintf("%T@%s", n, start)
}
