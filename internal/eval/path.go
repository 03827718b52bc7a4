package eval

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/resolve"
)

type pathKey struct {
	n    ast.Node
	path string
}

type pathResult struct {
	v     box.Value
	found bool
}

// step is one property access of a chain. Computed accesses set index.
type step struct {
	name  string
	index ast.Expr
}

// splitChain splits `a.b[c].d` into its base `a` and the accesses after it.
func splitChain(e ast.Expr) (ast.Expr, []step) {
	var steps []step
	for {
		switch x := ast.Unparen(e).(type) {
		case *ast.DotExpr:
			steps = append(steps, step{name: x.Name})
			e = x.X
			continue
		case *ast.IndexExpr:
			if lit, ok := ast.Unparen(x.Index).(*ast.Literal); ok && (lit.Kind == ast.StringLit || lit.Kind == ast.NumberLit) {
				steps = append(steps, step{name: literalKey(lit)})
			} else {
				steps = append(steps, step{index: x.Index})
			}
			e = x.X
			continue
		}
		break
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return e, steps
}

func literalKey(l *ast.Literal) string {
	if f, ok := l.Value.(float64); ok {
		return ast.FormatNumber(f)
	}
	s, _ := l.Value.(string)
	return s
}

// access evaluates a property access chain. Computed keys that reduce to
// several literals look up each key and combine the results.
func (ev *Evaluator) access(e ast.Expr, stack []ast.Node) box.Value {
	base, steps := splitChain(e)
	return ev.accessSteps(e, base, nil, steps, stack)
}

func (ev *Evaluator) accessSteps(e, base ast.Expr, done []string, rest []step, stack []ast.Node) box.Value {
	if len(rest) == 0 {
		return ev.ResolvePath(base, done, stack)
	}
	s := rest[0]
	if s.index == nil {
		return ev.accessSteps(e, base, append(done[:len(done):len(done)], s.name), rest[1:], stack)
	}
	keys, ok := ev.keys(s.index, stack)
	if !ok {
		return box.NewUnresolvable(e, stack)
	}
	var out box.Value
	for i := len(keys) - 1; i >= 0; i-- {
		v := ev.accessSteps(e, base, append(done[:len(done):len(done)], keys[i]), rest[1:], stack)
		out = combine(box.Ternary, v, out, e, stack)
	}
	return out
}

// keys reduces a computed key to the finite set of property names it may
// take.
func (ev *Evaluator) keys(index ast.Expr, stack []ast.Node) ([]string, bool) {
	var out []string
	seen := make(map[string]bool)
	var walk func(v box.Value) bool
	walk = func(v box.Value) bool {
		switch v := v.(type) {
		case *box.Literal:
			if v.Type() != box.StringType && v.Type() != box.NumberType {
				return false
			}
			if k := v.JSString(); !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
			return true
		case *box.Conditional:
			return walk(v.WhenTrue()) && walk(v.WhenFalse())
		}
		return false
	}
	if !walk(ev.Eval(index, stack)) || len(out) == 0 {
		return nil, false
	}
	return out, true
}

// ResolvePath looks up path in the value of base. Missing keys yield
// Unresolvable.
func (ev *Evaluator) ResolvePath(base ast.Expr, path []string, stack []ast.Node) box.Value {
	v, found := ev.lookup(base, path, stack)
	if !found || v == nil {
		return box.NewUnresolvable(base, stack)
	}
	return v
}

// lookup is the cached form of lookupPath.
func (ev *Evaluator) lookup(expr ast.Expr, path []string, stack []ast.Node) (box.Value, bool) {
	if len(path) == 0 {
		v := ev.Eval(expr, stack)
		return v, v != nil
	}
	key := pathKey{expr, strings.Join(path, "\x00")}
	if r, ok := ev.paths[key]; ok {
		ev.stats.CacheHits++
		return r.v, r.found
	}
	if ev.active[key] {
		ev.stats.Cycles++
		return nil, false
	}
	ev.active[key] = true
	v, found := ev.lookupPath(expr, path, push(stack, expr))
	delete(ev.active, key)
	ev.paths[key] = pathResult{v, found}
	return v, found
}

// lookupPath descends into the syntax of expr without evaluating the
// entries that path does not select, and falls back to indexing the
// evaluated value.
func (ev *Evaluator) lookupPath(expr ast.Expr, path []string, stack []ast.Node) (box.Value, bool) {
	switch x := ast.Unparen(expr).(type) {
	case *ast.ObjectExpr:
		if v, found, ok := ev.lookupObject(x, path, stack); ok {
			return v, found
		}
	case *ast.ArrayExpr:
		if v, found, ok := ev.lookupArray(x, path, stack); ok {
			return v, found
		}
	case *ast.Ident:
		if x.Name == "undefined" || ev.res == nil {
			break
		}
		d, ok := ev.res.Resolve(x)
		if !ok {
			return nil, false
		}
		return ev.declValue(d, path, stack)
	case *ast.DotExpr, *ast.IndexExpr:
		base, steps := splitChain(x)
		full := make([]string, 0, len(steps)+len(path))
		static := true
		for _, s := range steps {
			if s.index != nil {
				static = false
				break
			}
			full = append(full, s.name)
		}
		if static {
			return ev.lookup(base, append(full, path...), stack)
		}
	}
	return indexValue(ev.Eval(expr, stack), path, expr, stack)
}

// lookupObject scans the properties of an object literal last to first.
// ok is false if a computed key or spread prevents a syntactic answer.
func (ev *Evaluator) lookupObject(o *ast.ObjectExpr, path []string, stack []ast.Node) (v box.Value, found, ok bool) {
	for i := len(o.Props) - 1; i >= 0; i-- {
		switch p := o.Props[i].(type) {
		case *ast.Property:
			key := p.Key
			if p.KeyExpr != nil {
				keys, kok := ev.keys(p.KeyExpr, stack)
				if !kok || len(keys) != 1 {
					return nil, false, false
				}
				key = keys[0]
			}
			if key == path[0] {
				v, found := ev.lookup(p.Value, path[1:], stack)
				return v, found, true
			}
		case *ast.SpreadElem:
			if v, found := ev.lookup(p.X, path, stack); found {
				return v, true, true
			}
		}
	}
	return nil, false, true
}

func (ev *Evaluator) lookupArray(a *ast.ArrayExpr, path []string, stack []ast.Node) (v box.Value, found, ok bool) {
	for _, el := range a.Elems {
		if _, spread := el.(*ast.SpreadElem); spread {
			return nil, false, false
		}
	}
	if path[0] == "length" {
		v, found = indexValue(box.NewLiteral(len(a.Elems), a, stack), path[1:], a, stack)
		return v, found, true
	}
	i, err := strconv.Atoi(path[0])
	if err != nil || strconv.Itoa(i) != path[0] || i < 0 || i >= len(a.Elems) {
		return nil, false, true
	}
	if a.Elems[i] == nil {
		v, found = indexValue(box.NewLiteral(box.Undefined, a, stack), path[1:], a, stack)
		return v, found, true
	}
	v, found = ev.lookup(a.Elems[i], path[1:], stack)
	return v, found, true
}

// declValue returns the value of a declaration, or of path within it.
func (ev *Evaluator) declValue(d resolve.Declaration, path []string, stack []ast.Node) (box.Value, bool) {
	switch {
	case d.Namespace != nil:
		if len(path) == 0 {
			return nil, false
		}
		inner, ok := ev.res.ResolveExport(d.Namespace, path[0])
		if !ok {
			return nil, false
		}
		return ev.declValue(inner, path[1:], stack)
	case d.Default != nil:
		x, ok := d.Default.X.(ast.Expr)
		if !ok {
			return nil, false
		}
		return ev.lookup(x, path, push(stack, d.Default))
	case d.Binding != nil:
		return ev.bindingValue(d.Binding, path, stack)
	}
	return nil, false
}

// bindingValue returns the value bound to b, following its destructuring
// path into the initializer and falling back to the pattern default.
func (ev *Evaluator) bindingValue(b *ast.Binding, path []string, stack []ast.Node) (box.Value, bool) {
	vd := b.VarDecl()
	if vd == nil || b.Kind != ast.VarBinding {
		return nil, false
	}
	stack = push(stack, vd)
	if vd.Init == nil {
		if vd.Type == nil || len(b.Path) > 0 {
			return nil, false
		}
		return typeLookup(vd.Type, path, stack)
	}

	keys, rest, ok := ev.stepKeys(b.Path, stack)
	if !ok {
		return nil, false
	}
	if rest != nil {
		parent, found := ev.lookup(vd.Init, keys, stack)
		if !found {
			return nil, false
		}
		return indexValue(restValue(parent, *rest, vd, stack), path, vd, stack)
	}

	v, found := ev.lookup(vd.Init, append(keys, path...), stack)
	if b.Default != nil && (!found || isUndefined(v)) {
		own, ownFound := v, found
		if len(path) > 0 {
			own, ownFound = ev.lookup(vd.Init, keys, stack)
		}
		if !ownFound || isUndefined(own) {
			return ev.lookup(b.Default, path, stack)
		}
	}
	return v, found
}

// stepKeys converts a destructuring path to property names up to the
// first rest step, which is returned separately.
func (ev *Evaluator) stepKeys(steps []ast.PathStep, stack []ast.Node) ([]string, *ast.PathStep, bool) {
	keys := make([]string, 0, len(steps))
	for i, s := range steps {
		switch {
		case s.Rest:
			return keys, &steps[i], true
		case s.IsIndex:
			keys = append(keys, strconv.Itoa(s.Index))
		case s.KeyExpr != nil:
			ks, ok := ev.keys(s.KeyExpr, stack)
			if !ok || len(ks) != 1 {
				return nil, nil, false
			}
			keys = append(keys, ks[0])
		default:
			keys = append(keys, s.Key)
		}
	}
	return keys, nil, true
}

func isUndefined(v box.Value) bool {
	l, ok := v.(*box.Literal)
	return ok && l.Type() == box.UndefinedType
}

// restValue computes what a rest element collects from parent.
func restValue(parent box.Value, s ast.PathStep, node ast.Node, stack []ast.Node) box.Value {
	if s.IsIndex {
		l, ok := parent.(*box.List)
		if !ok {
			return box.NewUnresolvable(node, stack)
		}
		items := l.Items()
		if s.Index >= len(items) {
			return box.NewList(nil, node, stack)
		}
		return box.NewList(items[s.Index:], node, stack)
	}
	skip := make(map[string]bool, len(s.Skip))
	for _, k := range s.Skip {
		skip[k] = true
	}
	switch p := parent.(type) {
	case *box.Object:
		var entries []box.Entry
		for _, e := range p.Entries() {
			if !skip[e.Key] {
				entries = append(entries, e)
			}
		}
		return box.NewObject(entries, node, stack)
	case *box.Map:
		var entries []box.MapEntry
		for _, e := range p.Entries() {
			if !skip[e.Key] {
				entries = append(entries, e)
			}
		}
		return box.NewMap(entries, node, stack)
	}
	return box.NewUnresolvable(node, stack)
}

// typeLookup synthesizes a value from a type annotation whose members have
// literal types.
func typeLookup(t ast.TypeNode, path []string, stack []ast.Node) (box.Value, bool) {
	switch t := t.(type) {
	case *ast.TypeLit:
		if len(path) == 0 {
			entries := make([]box.Entry, 0, len(t.Members))
			for _, m := range t.Members {
				v, ok := typeLookup(m.Type, nil, stack)
				if !ok {
					v = box.NewUnresolvable(m, stack)
				}
				entries = append(entries, box.Entry{Key: m.Name, Value: v})
			}
			return box.NewObject(entries, t, stack), true
		}
		for _, m := range t.Members {
			if m.Name == path[0] {
				return typeLookup(m.Type, path[1:], push(stack, m))
			}
		}
	case *ast.LiteralType:
		if len(path) == 0 {
			return literal(t.Lit, stack), true
		}
	}
	return nil, false
}

// indexValue looks up path in an evaluated value.
func indexValue(v box.Value, path []string, node ast.Node, stack []ast.Node) (box.Value, bool) {
	if v == nil {
		return nil, false
	}
	if len(path) == 0 {
		return v, true
	}
	key, rest := path[0], path[1:]
	switch v := v.(type) {
	case *box.Object:
		if inner, ok := v.Get(key); ok {
			return indexValue(inner, rest, node, stack)
		}
	case *box.Map:
		vs, ok := v.Get(key)
		if !ok {
			return nil, false
		}
		var out box.Value
		for i := len(vs) - 1; i >= 0; i-- {
			inner, ok := indexValue(vs[i], rest, node, stack)
			if !ok {
				continue
			}
			out = combine(box.Ternary, inner, out, node, stack)
		}
		return out, out != nil
	case *box.List:
		if key == "length" {
			return indexValue(box.NewLiteral(v.Len(), node, stack), rest, node, stack)
		}
		if i, err := strconv.Atoi(key); err == nil && strconv.Itoa(i) == key {
			if inner, ok := v.At(i); ok {
				return indexValue(inner, rest, node, stack)
			}
		}
	case *box.Conditional:
		t, tok := indexValue(v.WhenTrue(), path, node, stack)
		f, fok := indexValue(v.WhenFalse(), path, node, stack)
		if !tok && !fok {
			return nil, false
		}
		return combine(v.CondKind(), t, f, node, stack), true
	case *box.Literal:
		s, ok := v.Str()
		if !ok {
			break
		}
		if key == "length" {
			return indexValue(box.NewLiteral(len(utf16.Encode([]rune(s))), node, stack), rest, node, stack)
		}
	}
	return nil, false
}
