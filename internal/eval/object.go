package eval

import (
	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/box"
)

// EvalObject reduces expr to an Object or a Map. Object literals are
// reduced property by property. Anything else is evaluated, and a
// conditional whose branches are objects becomes a Map holding the
// alternatives of both branches. Other values are returned unchanged.
func (ev *Evaluator) EvalObject(expr ast.Expr, stack []ast.Node) box.Value {
	if expr == nil {
		return nil
	}
	if v, ok := ev.objects[expr]; ok {
		ev.stats.CacheHits++
		return v
	}
	key := objectKey{expr}
	if ev.active[key] {
		ev.stats.Cycles++
		ev.logger.Debug("object cycle", "node", describe(expr))
		return box.NewUnresolvable(expr, stack)
	}
	ev.active[key] = true
	var v box.Value
	if o, ok := ast.Unparen(expr).(*ast.ObjectExpr); ok {
		v = ev.objectLiteral(o, push(stack, expr))
	} else {
		v = normalize(ev.Eval(expr, stack), expr, stack)
	}
	delete(ev.active, key)
	ev.objects[expr] = v
	return v
}

// objectBuilder collects the entries of an object literal in insertion
// order. Once a spread contributes alternatives the result is a Map.
type objectBuilder struct {
	keys  []string
	vals  map[string][]box.Value
	isMap bool
}

func (b *objectBuilder) touch(k string) {
	if _, ok := b.vals[k]; !ok {
		b.keys = append(b.keys, k)
	}
}

func (b *objectBuilder) set(k string, v box.Value) {
	b.touch(k)
	b.vals[k] = []box.Value{v}
}

func (b *objectBuilder) add(k string, vs ...box.Value) {
	b.touch(k)
	b.vals[k] = append(b.vals[k], vs...)
	b.isMap = true
}

func (b *objectBuilder) build(node ast.Node, stack []ast.Node) box.Value {
	if b.isMap {
		entries := make([]box.MapEntry, len(b.keys))
		for i, k := range b.keys {
			entries[i] = box.MapEntry{Key: k, Values: b.vals[k]}
		}
		return box.NewMap(entries, node, stack)
	}
	entries := make([]box.Entry, len(b.keys))
	for i, k := range b.keys {
		entries[i] = box.Entry{Key: k, Value: b.vals[k][0]}
	}
	return box.NewObject(entries, node, stack)
}

func (ev *Evaluator) objectLiteral(o *ast.ObjectExpr, stack []ast.Node) box.Value {
	b := &objectBuilder{vals: make(map[string][]box.Value)}
	for _, p := range o.Props {
		switch p := p.(type) {
		case *ast.Property:
			v := ev.Eval(p.Value, stack)
			if v == nil {
				v = box.NewUnresolvable(p.Value, stack)
			}
			if p.KeyExpr == nil {
				b.set(p.Key, v)
				continue
			}
			keys, ok := ev.keys(p.KeyExpr, stack)
			switch {
			case !ok:
				ev.logger.Debug("dropping computed key", "node", describe(p))
			case len(keys) == 1:
				b.set(keys[0], v)
			default:
				for _, k := range keys {
					b.add(k, v)
				}
			}
		case *ast.SpreadElem:
			switch s := ev.EvalObject(p.X, stack).(type) {
			case *box.Object:
				for _, e := range s.Entries() {
					b.set(e.Key, e.Value)
				}
			case *box.Map:
				for _, e := range s.Entries() {
					b.add(e.Key, e.Values...)
				}
			}
		}
	}
	return b.build(o, stack)
}

// normalize turns a conditional of objects into a Map. Branches that are
// not objects contribute nothing.
func normalize(v box.Value, node ast.Node, stack []ast.Node) box.Value {
	c, ok := v.(*box.Conditional)
	if !ok {
		return v
	}
	t := normalize(c.WhenTrue(), node, stack)
	f := normalize(c.WhenFalse(), node, stack)
	if !isObjectLike(t) && !isObjectLike(f) {
		return v
	}
	b := &objectBuilder{vals: make(map[string][]box.Value), isMap: true}
	for _, branch := range []box.Value{t, f} {
		switch branch := branch.(type) {
		case *box.Object:
			for _, e := range branch.Entries() {
				b.add(e.Key, e.Value)
			}
		case *box.Map:
			for _, e := range branch.Entries() {
				b.add(e.Key, e.Values...)
			}
		}
	}
	return b.build(node, stack)
}

func isObjectLike(v box.Value) bool { return box.IsObject(v) || box.IsMap(v) }
