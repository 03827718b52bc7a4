// Package collect finds the usages of tracked components and functions in
// a file and records the literal values of their properties.
package collect

import (
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/eval"
	"github.com/fmeum/unbox/internal/logging"
)

// Prop is one merged property of a usage site.
type Prop struct {
	Name  string
	Value box.Value
}

// Usage is one JSX element or call of a tracked construct.
type Usage struct {
	Name string
	Kind Kind
	// Node is the *ast.JSXElement or *ast.CallExpr.
	Node  ast.Node
	Props []Prop
}

// Get returns the merged value of the named property.
func (u *Usage) Get(name string) (box.Value, bool) {
	for _, p := range u.Props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Pair is a literal a usage provides for a property. Condition is set for
// literals nested under a grouping object, such as the "mobile" of
// `color={{mobile: "red"}}`.
type Pair struct {
	Prop      string
	Condition string
	Value     *box.Literal
}

// Extracted holds what was found for one construct.
type Extracted struct {
	Name string
	Kind Kind
	// Pairs is ordered and free of duplicates.
	Pairs  []Pair
	Usages []*Usage

	seen map[string]bool
}

func (x *Extracted) addPair(p Pair) bool {
	k := p.Prop + "\x00" + p.Condition + "\x00" + p.Value.Key()
	if x.seen[k] {
		return false
	}
	x.seen[k] = true
	x.Pairs = append(x.Pairs, p)
	return true
}

// Result is the outcome of collecting one file.
type Result struct {
	File       string
	Constructs []*Extracted
	// Errors are configuration errors. They never stop the collection.
	Errors []error
	// Deps are the modules evaluation loaded, for incremental rescans.
	Deps []string
}

// Construct returns the extraction of the named construct.
func (r *Result) Construct(name string) *Extracted {
	for _, x := range r.Constructs {
		if x.Name == name {
			return x
		}
	}
	return nil
}

type collector struct {
	file   *ast.File
	ev     *eval.Evaluator
	used   *UsageMap
	logger *slog.Logger
	res    *Result
}

type tracked struct {
	c   Construct
	out *Extracted
	// source is the resolved module path or bare specifier Name must come
	// from, if a Module is configured.
	source string
	skip   bool
}

// Option configures Collect.
type Option func(*collector)

// WithLogger sets the logger for configuration errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *collector) { c.logger = l }
}

// Collect extracts the usages of components and functions from file and
// records their literals in used, which may be nil. ev must have been
// created for file.
func Collect(file *ast.File, components, functions []Construct, used *UsageMap, ev *eval.Evaluator, opts ...Option) *Result {
	c := &collector{
		file: file,
		ev:   ev,
		used: used,
		res:  &Result{File: file.Path},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.Scoped(c.logger, "collect")
	var comps, fns []*tracked
	for _, con := range components {
		con.Kind = ComponentKind
		comps = append(comps, c.track(con))
	}
	for _, con := range functions {
		con.Kind = FunctionKind
		fns = append(fns, c.track(con))
	}

	ast.WalkFile(file, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.JSXElement:
			for _, t := range comps {
				if !t.skip && c.matches(t, n.Tag) {
					c.component(t, n)
				}
			}
		case *ast.CallExpr:
			for _, t := range fns {
				if !t.skip && c.matches(t, n.Fn) {
					c.call(t, n)
				}
			}
		}
		return true
	})

	if r := ev.Resolver(); r != nil {
		c.res.Errors = append(c.res.Errors, r.Errors()...)
		c.res.Deps = r.Deps()
	}
	return c.res
}

func (c *collector) track(con Construct) *tracked {
	t := &tracked{c: con, out: &Extracted{Name: con.Name, Kind: con.Kind, seen: make(map[string]bool)}}
	c.res.Constructs = append(c.res.Constructs, t.out)
	if c.used != nil {
		c.used.Track(con.Name, con.Kind)
	}

	root := con.Name
	if i := strings.IndexByte(root, '.'); i >= 0 {
		root = root[:i]
	}
	for _, id := range c.file.Redeclared {
		if id.Name == root && id.Scope == c.file.Scope {
			start, _ := id.Span()
			c.configError(con.Name, start, ErrConflictingDeclarations)
			t.skip = true
			return t
		}
	}

	if con.Module == "" {
		return t
	}
	r := c.ev.Resolver()
	if r == nil {
		t.source = con.Module
		return t
	}
	target, err := r.Program().ResolveSpecifier(c.file.Path, con.Module)
	if err != nil {
		c.configError(con.Name, ast.Pos{}, errors.Wrapf(err, "module %q", con.Module))
		t.skip = true
		return t
	}
	if target == "" {
		target = con.Module
	}
	t.source = target
	return t
}

func (c *collector) configError(name string, pos ast.Pos, err error) {
	c.logger.Warn("configuration error", "file", c.file.Path, "construct", name, "err", err)
	c.res.Errors = append(c.res.Errors, errors.WithStack(&ConfigError{File: c.file.Path, Pos: pos, Construct: name, Err: err}))
}

// matches reports whether the tag or callee e refers to the construct.
func (c *collector) matches(t *tracked, e ast.Expr) bool {
	name := ast.DottedName(e)
	if name == "" {
		return false
	}
	if name != t.c.Name && !strings.HasSuffix(name, "."+t.c.Name) {
		return false
	}
	if t.source == "" {
		return true
	}
	return c.importedFrom(ast.RootIdent(e), t.source)
}

// importedFrom reports whether id is bound by an import of source.
func (c *collector) importedFrom(id *ast.Ident, source string) bool {
	if id == nil || id.Scope == nil {
		return false
	}
	b := id.Scope.Lookup(id.Name)
	if b == nil || b.Kind != ast.ImportBinding {
		return false
	}
	spec := b.ImportSpec()
	if spec == nil {
		return false
	}
	if spec.Decl.Source == source {
		return true
	}
	r := c.ev.Resolver()
	if r == nil {
		return false
	}
	target, err := r.Program().ResolveSpecifier(c.file.Path, spec.Decl.Source)
	return err == nil && target == source
}

func (c *collector) component(t *tracked, el *ast.JSXElement) {
	u := &Usage{Name: t.c.Name, Kind: ComponentKind, Node: el}
	b := mergeAttrs(c.ev, el, t.c.Props)
	u.Props = b.props()
	c.record(t, u)
}

func (c *collector) call(t *tracked, call *ast.CallExpr) {
	if len(call.Args) == 0 {
		return
	}
	u := &Usage{Name: t.c.Name, Kind: FunctionKind, Node: call}
	b := newBag()
	b.spread(c.ev.EvalObject(call.Args[0], []ast.Node{call}), t.c.Props, call.Args[0])
	u.Props = b.props()
	c.record(t, u)
}

func (c *collector) record(t *tracked, u *Usage) {
	t.out.Usages = append(t.out.Usages, u)
	for _, p := range u.Props {
		c.literals(p.Value, "", func(cond string, l *box.Literal) {
			pair := Pair{Prop: p.Name, Condition: cond, Value: l}
			if t.out.addPair(pair) && c.used != nil {
				c.used.Add(c.file.Path, t.c.Name, t.c.Kind, p.Name, cond, l)
			}
		})
	}
}

// literals calls fn for every literal v can produce. The entries of a
// grouping object are reported under their key as condition. Null and
// undefined are skipped.
func (c *collector) literals(v box.Value, cond string, fn func(cond string, l *box.Literal)) {
	switch v := v.(type) {
	case *box.Literal:
		if !box.IsNullish(v) {
			fn(cond, v)
		}
	case *box.List:
		for _, it := range v.Items() {
			c.literals(it, cond, fn)
		}
	case *box.Conditional:
		c.literals(v.WhenTrue(), cond, fn)
		c.literals(v.WhenFalse(), cond, fn)
	case *box.Object:
		if cond != "" {
			return
		}
		for _, e := range v.Entries() {
			c.literals(e.Value, e.Key, fn)
		}
	case *box.Map:
		if cond != "" {
			return
		}
		for _, e := range v.Entries() {
			for _, alt := range e.Values {
				c.literals(alt, e.Key, fn)
			}
		}
	}
}

// mergeAttrs evaluates the attributes of el in source order. Later
// attributes and spread entries overwrite earlier ones.
func mergeAttrs(ev *eval.Evaluator, el *ast.JSXElement, filter Props) *bag {
	stack := []ast.Node{el}
	b := newBag()
	for _, a := range el.Attrs {
		switch a := a.(type) {
		case *ast.JSXAttr:
			if !filter.Has(a.Name) {
				continue
			}
			var v box.Value
			if a.Value == nil {
				v = box.NewEmptyInitializer(a, stack)
			} else if v = ev.Eval(a.Value, stack); v == nil {
				v = box.NewUnresolvable(a.Value, stack)
			}
			b.set(a.Name, v)
		case *ast.JSXSpread:
			b.spread(ev.EvalObject(a.X, stack), filter, a)
		}
	}
	return b
}

// bag is an ordered property bag. A key keeps its first position and its
// last value.
type bag struct {
	keys []string
	vals map[string]box.Value
}

func newBag() *bag { return &bag{vals: make(map[string]box.Value)} }

func (b *bag) set(k string, v box.Value) {
	if _, ok := b.vals[k]; !ok {
		b.keys = append(b.keys, k)
	}
	b.vals[k] = v
}

// spread merges the entries of an Object or Map. The alternatives of a Map
// entry become one conditional value. A Map entry may be missing from some
// branches, so an earlier value of its key stays one of the alternatives.
func (b *bag) spread(v box.Value, filter Props, node ast.Node) {
	switch v := v.(type) {
	case *box.Object:
		for _, e := range v.Entries() {
			if filter.Has(e.Key) {
				b.set(e.Key, e.Value)
			}
		}
	case *box.Map:
		for _, e := range v.Entries() {
			if !filter.Has(e.Key) || len(e.Values) == 0 {
				continue
			}
			alts := e.Values
			if prev, ok := b.vals[e.Key]; ok {
				alts = append([]box.Value{prev}, alts...)
			}
			b.set(e.Key, alternatives(alts, node, v.Stack()))
		}
	}
}

func alternatives(vs []box.Value, node ast.Node, stack []ast.Node) box.Value {
	out := vs[len(vs)-1]
	for i := len(vs) - 2; i >= 0; i-- {
		out = box.NewConditional(box.Ternary, vs[i], out, node, stack)
	}
	return out
}

func (b *bag) props() []Prop {
	out := make([]Prop, len(b.keys))
	for i, k := range b.keys {
		out[i] = Prop{Name: k, Value: b.vals[k]}
	}
	return out
}
