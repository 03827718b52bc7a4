package ast

// Walk traverses the tree rooted at n in depth-first order. fn is called for
// each node; if it returns false, the node's children are skipped.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || isNilNode(n) || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// WalkFile walks every top-level node of f.
func WalkFile(f *File, fn func(Node) bool) {
	for _, n := range f.Body {
		Walk(n, fn)
	}
}

// Children returns the direct children of n, skipping absent ones.
func Children(n Node) []Node {
	var out []Node
	add := func(cs ...Node) {
		for _, c := range cs {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}
	switch n := n.(type) {
	case *Ident, *Literal, *ExportSpec, *OpaqueType:
	case *ImportDecl:
		for _, s := range n.Specs {
			add(s)
		}
	case *TemplateLit:
		for _, e := range n.Exprs {
			add(e)
		}
	case *ArrayExpr:
		for _, e := range n.Elems {
			add(e)
		}
	case *SpreadElem:
		add(n.X)
	case *ObjectExpr:
		add(n.Props...)
	case *Property:
		add(n.KeyExpr, n.Value)
	case *DotExpr:
		add(n.X)
	case *IndexExpr:
		add(n.X, n.Index)
	case *CondExpr:
		add(n.Cond, n.True, n.False)
	case *BinaryExpr:
		add(n.X, n.Y)
	case *UnaryExpr:
		add(n.X)
	case *CallExpr:
		add(n.Fn)
		for _, a := range n.Args {
			add(a)
		}
	case *ParenExpr:
		add(n.X)
	case *AssertExpr:
		add(n.X)
	case *JSXElement:
		add(n.Tag)
		add(n.Attrs...)
		add(n.Children...)
	case *JSXAttr:
		add(n.Value)
	case *JSXSpread:
		add(n.X)
	case *Opaque:
		add(n.Children...)
	case *VarDecl:
		add(n.Name, n.Init)
	case *ObjectPattern:
		for _, p := range n.Props {
			add(p)
		}
	case *PatternProp:
		add(n.KeyExpr, n.Value, n.Default)
	case *ArrayPattern:
		for _, e := range n.Elems {
			if e != nil {
				add(e)
			}
		}
	case *PatternElem:
		add(n.Value, n.Default)
	case *ImportSpec:
		add(n.Local)
	case *ExportDecl:
		for _, s := range n.Specs {
			add(s)
		}
	case *ExportDefault:
		add(n.X)
	case *TypeLit:
		for _, m := range n.Members {
			add(m)
		}
	case *PropSig:
		add(n.Type)
	case *LiteralType:
		add(n.Lit)
	}
	return out
}

// isNilNode catches typed nil pointers stored in interfaces.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Ident:
		return n == nil
	case *Literal:
		return n == nil
	case *ObjectExpr:
		return n == nil
	case *ArrayExpr:
		return n == nil
	case *Opaque:
		return n == nil
	case *VarDecl:
		return n == nil
	case *PropSig:
		return n == nil
	case *TypeLit:
		return n == nil
	case *ObjectPattern:
		return n == nil
	case *ArrayPattern:
		return n == nil
	case *LiteralType:
		return n == nil
	case *OpaqueType:
		return n == nil
	}
	return false
}

// Inspect calls fn for every node of type T under n.
func Inspect[T Node](n Node, fn func(T)) {
	Walk(n, func(c Node) bool {
		if t, ok := c.(T); ok {
			fn(t)
		}
		return true
	})
}
