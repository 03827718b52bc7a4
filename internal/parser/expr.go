package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fmeum/unbox/internal/ast"
)

func (l *lowerer) expr(n *sitter.Node) ast.Expr {
	if n == nil {
		return nil
	}
	r := l.rng(n)
	switch n.Type() {
	case "identifier", "shorthand_property_identifier":
		return l.ident(n)
	case "undefined":
		return &ast.Literal{Range: r, Kind: ast.UndefinedLit, Raw: "undefined"}
	case "null":
		return &ast.Literal{Range: r, Kind: ast.NullLit, Raw: "null"}
	case "true", "false":
		return &ast.Literal{Range: r, Kind: ast.BoolLit, Value: n.Type() == "true", Raw: n.Type()}
	case "number":
		raw := l.text(n)
		f, ok := ast.ParseNumber(raw)
		if !ok {
			return &ast.Opaque{Range: r, Kind: n.Type()}
		}
		return &ast.Literal{Range: r, Kind: ast.NumberLit, Value: f, Raw: raw}
	case "string":
		raw := l.text(n)
		return &ast.Literal{Range: r, Kind: ast.StringLit, Value: stringValue(raw), Raw: raw}
	case "template_string":
		return l.template(n)
	case "array":
		return l.array(n)
	case "object":
		return l.object(n)
	case "spread_element":
		return &ast.SpreadElem{Range: r, X: l.expr(firstNamed(n))}
	case "member_expression":
		d := &ast.DotExpr{Range: r, X: l.expr(n.ChildByFieldName("object")), Optional: isOptional(n)}
		if p := n.ChildByFieldName("property"); p != nil {
			d.Name = l.text(p)
		}
		return d
	case "subscript_expression":
		return &ast.IndexExpr{
			Range:    r,
			X:        l.expr(n.ChildByFieldName("object")),
			Index:    l.expr(n.ChildByFieldName("index")),
			Optional: isOptional(n),
		}
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil || fn.Type() == "import" {
			return l.opaque(n)
		}
		c := &ast.CallExpr{Range: r, Fn: l.expr(fn)}
		if args := n.ChildByFieldName("arguments"); args != nil {
			if args.Type() == "template_string" {
				c.Args = append(c.Args, l.template(args))
			} else {
				for _, a := range named(args) {
					c.Args = append(c.Args, l.expr(a))
				}
			}
		}
		return c
	case "ternary_expression":
		return &ast.CondExpr{
			Range: r,
			Cond:  l.expr(n.ChildByFieldName("condition")),
			True:  l.expr(n.ChildByFieldName("consequence")),
			False: l.expr(n.ChildByFieldName("alternative")),
		}
	case "binary_expression":
		op := n.ChildByFieldName("operator")
		if op == nil {
			return l.opaque(n)
		}
		return &ast.BinaryExpr{
			Range: r,
			Op:    op.Type(),
			X:     l.expr(n.ChildByFieldName("left")),
			Y:     l.expr(n.ChildByFieldName("right")),
		}
	case "unary_expression":
		op := n.ChildByFieldName("operator")
		if op == nil {
			return l.opaque(n)
		}
		return &ast.UnaryExpr{Range: r, Op: op.Type(), X: l.expr(n.ChildByFieldName("argument"))}
	case "parenthesized_expression":
		inner := firstNamed(n)
		if inner == nil {
			return l.opaque(n)
		}
		return &ast.ParenExpr{Range: r, X: l.expr(inner)}
	case "as_expression", "satisfies_expression":
		cs := named(n)
		if len(cs) == 0 {
			return l.opaque(n)
		}
		a := &ast.AssertExpr{Range: r, Op: strings.TrimSuffix(n.Type(), "_expression"), X: l.expr(cs[0])}
		if len(cs) > 1 {
			a.Type = l.typeNode(cs[1])
		}
		return a
	case "non_null_expression":
		return &ast.AssertExpr{Range: r, Op: "!", X: l.expr(firstNamed(n))}
	case "type_assertion":
		cs := named(n)
		if len(cs) == 0 {
			return l.opaque(n)
		}
		return &ast.AssertExpr{Range: r, Op: "<>", X: l.expr(cs[len(cs)-1])}
	case "arrow_function", "function", "function_expression", "generator_function":
		return l.function(n)
	case "class":
		return l.class(n)
	case "jsx_element", "jsx_self_closing_element":
		return l.jsx(n)
	case "jsx_fragment":
		return &ast.Opaque{Range: r, Kind: n.Type(), Children: l.jsxChildNodes(n)}
	case "ERROR":
		l.syntaxError(n)
	}
	return l.opaque(n)
}

func isOptional(n *sitter.Node) bool {
	return hasToken(n, "optional_chain") || hasToken(n, "?.")
}

func (l *lowerer) template(n *sitter.Node) *ast.TemplateLit {
	t := &ast.TemplateLit{Range: l.rng(n)}
	// Quasis are cut out of the raw source between substitutions so the
	// result does not depend on how the grammar splits string fragments.
	pos := n.StartByte() + 1
	for _, c := range named(n) {
		if c.Type() != "template_substitution" {
			continue
		}
		t.Quasis = append(t.Quasis, unescape(string(l.src[pos:c.StartByte()])))
		t.Exprs = append(t.Exprs, l.expr(firstNamed(c)))
		pos = c.EndByte()
	}
	end := n.EndByte()
	if end > pos {
		end--
	}
	t.Quasis = append(t.Quasis, unescape(string(l.src[pos:end])))
	return t
}

func (l *lowerer) array(n *sitter.Node) *ast.ArrayExpr {
	a := &ast.ArrayExpr{Range: l.rng(n)}
	filled := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "[", "]", "comment":
			continue
		case ",":
			if !filled {
				a.Elems = append(a.Elems, nil)
			}
			filled = false
			continue
		}
		a.Elems = append(a.Elems, l.expr(c))
		filled = true
	}
	return a
}

func (l *lowerer) object(n *sitter.Node) *ast.ObjectExpr {
	o := &ast.ObjectExpr{Range: l.rng(n)}
	for _, c := range named(n) {
		r := l.rng(c)
		switch c.Type() {
		case "pair":
			p := &ast.Property{Range: r}
			p.Key, p.KeyExpr = l.propertyKey(c.ChildByFieldName("key"))
			p.Value = l.expr(c.ChildByFieldName("value"))
			o.Props = append(o.Props, p)
		case "shorthand_property_identifier":
			o.Props = append(o.Props, &ast.Property{Range: r, Key: l.text(c), Value: l.ident(c), Shorthand: true})
		case "spread_element":
			o.Props = append(o.Props, &ast.SpreadElem{Range: r, X: l.expr(firstNamed(c))})
		case "method_definition":
			o.Props = append(o.Props, l.function(c))
		default:
			o.Props = append(o.Props, l.opaque(c))
		}
	}
	return o
}

// propertyKey returns the static name of a property key, or the key
// expression for computed keys.
func (l *lowerer) propertyKey(n *sitter.Node) (string, ast.Expr) {
	if n == nil {
		return "", nil
	}
	switch n.Type() {
	case "string":
		return stringValue(l.text(n)), nil
	case "number":
		if f, ok := ast.ParseNumber(l.text(n)); ok {
			return ast.FormatNumber(f), nil
		}
	case "computed_property_name":
		return "", l.expr(firstNamed(n))
	}
	return l.text(n), nil
}

func (l *lowerer) jsx(n *sitter.Node) *ast.JSXElement {
	el := &ast.JSXElement{Range: l.rng(n), SelfClosing: n.Type() == "jsx_self_closing_element"}
	open := n
	if !el.SelfClosing {
		open = n.ChildByFieldName("open_tag")
		if open == nil {
			open = firstNamed(n)
		}
	}
	if open != nil {
		name := open.ChildByFieldName("name")
		for _, c := range named(open) {
			if name == nil && c.Type() != "jsx_attribute" && c.Type() != "jsx_expression" {
				name = c
			}
			switch c.Type() {
			case "jsx_attribute":
				el.Attrs = append(el.Attrs, l.jsxAttr(c))
			case "jsx_expression":
				if s := firstNamed(c); s != nil && s.Type() == "spread_element" {
					el.Attrs = append(el.Attrs, &ast.JSXSpread{Range: l.rng(c), X: l.expr(firstNamed(s))})
				}
			}
		}
		if name != nil {
			el.Name = strings.Join(strings.Fields(l.text(name)), "")
			el.Tag = l.jsxTag(name)
		}
	}
	if !el.SelfClosing {
		el.Children = l.jsxChildNodes(n)
	}
	return el
}

func (l *lowerer) jsxChildNodes(n *sitter.Node) []ast.Node {
	var out []ast.Node
	for _, c := range named(n) {
		switch c.Type() {
		case "jsx_opening_element", "jsx_closing_element", "jsx_text", "html_character_reference":
		case "jsx_expression":
			if inner := firstNamed(c); inner != nil {
				out = append(out, l.expr(inner))
			}
		default:
			out = append(out, l.expr(c))
		}
	}
	return out
}

// jsxTag lowers a tag name. Dotted names become property accesses so that
// `<ui.Box>` resolves like `ui.Box`.
func (l *lowerer) jsxTag(n *sitter.Node) ast.Expr {
	switch n.Type() {
	case "identifier":
		return l.ident(n)
	case "member_expression":
		return l.expr(n)
	case "nested_identifier":
		parts := strings.Split(strings.Join(strings.Fields(l.text(n)), ""), ".")
		r := l.rng(n)
		var x ast.Expr = &ast.Ident{Range: r, Name: parts[0], Scope: l.scope}
		for _, p := range parts[1:] {
			x = &ast.DotExpr{Range: r, X: x, Name: p}
		}
		return x
	}
	return &ast.Opaque{Range: l.rng(n), Kind: n.Type()}
}

func (l *lowerer) jsxAttr(n *sitter.Node) *ast.JSXAttr {
	a := &ast.JSXAttr{Range: l.rng(n)}
	cs := named(n)
	if len(cs) == 0 {
		return a
	}
	a.Name = l.text(cs[0])
	if len(cs) < 2 {
		return a
	}
	v := cs[1]
	switch v.Type() {
	case "string":
		// JSX attribute strings take no backslash escapes.
		raw := l.text(v)
		s := raw
		if len(s) >= 2 {
			s = s[1 : len(s)-1]
		}
		a.Value = &ast.Literal{Range: l.rng(v), Kind: ast.StringLit, Value: s, Raw: raw}
	case "jsx_expression":
		if inner := firstNamed(v); inner != nil {
			a.Value = l.expr(inner)
		} else {
			a.Value = &ast.Opaque{Range: l.rng(v), Kind: "jsx_empty_expression"}
		}
	default:
		a.Value = l.expr(v)
	}
	return a
}

func (l *lowerer) typeAnnotation(n *sitter.Node) ast.TypeNode {
	if n.Type() == "type_annotation" {
		n = firstNamed(n)
	}
	if n == nil {
		return nil
	}
	return l.typeNode(n)
}

func (l *lowerer) typeNode(n *sitter.Node) ast.TypeNode {
	r := l.rng(n)
	switch n.Type() {
	case "object_type":
		t := &ast.TypeLit{Range: r}
		for _, m := range named(n) {
			if m.Type() != "property_signature" {
				continue
			}
			p := &ast.PropSig{Range: l.rng(m), Readonly: hasToken(m, "readonly"), Optional: hasToken(m, "?")}
			if name := m.ChildByFieldName("name"); name != nil {
				p.Name, _ = l.propertyKey(name)
			}
			if ta := m.ChildByFieldName("type"); ta != nil {
				p.Type = l.typeAnnotation(ta)
			}
			t.Members = append(t.Members, p)
		}
		return t
	case "literal_type":
		inner := firstNamed(n)
		if inner == nil {
			break
		}
		if lit, ok := l.literalTypeValue(inner); ok {
			return &ast.LiteralType{Range: r, Lit: lit}
		}
	case "parenthesized_type", "readonly_type":
		if inner := firstNamed(n); inner != nil {
			return l.typeNode(inner)
		}
	}
	return &ast.OpaqueType{Range: r, Kind: n.Type()}
}

func (l *lowerer) literalTypeValue(n *sitter.Node) (*ast.Literal, bool) {
	switch n.Type() {
	case "string", "number", "true", "false", "null", "undefined":
		lit, ok := l.expr(n).(*ast.Literal)
		return lit, ok
	case "unary_expression":
		u, ok := l.expr(n).(*ast.UnaryExpr)
		if !ok || u.Op != "-" {
			return nil, false
		}
		lit, ok := u.X.(*ast.Literal)
		if !ok || lit.Kind != ast.NumberLit {
			return nil, false
		}
		r := l.rng(n)
		return &ast.Literal{Range: r, Kind: ast.NumberLit, Value: -lit.Value.(float64), Raw: l.text(n)}, true
	}
	return nil, false
}
