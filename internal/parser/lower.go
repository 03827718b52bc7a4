package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fmeum/unbox/internal/ast"
)

// lowerer converts one tree-sitter tree into ast nodes, declaring bindings
// in the scope that is current when their declaration is reached. Lookups
// happen only after the whole file is lowered, so declaration order within
// a scope does not matter.
type lowerer struct {
	src   []byte
	file  *ast.File
	scope *ast.Scope
}

func (l *lowerer) text(n *sitter.Node) string { return n.Content(l.src) }

func (l *lowerer) rng(n *sitter.Node) ast.Range {
	s, e := n.StartPoint(), n.EndPoint()
	return ast.Range{
		Start: ast.Pos{Line: int(s.Row) + 1, Col: int(s.Column) + 1, Offset: int(n.StartByte())},
		End:   ast.Pos{Line: int(e.Row) + 1, Col: int(e.Column), Offset: int(n.EndByte())},
	}
}

func (l *lowerer) push(kind ast.ScopeKind) func() {
	outer := l.scope
	l.scope = ast.NewScope(kind, outer)
	return func() { l.scope = outer }
}

// named returns the named children of n other than comments.
func named(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if cs := named(n); len(cs) > 0 {
		return cs[0]
	}
	return nil
}

// hasToken reports whether n has a direct child of the given type, which
// is how keywords like `default` or `type` show up.
func hasToken(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == typ {
			return true
		}
	}
	return false
}

func (l *lowerer) syntaxError(n *sitter.Node) {
	l.file.SyntaxErrors = append(l.file.SyntaxErrors, l.rng(n).Start)
}

// stmt lowers a statement-level node.
func (l *lowerer) stmt(n *sitter.Node) []ast.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "comment", "empty_statement", "hash_bang_line":
		return nil
	case "import_statement":
		return []ast.Node{l.importDecl(n)}
	case "export_statement":
		return l.exportStmt(n)
	case "lexical_declaration", "variable_declaration":
		return l.varDecls(n, false, false)
	case "ambient_declaration":
		var out []ast.Node
		for _, c := range named(n) {
			switch c.Type() {
			case "lexical_declaration", "variable_declaration":
				out = append(out, l.varDecls(c, false, true)...)
			default:
				out = append(out, l.stmt(c)...)
			}
		}
		return out
	case "function_declaration", "generator_function_declaration":
		return []ast.Node{l.funcDecl(n, false)}
	case "class_declaration", "abstract_class_declaration":
		return []ast.Node{l.classDecl(n, false)}
	case "type_alias_declaration", "interface_declaration", "function_signature":
		return []ast.Node{&ast.Opaque{Range: l.rng(n), Kind: n.Type()}}
	case "enum_declaration":
		l.declareName(n.ChildByFieldName("name"), ast.OtherBinding, nil, false)
		return []ast.Node{&ast.Opaque{Range: l.rng(n), Kind: n.Type()}}
	case "expression_statement":
		var out []ast.Node
		for _, c := range named(n) {
			out = append(out, l.any(c)...)
		}
		return out
	case "statement_block":
		defer l.push(ast.BlockScope)()
		return []ast.Node{l.opaque(n)}
	case "for_statement", "switch_statement":
		defer l.push(ast.BlockScope)()
		return []ast.Node{l.opaque(n)}
	case "for_in_statement":
		defer l.push(ast.BlockScope)()
		op := &ast.Opaque{Range: l.rng(n), Kind: n.Type()}
		if left := n.ChildByFieldName("left"); left != nil && n.ChildByFieldName("kind") != nil {
			op.Children = append(op.Children, l.pattern(left, ast.OtherBinding, op, nil, nil, l.scope, false))
		} else if left != nil {
			op.Children = append(op.Children, l.any(left)...)
		}
		op.Children = append(op.Children, l.any(n.ChildByFieldName("right"))...)
		op.Children = append(op.Children, l.stmt(n.ChildByFieldName("body"))...)
		return []ast.Node{op}
	case "catch_clause":
		defer l.push(ast.BlockScope)()
		op := &ast.Opaque{Range: l.rng(n), Kind: n.Type()}
		if p := n.ChildByFieldName("parameter"); p != nil {
			op.Children = append(op.Children, l.pattern(p, ast.OtherBinding, op, nil, nil, l.scope, false))
		}
		op.Children = append(op.Children, l.stmt(n.ChildByFieldName("body"))...)
		return []ast.Node{op}
	case "ERROR":
		l.syntaxError(n)
		return []ast.Node{l.opaque(n)}
	}
	if isStatement(n.Type()) {
		return []ast.Node{l.opaque(n)}
	}
	return l.any(n)
}

// any lowers a node that may be a statement or an expression.
func (l *lowerer) any(n *sitter.Node) []ast.Node {
	if n == nil {
		return nil
	}
	if isStatement(n.Type()) {
		return l.stmt(n)
	}
	if isType(n.Type()) {
		return nil
	}
	return []ast.Node{l.expr(n)}
}

// opaque lowers n as a container of its named children.
func (l *lowerer) opaque(n *sitter.Node) *ast.Opaque {
	op := &ast.Opaque{Range: l.rng(n), Kind: n.Type()}
	for _, c := range named(n) {
		if c.Type() == "ERROR" {
			l.syntaxError(c)
		}
		op.Children = append(op.Children, l.stmt(c)...)
	}
	return op
}

func isStatement(typ string) bool {
	switch typ {
	case "import_statement", "export_statement", "lexical_declaration", "variable_declaration",
		"ambient_declaration", "function_declaration", "generator_function_declaration",
		"class_declaration", "abstract_class_declaration", "type_alias_declaration",
		"interface_declaration", "enum_declaration", "expression_statement", "statement_block",
		"for_statement", "for_in_statement", "catch_clause", "switch_statement",
		"if_statement", "while_statement", "do_statement", "return_statement", "try_statement",
		"throw_statement", "labeled_statement", "break_statement", "continue_statement",
		"empty_statement", "function_signature", "module", "internal_module", "comment":
		return true
	}
	return false
}

func isType(typ string) bool {
	switch typ {
	case "type_annotation", "type_arguments", "type_parameters", "type_parameter",
		"type_identifier", "predefined_type", "object_type", "literal_type", "union_type",
		"intersection_type", "generic_type", "array_type", "tuple_type", "function_type",
		"nested_type_identifier", "type_predicate_annotation", "asserts_annotation",
		"implements_clause", "opting_type_annotation", "omitting_type_annotation",
		"accessibility_modifier", "override_modifier":
		return true
	}
	return false
}

func (l *lowerer) declare(sc *ast.Scope, b *ast.Binding) {
	if sc.Declare(b) {
		return
	}
	prev := sc.Local(b.Name.Name)
	if redeclarable(prev) && redeclarable(b) {
		return
	}
	l.file.Redeclared = append(l.file.Redeclared, b.Name)
}

// redeclarable reports whether b may share its name with another var or
// function declaration in the same scope.
func redeclarable(b *ast.Binding) bool {
	switch b.Kind {
	case ast.FuncBinding:
		return true
	case ast.VarBinding:
		d := b.VarDecl()
		return d != nil && d.Kind == "var"
	}
	return false
}

func (l *lowerer) ident(n *sitter.Node) *ast.Ident {
	return &ast.Ident{Range: l.rng(n), Name: l.text(n), Scope: l.scope}
}

func (l *lowerer) declareName(n *sitter.Node, kind ast.BindingKind, decl ast.Node, exported bool) *ast.Ident {
	if n == nil {
		return nil
	}
	id := l.ident(n)
	if decl == nil {
		decl = id
	}
	l.declare(l.scope, &ast.Binding{Kind: kind, Name: id, Decl: decl, Exported: exported})
	return id
}

func (l *lowerer) varDecls(n *sitter.Node, exported, declare bool) []ast.Node {
	kind := "var"
	if c := n.Child(0); c != nil {
		kind = c.Type()
	}
	sc := l.scope
	if kind == "var" {
		sc = l.scope.Hoist()
	}
	var out []ast.Node
	for _, c := range named(n) {
		if c.Type() != "variable_declarator" {
			continue
		}
		d := &ast.VarDecl{Range: l.rng(c), Kind: kind, Exported: exported, Declare: declare}
		if t := c.ChildByFieldName("type"); t != nil {
			d.Type = l.typeAnnotation(t)
		}
		if v := c.ChildByFieldName("value"); v != nil {
			d.Init = l.expr(v)
		}
		bk := ast.VarBinding
		d.Name = l.pattern(c.ChildByFieldName("name"), bk, d, nil, nil, sc, exported)
		out = append(out, d)
	}
	return out
}

// pattern lowers a binding pattern and declares every name it binds in sc.
// path locates the pattern inside the declaration's value.
func (l *lowerer) pattern(n *sitter.Node, kind ast.BindingKind, decl ast.Node, path []ast.PathStep, def ast.Expr, sc *ast.Scope, exported bool) ast.Node {
	if n == nil {
		return nil
	}
	bind := func(n *sitter.Node) *ast.Ident {
		id := l.ident(n)
		l.declare(sc, &ast.Binding{
			Kind:     kind,
			Name:     id,
			Decl:     decl,
			Path:     append([]ast.PathStep(nil), path...),
			Default:  def,
			Exported: exported,
		})
		return id
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern", "undefined":
		return bind(n)
	case "object_pattern":
		op := &ast.ObjectPattern{Range: l.rng(n)}
		var seen []string
		for _, c := range named(n) {
			p := &ast.PatternProp{Range: l.rng(c)}
			switch c.Type() {
			case "shorthand_property_identifier_pattern":
				p.Key = l.text(c)
				p.Value = l.pattern(c, kind, decl, stepKey(path, p.Key), nil, sc, exported)
			case "object_assignment_pattern":
				left := c.ChildByFieldName("left")
				p.Default = l.expr(c.ChildByFieldName("right"))
				p.Key = l.text(left)
				p.Value = l.pattern(left, kind, decl, stepKey(path, p.Key), p.Default, sc, exported)
			case "pair_pattern":
				p.Key, p.KeyExpr = l.propertyKey(c.ChildByFieldName("key"))
				step := ast.PathStep{Key: p.Key, KeyExpr: p.KeyExpr}
				v := c.ChildByFieldName("value")
				var vdef ast.Expr
				if v != nil && (v.Type() == "assignment_pattern" || v.Type() == "object_assignment_pattern") {
					vdef = l.expr(v.ChildByFieldName("right"))
					p.Default = vdef
					v = v.ChildByFieldName("left")
				}
				p.Value = l.pattern(v, kind, decl, append(clonePath(path), step), vdef, sc, exported)
			case "rest_pattern":
				p.Rest = true
				step := ast.PathStep{Rest: true, Skip: append([]string(nil), seen...)}
				p.Value = l.pattern(firstNamed(c), kind, decl, append(clonePath(path), step), nil, sc, exported)
			default:
				continue
			}
			if p.Key != "" {
				seen = append(seen, p.Key)
			}
			op.Props = append(op.Props, p)
		}
		return op
	case "array_pattern":
		ap := &ast.ArrayPattern{Range: l.rng(n)}
		idx := 0
		filled := false
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			switch c.Type() {
			case "[", "]", "comment":
				continue
			case ",":
				if !filled {
					ap.Elems = append(ap.Elems, nil)
				}
				idx++
				filled = false
				continue
			}
			e := &ast.PatternElem{Range: l.rng(c)}
			step := ast.PathStep{Index: idx, IsIndex: true}
			v := c
			switch c.Type() {
			case "assignment_pattern":
				e.Default = l.expr(c.ChildByFieldName("right"))
				v = c.ChildByFieldName("left")
			case "rest_pattern":
				e.Rest = true
				step.Rest = true
				v = firstNamed(c)
			}
			e.Value = l.pattern(v, kind, decl, append(clonePath(path), step), e.Default, sc, exported)
			ap.Elems = append(ap.Elems, e)
			filled = true
		}
		return ap
	case "assignment_pattern":
		return l.pattern(n.ChildByFieldName("left"), kind, decl, path, l.expr(n.ChildByFieldName("right")), sc, exported)
	case "required_parameter", "optional_parameter":
		p := n.ChildByFieldName("pattern")
		var pdef ast.Expr
		if v := n.ChildByFieldName("value"); v != nil {
			pdef = l.expr(v)
		}
		return l.pattern(p, kind, decl, path, pdef, sc, exported)
	case "rest_pattern":
		return l.pattern(firstNamed(n), kind, decl, path, nil, sc, exported)
	}
	return l.opaque(n)
}

func clonePath(p []ast.PathStep) []ast.PathStep {
	return append([]ast.PathStep(nil), p...)
}

func stepKey(path []ast.PathStep, key string) []ast.PathStep {
	return append(clonePath(path), ast.PathStep{Key: key})
}

func (l *lowerer) funcDecl(n *sitter.Node, exported bool) ast.Node {
	l.declareName(n.ChildByFieldName("name"), ast.FuncBinding, nil, exported)
	return l.function(n)
}

// function lowers a function-like node into a new function scope holding
// its parameters.
func (l *lowerer) function(n *sitter.Node) *ast.Opaque {
	defer l.push(ast.FunctionScope)()
	op := &ast.Opaque{Range: l.rng(n), Kind: "function"}
	if p := n.ChildByFieldName("parameter"); p != nil {
		op.Children = append(op.Children, l.pattern(p, ast.ParamBinding, op, nil, nil, l.scope, false))
	}
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		for _, p := range named(ps) {
			op.Children = append(op.Children, l.pattern(p, ast.ParamBinding, op, nil, nil, l.scope, false))
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return op
	}
	if body.Type() == "statement_block" {
		for _, c := range named(body) {
			op.Children = append(op.Children, l.stmt(c)...)
		}
	} else {
		op.Children = append(op.Children, l.expr(body))
	}
	return op
}

func (l *lowerer) classDecl(n *sitter.Node, exported bool) ast.Node {
	l.declareName(n.ChildByFieldName("name"), ast.ClassBinding, nil, exported)
	return l.class(n)
}

func (l *lowerer) class(n *sitter.Node) *ast.Opaque {
	op := &ast.Opaque{Range: l.rng(n), Kind: "class"}
	if h := n.ChildByFieldName("heritage"); h != nil {
		op.Children = append(op.Children, l.opaque(h))
	} else {
		for _, c := range named(n) {
			if c.Type() == "class_heritage" {
				op.Children = append(op.Children, l.opaque(c))
			}
		}
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		return op
	}
	defer l.push(ast.BlockScope)()
	for _, m := range named(body) {
		switch m.Type() {
		case "method_definition":
			op.Children = append(op.Children, l.function(m))
		case "public_field_definition", "field_definition":
			if v := m.ChildByFieldName("value"); v != nil {
				op.Children = append(op.Children, l.expr(v))
			}
		default:
			op.Children = append(op.Children, l.any(m)...)
		}
	}
	return op
}

func (l *lowerer) importDecl(n *sitter.Node) *ast.ImportDecl {
	d := &ast.ImportDecl{Range: l.rng(n), TypeOnly: hasToken(n, "type")}
	if src := n.ChildByFieldName("source"); src != nil {
		d.Source = stringValue(l.text(src))
	}
	for _, c := range named(n) {
		if c.Type() != "import_clause" {
			continue
		}
		for _, cc := range named(c) {
			switch cc.Type() {
			case "identifier":
				d.Specs = append(d.Specs, l.importSpec(d, cc, "default", cc))
			case "namespace_import":
				if id := firstNamed(cc); id != nil {
					d.Specs = append(d.Specs, l.importSpec(d, cc, "*", id))
				}
			case "named_imports":
				for _, s := range named(cc) {
					if s.Type() != "import_specifier" {
						continue
					}
					name := s.ChildByFieldName("name")
					local := name
					if a := s.ChildByFieldName("alias"); a != nil {
						local = a
					}
					if name == nil {
						continue
					}
					d.Specs = append(d.Specs, l.importSpec(d, s, moduleExportName(l.text(name)), local))
				}
			}
		}
	}
	l.file.Imports = append(l.file.Imports, d)
	return d
}

func (l *lowerer) importSpec(d *ast.ImportDecl, n *sitter.Node, imported string, local *sitter.Node) *ast.ImportSpec {
	s := &ast.ImportSpec{Range: l.rng(n), Imported: imported, Local: l.ident(local), Decl: d}
	l.declare(l.file.Scope, &ast.Binding{Kind: ast.ImportBinding, Name: s.Local, Decl: s})
	return s
}

// moduleExportName unquotes string export names (`export { x as "y-z" }`).
func moduleExportName(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		return stringValue(s)
	}
	return s
}

func (l *lowerer) exportStmt(n *sitter.Node) []ast.Node {
	isDefault := hasToken(n, "default")
	if decl := n.ChildByFieldName("declaration"); decl != nil {
		if isDefault {
			var x ast.Node
			switch decl.Type() {
			case "function_declaration", "generator_function_declaration":
				x = l.funcDecl(decl, false)
			case "class_declaration", "abstract_class_declaration":
				x = l.classDecl(decl, false)
			default:
				x = l.opaque(decl)
			}
			l.file.Default = &ast.ExportDefault{Range: l.rng(n), X: x}
			return []ast.Node{l.file.Default}
		}
		switch decl.Type() {
		case "lexical_declaration", "variable_declaration":
			return l.varDecls(decl, true, false)
		case "function_declaration", "generator_function_declaration":
			return []ast.Node{l.funcDecl(decl, true)}
		case "class_declaration", "abstract_class_declaration":
			return []ast.Node{l.classDecl(decl, true)}
		case "enum_declaration":
			l.declareName(decl.ChildByFieldName("name"), ast.OtherBinding, nil, true)
			return []ast.Node{&ast.Opaque{Range: l.rng(decl), Kind: decl.Type()}}
		case "ambient_declaration":
			var out []ast.Node
			for _, c := range named(decl) {
				if c.Type() == "lexical_declaration" || c.Type() == "variable_declaration" {
					out = append(out, l.varDecls(c, true, true)...)
				}
			}
			return out
		}
		return l.stmt(decl)
	}
	if isDefault {
		var x ast.Node
		if v := n.ChildByFieldName("value"); v != nil {
			x = l.expr(v)
		} else {
			for _, c := range named(n) {
				if !isType(c.Type()) {
					x = l.expr(c)
					break
				}
			}
		}
		l.file.Default = &ast.ExportDefault{Range: l.rng(n), X: x}
		return []ast.Node{l.file.Default}
	}

	d := &ast.ExportDecl{Range: l.rng(n)}
	if src := n.ChildByFieldName("source"); src != nil {
		d.Source = stringValue(l.text(src))
	}
	for _, c := range named(n) {
		switch c.Type() {
		case "export_clause":
			for _, s := range named(c) {
				if s.Type() != "export_specifier" {
					continue
				}
				name := s.ChildByFieldName("name")
				if name == nil {
					continue
				}
				spec := &ast.ExportSpec{Range: l.rng(s), Local: moduleExportName(l.text(name))}
				spec.Exported = spec.Local
				if a := s.ChildByFieldName("alias"); a != nil {
					spec.Exported = moduleExportName(l.text(a))
				}
				d.Specs = append(d.Specs, spec)
			}
		case "namespace_export":
			d.Star = true
			if id := firstNamed(c); id != nil {
				d.Namespace = moduleExportName(l.text(id))
			}
		}
	}
	if d.Source != "" && len(d.Specs) == 0 && hasToken(n, "*") {
		d.Star = true
	}
	if len(d.Specs) == 0 && !d.Star {
		// `export = x` and friends carry nothing we resolve.
		return []ast.Node{l.opaque(n)}
	}
	l.file.Exports = append(l.file.Exports, d)
	return []ast.Node{d}
}
