package parser

import (
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp"

	"github.com/fmeum/unbox/internal/ast"
)

func parse(t *testing.T, src string) *ast.File {
	t.Helper()
	f, err := Parse("test.tsx", []byte(src))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(f.SyntaxErrors, 0))
	return f
}

func TestDestructuringPaths(t *testing.T) {
	f := parse(t, `
const { a, b: { c = "dflt" }, ...rest } = obj;
const [, second, ...tail] = list;
`)
	sc := f.Scope

	a := sc.Local("a")
	qt.Assert(t, qt.IsNotNil(a))
	qt.Assert(t, qt.CmpEquals(a.Path, []ast.PathStep{{Key: "a"}}))

	c := sc.Local("c")
	qt.Assert(t, qt.IsNotNil(c))
	qt.Assert(t, qt.CmpEquals(c.Path, []ast.PathStep{{Key: "b"}, {Key: "c"}}))
	qt.Assert(t, qt.Equals(c.Default.(*ast.Literal).Value, any("dflt")))

	rest := sc.Local("rest")
	qt.Assert(t, qt.CmpEquals(rest.Path, []ast.PathStep{{Rest: true, Skip: []string{"a", "b"}}}))

	second := sc.Local("second")
	qt.Assert(t, qt.CmpEquals(second.Path, []ast.PathStep{{Index: 1, IsIndex: true}}))
	tail := sc.Local("tail")
	qt.Assert(t, qt.CmpEquals(tail.Path, []ast.PathStep{{Index: 2, IsIndex: true, Rest: true}}))
}

func TestImportsAndExports(t *testing.T) {
	f := parse(t, `
import Theme, { colors as c } from "./theme";
import * as ns from "../ns";
export { tokens } from "./tokens";
export { local as renamed };
export * from "./all";
export * as grouped from "./grouped";
export const exported = 1;
export default { x: 1 };
const local = 2;
`)
	qt.Assert(t, qt.HasLen(f.Imports, 2))
	var specs []string
	for _, d := range f.Imports {
		for _, s := range d.Specs {
			specs = append(specs, d.Source+":"+s.Imported+"->"+s.Local.Name)
		}
	}
	qt.Assert(t, qt.DeepEquals(specs, []string{
		"./theme:default->Theme",
		"./theme:colors->c",
		"../ns:*->ns",
	}))
	qt.Assert(t, qt.Equals(f.Scope.Local("c").Kind, ast.ImportBinding))

	qt.Assert(t, qt.HasLen(f.Exports, 4))
	qt.Assert(t, qt.Equals(f.Exports[0].Source, "./tokens"))
	qt.Assert(t, qt.CmpEquals(f.Exports[1].Specs, []*ast.ExportSpec{{Local: "local", Exported: "renamed"}},
		cmp.FilterPath(func(p cmp.Path) bool { return p.Last().String() == ".Range" }, cmp.Ignore())))
	qt.Assert(t, qt.IsTrue(f.Exports[2].Star))
	qt.Assert(t, qt.Equals(f.Exports[3].Namespace, "grouped"))

	qt.Assert(t, qt.IsTrue(f.Scope.Local("exported").Exported))
	qt.Assert(t, qt.IsFalse(f.Scope.Local("local").Exported))
	qt.Assert(t, qt.IsNotNil(f.Default))
	_, ok := f.Default.X.(*ast.ObjectExpr)
	qt.Assert(t, qt.IsTrue(ok))
}

func TestJSXAttributes(t *testing.T) {
	f := parse(t, `
const el = <ui.Box color="red\n" hidden {...rest} size={"md"} />;
`)
	d := f.Body[0].(*ast.VarDecl)
	el := d.Init.(*ast.JSXElement)
	qt.Assert(t, qt.Equals(el.Name, "ui.Box"))
	qt.Assert(t, qt.Equals(ast.DottedName(el.Tag), "ui.Box"))
	qt.Assert(t, qt.HasLen(el.Attrs, 4))

	color := el.Attrs[0].(*ast.JSXAttr)
	qt.Assert(t, qt.Equals(color.Name, "color"))
	qt.Assert(t, qt.Equals(color.Value.(*ast.Literal).Value, any(`red\n`)))

	hidden := el.Attrs[1].(*ast.JSXAttr)
	qt.Assert(t, qt.IsNil(hidden.Value))

	_, ok := el.Attrs[2].(*ast.JSXSpread)
	qt.Assert(t, qt.IsTrue(ok))

	size := el.Attrs[3].(*ast.JSXAttr)
	qt.Assert(t, qt.Equals(size.Value.(*ast.Literal).Value, any("md")))
}

func TestTemplateQuasis(t *testing.T) {
	e, err := ParseExpr("`a${b}c\\t${d}`")
	qt.Assert(t, qt.IsNil(err))
	tpl := e.(*ast.TemplateLit)
	qt.Assert(t, qt.DeepEquals(tpl.Quasis, []string{"a", "c\t", ""}))
	qt.Assert(t, qt.HasLen(tpl.Exprs, 2))
}

func TestArrayHoles(t *testing.T) {
	e, err := ParseExpr(`[, "b", , "d"]`)
	qt.Assert(t, qt.IsNil(err))
	arr := e.(*ast.ArrayExpr)
	qt.Assert(t, qt.HasLen(arr.Elems, 4))
	qt.Assert(t, qt.IsNil(arr.Elems[0]))
	qt.Assert(t, qt.IsNil(arr.Elems[2]))
	qt.Assert(t, qt.Equals(arr.Elems[3].(*ast.Literal).Value, any("d")))
}

func TestObjectKeys(t *testing.T) {
	e, err := ParseExpr(`{ a: 1, "b-c": 2, 3: 3, [k]: 4, short, ...rest }`)
	qt.Assert(t, qt.IsNil(err))
	obj := e.(*ast.ObjectExpr)
	var keys []string
	for _, p := range obj.Props {
		switch p := p.(type) {
		case *ast.Property:
			if p.KeyExpr != nil {
				keys = append(keys, "["+ast.DottedName(p.KeyExpr)+"]")
			} else {
				keys = append(keys, p.Key)
			}
		case *ast.SpreadElem:
			keys = append(keys, "..."+ast.DottedName(p.X))
		}
	}
	qt.Assert(t, qt.DeepEquals(keys, []string{"a", "b-c", "3", "[k]", "short", "...rest"}))
}

func TestScopes(t *testing.T) {
	f := parse(t, `
const x = "outer";
function f(p, { q }) {
  const x = "inner";
  var hoisted = 1;
  { let block = 2; }
  return x;
}
`)
	var idents []*ast.Ident
	for _, n := range f.Body {
		ast.Inspect(n, func(id *ast.Ident) { idents = append(idents, id) })
	}
	var ret *ast.Ident
	for _, id := range idents {
		if id.Name == "x" && id.Scope != f.Scope && id.Scope.Local("x") != nil {
			ret = id
		}
	}
	qt.Assert(t, qt.IsNotNil(ret))
	b := ret.Scope.Lookup("x")
	qt.Assert(t, qt.Equals(b.VarDecl().Init.(*ast.Literal).Value, any("inner")))
	qt.Assert(t, qt.IsNotNil(ret.Scope.Lookup("hoisted")))
	qt.Assert(t, qt.IsNil(ret.Scope.Lookup("block")))
	qt.Assert(t, qt.Equals(ret.Scope.Lookup("p").Kind, ast.ParamBinding))
	qt.Assert(t, qt.Equals(ret.Scope.Lookup("q").Kind, ast.ParamBinding))
	qt.Assert(t, qt.Equals(f.Scope.Local("f").Kind, ast.FuncBinding))
}

func TestRedeclared(t *testing.T) {
	f, err := Parse("test.ts", []byte(`
const Box = 1;
var v = 1;
var v = 2;
let Box = 2;
`))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(f.Redeclared, 1))
	qt.Assert(t, qt.Equals(f.Redeclared[0].Name, "Box"))
	qt.Assert(t, qt.Equals(f.Scope.Local("Box").VarDecl().Kind, "const"))
}

func TestTypeLiteralAnnotation(t *testing.T) {
	f := parse(t, `declare const tokens: { primary: "red"; size: -2; other: string };`)
	d := f.Body[0].(*ast.VarDecl)
	qt.Assert(t, qt.IsTrue(d.Declare))
	lit := d.Type.(*ast.TypeLit)
	qt.Assert(t, qt.HasLen(lit.Members, 3))
	qt.Assert(t, qt.Equals(lit.Members[0].Type.(*ast.LiteralType).Lit.Value, any("red")))
	qt.Assert(t, qt.Equals(lit.Members[1].Type.(*ast.LiteralType).Lit.Value, any(-2.0)))
	_, ok := lit.Members[2].Type.(*ast.OpaqueType)
	qt.Assert(t, qt.IsTrue(ok))
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		raw, want string
	}{
		{`plain`, "plain"},
		{`a\nb`, "a\nb"},
		{`\x41B\u{43}`, "ABC"},
		{`\uD83D\uDE00`, "\U0001F600"},
		{`\'\"\\`, `'"\`},
		{"line\\\ncontinued", "linecontinued"},
	}
	for _, test := range tests {
		qt.Check(t, qt.Equals(unescape(test.raw), test.want), qt.Commentf("raw %q", test.raw))
	}
}

func TestPositions(t *testing.T) {
	f := parse(t, "\n  const answer = 42;")
	d := f.Body[0].(*ast.VarDecl)
	start, _ := d.Init.Span()
	qt.Assert(t, qt.Equals(start.Line, 2))
	qt.Assert(t, qt.Equals(start.Col, 18))
}
