// Package ast declares the syntax tree the extractor evaluates: a closed set
// of TypeScript/TSX node types together with the lexical scopes and bindings
// recorded while the tree was built.
//
// Nodes are created by package parser and never mutated afterwards, so a
// parsed File may be shared by concurrent evaluation passes. Node identity
// (the pointer) is what evaluation caches are keyed on.
package ast

import "fmt"

// Pos is a position in a source file. Line and Col are 1-based, Offset is a
// byte offset.
type Pos struct {
	Line   int
	Col    int
	Offset int
}

func (p Pos) IsValid() bool { return p.Line > 0 }

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Range is embedded in every node.
type Range struct {
	Start, End Pos
}

func (r Range) Span() (start, end Pos) { return r.Start, r.End }

// Contains reports whether pos (line and column only) lies within r.
func (r Range) Contains(line, col int) bool {
	if line < r.Start.Line || line > r.End.Line {
		return false
	}
	if line == r.Start.Line && col < r.Start.Col {
		return false
	}
	if line == r.End.Line && col > r.End.Col {
		return false
	}
	return true
}

// A Node is any element of the syntax tree.
type Node interface {
	Span() (start, end Pos)
}

// An Expr is a node that produces a value.
type Expr interface {
	Node
	expr()
}

// A TypeNode is a type annotation.
type TypeNode interface {
	Node
	typeNode()
}

// File is a parsed module.
type File struct {
	Path  string
	Src   []byte
	Body  []Node
	Scope *Scope

	Imports []*ImportDecl
	Exports []*ExportDecl
	Default *ExportDefault

	// Redeclared lists identifiers whose declaration conflicted with an
	// earlier one in the same scope. The earlier declaration is kept.
	Redeclared []*Ident
	// SyntaxErrors holds the start of every region the parser could not
	// make sense of.
	SyntaxErrors []Pos
}

// Expressions.
type (
	Ident struct {
		Range
		Name string
		// Scope is the innermost scope the identifier occurs in.
		Scope *Scope
	}

	Literal struct {
		Range
		Kind  LitKind
		Value any // string, float64, bool or nil
		Raw   string
	}

	// TemplateLit is a template string. len(Quasis) == len(Exprs)+1, and
	// quasis hold the cooked text.
	TemplateLit struct {
		Range
		Quasis []string
		Exprs  []Expr
	}

	// ArrayExpr holds nil for elided elements.
	ArrayExpr struct {
		Range
		Elems []Expr
	}

	SpreadElem struct {
		Range
		X Expr
	}

	// ObjectExpr properties are *Property, *SpreadElem or *Opaque (methods,
	// accessors).
	ObjectExpr struct {
		Range
		Props []Node
	}

	DotExpr struct {
		Range
		X        Expr
		Name     string
		Optional bool
	}

	IndexExpr struct {
		Range
		X        Expr
		Index    Expr
		Optional bool
	}

	CondExpr struct {
		Range
		Cond  Expr
		True  Expr
		False Expr
	}

	BinaryExpr struct {
		Range
		Op string
		X  Expr
		Y  Expr
	}

	UnaryExpr struct {
		Range
		Op string
		X  Expr
	}

	CallExpr struct {
		Range
		Fn   Expr
		Args []Expr
	}

	ParenExpr struct {
		Range
		X Expr
	}

	// AssertExpr is a type-only wrapper: `x as T`, `x satisfies T`, `x!`
	// or `<T>x`.
	AssertExpr struct {
		Range
		Op   string
		X    Expr
		Type TypeNode
	}

	JSXElement struct {
		Range
		Tag         Expr // *Ident, *DotExpr or *Opaque
		Name        string
		Attrs       []Node // *JSXAttr or *JSXSpread
		Children    []Node
		SelfClosing bool
	}

	// Opaque is any construct the evaluator has no rule for. Its children
	// are kept so that walks still reach nested usages.
	Opaque struct {
		Range
		Kind     string
		Children []Node
	}
)

func (*Ident) expr()       {}
func (*Literal) expr()     {}
func (*TemplateLit) expr() {}
func (*ArrayExpr) expr()   {}
func (*SpreadElem) expr()  {}
func (*ObjectExpr) expr()  {}
func (*DotExpr) expr()     {}
func (*IndexExpr) expr()   {}
func (*CondExpr) expr()    {}
func (*BinaryExpr) expr()  {}
func (*UnaryExpr) expr()   {}
func (*CallExpr) expr()    {}
func (*ParenExpr) expr()   {}
func (*AssertExpr) expr()  {}
func (*JSXElement) expr()  {}
func (*Opaque) expr()      {}

// LitKind is the kind of a Literal.
type LitKind uint8

const (
	StringLit LitKind = iota
	NumberLit
	BoolLit
	NullLit
	UndefinedLit
)

func (k LitKind) String() string {
	switch k {
	case StringLit:
		return "string"
	case NumberLit:
		return "number"
	case BoolLit:
		return "boolean"
	case NullLit:
		return "null"
	case UndefinedLit:
		return "undefined"
	}
	return "unknown"
}

// Object members and JSX attributes.
type (
	// Property is `key: value` or the shorthand `key`. Computed keys leave
	// Key empty and set KeyExpr.
	Property struct {
		Range
		Key       string
		KeyExpr   Expr
		Value     Expr
		Shorthand bool
	}

	// JSXAttr has a nil Value when written without an initializer.
	JSXAttr struct {
		Range
		Name  string
		Value Expr
	}

	JSXSpread struct {
		Range
		X Expr
	}
)

// Declarations.
type (
	VarDecl struct {
		Range
		Kind     string // "const", "let" or "var"
		Name     Node   // *Ident, *ObjectPattern or *ArrayPattern
		Type     TypeNode
		Init     Expr
		Exported bool
		Declare  bool
	}

	ObjectPattern struct {
		Range
		Props []*PatternProp
	}

	PatternProp struct {
		Range
		Key     string
		KeyExpr Expr
		Value   Node
		Default Expr
		Rest    bool
	}

	// ArrayPattern holds nil for elided elements.
	ArrayPattern struct {
		Range
		Elems []*PatternElem
	}

	PatternElem struct {
		Range
		Value   Node
		Default Expr
		Rest    bool
	}

	ImportDecl struct {
		Range
		Source   string
		Specs    []*ImportSpec
		TypeOnly bool
	}

	// ImportSpec binds Local to the export Imported of the source module.
	// Imported is "default" for default imports and "*" for namespace
	// imports.
	ImportSpec struct {
		Range
		Imported string
		Local    *Ident
		Decl     *ImportDecl
	}

	// ExportDecl is an export clause, a re-export or a star re-export.
	// Source is empty for local clauses.
	ExportDecl struct {
		Range
		Source    string
		Specs     []*ExportSpec
		Star      bool
		Namespace string
	}

	ExportSpec struct {
		Range
		Local    string
		Exported string
	}

	ExportDefault struct {
		Range
		X Node
	}
)

// Types.
type (
	TypeLit struct {
		Range
		Members []*PropSig
	}

	PropSig struct {
		Range
		Name     string
		Type     TypeNode
		Readonly bool
		Optional bool
	}

	LiteralType struct {
		Range
		Lit *Literal
	}

	OpaqueType struct {
		Range
		Kind string
	}
)

func (*TypeLit) typeNode()     {}
func (*LiteralType) typeNode() {}
func (*OpaqueType) typeNode()  {}

// Unparen strips parentheses and type assertions.
func Unparen(e Expr) Expr {
	for {
		switch x := e.(type) {
		case *ParenExpr:
			e = x.X
		case *AssertExpr:
			e = x.X
		default:
			return e
		}
	}
}

// DottedName returns "a.b.c" for an identifier or a chain of property
// accesses on one, and "" for anything else.
func DottedName(e Expr) string {
	switch x := Unparen(e).(type) {
	case *Ident:
		return x.Name
	case *DotExpr:
		if base := DottedName(x.X); base != "" {
			return base + "." + x.Name
		}
	}
	return ""
}

// RootIdent returns the identifier at the base of an access chain.
func RootIdent(e Expr) *Ident {
	for {
		switch x := Unparen(e).(type) {
		case *Ident:
			return x
		case *DotExpr:
			e = x.X
		case *IndexExpr:
			e = x.X
		default:
			return nil
		}
	}
}
