package ast

// ScopeKind distinguishes the scopes var declarations hoist to from plain
// blocks.
type ScopeKind uint8

const (
	ModuleScope ScopeKind = iota
	FunctionScope
	BlockScope
)

// A Scope maps names to bindings for one lexical region.
type Scope struct {
	Kind   ScopeKind
	Parent *Scope
	// File is set on module scopes.
	File *File

	bindings map[string]*Binding
	names    []string
}

func NewScope(kind ScopeKind, parent *Scope) *Scope {
	return &Scope{Kind: kind, Parent: parent, bindings: make(map[string]*Binding)}
}

// Declare adds b to s. It reports false, leaving the existing binding in
// place, if the name is already bound in s.
func (s *Scope) Declare(b *Binding) bool {
	name := b.Name.Name
	if _, ok := s.bindings[name]; ok {
		return false
	}
	s.bindings[name] = b
	s.names = append(s.names, name)
	return true
}

// Local returns the binding of name in s itself.
func (s *Scope) Local(name string) *Binding {
	if s == nil {
		return nil
	}
	return s.bindings[name]
}

// Lookup returns the innermost binding of name visible from s.
func (s *Scope) Lookup(name string) *Binding {
	for sc := s; sc != nil; sc = sc.Parent {
		if b, ok := sc.bindings[name]; ok {
			return b
		}
	}
	return nil
}

// Names returns the names bound in s in declaration order.
func (s *Scope) Names() []string {
	return append([]string(nil), s.names...)
}

// Module returns the module scope s belongs to.
func (s *Scope) Module() *Scope {
	sc := s
	for sc.Parent != nil {
		sc = sc.Parent
	}
	return sc
}

// Hoist returns the nearest enclosing function or module scope.
func (s *Scope) Hoist() *Scope {
	sc := s
	for sc.Kind == BlockScope && sc.Parent != nil {
		sc = sc.Parent
	}
	return sc
}

// BindingKind classifies what introduced a name.
type BindingKind uint8

const (
	VarBinding BindingKind = iota
	ParamBinding
	FuncBinding
	ClassBinding
	ImportBinding
	TypeBinding
	OtherBinding
)

func (k BindingKind) String() string {
	switch k {
	case VarBinding:
		return "var"
	case ParamBinding:
		return "param"
	case FuncBinding:
		return "function"
	case ClassBinding:
		return "class"
	case ImportBinding:
		return "import"
	case TypeBinding:
		return "type"
	}
	return "other"
}

// A Binding is one declared name.
//
// For names bound inside a destructuring pattern, Path locates the bound
// element within the declaration's initializer, outermost step first, and
// Default is the pattern default of the innermost element.
type Binding struct {
	Kind     BindingKind
	Name     *Ident
	Decl     Node // *VarDecl, *ImportSpec, or the declaring node
	Path     []PathStep
	Default  Expr
	Exported bool
}

// A PathStep selects a property (or, inside array patterns, an index) of
// the value being destructured. Computed pattern keys leave Key empty and
// set KeyExpr. Rest steps collect whatever the preceding siblings did not
// take; Skip lists those sibling keys.
type PathStep struct {
	Key     string
	KeyExpr Expr
	Index   int
	IsIndex bool
	Rest    bool
	Skip    []string
}

// VarDecl returns the variable declaration introducing b, if any.
func (b *Binding) VarDecl() *VarDecl {
	d, _ := b.Decl.(*VarDecl)
	return d
}

// ImportSpec returns the import specifier introducing b, if any.
func (b *Binding) ImportSpec() *ImportSpec {
	s, _ := b.Decl.(*ImportSpec)
	return s
}
