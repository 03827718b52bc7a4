package collect

import (
	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/eval"
)

// ExtractAt returns the merged props of the innermost JSX element or call
// at line:col (1-based), whether or not it is tracked. Every property is
// included.
func ExtractAt(file *ast.File, line, col int, ev *eval.Evaluator) (*Usage, bool) {
	var at ast.Node
	ast.WalkFile(file, func(n ast.Node) bool {
		start, end := n.Span()
		if !(ast.Range{Start: start, End: end}).Contains(line, col) {
			// Synthesized nodes may lack positions; keep descending.
			return !start.IsValid()
		}
		switch n.(type) {
		case *ast.JSXElement, *ast.CallExpr:
			at = n
		}
		return true
	})

	switch n := at.(type) {
	case *ast.JSXElement:
		name := ast.DottedName(n.Tag)
		if name == "" {
			name = n.Name
		}
		return &Usage{Name: name, Kind: ComponentKind, Node: n, Props: mergeAttrs(ev, n, AllProps()).props()}, true
	case *ast.CallExpr:
		u := &Usage{Name: ast.DottedName(n.Fn), Kind: FunctionKind, Node: n}
		if len(n.Args) > 0 {
			b := newBag()
			b.spread(ev.EvalObject(n.Args[0], []ast.Node{n}), AllProps(), n.Args[0])
			u.Props = b.props()
		}
		return u, true
	}
	return nil, false
}
