// Package parser builds ast.Files from TypeScript and TSX source using the
// tree-sitter TSX grammar.
package parser

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"github.com/fmeum/unbox/internal/ast"
)

var parsers = sync.Pool{
	New: func() any {
		p := sitter.NewParser()
		p.SetLanguage(tsx.GetLanguage())
		return p
	},
}

// Parse parses src as a TSX module. Syntax errors do not fail the parse;
// the affected regions are lowered to opaque nodes and recorded in
// File.SyntaxErrors.
func Parse(path string, src []byte) (*ast.File, error) {
	return ParseContext(context.Background(), path, src)
}

func ParseContext(ctx context.Context, path string, src []byte) (*ast.File, error) {
	p := parsers.Get().(*sitter.Parser)
	defer parsers.Put(p)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if tree == nil {
		return nil, errors.Errorf("parsing %s: no syntax tree", path)
	}
	defer tree.Close()

	f := &ast.File{
		Path:  path,
		Src:   src,
		Scope: ast.NewScope(ast.ModuleScope, nil),
	}
	f.Scope.File = f
	l := &lowerer{src: src, file: f, scope: f.Scope}
	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		f.Body = append(f.Body, l.stmt(root.NamedChild(i))...)
	}
	return f, nil
}

// ParseExpr parses a single expression. Identifiers in it are bound to a
// fresh module scope.
func ParseExpr(src string) (ast.Expr, error) {
	f, err := Parse("<expr>", []byte("("+src+"\n)"))
	if err != nil {
		return nil, err
	}
	if len(f.SyntaxErrors) > 0 {
		return nil, errors.Errorf("invalid expression %q at %s", src, f.SyntaxErrors[0])
	}
	if len(f.Body) != 1 {
		return nil, errors.Errorf("invalid expression %q", src)
	}
	p, ok := f.Body[0].(*ast.ParenExpr)
	if !ok {
		return nil, errors.Errorf("invalid expression %q", src)
	}
	return p.X, nil
}
