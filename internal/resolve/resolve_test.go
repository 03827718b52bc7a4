package resolve

import (
	"sync"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/pkg/errors"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/testfs"
)

const project = `
-- src/app.tsx --
import { tokens } from "./tokens";
import { tokens as viaReexport } from "./barrel";
import { deep } from "./barrel";
import * as theme from "@/theme";
import Default from "./default";
import { missing } from "./nowhere";
import React from "react";
const local = tokens;
-- src/tokens.ts --
export const tokens = { color: "red" };
-- src/barrel.ts --
export { tokens } from "./tokens";
export * from "./deep/index";
-- src/deep/index.ts --
const deepValue = "x";
export { deepValue as deep };
-- src/theme/index.ts --
export const colors = { red: "#f00" };
-- src/default.ts --
const value = "d";
export default value;
-- src/cycle-a.ts --
export * from "./cycle-b";
export { loop } from "./cycle-b";
-- src/cycle-b.ts --
export * from "./cycle-a";
export { loop } from "./cycle-a";
`

func newResolver(t *testing.T) (*Resolver, *ast.File) {
	t.Helper()
	prog := NewProgram(testfs.Parse(project), WithAliases(Alias{Prefix: "@/", Target: "src"}))
	f, err := prog.Load("src/app.tsx")
	qt.Assert(t, qt.IsNil(err))
	return NewResolver(prog), f
}

func ident(t *testing.T, f *ast.File, name string) *ast.Ident {
	t.Helper()
	b := f.Scope.Local(name)
	qt.Assert(t, qt.IsNotNil(b), qt.Commentf("no binding %q", name))
	return b.Name
}

func TestResolveImport(t *testing.T) {
	r, f := newResolver(t)
	d, ok := r.Resolve(ident(t, f, "tokens"))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(d.File.Path, "src/tokens.ts"))
	qt.Assert(t, qt.Equals(d.Binding.Name.Name, "tokens"))
}

func TestReexportResolvesToSameDeclaration(t *testing.T) {
	r, f := newResolver(t)
	direct, ok := r.Resolve(ident(t, f, "tokens"))
	qt.Assert(t, qt.IsTrue(ok))
	via, ok := r.Resolve(ident(t, f, "viaReexport"))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(via.Binding, direct.Binding))
}

func TestStarReexportAndLocalClause(t *testing.T) {
	r, f := newResolver(t)
	d, ok := r.Resolve(ident(t, f, "deep"))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(d.File.Path, "src/deep/index.ts"))
	qt.Assert(t, qt.Equals(d.Binding.Name.Name, "deepValue"))
}

func TestNamespaceImportThroughAlias(t *testing.T) {
	r, f := newResolver(t)
	d, ok := r.Resolve(ident(t, f, "theme"))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsNotNil(d.Namespace))
	qt.Assert(t, qt.Equals(d.Namespace.Path, "src/theme/index.ts"))

	colors, ok := r.ResolveExport(d.Namespace, "colors")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(colors.Binding.Name.Name, "colors"))
}

func TestDefaultExportOfName(t *testing.T) {
	r, f := newResolver(t)
	d, ok := r.Resolve(ident(t, f, "Default"))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(d.Binding.Name.Name, "value"))
}

func TestLocalDeclaration(t *testing.T) {
	r, f := newResolver(t)
	d, ok := r.Resolve(ident(t, f, "local"))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(d.File, f))
	qt.Assert(t, qt.Equals(d.Binding.VarDecl().Kind, "const"))
}

func TestMissingRelativeModule(t *testing.T) {
	r, f := newResolver(t)
	_, ok := r.Resolve(ident(t, f, "missing"))
	qt.Assert(t, qt.IsFalse(ok))
	_, ok = r.Resolve(ident(t, f, "missing"))
	qt.Assert(t, qt.IsFalse(ok))

	errs := r.Errors()
	qt.Assert(t, qt.HasLen(errs, 1))
	qt.Assert(t, qt.ErrorIs(errs[0], ErrModuleNotFound))
	var merr *ModuleError
	qt.Assert(t, qt.IsTrue(errors.As(errs[0], &merr)))
	qt.Assert(t, qt.Equals(merr.Specifier, "./nowhere"))
	qt.Assert(t, qt.Equals(merr.Pos.Line, 6))
}

func TestBareSpecifierIsSilent(t *testing.T) {
	r, f := newResolver(t)
	_, ok := r.Resolve(ident(t, f, "React"))
	qt.Assert(t, qt.IsFalse(ok))
	qt.Assert(t, qt.HasLen(r.Errors(), 0))
}

func TestCircularReexportsTerminate(t *testing.T) {
	r, _ := newResolver(t)
	a, err := r.Program().Load("src/cycle-a.ts")
	qt.Assert(t, qt.IsNil(err))
	_, ok := r.ResolveExport(a, "loop")
	qt.Assert(t, qt.IsFalse(ok))
	_, ok = r.ResolveExport(a, "anything")
	qt.Assert(t, qt.IsFalse(ok))
}

func TestLookupsAndDeps(t *testing.T) {
	r, f := newResolver(t)
	r.Resolve(ident(t, f, "tokens"))
	r.Resolve(ident(t, f, "deep"))
	qt.Assert(t, qt.Equals(r.Lookups(), 2))
	qt.Assert(t, qt.DeepEquals(r.Deps(), []string{
		"src/barrel.ts",
		"src/deep/index.ts",
		"src/tokens.ts",
	}))
}

func TestProgramNeverReparses(t *testing.T) {
	prog := NewProgram(testfs.Parse(project))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := prog.Load("./src/tokens.ts")
			qt.Check(t, qt.IsNil(err))
		}()
	}
	wg.Wait()
	qt.Assert(t, qt.Equals(prog.Parses(), int64(1)))

	_, err := prog.Load("src/tokens.ts")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(prog.Parses(), int64(1)))

	prog.Invalidate("src/tokens.ts")
	_, err = prog.Load("src/tokens.ts")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(prog.Parses(), int64(2)))
}

func TestResolveSpecifier(t *testing.T) {
	prog := NewProgram(testfs.Parse(project), WithAliases(Alias{Prefix: "@/", Target: "src"}))
	tests := []struct {
		from, spec, want string
		notFound         bool
	}{
		{"src/app.tsx", "./tokens", "src/tokens.ts", false},
		{"src/app.tsx", "./tokens.js", "src/tokens.ts", false},
		{"src/app.tsx", "./deep", "src/deep/index.ts", false},
		{"src/deep/index.ts", "../barrel", "src/barrel.ts", false},
		{"src/app.tsx", "@/theme", "src/theme/index.ts", false},
		{"src/app.tsx", "react", "", false},
		{"src/app.tsx", "./nope", "", true},
		{"src/app.tsx", "@/nope", "", true},
	}
	for _, test := range tests {
		got, err := prog.ResolveSpecifier(test.from, test.spec)
		if test.notFound {
			qt.Check(t, qt.ErrorIs(err, ErrModuleNotFound), qt.Commentf("%s", test.spec))
			continue
		}
		qt.Check(t, qt.IsNil(err), qt.Commentf("%s", test.spec))
		qt.Check(t, qt.Equals(got, test.want), qt.Commentf("%s", test.spec))
	}
}
