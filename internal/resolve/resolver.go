package resolve

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/fmeum/unbox/internal/ast"
)

// ModuleError reports an import or re-export whose module could not be
// loaded.
type ModuleError struct {
	File      string
	Pos       ast.Pos
	Specifier string
	Err       error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s:%s: cannot resolve %q: %v", e.File, e.Pos, e.Specifier, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }

// Declaration is what an identifier or export name resolved to. Exactly one
// of Binding, Default and Namespace is set.
type Declaration struct {
	// File declares the binding.
	File *ast.File
	// Binding is a declared name.
	Binding *ast.Binding
	// Default is an `export default` of something other than a name.
	Default *ast.ExportDefault
	// Namespace is a module imported or re-exported as a whole.
	Namespace *ast.File
}

// Node returns the declaring node.
func (d Declaration) Node() ast.Node {
	switch {
	case d.Binding != nil:
		if d.Binding.Decl != nil {
			return d.Binding.Decl
		}
		return d.Binding.Name
	case d.Default != nil:
		return d.Default
	}
	return nil
}

// Resolver follows identifiers to declarations for one evaluation pass.
// It is not safe for concurrent use.
type Resolver struct {
	prog   *Program
	logger *slog.Logger

	lookups int
	deps    map[string]bool
	errs    []error
	failed  map[string]bool
}

func NewResolver(prog *Program) *Resolver {
	return &Resolver{
		prog:   prog,
		logger: prog.logger,
		deps:   make(map[string]bool),
		failed: make(map[string]bool),
	}
}

func (r *Resolver) Program() *Program { return r.prog }

// Lookups returns the number of Resolve and ResolveExport calls.
func (r *Resolver) Lookups() int { return r.lookups }

// Deps returns the paths of the modules loaded while resolving, sorted.
func (r *Resolver) Deps() []string {
	out := make([]string, 0, len(r.deps))
	for d := range r.deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Errors returns the module errors met while resolving, each reported once.
func (r *Resolver) Errors() []error { return append([]error(nil), r.errs...) }

type visitKey struct {
	path, name string
}

type visited map[visitKey]bool

// Resolve finds the declaration id refers to. Local declarations in
// enclosing scopes come first, with import bindings followed into the
// exporting module. An unbound name is then looked up among the
// re-exports of id's module.
func (r *Resolver) Resolve(id *ast.Ident) (Declaration, bool) {
	r.lookups++
	if id == nil || id.Scope == nil {
		return Declaration{}, false
	}
	file := id.Scope.Module().File
	if file == nil {
		return Declaration{}, false
	}
	seen := make(visited)
	if b := id.Scope.Lookup(id.Name); b != nil {
		d, ok := r.binding(file, b, seen)
		r.logger.Debug("resolve", "name", id.Name, "file", file.Path, "found", ok)
		return d, ok
	}
	d, ok := r.reexport(file, id.Name, seen)
	r.logger.Debug("resolve re-export", "name", id.Name, "file", file.Path, "found", ok)
	return d, ok
}

// ResolveExport finds the declaration behind the export name of file.
func (r *Resolver) ResolveExport(file *ast.File, name string) (Declaration, bool) {
	r.lookups++
	return r.export(file, name, make(visited))
}

func (r *Resolver) binding(file *ast.File, b *ast.Binding, seen visited) (Declaration, bool) {
	spec := b.ImportSpec()
	if b.Kind != ast.ImportBinding || spec == nil {
		return Declaration{File: file, Binding: b}, true
	}
	target := r.module(file, spec.Decl.Source, spec)
	if target == nil {
		return Declaration{}, false
	}
	if spec.Imported == "*" {
		return Declaration{File: target, Namespace: target}, true
	}
	return r.export(target, spec.Imported, seen)
}

func (r *Resolver) export(file *ast.File, name string, seen visited) (Declaration, bool) {
	key := visitKey{file.Path, name}
	if seen[key] {
		r.logger.Debug("export cycle", "name", name, "file", file.Path)
		return Declaration{}, false
	}
	seen[key] = true

	if name == "default" && file.Default != nil {
		if id, ok := file.Default.X.(*ast.Ident); ok {
			if b := file.Scope.Lookup(id.Name); b != nil {
				return r.binding(file, b, seen)
			}
		}
		return Declaration{File: file, Default: file.Default}, true
	}
	if b := file.Scope.Local(name); b != nil && b.Exported {
		return Declaration{File: file, Binding: b}, true
	}
	for _, d := range file.Exports {
		if d.Source != "" {
			continue
		}
		for _, s := range d.Specs {
			if s.Exported != name {
				continue
			}
			if b := file.Scope.Local(s.Local); b != nil {
				return r.binding(file, b, seen)
			}
		}
	}
	return r.reexport(file, name, seen)
}

// reexport looks name up among the `export ... from` declarations of file:
// named re-exports first, then star re-exports in source order.
func (r *Resolver) reexport(file *ast.File, name string, seen visited) (Declaration, bool) {
	for _, d := range file.Exports {
		if d.Source == "" {
			continue
		}
		if d.Star {
			if d.Namespace == name {
				if target := r.module(file, d.Source, d); target != nil {
					return Declaration{File: target, Namespace: target}, true
				}
			}
			continue
		}
		for _, s := range d.Specs {
			if s.Exported != name {
				continue
			}
			target := r.module(file, d.Source, d)
			if target == nil {
				return Declaration{}, false
			}
			if s.Local == "*" {
				return Declaration{File: target, Namespace: target}, true
			}
			return r.export(target, s.Local, seen)
		}
	}
	if name == "default" {
		return Declaration{}, false
	}
	for _, d := range file.Exports {
		if d.Source == "" || !d.Star || d.Namespace != "" {
			continue
		}
		target := r.module(file, d.Source, d)
		if target == nil {
			continue
		}
		if decl, ok := r.export(target, name, seen); ok {
			return decl, true
		}
	}
	return Declaration{}, false
}

// module loads the module spec names from file. Errors are recorded and
// yield nil, as do external packages.
func (r *Resolver) module(file *ast.File, spec string, at ast.Node) *ast.File {
	target, err := r.prog.ResolveSpecifier(file.Path, spec)
	if err == nil && target == "" {
		return nil
	}
	if err == nil {
		var f *ast.File
		if f, err = r.prog.Load(target); err == nil {
			r.deps[target] = true
			return f
		}
	}
	r.fail(file, spec, at, err)
	return nil
}

func (r *Resolver) fail(file *ast.File, spec string, at ast.Node, err error) {
	key := file.Path + "\x00" + spec
	if r.failed[key] {
		return
	}
	r.failed[key] = true
	start, _ := at.Span()
	merr := &ModuleError{File: file.Path, Pos: start, Specifier: spec, Err: err}
	r.logger.Warn("unresolved module", "file", file.Path, "pos", start.String(), "specifier", spec, "err", err)
	r.errs = append(r.errs, errors.WithStack(merr))
}
