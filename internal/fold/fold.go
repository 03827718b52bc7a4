// Package fold implements the evaluator's safe-evaluation hook on top of a
// hermetic Starlark interpreter.
//
// An expression the evaluator cannot reduce on its own is translated into a
// Starlark expression. Sub-expressions the evaluator already knows are bound
// as variables, JavaScript operators and standard functions map to
// Starlark operators or to builtins with JavaScript semantics, and calls of
// user helpers go to functions loaded from Starlark helper modules. The
// result is evaluated with a step limit and without access to load or print.
package fold

import (
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/logging"
)

// DefaultMaxSteps bounds the work of a single fold.
const DefaultMaxSteps = 100_000

// Option configures a Folder.
type Option func(*Folder)

func WithLogger(l *slog.Logger) Option {
	return func(f *Folder) { f.logger = l }
}

// WithMaxSteps sets the Starlark execution step limit of each fold and
// helper module.
func WithMaxSteps(n uint64) Option {
	return func(f *Folder) { f.steps = n }
}

// Folder is an eval.Folder. Helpers must be loaded before the Folder is
// shared between goroutines; Fold itself is safe for concurrent use.
type Folder struct {
	opts    *syntax.FileOptions
	steps   uint64
	logger  *slog.Logger
	globals starlark.StringDict
	helpers map[string]bool
}

// New returns a Folder with the JavaScript builtins and no helpers.
func New(opts ...Option) *Folder {
	f := &Folder{
		opts:    &syntax.FileOptions{},
		steps:   DefaultMaxSteps,
		globals: builtins(),
		helpers: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.Scoped(f.logger, "fold")
	return f
}

// Helpers returns the names of the loaded helper functions.
func (f *Folder) Helpers() []string {
	var out []string
	for name := range f.helpers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LoadHelpers executes the Starlark helper modules at paths in fsys and
// makes their public globals callable from folded expressions.
func (f *Folder) LoadHelpers(fsys fs.FS, paths ...string) error {
	for _, p := range paths {
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.Wrapf(err, "reading helpers %s", p)
		}
		if err := f.LoadHelperSource(p, src); err != nil {
			return err
		}
	}
	return nil
}

// LoadHelperSource executes one helper module given as source.
func (f *Folder) LoadHelperSource(filename string, src []byte) error {
	globals, err := starlark.ExecFileOptions(f.opts, f.newThread(filename), filename, src, f.globals)
	if err != nil {
		return errors.Wrapf(err, "loading helpers %s", filename)
	}
	globals.Freeze()
	for name, v := range globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		f.globals[name] = v
		f.helpers[name] = true
		f.logger.Debug("helper", "name", name, "file", filename)
	}
	return nil
}

func (f *Folder) newThread(name string) *starlark.Thread {
	th := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			f.logger.Debug("print", "thread", name, "msg", msg)
		},
	}
	th.SetMaxExecutionSteps(f.steps)
	return th
}

// Fold evaluates expr if it translates to Starlark. lookup supplies the
// values of sub-expressions.
func (f *Folder) Fold(expr ast.Expr, lookup func(ast.Expr) box.Value) (any, bool) {
	t := &translator{helpers: f.helpers, lookup: lookup, vars: make(starlark.StringDict)}
	sx, ok := t.expr(expr, true)
	if !ok {
		return nil, false
	}
	env := make(starlark.StringDict, len(f.globals)+len(t.vars))
	for k, v := range f.globals {
		env[k] = v
	}
	for k, v := range t.vars {
		env[k] = v
	}
	v, err := starlark.EvalExprOptions(f.opts, f.newThread("fold"), sx, env)
	if err != nil {
		f.logger.Debug("fold failed", "err", err)
		return nil, false
	}
	raw, ok := FromStarlark(v)
	if !ok {
		f.logger.Debug("fold result not representable", "type", v.Type())
	}
	return raw, ok
}
