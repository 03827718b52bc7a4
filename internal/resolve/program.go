// Package resolve loads modules and follows identifiers to their
// declarations, across imports and re-exports.
package resolve

import (
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/logging"
	"github.com/fmeum/unbox/internal/parser"
)

// ErrModuleNotFound is returned for relative or aliased module specifiers
// that do not name a file.
var ErrModuleNotFound = errors.New("module not found")

// Extensions are probed in order when a specifier names no file directly.
var Extensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs", ".d.ts"}

// Alias maps a specifier prefix, like "@/", to a directory.
type Alias struct {
	Prefix string
	Target string
}

type Option func(*Program)

func WithAliases(aliases ...Alias) Option {
	return func(p *Program) { p.aliases = append(p.aliases, aliases...) }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Program) { p.logger = l }
}

// Program is a cache of parsed modules read from a file system. Parsed
// files are immutable and shared by all resolvers. It is safe for
// concurrent use.
type Program struct {
	fsys    fs.FS
	aliases []Alias
	logger  *slog.Logger

	mu     sync.Mutex
	files  map[string]loaded
	group  singleflight.Group
	parses atomic.Int64
}

type loaded struct {
	file *ast.File
	err  error
}

func NewProgram(fsys fs.FS, opts ...Option) *Program {
	p := &Program{
		fsys:  fsys,
		files: make(map[string]loaded),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.Scoped(p.logger, "resolve")
	return p
}

// FS returns the file system modules are read from.
func (p *Program) FS() fs.FS { return p.fsys }

// Clean converts a path to the slash-separated, unrooted form used as cache
// key and fs.FS name.
func Clean(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	return strings.TrimPrefix(name, "/")
}

// Load returns the parsed module at name, reading and parsing it at most
// once until it is invalidated.
func (p *Program) Load(name string) (*ast.File, error) {
	name = Clean(name)
	p.mu.Lock()
	l, ok := p.files[name]
	p.mu.Unlock()
	if ok {
		return l.file, l.err
	}
	v, _, _ := p.group.Do(name, func() (any, error) {
		p.mu.Lock()
		l, ok := p.files[name]
		p.mu.Unlock()
		if ok {
			return l, nil
		}
		l = p.read(name)
		p.mu.Lock()
		p.files[name] = l
		p.mu.Unlock()
		return l, nil
	})
	l = v.(loaded)
	return l.file, l.err
}

func (p *Program) read(name string) loaded {
	src, err := fs.ReadFile(p.fsys, name)
	if err != nil {
		return loaded{err: errors.Wrapf(err, "reading %s", name)}
	}
	p.parses.Add(1)
	f, err := parser.Parse(name, src)
	if err != nil {
		return loaded{err: err}
	}
	if len(f.SyntaxErrors) > 0 {
		p.logger.Debug("syntax errors", "file", name, "count", len(f.SyntaxErrors), "first", f.SyntaxErrors[0].String())
	}
	return loaded{file: f}
}

// Invalidate drops cached modules so the next Load reparses them.
func (p *Program) Invalidate(names ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range names {
		delete(p.files, Clean(n))
	}
}

// Parses returns how many times a module was parsed.
func (p *Program) Parses() int64 { return p.parses.Load() }

// ResolveSpecifier maps an import specifier used in the module from to a
// module path. Relative and aliased specifiers must name an existing file,
// possibly after adding an extension or an index file. An empty path and a
// nil error mean the specifier names an external package.
func (p *Program) ResolveSpecifier(from, spec string) (string, error) {
	var base string
	switch {
	case spec == "." || spec == ".." || strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../"):
		base = path.Join(path.Dir(Clean(from)), spec)
	case strings.HasPrefix(spec, "/"):
		base = spec
	default:
		aliased := false
		for _, a := range p.aliases {
			if strings.HasPrefix(spec, a.Prefix) {
				base = path.Join(a.Target, strings.TrimPrefix(spec, a.Prefix))
				aliased = true
				break
			}
		}
		if !aliased {
			return "", nil
		}
	}
	base = Clean(base)
	for _, c := range candidates(base) {
		if fi, err := fs.Stat(p.fsys, c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", errors.Wrapf(ErrModuleNotFound, "%q imported from %s", spec, from)
}

func candidates(base string) []string {
	var out []string
	if hasExtension(base) {
		out = append(out, base)
		// TypeScript sources are imported with their emitted extension.
		if ext := path.Ext(base); ext == ".js" || ext == ".jsx" || ext == ".mjs" {
			stem := strings.TrimSuffix(base, ext)
			out = append(out, stem+".ts", stem+".tsx")
		}
	}
	for _, ext := range Extensions {
		out = append(out, base+ext)
	}
	for _, ext := range Extensions {
		out = append(out, path.Join(base, "index"+ext))
	}
	return out
}

func hasExtension(name string) bool {
	return slices.Contains(Extensions, path.Ext(name))
}
