// Package scan extracts the usages of tracked constructs from every source
// file of a project and keeps the usage map current across rescans.
//
// A rescan only extracts files whose content hash changed, plus the files
// whose evaluation read a changed module.
package scan

import (
	"context"
	"io/fs"
	"log/slog"
	"path"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fmeum/unbox/internal/collect"
	"github.com/fmeum/unbox/internal/eval"
	"github.com/fmeum/unbox/internal/logging"
	"github.com/fmeum/unbox/internal/resolve"
)

// ErrNoUsage is returned by Inspect when no JSX element or call contains
// the position.
var ErrNoUsage = errors.New("no component or call at position")

// SourceExtensions are the extensions of the files a scan extracts from.
var SourceExtensions = []string{".tsx", ".ts", ".jsx", ".js", ".mjs"}

type Option func(*Scanner)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.base = l }
}

// WithAliases configures the module specifier aliases, such as "@/".
func WithAliases(aliases ...resolve.Alias) Option {
	return func(s *Scanner) { s.aliases = append(s.aliases, aliases...) }
}

// WithFolder sets the constant folder used for expressions the evaluator
// cannot reduce itself.
func WithFolder(f eval.Folder) Option {
	return func(s *Scanner) { s.folder = f }
}

// WithWorkers bounds the number of files processed in parallel. The
// default is GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) { s.workers = n }
}

// Scanner scans a project file system. Scans must not run concurrently;
// the usage map may be read at any time.
type Scanner struct {
	fsys       fs.FS
	components []collect.Construct
	functions  []collect.Construct
	aliases    []resolve.Alias
	folder     eval.Folder
	workers    int

	// base is the unscoped logger handed to the components.
	base   *slog.Logger
	logger *slog.Logger

	prog *resolve.Program
	used *collect.UsageMap

	mu    sync.Mutex
	files map[string]*fileState
}

type fileState struct {
	hash uint64
	deps []string
}

// Report summarizes one scan.
type Report struct {
	// Scanned are the files extracted by the scan, in path order.
	Scanned []string
	// Unchanged counts the files skipped because neither they nor their
	// dependencies changed.
	Unchanged int
	// Removed are previously scanned files that no longer exist.
	Removed []string
	// Errors are per-file problems. They never stop the scan.
	Errors []error
}

// New returns a Scanner tracking components and functions in fsys. The
// usage map lists every tracked name even before the first scan.
func New(fsys fs.FS, components, functions []collect.Construct, opts ...Option) *Scanner {
	s := &Scanner{
		fsys:       fsys,
		components: components,
		functions:  functions,
		workers:    runtime.GOMAXPROCS(0),
		used:       collect.NewUsageMap(),
		files:      make(map[string]*fileState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	s.prog = resolve.NewProgram(fsys, resolve.WithAliases(s.aliases...), resolve.WithLogger(s.base))
	s.logger = logging.Scoped(s.base, "scan")
	for _, c := range components {
		s.used.Track(c.Name, collect.ComponentKind)
	}
	for _, c := range functions {
		s.used.Track(c.Name, collect.FunctionKind)
	}
	return s
}

// Program returns the module cache shared by all scans.
func (s *Scanner) Program() *resolve.Program { return s.prog }

// Usage returns the project-wide usage map.
func (s *Scanner) Usage() *collect.UsageMap { return s.used }

// Sources lists the source files of fsys in lexical order. Dependency
// directories, hidden directories and declaration files are skipped.
func Sources(ctx context.Context, fsys fs.FS) ([]string, error) {
	var out []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != "." && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(name, ".d.ts") {
			return nil
		}
		ext := path.Ext(name)
		for _, e := range SourceExtensions {
			if ext == e {
				out = append(out, p)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing sources")
	}
	return out, nil
}

type hashed struct {
	hash uint64
	err  error
}

type extracted struct {
	res  *collect.Result
	used *collect.UsageMap
	err  error
}

// Scan extracts every source file that changed since the previous scan
// and updates the usage map. Only listing failures and cancellation are
// returned as errors.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := Sources(ctx, s.fsys)
	if err != nil {
		return nil, err
	}

	hashes := make([]hashed, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := fs.ReadFile(s.fsys, p)
			if err != nil {
				hashes[i] = hashed{err: errors.Wrapf(err, "reading %s", p)}
				return nil
			}
			hashes[i] = hashed{hash: xxhash.Sum64(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{}
	present := make(map[string]bool, len(paths))
	changed := make(map[string]bool)
	for i, p := range paths {
		present[p] = true
		if hashes[i].err != nil {
			report.Errors = append(report.Errors, hashes[i].err)
			s.logger.Warn("unreadable file", "file", p, "err", hashes[i].err)
			changed[p] = true
			continue
		}
		if st, ok := s.files[p]; !ok || st.hash != hashes[i].hash {
			changed[p] = true
		}
	}
	for p := range s.files {
		if !present[p] {
			report.Removed = append(report.Removed, p)
			changed[p] = true
		}
	}
	sort.Strings(report.Removed)

	var rescan []int
	for i, p := range paths {
		if hashes[i].err != nil {
			continue
		}
		if changed[p] || s.dependsOn(p, changed) {
			rescan = append(rescan, i)
		} else {
			report.Unchanged++
		}
	}

	invalid := make([]string, 0, len(changed))
	for p := range changed {
		invalid = append(invalid, p)
	}
	s.prog.Invalidate(invalid...)
	for _, p := range report.Removed {
		s.used.Forget(p)
		delete(s.files, p)
	}
	for i, p := range paths {
		if hashes[i].err != nil {
			s.used.Forget(p)
			delete(s.files, p)
		}
	}
	s.logger.Debug("classified", "files", len(paths), "rescan", len(rescan), "unchanged", report.Unchanged, "removed", len(report.Removed))

	results := make([]extracted, len(rescan))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for j, i := range rescan {
		j, i := j, i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[j] = s.extract(paths[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merging in path order keeps the usage map independent of scheduling.
	for j, i := range rescan {
		p, r := paths[i], results[j]
		s.used.Forget(p)
		report.Scanned = append(report.Scanned, p)
		if r.err != nil {
			delete(s.files, p)
			report.Errors = append(report.Errors, r.err)
			s.logger.Warn("extraction failed", "file", p, "err", r.err)
			continue
		}
		s.used.Merge(r.used)
		s.files[p] = &fileState{hash: hashes[i].hash, deps: r.res.Deps}
		for _, err := range r.res.Errors {
			report.Errors = append(report.Errors, err)
			s.logger.Warn("configuration error", "file", p, "err", err)
		}
	}
	return report, nil
}

// dependsOn reports whether the last extraction of p read a changed module.
func (s *Scanner) dependsOn(p string, changed map[string]bool) bool {
	st, ok := s.files[p]
	if !ok {
		return false
	}
	for _, d := range st.deps {
		if changed[d] {
			return true
		}
	}
	return false
}

func (s *Scanner) evaluator() *eval.Evaluator {
	opts := []eval.Option{eval.WithLogger(s.base)}
	if s.folder != nil {
		opts = append(opts, eval.WithFolder(s.folder))
	}
	return eval.New(resolve.NewResolver(s.prog), opts...)
}

func (s *Scanner) extract(p string) extracted {
	f, err := s.prog.Load(p)
	if err != nil {
		return extracted{err: err}
	}
	local := collect.NewUsageMap()
	res := collect.Collect(f, s.components, s.functions, local, s.evaluator(), collect.WithLogger(s.base))
	s.logger.Debug("extracted", "file", p, "deps", len(res.Deps), "errors", len(res.Errors))
	return extracted{res: res, used: local}
}

// Inspect returns the merged props of the innermost JSX element or call at
// line:col of the file at p.
func (s *Scanner) Inspect(p string, line, col int) (*collect.Usage, error) {
	p = resolve.Clean(p)
	f, err := s.prog.Load(p)
	if err != nil {
		return nil, err
	}
	u, ok := collect.ExtractAt(f, line, col, s.evaluator())
	if !ok {
		return nil, errors.Wrapf(ErrNoUsage, "%s:%d:%d", p, line, col)
	}
	return u, nil
}
