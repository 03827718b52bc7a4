package scan

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/go-quicktest/qt"
	"github.com/pkg/errors"

	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/collect"
	"github.com/fmeum/unbox/internal/fold"
	"github.com/fmeum/unbox/internal/resolve"
	"github.com/fmeum/unbox/internal/testfs"
)

const project = `
-- helpers.star --
def rem(n):
    return js_string(n / 4) + "rem"
-- src/theme.ts --
export const tone = "red";
-- src/app.tsx --
import { tone } from "./theme";
export const App = () => <Box color={tone} size={rem(2)} />;
-- src/plain.tsx --
export const P = () => <Box color="blue" />;
-- src/types.d.ts --
export declare const never: string;
-- node_modules/lib/index.tsx --
export const V = () => <Box color="vendor" />;
-- .cache/x.tsx --
export const H = () => <Box color="hidden" />;
-- README.md --
<Box color="doc" />
`

func literalStrings(ls []*box.Literal) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.String()
	}
	return out
}

func newScanner(t *testing.T, fsys fstest.MapFS, opts ...Option) *Scanner {
	t.Helper()
	folder := fold.New()
	qt.Assert(t, qt.IsNil(folder.LoadHelpers(fsys, "helpers.star")))
	opts = append([]Option{WithFolder(folder), WithWorkers(2)}, opts...)
	return New(fsys, collect.Components("Box"), nil, opts...)
}

func TestSources(t *testing.T) {
	got, err := Sources(context.Background(), testfs.Parse(project))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(got, []string{"src/app.tsx", "src/plain.tsx", "src/theme.ts"}))
}

func TestScan(t *testing.T) {
	s := newScanner(t, testfs.Parse(project))
	report, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(report.Scanned, []string{"src/app.tsx", "src/plain.tsx", "src/theme.ts"}))
	qt.Assert(t, qt.Equals(report.Unchanged, 0))
	qt.Assert(t, qt.HasLen(report.Errors, 0))

	used := s.Usage()
	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("Box", "color")), []string{`"red"`, `"blue"`}))
	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("Box", "size")), []string{`"0.5rem"`}))
}

func TestRescanUnchanged(t *testing.T) {
	s := newScanner(t, testfs.Parse(project))
	_, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))
	parses := s.Program().Parses()

	report, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(report.Scanned, 0))
	qt.Assert(t, qt.Equals(report.Unchanged, 3))
	qt.Assert(t, qt.Equals(s.Program().Parses(), parses))
	qt.Assert(t, qt.DeepEquals(literalStrings(s.Usage().Values("Box", "color")), []string{`"red"`, `"blue"`}))
}

func TestRescanDependents(t *testing.T) {
	fsys := testfs.Parse(project)
	s := newScanner(t, fsys)
	_, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))

	fsys["src/theme.ts"] = &fstest.MapFile{Data: []byte(`export const tone = "green";`)}
	report, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(report.Scanned, []string{"src/app.tsx", "src/theme.ts"}))
	qt.Assert(t, qt.Equals(report.Unchanged, 1))
	qt.Assert(t, qt.DeepEquals(literalStrings(s.Usage().Values("Box", "color")), []string{`"blue"`, `"green"`}))
}

func TestRemovedFile(t *testing.T) {
	fsys := testfs.Parse(project)
	s := newScanner(t, fsys)
	_, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))

	delete(fsys, "src/plain.tsx")
	report, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(report.Removed, []string{"src/plain.tsx"}))
	qt.Assert(t, qt.HasLen(report.Scanned, 0))
	qt.Assert(t, qt.DeepEquals(literalStrings(s.Usage().Values("Box", "color")), []string{`"red"`}))
}

func TestConfigErrorsDoNotStopScan(t *testing.T) {
	fsys := testfs.Parse(project)
	boxes := []collect.Construct{{Name: "Box", Props: collect.AllProps(), Module: "./missing"}}
	s := New(fsys, boxes, collect.Functions("css"))
	report, err := s.Scan(context.Background())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(report.Scanned, 3))
	qt.Assert(t, qt.HasLen(report.Errors, 3))
	for _, err := range report.Errors {
		qt.Check(t, qt.ErrorIs(err, resolve.ErrModuleNotFound))
	}
	qt.Assert(t, qt.DeepEquals(s.Usage().Constructs(), []string{"Box", "css"}))
	qt.Assert(t, qt.HasLen(s.Usage().Properties("Box"), 0))
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newScanner(t, testfs.Parse(project)).Scan(ctx)
	qt.Assert(t, qt.ErrorIs(err, context.Canceled))
}

func TestInspect(t *testing.T) {
	s := newScanner(t, testfs.Parse(project))
	u, err := s.Inspect("src/app.tsx", 2, 28)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(u.Name, "Box"))
	size, ok := u.Get("size")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(size.String(), `"0.5rem"`))

	_, err = s.Inspect("src/app.tsx", 1, 1)
	qt.Assert(t, qt.ErrorIs(err, ErrNoUsage))

	_, err = s.Inspect("src/nope.tsx", 1, 1)
	qt.Assert(t, qt.IsNotNil(err))
	qt.Assert(t, qt.IsFalse(errors.Is(err, ErrNoUsage)))
}
