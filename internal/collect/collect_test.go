package collect

import (
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/fmeum/unbox/internal/ast"
	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/eval"
	"github.com/fmeum/unbox/internal/resolve"
	"github.com/fmeum/unbox/internal/testfs"
)

const project = `
-- src/theme.ts --
export const colors = { primary: "blue.500" };
export const Box = (props: any) => null;
-- src/other.ts --
export const Box = () => null;
-- src/app.tsx --
import { colors } from "./theme";
import { Box } from "./theme";
import { css } from "./css";
const base = { color: "red", size: "sm" };
const cond = Math.random() > 0.5;
export function App() {
  return (
    <div>
      <Box color="a" />
      <Box color="b" size={external()} padding="2" />
      <Box {...base} color="blue" />
      <Box color="green" {...base} />
      <Box {...(cond ? { color: "x" } : { color: "y" })} />
      <Box color={{ mobile: "red.100", desktop: colors.primary }} hidden />
      <div className={css({ display: "flex", gap: cond ? "1" : "2", other: "no" })} />
    </div>
  );
}
-- src/second.tsx --
import { Box } from "./theme";
export const Second = () => <><Box color="a" /><Box color="z" /></>;
-- src/conflict.tsx --
const Box = 1;
let Box = 2;
<Box color="a" />;
`

type fixture struct {
	prog *resolve.Program
}

func newFixture() *fixture {
	return &fixture{prog: resolve.NewProgram(testfs.Parse(project))}
}

func (fx *fixture) collect(t *testing.T, path string, components, functions []Construct, used *UsageMap) *Result {
	t.Helper()
	f, err := fx.prog.Load(path)
	qt.Assert(t, qt.IsNil(err))
	return Collect(f, components, functions, used, eval.New(resolve.NewResolver(fx.prog)))
}

var (
	boxAll  = Components("Box")
	cssSome = []Construct{{Name: "css", Props: PropList("display", "gap")}}
)

type pairString struct {
	Prop, Condition, Value string
}

func pairStrings(pairs []Pair) []pairString {
	out := make([]pairString, len(pairs))
	for i, p := range pairs {
		out[i] = pairString{p.Prop, p.Condition, p.Value.String()}
	}
	return out
}

func literalStrings(ls []*box.Literal) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.String()
	}
	return out
}

func TestCollectPairs(t *testing.T) {
	used := NewUsageMap()
	res := newFixture().collect(t, "src/app.tsx", boxAll, cssSome, used)
	qt.Assert(t, qt.HasLen(res.Errors, 0))

	b := res.Construct("Box")
	qt.Assert(t, qt.IsNotNil(b))
	qt.Assert(t, qt.HasLen(b.Usages, 6))
	qt.Assert(t, qt.DeepEquals(pairStrings(b.Pairs), []pairString{
		{"color", "", `"a"`},
		{"color", "", `"b"`},
		{"padding", "", `"2"`},
		{"color", "", `"blue"`},
		{"size", "", `"sm"`},
		{"color", "", `"red"`},
		{"color", "", `"x"`},
		{"color", "", `"y"`},
		{"color", "mobile", `"red.100"`},
		{"color", "desktop", `"blue.500"`},
	}))

	c := res.Construct("css")
	qt.Assert(t, qt.HasLen(c.Usages, 1))
	qt.Assert(t, qt.DeepEquals(pairStrings(c.Pairs), []pairString{
		{"display", "", `"flex"`},
		{"gap", "", `"1"`},
		{"gap", "", `"2"`},
	}))
	qt.Assert(t, qt.DeepEquals(res.Deps, []string{"src/theme.ts"}))
}

func TestUnresolvableIsIsolated(t *testing.T) {
	res := newFixture().collect(t, "src/app.tsx", boxAll, nil, nil)
	u := res.Construct("Box").Usages[1]
	size, ok := u.Get("size")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(box.IsUnresolvable(size)))
	color, _ := u.Get("color")
	qt.Assert(t, qt.Equals(color.String(), `"b"`))
	padding, _ := u.Get("padding")
	qt.Assert(t, qt.Equals(padding.String(), `"2"`))
}

func TestSpreadShadowing(t *testing.T) {
	res := newFixture().collect(t, "src/app.tsx", boxAll, nil, nil)
	usages := res.Construct("Box").Usages

	color, _ := usages[2].Get("color")
	qt.Assert(t, qt.Equals(color.String(), `"blue"`))
	color, _ = usages[3].Get("color")
	qt.Assert(t, qt.Equals(color.String(), `"red"`))

	hidden, ok := usages[5].Get("hidden")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsTrue(box.IsEmptyInitializer(hidden)))
}

func TestConditionalSpreadKeepsEarlierValue(t *testing.T) {
	prog := resolve.NewProgram(testfs.Parse(`
-- app.tsx --
const cond = Math.random() > 0.5;
<Box color="red" {...(cond ? { color: "blue" } : {})} />;
<Box size="sm" {...(cond ? { size: "lg" } : { tone: "x" })} />;
<div className={css({ margin: "1", ...(cond ? { margin: "2" } : {}) })} />;
`))
	f, err := prog.Load("app.tsx")
	qt.Assert(t, qt.IsNil(err))
	used := NewUsageMap()
	res := Collect(f, boxAll, Functions("css"), used, eval.New(resolve.NewResolver(prog)))
	qt.Assert(t, qt.HasLen(res.Errors, 0))

	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("Box", "color")), []string{`"red"`, `"blue"`}))
	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("Box", "size")), []string{`"sm"`, `"lg"`}))
	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("Box", "tone")), []string{`"x"`}))
	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("css", "margin")), []string{`"1"`, `"2"`}))
}

func TestUsageMapUnion(t *testing.T) {
	fx := newFixture()
	used := NewUsageMap()
	fx.collect(t, "src/app.tsx", boxAll, cssSome, used)
	fx.collect(t, "src/second.tsx", boxAll, cssSome, used)

	qt.Assert(t, qt.DeepEquals(used.Constructs(), []string{"Box", "css"}))
	qt.Assert(t, qt.DeepEquals(used.Properties("Box"), []string{"color", "padding", "size"}))
	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("Box", "color")),
		[]string{`"a"`, `"b"`, `"blue"`, `"red"`, `"x"`, `"y"`, `"z"`}))
	qt.Assert(t, qt.DeepEquals(used.Conditions("Box", "color"), []string{"mobile", "desktop"}))
	qt.Assert(t, qt.DeepEquals(literalStrings(used.ConditionValues("Box", "color", "desktop")), []string{`"blue.500"`}))
	qt.Assert(t, qt.HasLen(used.Properties("css"), 2))
}

func TestForget(t *testing.T) {
	fx := newFixture()
	used := NewUsageMap()
	fx.collect(t, "src/app.tsx", boxAll, cssSome, used)
	fx.collect(t, "src/second.tsx", boxAll, cssSome, used)

	used.Forget("src/app.tsx")
	qt.Assert(t, qt.DeepEquals(used.Properties("Box"), []string{"color"}))
	qt.Assert(t, qt.DeepEquals(literalStrings(used.Values("Box", "color")), []string{`"a"`, `"z"`}))
	qt.Assert(t, qt.HasLen(used.Conditions("Box", "color"), 0))
	qt.Assert(t, qt.HasLen(used.Properties("css"), 0))
	qt.Assert(t, qt.DeepEquals(used.Constructs(), []string{"Box", "css"}))
}

func render(m *UsageMap) map[string][]string {
	out := make(map[string][]string)
	for _, c := range m.Snapshot(true) {
		for _, p := range c.Props {
			out[c.Name+"."+p.Name] = literalStrings(p.Values)
			for _, cond := range p.Conditions {
				out[c.Name+"."+p.Name+"@"+cond.Name] = literalStrings(cond.Values)
			}
		}
	}
	return out
}

func TestDeterministic(t *testing.T) {
	first, second := NewUsageMap(), NewUsageMap()
	newFixture().collect(t, "src/app.tsx", boxAll, cssSome, first)
	newFixture().collect(t, "src/app.tsx", boxAll, cssSome, second)
	if diff := cmp.Diff(render(first), render(second)); diff != "" {
		t.Fatalf("usage maps differ (-first +second):\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	fx := newFixture()
	direct, local, merged := NewUsageMap(), NewUsageMap(), NewUsageMap()
	fx.collect(t, "src/app.tsx", boxAll, cssSome, direct)
	fx.collect(t, "src/app.tsx", boxAll, cssSome, local)
	merged.Merge(local)
	if diff := cmp.Diff(render(direct), render(merged)); diff != "" {
		t.Fatalf("merge differs (-direct +merged):\n%s", diff)
	}
	merged.Forget("src/app.tsx")
	qt.Assert(t, qt.HasLen(merged.Properties("Box"), 0))
}

func TestModuleFilter(t *testing.T) {
	fx := newFixture()
	res := fx.collect(t, "src/app.tsx", []Construct{{Name: "Box", Props: AllProps(), Module: "./theme"}}, nil, nil)
	qt.Assert(t, qt.HasLen(res.Construct("Box").Usages, 6))

	res = fx.collect(t, "src/app.tsx", []Construct{{Name: "Box", Props: AllProps(), Module: "./other"}}, nil, nil)
	qt.Assert(t, qt.HasLen(res.Construct("Box").Usages, 0))
	qt.Assert(t, qt.HasLen(res.Errors, 0))
}

func TestMissingModuleIsConfigError(t *testing.T) {
	res := newFixture().collect(t, "src/app.tsx", []Construct{{Name: "Box", Props: AllProps(), Module: "./missing"}}, nil, nil)
	qt.Assert(t, qt.HasLen(res.Errors, 1))
	qt.Assert(t, qt.ErrorIs(res.Errors[0], resolve.ErrModuleNotFound))
	var cerr *ConfigError
	qt.Assert(t, qt.IsTrue(errors.As(res.Errors[0], &cerr)))
	qt.Assert(t, qt.Equals(cerr.Construct, "Box"))
	qt.Assert(t, qt.HasLen(res.Construct("Box").Usages, 0))
}

func TestConflictingDeclarations(t *testing.T) {
	res := newFixture().collect(t, "src/conflict.tsx", boxAll, nil, nil)
	qt.Assert(t, qt.HasLen(res.Errors, 1))
	qt.Assert(t, qt.ErrorIs(res.Errors[0], ErrConflictingDeclarations))
	var cerr *ConfigError
	qt.Assert(t, qt.IsTrue(errors.As(res.Errors[0], &cerr)))
	qt.Assert(t, qt.Equals(cerr.Pos.Line, 2))
}

func TestExtractAt(t *testing.T) {
	fx := newFixture()
	f, err := fx.prog.Load("src/app.tsx")
	qt.Assert(t, qt.IsNil(err))
	ev := eval.New(resolve.NewResolver(fx.prog))

	u, ok := ExtractAt(f, 9, 10, ev)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(u.Name, "Box"))
	qt.Assert(t, qt.HasLen(u.Props, 1))
	qt.Assert(t, qt.Equals(u.Props[0].Value.String(), `"a"`))

	u, ok = ExtractAt(f, 15, 24, ev)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(u.Name, "css"))
	_, isCall := u.Node.(*ast.CallExpr)
	qt.Assert(t, qt.IsTrue(isCall))
	gap, ok := u.Get("gap")
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(gap.String(), `("1" ?: "2")`))
	other, _ := u.Get("other")
	qt.Assert(t, qt.Equals(other.String(), `"no"`))

	_, ok = ExtractAt(f, 1, 1, ev)
	qt.Assert(t, qt.IsFalse(ok))
}
