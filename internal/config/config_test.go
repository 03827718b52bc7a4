package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/fmeum/unbox/internal/collect"
	"github.com/fmeum/unbox/internal/resolve"
)

const starConfig = `# Tracked constructs.
component(name = "Box", props = "all", module = "./theme")
component(name = "ColorBox", props = ["color", "backgroundColor"])
function(name = "css")
alias(prefix = "@/", target = "src")
helpers(srcs = ["helpers.star"])
`

const yamlConfigSrc = `
components:
  - Box
  - name: ColorBox
    props: [color, backgroundColor]
functions:
  - name: css
    props: all
    module: ./styled
aliases:
  - prefix: "@/"
    target: src
helpers:
  - helpers.star
`

func TestParseStarlark(t *testing.T) {
	cfg, err := Parse("unbox.star", []byte(starConfig))
	qt.Assert(t, qt.IsNil(err))
	want := &Config{
		Components: []collect.Construct{
			{Name: "Box", Kind: collect.ComponentKind, Props: collect.AllProps(), Module: "./theme"},
			{Name: "ColorBox", Kind: collect.ComponentKind, Props: collect.PropList("color", "backgroundColor")},
		},
		Functions: []collect.Construct{
			{Name: "css", Kind: collect.FunctionKind, Props: collect.AllProps()},
		},
		Aliases: []resolve.Alias{{Prefix: "@/", Target: "src"}},
		Helpers: []string{"helpers.star"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseYAML(t *testing.T) {
	cfg, err := Parse("unbox.yaml", []byte(yamlConfigSrc))
	qt.Assert(t, qt.IsNil(err))
	want := &Config{
		Components: []collect.Construct{
			{Name: "Box", Kind: collect.ComponentKind, Props: collect.AllProps()},
			{Name: "ColorBox", Kind: collect.ComponentKind, Props: collect.PropList("color", "backgroundColor")},
		},
		Functions: []collect.Construct{
			{Name: "css", Kind: collect.FunctionKind, Props: collect.AllProps(), Module: "./styled"},
		},
		Aliases: []resolve.Alias{{Prefix: "@/", Target: "src"}},
		Helpers: []string{"helpers.star"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		src  string
		line int
		msg  string
	}{{
		name: "missing name",
		file: "unbox.star",
		src:  "component(name = \"Box\")\ncomponent(props = \"all\")\n",
		line: 2,
		msg:  "component without a name",
	}, {
		name: "tracked twice",
		file: "unbox.star",
		src:  "component(name = \"Box\")\n\nfunction(name = \"Box\")\n",
		line: 3,
		msg:  `"Box" is already tracked on line 1`,
	}, {
		name: "bad props",
		file: "unbox.star",
		src:  "component(\n    name = \"Box\",\n    props = [1],\n)\n",
		line: 3,
		msg:  `props must be "all" or a list of strings`,
	}, {
		name: "unknown statement",
		file: "unbox.star",
		src:  "widget(name = \"Box\")\n",
		line: 1,
		msg:  "unknown statement widget",
	}, {
		name: "unknown attribute",
		file: "unbox.star",
		src:  "function(name = \"css\", colour = \"red\")\n",
		line: 1,
		msg:  "function has no attribute colour",
	}, {
		name: "positional argument",
		file: "unbox.star",
		src:  "component(\"Box\")\n",
		line: 1,
		msg:  "component takes keyword arguments only",
	}, {
		name: "yaml bad props",
		file: "unbox.yaml",
		src:  "components:\n  - name: Box\n    props: some\n",
		line: 3,
		msg:  `props must be "all" or a list of strings`,
	}, {
		name: "yaml tracked twice",
		file: "unbox.yaml",
		src:  "components:\n  - Box\nfunctions:\n  - Box\n",
		line: 4,
		msg:  `"Box" is already tracked on line 2`,
	}, {
		name: "yaml alias",
		file: "unbox.yaml",
		src:  "aliases:\n  - prefix: \"@/\"\n",
		line: 2,
		msg:  "alias needs a prefix and a target",
	}}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse(test.file, []byte(test.src))
			var cerr *Error
			qt.Assert(t, qt.IsTrue(errors.As(err, &cerr)))
			qt.Check(t, qt.Equals(cerr.File, test.file))
			qt.Check(t, qt.Equals(cerr.Line, test.line))
			qt.Check(t, qt.Equals(cerr.Msg, test.msg))
		})
	}
}

func TestSyntaxError(t *testing.T) {
	_, err := Parse("unbox.star", []byte("component(name = \n"))
	qt.Assert(t, qt.ErrorMatches(err, `parsing config: .*`))
}

func TestLoadSearchesParents(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "app", "src")
	qt.Assert(t, qt.IsNil(os.MkdirAll(nested, 0o755)))
	qt.Assert(t, qt.IsNil(os.WriteFile(filepath.Join(root, "unbox.yaml"), []byte(yamlConfigSrc), 0o644)))

	cfg, path, err := Load(nested)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(path, filepath.Join(root, "unbox.yaml")))
	qt.Assert(t, qt.Equals(cfg.Dir, root))
	qt.Assert(t, qt.HasLen(cfg.Components, 2))

	// unbox.star takes precedence in the same directory.
	qt.Assert(t, qt.IsNil(os.WriteFile(filepath.Join(root, "app", "unbox.star"), []byte(starConfig), 0o644)))
	_, path, err = Load(nested)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(path, filepath.Join(root, "app", "unbox.star")))
}

func TestLoadNotFound(t *testing.T) {
	cfg, path, err := Load(t.TempDir())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(cfg))
	qt.Assert(t, qt.Equals(path, ""))
}
