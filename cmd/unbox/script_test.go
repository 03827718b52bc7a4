package main

import (
	"os"
	"testing"

	"github.com/go-quicktest/qt"
	"github.com/rogpeppe/go-internal/testscript"

	"github.com/fmeum/unbox/internal/config"
	"github.com/fmeum/unbox/internal/resolve"
)

func TestScript(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"unbox": Main,
	}))
}

func TestParsePosition(t *testing.T) {
	line, col, err := parsePosition("12:4")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(line, 12))
	qt.Assert(t, qt.Equals(col, 4))

	for _, bad := range []string{"12", "a:b", "0:1", "3:"} {
		_, _, err := parsePosition(bad)
		qt.Check(t, qt.ErrorMatches(err, `invalid position .*`), qt.Commentf("%s", bad))
	}
}

func TestAliasesRebased(t *testing.T) {
	cfg := &config.Config{
		Dir:     "/project",
		Aliases: []resolve.Alias{{Prefix: "@/", Target: "src"}, {Prefix: "~ui/", Target: "src/ui"}},
	}
	got, err := aliases(cfg, "/project/src")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.DeepEquals(got, []resolve.Alias{{Prefix: "@/", Target: "."}, {Prefix: "~ui/", Target: "ui"}}))
}
