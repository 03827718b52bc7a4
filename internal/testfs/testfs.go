// Package testfs turns txtar archives into in-memory file systems for
// tests.
package testfs

import (
	"strings"
	"testing/fstest"

	"golang.org/x/tools/txtar"
)

// Parse returns the files of the txtar archive data as a MapFS. Leading
// indentation common to the whole archive is not stripped.
func Parse(data string) fstest.MapFS {
	a := txtar.Parse([]byte(strings.TrimLeft(data, "\n")))
	fsys := make(fstest.MapFS, len(a.Files))
	for _, f := range a.Files {
		fsys[strings.TrimPrefix(f.Name, "./")] = &fstest.MapFile{Data: f.Data, Mode: 0o644}
	}
	return fsys
}
