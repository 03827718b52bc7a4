package logging

import (
	"bytes"
	"testing"

	"github.com/go-quicktest/qt"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", &buf)
	l.Info("hidden")
	l.Warn("shown", "file", "a.tsx")
	qt.Assert(t, qt.Equals(buf.String(), "level=WARN msg=shown file=a.tsx\n"))
}

func TestScoped(t *testing.T) {
	var buf bytes.Buffer
	Scoped(New(DEBUG, &buf), "eval").Debug("step")
	qt.Assert(t, qt.Equals(buf.String(), "level=DEBUG msg=step scope=eval\n"))

	// A nil logger discards.
	Scoped(nil, "eval").Error("dropped")
}
