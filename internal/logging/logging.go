// Package logging builds the slog loggers the rest of the tool writes to.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	DEBUG = "DEBUG"
	INFO  = "INFO"
	WARN  = "WARN"
	ERROR = "ERROR"
)

// ScopeKey is the attribute naming the component a record comes from.
const ScopeKey = "scope"

// New returns a text logger writing to dest (stderr if nil) at the named
// level.
func New(level string, dest io.Writer) *slog.Logger {
	if dest == nil {
		dest = os.Stderr
	}
	logLevel := slog.LevelInfo
	switch strings.ToUpper(level) {
	case DEBUG:
		logLevel = slog.LevelDebug
	case WARN:
		logLevel = slog.LevelWarn
	case ERROR:
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(dest, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Scoped returns l tagged with the given component scope, or a discarding
// logger if l is nil.
func Scoped(l *slog.Logger, scope string) *slog.Logger {
	if l == nil {
		l = Discard()
	}
	return l.With(ScopeKey, scope)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger { return slog.New(discardHandler{}) }

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
