// Package report renders usage maps and single usages, as BUILD-style
// Starlark or as YAML.
package report

import (
	"io"

	"github.com/bazelbuild/buildtools/build"
	"github.com/bazelbuild/buildtools/convertast"
	"github.com/pkg/errors"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"gopkg.in/yaml.v3"

	"github.com/fmeum/unbox/internal/box"
	"github.com/fmeum/unbox/internal/collect"
	"github.com/fmeum/unbox/internal/fold"
)

// Format selects the output syntax of a report.
type Format string

const (
	Star Format = "star"
	YAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case Star, YAML:
		return f, nil
	}
	return "", errors.Errorf("unknown report format %q, want star or yaml", s)
}

// Write renders the usages in the given format.
func Write(w io.Writer, format Format, usages []collect.ConstructUsage) error {
	if format == YAML {
		return WriteYAML(w, usages)
	}
	return WriteStar(w, usages)
}

// WriteStar renders one call per construct, in the form of a config
// statement:
//
//	component(
//	    name = "Box",
//	    props = {
//	        "color": ["red", "blue"],
//	    },
//	    conditions = {
//	        "color": {
//	            "mobile": ["red.100"],
//	        },
//	    },
//	)
func WriteStar(w io.Writer, usages []collect.ConstructUsage) error {
	l := newLayout()
	f := &syntax.File{Path: "unbox.report"}
	for _, c := range usages {
		props, conds := starlarkUsage(c)
		l.next()
		call := l.call(c.Kind.String(), func() []syntax.Expr {
			args := []syntax.Expr{l.kwarg("name", func() syntax.Expr {
				return valueToSyntaxExpr(starlark.String(c.Name), l)
			})}
			if props.Len() > 0 {
				args = append(args, l.kwarg("props", func() syntax.Expr { return valueToSyntaxExpr(props, l) }))
			}
			if conds.Len() > 0 {
				args = append(args, l.kwarg("conditions", func() syntax.Expr { return valueToSyntaxExpr(conds, l) }))
			}
			return args
		})
		f.Stmts = append(f.Stmts, &syntax.ExprStmt{X: call})
		l.next()
	}
	return format(w, f)
}

func starlarkUsage(c collect.ConstructUsage) (props, conds *starlark.Dict) {
	props, conds = starlark.NewDict(len(c.Props)), starlark.NewDict(0)
	for _, p := range c.Props {
		if len(p.Values) > 0 {
			// Keys are strings, so SetKey cannot fail.
			_ = props.SetKey(starlark.String(p.Name), literalList(p.Values))
		}
		if len(p.Conditions) == 0 {
			continue
		}
		byCond := starlark.NewDict(len(p.Conditions))
		for _, cond := range p.Conditions {
			_ = byCond.SetKey(starlark.String(cond.Name), literalList(cond.Values))
		}
		_ = conds.SetKey(starlark.String(p.Name), byCond)
	}
	return props, conds
}

func literalList(ls []*box.Literal) *starlark.List {
	items := make([]starlark.Value, 0, len(ls))
	for _, l := range ls {
		if v, ok := fold.ToStarlark(l); ok {
			items = append(items, v)
		}
	}
	return starlark.NewList(items)
}

// WriteUsage renders the merged props of one usage:
//
//	component(
//	    name = "Box",
//	    props = {
//	        "color": one_of("red", "blue"),
//	        "size": unresolved(),
//	    },
//	)
func WriteUsage(w io.Writer, u *collect.Usage) error {
	l := newLayout()
	call := l.call(u.Kind.String(), func() []syntax.Expr {
		args := []syntax.Expr{l.kwarg("name", func() syntax.Expr {
			return valueToSyntaxExpr(starlark.String(u.Name), l)
		})}
		keys := make([]string, len(u.Props))
		for i, p := range u.Props {
			keys[i] = p.Name
		}
		return append(args, l.kwarg("props", func() syntax.Expr {
			return l.dict(keys, func(i int) syntax.Expr { return boxToSyntaxExpr(u.Props[i].Value, l) })
		}))
	})
	return format(w, &syntax.File{Path: "unbox.usage", Stmts: []syntax.Stmt{&syntax.ExprStmt{X: call}}})
}

func format(w io.Writer, f *syntax.File) error {
	buildFile := convertast.ConvFile(f)
	buildFile.Type = build.TypeBuild
	_, err := w.Write(build.Format(buildFile))
	return errors.WithStack(err)
}

type yamlConstruct struct {
	Name  string     `yaml:"name"`
	Kind  string     `yaml:"kind"`
	Props []yamlProp `yaml:"props,omitempty"`
}

type yamlProp struct {
	Name       string          `yaml:"name"`
	Values     []any           `yaml:"values,omitempty"`
	Conditions []yamlCondition `yaml:"conditions,omitempty"`
}

type yamlCondition struct {
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
}

// WriteYAML renders the usages as a YAML list.
func WriteYAML(w io.Writer, usages []collect.ConstructUsage) error {
	doc := make([]yamlConstruct, len(usages))
	for i, c := range usages {
		yc := yamlConstruct{Name: c.Name, Kind: c.Kind.String()}
		for _, p := range c.Props {
			yp := yamlProp{Name: p.Name, Values: rawValues(p.Values)}
			for _, cond := range p.Conditions {
				yp.Conditions = append(yp.Conditions, yamlCondition{Name: cond.Name, Values: rawValues(cond.Values)})
			}
			yc.Props = append(yc.Props, yp)
		}
		doc[i] = yc
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encoding report")
	}
	return errors.WithStack(enc.Close())
}

func rawValues(ls []*box.Literal) []any {
	var out []any
	for _, l := range ls {
		if box.IsNullish(l) {
			continue
		}
		out = append(out, l.Value())
	}
	return out
}
