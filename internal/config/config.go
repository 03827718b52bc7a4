// Package config loads the list of tracked components and functions.
//
// The config file is searched for in the project directory and its parents.
// It is either a BUILD-style Starlark file:
//
//	component(name = "Box", props = "all", module = "./theme")
//	function(name = "css", props = ["color", "display"])
//	alias(prefix = "@/", target = "src")
//	helpers(srcs = ["helpers.star"])
//
// or a YAML file with the keys components, functions, aliases and helpers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bazelbuild/buildtools/build"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fmeum/unbox/internal/collect"
	"github.com/fmeum/unbox/internal/resolve"
)

// Config is a loaded configuration. Alias targets and helper paths are
// relative to Dir.
type Config struct {
	Dir        string
	Components []collect.Construct
	Functions  []collect.Construct
	Aliases    []resolve.Alias
	Helpers    []string
}

// ConfigFileNames are the names searched for config files, in order of preference.
var ConfigFileNames = []string{
	"unbox.star",
	"UNBOX",
	"unbox.yaml",
	".unbox.yaml",
}

// Error is a problem in a config file.
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// Load searches for a config file starting from the given directory
// and walking up to parent directories. Returns nil if no config file is found.
func Load(startDir string) (*Config, string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

// Parse parses a config file. Files ending in .yaml or .yml are YAML,
// everything else is Starlark.
func Parse(filename string, data []byte) (*Config, error) {
	p := &parser{file: filename, cfg: &Config{}, seen: make(map[string]int)}
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = p.parseYAML(data)
	default:
		err = p.parseStarlark(data)
	}
	if err != nil {
		return nil, err
	}
	return p.cfg, nil
}

type parser struct {
	file string
	cfg  *Config
	// seen maps tracked names to the line they were declared on.
	seen map[string]int
}

func (p *parser) errorf(line int, format string, args ...any) error {
	return errors.WithStack(&Error{File: p.file, Line: line, Msg: fmt.Sprintf(format, args...)})
}

func (p *parser) add(line int, c collect.Construct) error {
	if c.Name == "" {
		return p.errorf(line, "%s without a name", c.Kind)
	}
	if prev, ok := p.seen[c.Name]; ok {
		return p.errorf(line, "%q is already tracked on line %d", c.Name, prev)
	}
	p.seen[c.Name] = line
	if c.Kind == collect.ComponentKind {
		p.cfg.Components = append(p.cfg.Components, c)
	} else {
		p.cfg.Functions = append(p.cfg.Functions, c)
	}
	return nil
}

func (p *parser) parseStarlark(data []byte) error {
	f, err := build.ParseDefault(p.file, data)
	if err != nil {
		return errors.Wrap(err, "parsing config")
	}
	for _, stmt := range f.Stmt {
		if _, ok := stmt.(*build.CommentBlock); ok {
			continue
		}
		start, _ := stmt.Span()
		call, ok := stmt.(*build.CallExpr)
		if !ok {
			return p.errorf(start.Line, "expected a call, got %s", build.FormatString(stmt))
		}
		r := &build.Rule{Call: call}
		if err := p.rule(start.Line, r); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) rule(line int, r *build.Rule) error {
	for _, arg := range r.Call.List {
		if _, ok := arg.(*build.AssignExpr); !ok {
			return p.errorf(line, "%s takes keyword arguments only", r.Kind())
		}
	}
	switch kind := r.Kind(); kind {
	case "component", "function":
		if err := p.known(line, r, "name", "props", "module"); err != nil {
			return err
		}
		c := collect.Construct{Name: r.AttrString("name"), Module: r.AttrString("module")}
		if kind == "function" {
			c.Kind = collect.FunctionKind
		}
		props, err := p.starlarkProps(line, r.Attr("props"))
		if err != nil {
			return err
		}
		c.Props = props
		return p.add(line, c)
	case "alias":
		if err := p.known(line, r, "prefix", "target"); err != nil {
			return err
		}
		a := resolve.Alias{Prefix: r.AttrString("prefix"), Target: r.AttrString("target")}
		if a.Prefix == "" || a.Target == "" {
			return p.errorf(line, "alias needs a prefix and a target")
		}
		p.cfg.Aliases = append(p.cfg.Aliases, a)
	case "helpers":
		if err := p.known(line, r, "srcs"); err != nil {
			return err
		}
		srcs := r.AttrStrings("srcs")
		if srcs == nil {
			return p.errorf(line, "helpers needs a list of srcs")
		}
		p.cfg.Helpers = append(p.cfg.Helpers, srcs...)
	default:
		return p.errorf(line, "unknown statement %s", kind)
	}
	return nil
}

func (p *parser) known(line int, r *build.Rule, keys ...string) error {
	for _, key := range r.AttrKeys() {
		if !slices.Contains(keys, key) {
			return p.errorf(line, "%s has no attribute %s", r.Kind(), key)
		}
	}
	return nil
}

func (p *parser) starlarkProps(line int, e build.Expr) (collect.Props, error) {
	switch e := e.(type) {
	case nil:
		return collect.AllProps(), nil
	case *build.StringExpr:
		if e.Value == "all" {
			return collect.AllProps(), nil
		}
	case *build.ListExpr:
		names := make([]string, 0, len(e.List))
		for _, it := range e.List {
			s, ok := it.(*build.StringExpr)
			if !ok {
				break
			}
			names = append(names, s.Value)
		}
		if len(names) == len(e.List) {
			return collect.PropList(names...), nil
		}
	}
	start, _ := e.Span()
	if start.Line > 0 {
		line = start.Line
	}
	return collect.Props{}, p.errorf(line, `props must be "all" or a list of strings`)
}

type yamlConfig struct {
	Components []yaml.Node    `yaml:"components"`
	Functions  []yaml.Node    `yaml:"functions"`
	Aliases    []yaml.Node    `yaml:"aliases"`
	Helpers    []string       `yaml:"helpers"`
	Extra      map[string]any `yaml:",inline"`
}

type yamlConstruct struct {
	Name   string    `yaml:"name"`
	Props  yaml.Node `yaml:"props"`
	Module string    `yaml:"module"`
}

type yamlAlias struct {
	Prefix string `yaml:"prefix"`
	Target string `yaml:"target"`
}

func (p *parser) parseYAML(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrapf(err, "parsing config %s", p.file)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	var raw yamlConfig
	if err := doc.Content[0].Decode(&raw); err != nil {
		return p.errorf(doc.Content[0].Line, "%v", err)
	}
	if len(raw.Extra) > 0 {
		keys := make([]string, 0, len(raw.Extra))
		for k := range raw.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return p.errorf(doc.Content[0].Line, "unknown key %s", keys[0])
	}
	for i := range raw.Components {
		if err := p.yamlConstruct(&raw.Components[i], collect.ComponentKind); err != nil {
			return err
		}
	}
	for i := range raw.Functions {
		if err := p.yamlConstruct(&raw.Functions[i], collect.FunctionKind); err != nil {
			return err
		}
	}
	for _, n := range raw.Aliases {
		var a yamlAlias
		if err := n.Decode(&a); err != nil {
			return p.errorf(n.Line, "%v", err)
		}
		if a.Prefix == "" || a.Target == "" {
			return p.errorf(n.Line, "alias needs a prefix and a target")
		}
		p.cfg.Aliases = append(p.cfg.Aliases, resolve.Alias{Prefix: a.Prefix, Target: a.Target})
	}
	p.cfg.Helpers = raw.Helpers
	return nil
}

func (p *parser) yamlConstruct(n *yaml.Node, kind collect.Kind) error {
	c := collect.Construct{Kind: kind, Props: collect.AllProps()}
	switch n.Kind {
	case yaml.ScalarNode:
		c.Name = n.Value
	case yaml.MappingNode:
		var raw yamlConstruct
		if err := n.Decode(&raw); err != nil {
			return p.errorf(n.Line, "%v", err)
		}
		c.Name, c.Module = raw.Name, raw.Module
		props, err := p.yamlProps(n.Line, &raw.Props)
		if err != nil {
			return err
		}
		c.Props = props
	default:
		return p.errorf(n.Line, "%s must be a name or a mapping", kind)
	}
	return p.add(n.Line, c)
}

func (p *parser) yamlProps(line int, n *yaml.Node) (collect.Props, error) {
	switch n.Kind {
	case 0:
		return collect.AllProps(), nil
	case yaml.ScalarNode:
		if n.Value == "all" {
			return collect.AllProps(), nil
		}
	case yaml.SequenceNode:
		var names []string
		if err := n.Decode(&names); err == nil {
			return collect.PropList(names...), nil
		}
	}
	if n.Line > 0 {
		line = n.Line
	}
	return collect.Props{}, p.errorf(line, `props must be "all" or a list of strings`)
}
