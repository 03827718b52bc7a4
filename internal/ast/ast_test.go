package ast

import (
	"math"
	"testing"

	"github.com/go-quicktest/qt"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{math.Copysign(0, -1), "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{0.30000000000000004, "0.30000000000000004"},
		{1e21, "1e+21"},
		{123456789012345680000, "123456789012345680000"},
		{1.5e-7, "1.5e-7"},
		{0.000001, "0.000001"},
		{math.Inf(1), "Infinity"},
		{math.NaN(), "NaN"},
	}
	for _, test := range tests {
		qt.Check(t, qt.Equals(FormatNumber(test.in), test.want), qt.Commentf("%v", test.in))
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"42", 42},
		{"1_000", 1000},
		{"0x1F", 31},
		{"0b101", 5},
		{"0o17", 15},
		{"1.5e3", 1500},
		{"10n", 10},
		{".5", 0.5},
	}
	for _, test := range tests {
		got, ok := ParseNumber(test.raw)
		qt.Check(t, qt.IsTrue(ok), qt.Commentf("%s", test.raw))
		qt.Check(t, qt.Equals(got, test.want), qt.Commentf("%s", test.raw))
	}
	_, ok := ParseNumber("0xZZ")
	qt.Assert(t, qt.IsFalse(ok))
}

func TestScopeLookup(t *testing.T) {
	mod := NewScope(ModuleScope, nil)
	fn := NewScope(FunctionScope, mod)
	block := NewScope(BlockScope, fn)

	outer := &Binding{Name: &Ident{Name: "x"}}
	inner := &Binding{Name: &Ident{Name: "x"}}
	qt.Assert(t, qt.IsTrue(mod.Declare(outer)))
	qt.Assert(t, qt.IsTrue(fn.Declare(inner)))
	qt.Assert(t, qt.IsFalse(fn.Declare(&Binding{Name: &Ident{Name: "x"}})))

	qt.Assert(t, qt.Equals(block.Lookup("x"), inner))
	qt.Assert(t, qt.Equals(mod.Lookup("x"), outer))
	qt.Assert(t, qt.IsNil(block.Local("x")))
	qt.Assert(t, qt.Equals(block.Hoist(), fn))
	qt.Assert(t, qt.DeepEquals(fn.Names(), []string{"x"}))
}

func TestWalkSkipsChildren(t *testing.T) {
	inner := &Ident{Name: "inner"}
	call := &CallExpr{Fn: &Ident{Name: "css"}, Args: []Expr{&ObjectExpr{Props: []Node{
		&Property{Key: "color", Value: inner},
	}}}}
	var seen []string
	Walk(call, func(n Node) bool {
		if id, ok := n.(*Ident); ok {
			seen = append(seen, id.Name)
		}
		_, isObj := n.(*ObjectExpr)
		return !isObj
	})
	qt.Assert(t, qt.DeepEquals(seen, []string{"css"}))
}

func TestRangeContains(t *testing.T) {
	r := Range{Start: Pos{Line: 2, Col: 5}, End: Pos{Line: 4, Col: 3}}
	qt.Check(t, qt.IsTrue(r.Contains(2, 5)))
	qt.Check(t, qt.IsTrue(r.Contains(3, 100)))
	qt.Check(t, qt.IsTrue(r.Contains(4, 3)))
	qt.Check(t, qt.IsFalse(r.Contains(2, 4)))
	qt.Check(t, qt.IsFalse(r.Contains(4, 4)))
	qt.Check(t, qt.IsFalse(r.Contains(1, 10)))
}

func TestDottedName(t *testing.T) {
	e := &DotExpr{X: &ParenExpr{X: &DotExpr{X: &Ident{Name: "theme"}, Name: "colors"}}, Name: "red"}
	qt.Assert(t, qt.Equals(DottedName(e), "theme.colors.red"))
	qt.Assert(t, qt.Equals(RootIdent(&IndexExpr{X: e}).Name, "theme"))
	qt.Assert(t, qt.Equals(DottedName(&CallExpr{Fn: e}), ""))
}
